package extractor

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/faceid/internal/types"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a    types.Embedding
		b    types.Embedding
		want float64
	}{
		{name: "Identical", a: types.Embedding{0.1, 0.2}, b: types.Embedding{0.1, 0.2}, want: 0},
		{name: "3-4-5 triangle", a: types.Embedding{0, 0}, b: types.Embedding{3, 4}, want: 5},
		{name: "Length mismatch", a: types.Embedding{1}, b: types.Embedding{1, 2}, want: math.Inf(1)},
		{name: "Empty vectors", a: types.Embedding{}, b: types.Embedding{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("Distance() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEuclideanCompareFaces(t *testing.T) {
	known := []types.Embedding{{0, 0}, {0.6, 0}, {0.61, 0}}
	probe := types.Embedding{0, 0}

	e := Euclidean{Tolerance: 0.6}
	got := e.CompareFaces(known, probe)
	want := []bool{true, true, false} // tolerance is inclusive
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Zero tolerance falls back to the library default.
	if got := (Euclidean{}).CompareFaces(known, probe); !got[1] || got[2] {
		t.Errorf("default tolerance not applied: %v", got)
	}

	if got := e.CompareFaces(nil, probe); len(got) != 0 {
		t.Errorf("expected no matches against an empty gallery, got %v", got)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.jpg")
	_, err := LoadImage(missing)
	var decodeErr *ImageDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ImageDecodeError for missing file, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.jpg")
	if err := os.WriteFile(garbage, []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(garbage); !errors.As(err, &decodeErr) || decodeErr.Path != garbage {
		t.Errorf("expected ImageDecodeError for %s, got %v", garbage, err)
	}
}
