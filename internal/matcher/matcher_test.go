package matcher

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/extractor/extractortest"
	"github.com/andresmejia3/faceid/internal/types"
)

func aliceGallery() types.Gallery {
	return types.Gallery{{Label: "alice", Embedding: extractortest.Vec(0, 0)}}
}

// probe loads a scripted image whose faces are vectors at the given x offsets
// from the origin.
func probe(t *testing.T, fake *extractortest.Fake, xs ...float64) *extractor.Image {
	t.Helper()
	dir := t.TempDir()
	path := extractortest.WriteImage(t, dir, "probe.png")
	var faces []extractortest.Face
	for i, x := range xs {
		faces = append(faces, extractortest.Face{
			Vec: extractortest.Vec(x, 0),
			Box: types.Box{Top: 10 * i, Right: 20 + 10*i, Bottom: 20 + 10*i, Left: 10 * i},
		})
	}
	fake.Set("probe.png", faces...)
	img, err := fake.LoadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestIdentifyScenarios(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		tolerance float64
		threshold float64
		want      types.MatchStatus
		wantConf  float64
	}{
		{name: "Close face is identified", distance: 0.3, tolerance: 0.6, threshold: 0.6, want: types.Identified, wantConf: 0.7},
		{name: "Library matches but threshold rejects", distance: 0.65, tolerance: 0.7, threshold: 0.6, want: types.NoMatchBelowThreshold},
		{name: "Equal to threshold is not a match", distance: 0.5, tolerance: 0.6, threshold: 0.5, want: types.NoMatchBelowThreshold},
		{name: "Library rejects before threshold", distance: 0.65, tolerance: 0.6, threshold: 0.9, want: types.NoMatch},
		{name: "Exact match has full confidence", distance: 0, tolerance: 0.6, threshold: 0.6, want: types.Identified, wantConf: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := extractortest.New()
			fake.Tolerance = tt.tolerance
			img := probe(t, fake, tt.distance)

			out, err := Identify(context.Background(), fake, img, aliceGallery(), tt.threshold, nil)
			if err != nil {
				t.Fatalf("Identify failed: %v", err)
			}
			if out.NoFaces || len(out.Results) != 1 {
				t.Fatalf("expected one result, got %+v", out)
			}
			res := out.Results[0]
			if res.Status != tt.want {
				t.Fatalf("status = %v, want %v", res.Status, tt.want)
			}
			if res.Face != 1 {
				t.Errorf("face number = %d, want 1", res.Face)
			}
			if tt.want == types.Identified {
				if res.Label != "alice" {
					t.Errorf("label = %q, want alice", res.Label)
				}
				if math.Abs(res.Confidence-tt.wantConf) > 1e-9 {
					t.Errorf("confidence = %v, want %v", res.Confidence, tt.wantConf)
				}
			}
		})
	}
}

func TestIdentifyExactMatchConfidenceIsOne(t *testing.T) {
	fake := extractortest.New()
	img := probe(t, fake, 0)

	out, err := Identify(context.Background(), fake, img, aliceGallery(), 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Results[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want exactly 1.0", out.Results[0].Confidence)
	}
}

func TestIdentifyNoFaces(t *testing.T) {
	fake := extractortest.New()
	img := probe(t, fake)

	out, err := Identify(context.Background(), fake, img, aliceGallery(), 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.NoFaces {
		t.Error("expected the no-faces sentinel")
	}
	if out.Results != nil {
		t.Errorf("expected no results alongside the sentinel, got %v", out.Results)
	}
}

func TestIdentifyEmptyGallery(t *testing.T) {
	fake := extractortest.New()
	img := probe(t, fake, 0, 0.1, 0.2)

	out, err := Identify(context.Background(), fake, img, types.Gallery{}, 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	for i, res := range out.Results {
		if res.Status != types.NoMatch {
			t.Errorf("face %d: status = %v, want NoMatch", i+1, res.Status)
		}
		if res.Face != i+1 {
			t.Errorf("face numbering: got %d, want %d", res.Face, i+1)
		}
	}
}

func TestIdentifyAttachesBoxes(t *testing.T) {
	fake := extractortest.New()
	img := probe(t, fake, 0.1, 0.2)

	out, err := Identify(context.Background(), fake, img, aliceGallery(), 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Results[1].Box == nil || out.Results[1].Box.Left != 10 {
		t.Errorf("expected second face box, got %+v", out.Results[1].Box)
	}

	// A location failure drops boxes but keeps decisions.
	fake.LocateErr["probe.png"] = errors.New("no locations")
	out, err = Identify(context.Background(), fake, img, aliceGallery(), 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Results[0].Box != nil || out.Results[0].Status != types.Identified {
		t.Errorf("unexpected result after location failure: %+v", out.Results[0])
	}
}

func TestIdentifyEncodeError(t *testing.T) {
	fake := extractortest.New()
	img := probe(t, fake, 0)
	boom := errors.New("worker died")
	fake.EncodeErr["probe.png"] = boom

	if _, err := Identify(context.Background(), fake, img, aliceGallery(), 0.6, nil); !errors.Is(err, boom) {
		t.Errorf("expected wrapped worker error, got %v", err)
	}
}

func TestDecideTieBreaksOnFirstEntry(t *testing.T) {
	labels := []string{"alice", "bob", "carol"}
	res := Decide([]bool{true, true, true}, []float64{0.4, 0.2, 0.2}, labels, 0.6)
	if res.Label != "bob" {
		t.Errorf("expected earliest minimum (bob), got %q", res.Label)
	}

	// The nearest entry wins even when it is not the one the library flagged.
	res = Decide([]bool{false, true, false}, []float64{0.1, 0.3, 0.5}, labels, 0.6)
	if res.Status != types.Identified || res.Label != "alice" {
		t.Errorf("expected alice via global argmin, got %+v", res)
	}
}

func TestDecideThresholdMonotonic(t *testing.T) {
	distances := []float64{0.05, 0.3, 0.45, 0.59, 0.6, 0.61}
	thresholds := []float64{0.1, 0.3, 0.31, 0.5, 0.6, 0.7, 1.0}

	for _, d := range distances {
		wasIdentified := false
		for _, th := range thresholds {
			res := Decide([]bool{true}, []float64{d}, []string{"alice"}, th)
			identified := res.Status == types.Identified
			if wasIdentified && !identified {
				t.Errorf("distance %v identified at a lower threshold but not at %v", d, th)
			}
			if identified && !(d < th) {
				t.Errorf("distance %v identified at threshold %v", d, th)
			}
			wasIdentified = identified
		}
	}
}

func TestDecideNoMatch(t *testing.T) {
	if res := Decide(nil, nil, nil, 0.6); res.Status != types.NoMatch {
		t.Errorf("empty gallery: status = %v, want NoMatch", res.Status)
	}
	if res := Decide([]bool{false, false}, []float64{0.1, 0.2}, []string{"a", "b"}, 0.6); res.Status != types.NoMatch {
		t.Errorf("no library match: status = %v, want NoMatch", res.Status)
	}
}
