package render

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/extractor/extractortest"
	"github.com/andresmejia3/faceid/internal/types"
)

func gray(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 100, G: 100, B: 100, A: 255})
		}
	}
	return img
}

func TestAnnotateColorsByOutcome(t *testing.T) {
	outcome := types.ProbeOutcome{Results: []types.MatchResult{
		{Face: 1, Status: types.Identified, Label: "alice", Confidence: 0.7, Box: &types.Box{Top: 40, Right: 60, Bottom: 80, Left: 20}},
		{Face: 2, Status: types.NoMatch, Box: &types.Box{Top: 40, Right: 160, Bottom: 80, Left: 120}},
		{Face: 3, Status: types.NoMatchBelowThreshold}, // no box: nothing drawn
	}}

	src := gray(200, 100)
	out := Annotate(src, outcome)

	if got := out.RGBAAt(20, 60); got != MatchColor {
		t.Errorf("left edge of match box = %v, want %v", got, MatchColor)
	}
	if got := out.RGBAAt(159, 60); got != NoMatchColor {
		t.Errorf("right edge of non-match box = %v, want %v", got, NoMatchColor)
	}
	if got := out.RGBAAt(40, 60); got != (color.RGBA{R: 100, G: 100, B: 100, A: 255}) {
		t.Errorf("box interior should be untouched, got %v", got)
	}
	// Source image must not be modified.
	if got := src.RGBAAt(20, 60); got.G != 100 {
		t.Errorf("Annotate modified its input: %v", got)
	}

	// Some text pixels land in the band just above the first box.
	found := false
	for y := 40 - TextOffset - 13; y <= 40-TextOffset+3 && !found; y++ {
		for x := 20; x < 200; x++ {
			if out.RGBAAt(x, y) == MatchColor {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("expected label text above the match box")
	}
}

func TestAnnotateClipsBoxes(t *testing.T) {
	outcome := types.ProbeOutcome{Results: []types.MatchResult{
		{Face: 1, Status: types.NoMatch, Box: &types.Box{Top: -10, Right: 500, Bottom: 500, Left: -10}},
	}}
	// Must not panic on out-of-bounds boxes.
	Annotate(gray(50, 50), outcome)
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	path := extractortest.WriteImage(t, dir, "probe.png")
	img, err := extractor.LoadImage(path)
	if err != nil {
		t.Fatal(err)
	}

	sink, err := NewFileSink(filepath.Join(dir, "renders"))
	if err != nil {
		t.Fatal(err)
	}
	outcome := types.ProbeOutcome{Results: []types.MatchResult{
		{Face: 1, Status: types.Identified, Label: "alice", Box: &types.Box{Top: 20, Right: 40, Bottom: 40, Left: 10}},
	}}
	if err := sink.Render(context.Background(), img, outcome); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := sink.OutputPath(img)
	if filepath.Base(out) != "probe.png_annotated.png" {
		t.Errorf("unexpected output name %s", out)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("rendered file is not a PNG: %v", err)
	}
	if decoded.Bounds() != img.Pixels.Bounds() {
		t.Errorf("bounds = %v, want %v", decoded.Bounds(), img.Pixels.Bounds())
	}
}

func TestFileSinkRequiresPixels(t *testing.T) {
	sink := &FileSink{Dir: t.TempDir()}
	err := sink.Render(context.Background(), &extractor.Image{Name: "x.png"}, types.ProbeOutcome{NoFaces: true})
	if err == nil {
		t.Error("expected an error for an image without pixels")
	}
}

func TestFileSinkOutputPathKeepsExtension(t *testing.T) {
	sink := &FileSink{Dir: "renders"}
	jpg := sink.OutputPath(&extractor.Image{Name: "alice.jpg"})
	other := sink.OutputPath(&extractor.Image{Name: "alice.png"})
	if jpg == other {
		t.Fatalf("alice.jpg and alice.png share the render path %s", jpg)
	}
	if want := filepath.Join("renders", "alice.jpg_annotated.png"); jpg != want {
		t.Errorf("OutputPath = %s, want %s", jpg, want)
	}
}
