// Package render annotates probe images with their match results. Rendering
// is best-effort: a Sink error is reported to the caller but never changes a
// recorded result.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/results"
	"github.com/andresmejia3/faceid/internal/types"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextOffset is how far above a box the result text baseline sits.
const TextOffset = 10

const lineWidth = 2

var (
	MatchColor   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	NoMatchColor = color.RGBA{R: 220, G: 0, B: 0, A: 255}
)

// Sink receives every processed probe image with its outcome.
type Sink interface {
	Render(ctx context.Context, img *extractor.Image, outcome types.ProbeOutcome) error
}

// Nop discards renders.
type Nop struct{}

func (Nop) Render(context.Context, *extractor.Image, types.ProbeOutcome) error { return nil }

// FileSink writes <name>_annotated.png files into Dir, keeping the source
// extension in the name so alice.jpg and alice.png do not collide.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

// OutputPath is where the annotated copy of img is written.
func (s *FileSink) OutputPath(img *extractor.Image) string {
	return filepath.Join(s.Dir, img.Name+"_annotated.png")
}

func (s *FileSink) Render(ctx context.Context, img *extractor.Image, outcome types.ProbeOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if img.Pixels == nil {
		return fmt.Errorf("image %s has no pixel data", img.Name)
	}

	canvas := Annotate(img.Pixels, outcome)

	path := s.OutputPath(img)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, canvas); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// Annotate returns an RGBA copy of src with a rectangle and result text drawn
// for every face that has a bounding box.
func Annotate(src image.Image, outcome types.ProbeOutcome) *image.RGBA {
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	if outcome.NoFaces {
		return canvas
	}
	for _, r := range outcome.Results {
		if r.Box == nil {
			continue
		}
		col := NoMatchColor
		if r.Status == types.Identified {
			col = MatchColor
		}
		rect := r.Box.Rect().Add(bounds.Min)
		strokeRect(canvas, rect, col)
		drawLabel(canvas, rect, results.Line(r), col)
	}
	return canvas
}

// strokeRect draws the outline of rect, clipped to the image.
func strokeRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+lineWidth), // top
		image.Rect(rect.Min.X, rect.Max.Y-lineWidth, rect.Max.X, rect.Max.Y), // bottom
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+lineWidth, rect.Max.Y), // left
		image.Rect(rect.Max.X-lineWidth, rect.Min.Y, rect.Max.X, rect.Max.Y), // right
	}
	fill := image.NewUniform(col)
	for _, e := range edges {
		// Clip rect to image bounds to prevent panics
		e = e.Intersect(img.Bounds())
		if e.Empty() {
			continue
		}
		draw.Draw(img, e, fill, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.RGBA, rect image.Rectangle, text string, col color.RGBA) {
	face := basicfont.Face7x13
	y := rect.Min.Y - TextOffset
	// Keep the text inside the image when the box touches the top edge.
	if minY := img.Bounds().Min.Y + face.Ascent; y < minY {
		y = minY
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(rect.Min.X, y),
	}
	d.DrawString(text)
}
