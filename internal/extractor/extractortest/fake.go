// Package extractortest provides an in-memory Extractor for tests.
package extractortest

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/types"
)

// Face is a scripted detection.
type Face struct {
	Vec types.Embedding
	Box types.Box
}

// Fake returns scripted faces keyed by image base name. Images are still
// decoded from disk so decode failures behave like a real backend.
type Fake struct {
	extractor.Euclidean

	mu        sync.Mutex
	Faces     map[string][]Face
	EncodeErr map[string]error
	LocateErr map[string]error
	Encoded   []string // names in the order Encode was called
	Closed    bool
}

// New returns a Fake using the default library tolerance.
func New() *Fake {
	return &Fake{
		Euclidean: extractor.Euclidean{Tolerance: extractor.DefaultTolerance},
		Faces:     make(map[string][]Face),
		EncodeErr: make(map[string]error),
		LocateErr: make(map[string]error),
	}
}

func (f *Fake) LoadImage(path string) (*extractor.Image, error) {
	return extractor.LoadImage(path)
}

func (f *Fake) Encode(ctx context.Context, img *extractor.Image) ([]types.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Encoded = append(f.Encoded, img.Name)
	if err := f.EncodeErr[img.Name]; err != nil {
		return nil, err
	}
	var out []types.Embedding
	for _, face := range f.Faces[img.Name] {
		out = append(out, face.Vec)
	}
	return out, nil
}

func (f *Fake) Locate(ctx context.Context, img *extractor.Image) ([]types.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.LocateErr[img.Name]; err != nil {
		return nil, err
	}
	var out []types.Box
	for _, face := range f.Faces[img.Name] {
		out = append(out, face.Box)
	}
	return out, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Set scripts the faces returned for an image name.
func (f *Fake) Set(name string, faces ...Face) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Faces[name] = faces
}

// Vec builds a 2-d embedding, which keeps distances easy to reason about.
func Vec(x, y float64) types.Embedding {
	return types.Embedding{x, y}
}

// WriteImage writes a small valid PNG named name into dir and returns its path.
func WriteImage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteGarbage writes a file that cannot be decoded as an image.
func WriteGarbage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
