//go:build dlib

package dlib

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/Kagami/go-face"
	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/types"
)

var _ extractor.Extractor = (*Recognizer)(nil)

// Recognizer wraps a go-face recognizer. Not safe for concurrent use.
type Recognizer struct {
	extractor.Euclidean

	rec    *face.Recognizer
	useCNN bool

	lastImg   *extractor.Image
	lastFaces []face.Face
}

// New loads the dlib models from cfg.ModelDir.
func New(cfg Config) (*Recognizer, error) {
	rec, err := face.NewRecognizer(cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load models from %s: %w", cfg.ModelDir, err)
	}
	return &Recognizer{
		Euclidean: extractor.Euclidean{Tolerance: cfg.Tolerance},
		rec:       rec,
		useCNN:    cfg.UseCNN,
	}, nil
}

func (r *Recognizer) LoadImage(path string) (*extractor.Image, error) {
	return extractor.LoadImage(path)
}

// jpegBytes returns the image as JPEG, which is the only format go-face reads.
func jpegBytes(img *extractor.Image) ([]byte, error) {
	if img.Format == "jpeg" && len(img.Data) > 0 {
		return img.Data, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.Pixels, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("re-encode %s as jpeg: %w", img.Name, err)
	}
	return buf.Bytes(), nil
}

func (r *Recognizer) faces(img *extractor.Image) ([]face.Face, error) {
	if img == r.lastImg {
		return r.lastFaces, nil
	}
	data, err := jpegBytes(img)
	if err != nil {
		return nil, err
	}
	var faces []face.Face
	if r.useCNN {
		faces, err = r.rec.RecognizeCNN(data)
	} else {
		faces, err = r.rec.Recognize(data)
	}
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w", img.Name, err)
	}
	r.lastImg, r.lastFaces = img, faces
	return faces, nil
}

func (r *Recognizer) Encode(ctx context.Context, img *extractor.Image) ([]types.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	faces, err := r.faces(img)
	if err != nil {
		return nil, err
	}
	out := make([]types.Embedding, len(faces))
	for i, f := range faces {
		vec := make(types.Embedding, len(f.Descriptor))
		for j, v := range f.Descriptor {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (r *Recognizer) Locate(ctx context.Context, img *extractor.Image) ([]types.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	faces, err := r.faces(img)
	if err != nil {
		return nil, err
	}
	out := make([]types.Box, len(faces))
	for i, f := range faces {
		rect := f.Rectangle
		out[i] = types.Box{Top: rect.Min.Y, Right: rect.Max.X, Bottom: rect.Max.Y, Left: rect.Min.X}
	}
	return out, nil
}

func (r *Recognizer) Close() error {
	r.rec.Close()
	return nil
}
