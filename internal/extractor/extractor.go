// Package extractor defines the face extraction capability consumed by the
// gallery loader, matcher and orchestrator. Backends (a subprocess worker,
// in-process dlib, test fakes) implement Extractor; nothing above this
// package depends on a concrete embedding model.
package extractor

import (
	"context"

	"github.com/andresmejia3/faceid/internal/types"
)

// DefaultTolerance is the match tolerance face_recognition uses for compare_faces.
const DefaultTolerance = 0.6

// Extractor turns images into face embeddings and compares them.
//
// Encode and Locate must return faces in the same order for the same image.
type Extractor interface {
	LoadImage(path string) (*Image, error)
	Encode(ctx context.Context, img *Image) ([]types.Embedding, error)
	Locate(ctx context.Context, img *Image) ([]types.Box, error)
	CompareFaces(known []types.Embedding, probe types.Embedding) []bool
	FaceDistance(known []types.Embedding, probe types.Embedding) []float64
	Close() error
}

// Factory builds one extractor per engine. Extractors are not required to be
// safe for concurrent use, so each engine owns its own.
type Factory func(ctx context.Context, id int) (Extractor, error)
