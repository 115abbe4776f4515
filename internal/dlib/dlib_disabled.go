//go:build !dlib

package dlib

import "github.com/andresmejia3/faceid/internal/extractor"

// New always fails in builds without the dlib tag.
func New(cfg Config) (extractor.Extractor, error) {
	return nil, ErrUnavailable
}
