package extractor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is the decoded probe or gallery image plus its raw file bytes.
// Backends that need the encoded form (the worker, dlib) use Data.
type Image struct {
	Path   string
	Name   string // base file name
	Format string
	Data   []byte
	Pixels image.Image
}

// ImageDecodeError reports an unreadable or corrupt image file.
type ImageDecodeError struct {
	Path string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// LoadImage reads and decodes an image file. Backends use it to implement
// Extractor.LoadImage.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImageDecodeError{Path: path, Err: err}
	}
	pixels, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageDecodeError{Path: path, Err: err}
	}
	return &Image{
		Path:   path,
		Name:   filepath.Base(path),
		Format: format,
		Data:   data,
		Pixels: pixels,
	}, nil
}
