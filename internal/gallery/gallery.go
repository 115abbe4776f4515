// Package gallery builds the in-memory reference set from a directory of
// labeled images. Each file contributes at most one entry, labeled with its
// file name minus the extension.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/logging"
	"github.com/andresmejia3/faceid/internal/types"
	"github.com/andresmejia3/faceid/internal/utils"
)

// ErrPathNotFound is matched by PathError when the gallery directory does not exist.
var ErrPathNotFound = errors.New("gallery directory not found")

// PathError reports a gallery directory that could not be listed. It is
// recoverable: Load still returns an (empty) gallery alongside it.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("gallery %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

func (e *PathError) Is(target error) bool {
	return target == ErrPathNotFound && errors.Is(e.Err, os.ErrNotExist)
}

// Load encodes every image in dir, in directory listing order. Unreadable
// images and images without a face are logged and skipped. Only the first
// face of a gallery image is used.
//
// If dir cannot be listed Load returns an empty gallery and a *PathError;
// callers log it and continue.
func Load(ctx context.Context, ext extractor.Extractor, dir string, logger *slog.Logger) (types.Gallery, error) {
	logger = logging.Component(logger, "gallery")

	names, err := utils.ListFiles(dir)
	if err != nil {
		return types.Gallery{}, &PathError{Path: dir, Err: err}
	}

	gallery := make(types.Gallery, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, name)
		img, err := ext.LoadImage(path)
		if err != nil {
			logger.Warn("skipping unreadable gallery image", slog.String("file", name), logging.Error(err))
			continue
		}

		encodings, err := ext.Encode(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("face extraction failed", slog.String("file", name), logging.Error(err))
			continue
		}
		if len(encodings) == 0 {
			logger.Warn("no face found in gallery image", slog.String("file", name))
			continue
		}
		if len(encodings) > 1 {
			logger.Debug("multiple faces in gallery image, using the first",
				slog.String("file", name), slog.Int("faces", len(encodings)))
		}

		gallery = append(gallery, types.GalleryEntry{
			Label:     utils.FileStem(name),
			Embedding: encodings[0],
			Source:    path,
		})
	}

	logger.Debug("gallery loaded", slog.String("dir", dir), slog.Int("entries", len(gallery)))
	return gallery, nil
}
