package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/types"
	"github.com/andresmejia3/faceid/internal/utils" // Using the SafeCommand wrapper
)

// DefaultCommand starts the bundled face_recognition worker.
var DefaultCommand = []string{"python3", "-u", "python/face_worker.py"}

// maxResponse bounds a single reply so a corrupt length header cannot exhaust memory.
const maxResponse = 64 * 1024 * 1024

// Config describes how to start a worker.
type Config struct {
	Command   []string
	Tolerance float64
}

var _ extractor.Extractor = (*PythonWorker)(nil)

// PythonWorker is an Extractor backed by a face_recognition subprocess.
// It is not safe for concurrent use; run one worker per engine.
type PythonWorker struct {
	extractor.Euclidean

	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	// One round-trip serves both Encode and Locate for the same image.
	lastImg   *extractor.Image
	lastFaces []types.FaceResult
}

func NewPythonWorker(ctx context.Context, id int, cfg Config) (*PythonWorker, error) {
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand
	}

	// 1. Initialize the SafeCommand
	py := utils.NewSafeCommand(ctx, command[0], command[1:]...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("worker %d failed to start %q: %w", id, strings.Join(command, " "), err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		Euclidean: extractor.Euclidean{Tolerance: cfg.Tolerance},
		ID:        id,
		Cmd:       py,
		Stdin:     stdin,
		DataPipe:  r,
	}, nil
}

func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	// Read Result
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponse {
		return nil, fmt.Errorf("worker %d response too large: %d bytes", w.ID, respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessImage sends encoded image bytes and returns the detected faces.
func (w *PythonWorker) ProcessImage(data []byte) ([]types.FaceResult, error) {
	resp, err := w.Communicate(data)
	if err != nil {
		return nil, err
	}

	var faces []types.FaceResult
	if err := json.Unmarshal(resp, &faces); err != nil {
		// Check if it's a Python error object (e.g. {"error": "..."})
		var errorResult types.ErrorResult
		if json.Unmarshal(resp, &errorResult) == nil && errorResult.Error != "" {
			return nil, fmt.Errorf("python worker error: %s", errorResult.Error)
		}
		return nil, fmt.Errorf("worker %d JSON malformed: %w", w.ID, err)
	}
	return faces, nil
}

func (w *PythonWorker) faces(img *extractor.Image) ([]types.FaceResult, error) {
	if img == w.lastImg {
		return w.lastFaces, nil
	}
	if len(img.Data) == 0 {
		return nil, errors.New("image has no encoded data")
	}
	faces, err := w.ProcessImage(img.Data)
	if err != nil {
		return nil, err
	}
	w.lastImg, w.lastFaces = img, faces
	return faces, nil
}

func (w *PythonWorker) LoadImage(path string) (*extractor.Image, error) {
	return extractor.LoadImage(path)
}

func (w *PythonWorker) Encode(ctx context.Context, img *extractor.Image) ([]types.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	faces, err := w.faces(img)
	if err != nil {
		return nil, err
	}
	out := make([]types.Embedding, len(faces))
	for i, f := range faces {
		out[i] = types.Embedding(f.Vec)
	}
	return out, nil
}

func (w *PythonWorker) Locate(ctx context.Context, img *extractor.Image) ([]types.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	faces, err := w.faces(img)
	if err != nil {
		return nil, err
	}
	out := make([]types.Box, len(faces))
	for i, f := range faces {
		out[i] = f.Box()
	}
	return out, nil
}

func (w *PythonWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
