package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/andresmejia3/faceid/internal/dlib"
	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/gallery"
	"github.com/andresmejia3/faceid/internal/logging"
	"github.com/andresmejia3/faceid/internal/pipeline"
	"github.com/andresmejia3/faceid/internal/render"
	"github.com/andresmejia3/faceid/internal/results"
	"github.com/andresmejia3/faceid/internal/store"
	"github.com/andresmejia3/faceid/internal/types"
	"github.com/andresmejia3/faceid/internal/utils"
	"github.com/andresmejia3/faceid/internal/worker"
	"github.com/mattn/go-isatty"
)

const (
	backendWorker = "worker"
	backendDlib   = "dlib"
)

// stdout receives the result lines and stderr the status lines; tests swap them for buffers.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// newFactory builds the extractor factory for the configured backend.
var newFactory = func(opts Options) extractor.Factory {
	return func(ctx context.Context, id int) (extractor.Extractor, error) {
		if opts.Backend == backendDlib {
			r, err := dlib.New(dlib.Config{ModelDir: opts.ModelDir, Tolerance: opts.Tolerance, UseCNN: opts.UseCNN})
			if err != nil {
				return nil, err
			}
			return r, nil
		}
		w, err := worker.NewPythonWorker(ctx, id, worker.Config{
			Command:   strings.Fields(opts.WorkerCmd),
			Tolerance: opts.Tolerance,
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// runIdentify loads the gallery, identifies every face of the probe source and
// reports the results.
func runIdentify(ctx context.Context, opts Options) error {
	if err := validateIdentifyFlags(&opts); err != nil {
		return &runError{context: "Invalid flags", err: err}
	}

	exts, err := startEngines(ctx, opts, opts.NumEngines)
	if err != nil {
		return err
	}
	defer closeEngines(exts)

	// 1. Gallery is built once, before any probe is matched
	g, err := loadGallery(ctx, exts[0], opts.GalleryDir)
	if err != nil {
		return &runError{context: "Failed to load gallery " + opts.GalleryDir, err: err, cmd: workerLogs(exts)}
	}

	// 2. Outputs
	var sink render.Sink = render.Nop{}
	if opts.RenderDir != "" {
		fs, err := render.NewFileSink(opts.RenderDir)
		if err != nil {
			return &runError{context: "Failed to prepare render directory", err: err}
		}
		sink = fs
	}

	var progress io.Writer
	if isTerminal(os.Stderr) {
		progress = os.Stderr
	}

	// Only directory runs are persisted, so only they are exported.
	isDir, _ := utils.IsDir(opts.Probe)
	var exporters []pipeline.Exporter
	if DB != nil && isDir {
		run := store.NewRun(opts.GalleryDir, opts.Probe, opts.Threshold)
		exporters = append(exporters, store.RunExporter{Store: DB, Run: run})
		fmt.Fprintf(stderr, "🗄️  Exporting run %s\n", run.ID.String()[:8])
	}

	p, err := pipeline.New(pipeline.Config{
		Gallery:    g,
		Threshold:  opts.Threshold,
		OutputPath: opts.OutputPath,
		Exporters:  exporters,
		Sink:       sink,
		Out:        stdout,
		Progress:   progress,
		Logger:     logger,
	}, exts...)
	if err != nil {
		return &runError{context: "Failed to build pipeline", err: err}
	}

	// 3. Identify
	set, err := p.Process(ctx, opts.Probe)
	if err != nil {
		return &runError{context: "Identification failed for " + opts.Probe, err: err, cmd: workerLogs(exts)}
	}

	if isDir {
		fmt.Fprint(stderr, summaryTable(set.Summarize()))
		if opts.OutputPath != "" {
			fmt.Fprintf(stderr, "💾 Results saved to %s\n", opts.OutputPath)
		}
	}
	if opts.RenderDir != "" {
		fmt.Fprintf(stderr, "🖼️  Annotated images written to %s\n", opts.RenderDir)
	}
	return nil
}

func validateIdentifyFlags(opts *Options) error {
	// 0 never identifies; distances above 1 are possible.
	if math.IsNaN(opts.Threshold) || math.IsInf(opts.Threshold, 0) || opts.Threshold < 0 {
		return fmt.Errorf("--threshold must be a finite, non-negative number, got %g", opts.Threshold)
	}
	if opts.NumEngines < 1 {
		fmt.Fprintf(stderr, "⚠️  Invalid engine count %d, using 1\n", opts.NumEngines)
		opts.NumEngines = 1
	}
	if err := validateBackend(opts); err != nil {
		return err
	}
	if strings.TrimSpace(opts.Probe) == "" {
		return errors.New("--probe must not be empty")
	}
	return nil
}

// validateBackend checks the flags every command that starts engines depends on.
func validateBackend(opts *Options) error {
	if opts.Tolerance <= 0 || math.IsNaN(opts.Tolerance) {
		return fmt.Errorf("--tolerance must be positive, got %g", opts.Tolerance)
	}
	switch opts.Backend {
	case backendWorker:
		if len(strings.Fields(opts.WorkerCmd)) == 0 {
			return errors.New("--worker-cmd must not be empty")
		}
	case backendDlib:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", opts.Backend, backendWorker, backendDlib)
	}
	return nil
}

// startEngines spawns n extractors. On failure the ones already started are closed.
func startEngines(ctx context.Context, opts Options, n int) ([]extractor.Extractor, error) {
	fmt.Fprintf(stderr, "⚙️  Spawning %d %s engine(s)...\n", n, opts.Backend)

	factory := newFactory(opts)
	exts := make([]extractor.Extractor, 0, n)
	for i := 0; i < n; i++ {
		ext, err := factory(ctx, i)
		if err != nil {
			closeEngines(exts)
			return nil, &runError{context: fmt.Sprintf("Failed to start engine %d", i), err: err}
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

func closeEngines(exts []extractor.Extractor) {
	for _, ext := range exts {
		if err := ext.Close(); err != nil {
			logging.Component(logger, "engine").Debug("engine exited with error", logging.Error(err))
		}
	}
}

// loadGallery treats an unreadable gallery directory as an empty gallery.
func loadGallery(ctx context.Context, ext extractor.Extractor, dir string) (types.Gallery, error) {
	g, err := gallery.Load(ctx, ext, dir, logger)
	if err != nil {
		var pathErr *gallery.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
		logging.Component(logger, "gallery").Warn("gallery unavailable, continuing with an empty gallery",
			slog.String("path", dir), logging.Error(err))
	}
	fmt.Fprintf(stderr, "🗂️  Loaded %d gallery face(s) from %s\n", len(g), dir)
	return g, nil
}

// workerLogs returns the first worker command that captured stderr output.
func workerLogs(exts []extractor.Extractor) *utils.SafeCommand {
	for _, ext := range exts {
		if w, ok := ext.(*worker.PythonWorker); ok && w.Cmd != nil && w.Cmd.Stderr.Len() > 0 {
			return w.Cmd
		}
	}
	return nil
}

func summaryTable(s results.Summary) string {
	headers := []string{"Probes", "No faces", "Faces", "Identified", "No match", "Below threshold"}
	row := []string{
		strconv.Itoa(s.Probes),
		strconv.Itoa(s.NoFaces),
		strconv.Itoa(s.Faces),
		strconv.Itoa(s.Identified),
		strconv.Itoa(s.NoMatch),
		strconv.Itoa(s.BelowThreshold),
	}
	aligns := make([]columnAlignment, len(headers))
	for i := range aligns {
		aligns[i] = alignRight
	}
	return renderTable(headers, [][]string{row}, aligns) + "\n"
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
