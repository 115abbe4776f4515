// Package pipeline runs identification over a single probe image or a folder
// of probes: load, match, print, render, accumulate, and (for folders)
// persist the aggregate result set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/logging"
	"github.com/andresmejia3/faceid/internal/matcher"
	"github.com/andresmejia3/faceid/internal/render"
	"github.com/andresmejia3/faceid/internal/results"
	"github.com/andresmejia3/faceid/internal/types"
	"github.com/andresmejia3/faceid/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// Exporter receives the final result set of a batch run.
type Exporter interface {
	Export(ctx context.Context, set *results.Set) error
}

// Config holds everything a run needs besides the extractors.
type Config struct {
	Gallery   types.Gallery
	Threshold float64

	// OutputPath is where a batch run writes its result document.
	OutputPath string
	Exporters  []Exporter

	Sink     render.Sink
	Out      io.Writer // result lines
	Progress io.Writer // progress bar; nil disables it
	Logger   *slog.Logger
}

// Processor is the batch orchestrator. The gallery in Config is frozen before
// the first probe is matched.
type Processor struct {
	cfg        Config
	extractors []extractor.Extractor
	logger     *slog.Logger
}

// New builds a processor running one engine per extractor.
func New(cfg Config, extractors ...extractor.Extractor) (*Processor, error) {
	if len(extractors) == 0 {
		return nil, errors.New("pipeline needs at least one extractor")
	}
	if cfg.Sink == nil {
		cfg.Sink = render.Nop{}
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	return &Processor{
		cfg:        cfg,
		extractors: extractors,
		logger:     logging.Component(cfg.Logger, "pipeline"),
	}, nil
}

// Process identifies faces in source, which is either one image file or a
// directory of images.
//
// A single image that cannot be loaded is fatal. In a directory, per-image
// failures are logged and skipped, and the result set is persisted once all
// images are processed.
func (p *Processor) Process(ctx context.Context, source string) (*results.Set, error) {
	isDir, err := utils.IsDir(source)
	if err != nil {
		return nil, fmt.Errorf("cannot open probe source %s: %w", source, err)
	}
	if !isDir {
		return p.processSingle(ctx, source)
	}
	return p.processBatch(ctx, source)
}

func (p *Processor) processSingle(ctx context.Context, path string) (*results.Set, error) {
	ext := p.extractors[0]
	img, err := ext.LoadImage(path)
	if err != nil {
		return nil, err
	}
	outcome, err := matcher.Identify(ctx, ext, img, p.cfg.Gallery, p.cfg.Threshold, p.cfg.Logger)
	if err != nil {
		return nil, err
	}

	set := results.NewSet()
	set.Add(img.Name, outcome)
	for _, line := range results.Lines(outcome) {
		fmt.Fprintln(p.cfg.Out, line)
	}
	p.render(ctx, img, outcome)
	return set, nil
}

type probeTask struct {
	Index int
	Path  string
}

// probeResult wraps the output from an engine to be sent to the aggregator
type probeResult struct {
	Index   int
	Name    string
	Image   *extractor.Image
	Outcome types.ProbeOutcome
	Err     error
}

func (p *Processor) processBatch(ctx context.Context, dir string) (*results.Set, error) {
	names, err := utils.ListFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list probe directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := p.cfg.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(names),
		progressbar.OptionSetDescription("🔍 Identifying"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	taskChan := make(chan probeTask, len(p.extractors))
	resultsChan := make(chan probeResult, len(p.extractors)*2)
	var wg sync.WaitGroup

	// Spawn the Engine Pool
	for _, ext := range p.extractors {
		wg.Add(1)
		go func(ext extractor.Extractor) {
			defer wg.Done()
			p.runEngine(ctx, ext, taskChan, resultsChan)
		}(ext)
	}

	go func() {
		defer close(taskChan)
		for i, name := range names {
			select {
			case taskChan <- probeTask{Index: i, Path: filepath.Join(dir, name)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	set := results.NewSet()

	// Buffer for re-ordering (engine 2 might finish before engine 1)
	buffer := make(map[int]probeResult)
	next := 0
	for res := range resultsChan {
		buffer[res.Index] = res
		for {
			r, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			next++
			bar.Add(1)
			p.aggregate(ctx, set, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bar.Finish()

	if p.cfg.OutputPath != "" {
		if err := results.Write(p.cfg.OutputPath, set); err != nil {
			return set, err
		}
	}
	for _, exp := range p.cfg.Exporters {
		if err := exp.Export(ctx, set); err != nil {
			return set, fmt.Errorf("export results: %w", err)
		}
	}
	return set, nil
}

// runEngine processes tasks with a single extractor until the task channel closes.
func (p *Processor) runEngine(ctx context.Context, ext extractor.Extractor, tasks <-chan probeTask, out chan<- probeResult) {
	for task := range tasks {
		res := probeResult{Index: task.Index, Name: filepath.Base(task.Path)}
		img, err := ext.LoadImage(task.Path)
		if err != nil {
			res.Err = err
		} else {
			res.Image = img
			res.Outcome, res.Err = matcher.Identify(ctx, ext, img, p.cfg.Gallery, p.cfg.Threshold, p.cfg.Logger)
		}

		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
	}
}

// aggregate is the single writer of the result set; it runs in directory order.
func (p *Processor) aggregate(ctx context.Context, set *results.Set, r probeResult) {
	if r.Err != nil {
		p.logger.Warn("skipping probe image", slog.String("file", r.Name), logging.Error(r.Err))
		return
	}
	set.Add(r.Name, r.Outcome)

	fmt.Fprintf(p.cfg.Out, "%s:\n", r.Name)
	for _, line := range results.Lines(r.Outcome) {
		fmt.Fprintf(p.cfg.Out, "  %s\n", line)
	}
	p.render(ctx, r.Image, r.Outcome)
}

func (p *Processor) render(ctx context.Context, img *extractor.Image, outcome types.ProbeOutcome) {
	if err := p.cfg.Sink.Render(ctx, img, outcome); err != nil {
		p.logger.Warn("render failed", slog.String("file", img.Name), logging.Error(err))
	}
}
