// Package pipeline runs input entries through resolve, probe, fetch,
// download and mux.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"vodgrab/config"
	"vodgrab/media"
	"vodgrab/metrics"
	"vodgrab/segment"
	"vodgrab/task"

	"github.com/dustin/go-humanize"
)

// ScratchPrefix prefixes the per-video scratch dir inside the course dir.
const ScratchPrefix = "temp_"

type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (course, video string, err error)
}

type Prober interface {
	Probe(ctx context.Context, sourceURL string, order []media.QualityTier) (*media.Candidate, error)
}

type ManifestFetcher interface {
	Fetch(ctx context.Context, manifestURL string) ([]media.Segment, error)
}

type Downloader interface {
	DownloadAll(ctx context.Context, job segment.Job) ([]segment.Result, error)
}

type Muxer interface {
	Mux(ctx context.Context, segments []media.Segment, outputPath, scratchDir string, meta media.Metadata) (string, error)
	OutputExt() string
}

// Deps are the stage implementations. Scraper and Reporter may be nil.
type Deps struct {
	Scraper    Scraper
	Prober     Prober
	Fetcher    ManifestFetcher
	Downloader Downloader
	Muxer      Muxer
	Reporter   segment.Reporter
}

type Pipeline struct {
	cfg        *config.Config
	scraper    Scraper
	prober     Prober
	fetcher    ManifestFetcher
	downloader Downloader
	muxer      Muxer
	reporter   segment.Reporter
}

func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Prober == nil || deps.Fetcher == nil || deps.Downloader == nil || deps.Muxer == nil {
		return nil, fmt.Errorf("pipeline needs a prober, fetcher, downloader and muxer")
	}
	return &Pipeline{
		cfg:        cfg,
		scraper:    deps.Scraper,
		prober:     deps.Prober,
		fetcher:    deps.Fetcher,
		downloader: deps.Downloader,
		muxer:      deps.Muxer,
		reporter:   deps.Reporter,
	}, nil
}

// Resolve turns an input entry into a named download task, scraping the
// page for magic entries.
func (p *Pipeline) Resolve(ctx context.Context, e task.Entry) (task.DownloadTask, error) {
	switch e.Mode {
	case task.ModeManual:
		return task.NewDownloadTask(e.SourceURL, e.Course, e.Video), nil
	case task.ModeMagic:
		if p.scraper == nil {
			return task.DownloadTask{}, fmt.Errorf("%w: no scraper configured for %s", media.ErrNamesNotDetected, e.SourceURL)
		}
		course, video, err := p.scraper.Scrape(ctx, e.SourceURL)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, media.ErrNamesNotDetected) {
				return task.DownloadTask{}, err
			}
			return task.DownloadTask{}, fmt.Errorf("%w: %v", media.ErrNamesNotDetected, err)
		}
		return task.NewDownloadTask(e.SourceURL, course, video), nil
	default:
		return task.DownloadTask{}, fmt.Errorf("%w: unknown entry mode %q", media.ErrInvalidTask, e.Mode)
	}
}

// Paths returns the course directory and final output path of d.
func (p *Pipeline) Paths(d task.DownloadTask) (string, string, error) {
	courseDir, base := d.CourseDir(), d.FileBase()
	if courseDir == "" || base == "" {
		return "", "", fmt.Errorf("%w: course %q / title %q sanitize to nothing", media.ErrInvalidTask, d.CourseTitle, d.Title)
	}
	dir := filepath.Join(p.cfg.OutputDir, courseDir)
	return dir, filepath.Join(dir, base+p.muxer.OutputExt()), nil
}

// Execute downloads d unless its output already exists. An existing output
// short-circuits before any network call.
func (p *Pipeline) Execute(ctx context.Context, d task.DownloadTask, tr task.Tracker) (task.Outcome, error) {
	if tr == nil {
		tr = task.NopTracker{}
	}

	dir, outputPath, err := p.Paths(d)
	if err != nil {
		return task.Outcome{}, err
	}
	if fi, err := os.Stat(outputPath); err == nil && fi.Mode().IsRegular() {
		log.Printf("[*] Skipping (already exists): %s", outputPath)
		return task.Outcome{Skipped: true, OutputPath: outputPath, Bytes: fi.Size()}, nil
	}

	log.Printf("[*] Processing: %s / %s", d.CourseTitle, d.Title)

	cand, err := p.prober.Probe(ctx, d.SourceURL, p.cfg.QualityOrder)
	if err != nil {
		return task.Outcome{}, err
	}
	tr.Probed(*cand)
	log.Printf("    - ID: %s | Quality: %s", cand.VideoID, cand.Quality.Label())

	segments, err := p.fetcher.Fetch(ctx, cand.ManifestURL)
	if err != nil {
		return task.Outcome{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return task.Outcome{}, fmt.Errorf("create course dir: %w", err)
	}
	scratchDir := filepath.Join(dir, ScratchPrefix+cand.VideoID)
	media.AttachPaths(segments, scratchDir)

	_, err = p.downloader.DownloadAll(ctx, segment.Job{
		ID:         cand.VideoID,
		Segments:   segments,
		ScratchDir: scratchDir,
		Limit:      p.cfg.SegmentConcurrency,
		Reporter:   segment.MultiReporter{p.reporter, trackerReporter(tr)},
	})
	if err != nil {
		return task.Outcome{}, err
	}

	muxLog, err := p.muxer.Mux(ctx, segments, outputPath, scratchDir, d.Metadata())
	if err != nil {
		if errors.Is(err, media.ErrMuxToolMissing) {
			log.Printf("    [!] %s not found; install it or rerun with --no-ffmpeg. Segments kept in %s", p.cfg.FFBin, scratchDir)
		}
		return task.Outcome{MuxLog: muxLog}, err
	}

	out := task.Outcome{OutputPath: outputPath, MuxLog: muxLog}
	if fi, err := os.Stat(outputPath); err == nil {
		out.Bytes = fi.Size()
	}
	log.Printf("[+] Saved: %s (%s)", outputPath, humanize.Bytes(uint64(out.Bytes)))
	return out, nil
}

// Run resolves and executes one entry.
func (p *Pipeline) Run(ctx context.Context, e task.Entry, tr task.Tracker) (task.Outcome, error) {
	if tr == nil {
		tr = task.NopTracker{}
	}
	out, err := p.run(ctx, e, tr)
	metrics.Tasks.WithLabelValues(outcomeLabel(out, err)).Inc()
	return out, err
}

func (p *Pipeline) run(ctx context.Context, e task.Entry, tr task.Tracker) (task.Outcome, error) {
	d, err := p.Resolve(ctx, e)
	if err != nil {
		return task.Outcome{}, err
	}
	tr.Resolved(d)
	return p.Execute(ctx, d, tr)
}

func outcomeLabel(out task.Outcome, err error) string {
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return "canceled"
	case err != nil:
		return "failed"
	case out.Skipped:
		return "skipped"
	default:
		return "completed"
	}
}

// trackerReporter forwards pool progress to a task tracker.
func trackerReporter(tr task.Tracker) segment.Reporter {
	return segment.ReporterFunc(func(e segment.Event) {
		switch e.Type {
		case segment.EventStart, segment.EventProgress, segment.EventDone:
			tr.Progress(e.Completed, e.Total)
		}
	})
}
