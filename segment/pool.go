// Package segment downloads the media segments of one playlist.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"vodgrab/config"
	"vodgrab/media"
	"vodgrab/metrics"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is used when neither the job nor the config set a limit.
const DefaultLimit = 10

var errEmptyBody = errors.New("empty response body")

// Status is the lifecycle state of one segment.
type Status string

const (
	StatusPending         Status = "pending"
	StatusInFlight        Status = "in-flight"
	StatusComplete        Status = "complete"
	StatusFailedExhausted Status = "failed-exhausted"
)

// Job is one playlist worth of segments. ID namespaces the scratch dir and
// progress events; it is the platform video id.
type Job struct {
	ID         string
	Segments   []media.Segment
	ScratchDir string
	Limit      int
	Reporter   Reporter
}

// Result is the final state of one segment.
type Result struct {
	Segment  media.Segment
	Status   Status
	Resumed  bool
	Attempts int
	Bytes    int64
	Err      error
}

type Pool struct {
	client    media.HTTPClient
	userAgent string
	retry     RetryConfig
	limit     int
}

func NewPool(cfg *config.Config, client media.HTTPClient) *Pool {
	limit := cfg.SegmentConcurrency
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Pool{
		client:    client,
		userAgent: cfg.UserAgent,
		retry: RetryConfig{
			MaxAttempts: cfg.SegmentAttempts,
			Delay:       cfg.SegmentRetryDelay,
		},
		limit: limit,
	}
}

// DownloadAll stores every segment at its LocalPath, running at most
// job.Limit fetches at once. Segments with a non-empty local file are reused.
// Results are aligned with job.Segments. Failed segments leave scratch state
// untouched so a rerun resumes.
func (p *Pool) DownloadAll(ctx context.Context, job Job) ([]Result, error) {
	if job.ScratchDir == "" {
		return nil, fmt.Errorf("job %s has no scratch dir", job.ID)
	}
	if err := os.MkdirAll(job.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	for i, seg := range job.Segments {
		if seg.Index != i {
			return nil, fmt.Errorf("job %s: segment at position %d has index %d", job.ID, i, seg.Index)
		}
	}

	limit := job.Limit
	if limit < 1 {
		limit = p.limit
	}
	rep := job.Reporter
	if rep == nil {
		rep = MultiReporter(nil)
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	total := len(job.Segments)
	results := make([]Result, total)
	var completed atomic.Int64
	rep.Report(Event{JobID: job.ID, Type: EventStart, Total: total})

	var g errgroup.Group
	g.SetLimit(limit)

	for i, seg := range job.Segments {
		if seg.LocalPath == "" {
			seg.LocalPath = filepath.Join(job.ScratchDir, media.SegmentFileName(seg.Index))
		}
		results[i] = Result{Segment: seg, Status: StatusPending}

		if stored(seg.LocalPath) {
			results[i].Status = StatusComplete
			results[i].Resumed = true
			metrics.SegmentDownloads.WithLabelValues("resumed").Inc()
			n := completed.Add(1)
			rep.Report(Event{JobID: job.ID, Type: EventProgress, Index: i, Completed: int(n), Total: total, Resumed: true})
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].Err = ctx.Err()
				return nil
			}
			results[i].Status = StatusInFlight
			results[i] = p.fetch(ctx, seg)

			switch results[i].Status {
			case StatusComplete:
				n := completed.Add(1)
				rep.Report(Event{JobID: job.ID, Type: EventProgress, Index: i, Completed: int(n), Total: total})
			case StatusFailedExhausted:
				rep.Report(Event{JobID: job.ID, Type: EventFailed, Index: i, Completed: int(completed.Load()), Total: total, Err: results[i].Err})
			}
			return nil
		})
	}
	_ = g.Wait()

	done := int(completed.Load())
	rep.Report(Event{JobID: job.ID, Type: EventDone, Completed: done, Total: total})

	if err := ctx.Err(); err != nil {
		return results, err
	}

	var errs []error
	for _, r := range results {
		if r.Status == StatusFailedExhausted {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("%d of %d segments failed: %w", len(errs), total, errors.Join(errs...))
	}
	return results, nil
}

func (p *Pool) fetch(ctx context.Context, seg media.Segment) Result {
	res := Result{Segment: seg, Status: StatusInFlight}

	n, attempts, err := Retry(ctx, p.retry, func() (int64, error) {
		return p.fetchOnce(ctx, seg)
	}, func(attempt int, err error) {
		if attempt < p.retry.MaxAttempts && ctx.Err() == nil {
			metrics.SegmentDownloads.WithLabelValues("retried").Inc()
			log.Printf("Segment %d attempt %d failed, retrying: %v", seg.Index, attempt, err)
		}
	})
	res.Attempts = attempts

	if err != nil {
		if ctx.Err() != nil {
			res.Status = StatusPending
			res.Err = ctx.Err()
			return res
		}
		metrics.SegmentDownloads.WithLabelValues("exhausted").Inc()
		res.Status = StatusFailedExhausted
		res.Err = fmt.Errorf("%w: segment %d (%s) after %d attempts: %v", media.ErrSegmentExhausted, seg.Index, seg.URI, attempts, err)
		return res
	}

	metrics.SegmentDownloads.WithLabelValues("downloaded").Inc()
	metrics.SegmentBytes.Add(float64(n))
	res.Status = StatusComplete
	res.Bytes = n
	return res
}

func (p *Pool) fetchOnce(ctx context.Context, seg media.Segment) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seg.URI, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return writeAtomic(seg.LocalPath, resp.Body)
}

// writeAtomic streams r into a temp file next to path and renames it into
// place, so path only ever exists complete and non-empty.
func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("write segment: %w", err)
	}
	if n == 0 {
		cleanup()
		return 0, errEmptyBody
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("close segment: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("finalize segment: %w", err)
	}
	return n, nil
}

// stored reports whether a previous run already left a usable segment.
func stored(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}
