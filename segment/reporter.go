package segment

import (
	"io"
	"log"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// EventType defines what happened to a job.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventFailed   EventType = "failed"
	EventDone     EventType = "done"
)

// Event is a progress update from the pool. Completed counts segments that
// are stored, in whatever order they finished.
type Event struct {
	JobID     string
	Type      EventType
	Index     int
	Completed int
	Total     int
	Resumed   bool
	Err       error
}

// Reporter publishes pool events. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// MultiReporter fans events out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// LogReporter logs start, failures, completion and every 10% step.
type LogReporter struct {
	mu   sync.Mutex
	last map[string]int
}

func NewLogReporter() *LogReporter {
	return &LogReporter{last: make(map[string]int)}
}

func (r *LogReporter) Report(e Event) {
	switch e.Type {
	case EventStart:
		log.Printf("    - Downloading %d segments for %s", e.Total, e.JobID)
	case EventFailed:
		log.Printf("    [!] Segment %d of %s failed: %v", e.Index, e.JobID, e.Err)
	case EventDone:
		r.mu.Lock()
		delete(r.last, e.JobID)
		r.mu.Unlock()
		log.Printf("    - %s: %d/%d segments stored", e.JobID, e.Completed, e.Total)
	case EventProgress:
		if e.Total == 0 {
			return
		}
		step := e.Completed * 10 / e.Total
		r.mu.Lock()
		defer r.mu.Unlock()
		if step > r.last[e.JobID] {
			r.last[e.JobID] = step
			log.Printf("    Progress %s: %d/%d segments (%d%%)", e.JobID, e.Completed, e.Total, step*10)
		}
	}
}

// BarReporter draws one terminal progress bar per running job.
type BarReporter struct {
	out  io.Writer
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func NewBarReporter(out io.Writer) *BarReporter {
	return &BarReporter{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

func (r *BarReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case EventStart:
		r.bars[e.JobID] = progressbar.NewOptions(e.Total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription("    Progress"),
			progressbar.OptionSetItsString("seg"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWidth(30),
		)
	case EventProgress:
		if bar, ok := r.bars[e.JobID]; ok {
			_ = bar.Set(e.Completed)
		}
	case EventDone:
		if bar, ok := r.bars[e.JobID]; ok {
			if e.Completed == e.Total {
				_ = bar.Finish()
			}
			io.WriteString(r.out, "\n")
			delete(r.bars, e.JobID)
		}
	}
}
