package pipeline

import (
	"context"
	"log"
	"time"

	"vodgrab/task"

	"github.com/dustin/go-humanize"
)

// Failure is one entry that did not produce an output.
type Failure struct {
	Entry task.Entry
	Err   error
}

// Summary tallies a batch run.
type Summary struct {
	Completed []string
	Skipped   []string
	Failed    []Failure
	// NotRun counts entries left untouched after cancellation.
	NotRun   int
	Bytes    int64
	Duration time.Duration
}

// OK reports whether every entry finished without error.
func (s Summary) OK() bool {
	return len(s.Failed) == 0 && s.NotRun == 0
}

// Log writes the end-of-run report.
func (s Summary) Log() {
	log.Println("==================================================")
	log.Printf("Finished in %s: %d completed, %d skipped, %d failed (%s downloaded)",
		s.Duration.Round(time.Second), len(s.Completed), len(s.Skipped), len(s.Failed), humanize.Bytes(uint64(s.Bytes)))
	if s.NotRun > 0 {
		log.Printf("Interrupted: %d entries not started", s.NotRun)
	}
	for _, f := range s.Failed {
		log.Printf("  [!] %s: %v", f.Entry.SourceURL, f.Err)
	}
	log.Println("==================================================")
}

// RunBatch runs entries one after another in input order. A failed entry
// is recorded and the batch moves on; only cancellation stops it early.
func (p *Pipeline) RunBatch(ctx context.Context, entries []task.Entry) Summary {
	start := time.Now()
	var s Summary

	for i, e := range entries {
		if ctx.Err() != nil {
			s.NotRun = len(entries) - i
			break
		}
		log.Printf("--- Task %d/%d ---", i+1, len(entries))

		out, err := p.Run(ctx, e, nil)
		switch {
		case err != nil:
			log.Printf("[!] Failed %s: %v", e.SourceURL, err)
			s.Failed = append(s.Failed, Failure{Entry: e, Err: err})
		case out.Skipped:
			s.Skipped = append(s.Skipped, out.OutputPath)
		default:
			s.Completed = append(s.Completed, out.OutputPath)
			s.Bytes += out.Bytes
		}
	}

	s.Duration = time.Since(start)
	s.Log()
	return s
}
