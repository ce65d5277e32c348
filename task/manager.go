package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"vodgrab/config"
	"vodgrab/media"

	"github.com/lithammer/shortuuid/v4"
)

// Runner executes one entry end to end.
type Runner interface {
	Run(ctx context.Context, e Entry, tr Tracker) (Outcome, error)
}

type Manager struct {
	cfg            *config.Config
	mu             sync.RWMutex
	tasks          map[string]*Task
	order          []string
	taskQueue      chan *Task
	concurrencySem chan struct{}
	runner         Runner
}

func NewManager(cfg *config.Config, runner Runner) (*Manager, error) {
	if runner == nil {
		return nil, fmt.Errorf("task manager needs a runner")
	}
	m := &Manager{
		cfg:            cfg,
		tasks:          make(map[string]*Task),
		taskQueue:      make(chan *Task, 100), // Buffered queue
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
		runner:         runner,
	}
	return m, nil
}

func (m *Manager) Start(ctx context.Context) {
	log.Println("Task manager started. Concurrency limit:", m.cfg.MaxConcurrency)
	go m.retentionLoop(ctx)
	go m.workerLoop(ctx)
}

// workerLoop pulls tasks from the queue in submission order.
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker loop shutting down.")
			return
		case t := <-m.taskQueue:
			// Wait for a free processing slot
			select {
			case m.concurrencySem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(t *Task) {
				defer func() { <-m.concurrencySem }()
				m.processTask(ctx, t)
			}(t)
		}
	}
}

func (m *Manager) processTask(parentCtx context.Context, t *Task) {
	taskCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	m.mu.Lock()
	if t.Status == StatusCanceled {
		m.mu.Unlock()
		log.Printf("Task %s was canceled before processing.", t.ID)
		return
	}
	t.Status = StatusProcessing
	t.StartedAt = time.Now()
	t.cancelFunc = cancel
	entry := t.Entry
	m.mu.Unlock()

	log.Printf("Processing task %s: %s", t.ID, entry)
	out, err := m.runner.Run(taskCtx, entry, &taskTracker{m: m, id: t.ID})

	m.mu.Lock()
	defer m.mu.Unlock()
	t.cancelFunc = nil
	t.CompletedAt = time.Now()
	t.MuxLog = out.MuxLog

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		log.Printf("Task %s canceled.", t.ID)
		t.Status = StatusCanceled
		t.Error = "Task was canceled"
	case err != nil:
		log.Printf("Task %s failed: %v", t.ID, err)
		t.Status = StatusFailed
		t.Error = err.Error()
	case out.Skipped:
		log.Printf("Task %s skipped, output already exists: %s", t.ID, out.OutputPath)
		t.Status = StatusSkipped
		t.OutputPath = out.OutputPath
	default:
		log.Printf("Task %s completed successfully.", t.ID)
		t.Status = StatusCompleted
		t.OutputPath = out.OutputPath
	}
}

// retentionLoop forgets finished task records after TaskRetention.
// Output files are never touched.
func (m *Manager) retentionLoop(ctx context.Context) {
	if m.cfg.TaskRetention <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.TaskRetention / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention loop shutting down.")
			return
		case <-ticker.C:
			m.prune(time.Now().Add(-m.cfg.TaskRetention))
		}
	}
}

func (m *Manager) prune(before time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		t := m.tasks[id]
		if t.Status.Finished() && t.CompletedAt.Before(before) {
			delete(m.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed
}

func (m *Manager) Submit(e Entry) (*Task, error) {
	t := &Task{
		ID:        fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix()),
		Status:    StatusQueued,
		Entry:     e,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	select {
	case m.taskQueue <- t:
	default:
		m.mu.Unlock()
		return nil, fmt.Errorf("task queue is full")
	}
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	cp := *t
	m.mu.Unlock()

	log.Printf("Task %s submitted to queue.", t.ID)
	return &cp, nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(taskID string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// List returns snapshots in submission order.
func (m *Manager) List() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	taskList := make([]*Task, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.tasks[id]
		taskList = append(taskList, &cp)
	}
	return taskList
}

func (m *Manager) Cancel(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}

	switch t.Status {
	case StatusCompleted, StatusSkipped, StatusFailed, StatusCanceled:
		return fmt.Errorf("cannot cancel task in state: %s", t.Status)
	case StatusQueued:
		t.Status = StatusCanceled
		t.Error = "Canceled by user while in queue"
		t.CompletedAt = time.Now()
		log.Printf("Task %s marked as canceled in queue.", t.ID)
	case StatusProcessing:
		if t.cancelFunc == nil {
			return fmt.Errorf("task %s is processing but has no cancellation handle", t.ID)
		}
		t.cancelFunc()
		log.Printf("Cancellation signal sent to running task %s.", t.ID)
	}
	return nil
}

// GetFilePath returns the output of a completed or skipped task.
func (m *Manager) GetFilePath(taskID string) (string, error) {
	t, ok := m.Get(taskID)
	if !ok {
		return "", fmt.Errorf("task %s not found", taskID)
	}
	if (t.Status != StatusCompleted && t.Status != StatusSkipped) || t.OutputPath == "" {
		return "", fmt.Errorf("task %s has no output yet", taskID)
	}
	if _, err := os.Stat(t.OutputPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found")
	}
	return t.OutputPath, nil
}

func (m *Manager) update(taskID string, fn func(t *Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		fn(t)
	}
}

// taskTracker records pipeline progress on a managed task.
type taskTracker struct {
	m  *Manager
	id string
}

func (tt *taskTracker) Resolved(d DownloadTask) {
	tt.m.update(tt.id, func(t *Task) { t.Download = &d })
}

func (tt *taskTracker) Probed(c media.Candidate) {
	tt.m.update(tt.id, func(t *Task) {
		t.VideoID = c.VideoID
		t.Quality = c.Quality
	})
}

func (tt *taskTracker) Progress(done, total int) {
	tt.m.update(tt.id, func(t *Task) {
		// Pool events can arrive out of order.
		if total == t.SegmentsTotal && done < t.SegmentsDone {
			return
		}
		t.SegmentsDone = done
		t.SegmentsTotal = total
	})
}
