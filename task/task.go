package task

import (
	"context"
	"time"

	"vodgrab/media"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// DownloadTask is one fully named unit of work.
type DownloadTask struct {
	SourceURL   string `json:"sourceUrl"`
	CourseTitle string `json:"courseTitle"`
	VideoTitle  string `json:"videoTitle"`
	Title       string `json:"title"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

// NewDownloadTask splits a leading track number off video, e.g.
// "01 - Warmup Routine" becomes title "Warmup Routine", track 1.
func NewDownloadTask(sourceURL, course, video string) DownloadTask {
	title, track := ParseTitleMetadata(video)
	return DownloadTask{
		SourceURL:   sourceURL,
		CourseTitle: course,
		VideoTitle:  video,
		Title:       title,
		TrackNumber: track,
	}
}

// CourseDir is the sanitized directory name for the course.
func (d DownloadTask) CourseDir() string { return SanitizeFilename(d.CourseTitle) }

// FileBase is the sanitized output file name without extension.
func (d DownloadTask) FileBase() string { return SanitizeFilename(d.Title) }

// Metadata returns the tags stamped into the output file.
func (d DownloadTask) Metadata() media.Metadata {
	return media.Metadata{
		Album: d.CourseTitle,
		Title: d.Title,
		Track: d.TrackNumber,
	}
}

// Outcome describes how a task ended when it did not fail.
type Outcome struct {
	Skipped    bool
	OutputPath string
	Bytes      int64
	MuxLog     string
}

// Tracker receives state changes from a running task.
type Tracker interface {
	Resolved(d DownloadTask)
	Probed(c media.Candidate)
	Progress(done, total int)
}

// NopTracker discards all updates.
type NopTracker struct{}

func (NopTracker) Resolved(DownloadTask) {}
func (NopTracker) Probed(media.Candidate) {}
func (NopTracker) Progress(done, total int) {}

type Task struct {
	ID            string             `json:"id"`
	Status        Status             `json:"status"`
	Entry         Entry              `json:"entry"`
	Download      *DownloadTask      `json:"download,omitempty"`
	VideoID       string             `json:"videoId,omitempty"`
	Quality       media.QualityTier  `json:"quality,omitempty"`
	SegmentsDone  int                `json:"segmentsDone"`
	SegmentsTotal int                `json:"segmentsTotal"`
	OutputPath    string             `json:"outputPath,omitempty"`
	DownloadURL   string             `json:"downloadUrl,omitempty"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	StartedAt     time.Time          `json:"startedAt,omitempty"`
	CompletedAt   time.Time          `json:"completedAt,omitempty"`
	MuxLog        string             `json:"muxLog,omitempty"`
	cancelFunc    context.CancelFunc
}
