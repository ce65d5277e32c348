package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"vodgrab/config"
	"vodgrab/task"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	taskManager *task.Manager
	cfg         *config.Config
}

func NewHandler(tm *task.Manager, cfg *config.Config) *Handler {
	return &Handler{
		taskManager: tm,
		cfg:         cfg,
	}
}

// TaskRequest submits either one video or a batch of input lines.
// A lone url is a magic entry; course and video make it a manual one.
type TaskRequest struct {
	Course string   `json:"course"`
	Video  string   `json:"video"`
	URL    string   `json:"url"`
	Lines  []string `json:"lines"`
}

func (r TaskRequest) entries() ([]task.Entry, []string, error) {
	if len(r.Lines) > 0 {
		entries, warnings, err := task.ParseLines(strings.NewReader(strings.Join(r.Lines, "\n")))
		if err != nil {
			return nil, nil, err
		}
		msgs := make([]string, 0, len(warnings))
		for _, w := range warnings {
			msgs = append(msgs, w.Error())
		}
		return entries, msgs, nil
	}

	url := strings.TrimSpace(r.URL)
	course, video := strings.TrimSpace(r.Course), strings.TrimSpace(r.Video)
	if !strings.HasPrefix(url, "http") {
		return nil, nil, fmt.Errorf("url must be an http(s) link")
	}
	switch {
	case course == "" && video == "":
		return []task.Entry{{Mode: task.ModeMagic, SourceURL: url}}, nil, nil
	case course != "" && video != "":
		return []task.Entry{{Mode: task.ModeManual, SourceURL: url, Course: course, Video: video}}, nil, nil
	default:
		return nil, nil, fmt.Errorf("course and video must be given together")
	}
}

// handleCreateTask queues one task per valid entry.
func (h *Handler) handleCreateTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, warnings, err := req.entries()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid entries", "warnings": warnings})
		return
	}

	taskIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		t, err := h.taskManager.Submit(e)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":    "Failed to create task",
				"details":  err.Error(),
				"taskIds":  taskIDs,
				"warnings": warnings,
			})
			return
		}
		taskIDs = append(taskIDs, t.ID)
	}

	c.JSON(http.StatusAccepted, gin.H{"taskIds": taskIDs, "warnings": warnings})
}

// handleListTasks lists all tasks.
func (h *Handler) handleListTasks(c *gin.Context) {
	tasks := h.taskManager.List()
	for _, t := range tasks {
		h.buildDownloadURL(c, t)
	}
	c.JSON(http.StatusOK, tasks)
}

// buildDownloadURL points finished tasks at their file endpoint.
func (h *Handler) buildDownloadURL(c *gin.Context, t *task.Task) {
	if (t.Status != task.StatusCompleted && t.Status != task.StatusSkipped) || t.OutputPath == "" {
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	t.DownloadURL = fmt.Sprintf("%s://%s/api/v1/tasks/%s/file", scheme, c.Request.Host, t.ID)
}

// handleGetTaskStatus retrieves the status of a single task.
func (h *Handler) handleGetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	t, found := h.taskManager.Get(taskID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	h.buildDownloadURL(c, t)
	c.JSON(http.StatusOK, t)
}

// handleCancelTask cancels a task.
func (h *Handler) handleCancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	err := h.taskManager.Cancel(taskID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task cancellation requested"})
}

// handleGetFile serves the output of a finished task.
func (h *Handler) handleGetFile(c *gin.Context) {
	filePath, err := h.taskManager.GetFilePath(c.Param("taskId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(filePath, filepath.Base(filePath))
}
