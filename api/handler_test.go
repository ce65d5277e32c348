package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vodgrab/config"
	"vodgrab/task"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner writes a small output file per entry.
type mockRunner struct {
	dir string
}

func (m *mockRunner) Run(ctx context.Context, e task.Entry, tr task.Tracker) (task.Outcome, error) {
	d := task.NewDownloadTask(e.SourceURL, e.Course, e.Video)
	tr.Resolved(d)
	out := filepath.Join(m.dir, d.FileBase()+".mp4")
	if err := os.WriteFile(out, []byte("video"), 0o644); err != nil {
		return task.Outcome{}, err
	}
	return task.Outcome{OutputPath: out, Bytes: 5}, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *config.Config, *task.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		MaxConcurrency: 1,
		AuthEnable:     false,
	}
	tm, err := task.NewManager(cfg, &mockRunner{dir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	tm.Start(ctx)

	return SetupRouter(tm, cfg), cfg, tm
}

func postTasks(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

type createResponse struct {
	TaskIDs  []string `json:"taskIds"`
	Warnings []string `json:"warnings"`
	Error    string   `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) createResponse {
	t.Helper()
	var resp createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func waitDone(t *testing.T, tm *task.Manager, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, ok := tm.Get(id)
		return ok && got.Status.Finished()
	}, time.Second, 5*time.Millisecond)
}

func TestHandleCreateTask(t *testing.T) {
	router, _, tm := setupTestRouter(t)

	w := postTasks(router, `{"course": "Intro To Aim", "video": "01 - Warmup Routine", "url": "https://www.skill-capped.com/lol/course/x/abc123"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	resp := decode(t, w)
	require.Len(t, resp.TaskIDs, 1)

	got, found := tm.Get(resp.TaskIDs[0])
	require.True(t, found)
	assert.Equal(t, task.ModeManual, got.Entry.Mode)
	assert.Equal(t, "Intro To Aim", got.Entry.Course)
}

func TestHandleCreateTask_MagicURL(t *testing.T) {
	router, _, tm := setupTestRouter(t)

	w := postTasks(router, `{"url": "https://www.skill-capped.com/lol/course/x/abc123"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	got, found := tm.Get(decode(t, w).TaskIDs[0])
	require.True(t, found)
	assert.Equal(t, task.ModeMagic, got.Entry.Mode)
}

func TestHandleCreateTask_Lines(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := postTasks(router, `{"lines": [
		"# comment",
		"Intro To Aim, 01 - Warmup Routine, https://example.com/a/abc123",
		"not,a,valid,,line",
		"https://example.com/b/def456"
	]}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decode(t, w)
	assert.Len(t, resp.TaskIDs, 2)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "line 3")
}

func TestHandleCreateTask_Invalid(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no url", `{"course": "A", "video": "B"}`},
		{"not http", `{"url": "ftp://example.com/abc"}`},
		{"course without video", `{"course": "A", "url": "https://example.com/abc"}`},
		{"no valid lines", `{"lines": ["garbage", "# only a comment"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postTasks(router, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleGetTaskStatus(t *testing.T) {
	router, _, tm := setupTestRouter(t)

	testTask, err := tm.Submit(task.Entry{Mode: task.ModeManual, Course: "Intro To Aim", Video: "01 - Warmup Routine", SourceURL: "https://example.com/a/abc123"})
	require.NoError(t, err)
	waitDone(t, tm, testTask.ID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tasks/"+testTask.ID, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var respTask task.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &respTask))
	assert.Equal(t, testTask.ID, respTask.ID)
	assert.Equal(t, task.StatusCompleted, respTask.Status)
	assert.Equal(t, "Warmup Routine", respTask.Download.Title)
	assert.Contains(t, respTask.DownloadURL, "/api/v1/tasks/"+testTask.ID+"/file")

	// Test Not Found
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/tasks/nonexistent", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetFile(t *testing.T) {
	router, _, tm := setupTestRouter(t)

	testTask, err := tm.Submit(task.Entry{Mode: task.ModeManual, Course: "C", Video: "Video", SourceURL: "https://example.com/a/abc123"})
	require.NoError(t, err)
	waitDone(t, tm, testTask.ID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tasks/"+testTask.ID+"/file", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Video.mp4")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/tasks/nonexistent/file", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCancelTask(t *testing.T) {
	router, _, tm := setupTestRouter(t)

	testTask, err := tm.Submit(task.Entry{Mode: task.ModeMagic, SourceURL: "https://example.com/a/abc123"})
	require.NoError(t, err)
	waitDone(t, tm, testTask.ID)

	// Finished tasks cannot be canceled.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/api/v1/tasks/"+testTask.ID+"/cancel", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router, cfg, _ := setupTestRouter(t)
	cfg.AuthEnable = true
	cfg.AuthKey = "secret"

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, cfg, _ := setupTestRouter(t)

	t.Run("Auth disabled", func(t *testing.T) {
		cfg.AuthEnable = false
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Auth enabled, no token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, wrong token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
		req.Header.Set("Authorization", "Bearer wrong-key")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, correct token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
