package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vodgrab/config"
	"vodgrab/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const lessonPage = `<!doctype html>
<html><head><title>Skill Capped</title><script>var x = "css-1juj8ih";</script></head>
<body>
  <div class="header css-1rwlwny">
     intro to   AIM
  </div>
  <div class="css-1rwlwny">Other Course</div>
  <h1>
    <div class="css-1juj8ih">01</div>
    <div class="css-1juj8ih">  warmup </div>
    <div class="css-1juj8ih"></div>
    <div class="css-1juj8ih">routine</div>
  </h1>
</body></html>`

func newScraper() *HTMLScraper {
	return NewHTMLScraper(&config.Config{
		UserAgent:         "test-agent",
		ScrapeCourseClass: "css-1rwlwny",
		ScrapeTitleClass:  "css-1juj8ih",
	}, http.DefaultClient)
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrape_DetectsNames(t *testing.T) {
	srv := serve(t, http.StatusOK, lessonPage)

	course, video, err := newScraper().Scrape(context.Background(), srv.URL+"/course/x/y/abc123")
	require.NoError(t, err)
	assert.Equal(t, "Intro To Aim", course)
	assert.Equal(t, "01 Warmup Routine", video)
}

func TestScrape_UnknownVideo(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><body><span class="css-1rwlwny">Macro</span></body></html>`)

	course, video, err := newScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Macro", course)
	assert.Equal(t, UnknownVideo, video)
}

func TestScrape_NotDetected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no course element", http.StatusOK, `<html><body><div class="css-1juj8ih">Title</div></body></html>`},
		{"empty course element", http.StatusOK, `<div class="css-1rwlwny">   </div>`},
		{"server error", http.StatusInternalServerError, lessonPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			_, _, err := newScraper().Scrape(context.Background(), srv.URL)
			assert.True(t, errors.Is(err, media.ErrNamesNotDetected), "got %v", err)
		})
	}
}

func TestScrape_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()

	_, _, err := newScraper().Scrape(context.Background(), u)
	assert.True(t, errors.Is(err, media.ErrNamesNotDetected))
}

func TestExtract_CustomClasses(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<p class="a b course">jungle pathing</p><b class="t">part one</b>`))
	require.NoError(t, err)

	course, video, err := Extract(doc, "course", "t")
	require.NoError(t, err)
	assert.Equal(t, "Jungle Pathing", course)
	assert.Equal(t, "Part One", video)

	_, _, err = Extract(doc, "", "t")
	assert.Error(t, err)
}
