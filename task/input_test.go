package task

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Entry
		ok   bool
		err  bool
	}{
		{
			name: "manual",
			line: "Intro To Aim, 01 - Warmup Routine, https://example.com/courses/aim/video/abc123",
			want: Entry{Mode: ModeManual, Course: "Intro To Aim", Video: "01 - Warmup Routine", SourceURL: "https://example.com/courses/aim/video/abc123"},
			ok:   true,
		},
		{
			name: "magic",
			line: "  https://example.com/courses/aim/video/abc123  ",
			want: Entry{Mode: ModeMagic, SourceURL: "https://example.com/courses/aim/video/abc123"},
			ok:   true,
		},
		{name: "blank", line: "   "},
		{name: "comment", line: "# Paste links here"},
		{name: "too many fields", line: "not,a,valid,,line", err: true},
		{name: "bare word", line: "hello", err: true},
		{name: "two fields", line: "Course, https://example.com/v/1", err: true},
		{name: "manual without url", line: "Course, Video, example.com/v/1", err: true},
		{name: "manual with empty video", line: "Course, , https://example.com/v/1", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseLine(tt.line)
			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedLine))
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLines(t *testing.T) {
	input := strings.Join([]string{
		"# course list",
		"Intro To Aim, 01 - Warmup Routine, https://example.com/courses/aim/video/abc123",
		"",
		"not,a,valid,,line",
		"https://example.com/courses/aim/video/def456",
	}, "\n")

	entries, warnings, err := ParseLines(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Line)
	assert.Equal(t, ModeManual, entries[0].Mode)
	assert.Equal(t, 5, entries[1].Line)
	assert.Equal(t, ModeMagic, entries[1].Mode)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "line 4")
	assert.True(t, errors.Is(warnings[0], ErrMalformedLine))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Intro To Aim", SanitizeFilename("  Intro To Aim "))
	assert.Equal(t, "What is this", SanitizeFilename(`What: is "this"?`))
	assert.Equal(t, "ab", SanitizeFilename("a/b"))
	assert.Equal(t, "Ending", SanitizeFilename("Ending..."))
	assert.Equal(t, "", SanitizeFilename(`<>:"/\|?*`))
}

func TestParseTitleMetadata(t *testing.T) {
	tests := []struct {
		in    string
		title string
		track int
	}{
		{"01 - Warmup Routine", "Warmup Routine", 1},
		{"12. Advanced Tracking", "Advanced Tracking", 12},
		{"3-Flicks", "Flicks", 3},
		{"Warmup Routine", "Warmup Routine", 0},
		{"00 - Preface", "Preface", 0},
		{"2024", "2024", 0},
		{"7 - ", "7 -", 0},
	}
	for _, tt := range tests {
		title, track := ParseTitleMetadata(tt.in)
		assert.Equal(t, tt.title, title, tt.in)
		assert.Equal(t, tt.track, track, tt.in)
	}
}

func TestNewDownloadTask(t *testing.T) {
	d := NewDownloadTask("https://example.com/courses/aim/video/abc123", "Intro To Aim", "01 - Warmup Routine")

	assert.Equal(t, "Intro To Aim", d.CourseDir())
	assert.Equal(t, "Warmup Routine", d.FileBase())
	meta := d.Metadata()
	assert.Equal(t, "Intro To Aim", meta.Album)
	assert.Equal(t, "Warmup Routine", meta.Title)
	assert.Equal(t, 1, meta.Track)
}
