package task

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Mode says how an input line names its video.
type Mode string

const (
	// ModeManual lines carry "course, video, url".
	ModeManual Mode = "manual"
	// ModeMagic lines carry only a url; names are scraped from the page.
	ModeMagic Mode = "magic"
)

var (
	// ErrMalformedLine is returned for lines matching neither input form.
	ErrMalformedLine = errors.New("malformed input line")
	// errNoEntry marks blank and comment lines.
	errNoEntry = errors.New("no entry")
)

// Entry is one parsed input line.
type Entry struct {
	Mode      Mode   `json:"mode"`
	SourceURL string `json:"sourceUrl"`
	Course    string `json:"course,omitempty"`
	Video     string `json:"video,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// String identifies the entry in log lines.
func (e Entry) String() string {
	if e.Mode == ModeManual {
		return fmt.Sprintf("%s / %s (%s)", e.Course, e.Video, e.SourceURL)
	}
	return e.SourceURL
}

// ParseLine parses one task line. Blank lines and lines starting with '#'
// return ok=false and no error.
func ParseLine(line string) (e Entry, ok bool, err error) {
	e, err = parseLine(line)
	if errors.Is(err, errNoEntry) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func parseLine(line string) (Entry, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, errNoEntry
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		if isURL(parts[0]) {
			return Entry{Mode: ModeMagic, SourceURL: parts[0]}, nil
		}
	case 3:
		if parts[0] != "" && parts[1] != "" && isURL(parts[2]) {
			return Entry{Mode: ModeManual, Course: parts[0], Video: parts[1], SourceURL: parts[2]}, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http")
}

// ParseLines reads every entry from r. Malformed lines are returned as
// warnings and do not stop parsing.
func ParseLines(r io.Reader) ([]Entry, []error, error) {
	var (
		entries  []Entry
		warnings []error
	)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		e, ok, err := ParseLine(sc.Text())
		if err != nil {
			warnings = append(warnings, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		if !ok {
			continue
		}
		e.Line = n
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, warnings, err
	}
	return entries, warnings, nil
}
