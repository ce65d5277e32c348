package task

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	illegalFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trackPrefix          = regexp.MustCompile(`^(\d+)[ .-]+(.*)`)
)

// SanitizeFilename removes characters Windows refuses in file names and
// strips surrounding spaces and trailing dots.
func SanitizeFilename(name string) string {
	clean := illegalFilenameChars.ReplaceAllString(name, "")
	return strings.TrimRight(strings.TrimSpace(clean), ".")
}

// ParseTitleMetadata extracts a track number from titles like "01 - Intro".
// It returns the title without the prefix and the track, 0 when absent.
func ParseTitleMetadata(video string) (string, int) {
	m := trackPrefix.FindStringSubmatch(video)
	if m == nil {
		return strings.TrimSpace(video), 0
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		return strings.TrimSpace(video), 0
	}
	track, err := strconv.Atoi(m[1])
	if err != nil || track < 1 {
		track = 0
	}
	return title, track
}
