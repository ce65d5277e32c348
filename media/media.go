// Package media holds the value types passed between the download stages.
package media

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
)

// HTTPClient is the subset of *http.Client used by the network stages.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// QualityTier names one of the platform's fixed renditions.
type QualityTier string

const (
	Tier4500 QualityTier = "4500" // 1080p60, high bitrate
	Tier2500 QualityTier = "2500" // 1080p60
	Tier1500 QualityTier = "1500" // 720p30
	Tier500  QualityTier = "500"  // 480p30
)

// DefaultQualityOrder prefers the highest bitrate first.
var DefaultQualityOrder = []QualityTier{Tier4500, Tier2500, Tier1500, Tier500}

var qualityProfiles = map[string][]QualityTier{
	"best":      {Tier4500, Tier2500, Tier1500, Tier500},
	"standard":  {Tier2500, Tier1500, Tier4500, Tier500},
	"datasaver": {Tier1500, Tier500, Tier2500, Tier4500},
	"low":       {Tier500, Tier1500, Tier2500, Tier4500},
}

func (q QualityTier) String() string { return string(q) }

// Valid reports whether q is one of the four known tiers.
func (q QualityTier) Valid() bool {
	switch q {
	case Tier4500, Tier2500, Tier1500, Tier500:
		return true
	}
	return false
}

// Label returns a human readable description of the tier.
func (q QualityTier) Label() string {
	switch q {
	case Tier4500:
		return "1080p60 (high bitrate)"
	case Tier2500:
		return "1080p60"
	case Tier1500:
		return "720p30"
	case Tier500:
		return "480p30"
	}
	return "unknown"
}

// ParseQualityOrder accepts a profile name (best, standard, datasaver, low)
// or a comma separated permutation of all four tiers. Empty means best.
func ParseQualityOrder(s string) ([]QualityTier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return append([]QualityTier(nil), DefaultQualityOrder...), nil
	}
	if order, ok := qualityProfiles[strings.ReplaceAll(s, " ", "")]; ok {
		return append([]QualityTier(nil), order...), nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != len(DefaultQualityOrder) {
		return nil, fmt.Errorf("quality order %q must list all of 4500,2500,1500,500 or name a profile", s)
	}
	seen := make(map[QualityTier]bool, len(parts))
	order := make([]QualityTier, 0, len(parts))
	for _, p := range parts {
		q := QualityTier(strings.TrimSpace(p))
		if !q.Valid() {
			return nil, fmt.Errorf("unknown quality tier %q", p)
		}
		if seen[q] {
			return nil, fmt.Errorf("quality tier %s listed twice", q)
		}
		seen[q] = true
		order = append(order, q)
	}
	return order, nil
}

// Candidate is a confirmed manifest location for a source page.
type Candidate struct {
	VideoID     string      `json:"videoId"`
	ManifestURL string      `json:"manifestUrl"`
	Quality     QualityTier `json:"quality"`
}

// Segment is one media segment of a playlist. Index defines play order.
type Segment struct {
	Index     int
	URI       string
	LocalPath string
}

// SegmentFileName returns the zero padded file name for a segment index.
func SegmentFileName(index int) string {
	return fmt.Sprintf("seg_%05d.ts", index)
}

// AttachPaths sets LocalPath on every segment to its index derived path in dir.
func AttachPaths(segments []Segment, dir string) {
	for i := range segments {
		segments[i].LocalPath = filepath.Join(dir, SegmentFileName(segments[i].Index))
	}
}

// SortByIndex returns a copy of segments in play order.
func SortByIndex(segments []Segment) []Segment {
	out := append([]Segment(nil), segments...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Metadata is stamped into the output container.
type Metadata struct {
	Album string
	Title string
	Track int // 0 means no track number
}
