// Package manifest fetches HLS media playlists and lists their segments.
package manifest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vodgrab/config"
	"vodgrab/media"

	"github.com/grafov/m3u8"
)

type Fetcher struct {
	client    media.HTTPClient
	userAgent string
}

func NewFetcher(cfg *config.Config, client media.HTTPClient) *Fetcher {
	return &Fetcher{client: client, userAgent: cfg.UserAgent}
}

// Fetch downloads the media playlist at manifestURL and returns its segments
// in playlist order with absolute URIs.
func (f *Fetcher) Fetch(ctx context.Context, manifestURL string) ([]media.Segment, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", media.ErrManifestUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", media.ErrManifestUnavailable, manifestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %s", media.ErrManifestUnavailable, manifestURL, resp.Status)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse: %v", media.ErrManifestUnavailable, manifestURL, err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("%w: %s is a master playlist", media.ErrManifestUnavailable, manifestURL)
	}
	pl := playlist.(*m3u8.MediaPlaylist)

	if encrypted(pl.Key) {
		return nil, fmt.Errorf("%w: %s uses encrypted segments", media.ErrManifestUnavailable, manifestURL)
	}

	var segments []media.Segment
	for _, seg := range pl.Segments {
		// Segments is a ring buffer with nil tail slots.
		if seg == nil {
			continue
		}
		if encrypted(seg.Key) {
			return nil, fmt.Errorf("%w: %s uses encrypted segments", media.ErrManifestUnavailable, manifestURL)
		}
		ref, err := url.Parse(strings.TrimSpace(seg.URI))
		if err != nil {
			return nil, fmt.Errorf("%w: bad segment uri %q: %v", media.ErrManifestUnavailable, seg.URI, err)
		}
		segments = append(segments, media.Segment{
			Index: len(segments),
			URI:   base.ResolveReference(ref).String(),
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", media.ErrEmptyManifest, manifestURL)
	}
	return segments, nil
}

func encrypted(k *m3u8.Key) bool {
	return k != nil && k.Method != "" && !strings.EqualFold(k.Method, "NONE")
}
