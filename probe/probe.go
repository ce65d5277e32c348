// Package probe finds the platform video id hidden in a page URL.
package probe

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"vodgrab/config"
	"vodgrab/media"
	"vodgrab/metrics"

	"golang.org/x/time/rate"
)

// maxCandidates is how many trailing path segments are tried as ids.
const maxCandidates = 3

// Prober checks a predictable manifest URL for each (id, tier) pair.
type Prober struct {
	client    media.HTTPClient
	base      string
	userAgent string
	limiter   *rate.Limiter
}

func New(cfg *config.Config, client media.HTTPClient) *Prober {
	limit := rate.Inf
	if cfg.ProbeRate > 0 {
		limit = rate.Limit(cfg.ProbeRate)
	}
	return &Prober{
		client:    client,
		base:      strings.TrimSuffix(cfg.ProbeBase, "/"),
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Candidates returns the last three path segments of sourceURL that look
// like ids (non-empty, no '.'), rightmost first.
func Candidates(sourceURL string) ([]string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p == "" || strings.Contains(p, ".") {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) > maxCandidates {
		parts = parts[len(parts)-maxCandidates:]
	}

	out := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		out = append(out, parts[i])
	}
	return out, nil
}

// ManifestURL builds the manifest location for an id and tier.
func (p *Prober) ManifestURL(videoID string, q media.QualityTier) string {
	return fmt.Sprintf("%s/api/video/%s/%s.m3u8", p.base, url.PathEscape(videoID), q)
}

// Probe returns the first (id, tier) pair whose manifest exists. The search
// stops at the first hit, so a flaky endpoint can yield a lower tier than
// the best one available.
func (p *Prober) Probe(ctx context.Context, sourceURL string, order []media.QualityTier) (*media.Candidate, error) {
	if len(order) == 0 {
		order = media.DefaultQualityOrder
	}
	ids, err := Candidates(sourceURL)
	if err != nil {
		return nil, err
	}

	log.Printf("Probing %s for a video id (candidates %v)", sourceURL, ids)
	for _, id := range ids {
		for _, q := range order {
			manifestURL := p.ManifestURL(id, q)
			ok, err := p.exists(ctx, manifestURL)
			if err != nil {
				return nil, err
			}
			if ok {
				log.Printf("Found video id %s at quality %s (%s)", id, q, q.Label())
				return &media.Candidate{VideoID: id, ManifestURL: manifestURL, Quality: q}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w for %s", media.ErrProbeNotFound, sourceURL)
}

// exists issues a HEAD request. Transport errors count as "absent" but are
// logged and counted; only context cancellation is returned.
func (p *Prober) exists(ctx context.Context, manifestURL string) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, manifestURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		metrics.ProbeRequests.WithLabelValues("error").Inc()
		log.Printf("Warning: probe request to %s failed, treating as absent: %v", manifestURL, err)
		return false, nil
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ProbeRequests.WithLabelValues("miss").Inc()
		return false, nil
	}
	metrics.ProbeRequests.WithLabelValues("hit").Inc()
	return true, nil
}
