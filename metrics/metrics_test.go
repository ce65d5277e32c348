package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(ProbeRequests, SegmentDownloads, SegmentBytes, MuxDuration, Tasks, ActiveJobs)

	ProbeRequests.Reset()
	ProbeRequests.WithLabelValues("error").Inc()
	ProbeRequests.WithLabelValues("hit").Add(2)
	ActiveJobs.Set(1)
	MuxDuration.WithLabelValues("ffmpeg").Observe(1.5)

	expectedProbes := `# HELP vodgrab_probe_requests_total Manifest existence checks by result (hit, miss, error).
# TYPE vodgrab_probe_requests_total counter
vodgrab_probe_requests_total{result="error"} 1
vodgrab_probe_requests_total{result="hit"} 2
`
	if err := testutil.CollectAndCompare(ProbeRequests, strings.NewReader(expectedProbes)); err != nil {
		t.Fatalf("unexpected probe metric: %v", err)
	}

	expectedGauge := `# HELP vodgrab_active_jobs Segment download jobs currently running.
# TYPE vodgrab_active_jobs gauge
vodgrab_active_jobs 1
`
	if err := testutil.CollectAndCompare(ActiveJobs, strings.NewReader(expectedGauge)); err != nil {
		t.Fatalf("unexpected active jobs gauge: %v", err)
	}

	if n := testutil.CollectAndCount(MuxDuration); n != 1 {
		t.Fatalf("expected one mux histogram series, got %d", n)
	}
}
