package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ProbeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodgrab",
			Name:      "probe_requests_total",
			Help:      "Manifest existence checks by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	SegmentDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodgrab",
			Name:      "segment_downloads_total",
			Help:      "Segment outcomes (downloaded, resumed, retried, exhausted).",
		},
		[]string{"result"},
	)

	SegmentBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vodgrab",
			Name:      "segment_bytes_total",
			Help:      "Bytes written to segment files.",
		},
	)

	MuxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vodgrab",
			Name:      "mux_duration_seconds",
			Help:      "Time spent assembling the output file.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"strategy"},
	)

	Tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vodgrab",
			Name:      "tasks_total",
			Help:      "Finished tasks by outcome (completed, skipped, failed).",
		},
		[]string{"outcome"},
	)

	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vodgrab",
			Name:      "active_jobs",
			Help:      "Segment download jobs currently running.",
		},
	)
)

// Register registers the vodgrab metrics into the default registry.
func Register() {
	prometheus.MustRegister(ProbeRequests, SegmentDownloads, SegmentBytes, MuxDuration, Tasks, ActiveJobs)
}
