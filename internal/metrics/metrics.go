package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for watch-time enforcement and video lookups.
// It is built once in main and injected; nothing here is package-global.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec // status, reason
	Heartbeats       *prometheus.CounterVec // result: accepted | rejected | limit_reached
	TamperRejections *prometheus.CounterVec // reason: duration | rate
	LimitBlocks      *prometheus.CounterVec // phase: start | heartbeat
	MetadataLookups  *prometheus.CounterVec // platform, result: hit | fetched | error
	BreakerState     *prometheus.GaugeVec   // name
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watch_sessions_started_total",
			Help: "Total number of watch sessions created by chip scans",
		}),
		SessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_sessions_ended_total",
			Help: "Total number of watch sessions moved to a terminal state",
		}, []string{"status", "reason"}),
		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_heartbeats_total",
			Help: "Total number of heartbeats processed",
		}, []string{"result"}),
		TamperRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_tamper_rejections_total",
			Help: "Total number of playback positions rejected as implausible",
		}, []string{"reason"}),
		LimitBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_limit_reached_total",
			Help: "Total number of requests stopped by an exhausted daily limit",
		}, []string{"phase"}),
		MetadataLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "video_metadata_lookups_total",
			Help: "Total number of third-party video metadata lookups",
		}, []string{"platform", "result"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "video_metadata_breaker_state",
			Help: "Circuit breaker state per platform (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted,
			m.SessionsEnded,
			m.Heartbeats,
			m.TamperRejections,
			m.LimitBlocks,
			m.MetadataLookups,
			m.BreakerState,
		)
	}

	return m
}

// NewNop returns unregistered collectors, for tests and tools.
func NewNop() *Metrics {
	return New(nil)
}
