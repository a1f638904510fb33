package metrics

import "github.com/prometheus/client_golang/prometheus"

var activeSessionsDesc = prometheus.NewDesc(
	"safely_report_active_sessions",
	"Number of in-memory respondent sessions currently held by the session manager.",
	nil, nil,
)

// SessionCounter is the subset of *session.Manager this collector
// depends on, kept narrow so tests can inject a stand-in.
type SessionCounter interface {
	Count() int
}

// SessionCollector implements prometheus.Collector for the live session
// count, the same pull-on-Gather shape as the teacher's ClaimCollector.
type SessionCollector struct {
	sessions SessionCounter
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector(s SessionCounter) *SessionCollector {
	return &SessionCollector{sessions: s}
}

// Describe sends the metric descriptor to the channel.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeSessionsDesc
}

// Collect emits the current session count as a gauge metric.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		activeSessionsDesc,
		prometheus.GaugeValue,
		float64(c.sessions.Count()),
	)
}
