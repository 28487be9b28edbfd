package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of the relay engine. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queueLen prometheus.Gauge
	tasks    *prometheus.CounterVec
	peerReqs *prometheus.CounterVec
	exhausts *prometheus.CounterVec
}

// NewMetrics creates and registers the relay engine metrics.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "msignode",
			Subsystem: "broadcast",
			Name:      "queue_length",
			Help:      "Number of queued broadcast tasks.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msignode",
			Subsystem: "broadcast",
			Name:      "tasks_total",
			Help:      "Queued tasks released or dropped as irrelevant.",
		}, []string{"outcome"}),
		peerReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msignode",
			Subsystem: "broadcast",
			Name:      "peer_requests_total",
			Help:      "Requests sent to peers by kind and outcome.",
		}, []string{"kind", "outcome"}),
		exhausts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msignode",
			Subsystem: "broadcast",
			Name:      "relay_exhausted_total",
			Help:      "Items not relayed because their relay budget is exhausted.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.queueLen, m.tasks, m.peerReqs, m.exhausts} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setQueueLen(n int) {
	if m != nil {
		m.queueLen.Set(float64(n))
	}
}

func (m *Metrics) released(n int) {
	if m != nil {
		m.tasks.WithLabelValues("released").Add(float64(n))
	}
}

func (m *Metrics) dropped(n int) {
	if m != nil {
		m.tasks.WithLabelValues("dropped").Add(float64(n))
	}
}

func (m *Metrics) peerRequest(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.peerReqs.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) exhausted(kind string) {
	if m != nil {
		m.exhausts.WithLabelValues(kind).Inc()
	}
}
