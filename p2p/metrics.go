package p2p

import (
	"strconv"
	"time"

	"github.com/iov-one/msignode/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of the peer transport. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inbound  *prometheus.CounterVec
}

// NewMetrics creates and registers the transport metrics.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msignode",
			Subsystem: "p2p",
			Name:      "requests_total",
			Help:      "Outbound peer requests by kind and result code.",
		}, []string{"kind", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "msignode",
			Subsystem: "p2p",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound peer requests, retry included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msignode",
			Subsystem: "p2p",
			Name:      "inbound_total",
			Help:      "Inbound peer requests by route and HTTP status.",
		}, []string{"route", "status"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inbound} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(kind string, err error, took time.Duration) {
	if m == nil {
		return
	}
	code, _ := errors.Info(err, false)
	m.requests.WithLabelValues(kind, strconv.FormatUint(uint64(code), 10)).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) observeInbound(route string, status int) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
