package sigs

import (
	"strconv"

	"github.com/iov-one/msignode/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts admission outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	admissions *prometheus.CounterVec
}

// NewMetrics creates and registers the admission metrics.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msignode",
			Subsystem: "sigs",
			Name:      "admissions_total",
			Help:      "Signatures processed by the admission, by result code.",
		}, []string{"code"}),
	}
	if err := registerer.Register(m.admissions); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(err error) {
	if m == nil {
		return
	}
	code, _ := errors.Info(err, false)
	m.admissions.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}
