package pool

import (
	"github.com/iov-one/msignode"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry names.
const (
	Queued      = "queued"
	Pending     = "pending"
	Unconfirmed = "unconfirmed"
)

// Pool groups the three registries a transaction moves through.
type Pool struct {
	Queued      *Registry
	Pending     *Registry
	Unconfirmed *Registry
}

// New returns an empty pool. Registry sizes are exported as metrics when a
// registerer is given.
func New(registerer prometheus.Registerer) (*Pool, error) {
	p := &Pool{
		Queued:      NewRegistry(Queued, false),
		Pending:     NewRegistry(Pending, true),
		Unconfirmed: NewRegistry(Unconfirmed, true),
	}
	if registerer == nil {
		return p, nil
	}

	sizes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "msignode",
		Subsystem: "pool",
		Name:      "transactions",
		Help:      "Number of transactions in a pool registry.",
	}, []string{"registry"})
	if err := registerer.Register(sizes); err != nil {
		return nil, err
	}
	for _, r := range p.registries() {
		r.size = sizes.WithLabelValues(r.name)
	}
	return p, nil
}

func (p *Pool) registries() []*Registry {
	return []*Registry{p.Queued, p.Pending, p.Unconfirmed}
}

// InPool returns true if the transaction is in any registry.
func (p *Pool) InPool(id string) bool {
	for _, r := range p.registries() {
		if r.Has(id) {
			return true
		}
	}
	return false
}

// Find returns the entry of the transaction together with the name of the
// registry holding it. A nil entry is returned if it is not in the pool.
func (p *Pool) Find(id string) (*Entry, string) {
	for _, r := range p.registries() {
		if e := r.Get(id); e != nil {
			return e, r.Name()
		}
	}
	return nil, ""
}

// ListReady returns the pending entries that collected enough signatures,
// oldest first. A pool manager promotes only those.
func (p *Pool) ListReady() []*Entry {
	return p.Pending.ListWithPayload(func(_ *msignode.Transaction, payload *Payload) bool {
		return payload.IsReady()
	})
}
