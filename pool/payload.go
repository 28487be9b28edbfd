package pool

import (
	"sync"
	"time"
)

// Payload is the mutable metadata attached to a pool entry. The ready flag
// is the only field with a contract: it is unset until the readiness of a
// multisignature transaction was computed.
type Payload struct {
	mu         sync.RWMutex
	ready      *bool
	receivedAt time.Time
	extra      map[string]interface{}
}

// NewPayload returns a payload of a transaction received at the given time.
func NewPayload(receivedAt time.Time) *Payload {
	return &Payload{receivedAt: receivedAt}
}

// SetReady stores the readiness verdict.
func (p *Payload) SetReady(ready bool) {
	p.mu.Lock()
	p.ready = &ready
	p.mu.Unlock()
}

// Ready returns the readiness verdict. known is false if it was never set.
func (p *Payload) Ready() (ready bool, known bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ready == nil {
		return false, false
	}
	return *p.ready, true
}

// IsReady returns true only if the transaction was declared ready.
func (p *Payload) IsReady() bool {
	ready, _ := p.Ready()
	return ready
}

// ReceivedAt returns the time the transaction entered the pool.
func (p *Payload) ReceivedAt() time.Time {
	return p.receivedAt
}

// Set attaches a free form value to the payload.
func (p *Payload) Set(key string, value interface{}) {
	p.mu.Lock()
	if p.extra == nil {
		p.extra = make(map[string]interface{})
	}
	p.extra[key] = value
	p.mu.Unlock()
}

// Get returns a free form value previously attached with Set.
func (p *Payload) Get(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.extra[key]
	return v, ok
}
