package pool

import (
	"sync"

	"github.com/google/btree"
	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// btreeDegree is the branching factor of the insertion order index.
	btreeDegree = 8
)

// Entry is a transaction together with its payload. A registry hands out
// the entry it owns, never a copy.
type Entry struct {
	Tx      *msignode.Transaction
	Payload *Payload

	seq uint64
}

var _ btree.Item = (*Entry)(nil)

// Less orders entries by insertion.
func (e *Entry) Less(than btree.Item) bool {
	return e.seq < than.(*Entry).seq
}

// Filter selects entries when listing a registry.
type Filter func(tx *msignode.Transaction, payload *Payload) bool

// Registry is a keyed, insertion ordered store of pool entries. It is safe
// for concurrent use.
type Registry struct {
	name        string
	newestFirst bool
	size        prometheus.Gauge

	mu    sync.RWMutex
	byID  map[string]*Entry
	order *btree.BTree
	seq   uint64
}

// NewRegistry returns an empty registry. When newestFirst is set, listing
// the registry without a filter returns the most recently added entries
// first.
func NewRegistry(name string, newestFirst bool) *Registry {
	return &Registry{
		name:        name,
		newestFirst: newestFirst,
		byID:        make(map[string]*Entry),
		order:       btree.New(btreeDegree),
	}
}

// Name returns the registry name.
func (r *Registry) Name() string {
	return r.name
}

// Has returns true if a transaction with the given id is in the registry.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	_, ok := r.byID[id]
	r.mu.RUnlock()
	return ok
}

// Get returns the entry of the transaction or nil.
func (r *Registry) Get(id string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// GetPayload returns the payload of the transaction or nil.
func (r *Registry) GetPayload(tx *msignode.Transaction) *Payload {
	if e := r.Get(tx.ID); e != nil {
		return e.Payload
	}
	return nil
}

// Add stores the transaction with its initial payload. Adding a transaction
// that is already present fails.
func (r *Registry) Add(tx *msignode.Transaction, payload *Payload) error {
	if tx.ID == "" {
		return errors.Wrap(errors.ErrEmpty, "transaction id")
	}
	if payload == nil {
		return errors.Wrap(errors.ErrEmpty, "payload")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[tx.ID]; ok {
		return errors.Wrapf(errors.ErrDuplicate, "transaction %s in %s", tx.ID, r.name)
	}
	r.seq++
	e := &Entry{Tx: tx, Payload: payload, seq: r.seq}
	r.byID[tx.ID] = e
	r.order.ReplaceOrInsert(e)
	r.updateSize()
	return nil
}

// Remove deletes the transaction. It returns false if it was not present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	r.order.Delete(e)
	r.updateSize()
	return true
}

// Count returns the number of entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// List returns the transactions accepted by the filter, in insertion order.
// Without a filter all transactions are returned, newest first if the
// registry was created so.
func (r *Registry) List(filter Filter) []*msignode.Transaction {
	entries := r.ListWithPayload(filter)
	txs := make([]*msignode.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = e.Tx
	}
	return txs
}

// ListWithPayload works like List but returns the whole entries.
func (r *Registry) ListWithPayload(filter Filter) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*Entry, 0, len(r.byID))
	collect := func(i btree.Item) bool {
		e := i.(*Entry)
		if filter == nil || filter(e.Tx, e.Payload) {
			res = append(res, e)
		}
		return true
	}
	if filter == nil && r.newestFirst {
		r.order.Descend(collect)
	} else {
		r.order.Ascend(collect)
	}
	return res
}

// updateSize must be called with the lock held.
func (r *Registry) updateSize() {
	if r.size != nil {
		r.size.Set(float64(len(r.byID)))
	}
}
