/*
Package broadcast relays transactions and signatures to other peers.

Requests are not sent right away. They are queued and released periodically:
requests that became irrelevant are dropped, the remaining ones are squashed
into a single request per kind and sent to a selection of peers in parallel.
*/
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/p2p"
	"github.com/iov-one/msignode/pool"
	"github.com/tendermint/tendermint/libs/log"
	"golang.org/x/sync/errgroup"
)

// Config of the relay engine.
type Config struct {
	// Interval between two queue releases.
	Interval time.Duration
	// ReleaseLimit is the maximum number of queued tasks released at once.
	ReleaseLimit int
	// ParallelLimit is the maximum number of peers contacted at once.
	ParallelLimit int
	// RelayLimit is the number of hops an item travels.
	RelayLimit int
	// BroadcastLimit is the number of peers a request is sent to.
	BroadcastLimit int
	// MaxPeers caps any peer selection.
	MaxPeers int
}

// DefaultConfig returns the configuration used by a node unless told
// otherwise.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Second,
		ReleaseLimit:   25,
		ParallelLimit:  20,
		RelayLimit:     3,
		BroadcastLimit: 25,
		MaxPeers:       100,
	}
}

// Params select the receivers of a broadcast.
type Params struct {
	// Peers, if not empty, are the exact receivers.
	Peers []p2p.Peer
	// Limit of peers queried from the registry. Zero means the configured
	// broadcast limit.
	Limit     int
	Broadhash string
}

// Options of a queued task.
type Options struct {
	// Immediate tasks are never dropped by the release filter.
	Immediate bool
}

// Task is a queued request.
type Task struct {
	Params  Params
	Options Options
	Request p2p.RequestHandler
}

// Sender delivers a request to a single peer.
type Sender interface {
	Send(ctx context.Context, peer p2p.Peer, req p2p.RequestHandler) ([]byte, error)
}

// ConfirmationTracker knows about items that left the pool but are not yet
// confirmed.
type ConfirmationTracker interface {
	IsPendingConfirmation(txID string) bool
}

// Broadcaster is the relay engine. It is safe for concurrent use.
type Broadcaster struct {
	conf    Config
	pool    *pool.Pool
	tracker ConfirmationTracker
	peers   p2p.PeerRegistry
	sender  Sender
	metrics *Metrics
	logger  log.Logger

	mu    sync.Mutex
	queue []Task
}

// NewBroadcaster returns a relay engine with an empty queue. tracker and
// metrics are optional.
func NewBroadcaster(
	conf Config,
	p *pool.Pool,
	tracker ConfirmationTracker,
	peers p2p.PeerRegistry,
	sender Sender,
	metrics *Metrics,
	logger log.Logger,
) *Broadcaster {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Broadcaster{
		conf:    conf,
		pool:    p,
		tracker: tracker,
		peers:   peers,
		sender:  sender,
		metrics: metrics,
		logger:  logger.With("module", "broadcast"),
	}
}

// Enqueue queues the request and returns the new queue length. Queued
// tasks are never immediate.
func (b *Broadcaster) Enqueue(params Params, options Options, req p2p.RequestHandler) int {
	options.Immediate = false

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, Task{Params: params, Options: options, Request: req})
	b.metrics.setQueueLen(len(b.queue))
	return len(b.queue)
}

// QueueLen returns the number of queued tasks.
func (b *Broadcaster) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// MaxRelays returns true if the relay budget of an item is exhausted.
// Otherwise the relay count is incremented. A negative count is reset
// first.
func (b *Broadcaster) MaxRelays(relays *int) bool {
	if *relays < 0 {
		*relays = 0
	}
	if *relays >= b.conf.RelayLimit {
		return true
	}
	*relays++
	return false
}

// BroadcastSignature queues a signature unless its relay budget is
// exhausted. It returns true if the signature was queued.
func (b *Broadcaster) BroadcastSignature(task msignode.SignatureTask) bool {
	if b.MaxRelays(&task.Relays) {
		b.metrics.exhausted(p2p.KindPostSignatures)
		return false
	}
	b.Enqueue(Params{}, Options{}, &p2p.PostSignatures{Signatures: []msignode.SignatureTask{task}})
	return true
}

// BroadcastTransaction queues a snapshot of the transaction unless its relay
// budget is exhausted. It returns true if the transaction was queued. The
// caller must not be mutating tx concurrently.
func (b *Broadcaster) BroadcastTransaction(tx *msignode.Transaction, relays int) bool {
	if b.MaxRelays(&relays) {
		b.metrics.exhausted(p2p.KindPostTransactions)
		return false
	}
	b.Enqueue(Params{}, Options{}, &p2p.PostTransactions{
		Transactions: []p2p.TransactionEntry{{Transaction: tx.Snapshot(), Relays: relays}},
	})
	return true
}

// ReleaseQueue drops irrelevant tasks, takes up to the release limit of the
// remaining ones and broadcasts them squashed.
func (b *Broadcaster) ReleaseQueue(ctx context.Context) error {
	taken := b.take()
	if len(taken) == 0 {
		return nil
	}

	squashed := Squash(taken)
	b.logger.Debug("releasing queue", "taken", len(taken), "squashed", len(squashed))
	b.metrics.released(len(taken))

	var errs error
	for _, t := range squashed {
		if err := b.Broadcast(ctx, t.Params, t.Request); err != nil {
			errs = errors.Append(errs, errors.Wrap(err, t.Request.Kind()))
		}
	}
	return errs
}

// take removes from the queue the tasks to release.
func (b *Broadcaster) take() []Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}

	kept := make([]Task, 0, len(b.queue))
	for _, t := range b.queue {
		if t, ok := b.filter(t); ok {
			kept = append(kept, t)
		}
	}
	if dropped := len(b.queue) - len(kept); dropped > 0 {
		b.logger.Debug("dropped irrelevant tasks", "count", dropped)
		b.metrics.dropped(dropped)
	}

	n := len(kept)
	if b.conf.ReleaseLimit > 0 && n > b.conf.ReleaseLimit {
		n = b.conf.ReleaseLimit
	}
	taken := kept[:n:n]
	b.queue = append([]Task(nil), kept[n:]...)
	b.metrics.setQueueLen(len(b.queue))
	return taken
}

// filter returns the task restricted to its relevant items. Immediate tasks
// and tasks without subjects are always relevant.
func (b *Broadcaster) filter(t Task) (Task, bool) {
	if t.Options.Immediate || len(t.Request.Subjects()) == 0 {
		return t, true
	}
	req := t.Request.Filter(b.isRelevant)
	if req == nil {
		return t, false
	}
	t.Request = req
	return t, true
}

func (b *Broadcaster) isRelevant(txID string) bool {
	if b.pool.InPool(txID) {
		return true
	}
	return b.tracker != nil && b.tracker.IsPendingConfirmation(txID)
}

// Squash merges tasks of the same request kind. One task per kind is
// returned, in order of first appearance, carrying the parameters of the
// first task of that kind.
func Squash(tasks []Task) []Task {
	var (
		order  []string
		groups = make(map[string][]Task)
	)
	for _, t := range tasks {
		kind := t.Request.Kind()
		if _, ok := groups[kind]; !ok {
			order = append(order, kind)
		}
		groups[kind] = append(groups[kind], t)
	}

	res := make([]Task, 0, len(order))
	for _, kind := range order {
		group := groups[kind]
		others := make([]p2p.RequestHandler, 0, len(group)-1)
		for _, t := range group[1:] {
			others = append(others, t.Request)
		}
		res = append(res, Task{
			Params:  group[0].Params,
			Options: Options{Immediate: false},
			Request: group[0].Request.Merge(others...),
		})
	}
	return res
}

// Broadcast sends the request to the peers selected by params. A failure of
// a single peer is logged and does not affect the others.
func (b *Broadcaster) Broadcast(ctx context.Context, params Params, req p2p.RequestHandler) error {
	peers := b.selectPeers(params)
	if len(peers) == 0 {
		b.logger.Debug("no peers to broadcast to", "kind", req.Kind())
		return nil
	}

	var g errgroup.Group
	if b.conf.ParallelLimit > 0 {
		g.SetLimit(b.conf.ParallelLimit)
	}
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("peer request panicked", "peer", peer, "panic", r)
				}
			}()
			if _, err := b.sender.Send(ctx, peer, req); err != nil {
				b.logger.Debug("cannot broadcast to peer", "peer", peer, "kind", req.Kind(), "err", err)
				b.metrics.peerRequest(req.Kind(), false)
				return nil
			}
			b.metrics.peerRequest(req.Kind(), true)
			return nil
		})
	}
	return g.Wait()
}

func (b *Broadcaster) selectPeers(params Params) []p2p.Peer {
	if len(params.Peers) != 0 {
		if b.conf.MaxPeers > 0 && len(params.Peers) > b.conf.MaxPeers {
			return params.Peers[:b.conf.MaxPeers]
		}
		return params.Peers
	}
	limit := params.Limit
	if limit <= 0 || limit > b.conf.BroadcastLimit {
		limit = b.conf.BroadcastLimit
	}
	if b.conf.MaxPeers > 0 && limit > b.conf.MaxPeers {
		limit = b.conf.MaxPeers
	}
	return b.peers.List(p2p.Criteria{Limit: limit, Broadhash: params.Broadhash})
}

// Run releases the queue at the configured interval until the context is
// cancelled. A failed release never stops the loop.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.conf.Interval)
	defer ticker.Stop()
	b.logger.Info("relay engine started", "interval", b.conf.Interval)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("relay engine stopped")
			return
		case <-ticker.C:
			b.release(ctx)
		}
	}
}

func (b *Broadcaster) release(ctx context.Context) {
	var err error
	defer func() {
		if err != nil {
			b.logger.Error("queue release failed", "err", err)
		}
	}()
	defer errors.Recover(&err)
	err = b.ReleaseQueue(ctx)
}
