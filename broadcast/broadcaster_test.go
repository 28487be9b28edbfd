package broadcast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/nodetest"
	"github.com/iov-one/msignode/p2p"
	"github.com/iov-one/msignode/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type sent struct {
	peer p2p.Peer
	req  p2p.RequestHandler
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sent
	fail  map[string]bool
	panic bool
	delay time.Duration

	running    int32
	maxRunning int32
}

func (s *fakeSender) Send(ctx context.Context, peer p2p.Peer, req p2p.RequestHandler) ([]byte, error) {
	n := atomic.AddInt32(&s.running, 1)
	defer atomic.AddInt32(&s.running, -1)
	for {
		max := atomic.LoadInt32(&s.maxRunning)
		if n <= max || atomic.CompareAndSwapInt32(&s.maxRunning, max, n) {
			break
		}
	}
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panic {
		panic("sender")
	}
	s.calls = append(s.calls, sent{peer: peer, req: req})
	if s.fail[peer.String()] {
		return nil, errors.ErrPeerUnreachable.New("test")
	}
	return []byte("null"), nil
}

func (s *fakeSender) sentCalls() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.calls...)
}

type fakePeers struct {
	mu       sync.Mutex
	peers    []p2p.Peer
	criteria []p2p.Criteria
}

func (r *fakePeers) List(c p2p.Criteria) []p2p.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.criteria = append(r.criteria, c)
	if c.Limit > 0 && c.Limit < len(r.peers) {
		return r.peers[:c.Limit]
	}
	return r.peers
}

func (r *fakePeers) Update(p2p.Peer)                {}
func (r *fakePeers) MarkUnhealthy(p2p.Peer, string) {}

func testPeers(n int) []p2p.Peer {
	peers := make([]p2p.Peer, n)
	for i := range peers {
		peers[i] = p2p.Peer{IP: fmt.Sprintf("10.0.0.%d", i+1), Port: 5555}
	}
	return peers
}

type trackerFunc func(string) bool

func (fn trackerFunc) IsPendingConfirmation(id string) bool { return fn(id) }

type fixture struct {
	pool   *pool.Pool
	peers  *fakePeers
	sender *fakeSender
	b      *Broadcaster
}

func newFixture(t *testing.T, conf Config, tracker ConfirmationTracker, metrics *Metrics) *fixture {
	t.Helper()
	p, err := pool.New(nil)
	require.NoError(t, err)
	f := &fixture{
		pool:   p,
		peers:  &fakePeers{peers: testPeers(3)},
		sender: &fakeSender{fail: make(map[string]bool)},
	}
	f.b = NewBroadcaster(conf, p, tracker, f.peers, f.sender, metrics, nil)
	return f
}

func pendingTx(t *testing.T, p *pool.Pool, amount uint64) *msignode.Transaction {
	t.Helper()
	tx := nodetest.SendTx(nodetest.Key(1), amount)
	require.NoError(t, p.Pending.Add(tx, pool.NewPayload(time.Now())))
	return tx
}

func sigTask(txID string, b byte) msignode.SignatureTask {
	return msignode.SignatureTask{TransactionID: txID, Signature: msignode.HexBytes{b}}
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil, nil)
	req := &p2p.PostSignatures{}

	require.Equal(t, 1, f.b.Enqueue(Params{}, Options{Immediate: true}, req))
	require.Equal(t, 2, f.b.Enqueue(Params{}, Options{}, req))
	require.Equal(t, 2, f.b.QueueLen())
	for _, task := range f.b.queue {
		require.False(t, task.Options.Immediate)
	}
}

func TestMaxRelays(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil, nil)

	relays := -4
	require.False(t, f.b.MaxRelays(&relays))
	require.Equal(t, 1, relays)
	require.False(t, f.b.MaxRelays(&relays))
	require.False(t, f.b.MaxRelays(&relays))
	require.Equal(t, 3, relays)

	// The budget stays exhausted and the counter never moves back.
	for i := 0; i < 3; i++ {
		require.True(t, f.b.MaxRelays(&relays))
		require.Equal(t, 3, relays)
	}
}

func TestBroadcastSignatureRespectsRelayBudget(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	f := newFixture(t, DefaultConfig(), nil, metrics)

	task := sigTask("1", 1)
	task.Relays = 2
	require.True(t, f.b.BroadcastSignature(task))
	require.Equal(t, 1, f.b.QueueLen())
	queued := f.b.queue[0].Request.(*p2p.PostSignatures)
	require.Equal(t, 3, queued.Signatures[0].Relays)

	task.Relays = 3
	require.False(t, f.b.BroadcastSignature(task))
	require.False(t, f.b.BroadcastTransaction(nodetest.SendTx(nodetest.Key(1), 1), 3))
	require.Equal(t, 1, f.b.QueueLen())

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.exhausts.WithLabelValues(p2p.KindPostSignatures)))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.queueLen))
}

func TestReleaseDropsConfirmedTransactions(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil, nil)
	tx := pendingTx(t, f.pool, 1)

	require.True(t, f.b.BroadcastSignature(sigTask(tx.ID, 1)))
	// The transaction is confirmed before the queue is released.
	require.True(t, f.pool.Pending.Remove(tx.ID))

	require.NoError(t, f.b.ReleaseQueue(context.Background()))
	require.Empty(t, f.sender.sentCalls())
	require.Equal(t, 0, f.b.QueueLen())
}

func TestReleaseKeepsPendingConfirmation(t *testing.T) {
	tracker := trackerFunc(func(id string) bool { return id == "7" })
	f := newFixture(t, DefaultConfig(), tracker, nil)

	f.b.BroadcastSignature(sigTask("7", 1))
	f.b.BroadcastSignature(sigTask("8", 1))
	require.NoError(t, f.b.ReleaseQueue(context.Background()))

	calls := f.sender.sentCalls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		require.Equal(t, []string{"7"}, c.req.Subjects())
	}
}

func TestReleaseSquashesWithinLimit(t *testing.T) {
	conf := DefaultConfig()
	conf.ReleaseLimit = 3
	f := newFixture(t, conf, nil, nil)
	tx := pendingTx(t, f.pool, 1)
	other := pendingTx(t, f.pool, 2)

	f.b.BroadcastSignature(sigTask(tx.ID, 1))
	f.b.BroadcastSignature(sigTask(tx.ID, 1))
	f.b.BroadcastTransaction(other, 0)
	f.b.BroadcastSignature(sigTask(tx.ID, 2))
	f.b.BroadcastSignature(sigTask("gone", 2))

	require.NoError(t, f.b.ReleaseQueue(context.Background()))
	require.Equal(t, 1, f.b.QueueLen(), "one relevant task over the limit stays queued")

	calls := f.sender.sentCalls()
	// Two squashed requests, each sent to three peers.
	require.Len(t, calls, 6)
	byKind := make(map[string]p2p.RequestHandler)
	for _, c := range calls {
		byKind[c.req.Kind()] = c.req
	}
	require.Len(t, byKind[p2p.KindPostSignatures].(*p2p.PostSignatures).Signatures, 1)
	require.Len(t, byKind[p2p.KindPostTransactions].(*p2p.PostTransactions).Transactions, 1)

	require.NoError(t, f.b.ReleaseQueue(context.Background()))
	require.Equal(t, 0, f.b.QueueLen())
	require.Len(t, f.sender.sentCalls(), 9)
}

func TestReleaseEmptyQueue(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil, nil)
	require.NoError(t, f.b.ReleaseQueue(context.Background()))
	require.Empty(t, f.peers.criteria, "peers must not be queried")
}

func TestSquashIsOrderIndependent(t *testing.T) {
	a := Task{Request: &p2p.PostSignatures{Signatures: []msignode.SignatureTask{sigTask("1", 1), sigTask("2", 1)}}}
	b := Task{Request: &p2p.PostSignatures{Signatures: []msignode.SignatureTask{sigTask("2", 1), sigTask("3", 1)}}}
	c := Task{Request: &p2p.PostSignatures{Signatures: []msignode.SignatureTask{sigTask("1", 1), sigTask("1", 2)}}}

	forward := Squash([]Task{a, b, c})
	backward := Squash([]Task{c, b, a})
	require.Len(t, forward, 1)
	require.Equal(t, forward, backward)
	require.Equal(t, []string{"1", "1", "2", "3"}, forward[0].Request.Subjects())
}

func TestSquashGroupsByKind(t *testing.T) {
	tx := nodetest.SendTx(nodetest.Key(1), 1)
	tasks := []Task{
		{Request: &p2p.PostTransactions{Transactions: []p2p.TransactionEntry{{Transaction: tx}}}},
		{Request: &p2p.PostSignatures{Signatures: []msignode.SignatureTask{sigTask("1", 1)}}},
		{Request: &p2p.PostTransactions{Transactions: []p2p.TransactionEntry{{Transaction: tx, Relays: 1}}}},
	}
	squashed := Squash(tasks)
	require.Len(t, squashed, 2)
	require.Equal(t, p2p.KindPostTransactions, squashed[0].Request.Kind())
	require.Equal(t, p2p.KindPostSignatures, squashed[1].Request.Kind())
	entries := squashed[0].Request.(*p2p.PostTransactions).Transactions
	require.Len(t, entries, 1)
	require.Equal(t, 1, entries[0].Relays)
}

func TestBroadcastBoundedParallelism(t *testing.T) {
	conf := DefaultConfig()
	conf.ParallelLimit = 2
	f := newFixture(t, conf, nil, nil)
	f.sender.delay = 5 * time.Millisecond
	peers := testPeers(7)
	f.sender.fail[peers[1].String()] = true

	req := &p2p.PostSignatures{Signatures: []msignode.SignatureTask{sigTask("1", 1)}}
	require.NoError(t, f.b.Broadcast(context.Background(), Params{Peers: peers}, req))

	require.Len(t, f.sender.sentCalls(), 7, "a failing peer must not stop the others")
	require.True(t, atomic.LoadInt32(&f.sender.maxRunning) <= 2)
	require.Empty(t, f.peers.criteria, "explicit peers must not be queried")
}

func TestBroadcastPeerSelection(t *testing.T) {
	conf := DefaultConfig()
	conf.BroadcastLimit = 10
	conf.MaxPeers = 4
	f := newFixture(t, conf, nil, nil)
	req := &p2p.PostSignatures{}

	require.NoError(t, f.b.Broadcast(context.Background(), Params{Limit: 2, Broadhash: "bh"}, req))
	require.NoError(t, f.b.Broadcast(context.Background(), Params{}, req))

	require.Equal(t, []p2p.Criteria{
		{Limit: 2, Broadhash: "bh"},
		{Limit: 4},
	}, f.peers.criteria)
}

func TestBroadcastCapsExplicitPeers(t *testing.T) {
	conf := DefaultConfig()
	conf.MaxPeers = 3
	f := newFixture(t, conf, nil, nil)
	peers := testPeers(5)

	req := &p2p.PostSignatures{Signatures: []msignode.SignatureTask{sigTask("1", 1)}}
	require.NoError(t, f.b.Broadcast(context.Background(), Params{Peers: peers}, req))

	calls := f.sender.sentCalls()
	require.Len(t, calls, 3)
	got := make(map[string]bool)
	for _, c := range calls {
		got[c.peer.String()] = true
	}
	for _, p := range peers[:3] {
		require.True(t, got[p.String()], "peer %s", p)
	}
}

func TestBroadcastTransactionQueuesSnapshot(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil, nil)
	tx := pendingTx(t, f.pool, 1)
	tx.Signatures = []msignode.HexBytes{{1}}

	require.True(t, f.b.BroadcastTransaction(tx, 0))
	tx.Signatures = append(tx.Signatures, msignode.HexBytes{2})

	entries := f.b.queue[0].Request.(*p2p.PostTransactions).Transactions
	require.Len(t, entries, 1)
	require.NotSame(t, tx, entries[0].Transaction)
	require.Equal(t, tx.ID, entries[0].ID)
	require.Equal(t, []msignode.HexBytes{{1}}, entries[0].Signatures)
}

func TestRunSurvivesPanics(t *testing.T) {
	conf := DefaultConfig()
	conf.Interval = 2 * time.Millisecond
	f := newFixture(t, conf, nil, nil)
	f.sender.panic = true
	tx := pendingTx(t, f.pool, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.b.Run(ctx)
		close(done)
	}()

	f.b.BroadcastSignature(sigTask(tx.ID, 1))
	require.Eventually(t, func() bool { return f.b.QueueLen() == 0 }, time.Second, time.Millisecond)

	// The loop keeps working after a panicking round.
	f.sender.mu.Lock()
	f.sender.panic = false
	f.sender.mu.Unlock()
	f.b.BroadcastSignature(sigTask(tx.ID, 2))
	require.Eventually(t, func() bool { return len(f.sender.sentCalls()) >= 3 }, time.Second, time.Millisecond)

	cancel()
	<-done
}
