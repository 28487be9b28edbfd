package sigs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iov-one/msignode/accounts"
	"github.com/iov-one/msignode/broadcast"
	"github.com/iov-one/msignode/crypto"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/nodetest"
	"github.com/iov-one/msignode/nodetest/assert"
	"github.com/iov-one/msignode/p2p"
	"github.com/iov-one/msignode/pool"
	"github.com/iov-one/msignode/sequence"
	"github.com/stretchr/testify/require"
)

type singlePeer struct{ p2p.Peer }

func (s singlePeer) List(p2p.Criteria) []p2p.Peer { return []p2p.Peer{s.Peer} }
func (singlePeer) Update(p2p.Peer)                {}
func (singlePeer) MarkUnhealthy(p2p.Peer, string) {}

// encodingSender encodes every request the way the peer transport does.
type encodingSender struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (s *encodingSender) Send(ctx context.Context, peer p2p.Peer, req p2p.RequestHandler) ([]byte, error) {
	body, err := req.Body(false)
	if err != nil {
		return nil, err
	}
	if _, err := req.Body(true); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	return []byte("null"), nil
}

// Relaying a transaction and admitting its signatures must be safe to run
// at the same time. Run with -race.
func TestAdmissionWhileRelayingTransaction(t *testing.T) {
	owner := nodetest.Key(1)
	members := nodetest.Keys(10, 3)

	p, err := pool.New(nil)
	require.NoError(t, err)
	sender := &encodingSender{}
	b := broadcast.NewBroadcaster(broadcast.DefaultConfig(), p, nil,
		singlePeer{p2p.Peer{IP: "10.0.0.1", Port: 5555}}, sender, nil, nil)

	seq := sequence.New(nil)
	seq.Start()
	defer seq.Stop()
	store := accounts.NewMemStore(nodetest.MultisigAccount(owner, 2, members...))
	adm := NewAdmission(p.Pending, store, crypto.Ed25519Verifier{}, seq, b, nil, nil)

	// A relayed transaction enters the queued registry and the relay queue
	// as one instance, then gets promoted to pending.
	tx := nodetest.SendTx(owner, 7)
	require.NoError(t, p.Queued.Add(tx, pool.NewPayload(time.Now())))
	require.True(t, b.BroadcastTransaction(tx, 0))
	require.True(t, p.Queued.Remove(tx.ID))
	require.NoError(t, p.Pending.Add(tx, pool.NewPayload(time.Now())))

	var (
		wg                   sync.WaitGroup
		admitErr, releaseErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, m := range members {
			admitErr = errors.Append(admitErr, adm.OnNewSignature(context.Background(), task(tx, m)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			releaseErr = errors.Append(releaseErr, b.ReleaseQueue(context.Background()))
		}
	}()
	wg.Wait()
	assert.Nil(t, admitErr)
	assert.Nil(t, releaseErr)

	require.Len(t, tx.Signatures, 3)
	require.True(t, p.Pending.GetPayload(tx).IsReady())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.NotEmpty(t, sender.bodies)
	entries, err := p2p.DecodeTransactions(sender.bodies[0], false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, tx.ID, entries[0].ID)
	require.Empty(t, entries[0].Signatures, "relayed copy was taken before admission")
}
