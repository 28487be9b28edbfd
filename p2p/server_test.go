package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/nodetest"
	"github.com/iov-one/msignode/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type recordingReceiver struct {
	mu    sync.Mutex
	tasks []msignode.SignatureTask
	err   error
	panic bool
}

func (r *recordingReceiver) OnNewSignature(ctx context.Context, task msignode.SignatureTask) error {
	if r.panic {
		panic("receiver")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return r.err
}

type recordingTxRelayer struct {
	relayed map[string]int
}

func (r *recordingTxRelayer) BroadcastTransaction(tx *msignode.Transaction, relays int) bool {
	r.relayed[tx.ID] = relays
	return true
}

type serverFixture struct {
	receiver *recordingReceiver
	relayer  *recordingTxRelayer
	registry *memRegistry
	pool     *pool.Pool
	router   http.Handler
}

func newServerFixture(t *testing.T, gatherer prometheus.Gatherer) *serverFixture {
	t.Helper()
	p, err := pool.New(nil)
	require.NoError(t, err)
	f := &serverFixture{
		receiver: &recordingReceiver{},
		relayer:  &recordingTxRelayer{relayed: make(map[string]int)},
		registry: newMemRegistry(),
		pool:     p,
	}
	own := testHeaders("1.1.0")
	own.Nonce = "fedcba9876543210"
	srv := NewServer(ServerConfig{Headers: own, Compat: testCompat()},
		f.receiver, p, f.relayer, f.registry, nil, nil)
	f.router = srv.Router(gatherer)
	return f
}

func (f *serverFixture) do(path string, headers Headers, body []byte) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	headers.Write(r.Header)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestServerPostSignatures(t *testing.T) {
	tasks := []msignode.SignatureTask{
		{TransactionID: "1", Signature: msignode.HexBytes{1}, Relays: 1},
		{TransactionID: "2", Signature: msignode.HexBytes{2}},
	}

	for _, protobuf := range []bool{false, true} {
		f := newServerFixture(t, nil)
		// Admission failures are not reported to the peer.
		f.receiver.err = errors.ErrTransactionNotFound

		body, err := EncodeSignatures(tasks, protobuf)
		require.NoError(t, err)
		req := &PostSignatures{}
		w := f.do(req.Path(protobuf), testHeaders("1.0.0"), body)

		require.Equal(t, http.StatusOK, w.Code)
		if protobuf {
			require.Empty(t, w.Body.Bytes())
		} else {
			require.Equal(t, "null", w.Body.String())
		}
		require.Equal(t, tasks, f.receiver.tasks)

		_, err = ParseHeaders(w.Header())
		require.NoError(t, err, "response must carry node headers")

		require.Len(t, f.registry.updated, 1)
		require.Equal(t, "192.0.2.1", f.registry.updated[0].IP)
		require.Equal(t, "1.0.0", f.registry.updated[0].Version)
	}
}

func TestServerRejectsIncompatiblePeers(t *testing.T) {
	otherNet := testHeaders("1.0.0")
	otherNet.Nethash = strings.Repeat("cd", 32)
	ownNonce := testHeaders("1.1.0")
	ownNonce.Nonce = "fedcba9876543210"

	cases := map[string]struct {
		headers    Headers
		wantStatus int
		wantCode   uint32
	}{
		"invalid headers": {
			headers:    Headers{Nethash: testNethash},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrInput.Code(),
		},
		"other network": {
			headers:    otherNet,
			wantStatus: http.StatusForbidden,
			wantCode:   errors.ErrIncompatiblePeer.Code(),
		},
		"outdated": {
			headers:    testHeaders("0.1.0"),
			wantStatus: http.StatusForbidden,
			wantCode:   errors.ErrIncompatiblePeer.Code(),
		},
		"own nonce": {
			headers:    ownNonce,
			wantStatus: http.StatusForbidden,
			wantCode:   errors.ErrUnauthorized.Code(),
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newServerFixture(t, nil)
			body, err := EncodeSignatures([]msignode.SignatureTask{{TransactionID: "1"}}, false)
			require.NoError(t, err)

			w := f.do("/peer/signatures", tc.headers, body)
			require.Equal(t, tc.wantStatus, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.False(t, resp.Success)
			require.Equal(t, tc.wantCode, resp.Code)
			require.Empty(t, f.receiver.tasks)
			require.Empty(t, f.registry.updated)
		})
	}
}

func TestServerMalformedBody(t *testing.T) {
	f := newServerFixture(t, nil)
	w := f.do("/peer/signatures", testHeaders("1.0.0"), []byte("{"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("/v2/peer/transactions", testHeaders("1.1.0"), []byte{0xff, 0xff})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerRecoversFromPanic(t *testing.T) {
	f := newServerFixture(t, nil)
	f.receiver.panic = true
	body, err := EncodeSignatures([]msignode.SignatureTask{{TransactionID: "1"}}, false)
	require.NoError(t, err)

	w := f.do("/peer/signatures", testHeaders("1.0.0"), body)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, errors.ErrPanic.Code(), resp.Code)
}

func TestServerPostTransactions(t *testing.T) {
	sender := nodetest.Key(1)
	known := nodetest.SendTx(sender, 1)
	fresh := nodetest.SendTx(sender, 2)

	f := newServerFixture(t, nil)
	require.NoError(t, f.pool.Pending.Add(known, pool.NewPayload(time.Now())))

	body, err := EncodeTransactions([]TransactionEntry{
		{Transaction: known, Relays: 1},
		{Transaction: fresh, Relays: 2},
	}, true)
	require.NoError(t, err)

	w := f.do("/v2/peer/transactions", testHeaders("1.1.0"), body)
	require.Equal(t, http.StatusOK, w.Code)

	require.True(t, f.pool.Queued.Has(fresh.ID))
	require.False(t, f.pool.Queued.Has(known.ID))
	require.Equal(t, map[string]int{fresh.ID: 2}, f.relayer.relayed)
}

func TestServerMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := pool.New(reg)
	require.NoError(t, err)
	f := newServerFixture(t, reg)

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "msignode_pool_transactions")
}
