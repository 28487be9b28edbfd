package p2p

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	maxRequestSize          = 2 << 20
	gracefulShutdownTimeout = 10 * time.Second
)

// SignatureReceiver admits co-signatures received from peers.
type SignatureReceiver interface {
	OnNewSignature(ctx context.Context, task msignode.SignatureTask) error
}

// TransactionRelayer propagates transactions to other peers.
type TransactionRelayer interface {
	BroadcastTransaction(tx *msignode.Transaction, relays int) bool
}

// ServerConfig configures the inbound peer API.
type ServerConfig struct {
	Headers Headers
	Compat  *Compatibility
	// Debug exposes internal error details in responses.
	Debug bool
}

// Server serves the inbound peer API.
type Server struct {
	conf     ServerConfig
	sigs     SignatureReceiver
	pool     *pool.Pool
	relayer  TransactionRelayer
	registry PeerRegistry
	metrics  *Metrics
	logger   log.Logger
	now      func() time.Time
}

// NewServer returns the inbound peer API. registry, relayer and metrics are
// optional.
func NewServer(
	conf ServerConfig,
	sigs SignatureReceiver,
	p *pool.Pool,
	relayer TransactionRelayer,
	registry PeerRegistry,
	metrics *Metrics,
	logger log.Logger,
) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{
		conf:     conf,
		sigs:     sigs,
		pool:     p,
		relayer:  relayer,
		registry: registry,
		metrics:  metrics,
		logger:   logger.With("module", "p2p"),
		now:      time.Now,
	}
}

// Router returns the HTTP handler of the peer API. Metrics collected by
// gatherer are exposed under /metrics when it is not nil.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	router := mux.NewRouter()
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	peer := router.NewRoute().Subrouter()
	peer.Use(s.recoveryMiddleware)
	peer.Use(s.headersMiddleware)
	peer.HandleFunc("/peer/signatures", s.makeHandler("signatures", s.postSignatures(false))).Methods(http.MethodPost)
	peer.HandleFunc("/v2/peer/signatures", s.makeHandler("signatures", s.postSignatures(true))).Methods(http.MethodPost)
	peer.HandleFunc("/peer/transactions", s.makeHandler("transactions", s.postTransactions(false))).Methods(http.MethodPost)
	peer.HandleFunc("/v2/peer/transactions", s.makeHandler("transactions", s.postTransactions(true))).Methods(http.MethodPost)
	return router
}

// Start serves the peer API on the given address and returns a function that
// gracefully shuts it down.
func (s *Server) Start(listenAddr string, gatherer prometheus.Gatherer) func() {
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: s.Router(gatherer),
	}
	go func() {
		s.logger.Info("serving peer API", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("peer API stopped", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("cannot shut down peer API", "err", err)
		}
	}
}

type handlerFunc func(r *http.Request, body []byte) (status int, response []byte, err error)

type errorResponse struct {
	Success bool   `json:"success"`
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (s *Server) makeHandler(route string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
		if err != nil {
			s.sendErr(w, route, http.StatusRequestEntityTooLarge, errors.Wrap(errors.ErrInput, err.Error()))
			return
		}
		status, response, err := fn(r, body)
		if err != nil {
			s.sendErr(w, route, status, err)
			return
		}
		s.metrics.observeInbound(route, status)
		w.WriteHeader(status)
		if len(response) != 0 {
			_, _ = w.Write(response)
		}
	}
}

func (s *Server) sendErr(w http.ResponseWriter, route string, status int, err error) {
	s.metrics.observeInbound(route, status)
	code, msg := errors.Info(err, s.conf.Debug)
	raw, _ := json.Marshal(errorResponse{Success: false, Code: code, Message: msg})
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// headersMiddleware rejects requests of incompatible nodes and adds this
// node headers to every response.
func (s *Server) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.conf.Headers.Write(w.Header())

		headers, err := ParseHeaders(r.Header)
		if err != nil {
			s.logger.Debug("invalid request headers", "remote", r.RemoteAddr, "err", err)
			s.sendErr(w, "headers", http.StatusBadRequest, err)
			return
		}
		if headers.Nonce == s.conf.Headers.Nonce {
			s.sendErr(w, "headers", http.StatusForbidden, errors.Wrap(errors.ErrUnauthorized, "request made by this node"))
			return
		}
		if _, err := s.conf.Compat.Check(headers); err != nil {
			s.logger.Debug("incompatible peer request", "remote", r.RemoteAddr, "err", err)
			s.sendErr(w, "headers", http.StatusForbidden, err)
			return
		}
		if s.registry != nil {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				s.registry.Update(Peer{IP: host}.WithHeaders(headers, s.now()))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("peer request panicked", "path", r.URL.Path, "panic", rec)
				s.sendErr(w, "panic", http.StatusInternalServerError, errors.ErrPanic.Newf("%v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// okResponse returns the body of a successful response.
func okResponse(protobuf bool) []byte {
	if protobuf {
		return nil
	}
	return []byte("null")
}

// postSignatures admits every received signature. A failure of a single
// signature never fails the request.
func (s *Server) postSignatures(protobuf bool) handlerFunc {
	return func(r *http.Request, body []byte) (int, []byte, error) {
		tasks, err := DecodeSignatures(body, protobuf)
		if err != nil {
			return http.StatusBadRequest, nil, err
		}
		for _, t := range tasks {
			if err := s.sigs.OnNewSignature(r.Context(), t); err != nil {
				s.logger.Debug("signature not admitted", "tx", t.TransactionID, "err", err)
			}
		}
		return http.StatusOK, okResponse(protobuf), nil
	}
}

// postTransactions queues every transaction not yet in the pool and relays
// it further.
func (s *Server) postTransactions(protobuf bool) handlerFunc {
	return func(r *http.Request, body []byte) (int, []byte, error) {
		entries, err := DecodeTransactions(body, protobuf)
		if err != nil {
			return http.StatusBadRequest, nil, err
		}
		for _, e := range entries {
			if s.pool.InPool(e.ID) {
				continue
			}
			if err := s.pool.Queued.Add(e.Transaction, pool.NewPayload(s.now())); err != nil {
				s.logger.Debug("transaction not queued", "tx", e.ID, "err", err)
				continue
			}
			if s.relayer != nil {
				s.relayer.BroadcastTransaction(e.Transaction, e.Relays)
			}
		}
		return http.StatusOK, okResponse(protobuf), nil
	}
}
