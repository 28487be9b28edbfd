package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/accounts"
	"github.com/iov-one/msignode/broadcast"
	"github.com/iov-one/msignode/config"
	"github.com/iov-one/msignode/crypto"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/p2p"
	"github.com/iov-one/msignode/peers"
	"github.com/iov-one/msignode/pool"
	"github.com/iov-one/msignode/sequence"
	"github.com/iov-one/msignode/x/sigs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendermint/tendermint/libs/log"
)

// Node holds every component of a running node.
type Node struct {
	Pool        *pool.Pool
	Accounts    *accounts.MemStore
	Peers       *peers.Registry
	Sequence    *sequence.Sequence
	Admission   *sigs.Admission
	Broadcaster *broadcast.Broadcaster
	Server      *p2p.Server

	conf     *config.Config
	registry *prometheus.Registry
	logger   log.Logger
	cancel   context.CancelFunc
	shutdown func()
	done     chan struct{}
}

// NewNode builds a node from the configuration. Nothing runs until Start is
// called.
func NewNode(conf *config.Config, logger log.Logger) (*Node, error) {
	n := &Node{
		conf:     conf,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	reg := n.registry

	var err error
	if n.Pool, err = pool.New(reg); err != nil {
		return nil, errors.Wrap(err, "pool")
	}

	if conf.Node.Genesis != "" {
		if n.Accounts, err = accounts.LoadGenesis(conf.Node.Genesis); err != nil {
			return nil, errors.Wrap(err, "genesis")
		}
	} else {
		n.Accounts = accounts.NewMemStore()
	}

	n.Peers, err = peers.Open(peers.Config{
		MaxPeers: conf.Peers.MaxPeers,
		BanTime:  conf.Peers.BanTime,
		DataDir:  conf.Peers.DataDir,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "peers")
	}
	if err := n.Peers.AddSeeds(conf.Peers.Seeds); err != nil {
		n.Peers.Close()
		return nil, errors.Wrap(err, "seeds")
	}

	compat, err := p2p.NewCompatibility(conf.Node.Nethash, conf.Node.MinVersion, conf.Node.ProtobufVersion)
	if err != nil {
		n.Peers.Close()
		return nil, err
	}
	headers := p2p.Headers{
		Nethash:   conf.Node.Nethash,
		Version:   conf.Node.Version,
		Port:      conf.Node.Port,
		OS:        conf.Node.OS,
		Nonce:     p2p.NewNonce(),
		Height:    1,
		Broadhash: conf.Node.Nethash,
	}

	p2pMetrics, err := p2p.NewMetrics(reg)
	if err != nil {
		n.Peers.Close()
		return nil, errors.Wrap(err, "p2p metrics")
	}
	transport := p2p.NewTransport(p2p.TransportConfig{
		Headers:      headers,
		Compat:       compat,
		Timeout:      conf.Peers.Timeout,
		RetryBackoff: conf.Peers.RetryBackoff,
	}, n.Peers, p2pMetrics, logger)

	broadcastMetrics, err := broadcast.NewMetrics(reg)
	if err != nil {
		n.Peers.Close()
		return nil, errors.Wrap(err, "broadcast metrics")
	}
	n.Broadcaster = broadcast.NewBroadcaster(broadcast.Config{
		Interval:       conf.Broadcasts.Interval,
		ReleaseLimit:   conf.Broadcasts.ReleaseLimit,
		ParallelLimit:  conf.Broadcasts.ParallelLimit,
		RelayLimit:     conf.Broadcasts.RelayLimit,
		BroadcastLimit: conf.Broadcasts.BroadcastLimit,
		MaxPeers:       conf.Peers.MaxPeers,
	}, n.Pool, nil, n.Peers, transport, broadcastMetrics, logger)

	sigsMetrics, err := sigs.NewMetrics(reg)
	if err != nil {
		n.Peers.Close()
		return nil, errors.Wrap(err, "sigs metrics")
	}
	n.Sequence = sequence.New(logger)
	n.Admission = sigs.NewAdmission(n.Pool.Pending, n.Accounts, crypto.Ed25519Verifier{},
		n.Sequence, n.Broadcaster, sigsMetrics, logger)

	n.Server = p2p.NewServer(p2p.ServerConfig{
		Headers: headers,
		Compat:  compat,
		Debug:   conf.Node.Debug,
	}, n.Admission, n.Pool, n.Broadcaster, n.Peers, p2pMetrics, logger)
	return n, nil
}

// Handler returns the HTTP handler of the peer API, metrics included.
func (n *Node) Handler() http.Handler {
	return n.Server.Router(n.registry)
}

// Start launches the sequence, the relay engine and the peer API.
func (n *Node) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})

	n.Sequence.Start()
	go func() {
		defer close(n.done)
		n.Broadcaster.Run(ctx)
	}()
	n.shutdown = n.Server.Start(n.conf.Node.Listen, n.registry)
	n.logger.Info("node started",
		"version", msignode.BuildVersion(),
		"listen", n.conf.Node.Listen,
		"nethash", shortHash(n.conf.Node.Nethash))
}

// Stop terminates all components started by Start and releases resources.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.shutdown()
		n.cancel()
		<-n.done
	}
	n.Sequence.Stop()
	if err := n.Peers.Close(); err != nil {
		n.logger.Error("cannot close peer registry", "err", err)
	}
	n.logger.Info("node stopped")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return strings.ToLower(h[:12])
	}
	return h
}
