/*
Package peers keeps the table of known peers.

Peers that failed a request are removed and banned for a while. Bans survive a
restart of the node when a data directory is configured.
*/
package peers

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/p2p"
	"github.com/tendermint/tendermint/libs/log"
)

// Config of the registry.
type Config struct {
	// MaxPeers is the size of the peer table.
	MaxPeers int
	// BanTime is how long an unhealthy peer stays excluded.
	BanTime time.Duration
	// DataDir holds the ban database. Empty keeps bans in memory.
	DataDir string
}

// Registry is the peer table. It is safe for concurrent use.
type Registry struct {
	conf   Config
	logger log.Logger
	now    func() time.Time

	mu    sync.Mutex
	peers map[string]p2p.Peer
	bans  *banList
	rand  *rand.Rand
}

var _ p2p.PeerRegistry = (*Registry)(nil)

// Open returns a registry, loading previous bans from the data directory.
func Open(conf Config, logger log.Logger) (*Registry, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	bans, err := openBanList(conf.DataDir)
	if err != nil {
		return nil, err
	}
	return &Registry{
		conf:   conf,
		logger: logger.With("module", "peers"),
		now:    time.Now,
		peers:  make(map[string]p2p.Peer),
		bans:   bans,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Close releases the ban database.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bans.close()
}

// AddSeeds inserts the peers with the given ip:port addresses.
func (r *Registry) AddSeeds(addrs []string) error {
	var errs error
	for _, addr := range addrs {
		p, err := p2p.ParsePeer(addr)
		if err != nil {
			errs = errors.Append(errs, errors.Wrapf(err, "seed %s", addr))
			continue
		}
		r.Update(p)
	}
	return errs
}

// Update implements p2p.PeerRegistry. A banned peer is ignored, so is a new
// peer when the table is full.
func (r *Registry) Update(p p2p.Peer) {
	addr := p.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isBanned(addr) {
		return
	}
	if _, ok := r.peers[addr]; !ok && r.conf.MaxPeers > 0 && len(r.peers) >= r.conf.MaxPeers {
		r.logger.Debug("peer table full", "peer", addr)
		return
	}
	r.peers[addr] = p
}

// MarkUnhealthy implements p2p.PeerRegistry.
func (r *Registry) MarkUnhealthy(p p2p.Peer, code string) {
	addr := p.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, addr)
	if err := r.bans.ban(addr, r.now().Add(r.conf.BanTime)); err != nil {
		r.logger.Error("cannot ban peer", "peer", addr, "err", err)
		return
	}
	r.logger.Info("peer banned", "peer", addr, "code", code, "for", r.conf.BanTime)
}

// List implements p2p.PeerRegistry. Peers are returned in random order,
// those declaring the requested broadhash first.
func (r *Registry) List(c p2p.Criteria) []p2p.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]p2p.Peer, 0, len(r.peers))
	for addr, p := range r.peers {
		if r.isBanned(addr) {
			delete(r.peers, addr)
			continue
		}
		res = append(res, p)
	}
	// Map order is not random enough to balance the load.
	r.rand.Shuffle(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] })
	if c.Broadhash != "" {
		sort.SliceStable(res, func(i, j int) bool {
			return res[i].Broadhash == c.Broadhash && res[j].Broadhash != c.Broadhash
		})
	}
	if c.Limit > 0 && len(res) > c.Limit {
		res = res[:c.Limit]
	}
	return res
}

// Count returns the number of peers in the table.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// IsBanned returns true if the ip:port address is banned.
func (r *Registry) IsBanned(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isBanned(addr)
}

// isBanned must be called with the lock held.
func (r *Registry) isBanned(addr string) bool {
	banned, err := r.bans.isBanned(addr, r.now())
	if err != nil {
		r.logger.Error("cannot check ban", "peer", addr, "err", err)
	}
	return banned
}
