package p2p

import (
	"net/http"
	"strings"
	"sync"
)

var testNethash = strings.Repeat("ab", 32)

func testHeaders(version string) Headers {
	return Headers{
		Nethash: testNethash,
		Version: version,
		Port:    5555,
		OS:      "linux",
		Nonce:   "0123456789abcdef",
		Height:  1,
	}
}

func testCompat() *Compatibility {
	c, err := NewCompatibility(testNethash, ">=1.0.0", ">=1.1.0")
	if err != nil {
		panic(err)
	}
	return c
}

func headerOf(hs Headers) http.Header {
	h := make(http.Header)
	hs.Write(h)
	return h
}

// memRegistry records the registry calls.
type memRegistry struct {
	mu        sync.Mutex
	updated   []Peer
	unhealthy map[string]string
}

func newMemRegistry() *memRegistry {
	return &memRegistry{unhealthy: make(map[string]string)}
}

func (r *memRegistry) List(Criteria) []Peer { return nil }

func (r *memRegistry) Update(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, p)
}

func (r *memRegistry) MarkUnhealthy(p Peer, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unhealthy[p.String()] = code
}
