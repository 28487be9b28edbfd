package p2p

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/iov-one/msignode/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// maxResponseSize limits how much of a peer response is read.
const maxResponseSize = 2 << 20

// TransportConfig configures outbound requests.
type TransportConfig struct {
	// Headers are sent with every request.
	Headers Headers
	Compat  *Compatibility
	// Timeout of a single attempt.
	Timeout time.Duration
	// RetryBackoff is the minimum wait before the only retry.
	RetryBackoff time.Duration
}

// Transport sends requests to peers. It is safe for concurrent use.
type Transport struct {
	conf     TransportConfig
	registry PeerRegistry
	http     *http.Client
	metrics  *Metrics
	logger   log.Logger
	now      func() time.Time
}

// NewTransport returns a transport reporting peer health to the registry.
// metrics is optional.
func NewTransport(conf TransportConfig, registry PeerRegistry, metrics *Metrics, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Transport{
		conf:     conf,
		registry: registry,
		http:     &http.Client{Timeout: conf.Timeout},
		metrics:  metrics,
		logger:   logger.With("module", "p2p"),
		now:      time.Now,
	}
}

// Client returns a client talking to the given peer.
func (t *Transport) Client(p Peer) *Client {
	return &Client{t: t, peer: p}
}

// Send issues the request to the peer and returns the response body.
func (t *Transport) Send(ctx context.Context, p Peer, h RequestHandler) ([]byte, error) {
	return t.Client(p).Do(ctx, h)
}

// Client issues requests to a single peer.
type Client struct {
	t    *Transport
	peer Peer
}

// Do issues the request. A request that could not be delivered is retried
// once. An unreachable or incompatible peer is removed from the registry and
// errors.ErrPeerUnreachable or errors.ErrIncompatiblePeer returned.
func (c *Client) Do(ctx context.Context, h RequestHandler) (body []byte, err error) {
	start := c.t.now()
	defer func() {
		c.t.metrics.observeRequest(h.Kind(), err, c.t.now().Sub(start))
	}()

	protobuf := c.t.conf.Compat.UseProtobuf(c.peer.Version)
	payload, err := h.Body(protobuf)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	url := "http://" + c.peer.String() + h.Path(protobuf)
	contentType := ContentTypeJSON
	if protobuf {
		contentType = ContentTypeProtobuf
	}

	resp, err := c.send(ctx, h.Method(), url, contentType, payload)
	if err != nil {
		c.t.logger.Debug("request failed, retrying", "peer", c.peer, "err", err)
		select {
		case <-ctx.Done():
			return nil, c.unreachable(CodeTimeout, ctx.Err())
		case <-time.After(c.t.conf.RetryBackoff):
		}
		resp, err = c.send(ctx, h.Method(), url, contentType, payload)
	}
	if err != nil {
		code := CodeHTTPError
		if isTimeout(err) {
			code = CodeTimeout
		}
		return nil, c.unreachable(code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.unreachable(CodeResponse+" "+strconv.Itoa(resp.StatusCode), errors.ErrPeerUnreachable.Newf("status %d", resp.StatusCode))
	}

	headers, err := ParseHeaders(resp.Header)
	if err != nil {
		return nil, c.incompatible(CodeHeaders, errors.Wrap(errors.ErrIncompatiblePeer, err.Error()))
	}
	if code, err := c.t.conf.Compat.Check(headers); err != nil {
		return nil, c.incompatible(code, err)
	}

	body, err = ioutil.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.unreachable(CodeHTTPError, err)
	}

	c.peer = c.peer.WithHeaders(headers, c.t.now())
	c.t.registry.Update(c.peer)
	return body, nil
}

func (c *Client) send(ctx context.Context, method, url, contentType string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	c.t.conf.Headers.Write(req.Header)
	return c.t.http.Do(req)
}

func (c *Client) unreachable(code string, err error) error {
	c.t.logger.Debug("peer unreachable", "peer", c.peer, "code", code, "err", err)
	c.t.registry.MarkUnhealthy(c.peer, code)
	if errors.ErrPeerUnreachable.Is(err) {
		return err
	}
	return errors.Wrapf(errors.ErrPeerUnreachable, "%s: %s", c.peer, err)
}

func (c *Client) incompatible(code string, err error) error {
	c.t.logger.Debug("incompatible peer", "peer", c.peer, "code", code, "err", err)
	c.t.registry.MarkUnhealthy(c.peer, code)
	return errors.Wrapf(err, "peer %s", c.peer)
}

func isTimeout(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}
