package p2p

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/iov-one/msignode/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Header names.
const (
	HeaderNethash   = "nethash"
	HeaderVersion   = "version"
	HeaderPort      = "port"
	HeaderOS        = "os"
	HeaderNonce     = "nonce"
	HeaderHeight    = "height"
	HeaderBroadhash = "broadhash"
)

// Headers describe the node sending a request or a response.
type Headers struct {
	Nethash   string
	Version   string
	Port      int
	OS        string
	Nonce     string
	Height    uint64
	Broadhash string
}

// NewNonce returns a random nonce identifying this node instance.
func NewNonce() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Write sets the headers on h.
func (hs Headers) Write(h http.Header) {
	h.Set(HeaderNethash, hs.Nethash)
	h.Set(HeaderVersion, hs.Version)
	h.Set(HeaderPort, strconv.Itoa(hs.Port))
	h.Set(HeaderNonce, hs.Nonce)
	h.Set(HeaderHeight, strconv.FormatUint(hs.Height, 10))
	if hs.OS != "" {
		h.Set(HeaderOS, hs.OS)
	}
	if hs.Broadhash != "" {
		h.Set(HeaderBroadhash, hs.Broadhash)
	}
}

const headersSchema = `{
	"type": "object",
	"properties": {
		"nethash":   {"type": "string", "pattern": "^[a-f0-9]{64}$"},
		"version":   {"type": "string", "minLength": 5, "maxLength": 32},
		"port":      {"type": "integer", "minimum": 1, "maximum": 65535},
		"os":        {"type": "string", "maxLength": 64},
		"nonce":     {"type": "string", "minLength": 16, "maxLength": 16},
		"height":    {"type": "integer", "minimum": 1},
		"broadhash": {"type": "string", "pattern": "^[a-f0-9]{64}$"}
	},
	"required": ["nethash", "version", "port", "nonce"]
}`

var headersSchemaLoader = gojsonschema.NewStringLoader(headersSchema)

// ParseHeaders validates h and returns the node headers it carries. Any
// schema violation is reported as errors.ErrInput.
func ParseHeaders(h http.Header) (Headers, error) {
	doc := make(map[string]interface{})
	for _, name := range []string{HeaderNethash, HeaderVersion, HeaderOS, HeaderNonce, HeaderBroadhash} {
		if v := h.Get(name); v != "" {
			doc[name] = v
		}
	}
	for _, name := range []string{HeaderPort, HeaderHeight} {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			doc[name] = n
		} else {
			// Let the schema report the wrong type.
			doc[name] = v
		}
	}

	res, err := gojsonschema.Validate(headersSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Headers{}, errors.Wrap(err, "schema")
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Headers{}, errors.Wrap(errors.ErrInput, strings.Join(msgs, "; "))
	}

	hs := Headers{
		Nethash:   h.Get(HeaderNethash),
		Version:   h.Get(HeaderVersion),
		OS:        h.Get(HeaderOS),
		Nonce:     h.Get(HeaderNonce),
		Broadhash: h.Get(HeaderBroadhash),
	}
	if port, ok := doc[HeaderPort].(int64); ok {
		hs.Port = int(port)
	}
	if height, ok := doc[HeaderHeight].(int64); ok {
		hs.Height = uint64(height)
	}
	return hs, nil
}

// Compatibility decides whether a remote node can talk to this one.
type Compatibility struct {
	nethash    string
	minVersion *semver.Constraints
	protobuf   *semver.Constraints
}

// NewCompatibility returns the rules of a node on the given network.
// minVersion is the constraint every peer version must satisfy, protobuf the
// one selecting peers that understand the protobuf encoding.
func NewCompatibility(nethash, minVersion, protobuf string) (*Compatibility, error) {
	min, err := semver.NewConstraint(minVersion)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "min version %q: %s", minVersion, err)
	}
	pb, err := semver.NewConstraint(protobuf)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "protobuf version %q: %s", protobuf, err)
	}
	return &Compatibility{nethash: nethash, minVersion: min, protobuf: pb}, nil
}

// Check returns nil if the headers declare a compatible node. Otherwise the
// failure code to report to the registry is returned along with an
// errors.ErrIncompatiblePeer error.
func (c *Compatibility) Check(h Headers) (string, error) {
	if h.Nethash != c.nethash {
		return CodeNethash, errors.Wrapf(errors.ErrIncompatiblePeer, "nethash %s", h.Nethash)
	}
	v, err := semver.NewVersion(h.Version)
	if err != nil || !c.minVersion.Check(v) {
		return CodeVersion, errors.Wrapf(errors.ErrIncompatiblePeer, "version %s", h.Version)
	}
	return "", nil
}

// UseProtobuf returns true if a node of the given version understands the
// protobuf encoding.
func (c *Compatibility) UseProtobuf(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return c.protobuf.Check(v)
}
