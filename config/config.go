/*
Package config defines the node configuration.

Options are read from the command line and, if --configfile is given, from an
ini file. Command line options take precedence over the file.
*/
package config

import (
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/Masterminds/semver"
	"github.com/iov-one/msignode/errors"
	flags "github.com/jessevdk/go-flags"
)

// NodeOptions describe this node on the network.
type NodeOptions struct {
	Nethash         string `long:"nethash" description:"Hash identifying the network (64 hex characters)"`
	Version         string `long:"version" default:"1.1.0" description:"Protocol version announced to peers"`
	MinVersion      string `long:"minversion" default:">=1.0.0" description:"Version constraint every peer must satisfy"`
	ProtobufVersion string `long:"protobufversion" default:">=1.1.0" description:"Version constraint of peers talking protobuf"`
	Port            int    `long:"port" default:"5555" description:"Port announced to peers"`
	Listen          string `long:"listen" default:"0.0.0.0:5555" description:"Address the peer API listens on"`
	OS              string `long:"os" description:"Operating system announced to peers (default: runtime)"`
	Genesis         string `long:"genesis" description:"Accounts genesis file"`
	Debug           bool   `long:"debug" description:"Expose internal error details to peers"`
}

// BroadcastOptions configure the relay engine.
type BroadcastOptions struct {
	Interval       time.Duration `long:"broadcastinterval" default:"5s" description:"Interval between two queue releases"`
	ReleaseLimit   int           `long:"releaselimit" default:"25" description:"Queued tasks released at once"`
	ParallelLimit  int           `long:"parallellimit" default:"20" description:"Peers contacted in parallel"`
	RelayLimit     int           `long:"relaylimit" default:"3" description:"Hops a transaction or signature travels"`
	BroadcastLimit int           `long:"broadcastlimit" default:"25" description:"Peers a request is sent to"`
}

// PeerOptions configure the peer table and the transport.
type PeerOptions struct {
	MaxPeers     int           `long:"maxpeers" default:"100" description:"Size of the peer table"`
	Timeout      time.Duration `long:"timeout" default:"4s" description:"Timeout of a peer request"`
	RetryBackoff time.Duration `long:"retrybackoff" default:"2s" description:"Wait before retrying a failed peer request"`
	BanTime      time.Duration `long:"bantime" default:"10m" description:"How long an unhealthy peer is banned"`
	DataDir      string        `long:"datadir" description:"Directory of the ban database (default: in memory)"`
	Seeds        []string      `long:"seed" description:"Seed peer ip:port, can be repeated"`
}

// LogOptions configure logging.
type LogOptions struct {
	Level    string `long:"loglevel" default:"info" description:"Log level: debug, info, error or none"`
	File     string `long:"logfile" description:"Also write logs to this file"`
	RotateKB int64  `long:"logrotatekb" default:"100000" description:"Log file size rotation threshold in KB"`
	MaxRolls int    `long:"logmaxrolls" default:"8" description:"Rotated log files to keep"`
}

// Config is the complete node configuration.
type Config struct {
	ConfigFile string `long:"configfile" description:"Path to an ini configuration file"`

	Node       NodeOptions      `group:"Node"`
	Broadcasts BroadcastOptions `group:"Broadcasts"`
	Peers      PeerOptions      `group:"Peers"`
	Log        LogOptions       `group:"Log"`
}

// Load parses the command line arguments, and the configuration file they
// point to, into a validated configuration. A help request is returned as a
// *flags.Error of type flags.ErrHelp.
func Load(args []string) (*Config, error) {
	// Look for the configuration file first.
	var pre Config
	if _, err := flags.NewParser(&pre, flags.HelpFlag|flags.IgnoreUnknown).ParseArgs(args); err != nil {
		return nil, err
	}

	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag)
	if pre.ConfigFile != "" {
		if err := flags.NewIniParser(parser).ParseFile(pre.ConfigFile); err != nil {
			if _, ok := err.(*os.PathError); ok {
				return nil, errors.Wrap(errors.ErrInput, err.Error())
			}
			return nil, errors.Wrap(err, "config file")
		}
	}
	// Parse command line options again to ensure they take precedence.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Node.OS == "" {
		cfg.Node.OS = runtime.GOOS
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsHelp returns true if the error is a help request.
func IsHelp(err error) bool {
	e, ok := err.(*flags.Error)
	return ok && e.Type == flags.ErrHelp
}

// Validate returns all invalid options at once.
func (c *Config) Validate() error {
	var errs error

	if raw, err := hex.DecodeString(c.Node.Nethash); err != nil || len(raw) != 32 {
		errs = errors.AppendField(errs, "Node.Nethash", errors.ErrInput)
	}
	if _, err := semver.NewVersion(c.Node.Version); err != nil {
		errs = errors.AppendField(errs, "Node.Version", errors.Wrap(errors.ErrInput, err.Error()))
	}
	if _, err := semver.NewConstraint(c.Node.MinVersion); err != nil {
		errs = errors.AppendField(errs, "Node.MinVersion", errors.Wrap(errors.ErrInput, err.Error()))
	}
	if _, err := semver.NewConstraint(c.Node.ProtobufVersion); err != nil {
		errs = errors.AppendField(errs, "Node.ProtobufVersion", errors.Wrap(errors.ErrInput, err.Error()))
	}
	if c.Node.Port < 1 || c.Node.Port > 65535 {
		errs = errors.AppendField(errs, "Node.Port", errors.ErrInput)
	}
	if _, _, err := net.SplitHostPort(c.Node.Listen); err != nil {
		errs = errors.AppendField(errs, "Node.Listen", errors.Wrap(errors.ErrInput, err.Error()))
	}

	if c.Broadcasts.Interval <= 0 {
		errs = errors.AppendField(errs, "Broadcasts.Interval", errors.ErrInput)
	}
	for name, v := range map[string]int{
		"Broadcasts.ReleaseLimit":   c.Broadcasts.ReleaseLimit,
		"Broadcasts.ParallelLimit":  c.Broadcasts.ParallelLimit,
		"Broadcasts.BroadcastLimit": c.Broadcasts.BroadcastLimit,
		"Peers.MaxPeers":            c.Peers.MaxPeers,
	} {
		if v <= 0 {
			errs = errors.AppendField(errs, name, errors.Wrap(errors.ErrInput, "must be positive"))
		}
	}
	if c.Broadcasts.RelayLimit < 0 {
		errs = errors.AppendField(errs, "Broadcasts.RelayLimit", errors.ErrInput)
	}

	if c.Peers.Timeout <= 0 {
		errs = errors.AppendField(errs, "Peers.Timeout", errors.ErrInput)
	}
	if c.Peers.RetryBackoff < 0 {
		errs = errors.AppendField(errs, "Peers.RetryBackoff", errors.ErrInput)
	}
	if c.Peers.BanTime < 0 {
		errs = errors.AppendField(errs, "Peers.BanTime", errors.ErrInput)
	}

	switch c.Log.Level {
	case "debug", "info", "error", "none":
	default:
		errs = errors.AppendField(errs, "Log.Level", errors.Wrapf(errors.ErrInput, "unknown level %q", c.Log.Level))
	}
	if c.Log.File != "" && (c.Log.RotateKB <= 0 || c.Log.MaxRolls < 0) {
		errs = errors.AppendField(errs, "Log.RotateKB", errors.ErrInput)
	}
	return errs
}
