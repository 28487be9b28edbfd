package server

import (
	"io"
	"os"
	"path/filepath"

	"github.com/iov-one/msignode/config"
	"github.com/iov-one/msignode/errors"
	"github.com/jrick/logrotate/rotator"
	"github.com/tendermint/tendermint/libs/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger returns the node logger writing to out and, if configured, to a
// rotated log file. The returned closer flushes the log file.
func NewLogger(opts config.LogOptions, out io.Writer) (log.Logger, io.Closer, error) {
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if dir, _ := filepath.Split(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, nil, errors.Wrap(err, "create log directory")
			}
		}
		r, err := rotator.New(opts.File, opts.RotateKB, false, opts.MaxRolls)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create log rotator")
		}
		out = io.MultiWriter(out, r)
		closer = r
	}

	level, err := log.AllowLevel(opts.Level)
	if err != nil {
		closer.Close()
		return nil, nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	logger := log.NewFilter(log.NewTMLogger(log.NewSyncWriter(out)), level)
	return logger, closer, nil
}
