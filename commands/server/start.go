package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iov-one/msignode/config"
)

// StartCmd loads the configuration from args, runs the node and blocks until
// the process is interrupted.
func StartCmd(out io.Writer, args []string) error {
	conf, err := config.Load(args)
	if err != nil {
		return err
	}

	logger, closer, err := NewLogger(conf.Log, out)
	if err != nil {
		return err
	}
	defer closer.Close()

	node, err := NewNode(conf, logger)
	if err != nil {
		logger.Error("cannot create node", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node.Start()
	<-ctx.Done()
	logger.Info("shutting down")
	node.Stop()
	return nil
}
