/*
Package sequence serializes work that mutates shared node state.

Jobs submitted with Run are executed one at a time, in submission order, by a
single consumer goroutine. A job that started always runs to completion; a
caller that gives up waiting only cancels jobs that were not picked up yet.
*/
package sequence

import (
	"context"
	"sync"

	"github.com/iov-one/msignode/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// Job is a unit of work executed in sequence.
type Job func(ctx context.Context) error

type request struct {
	ctx    context.Context
	job    Job
	result chan error
}

// Sequence executes jobs one by one.
type Sequence struct {
	logger log.Logger

	requests chan request
	quit     chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New returns a sequence that is not yet consuming jobs.
func New(logger log.Logger) *Sequence {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Sequence{
		logger:   logger.With("module", "sequence"),
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the consumer. Calling it more than once has no effect.
func (s *Sequence) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Stop waits for the running job to finish and terminates the consumer. Jobs
// submitted afterwards fail.
func (s *Sequence) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.startOnce.Do(func() {
		// Never started, nothing to wait for.
		close(s.done)
	})
	<-s.done
}

// Run submits the job and blocks until it was executed. The job result is
// returned. If the context is cancelled before the job was picked up, the job
// is skipped.
func (s *Sequence) Run(ctx context.Context, job Job) error {
	if job == nil {
		return errors.Wrap(errors.ErrHuman, "nil job")
	}
	req := request{ctx: ctx, job: job, result: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return errors.Wrap(errors.ErrTimeout, ctx.Err().Error())
	case <-s.quit:
		return errors.Wrap(errors.ErrState, "sequence stopped")
	}
	return <-req.result
}

func (s *Sequence) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.requests:
			req.result <- s.execute(req)
		}
	}
}

func (s *Sequence) execute(req request) (err error) {
	if cerr := req.ctx.Err(); cerr != nil {
		return errors.Wrap(errors.ErrTimeout, cerr.Error())
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "panic", r)
			err = errors.Wrapf(errors.ErrPanic, "%v", r)
		}
	}()
	return req.job(req.ctx)
}
