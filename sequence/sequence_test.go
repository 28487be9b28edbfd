package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/nodetest/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRunsJobsOneByOne(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		total   int
	)
	job := func(context.Context) error {
		mu.Lock()
		running++
		if running > maxSeen {
			maxSeen = running
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running--
		total++
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Nil(t, s.Run(context.Background(), job))
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Equal(t, 20, total)
}

func TestSequencePreservesSubmissionOrder(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		err := s.Run(context.Background(), func(context.Context) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSequenceReturnsJobError(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop()

	err := s.Run(context.Background(), func(context.Context) error {
		return errors.ErrDuplicateSignature.New("already there")
	})
	assert.IsErr(t, errors.ErrDuplicateSignature, err)

	err = s.Run(context.Background(), func(context.Context) error {
		panic("boom")
	})
	assert.IsErr(t, errors.ErrPanic, err)

	// The consumer survives a panicking job.
	assert.Nil(t, s.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestSequenceSkipsCancelledJobs(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	executed := false
	err := s.Run(ctx, func(context.Context) error {
		executed = true
		return nil
	})
	close(release)

	assert.IsErr(t, errors.ErrTimeout, err)
	require.False(t, executed)
}

func TestSequenceRejectsNilJob(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop()
	assert.IsErr(t, errors.ErrHuman, s.Run(context.Background(), nil))
}

func TestSequenceStop(t *testing.T) {
	s := New(nil)
	s.Start()
	s.Stop()
	// Stopping twice is fine.
	s.Stop()

	err := s.Run(context.Background(), func(context.Context) error { return nil })
	assert.IsErr(t, errors.ErrState, err)

	// A sequence that was never started can be stopped too.
	New(nil).Stop()
}
