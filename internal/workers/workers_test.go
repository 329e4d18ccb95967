package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingDeleter struct {
	calls atomic.Int32
	err   error
}

func (c *countingDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestStartShareCleanup(t *testing.T) {
	repo := &countingDeleter{}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartShareCleanup(ctx, repo, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return repo.calls.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStartShareCleanup_KeepsRunningOnError(t *testing.T) {
	repo := &countingDeleter{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartShareCleanup(ctx, repo, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, time.Second, time.Millisecond)
}
