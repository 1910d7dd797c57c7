package store_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tkstore/tks/internal/store"
)

// Contract: Acquire succeeds when no lock file exists, and Release removes
// it so a subsequent Acquire on the same path also succeeds.
func Test_Acquire_Succeeds_When_Unlocked(t *testing.T) {
	t.Parallel()

	artifact := filepath.Join(t.TempDir(), "ticket.md")

	guard, err := store.Acquire(artifact, "test")
	require.NoError(t, err)

	_, statErr := os.Stat(artifact + ".lock")
	require.NoError(t, statErr, "lock file should exist while held")

	guard.Release()

	_, statErr = os.Stat(artifact + ".lock")
	require.True(t, os.IsNotExist(statErr), "lock file should be removed after Release")

	second, err := store.Acquire(artifact, "test")
	require.NoError(t, err)
	second.Release()
}

// Contract: Release is idempotent; calling it twice has no adverse effect
// and does not panic; a Guard releases at most once.
func Test_Guard_Release_Idempotent(t *testing.T) {
	t.Parallel()

	artifact := filepath.Join(t.TempDir(), "ticket.md")

	guard, err := store.Acquire(artifact, "test")
	require.NoError(t, err)

	guard.Release()
	require.NotPanics(t, guard.Release)
}

// Contract: a second acquirer contends and eventually fails with
// ErrContention once the retry budget is exhausted.
func Test_Acquire_ReturnsContention_When_RetryBudgetExhausted(t *testing.T) {
	restoreRetryBudget := store.RetryBudget
	restoreRetryInterval := store.RetryInterval
	restoreStaleAfter := store.StaleAfter

	store.RetryBudget = 2
	store.RetryInterval = time.Millisecond
	store.StaleAfter = time.Hour // never stale during this test

	t.Cleanup(func() {
		store.RetryBudget = restoreRetryBudget
		store.RetryInterval = restoreRetryInterval
		store.StaleAfter = restoreStaleAfter
	})

	artifact := filepath.Join(t.TempDir(), "ticket.md")

	holder, err := store.Acquire(artifact, "holder")
	require.NoError(t, err)

	defer holder.Release()

	_, err = store.Acquire(artifact, "contender")
	require.ErrorIs(t, err, store.ErrContention)
}

// Contract: a lock file whose acquired_at is older than StaleAfter is
// reclaimed by the next acquirer instead of causing contention.
func Test_Acquire_ReclaimsStaleLock(t *testing.T) {
	t.Parallel()

	artifact := filepath.Join(t.TempDir(), "ticket.md")

	// A holder that crashed 31 seconds ago: its lock file is still on disk
	// with a backdated acquired_at, one second past the staleness window.
	writeStaleLockFile(t, artifact+".lock", time.Now().Add(-store.StaleAfter-time.Second))

	next, err := store.Acquire(artifact, "reclaimer")
	require.NoError(t, err)
	next.Release()
}

// writeStaleLockFile plants a lock record as a crashed holder would have
// left it, with acquired_at backdated to at.
func writeStaleLockFile(t *testing.T, lockPath string, at time.Time) {
	t.Helper()

	record := fmt.Sprintf(
		`{"holder_id":"8d3e1f40-0000-4000-8000-000000000000","pid":%d,"acquired_at":%d,"operation":"crashed"}`,
		os.Getpid(), at.Unix(),
	)
	require.NoError(t, os.WriteFile(lockPath, []byte(record), 0o600))
}

// Contract: exactly one of two concurrent acquirers on the same artifact
// holds the lock at any instant, so writes under the lock are totally
// ordered.
func Test_Acquire_MutualExclusion_UnderConcurrency(t *testing.T) {
	restoreRetryBudget := store.RetryBudget
	restoreRetryInterval := store.RetryInterval

	store.RetryBudget = 50
	store.RetryInterval = time.Millisecond

	t.Cleanup(func() {
		store.RetryBudget = restoreRetryBudget
		store.RetryInterval = restoreRetryInterval
	})

	artifact := filepath.Join(t.TempDir(), "ticket.md")

	const workers = 8

	var (
		wg          sync.WaitGroup
		inside      int32
		maxObserved int32
		successes   int32
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			guard, err := store.Acquire(artifact, "worker")
			if err != nil {
				if errors.Is(err, store.ErrContention) {
					return
				}

				t.Errorf("unexpected acquire error: %v", err)

				return
			}

			atomic.AddInt32(&successes, 1)

			n := atomic.AddInt32(&inside, 1)
			for {
				observed := atomic.LoadInt32(&maxObserved)
				if n <= observed || atomic.CompareAndSwapInt32(&maxObserved, observed, n) {
					break
				}
			}

			time.Sleep(time.Millisecond)

			atomic.AddInt32(&inside, -1)
			guard.Release()
		}()
	}

	wg.Wait()

	require.EqualValues(t, 1, maxObserved, "more than one goroutine held the lock simultaneously")
	require.Greater(t, successes, int32(0))
}
