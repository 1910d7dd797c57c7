package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// StaleAfter is the staleness window for a lock's acquired_at timestamp.
// Larger than any individual legitimate operation (target <100ms) and
// shorter than any realistic pause in ticket workflows. A var, not a
// const: the window is a judgment call, not a measured bound, and
// deployments with slower filesystems can widen it.
var StaleAfter = 30 * time.Second

// RetryBudget is the number of acquisition attempts before a Guard gives up
// with ErrContention.
var RetryBudget = 10

// RetryInterval is the sleep between acquisition attempts.
var RetryInterval = 100 * time.Millisecond

// lockRecord is the metadata written into a lock file. It is used only for
// diagnostics and staleness checks; the lock's actual exclusivity comes from
// the atomicity of the file's exclusive creation below.
type lockRecord struct {
	HolderID   string `json:"holder_id"`
	PID        int    `json:"pid"`
	AcquiredAt int64  `json:"acquired_at"`
	Operation  string `json:"operation"`
}

// Guard is a scoped token whose lifetime coincides with exclusive access to
// the locked path. A Guard is move-only in spirit: Go cannot enforce
// non-copyability, but callers must treat a Guard value as consumed once
// handed to Release; release happens at most once per acquisition.
type Guard struct {
	path       string
	released   bool
	holderID   string
}

// acquireOnce makes a single exclusive-create attempt against path's
// sibling lock file. Acquire loops it.
func acquireOnce(lockPath, operation string) (*Guard, error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errAlreadyHeld
		}

		return nil, fmt.Errorf("%w: creating lock file: %v", ErrIO, err)
	}

	holderID := uuid.New().String()

	record := lockRecord{
		HolderID:   holderID,
		PID:        os.Getpid(),
		AcquiredAt: time.Now().Unix(),
		Operation:  operation,
	}

	data, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		_ = file.Close()
		_ = os.Remove(lockPath)

		return nil, fmt.Errorf("%w: encoding lock record: %v", ErrIO, marshalErr)
	}

	if _, writeErr := file.Write(data); writeErr != nil {
		_ = file.Close()
		_ = os.Remove(lockPath)

		return nil, fmt.Errorf("%w: writing lock record: %v", ErrIO, writeErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		_ = os.Remove(lockPath)

		return nil, fmt.Errorf("%w: closing lock file: %v", ErrIO, closeErr)
	}

	return &Guard{path: lockPath, holderID: holderID}, nil
}

// errAlreadyHeld is an internal sentinel distinguishing "lock file already
// exists" from other O_EXCL failures; never returned to callers.
var errAlreadyHeld = errors.New("lock already held")

// reclaimIfStale removes lockPath if the metadata record it holds is older
// than StaleAfter. Returns whether it removed the file. A read or parse
// failure is treated as "not stale" rather than an error: a concurrent
// release racing with this read is expected and not a malfunction.
func reclaimIfStale(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}

	var record lockRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return false
	}

	age := time.Now().Unix() - record.AcquiredAt
	if age <= int64(StaleAfter/time.Second) {
		return false
	}

	// Best effort: if another process already reclaimed and recreated the
	// file, this Remove either no-ops on a fresh file (rare, harmless) or
	// hits the intended stale one. Either way the next acquireOnce attempt
	// resolves it deterministically.
	_ = os.Remove(lockPath)

	return true
}

// Acquire acquires an exclusive, cross-process advisory lock protecting
// artifactPath's read-modify-write cycle. operation is a short caller-
// supplied label stored in the lock record for diagnostics.
//
// Acquire retries up to RetryBudget times, sleeping RetryInterval between
// attempts, reclaiming the lock immediately (without sleeping) whenever the
// held record is older than StaleAfter. It fails with ErrContention once the
// budget is exhausted.
func Acquire(artifactPath, operation string) (*Guard, error) {
	lockPath := artifactPath + ".lock"

	for attempt := 0; attempt < RetryBudget; attempt++ {
		guard, err := acquireOnce(lockPath, operation)
		switch {
		case err == nil:
			return guard, nil
		case errors.Is(err, errAlreadyHeld):
			if reclaimIfStale(lockPath) {
				continue // retry immediately, no sleep
			}

			time.Sleep(RetryInterval)
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrContention, artifactPath)
}

// Release removes the lock file, relinquishing exclusive access. A missing
// lock file at release time is not an error: another process may have
// declared this holder stale and reclaimed it already. Release is
// idempotent; only the first call has an effect.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}

	g.released = true
	_ = os.Remove(g.path)
}

// WithLock runs fn while holding the lock on artifactPath, releasing it
// along every exit path including a panic propagating out of fn.
func WithLock(artifactPath, operation string, fn func() error) error {
	guard, err := Acquire(artifactPath, operation)
	if err != nil {
		return err
	}

	defer guard.Release()

	return fn()
}
