package fs

import (
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosMode selects whether a [Chaos] filesystem is currently injecting
// faults. Tests flip to [ChaosModeNoOp] once they are done breaking things
// and want to inspect the surviving on-disk state through the same handle.
type ChaosMode uint32

const (
	// ChaosModeRandom injects faults at the configured per-operation rates.
	ChaosModeRandom ChaosMode = iota

	// ChaosModeNoOp passes every operation straight through.
	ChaosModeNoOp
)

// ChaosConfig sets the probability, in [0, 1], that each class of
// operation fails with an injected error instead of reaching the
// underlying filesystem. Zero-valued fields never fail.
type ChaosConfig struct {
	// ReadFailRate applies to Open, read-only OpenFile, ReadFile, ReadDir,
	// and reads on open files.
	ReadFailRate float64

	// WriteFailRate applies to writes on open files, to OpenFile with any
	// write or create flag, and to Remove.
	WriteFailRate float64

	// RenameFailRate applies to Rename — the commit point of an atomic
	// write, which makes it the most interesting thing to break.
	RenameFailRate float64

	// SyncFailRate applies to Sync on open files, simulating a storage
	// layer that accepted the bytes but cannot promise durability.
	SyncFailRate float64
}

// Chaos wraps another [FS] and makes a configurable fraction of its
// operations fail with EIO-family errors, deterministically per seed. The
// store's durability tests hammer a repository through one of these and
// then assert the artifact on disk is a complete pre- or post-write
// document, never a torn one.
//
// Faults are injected before the underlying operation runs, so an injected
// failure never half-applies: the fault model is "the syscall failed", not
// "the syscall lied".
type Chaos struct {
	under  FS
	config ChaosConfig
	mode   atomic.Uint32

	mu  sync.Mutex
	rng *rand.Rand

	injected atomic.Int64
}

// NewChaos wraps underlying with fault injection at the rates in config.
// The same seed replays the same fault sequence for a given operation
// order. A nil config sets every rate to zero, so the wrapper never
// injects a fault whatever its mode.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	cfg := ChaosConfig{}
	if config != nil {
		cfg = *config
	}

	c := &Chaos{
		under:  underlying,
		config: cfg,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1)),
	}
	c.mode.Store(uint32(ChaosModeRandom))

	return c
}

// SetMode switches fault injection on (ChaosModeRandom) or off
// (ChaosModeNoOp). Safe to call concurrently with operations.
func (c *Chaos) SetMode(m ChaosMode) {
	c.mode.Store(uint32(m))
}

// InjectedFaults reports how many operations failed by injection so far.
func (c *Chaos) InjectedFaults() int64 {
	return c.injected.Load()
}

// roll returns true when the current mode and rate say this operation
// should fail, and counts the fault.
func (c *Chaos) roll(rate float64) bool {
	if ChaosMode(c.mode.Load()) == ChaosModeNoOp || rate <= 0 {
		return false
	}

	c.mu.Lock()
	hit := c.rng.Float64() < rate
	c.mu.Unlock()

	if hit {
		c.injected.Add(1)
	}

	return hit
}

func injectedErr(op, path string) error {
	return &os.PathError{Op: op, Path: path, Err: syscall.EIO}
}

func (c *Chaos) Open(path string) (File, error) {
	if c.roll(c.config.ReadFailRate) {
		return nil, injectedErr("open", path)
	}

	f, err := c.under.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, owner: c, path: path}, nil
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	rate := c.config.ReadFailRate
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		rate = c.config.WriteFailRate
	}

	if c.roll(rate) {
		return nil, injectedErr("open", path)
	}

	f, err := c.under.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, owner: c, path: path}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.roll(c.config.ReadFailRate) {
		return nil, injectedErr("read", path)
	}

	return c.under.ReadFile(path)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if c.roll(c.config.ReadFailRate) {
		return nil, injectedErr("readdirent", path)
	}

	return c.under.ReadDir(path)
}

// MkdirAll never fails by injection: the store calls it on every write as
// an idempotent pre-step, and failing it tells the durability tests
// nothing the write-path faults don't already cover.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.under.MkdirAll(path, perm)
}

// Exists never fails by injection for the same reason as MkdirAll.
func (c *Chaos) Exists(path string) (bool, error) {
	return c.under.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	if c.roll(c.config.WriteFailRate) {
		return injectedErr("remove", path)
	}

	return c.under.Remove(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.roll(c.config.RenameFailRate) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EIO}
	}

	return c.under.Rename(oldpath, newpath)
}

// chaosFile applies the owner's read/write/sync rates to operations on an
// open handle. Close and Chmod always pass through: an injected Close
// failure would leak the descriptor underneath.
type chaosFile struct {
	File

	owner *Chaos
	path  string
}

func (f *chaosFile) Read(p []byte) (int, error) {
	if f.owner.roll(f.owner.config.ReadFailRate) {
		return 0, injectedErr("read", f.path)
	}

	return f.File.Read(p)
}

func (f *chaosFile) Write(p []byte) (int, error) {
	if f.owner.roll(f.owner.config.WriteFailRate) {
		return 0, injectedErr("write", f.path)
	}

	return f.File.Write(p)
}

func (f *chaosFile) Sync() error {
	if f.owner.roll(f.owner.config.SyncFailRate) {
		return injectedErr("fsync", f.path)
	}

	return f.File.Sync()
}

var _ FS = (*Chaos)(nil)
