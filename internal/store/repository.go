package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tkfs "github.com/tkstore/tks/pkg/fs"
)

// Repository is the public surface over tickets, the active pointer, and
// project state for one project root. Every operation that writes a ticket
// resolves inputs,
// acquires the lock(s) it needs, reads current state via cache-then-disk,
// validates, writes new state via temp-then-rename, invalidates the cache,
// and releases its locks — in that order, with no step skipped on any
// return path.
type Repository struct {
	layout    Layout
	artifacts *ArtifactStore
	cache     *Cache
	now       func() time.Time
}

// RepositoryOption configures optional Repository behavior at construction
// time.
type RepositoryOption func(*Repository)

// WithClock overrides the clock CreateTicket and SaveTicket use for
// CreatedAt/StartedAt/ClosedAt and slug timestamps. Tests inject a fixed
// clock to make slug collisions and transition timestamps deterministic;
// production callers never need this.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) { r.now = now }
}

// NewRepository builds a Repository rooted at root. A nil fsys uses
// pkg/fs.NewReal; tests may supply pkg/fs.NewChaos to exercise the
// durability guarantees directly.
func NewRepository(root string, fsys tkfs.FS, opts ...RepositoryOption) *Repository {
	r := &Repository{
		layout:    NewLayout(root),
		artifacts: NewArtifactStore(fsys),
		cache:     NewCache(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Draft is the caller-supplied input to CreateTicket.
type Draft struct {
	SlugBase    string
	Title       string
	Description string
	Priority    string
	Tags        []string
	Assignee    string
	Metadata    map[string]any
}

// Filter narrows ListTickets. A zero Filter matches every live ticket.
type Filter struct {
	Status   string
	Priority string
	Assignee string
	Tag      string
}

func (f Filter) matches(t *Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}

	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}

	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}

	if f.Tag != "" && !containsString(t.Tags, f.Tag) {
		return false
	}

	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

// Initialize creates the on-disk layout and an empty project state. It
// fails with ErrAlreadyInitialized if the layout already exists, unless
// force is true — in which case every existing ticket file is left
// untouched.
func (r *Repository) Initialize(name, description string, force bool) error {
	exists, err := r.artifacts.Exists(r.layout.StatePath())
	if err != nil {
		return err
	}

	if exists && !force {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, r.layout.Root)
	}

	// Re-initializing with force refreshes the state header (name,
	// description) but preserves creation time, statistics, and every
	// existing ticket file.
	if exists && force {
		state, err := r.loadStateFromDisk()
		if err != nil {
			return err
		}

		state.Name = name
		state.Description = description

		return r.saveStateLocked(state)
	}

	for _, dir := range r.layout.Dirs() {
		if err := r.artifacts.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrIO, dir, err)
		}
	}

	state := &ProjectState{
		Name:        name,
		Description: description,
		CreatedAt:   r.now(),
		Stats:       Statistics{ByStatus: map[string]int{}},
	}

	return r.saveStateLocked(state)
}

func (r *Repository) requireInitialized() error {
	exists, err := r.artifacts.Exists(r.layout.StatePath())
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotInitialized, r.layout.Root)
	}

	return nil
}

// CreateTicket assigns a fresh id and timestamp-prefixed slug, persists the
// ticket, and updates project-state statistics under a second lock, both
// locks taken in ascending lexicographic path order (state.md sorts before
// tickets/, so the state lock comes first) to
// avoid deadlock with any concurrent operation that also needs both.
func (r *Repository) CreateTicket(draft Draft) (*Ticket, error) {
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}

	slug, err := NewSlug(draft.SlugBase, r.now())
	if err != nil {
		return nil, err
	}

	if existing, _ := r.findBySlug(slug); existing != "" {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSlug, slug)
	}

	priority := draft.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	if !IsValidPriority(priority) {
		return nil, fmt.Errorf("%w: priority %q", ErrSchemaViolation, priority)
	}

	t := &Ticket{
		ID:          NewID(),
		Slug:        slug,
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    priority,
		Status:      StatusTodo,
		Tags:        draft.Tags,
		Assignee:    draft.Assignee,
		CreatedAt:   r.now(),
		Metadata:    draft.Metadata,
	}

	ticketPath := r.layout.TicketPath(t.ID)
	statePath := r.layout.StatePath()

	paths := orderedPaths(ticketPath, statePath)

	var firstGuard, secondGuard *Guard

	firstGuard, err = Acquire(paths[0], "create_ticket")
	if err != nil {
		return nil, err
	}

	defer firstGuard.Release()

	secondGuard, err = Acquire(paths[1], "create_ticket")
	if err != nil {
		return nil, err
	}

	defer secondGuard.Release()

	if err := r.writeTicketFile(t); err != nil {
		return nil, err
	}

	state, err := r.loadStateFromDisk()
	if err != nil {
		return nil, err
	}

	state.Stats.Total++
	state.Stats.ByStatus[t.Status]++

	if err := r.writeStateFile(state); err != nil {
		return nil, err
	}

	r.cache.Put(t.ID, t)

	return t, nil
}

// orderedPaths returns a, b sorted so the deterministic total lock order
// (ascending lexicographic path) is honored regardless of call-site order.
func orderedPaths(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}

	return [2]string{b, a}
}

// LoadTicket resolves ref (full id, full slug, or unambiguous >=4-char
// prefix) against the live ticket set and returns the ticket, preferring
// the cache when the entry has not expired.
func (r *Repository) LoadTicket(ref string) (*Ticket, error) {
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}

	candidates, err := r.liveCandidates()
	if err != nil {
		return nil, err
	}

	id, err := resolveRef(ref, candidates)
	if err != nil {
		return nil, err
	}

	if cached, ok := r.cache.Get(id); ok {
		return cached, nil
	}

	t, err := r.readTicketFile(r.layout.TicketPath(id))
	if err != nil {
		return nil, err
	}

	r.cache.Put(id, t)

	return t, nil
}

// SaveTicket overwrites an existing ticket under lock. The ticket must
// already exist; its status transition (old -> t.Status) must be legal per
// the transition table, and the monotonic StartedAt/ClosedAt side effects
// are applied automatically.
func (r *Repository) SaveTicket(t *Ticket) error {
	if err := r.requireInitialized(); err != nil {
		return err
	}

	path := r.layout.TicketPath(t.ID)

	// Both locks are taken up front, in the same ascending path order every
	// dual-lock operation uses. Whether the state lock turns out to be
	// needed depends on the old status, which is only known after reading
	// the ticket — acquiring it conditionally here would invert the order
	// against a concurrent CreateTicket or DeleteTicket.
	paths := orderedPaths(path, r.layout.StatePath())

	first, err := Acquire(paths[0], "save_ticket")
	if err != nil {
		return err
	}

	defer first.Release()

	second, err := Acquire(paths[1], "save_ticket")
	if err != nil {
		return err
	}

	defer second.Release()

	existing, err := r.readTicketFile(path)
	if err != nil {
		return err
	}

	if !TransitionAllowed(existing.Status, t.Status) {
		return formatTransitionError(existing.Status, t.Status)
	}

	applyTransitionSideEffects(t, existing.Status, t.Status, r.now)

	if err := r.writeTicketFile(t); err != nil {
		return err
	}

	if existing.Status != t.Status {
		state, err := r.loadStateFromDisk()
		if err != nil {
			return err
		}

		state.Stats.ByStatus[existing.Status]--
		state.Stats.ByStatus[t.Status]++

		if err := r.writeStateFile(state); err != nil {
			return err
		}
	}

	r.cache.Put(t.ID, t)

	return nil
}

// DeleteTicket removes a ticket's file and cache entry, decrements project
// statistics, and clears the active pointer if it referenced id (by
// removing the pointer file outright; a pointer to a deleted ticket reads
// as "none" either way).
func (r *Repository) DeleteTicket(id string) error {
	if err := r.requireInitialized(); err != nil {
		return err
	}

	ticketPath := r.layout.TicketPath(id)
	statePath := r.layout.StatePath()

	paths := orderedPaths(ticketPath, statePath)

	first, err := Acquire(paths[0], "delete_ticket")
	if err != nil {
		return err
	}

	defer first.Release()

	second, err := Acquire(paths[1], "delete_ticket")
	if err != nil {
		return err
	}

	defer second.Release()

	existing, err := r.readTicketFile(ticketPath)
	if err != nil {
		return err
	}

	// The ticket's .lock sibling is NOT removed here: one of the held
	// guards is backed by that very file, and Release removes it on the way
	// out. Deleting it mid-section would hand the lock to another process
	// while this one is still mutating state.
	if err := r.artifacts.Remove(ticketPath); err != nil {
		return err
	}

	state, err := r.loadStateFromDisk()
	if err != nil {
		return err
	}

	state.Stats.Total--
	state.Stats.ByStatus[existing.Status]--

	if err := r.writeStateFile(state); err != nil {
		return err
	}

	r.cache.Invalidate(id)

	if active, ok, err := r.artifacts.readActivePointer(r.layout.ActivePointerPath()); err == nil && ok && active == id {
		_ = r.artifacts.clearActivePointer(r.layout.ActivePointerPath())
	}

	return nil
}

// ArchiveTicket relocates a live ticket's file into the archive directory.
func (r *Repository) ArchiveTicket(id string) error {
	return r.relocate(id, r.layout.TicketPath(id), r.layout.ArchivedTicketPath(id))
}

// UnarchiveTicket relocates an archived ticket's file back into the live
// directory.
func (r *Repository) UnarchiveTicket(id string) error {
	return r.relocate(id, r.layout.ArchivedTicketPath(id), r.layout.TicketPath(id))
}

func (r *Repository) relocate(id, src, dst string) error {
	if err := r.requireInitialized(); err != nil {
		return err
	}

	paths := orderedPaths(src, dst)

	first, err := Acquire(paths[0], "relocate_ticket")
	if err != nil {
		return err
	}

	defer first.Release()

	second, err := Acquire(paths[1], "relocate_ticket")
	if err != nil {
		return err
	}

	defer second.Release()

	exists, err := r.artifacts.Exists(src)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := r.artifacts.Move(src, dst); err != nil {
		return err
	}

	r.cache.Invalidate(id)

	return nil
}

// ListTickets returns a point-in-time snapshot of live tickets
// matching filter. It does not hold any lock across the directory scan;
// tickets appearing or disappearing concurrently may or may not be
// included.
//
// The unfiltered scan itself is memoized in r.cache's all-tickets entry, so
// repeated ListTickets calls with different filters within the TTL window
// only pay for one directory scan.
func (r *Repository) ListTickets(filter Filter) ([]*Ticket, error) {
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}

	all, ok := r.cache.GetAll()
	if !ok {
		var err error

		all, err = r.scanLiveTickets()
		if err != nil {
			return nil, err
		}

		r.cache.PutAll(all)
	}

	var out []*Ticket

	for _, t := range all {
		if filter.matches(t) {
			out = append(out, t)
		}
	}

	return out, nil
}

func (r *Repository) scanLiveTickets() ([]*Ticket, error) {
	entries, err := r.artifacts.fs.ReadDir(r.layout.TicketsDir())
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrIO, r.layout.TicketsDir(), err)
	}

	var all []*Ticket

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), artifactExt)

		t, err := r.readCachedOrDisk(id)
		if err != nil {
			if isNotFoundOrMalformed(err) {
				continue
			}

			return nil, err
		}

		all = append(all, t)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	return all, nil
}

func isNotFoundOrMalformed(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrSchemaViolation)
}

func (r *Repository) readCachedOrDisk(id string) (*Ticket, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached, nil
	}

	t, err := r.readTicketFile(r.layout.TicketPath(id))
	if err != nil {
		return nil, err
	}

	r.cache.Put(id, t)

	return t, nil
}

// SetActive durably points the active pointer at id, overwriting any
// previously stored reference in one atomic write.
func (r *Repository) SetActive(id string) error {
	if err := r.requireInitialized(); err != nil {
		return err
	}

	path := r.layout.ActivePointerPath()

	guard, err := Acquire(path, activePointerOperation)
	if err != nil {
		return err
	}

	defer guard.Release()

	return r.artifacts.writeActivePointer(path, id)
}

// GetActive returns the active ticket id, or ("", false) if none is set or
// the stored id no longer resolves to a live ticket.
func (r *Repository) GetActive() (string, bool, error) {
	if err := r.requireInitialized(); err != nil {
		return "", false, err
	}

	id, ok, err := r.artifacts.readActivePointer(r.layout.ActivePointerPath())
	if err != nil || !ok {
		return "", false, err
	}

	exists, err := r.artifacts.Exists(r.layout.TicketPath(id))
	if err != nil {
		return "", false, err
	}

	if !exists {
		return "", false, nil
	}

	return id, true, nil
}

// ClearActive removes the active pointer artifact, if any.
func (r *Repository) ClearActive() error {
	if err := r.requireInitialized(); err != nil {
		return err
	}

	path := r.layout.ActivePointerPath()

	guard, err := Acquire(path, activePointerOperation)
	if err != nil {
		return err
	}

	defer guard.Release()

	return r.artifacts.clearActivePointer(path)
}

// LoadState returns the project-state artifact.
func (r *Repository) LoadState() (*ProjectState, error) {
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}

	return r.loadStateFromDisk()
}

// SaveState overwrites the project-state artifact under lock.
func (r *Repository) SaveState(state *ProjectState) error {
	if err := r.requireInitialized(); err != nil {
		return err
	}

	return r.saveStateLocked(state)
}

func (r *Repository) saveStateLocked(state *ProjectState) error {
	guard, err := Acquire(r.layout.StatePath(), "save_state")
	if err != nil {
		return err
	}

	defer guard.Release()

	return r.writeStateFile(state)
}

func (r *Repository) loadStateFromDisk() (*ProjectState, error) {
	data, err := r.artifacts.Read(r.layout.StatePath())
	if err != nil {
		return nil, err
	}

	return ParseState(data)
}

func (r *Repository) writeStateFile(state *ProjectState) error {
	data, err := SerializeState(state)
	if err != nil {
		return err
	}

	return r.artifacts.Write(r.layout.StatePath(), []byte(data))
}

func (r *Repository) readTicketFile(path string) (*Ticket, error) {
	data, err := r.artifacts.Read(path)
	if err != nil {
		return nil, err
	}

	return ParseTicket(data)
}

func (r *Repository) writeTicketFile(t *Ticket) error {
	data, err := SerializeTicket(t)
	if err != nil {
		return err
	}

	return r.artifacts.Write(r.layout.TicketPath(t.ID), []byte(data))
}

func (r *Repository) liveCandidates() ([]candidate, error) {
	entries, err := r.artifacts.fs.ReadDir(r.layout.TicketsDir())
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrIO, r.layout.TicketsDir(), err)
	}

	candidates := make([]candidate, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), artifactExt)

		t, err := r.readCachedOrDisk(id)
		if err != nil {
			continue
		}

		candidates = append(candidates, candidate{ID: t.ID, Slug: t.Slug})
	}

	return candidates, nil
}

// archivedCandidates lists the id/slug pairs of every archived ticket.
// Archived tickets aren't read through r.cache: the slug-collision check is
// not a hot path, and caching them would mix archive-directory state into a
// cache otherwise scoped to the live set.
func (r *Repository) archivedCandidates() ([]candidate, error) {
	entries, err := r.artifacts.fs.ReadDir(r.layout.ArchiveDir())
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrIO, r.layout.ArchiveDir(), err)
	}

	candidates := make([]candidate, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), artifactExt)

		t, err := r.readTicketFile(r.layout.ArchivedTicketPath(id))
		if err != nil {
			continue
		}

		candidates = append(candidates, candidate{ID: t.ID, Slug: t.Slug})
	}

	return candidates, nil
}

// findBySlug resolves slug against both live and archived tickets: an
// archived ticket's slug stays reserved, so CreateTicket must not mint a
// new ticket that collides with one sitting in the archive.
func (r *Repository) findBySlug(slug string) (string, error) {
	candidates, err := r.liveCandidates()
	if err != nil {
		return "", err
	}

	archived, err := r.archivedCandidates()
	if err != nil {
		return "", err
	}

	candidates = append(candidates, archived...)

	for _, c := range candidates {
		if c.Slug == slug {
			return c.ID, nil
		}
	}

	return "", nil
}
