package store

import "path/filepath"

// artifactExt is the extension used for the ticket and project-state
// artifacts. One canonical serialization format is used across both, per
// the on-disk layout contract. The config file is JSONC instead (see
// configFileName).
const artifactExt = ".md"

// configFileName is the project-local config artifact. JSONC, so users can
// annotate it with comments without a stricter grammar rejecting the file.
const configFileName = ".tkstore.jsonc"

// Layout is a pure function from a project root to every path the store
// derives from it. Paths are never cached; callers recompute them from the
// root whenever needed.
type Layout struct {
	Root string
}

// NewLayout returns the Layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// ConfigPath is the project-local config file.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Root, configFileName)
}

// StatePath is the single ProjectState artifact.
func (l Layout) StatePath() string {
	return filepath.Join(l.Root, "state"+artifactExt)
}

// ActivePointerPath is the single ActivePointer artifact.
func (l Layout) ActivePointerPath() string {
	return filepath.Join(l.Root, "active_ticket")
}

// TicketsDir holds one artifact per live ticket.
func (l Layout) TicketsDir() string {
	return filepath.Join(l.Root, "tickets")
}

// ArchiveDir holds tickets relocated out of the live set.
func (l Layout) ArchiveDir() string {
	return filepath.Join(l.Root, "archive")
}

// SpecsDir holds specification documents; not written by the core, but part
// of the stable layout external collaborators rely on.
func (l Layout) SpecsDir() string {
	return filepath.Join(l.Root, "specs")
}

// TemplatesDir holds CLAUDE.md and similar templates; external collaborator
// territory only.
func (l Layout) TemplatesDir() string {
	return filepath.Join(l.Root, "templates")
}

// PluginsDir is reserved for external collaborator plugins.
func (l Layout) PluginsDir() string {
	return filepath.Join(l.Root, "plugins")
}

// BackupsDir holds point-in-time copies made by external collaborators
// before destructive operations; the core never writes here.
func (l Layout) BackupsDir() string {
	return filepath.Join(l.Root, "backups")
}

// TicketPath is the live artifact path for a ticket id.
func (l Layout) TicketPath(id string) string {
	return filepath.Join(l.TicketsDir(), id+artifactExt)
}

// ArchivedTicketPath is the archive artifact path for a ticket id.
func (l Layout) ArchivedTicketPath(id string) string {
	return filepath.Join(l.ArchiveDir(), id+artifactExt)
}

// LockPath is the sibling lock file for an arbitrary artifact path.
func (l Layout) LockPath(artifactPath string) string {
	return artifactPath + ".lock"
}

// Dirs returns every directory Initialize must create, in creation order.
func (l Layout) Dirs() []string {
	return []string{
		l.Root,
		l.TicketsDir(),
		l.ArchiveDir(),
		l.SpecsDir(),
		l.TemplatesDir(),
		l.PluginsDir(),
		l.BackupsDir(),
	}
}
