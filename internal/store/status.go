package store

// Status describes a local project copy in relation to its remote
// counterpart. It is derived, never stored: recompute it from the raw
// facts on every poll tick and after every mutating command.
type Status int

const (
	// StatusUnknown means the facts have not been gathered yet.
	StatusUnknown Status = iota
	// StatusRemoteOnly means the project exists remotely with no
	// local copy at all.
	StatusRemoteOnly
	// StatusEmptyLocal means the local folder exists but no content
	// has ever been downloaded or imported.
	StatusEmptyLocal
	// StatusUpToDate means working copy == index and the synced
	// revision matches the remote revision.
	StatusUpToDate
	// StatusOutOfDate means working copy == index but the remote has
	// moved on.
	StatusOutOfDate
	// StatusDirty means the working copy differs from the index and
	// the synced revision is current.
	StatusDirty
	// StatusDirtyAndOutOfDate means local edits exist and the remote
	// has moved on.
	StatusDirtyAndOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusRemoteOnly:
		return "remote-only"
	case StatusEmptyLocal:
		return "empty-local"
	case StatusUpToDate:
		return "up-to-date"
	case StatusOutOfDate:
		return "out-of-date"
	case StatusDirty:
		return "dirty"
	case StatusDirtyAndOutOfDate:
		return "dirty+out-of-date"
	default:
		return "unknown"
	}
}

// IsDirty reports whether the working copy holds unsaved edits.
func (s Status) IsDirty() bool {
	return s == StatusDirty || s == StatusDirtyAndOutOfDate
}

// Facts are the raw inputs the status projection is computed from.
type Facts struct {
	// LocalExists reports whether the project directory exists.
	LocalExists bool
	// IndexEmpty reports whether the index has never received content.
	IndexEmpty bool
	// Dirty reports whether working copy differs structurally from
	// the index.
	Dirty bool
	// SyncedRevision is the ledger marker; HasSynced is false when
	// the marker is absent or unreadable.
	SyncedRevision string
	HasSynced      bool
	// RemoteRevision is the latest remote marker; empty means the
	// remote project has no commits yet.
	RemoteRevision string
}

// Compute projects Facts onto a Status. Pure: identical inputs yield
// identical results.
func Compute(f Facts) Status {
	if !f.LocalExists {
		return StatusRemoteOnly
	}
	if f.IndexEmpty {
		return StatusEmptyLocal
	}

	// A remote with no commits cannot be ahead of us. A missing
	// ledger marker on a populated index reads as stale: safe,
	// because re-downloading is always allowed.
	current := f.RemoteRevision == "" ||
		(f.HasSynced && f.SyncedRevision == f.RemoteRevision)

	switch {
	case f.Dirty && current:
		return StatusDirty
	case f.Dirty:
		return StatusDirtyAndOutOfDate
	case current:
		return StatusUpToDate
	default:
		return StatusOutOfDate
	}
}
