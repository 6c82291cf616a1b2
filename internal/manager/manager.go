// Package manager orchestrates projects: status detection, download,
// commit, lock handling and editor sessions.
//
// Every mutating command recomputes the project status and publishes a
// state snapshot before it returns, so a caller that awaited a command
// never reads a stale status afterwards. Long-running commands hold a
// per-project busy flag; a second mutating command against the same
// project is rejected instead of queued.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appstate"
	"github.com/speleokit/speleosync/internal/codec"
	"github.com/speleokit/speleosync/internal/config"
	"github.com/speleokit/speleosync/internal/ledger"
	"github.com/speleokit/speleosync/internal/lockclient"
	"github.com/speleokit/speleosync/internal/remote"
	"github.com/speleokit/speleosync/internal/store"
	"github.com/speleokit/speleosync/internal/supervisor"
	"github.com/speleokit/speleosync/internal/util"
)

var (
	// ErrBusy means another command is already in flight for the
	// project.
	ErrBusy = errors.New("another operation is in progress for this project")
	// ErrLockRequired means the command needs the project lock and we
	// do not hold it.
	ErrLockRequired = errors.New("operation requires holding the project lock")
)

// CommitResult reports what a commit did.
type CommitResult struct {
	// Saved is false when the remote found no changes to record.
	Saved    bool
	Revision string
}

// Manager wires the local store, revision ledger, remote service, lock
// client and editor supervisor together.
type Manager struct {
	store  *store.Store
	ledger *ledger.Ledger
	svc    remote.Service
	locks  *lockclient.Client
	sup    *supervisor.Supervisor
	state  *appstate.Store
	cfg    *config.Config
	log    *slog.Logger
}

// Options carries the collaborators for New.
type Options struct {
	Env     *util.Env
	Config  *config.Config
	Service remote.Service
	User    string
	State   *appstate.Store
	Log     *slog.Logger
}

// New builds a manager. The editor supervisor is created here so its
// exit handler can release locks and refresh status.
func New(opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		store:  store.New(opts.Env.Fs, opts.Config.DataDir),
		ledger: ledger.New(opts.Env.Fs, opts.Config.DataDir),
		svc:    opts.Service,
		locks:  lockclient.New(opts.Service, opts.User, log),
		state:  opts.State,
		cfg:    opts.Config,
		log:    log,
	}
	m.sup = supervisor.New(opts.Env.Cmd, m.handleEditorExit, log)
	m.state.Update(func(s *appstate.State) {
		s.User = opts.User
		s.Instance = opts.Config.Instance
	})
	return m
}

// State returns the published state store.
func (m *Manager) State() *appstate.Store { return m.state }

// Locks returns the lock client, mainly for the reconciliation loop.
func (m *Manager) Locks() *lockclient.Client { return m.locks }

// Supervisor returns the editor supervisor.
func (m *Manager) Supervisor() *supervisor.Supervisor { return m.sup }

// Store returns the local project store.
func (m *Manager) Store() *store.Store { return m.store }

// RefreshRemoteList polls the remote project list and folds it into
// the state. A transient failure keeps the previous list and flags the
// snapshot as stale instead of erroring out.
func (m *Manager) RefreshRemoteList(ctx context.Context) error {
	projects, err := m.svc.FetchProjects(ctx)
	if err != nil {
		m.state.Update(func(s *appstate.State) {
			s.Loading = false
			s.RemoteOK = false
		})
		if remote.IsNetwork(err) {
			m.log.Warn("remote refresh failed, keeping last known list", "error", err)
			return nil
		}
		return err
	}

	m.state.Update(func(s *appstate.State) {
		s.Loading = false
		s.RemoteOK = true
		s.LastRemoteSync = time.Now()

		merged := make([]appstate.Project, 0, len(projects))
		for _, info := range projects {
			next := appstate.Project{Info: info}
			if prev := s.Find(info.ID); prev != nil {
				next.Busy = prev.Busy
				next.Editing = prev.Editing
			}
			next.Lock = m.locks.Observe(info.ID, info.ActiveMutex)
			merged = append(merged, next)
		}
		s.Projects = merged
	})

	// Statuses depend on the fresh remote revisions.
	for _, info := range projects {
		m.RefreshStatus(info.ID)
	}
	return nil
}

// RefreshStatus recomputes one project's status from the ledger, the
// local store and the last known remote revision, and publishes it.
func (m *Manager) RefreshStatus(id uuid.UUID) store.Status {
	facts := store.Facts{}
	localExists, indexEmpty, dirty, err := m.store.Facts(id)
	if err != nil {
		m.log.Error("failed to inspect local project", "project", id, "error", err)
	}
	facts.LocalExists = localExists
	facts.IndexEmpty = indexEmpty
	facts.Dirty = dirty
	facts.SyncedRevision, facts.HasSynced = m.ledger.Read(id)
	if p := m.state.Get().Find(id); p != nil {
		facts.RemoteRevision = p.Info.Revision()
	}

	status := store.Compute(facts)
	m.state.UpdateProject(id, func(p *appstate.Project) {
		p.Status = status
		p.Editing = m.sup.Active(id)
	})
	return status
}

// Open acquires the project lock and starts an editing session on the
// working copy. A project without local content is downloaded first.
// If the editor fails to launch, the freshly acquired lock is released
// again.
func (m *Manager) Open(ctx context.Context, id uuid.UUID) (*supervisor.Session, error) {
	if err := m.beginBusy(id); err != nil {
		return nil, err
	}
	defer m.endBusy(id)

	lock, err := m.locks.Acquire(ctx, id)
	if err != nil {
		m.publishLock(id, m.locks.Get(id))
		return nil, err
	}
	m.publishLock(id, lock)

	status := m.RefreshStatus(id)
	if status == store.StatusRemoteOnly || status == store.StatusEmptyLocal || status == store.StatusOutOfDate {
		if err := m.download(ctx, id); err != nil {
			m.rollbackLock(ctx, id)
			return nil, err
		}
	}

	entry, dir, err := m.entryFile(id)
	if err != nil {
		m.rollbackLock(ctx, id)
		return nil, err
	}

	sess, err := m.sup.Launch(id, m.cfg.EditorCommand, entry, dir)
	if err != nil {
		m.rollbackLock(ctx, id)
		return nil, err
	}
	m.state.UpdateProject(id, func(p *appstate.Project) { p.Editing = true })
	m.RefreshStatus(id)
	return sess, nil
}

// Download fetches the project archive and atomically replaces both
// local copies, then advances the revision ledger. On any failure the
// local trees are untouched.
func (m *Manager) Download(ctx context.Context, id uuid.UUID) error {
	if err := m.beginBusy(id); err != nil {
		return err
	}
	defer m.endBusy(id)
	err := m.download(ctx, id)
	m.RefreshStatus(id)
	return err
}

func (m *Manager) download(ctx context.Context, id uuid.UUID) error {
	info, err := m.svc.FetchProject(ctx, id)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			m.dropProject(id)
		}
		return err
	}
	m.state.UpdateProject(id, func(p *appstate.Project) { p.Info = *info })

	archive, err := m.svc.Download(ctx, id)
	if err != nil {
		return err
	}
	files, err := store.Unpack(archive)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrImport, err)
	}
	if err := verifyArchive(files); err != nil {
		return err
	}

	if err := m.store.InstallIndex(id, files); err != nil {
		return err
	}
	if rev := info.Revision(); rev != "" {
		if err := m.ledger.Write(id, rev); err != nil {
			return err
		}
	} else {
		// A project with no commits yet has nothing to mark.
		if err := m.ledger.Clear(id); err != nil {
			return err
		}
	}
	m.log.Info("project downloaded", "project", id, "revision", info.Revision(), "files", len(files))
	return nil
}

// verifyArchive checks that the archive content survives the survey
// codec before anything touches disk. An archive without metadata is
// accepted as an empty project.
func verifyArchive(files store.FileSet) error {
	data, ok := files[codec.MetadataFileName]
	if !ok {
		return nil
	}
	doc, err := codec.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrImport, err)
	}
	reencoded, err := codec.Serialize(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrImport, err)
	}
	if _, err := codec.Parse(reencoded); err != nil {
		return fmt.Errorf("%w: %v", store.ErrImport, err)
	}
	for _, name := range doc.TrackedFiles() {
		if _, ok := files[name]; !ok {
			return fmt.Errorf("%w: archive is missing tracked file %q", store.ErrImport, name)
		}
	}
	return nil
}

// Commit packs the working copy and uploads it. Valid only while we
// hold the project lock. On success the index is promoted from the
// working copy and the ledger advances; on failure both local state
// and the lock are left alone so the user can retry.
func (m *Manager) Commit(ctx context.Context, id uuid.UUID, message string) (*CommitResult, error) {
	if err := m.beginBusy(id); err != nil {
		return nil, err
	}
	defer m.endBusy(id)
	defer m.RefreshStatus(id)

	switch m.locks.Get(id).State {
	case lockclient.LockedByMe:
	case lockclient.LockedByOther:
		return nil, remote.ErrLockConflict
	default:
		return nil, ErrLockRequired
	}

	archive, err := m.store.PackWorking(id)
	if err != nil {
		return nil, err
	}
	result, err := m.svc.Upload(ctx, id, message, archive)
	if err != nil {
		return nil, err
	}
	if !result.Saved {
		m.log.Info("commit recorded no changes", "project", id)
		return &CommitResult{Saved: false}, nil
	}

	if err := m.store.PromoteIndexFromWorking(id); err != nil {
		return nil, err
	}
	revision := ""
	if result.Commit != nil {
		revision = result.Commit.ID
		if err := m.ledger.Write(id, revision); err != nil {
			return nil, err
		}
		m.state.UpdateProject(id, func(p *appstate.Project) {
			p.Info.LatestCommit = result.Commit
		})
	}
	m.log.Info("project committed", "project", id, "revision", revision)
	return &CommitResult{Saved: true, Revision: revision}, nil
}

// Discard resets the working copy from the index. Purely local, no
// lock needed.
func (m *Manager) Discard(id uuid.UUID) error {
	if err := m.beginBusy(id); err != nil {
		return err
	}
	defer m.endBusy(id)
	defer m.RefreshStatus(id)
	return m.store.DiscardChanges(id)
}

// Reimport reseeds the working copy from the editor's own files. It
// implies an eventual commit, so the project lock is required.
func (m *Manager) Reimport(id uuid.UUID, format codec.Format, source afero.Fs, entryPath string) (*codec.Document, error) {
	if err := m.beginBusy(id); err != nil {
		return nil, err
	}
	defer m.endBusy(id)
	defer m.RefreshStatus(id)

	switch m.locks.Get(id).State {
	case lockclient.LockedByMe:
	case lockclient.LockedByOther:
		return nil, remote.ErrLockConflict
	default:
		return nil, ErrLockRequired
	}
	return m.store.Import(id, format, source, entryPath)
}

// Release drops the project lock explicitly. It releases on the
// server even when this process does not remember holding the lock,
// so a crashed session can be cleaned up. Releasing an unheld project
// is not an error.
func (m *Manager) Release(ctx context.Context, id uuid.UUID) error {
	err := m.locks.ForceRelease(ctx, id)
	m.publishLock(id, m.locks.Get(id))
	m.RefreshStatus(id)
	return err
}

// Create registers a new remote project and a matching empty local
// layout.
func (m *Manager) Create(ctx context.Context, req remote.NewProject) (*remote.ProjectInfo, error) {
	info, err := m.svc.CreateProject(ctx, req)
	if err != nil {
		return nil, err
	}
	m.state.UpdateProject(info.ID, func(p *appstate.Project) { p.Info = *info })
	m.RefreshStatus(info.ID)
	m.log.Info("project created", "project", info.ID, "name", info.Name)
	return info, nil
}

// Done ends a revealed (or lingering) editing session explicitly,
// which releases the lock through the usual exit path.
func (m *Manager) Done(id uuid.UUID) bool {
	return m.sup.Done(id)
}

// Shutdown releases every held lock and waits for editor watchers.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.locks.ReleaseAll(ctx)
	m.sup.Wait()
	return err
}

// handleEditorExit runs when an editor session ends: the lock is
// released and the status refreshed, within one fast tick of the exit.
func (m *Manager) handleEditorExit(id uuid.UUID, exitErr error) {
	if exitErr != nil {
		m.log.Warn("editor session ended abnormally", "project", id, "error", exitErr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout.Std())
	defer cancel()
	if err := m.locks.Release(ctx, id); err != nil {
		m.log.Error("failed to release lock after editor exit", "project", id, "error", err)
	}
	m.state.UpdateProject(id, func(p *appstate.Project) {
		p.Editing = false
		p.Lock = m.locks.Get(id)
	})
	m.RefreshStatus(id)
}

// entryFile resolves the file the editor should open, falling back to
// the working directory itself when the metadata names none.
func (m *Manager) entryFile(id uuid.UUID) (entry, dir string, err error) {
	dir = m.store.WorkingDir(id)
	doc, err := codec.LoadTree(m.store.Fs(), dir)
	if err != nil {
		return "", "", err
	}
	if doc == nil || doc.Project.EntryFile == "" {
		return dir, dir, nil
	}
	return dir + "/" + doc.Project.EntryFile, dir, nil
}

func (m *Manager) beginBusy(id uuid.UUID) error {
	conflict := false
	m.state.UpdateProject(id, func(p *appstate.Project) {
		if p.Busy {
			conflict = true
			return
		}
		p.Busy = true
	})
	if conflict {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	return nil
}

func (m *Manager) endBusy(id uuid.UUID) {
	m.state.UpdateProject(id, func(p *appstate.Project) { p.Busy = false })
}

func (m *Manager) publishLock(id uuid.UUID, lock lockclient.Lock) {
	m.state.UpdateProject(id, func(p *appstate.Project) { p.Lock = lock })
}

func (m *Manager) rollbackLock(ctx context.Context, id uuid.UUID) {
	if err := m.locks.Release(ctx, id); err != nil {
		m.log.Error("failed to roll back project lock", "project", id, "error", err)
	}
	m.publishLock(id, m.locks.Get(id))
}

// dropProject removes a project the remote no longer knows about from
// the published state. Local files are kept; vanishing remotely is a
// refresh trigger, not a deletion.
func (m *Manager) dropProject(id uuid.UUID) {
	m.state.Update(func(s *appstate.State) {
		kept := s.Projects[:0]
		for _, p := range s.Projects {
			if p.Info.ID != id {
				kept = append(kept, p)
			}
		}
		s.Projects = kept
	})
}
