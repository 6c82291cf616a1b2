// Package store owns the on-disk two-copy layout of a local project:
// an index tree holding the last-synced remote snapshot and a working
// tree the survey editor edits in place. Dirtiness is a structural,
// byte-for-byte comparison of the two trees; timestamps are never
// consulted.
//
// Every mutation replaces a whole tree via a staged directory and a
// rename swap, so a crash or failure leaves either the old tree or
// the fully-new tree, never a mix.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appdir"
	"github.com/speleokit/speleosync/internal/codec"
)

// ErrImport reports that editor-native files could not be imported
// into a working copy.
var ErrImport = errors.New("project import failed")

// Store manages the two-copy layout for all local projects under one
// data directory.
type Store struct {
	fs      afero.Fs
	dataDir string

	mu    sync.Mutex
	projs map[uuid.UUID]*sync.RWMutex
}

// New creates a Store rooted at the given data directory.
func New(fs afero.Fs, dataDir string) *Store {
	return &Store{
		fs:      fs,
		dataDir: dataDir,
		projs:   make(map[uuid.UUID]*sync.RWMutex),
	}
}

// projectMu returns the per-project mutex, creating it on first use.
// The mutex serializes tree swaps against snapshot reads so a status
// computation never observes a half-swapped tree.
func (s *Store) projectMu(id uuid.UUID) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.projs[id]
	if !ok {
		mu = &sync.RWMutex{}
		s.projs[id] = mu
	}
	return mu
}

// Fs exposes the underlying filesystem, mainly for collaborators that
// share it (ledger, supervisor).
func (s *Store) Fs() afero.Fs { return s.fs }

// DataDir returns the data directory the store is rooted at.
func (s *Store) DataDir() string { return s.dataDir }

// WorkingDir returns the working copy directory for a project.
func (s *Store) WorkingDir(id uuid.UUID) string {
	return appdir.WorkingDir(s.dataDir, id)
}

// LocalExists reports whether the project has any local presence.
func (s *Store) LocalExists(id uuid.UUID) bool {
	ok, err := afero.DirExists(s.fs, appdir.ProjectDir(s.dataDir, id))
	return err == nil && ok
}

// Snapshot returns the index and working trees of a project.
func (s *Store) Snapshot(id uuid.UUID) (index, working FileSet, err error) {
	mu := s.projectMu(id)
	mu.RLock()
	defer mu.RUnlock()

	index, err = ReadTree(s.fs, appdir.IndexDir(s.dataDir, id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read index tree: %w", err)
	}
	working, err = ReadTree(s.fs, appdir.WorkingDir(s.dataDir, id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read working tree: %w", err)
	}
	return index, working, nil
}

// Facts gathers the local inputs of the status projection. The
// revision facts are filled in by the caller from the ledger.
func (s *Store) Facts(id uuid.UUID) (localExists, indexEmpty, dirty bool, err error) {
	if !s.LocalExists(id) {
		return false, true, false, nil
	}
	index, working, err := s.Snapshot(id)
	if err != nil {
		return true, false, false, err
	}
	return true, treeIsEmpty(index), !index.Equal(working), nil
}

// treeIsEmpty reports whether a tree has never received project
// content: no files, or only an empty metadata document.
func treeIsEmpty(files FileSet) bool {
	switch len(files) {
	case 0:
		return true
	case 1:
		data, ok := files[codec.MetadataFileName]
		if !ok {
			return false
		}
		doc, err := codec.Parse(data)
		return err == nil && doc.IsEmpty()
	default:
		return false
	}
}

// PackWorking serializes the working copy into a transportable
// archive.
func (s *Store) PackWorking(id uuid.UUID) ([]byte, error) {
	_, working, err := s.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return Pack(working)
}

// InstallIndex replaces both index and working copy with the given
// tree, as happens after a successful download. Both trees are staged
// completely before anything is swapped, and a failed working copy
// swap rolls the index swap back, so on any error both copies keep
// their pre-call content.
func (s *Store) InstallIndex(id uuid.UUID, files FileSet) error {
	mu := s.projectMu(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := appdir.EnsureProjectDirs(s.fs, s.dataDir, id); err != nil {
		return err
	}

	indexDir := appdir.IndexDir(s.dataDir, id)
	workingDir := appdir.WorkingDir(s.dataDir, id)

	indexStage, err := s.stageTree(indexDir, files)
	if err != nil {
		return err
	}
	workingStage, err := s.stageTree(workingDir, files)
	if err != nil {
		_ = s.fs.RemoveAll(indexStage)
		return err
	}

	rollbackIndex, err := s.swapAside(indexStage, indexDir)
	if err != nil {
		_ = s.fs.RemoveAll(workingStage)
		return err
	}
	if err := s.swapIn(workingStage, workingDir); err != nil {
		rollbackIndex()
		return err
	}
	s.commitSwap(indexDir)
	return nil
}

// PromoteIndexFromWorking atomically replaces the index with the
// current working copy content, as happens after a successful upload.
func (s *Store) PromoteIndexFromWorking(id uuid.UUID) error {
	mu := s.projectMu(id)
	mu.Lock()
	defer mu.Unlock()

	working, err := ReadTree(s.fs, appdir.WorkingDir(s.dataDir, id))
	if err != nil {
		return fmt.Errorf("failed to read working tree: %w", err)
	}
	indexDir := appdir.IndexDir(s.dataDir, id)
	stage, err := s.stageTree(indexDir, working)
	if err != nil {
		return err
	}
	return s.swapIn(stage, indexDir)
}

// DiscardChanges atomically replaces the working copy with the index
// content, dropping local edits.
func (s *Store) DiscardChanges(id uuid.UUID) error {
	mu := s.projectMu(id)
	mu.Lock()
	defer mu.Unlock()

	index, err := ReadTree(s.fs, appdir.IndexDir(s.dataDir, id))
	if err != nil {
		return fmt.Errorf("failed to read index tree: %w", err)
	}
	workingDir := appdir.WorkingDir(s.dataDir, id)
	stage, err := s.stageTree(workingDir, index)
	if err != nil {
		return err
	}
	return s.swapIn(stage, workingDir)
}

// Import seeds the working copy from the editor's own on-disk files:
// the entry file plus every survey file it references. Existing
// editor artifacts in the working copy are dropped; unrelated files
// (notes, photos) survive. The index is never touched.
func (s *Store) Import(id uuid.UUID, format codec.Format, source afero.Fs, entryPath string) (*codec.Document, error) {
	entry, err := afero.ReadFile(source, entryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read entry file %s: %v", ErrImport, entryPath, err)
	}

	sourceDir := filepath.Dir(entryPath)
	refs := codec.References(entry, format)

	doc := codec.NewDocument(id, format)
	doc.Project.EntryFile = filepath.Base(entryPath)
	doc.Project.DataFiles = refs

	incoming := FileSet{doc.Project.EntryFile: entry}
	for _, rel := range refs {
		if !safeRelPath(rel) {
			return nil, fmt.Errorf("%w: referenced file %q escapes the project", ErrImport, rel)
		}
		data, err := afero.ReadFile(source, filepath.Join(sourceDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("%w: referenced survey file %s missing: %v", ErrImport, rel, err)
		}
		incoming[rel] = data
	}

	meta, err := codec.Serialize(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImport, err)
	}
	incoming[codec.MetadataFileName] = meta

	mu := s.projectMu(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := appdir.EnsureProjectDirs(s.fs, s.dataDir, id); err != nil {
		return nil, err
	}

	workingDir := appdir.WorkingDir(s.dataDir, id)
	current, err := ReadTree(s.fs, workingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read working tree: %w", err)
	}

	next := FileSet{}
	for name, data := range current {
		if !codec.IsArtifact(name, format) {
			next[name] = data
		}
	}
	for name, data := range incoming {
		next[name] = data
	}

	stage, err := s.stageTree(workingDir, next)
	if err != nil {
		return nil, err
	}
	if err := s.swapIn(stage, workingDir); err != nil {
		return nil, err
	}
	return doc, nil
}

// stageTree writes a complete tree next to target and returns the
// staging path. On failure the staging directory is removed.
func (s *Store) stageTree(target string, files FileSet) (string, error) {
	stage := target + ".stage"
	if err := s.fs.RemoveAll(stage); err != nil {
		return "", fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := WriteTree(s.fs, stage, files); err != nil {
		_ = s.fs.RemoveAll(stage)
		return "", err
	}
	return stage, nil
}

// swapIn replaces target with the staged tree by rename. If the
// final rename fails the previous tree is restored.
func (s *Store) swapIn(stage, target string) error {
	if _, err := s.swapAside(stage, target); err != nil {
		return err
	}
	s.commitSwap(target)
	return nil
}

// swapAside replaces target with the staged tree, keeping the previous
// tree at target+".old" until commitSwap removes it. The returned
// rollback restores the previous tree, so a caller swapping several
// trees can undo the earlier ones when a later swap fails.
func (s *Store) swapAside(stage, target string) (rollback func(), err error) {
	old := target + ".old"
	if err := s.fs.RemoveAll(old); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", old, err)
	}

	hadTarget, err := afero.DirExists(s.fs, target)
	if err != nil {
		return nil, err
	}
	if hadTarget {
		if err := s.fs.Rename(target, old); err != nil {
			_ = s.fs.RemoveAll(stage)
			return nil, fmt.Errorf("failed to move aside %s: %w", target, err)
		}
	}

	if err := s.fs.Rename(stage, target); err != nil {
		if hadTarget {
			_ = s.fs.Rename(old, target)
		}
		_ = s.fs.RemoveAll(stage)
		return nil, fmt.Errorf("failed to install %s: %w", target, err)
	}

	return func() {
		_ = s.fs.RemoveAll(target)
		if hadTarget {
			_ = s.fs.Rename(old, target)
		}
	}, nil
}

func (s *Store) commitSwap(target string) {
	_ = s.fs.RemoveAll(target + ".old")
}
