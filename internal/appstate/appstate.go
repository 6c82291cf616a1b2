// Package appstate holds the in-memory application state shared
// between the reconciliation loop and the user-facing commands.
//
// A single writer mutates the state through Update; every mutation
// publishes an immutable snapshot to subscribers. Readers only ever
// see snapshots, so a slow consumer can never observe a half-applied
// transition.
package appstate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speleokit/speleosync/internal/lockclient"
	"github.com/speleokit/speleosync/internal/remote"
	"github.com/speleokit/speleosync/internal/store"
)

// Project is the merged local and remote view of one project.
type Project struct {
	Info   remote.ProjectInfo
	Status store.Status
	Lock   lockclient.Lock
	// Busy means a long-running command (download, commit, reimport)
	// currently owns the project.
	Busy bool
	// Editing means an editor session is live on the working copy.
	Editing bool
}

// State is the full application state. Snapshots of it are immutable
// once published.
type State struct {
	User     string
	Instance string
	// Loading is true until the first remote refresh completes or
	// fails.
	Loading bool
	// RemoteOK reports whether the last remote refresh succeeded.
	// Projects keeps its previous contents when it did not.
	RemoteOK bool
	// LastRemoteSync is the wall time of the last successful remote
	// refresh.
	LastRemoteSync time.Time
	Projects       []Project
}

// Clone deep-copies the state so a snapshot can not alias the writer's
// slices.
func (s State) Clone() State {
	out := s
	out.Projects = make([]Project, len(s.Projects))
	copy(out.Projects, s.Projects)
	return out
}

// Find returns the project with the given ID, or nil.
func (s State) Find(id uuid.UUID) *Project {
	for i := range s.Projects {
		if s.Projects[i].Info.ID == id {
			return &s.Projects[i]
		}
	}
	return nil
}

// Store is the single-writer state container.
type Store struct {
	mu      sync.Mutex
	current State
	subs    map[int]chan State
	nextSub int
}

// NewStore creates a store in the loading state.
func NewStore() *Store {
	return &Store{
		current: State{Loading: true},
		subs:    map[int]chan State{},
	}
}

// Get returns the latest snapshot.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Update applies fn to the state and publishes the result. fn runs
// under the store lock and must not block.
func (s *Store) Update(fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	fn(&next)
	s.current = next

	snapshot := next.Clone()
	for _, ch := range s.subs {
		// Drop the stale snapshot for a full subscriber; the latest
		// one always lands.
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
	return snapshot
}

// UpdateProject mutates a single project in place, adding it if
// missing, and publishes the result.
func (s *Store) UpdateProject(id uuid.UUID, fn func(*Project)) State {
	return s.Update(func(st *State) {
		if p := st.Find(id); p != nil {
			fn(p)
			return
		}
		var p Project
		p.Info.ID = id
		fn(&p)
		st.Projects = append(st.Projects, p)
	})
}

// Subscribe registers for snapshots. The channel holds the latest
// snapshot only; missed intermediates are intentionally dropped.
// cancel must be called when done.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	ch <- s.current.Clone()
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
