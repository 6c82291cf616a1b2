// Package supervisor launches the external survey editor and watches
// for its exit.
//
// Editor liveness is tied to the launched process handle, never to pid
// polling: the goroutine that started the process blocks in Wait, so a
// recycled pid can not be mistaken for a still-running editor. When no
// editor command is configured the project folder is revealed in the
// platform file browser instead, and the user marks the session done
// explicitly.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/speleokit/speleosync/internal/util"
)

// ErrAlreadyOpen means the project already has a live editor session.
var ErrAlreadyOpen = errors.New("project is already open in an editor")

// LaunchError means the editor process could not be started. The
// caller is expected to undo whatever it prepared for the session,
// such as a freshly acquired project lock.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch editor %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Session describes one live editing session.
type Session struct {
	ProjectID uuid.UUID
	// Pid of the editor process, 0 for revealed sessions.
	Pid int
	// Revealed sessions have no process to watch: they end when the
	// user calls Done.
	Revealed bool
}

// ExitFunc is called when a session ends. err carries the editor's
// exit error, nil for a clean exit or a revealed session.
type ExitFunc func(projectID uuid.UUID, err error)

// Supervisor tracks at most one session per project.
type Supervisor struct {
	cmd    util.CommandRunner
	onExit ExitFunc
	log    *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	wg       sync.WaitGroup
}

// New creates a supervisor. onExit runs on the watcher goroutine after
// the session is already removed, so it may call back into the
// supervisor.
func New(cmd util.CommandRunner, onExit ExitFunc, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if onExit == nil {
		onExit = func(uuid.UUID, error) {}
	}
	return &Supervisor{
		cmd:      cmd,
		onExit:   onExit,
		log:      log,
		sessions: map[uuid.UUID]*Session{},
	}
}

// Launch starts the configured editor on the given entry file. With an
// empty editor command it falls back to revealing the containing
// directory. The command may carry its own arguments, split on
// whitespace; the entry path is appended last.
func (s *Supervisor) Launch(projectID uuid.UUID, editorCommand, entryPath, revealDir string) (*Session, error) {
	if editorCommand == "" {
		return s.Reveal(projectID, revealDir)
	}

	s.mu.Lock()
	if _, ok := s.sessions[projectID]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	// Reserve the slot before starting so a concurrent Launch can not
	// race us into two editors.
	sess := &Session{ProjectID: projectID}
	s.sessions[projectID] = sess
	s.mu.Unlock()

	parts := strings.Fields(editorCommand)
	args := append(parts[1:], entryPath)
	proc, err := s.cmd.Start(parts[0], args...)
	if err != nil {
		s.remove(projectID)
		return nil, &LaunchError{Command: editorCommand, Err: err}
	}
	// The session is already visible in the map, so the pid write
	// needs the lock.
	s.mu.Lock()
	sess.Pid = proc.Pid()
	s.mu.Unlock()
	s.log.Info("editor launched", "project", projectID, "pid", proc.Pid())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := proc.Wait()
		s.remove(projectID)
		if err != nil {
			s.log.Warn("editor exited with error", "project", projectID, "error", err)
		} else {
			s.log.Info("editor exited", "project", projectID)
		}
		s.onExit(projectID, err)
	}()
	return sess, nil
}

// Reveal opens the project directory in the platform file browser.
// The session has no watched process and ends only through Done.
func (s *Supervisor) Reveal(projectID uuid.UUID, dir string) (*Session, error) {
	s.mu.Lock()
	if _, ok := s.sessions[projectID]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	sess := &Session{ProjectID: projectID, Revealed: true}
	s.sessions[projectID] = sess
	s.mu.Unlock()

	opener := revealCommand()
	if _, err := s.cmd.Run(opener, dir); err != nil {
		s.remove(projectID)
		return nil, &LaunchError{Command: opener, Err: err}
	}
	s.log.Info("project folder revealed", "project", projectID, "dir", dir)
	return sess, nil
}

// Done ends a session explicitly. It is how revealed sessions finish,
// and also lets the user close out a watched session whose editor they
// intend to keep open. Returns false when no session exists.
func (s *Supervisor) Done(projectID uuid.UUID) bool {
	if !s.remove(projectID) {
		return false
	}
	s.onExit(projectID, nil)
	return true
}

// Active reports whether the project has a live session.
func (s *Supervisor) Active(projectID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[projectID]
	return ok
}

// Wait blocks until every watcher goroutine has finished. Meant for
// shutdown after the editors have exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) remove(projectID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[projectID]; !ok {
		return false
	}
	delete(s.sessions, projectID)
	return true
}

// revealCommand returns the platform file browser opener.
func revealCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}
