// Package lockclient tracks project mutex ownership against the
// remote service.
//
// Each project moves between three states: Unlocked, LockedByMe and
// LockedByOther. Acquire and Release drive the transitions we initiate;
// Observe folds in what a remote poll reports, which is how an
// administrative force-clear or another collaborator's lock becomes
// visible. A failed acquire is never retried automatically: the user
// decides when to try again.
package lockclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/speleokit/speleosync/internal/remote"
)

// State is the lock ownership of one project as seen locally.
type State int

const (
	// Unlocked means nobody holds the project mutex.
	Unlocked State = iota
	// LockedByMe means this process holds the mutex.
	LockedByMe
	// LockedByOther means another collaborator holds the mutex.
	LockedByOther
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case LockedByMe:
		return "locked by me"
	case LockedByOther:
		return "locked by other"
	default:
		return "unknown"
	}
}

// Lock is the tracked lock of one project.
type Lock struct {
	State State
	// Token is the mutex token returned on acquire. Empty when the
	// instance identifies holders by account instead.
	Token string
	// Holder is the account holding the lock when someone else does.
	Holder string
}

// Client tracks lock state per project on top of the remote service.
// All methods are safe for concurrent use.
type Client struct {
	svc  remote.Service
	user string
	log  *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]Lock
}

// New returns a lock client for the given account. The user is matched
// against poll results to attribute locks to ourselves.
func New(svc remote.Service, user string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		svc:   svc,
		user:  user,
		log:   log,
		locks: map[uuid.UUID]Lock{},
	}
}

// Get returns the tracked lock of a project. Untracked projects are
// Unlocked.
func (c *Client) Get(id uuid.UUID) Lock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks[id]
}

// Acquire takes the project mutex. On conflict the project is marked
// LockedByOther and remote.ErrLockConflict is returned. On a network
// error the outcome is indeterminate and the tracked state is left
// unchanged; the caller may try again, we never do so on our own.
func (c *Client) Acquire(ctx context.Context, id uuid.UUID) (Lock, error) {
	token, err := c.svc.AcquireLock(ctx, id)
	if err != nil {
		if errors.Is(err, remote.ErrLockConflict) {
			c.set(id, Lock{State: LockedByOther})
		}
		return c.Get(id), err
	}

	lock := Lock{State: LockedByMe, Token: token}
	c.set(id, lock)
	c.log.Debug("acquired project lock", "project", id)
	return lock, nil
}

// Release drops the project mutex. Releasing a project we do not hold
// is a no-op. A transient network failure is retried once; if the
// retry also fails the project stays LockedByMe so the caller can
// release again later.
func (c *Client) Release(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	lock, ok := c.locks[id]
	c.mu.Unlock()
	if !ok || lock.State != LockedByMe {
		return nil
	}

	err := c.svc.ReleaseLock(ctx, id, lock.Token)
	if err != nil && remote.IsNetwork(err) {
		c.log.Warn("lock release failed, retrying once", "project", id, "error", err)
		err = c.svc.ReleaseLock(ctx, id, lock.Token)
	}
	if err != nil {
		return err
	}

	c.set(id, Lock{State: Unlocked})
	c.log.Debug("released project lock", "project", id)
	return nil
}

// ForceRelease releases the project mutex regardless of the tracked
// state. A fresh process that no longer remembers holding a lock (a
// crash, or a previous invocation) uses this for the explicit release
// path; the service tolerates a release by a non-holder. Retries once
// on a transient network failure like Release.
func (c *Client) ForceRelease(ctx context.Context, id uuid.UUID) error {
	lock := c.Get(id)
	err := c.svc.ReleaseLock(ctx, id, lock.Token)
	if err != nil && remote.IsNetwork(err) {
		c.log.Warn("lock release failed, retrying once", "project", id, "error", err)
		err = c.svc.ReleaseLock(ctx, id, lock.Token)
	}
	if err != nil {
		return err
	}
	// The service answers a release by a non-holder with success, so
	// a lock tracked as held by someone else stays LockedByOther
	// until a poll confirms it is gone.
	if lock.State != LockedByOther {
		c.set(id, Lock{State: Unlocked})
	}
	return nil
}

// Observe folds the mutex info from a remote poll into the tracked
// state and returns the result. A cleared mutex while we thought we
// held it means an administrator force-released us: we drop to
// Unlocked and do not re-acquire.
func (c *Client) Observe(id uuid.UUID, mutex *remote.MutexInfo) Lock {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.locks[id]
	var next Lock
	switch {
	case mutex == nil:
		next = Lock{State: Unlocked}
		if prev.State == LockedByMe {
			c.log.Warn("project lock was cleared remotely", "project", id)
		}
	case c.user != "" && mutex.User == c.user:
		// Keep the token from our own acquire; the poll does not
		// carry it.
		next = Lock{State: LockedByMe, Token: prev.Token}
	default:
		next = Lock{State: LockedByOther, Holder: mutex.User}
	}
	c.locks[id] = next
	return next
}

// Held returns the IDs of every project we currently hold.
func (c *Client) Held() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var held []uuid.UUID
	for id, lock := range c.locks {
		if lock.State == LockedByMe {
			held = append(held, id)
		}
	}
	return held
}

// ReleaseAll releases every lock we hold, typically on shutdown.
// Failures are joined so one stubborn project does not keep the rest
// locked.
func (c *Client) ReleaseAll(ctx context.Context) error {
	var errs []error
	for _, id := range c.Held() {
		if err := c.Release(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) set(id uuid.UUID, lock Lock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks[id] = lock
}
