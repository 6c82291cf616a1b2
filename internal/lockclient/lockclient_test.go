package lockclient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speleokit/speleosync/internal/logging"
	"github.com/speleokit/speleosync/internal/remote"
)

// fakeService stubs the lock operations; the rest of the remote
// surface is unused here.
type fakeService struct {
	remote.Service

	acquire func(uuid.UUID) (string, error)
	release func(uuid.UUID, string) error

	acquireCalls int
	releaseCalls int
}

func (f *fakeService) AcquireLock(_ context.Context, id uuid.UUID) (string, error) {
	f.acquireCalls++
	return f.acquire(id)
}

func (f *fakeService) ReleaseLock(_ context.Context, id uuid.UUID, token string) error {
	f.releaseCalls++
	return f.release(id, token)
}

func TestAcquireSuccess(t *testing.T) {
	svc := &fakeService{acquire: func(uuid.UUID) (string, error) { return "mutex-1", nil }}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()

	lock, err := c.Acquire(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, LockedByMe, lock.State)
	assert.Equal(t, "mutex-1", lock.Token)
	assert.Equal(t, LockedByMe, c.Get(id).State)
}

func TestAcquireConflictMarksLockedByOther(t *testing.T) {
	svc := &fakeService{acquire: func(uuid.UUID) (string, error) { return "", remote.ErrLockConflict }}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()

	_, err := c.Acquire(context.Background(), id)
	assert.True(t, errors.Is(err, remote.ErrLockConflict))
	assert.Equal(t, LockedByOther, c.Get(id).State)
	assert.Equal(t, 1, svc.acquireCalls, "acquire must never retry on its own")
}

func TestAcquireNetworkErrorLeavesStateUnchanged(t *testing.T) {
	svc := &fakeService{acquire: func(uuid.UUID) (string, error) {
		return "", &remote.NetworkError{Op: "acquire lock", Err: errors.New("timeout")}
	}}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()

	_, err := c.Acquire(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, Unlocked, c.Get(id).State)
	assert.Equal(t, 1, svc.acquireCalls)
}

func TestReleaseIdempotent(t *testing.T) {
	svc := &fakeService{release: func(uuid.UUID, string) error { return nil }}
	c := New(svc, "me@example.org", logging.Discard())

	require.NoError(t, c.Release(context.Background(), uuid.New()))
	assert.Zero(t, svc.releaseCalls, "releasing an unheld project must not hit the network")
}

func TestReleaseRetriesOnceOnNetworkError(t *testing.T) {
	calls := 0
	svc := &fakeService{
		acquire: func(uuid.UUID) (string, error) { return "tok", nil },
		release: func(uuid.UUID, string) error {
			calls++
			if calls == 1 {
				return &remote.NetworkError{Op: "release lock", Err: errors.New("reset")}
			}
			return nil
		},
	}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()
	_, err := c.Acquire(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, c.Release(context.Background(), id))
	assert.Equal(t, 2, calls)
	assert.Equal(t, Unlocked, c.Get(id).State)
}

func TestReleaseKeepsStateWhenRetryFails(t *testing.T) {
	svc := &fakeService{
		acquire: func(uuid.UUID) (string, error) { return "tok", nil },
		release: func(uuid.UUID, string) error {
			return &remote.NetworkError{Op: "release lock", Err: errors.New("down")}
		},
	}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()
	_, err := c.Acquire(context.Background(), id)
	require.NoError(t, err)

	require.Error(t, c.Release(context.Background(), id))
	assert.Equal(t, 2, svc.releaseCalls)
	assert.Equal(t, LockedByMe, c.Get(id).State, "a failed release stays held so it can be released again")
}

func TestForceReleaseWithoutTrackedLock(t *testing.T) {
	svc := &fakeService{release: func(uuid.UUID, string) error { return nil }}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()

	require.NoError(t, c.ForceRelease(context.Background(), id))
	assert.Equal(t, 1, svc.releaseCalls, "the server is asked even when we do not remember holding the lock")
	assert.Equal(t, Unlocked, c.Get(id).State)
}

func TestForceReleaseKeepsLockedByOther(t *testing.T) {
	svc := &fakeService{release: func(uuid.UUID, string) error { return nil }}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()
	c.Observe(id, &remote.MutexInfo{User: "rival@example.org"})

	require.NoError(t, c.ForceRelease(context.Background(), id))
	assert.Equal(t, 1, svc.releaseCalls)
	lock := c.Get(id)
	assert.Equal(t, LockedByOther, lock.State, "a tolerated non-holder release must not report the rival's lock as gone")
	assert.Equal(t, "rival@example.org", lock.Holder)
}

func TestObserveTransitions(t *testing.T) {
	svc := &fakeService{acquire: func(uuid.UUID) (string, error) { return "tok", nil }}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()

	lock := c.Observe(id, &remote.MutexInfo{User: "rival@example.org"})
	assert.Equal(t, LockedByOther, lock.State)
	assert.Equal(t, "rival@example.org", lock.Holder)

	lock = c.Observe(id, nil)
	assert.Equal(t, Unlocked, lock.State)

	_, err := c.Acquire(context.Background(), id)
	require.NoError(t, err)
	lock = c.Observe(id, &remote.MutexInfo{User: "me@example.org"})
	assert.Equal(t, LockedByMe, lock.State)
	assert.Equal(t, "tok", lock.Token, "a poll must not drop the acquire token")
}

func TestObserveForceClearDropsToUnlocked(t *testing.T) {
	svc := &fakeService{acquire: func(uuid.UUID) (string, error) { return "tok", nil }}
	c := New(svc, "me@example.org", logging.Discard())
	id := uuid.New()
	_, err := c.Acquire(context.Background(), id)
	require.NoError(t, err)

	lock := c.Observe(id, nil)
	assert.Equal(t, Unlocked, lock.State)
	assert.Zero(t, svc.acquireCalls-1, "a force-clear must not trigger a re-acquire")
}

func TestReleaseAll(t *testing.T) {
	svc := &fakeService{
		acquire: func(uuid.UUID) (string, error) { return "tok", nil },
		release: func(uuid.UUID, string) error { return nil },
	}
	c := New(svc, "me@example.org", logging.Discard())
	a, b := uuid.New(), uuid.New()
	_, err := c.Acquire(context.Background(), a)
	require.NoError(t, err)
	_, err = c.Acquire(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, c.Held(), 2)

	require.NoError(t, c.ReleaseAll(context.Background()))
	assert.Empty(t, c.Held())
}
