// Package reconcile runs the background loop that keeps published
// project state honest.
//
// Two cadences drive it: a slow tick polls the remote service for
// project metadata, revisions and lock holders; a fast tick recomputes
// local statuses so an edit in the external editor surfaces within a
// second. A filesystem watcher on the working copies nudges the fast
// path immediately instead of waiting out the tick.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/speleokit/speleosync/internal/manager"
)

// Loop is the reconciliation loop.
type Loop struct {
	mgr     *manager.Manager
	watcher *Watcher
	remote  time.Duration
	local   time.Duration
	timeout time.Duration
	log     *slog.Logger
	nudge   chan struct{}
}

// Options configures a Loop. Watcher may be nil when filesystem
// nudges are not wanted, such as in tests on a memory filesystem.
type Options struct {
	Manager        *manager.Manager
	Watcher        *Watcher
	RemoteInterval time.Duration
	LocalInterval  time.Duration
	RequestTimeout time.Duration
	Log            *slog.Logger
}

// New creates a loop. Start must be called to run it.
func New(opts Options) *Loop {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		mgr:     opts.Manager,
		watcher: opts.Watcher,
		remote:  opts.RemoteInterval,
		local:   opts.LocalInterval,
		timeout: opts.RequestTimeout,
		log:     log,
		nudge:   make(chan struct{}, 1),
	}
}

// Nudge requests an immediate local refresh, coalescing with any
// pending one.
func (l *Loop) Nudge() {
	select {
	case l.nudge <- struct{}{}:
	default:
	}
}

// Start launches the loop goroutine. It performs one remote refresh
// up front so the first published snapshot is populated, then settles
// into the tick cadence. The returned stop function blocks until the
// goroutine has exited.
func (l *Loop) Start(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	slowTicker := time.NewTicker(l.remote)
	fastTicker := time.NewTicker(l.local)

	var watcherNudges <-chan struct{}
	if l.watcher != nil {
		l.watcher.Start()
		watcherNudges = l.watcher.Nudges()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer slowTicker.Stop()
		defer fastTicker.Stop()

		l.refreshRemote(ctx)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-slowTicker.C:
				l.refreshRemote(ctx)
			case <-fastTicker.C:
				l.refreshLocal()
			case <-l.nudge:
				l.refreshLocal()
			case <-watcherNudges:
				l.refreshLocal()
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		if l.watcher != nil {
			if err := l.watcher.Stop(); err != nil {
				l.log.Warn("failed to stop filesystem watcher", "error", err)
			}
		}
	}
}

// refreshRemote polls the remote list and re-arms the filesystem
// watcher for any working copy that appeared since the last pass.
func (l *Loop) refreshRemote(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.mgr.RefreshRemoteList(tickCtx); err != nil {
		l.log.Warn("remote refresh failed", "error", err)
	}
	l.rearmWatcher()
}

// refreshLocal recomputes local statuses only; it never touches the
// network, so it is safe on the fast cadence.
func (l *Loop) refreshLocal() {
	for _, p := range l.mgr.State().Get().Projects {
		l.mgr.RefreshStatus(p.Info.ID)
	}
}

func (l *Loop) rearmWatcher() {
	if l.watcher == nil {
		return
	}
	for _, p := range l.mgr.State().Get().Projects {
		if l.mgr.Store().LocalExists(p.Info.ID) {
			l.watcher.Watch(l.mgr.Store().WorkingDir(p.Info.ID))
		}
	}
}
