package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/reconcile"
)

var openCmd = &cobra.Command{
	Use:   "open <project>",
	Short: "Lock a project and open it in the survey editor",
	Long: `Lock a project and open it in the survey editor.

Acquires the remote project mutex first, downloading the project if it
has never been synced, then launches the configured editor against the
working copy. The lock is released automatically when the editor
exits. Without a configured editor the working copy folder is revealed
instead and the lock is held until you press Enter.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}
	id, err := resolveProject(cmd.Context(), app, args[0])
	if err != nil {
		return friendlyError(err)
	}

	progressStep(stdout, "Acquiring project lock...\n")
	sess, err := app.mgr.Open(cmd.Context(), id)
	if err != nil {
		return friendlyError(err)
	}

	// Keep local statuses fresh while the session runs so an editor
	// save is visible to a concurrent 'spsync projects'.
	loop := reconcile.New(reconcile.Options{
		Manager:        app.mgr,
		RemoteInterval: app.cfg.RemoteInterval.Std(),
		LocalInterval:  app.cfg.LocalInterval.Std(),
		RequestTimeout: app.cfg.RequestTimeout.Std(),
	})
	ctx, cancel := context.WithCancel(cmd.Context())
	stopLoop := loop.Start(ctx)
	defer func() {
		cancel()
		stopLoop()
	}()

	if sess.Revealed {
		progressDone(stdout, "Working copy revealed: %s\n", app.mgr.Store().WorkingDir(id))
		fmt.Println("Press Enter when you are done editing to release the lock.")
		waitForEnterOrSignal()
		app.mgr.Done(id)
	} else {
		progressDone(stdout, "Editor running (pid %d), waiting for it to exit...\n", sess.Pid)
		waitForSessionEnd(app, id)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), app.cfg.RequestTimeout.Std())
	defer cancelShutdown()
	if err := app.mgr.Shutdown(shutdownCtx); err != nil {
		return friendlyError(err)
	}
	progressDone(stdout, "Lock released\n")
	return nil
}

// waitForSessionEnd blocks until the editor session is gone, also
// honoring Ctrl-C so the lock is released on interrupt.
func waitForSessionEnd(app *appCtx, id uuid.UUID) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			return
		case <-ticker.C:
			if !app.mgr.Supervisor().Active(id) {
				return
			}
		}
	}
}

func waitForEnterOrSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	enter := make(chan struct{})
	go func() {
		// An empty line errors with "unexpected newline"; either way
		// the user pressed Enter.
		var line string
		_, _ = fmt.Scanln(&line)
		close(enter)
	}()

	select {
	case <-sig:
	case <-enter:
	}
}
