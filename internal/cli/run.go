package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/appstate"
	"github.com/speleokit/speleosync/internal/logging"
	"github.com/speleokit/speleosync/internal/manager"
	"github.com/speleokit/speleosync/internal/reconcile"
	"github.com/speleokit/speleosync/internal/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync loop in the foreground",
	Long: `Run the reconciliation loop in the foreground: poll the server on the
slow interval, recompute local statuses on the fast interval, and
react to working copy changes immediately. Useful as a daemon behind a
service manager. Stops cleanly on SIGINT/SIGTERM, releasing any locks
held by this process.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	env := util.NewOsEnv()
	cfg, err := loadAppConfig(cmd, env)
	if err != nil {
		return err
	}
	svc, creds, err := newService(env, cfg)
	if err != nil {
		return err
	}

	log := logging.Setup(logging.Options{
		DataDir: cfg.DataDir,
		Debug:   logging.DebugEnabled(),
		Mirror:  os.Stderr,
	})

	mgr := manager.New(manager.Options{
		Env:     env,
		Config:  cfg,
		Service: svc,
		User:    creds.User,
		State:   appstate.NewStore(),
		Log:     log,
	})

	watcher, err := reconcile.NewWatcher(log)
	if err != nil {
		return err
	}
	loop := reconcile.New(reconcile.Options{
		Manager:        mgr,
		Watcher:        watcher,
		RemoteInterval: cfg.RemoteInterval.Std(),
		LocalInterval:  cfg.LocalInterval.Std(),
		RequestTimeout: cfg.RequestTimeout.Std(),
		Log:            log,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop := loop.Start(ctx)

	fmt.Printf("Syncing with %s as %s (Ctrl-C to stop)\n", cfg.Instance, creds.User)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancel()
	stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.RequestTimeout.Std())
	defer cancelShutdown()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
