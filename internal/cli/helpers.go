package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/appdir"
	"github.com/speleokit/speleosync/internal/appstate"
	"github.com/speleokit/speleosync/internal/config"
	"github.com/speleokit/speleosync/internal/logging"
	"github.com/speleokit/speleosync/internal/manager"
	"github.com/speleokit/speleosync/internal/remote"
	"github.com/speleokit/speleosync/internal/util"
)

// Common error messages for CLI commands.
const (
	ErrMsgNotLoggedIn = "not logged in: run 'spsync login' first"
)

// appCtx bundles everything a command needs after setup.
type appCtx struct {
	env *util.Env
	cfg *config.Config
	mgr *manager.Manager
}

// loadAppConfig resolves the configuration, applying the --data-dir
// override.
func loadAppConfig(cmd *cobra.Command, env *util.Env) (*config.Config, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = appdir.Default()
	}
	cfg, err := config.Load(env.Fs, dataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	return &cfg, nil
}

// newService builds an authenticated remote client from the stored
// credentials.
func newService(env *util.Env, cfg *config.Config) (remote.Service, *remote.Credentials, error) {
	creds, err := remote.LoadCredentials(env.Fs, cfg.DataDir)
	if err != nil {
		if errors.Is(err, remote.ErrNoCredentials) {
			return nil, nil, errors.New(ErrMsgNotLoggedIn)
		}
		return nil, nil, err
	}
	client, err := remote.NewClient(creds.Instance, creds.Token, cfg.RequestTimeout.Std())
	if err != nil {
		return nil, nil, err
	}
	return client, creds, nil
}

// setup wires the full application stack for a command. The log goes
// to the rotating file under the data directory; stdout stays clean
// for command output.
func setup(cmd *cobra.Command) (*appCtx, error) {
	env := util.NewOsEnv()
	cfg, err := loadAppConfig(cmd, env)
	if err != nil {
		return nil, err
	}

	svc, creds, err := newService(env, cfg)
	if err != nil {
		return nil, err
	}

	log := logging.Setup(logging.Options{DataDir: cfg.DataDir, Debug: logging.DebugEnabled()})

	mgr := manager.New(manager.Options{
		Env:     env,
		Config:  cfg,
		Service: svc,
		User:    creds.User,
		State:   appstate.NewStore(),
		Log:     log,
	})
	return &appCtx{env: env, cfg: cfg, mgr: mgr}, nil
}

// resolveProject turns a command-line argument into a project ID. It
// accepts a UUID, a unique ID prefix, or an exact (case-insensitive)
// project name, resolved against a fresh remote list.
func resolveProject(ctx context.Context, app *appCtx, arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}

	if err := app.mgr.RefreshRemoteList(ctx); err != nil {
		return uuid.Nil, err
	}

	var matches []appstate.Project
	for _, p := range app.mgr.State().Get().Projects {
		if strings.EqualFold(p.Info.Name, arg) || strings.HasPrefix(p.Info.ID.String(), strings.ToLower(arg)) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0].Info.ID, nil
	case 0:
		return uuid.Nil, fmt.Errorf("no project matches %q", arg)
	default:
		return uuid.Nil, fmt.Errorf("%q is ambiguous, use the project id", arg)
	}
}

// friendlyError maps the error taxonomy onto actionable messages.
func friendlyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, remote.ErrUnauthorized):
		return fmt.Errorf("credentials rejected, run 'spsync login' again: %w", err)
	case errors.Is(err, remote.ErrLockConflict):
		return fmt.Errorf("another collaborator holds this project: %w", err)
	case errors.Is(err, manager.ErrBusy):
		return fmt.Errorf("try again when the current operation finishes: %w", err)
	case remote.IsNetwork(err):
		return fmt.Errorf("could not reach the server, check your connection: %w", err)
	default:
		return err
	}
}

// progress helpers shared with the rest of the package.
var (
	progress     = util.Progress
	progressStep = util.ProgressStep
	progressDone = util.ProgressDone
)

var stdout = os.Stdout
