package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/speleokit/speleosync/internal/lockclient"
	"github.com/speleokit/speleosync/internal/manager"
)

var commitCmd = &cobra.Command{
	Use:   "commit <project>",
	Short: "Upload local edits as a new project revision",
	Long: `Pack the working copy and upload it as a new revision. Requires
holding the project lock (spsync open acquires it; so does --acquire).
On success the local index catches up with the working copy; on
failure nothing local changes and the lock is kept so you can retry.`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

var commitFlags struct {
	message string
	acquire bool
	release bool
}

func init() {
	commitCmd.Flags().StringVarP(&commitFlags.message, "message", "m", "", "commit message (prompted when omitted)")
	commitCmd.Flags().BoolVar(&commitFlags.acquire, "acquire", false, "acquire the project lock first")
	commitCmd.Flags().BoolVar(&commitFlags.release, "release", false, "release the project lock after a successful commit")
}

func runCommit(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}
	id, err := resolveProject(cmd.Context(), app, args[0])
	if err != nil {
		return friendlyError(err)
	}
	if err := app.mgr.RefreshRemoteList(cmd.Context()); err != nil {
		return friendlyError(err)
	}

	if commitFlags.acquire && app.mgr.Locks().Get(id).State != lockclient.LockedByMe {
		progressStep(stdout, "Acquiring project lock...\n")
		if _, err := app.mgr.Locks().Acquire(cmd.Context(), id); err != nil {
			return friendlyError(err)
		}
	}

	message := commitFlags.message
	if message == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no terminal available, pass --message")
		}
		err := huh.NewInput().
			Title("Commit message").
			Value(&message).
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("a commit message is required")
				}
				return nil
			}).
			Run()
		if err != nil {
			return fmt.Errorf("commit cancelled: %w", err)
		}
	}

	progressStep(stdout, "Uploading working copy...\n")
	result, err := app.mgr.Commit(cmd.Context(), id, message)
	if err != nil {
		if errors.Is(err, manager.ErrLockRequired) {
			return fmt.Errorf("you do not hold the project lock, rerun with --acquire")
		}
		return friendlyError(err)
	}

	if result.Saved {
		progressDone(stdout, "Committed revision %s\n", result.Revision)
	} else {
		progressDone(stdout, "No changes to commit\n")
	}

	if commitFlags.release {
		if err := app.mgr.Release(cmd.Context(), id); err != nil {
			return friendlyError(err)
		}
		progressDone(stdout, "Lock released\n")
	}
	return nil
}
