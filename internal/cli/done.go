package cli

import (
	"github.com/spf13/cobra"
)

var doneCmd = &cobra.Command{
	Use:   "done <project>",
	Short: "Mark an editing session finished and release the lock",
	Long: `Mark a revealed editing session finished. Equivalent to the explicit
release, kept as a separate verb so 'open' instructions stay simple on
platforms without editor process integration.`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

func runDone(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}
	id, err := resolveProject(cmd.Context(), app, args[0])
	if err != nil {
		return friendlyError(err)
	}

	if !app.mgr.Done(id) {
		// No live session in this process; fall back to a plain
		// release for sessions left over from a previous run.
		if err := app.mgr.Release(cmd.Context(), id); err != nil {
			return friendlyError(err)
		}
	}
	progressDone(stdout, "Session closed, lock released\n")
	return nil
}
