package cli

import (
	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release <project>",
	Short: "Release the project lock",
	Long: `Release the remote project mutex so other collaborators can edit.
Releasing a project you do not hold is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func runRelease(cmd *cobra.Command, args []string) error {
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

	if err := app.mgr.Release(cmd.Context(), id); err != nil {
		return friendlyError(err)
	}
	progressDone(stdout, "Lock released\n")
	return nil
}
