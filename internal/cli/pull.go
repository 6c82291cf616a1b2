package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:     "pull <project>",
	Aliases: []string{"download"},
	Short:   "Download a project and replace both local copies",
	Long: `Download a project archive and atomically replace the local index and
working copy. Local edits in the working copy are overwritten; commit
or discard them first if you want to keep them. A failed download
leaves the local copies untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

var pullFlags struct {
	force bool
}

func init() {
	pullCmd.Flags().BoolVar(&pullFlags.force, "force", false, "overwrite local edits without asking")
}

func runPull(cmd *cobra.Command, args []string) error {
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
	if p := app.mgr.State().Get().Find(id); p != nil && p.Status.IsDirty() && !pullFlags.force {
		return fmt.Errorf("working copy has local edits; commit or discard them, or pass --force")
	}

	progressStep(stdout, "Downloading project...\n")
	if err := app.mgr.Download(cmd.Context(), id); err != nil {
		return friendlyError(err)
	}

	p := app.mgr.State().Get().Find(id)
	progressDone(stdout, "Project at revision %s (%s)\n", orNone(p.Info.Revision()), p.Status)
	return nil
}
