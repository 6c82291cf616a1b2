package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var discardCmd = &cobra.Command{
	Use:   "discard <project>",
	Short: "Throw away local edits and restore the working copy from the index",
	Long: `Reset the working copy to the last synced content. Purely local; no
lock is needed and the remote is never contacted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscard,
}

var discardFlags struct {
	yes bool
}

func init() {
	discardCmd.Flags().BoolVarP(&discardFlags.yes, "yes", "y", false, "skip the confirmation prompt")
}

func runDiscard(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}
	id, err := resolveProject(cmd.Context(), app, args[0])
	if err != nil {
		return friendlyError(err)
	}

	if !discardFlags.yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no terminal available, pass --yes to confirm")
		}
		var confirmed bool
		err := huh.NewConfirm().
			Title("Throw away all local edits?").
			Description("The working copy will be restored from the last synced content.").
			Value(&confirmed).
			Run()
		if err != nil {
			return fmt.Errorf("discard cancelled: %w", err)
		}
		if !confirmed {
			fmt.Println("Nothing discarded.")
			return nil
		}
	}

	if err := app.mgr.Discard(id); err != nil {
		return friendlyError(err)
	}
	progressDone(stdout, "Working copy restored\n")
	return nil
}
