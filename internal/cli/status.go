package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/lockclient"
)

var statusCmd = &cobra.Command{
	Use:   "status <project>",
	Short: "Show the detailed status of one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	p := app.mgr.State().Get().Find(id)
	if p == nil {
		return fmt.Errorf("project %s is not known to the server", id)
	}

	fmt.Printf("Project:   %s (%s)\n", p.Info.Name, p.Info.ID)
	fmt.Printf("Format:    %s\n", p.Info.Kind)
	fmt.Printf("Status:    %s\n", p.Status)
	fmt.Printf("Revision:  %s\n", orNone(p.Info.Revision()))
	fmt.Printf("Lock:      %s\n", describeLock(p.Lock))
	if p.Status.IsDirty() {
		fmt.Printf("Working:   %s\n", app.mgr.Store().WorkingDir(id))
		fmt.Println("\nLocal edits are waiting to be committed.")
	}
	return nil
}

func describeLock(lock lockclient.Lock) string {
	if lock.State == lockclient.LockedByOther && lock.Holder != "" {
		return fmt.Sprintf("held by %s", lock.Holder)
	}
	return lock.State.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
