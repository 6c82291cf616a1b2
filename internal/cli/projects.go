package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/lockclient"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"list", "ls"},
	Short:   "List remote projects and their local status",
	RunE:    runProjects,
}

func runProjects(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := app.mgr.RefreshRemoteList(cmd.Context()); err != nil {
		return friendlyError(err)
	}

	st := app.mgr.State().Get()
	if !st.RemoteOK {
		fmt.Fprintln(os.Stderr, "warning: server unreachable, showing last known list")
	}
	if len(st.Projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tFORMAT\tSTATUS\tLOCK")

	for _, p := range st.Projects {
		lock := p.Lock.State.String()
		if p.Lock.State == lockclient.LockedByOther && p.Lock.Holder != "" {
			lock = fmt.Sprintf("held by %s", p.Lock.Holder)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Info.ID.String()[:8], p.Info.Name, p.Info.Kind, p.Status, lock)
	}

	_ = w.Flush()
	return nil
}
