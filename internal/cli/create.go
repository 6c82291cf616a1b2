package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/speleokit/speleosync/internal/remote"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new remote project",
	RunE:  runCreate,
}

var createFlags struct {
	name        string
	description string
	country     string
	format      string
}

func init() {
	createCmd.Flags().StringVar(&createFlags.name, "name", "", "project name")
	createCmd.Flags().StringVar(&createFlags.description, "description", "", "project description")
	createCmd.Flags().StringVar(&createFlags.country, "country", "", "ISO country code of the cave system")
	createCmd.Flags().StringVar(&createFlags.format, "format", "", "survey format: COMPASS or ARIANE")
}

func runCreate(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}

	req := remote.NewProject{
		Name:        createFlags.name,
		Description: createFlags.description,
		Country:     createFlags.country,
		Kind:        remote.ProjectKind(createFlags.format),
	}

	if req.Name == "" || req.Kind == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no terminal available, pass --name and --format")
		}
		format := string(req.Kind)
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&req.Name).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("a name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Description").
				Value(&req.Description),
			huh.NewInput().
				Title("Country code").
				Value(&req.Country),
			huh.NewSelect[string]().
				Title("Survey format").
				Options(
					huh.NewOption("Compass (.mak/.dat/.plt)", string(remote.KindCompass)),
					huh.NewOption("Ariane (.tml/.tmlu)", string(remote.KindAriane)),
				).
				Value(&format),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("create cancelled: %w", err)
		}
		req.Kind = remote.ProjectKind(format)
	}

	if req.Kind != remote.KindCompass && req.Kind != remote.KindAriane {
		return fmt.Errorf("unknown format %q, use COMPASS or ARIANE", req.Kind)
	}

	info, err := app.mgr.Create(cmd.Context(), req)
	if err != nil {
		return friendlyError(err)
	}
	progressDone(stdout, "Created project %s (%s)\n", info.Name, info.ID)
	return nil
}
