package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/codec"
	"github.com/speleokit/speleosync/internal/lockclient"
)

var importCmd = &cobra.Command{
	Use:     "import <project> <entry-file>",
	Aliases: []string{"reimport"},
	Short:   "Reseed the working copy from the editor's own files",
	Long: `Reseed the working copy from survey files exported by the editor.
The entry file (a .mak for Compass, a .tml/.tmlu for Ariane) and every
file it references are copied in; unrelated files already in the
working copy, such as notes, are kept. Requires the project lock since
an import implies an eventual commit.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	app, err := setup(cmd)
	if err != nil {
		return err
	}
	id, err := resolveProject(cmd.Context(), app, args[0])
	if err != nil {
		return friendlyError(err)
	}

	entryPath, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	format, err := formatForEntry(entryPath)
	if err != nil {
		return err
	}

	if err := app.mgr.RefreshRemoteList(cmd.Context()); err != nil {
		return friendlyError(err)
	}
	if app.mgr.Locks().Get(id).State != lockclient.LockedByMe {
		progressStep(stdout, "Acquiring project lock...\n")
		if _, err := app.mgr.Locks().Acquire(cmd.Context(), id); err != nil {
			return friendlyError(err)
		}
	}

	progressStep(stdout, "Importing survey files...\n")
	doc, err := app.mgr.Reimport(id, format, app.env.Fs, entryPath)
	if err != nil {
		return friendlyError(err)
	}

	progressDone(stdout, "Imported %d file(s), entry %s\n", len(doc.TrackedFiles()), doc.Project.EntryFile)
	fmt.Println("Review the working copy, then 'spsync commit' to upload.")
	return nil
}

// formatForEntry infers the survey format from the entry file
// extension.
func formatForEntry(path string) (codec.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mak":
		return codec.FormatCompass, nil
	case ".tml", ".tmlu":
		return codec.FormatAriane, nil
	default:
		return "", fmt.Errorf("cannot infer survey format from %q; expected a .mak, .tml or .tmlu entry file", filepath.Base(path))
	}
}
