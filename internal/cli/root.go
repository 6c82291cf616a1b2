// Package cli implements the spsync command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and Date are set at build time via ldflags
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var rootCmd = &cobra.Command{
	Use:   "spsync",
	Short: "SpeleoSync - Keep local cave survey projects in sync with SpeleoDB",
	Long: `SpeleoSync (spsync) — Keep local cave survey projects in sync with SpeleoDB.

Maintains a local two-copy layout per project (a pristine index and an
editable working copy), coordinates the remote project mutex with other
collaborators, and drives the external survey editor.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for documentation generation.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("spsync version %s\ncommit: %s\ndate: %s\n", Version, Commit, Date))

	rootCmd.PersistentFlags().String("data-dir", "", "override the data directory")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(runCmd)
}
