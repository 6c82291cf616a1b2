package cli

import (
	"github.com/spf13/cobra"

	"github.com/speleokit/speleosync/internal/remote"
	"github.com/speleokit/speleosync/internal/util"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credentials",
	RunE:  runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	env := util.NewOsEnv()
	cfg, err := loadAppConfig(cmd, env)
	if err != nil {
		return err
	}
	if err := remote.ForgetCredentials(env.Fs, cfg.DataDir); err != nil {
		return err
	}
	progressDone(stdout, "Logged out\n")
	return nil
}
