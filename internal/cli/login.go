package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/speleokit/speleosync/internal/remote"
	"github.com/speleokit/speleosync/internal/util"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against a SpeleoDB instance",
	Long: `Authenticate against a SpeleoDB instance and store the resulting
API token locally. Credentials are written with owner-only permissions.`,
	RunE: runLogin,
}

var loginFlags struct {
	instance string
	email    string
	password string
}

func init() {
	loginCmd.Flags().StringVar(&loginFlags.instance, "instance", "", "SpeleoDB instance URL (defaults to the configured one)")
	loginCmd.Flags().StringVar(&loginFlags.email, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginFlags.password, "password", "", "account password (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	env := util.NewOsEnv()
	cfg, err := loadAppConfig(cmd, env)
	if err != nil {
		return err
	}

	instance := loginFlags.instance
	if instance == "" {
		instance = cfg.Instance
	}
	email := loginFlags.email
	password := loginFlags.password

	if email == "" || password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no terminal available, pass --email and --password")
		}
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&email).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("email is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("login cancelled: %w", err)
		}
	}

	client, err := remote.NewClient(instance, "", cfg.RequestTimeout.Std())
	if err != nil {
		return err
	}
	token, user, err := client.Login(cmd.Context(), email, password)
	if err != nil {
		return friendlyError(err)
	}
	if user == "" {
		user = email
	}

	creds := &remote.Credentials{Instance: instance, User: user, Token: token}
	if err := remote.SaveCredentials(env.Fs, cfg.DataDir, creds); err != nil {
		return err
	}

	progressDone(stdout, "Logged in to %s as %s\n", instance, user)
	return nil
}
