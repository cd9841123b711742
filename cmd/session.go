package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"salchimonster/restaurant-reports/auth"
	"salchimonster/restaurant-reports/service"
)

var useFormLogin bool

var tokenRole, tokenLocal string

func init() {
	loginCmd.Flags().BoolVar(&useFormLogin, "form", false, "log in through the login page in a headless browser")
	rootCmd.AddCommand(loginCmd)

	issueCmd.Flags().StringVar(&tokenRole, "role", auth.RoleSede, "admin or sede")
	issueCmd.Flags().StringVar(&tokenLocal, "local", "", "location name carried by sede tokens")
	tokenCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(tokenCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in to restaurant.pe with the stored credentials and saves the session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			var outcome *service.LoginOutcome
			var err error
			if useFormLogin {
				outcome, err = a.session.FormLogin(cmd.Context())
			} else {
				outcome, err = a.session.Login(cmd.Context())
			}
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d cookies guardadas)\n", outcome.Message, outcome.SavedCookies)
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manages dashboard access tokens.",
}

var issueCmd = &cobra.Command{
	Use:   "issue <subject>",
	Short: "Signs a dashboard token for a user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl := time.Duration(cfg.Auth.TTLHours) * time.Hour
		token, err := auth.NewSigner(cfg.Auth.JWTSecret, ttl).Issue(args[0], tokenRole, tokenLocal)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}
