package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkedin-prospector/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or change the stored LinkedIn login",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Check whether the browser profile is logged in",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), a.Sessions.Check(cmd.Context()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Open a visible browser and wait for you to sign in",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sign in within %s...\n", a.Config.LoginTimeout())
				res := a.Sessions.Login(cmd.Context())
				printSession(cmd.OutOrStdout(), res)
				if res.Status != session.StatusConnected {
					return fmt.Errorf("login did not complete: %s", res.Status)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Discard the stored browser profile",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				res, err := a.Sessions.Logout(cmd.Context())
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), res)
				return nil
			},
		},
	)
	return cmd
}

func printSession(w io.Writer, res session.Result) {
	fmt.Fprintf(w, "Session: %s\n", res.Status)
	if res.Detail != "" {
		fmt.Fprintf(w, "Detail:  %s\n", res.Detail)
	}
}
