package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var username, password, code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if username == "" {
				username = prompt("Username: ")
			}
			if password == "" {
				password = prompt("Password: ")
			}

			result, err := a.tokens.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if result.TwoFactorRequired {
				if code == "" {
					code = prompt("Two-factor code: ")
				}
				if err := a.tokens.Verify2FA(cmd.Context(), result.Email, code); err != nil {
					return err
				}
			}
			fmt.Printf("logged in as %s\n", a.tokens.Username())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&code, "code", "", "two-factor code, for accounts that require one")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored credential pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.tokens.Logout()
			fmt.Println("logged out")
			return nil
		},
	}
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}
