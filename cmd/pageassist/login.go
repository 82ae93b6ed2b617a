package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pageassist/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store SSO credentials and verify them against the login endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SSO.URL == "" {
			return fmt.Errorf("sso.url is not configured")
		}
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("User ID: ")
		userID, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}

		creds := auth.Credentials{
			UserID:   strings.TrimSpace(userID),
			Password: string(password),
		}
		if err := application.auth.SetCredentials(creds); err != nil {
			return err
		}
		if _, err := application.auth.GetValidToken(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Authenticated.")
		return nil
	},
}
