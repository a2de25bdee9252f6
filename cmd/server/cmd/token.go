package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"fieldsync/internal/app/server/crypto"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var deviceID string

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash of an API token for API_TOKEN_HASHES",
	Long: `hash-token prints the bcrypt hash of a static API token. Without an argument
the token is read from the terminal without echo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			token = string(b)
		}

		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("token is empty")
		}
		hash, err := crypto.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Issue a device token directly in the database",
	Long: `issue-token stores a new device token and prints it once. It needs DATABASE_URI,
since a token issued into process memory would be gone before the server could use it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.DB.DatabaseURI == "" {
			return errors.New("issue-token requires DATABASE_URI")
		}
		services, backend, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		token, err := services.Session.Create(cmd.Context(), deviceID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&deviceID, "device", "", "device the token is issued to")
	_ = issueTokenCmd.MarkFlagRequired("device")
}
