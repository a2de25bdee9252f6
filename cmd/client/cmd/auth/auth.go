package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd groups the token commands.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API token",
	Long:  `Save or remove the bearer token used for uploads, pulls and reference data.`,
}
