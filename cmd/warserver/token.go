package main

import (
	"fmt"
	"os"
	"time"

	"bataille/internal/ports/httpapi"

	"github.com/spf13/cobra"
)

const tokenTTL = 7 * 24 * time.Hour

var tokenUser string

// tokenCmd signs a bearer token, handy for local play and tests against a running server.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := httpapi.NewAuthenticator(os.Getenv("BATAILLE_JWT_SECRET"), tokenTTL)
		if err != nil {
			return err
		}
		token, err := auth.Issue(tokenUser)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (required)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
