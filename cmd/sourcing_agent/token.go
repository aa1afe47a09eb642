package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/server"
)

var (
	tokenRecruiter string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a recruiter",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRecruiter, "recruiter", "", "Recruiter name embedded in the token (required)")
	_ = tokenCmd.MarkFlagRequired("recruiter")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	jwtCfg := appConfig.Server.JWT()
	if jwtCfg == nil {
		return errors.New("JWT_SECRET is not configured")
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenRecruiter)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
