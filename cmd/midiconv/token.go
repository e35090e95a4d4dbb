package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/makeasinger/midiconv/internal/auth"
	"github.com/makeasinger/midiconv/internal/config"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/storage"
)

var (
	jwtUser   string
	jwtEmail  string
	jwtTenant string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with download and API tokens",
}

var tokenEncodeCmd = &cobra.Command{
	Use:   "encode <job-id> <category> <filename>",
	Short: "Build a download token for a stored artifact",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := storage.EncodeToken(storage.Token{
			JobID:    args[0],
			Category: model.Category(args[1]),
			Filename: args[2],
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Show the artifact a download token points at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := storage.DecodeToken(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var tokenJWTCmd = &cobra.Command{
	Use:   "jwt",
	Short: "Issue an HMAC API token signed with JWT_SECRET",
	Long: `Issue an API token for development or service calls. The token is
signed with the configured JWT secret and expires after jwt.expiration hours.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		ttl := time.Duration(cfg.JWT.Expiration) * time.Hour
		token, err := auth.SignLegacyToken(cfg.JWT.Secret, jwtUser, jwtEmail, jwtTenant, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenJWTCmd.Flags().StringVar(&jwtUser, "user", "", "User ID (required)")
	tokenJWTCmd.Flags().StringVar(&jwtEmail, "email", "", "Email claim")
	tokenJWTCmd.Flags().StringVar(&jwtTenant, "tenant", "", "Tenant claim (default: user ID)")
	_ = tokenJWTCmd.MarkFlagRequired("user")

	tokenCmd.AddCommand(tokenEncodeCmd)
	tokenCmd.AddCommand(tokenDecodeCmd)
	tokenCmd.AddCommand(tokenJWTCmd)
}
