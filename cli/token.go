package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"paylink/config"
	"paylink/services"
	"paylink/utils"

	"github.com/spf13/cobra"
)

var (
	tokenUserID uint
	tokenRole   string
	tokenEmail  string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for local testing",
	Long: `Mint an HS256 access token signed with JWT_SECRET.

Examples:
  paylink token --id 1 --role payee --email counsel@firm.test
  paylink token --id 2 --role payer --email client@example.com --ttl 30m`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().UintVar(&tokenUserID, "id", 0, "user id carried in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "payer", "payer, payee or admin")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email carried in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenUserID == 0 {
		return errors.New("--id is required")
	}
	role, ok := services.ParseRole(tokenRole)
	if !ok {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return errors.New("JWT_SECRET is not set")
	}
	tok, err := utils.NewTokens(cfg.JWT, nil).GenerateAccessToken(tokenUserID, string(role), tokenEmail, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
