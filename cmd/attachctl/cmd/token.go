package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/taskfiles/internal/config"
	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/service"
)

func TokenCmd() *cobra.Command {
	var (
		userID   string
		tenantID string
		expiry   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user acting in a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if expiry <= 0 {
				expiry = cfg.JWTExpiry
			}

			auth := service.NewAuthService(cfg.JWTSecret, expiry)
			token, err := auth.GenerateJWT(model.Identity{UserID: userID, TenantID: tenantID})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id (required)")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default JWT_EXPIRY)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
