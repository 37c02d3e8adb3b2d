package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/templui/taskfiles/internal/app"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a tenant and print its id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				tenant, err := a.TenantService.Create(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), tenant.ID)
				return err
			})
		},
	})

	return cmd
}
