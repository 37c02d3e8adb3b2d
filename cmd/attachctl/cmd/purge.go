package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/templui/taskfiles/internal/app"
	"github.com/templui/taskfiles/internal/config"
)

func PurgeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Retry blob removal for deleted attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				result, err := a.AttachmentService.PurgeBlobs(cmd.Context(), limit)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum attachments to process")

	return cmd
}

// withApp builds the full application (database, migrations, storage) for one command.
func withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	a, err := app.New(cmd.Context(), config.Load())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(a)
}
