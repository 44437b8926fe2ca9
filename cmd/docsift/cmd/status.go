package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long: `Reports what the index directory holds: passage and vector counts,
embedding dimensions, and the model the index was built with. Works
while another docsift process holds the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			status, err := index.ReadStatus(cmd.Context(), cfg.Paths.DataDir)
			if err != nil {
				return err
			}

			if format == "json" {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			ui.NewPrinter(cmd.OutOrStdout()).Status(status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
