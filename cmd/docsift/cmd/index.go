package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/ingest"
	"github.com/docsift/docsift/internal/ui"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <chunks.jsonl>",
		Short: "Ingest pre-chunked passages into the index",
		Long: `Reads a chunks JSONL file (one passage per line, as produced by a
PDF extraction pipeline) and adds its passages to the index.

Re-running over the same file is a no-op: passages are identified by
content-derived ids and duplicates are skipped.

Examples:
  docsift index chunks.jsonl
  docsift index chunks.jsonl --data-dir /srv/docsift`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, err := openEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			slog.Info("index_started", slog.String("file", args[0]))

			stats, err := eng.coordinator.Ingest(ctx, &ingest.JSONLFile{Path: args[0]})
			if err != nil {
				return err
			}

			ui.NewPrinter(cmd.OutOrStdout()).IngestStats(stats)
			return nil
		},
	}
}
