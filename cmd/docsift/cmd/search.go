package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/ui"
)

// searchFlags holds CLI flags for search and ask.
type searchFlags struct {
	limit     int
	weight    float64
	floor     float64
	floorSet  bool
	denseOnly bool
	expand    bool
	format    string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64VarP(&f.weight, "weight", "w", -1, "Dense-signal fusion weight, 0.0-1.0 (default from config)")
	cmd.Flags().Float64Var(&f.floor, "floor", 0, "Relevance floor; reranked results below it are dropped")
	cmd.Flags().BoolVar(&f.denseOnly, "dense-only", false, "Skip lexical recall, use dense recall only")
	cmd.Flags().BoolVar(&f.expand, "expand", false, "Enable corpus-driven query expansion")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "Output format: text, json")
}

// apply folds flag values into config-derived options.
func (f *searchFlags) apply(cmd *cobra.Command, opts search.Options) search.Options {
	if f.limit > 0 {
		opts.K = f.limit
	}
	if f.weight >= 0 {
		opts.FusionWeight = f.weight
	}
	if cmd.Flags().Changed("floor") {
		floor := f.floor
		opts.RelevanceFloor = &floor
	}
	if f.denseOnly {
		opts.UseHybrid = false
	}
	if f.expand {
		opts.QueryExpansion = true
	}
	return opts
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed passages",
		Long: `Runs the full retrieval pipeline for a query: hybrid recall,
score fusion, reranking, thresholding, and top-k selection.

Examples:
  docsift search "what is the refund policy"
  docsift search "warranty length" -n 3 --weight 0.8
  docsift search "shipping times" --floor 0.4 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, &flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runSearch(cmd *cobra.Command, query string, flags *searchFlags) error {
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

	opts := flags.apply(cmd, searchOptions(cfg))
	slog.Info("search_started",
		slog.String("query", query),
		slog.Int("k", opts.K),
		slog.String("scorer", eng.pipeline.ScorerName()))

	outcome, err := eng.pipeline.Search(ctx, query, opts)
	if err != nil {
		return err
	}

	if flags.format == "json" {
		return writeOutcomeJSON(cmd, query, outcome)
	}

	ui.NewPrinter(cmd.OutOrStdout()).Outcome(query, outcome)
	return nil
}

// jsonResult is the machine-readable shape of one ranked passage.
type jsonResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float64 `json:"score"`
}

// jsonOutcome is the machine-readable shape of a search outcome.
type jsonOutcome struct {
	Query      string          `json:"query"`
	NoEvidence bool            `json:"no_evidence"`
	Context    string          `json:"context,omitempty"`
	Sources    []search.Source `json:"sources,omitempty"`
	Results    []jsonResult    `json:"results,omitempty"`
}

func writeOutcomeJSON(cmd *cobra.Command, query string, outcome *search.Outcome) error {
	payload := jsonOutcome{
		Query:      query,
		NoEvidence: outcome.NoEvidence,
		Context:    outcome.Context,
		Sources:    outcome.Sources,
	}
	for _, r := range outcome.Results {
		payload.Results = append(payload.Results, jsonResult{
			Text:   r.Passage.Text,
			Source: r.Passage.Source,
			Page:   r.Passage.Page,
			Score:  r.Score,
		})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
