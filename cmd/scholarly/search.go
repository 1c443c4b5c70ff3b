// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholarly/internal/aggregate"
	"github.com/pdiddy/scholarly/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search all enabled sources for papers",
	Long: `Search queries the enabled sources in parallel, merges the results into a
single deduplicated list and ranks them. Source failures are reported as
warnings; the search succeeds as long as the request itself is valid.

A search can be replayed from a previously saved query file with --load, and
saved to one with --save.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadPath, _ := cmd.Flags().GetString("load")
		if loadPath == "" && len(args) == 0 {
			return fmt.Errorf("a query argument or --load is required")
		}

		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var res *types.SearchResult
		if loadPath != "" {
			qf, err := aggregate.ReadQueryFile(loadPath)
			if err != nil {
				return err
			}
			res = &types.SearchResult{Papers: qf.Results}
			res.Dedup.DuplicatesRemoved = qf.Summary.DuplicatesRemoved
			req, err = qf.Query.ToRequest()
			if err != nil {
				return err
			}
		} else {
			res, err = a.agg.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
		}

		if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
			if err := aggregate.WriteQueryFile(savePath, req, res); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved query file: %s\n", savePath)
		}

		switch {
		case mustBool(cmd, "json"):
			return aggregate.FormatJSON(res, os.Stdout)
		case mustBool(cmd, "csl"):
			return aggregate.FormatCSL(res.Papers, os.Stdout)
		default:
			aggregate.FormatTable(res, a.prefs.Get().Display, os.Stdout)
			return nil
		}
	},
}

// buildRequest translates command flags into a search request.
func buildRequest(cmd *cobra.Command, args []string) (types.SearchRequest, error) {
	req := types.SearchRequest{}
	if len(args) > 0 {
		req.Query = args[0]
	}
	req.MaxResults = mustInt(cmd, "max-results")
	req.SortBy = types.SortKey(mustString(cmd, "sort"))
	req.NoDedup = mustBool(cmd, "no-dedup")
	req.NoCache = mustBool(cmd, "no-cache")

	if v := mustString(cmd, "sources"); v != "" {
		for _, s := range strings.Split(v, ",") {
			req.Sources = append(req.Sources, types.Source(strings.TrimSpace(s)))
		}
	}
	if v := mustString(cmd, "from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, fmt.Errorf("invalid --from date %q: %w", v, err)
		}
		req.StartDate = t
	}
	if v := mustString(cmd, "to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, fmt.Errorf("invalid --to date %q: %w", v, err)
		}
		req.EndDate = t
	}
	return req, nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func mustInt(cmd *cobra.Command, name string) int {
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default from preferences)")
	searchCmd.Flags().String("sort", "", "sort order: relevance, date, citations (default from preferences)")
	searchCmd.Flags().String("sources", "", "comma-separated sources: pubmed, arxiv, google-scholar")
	searchCmd.Flags().String("from", "", "publication date range start (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "publication date range end (YYYY-MM-DD)")
	searchCmd.Flags().Bool("no-dedup", false, "disable cross-source deduplication")
	searchCmd.Flags().Bool("no-cache", false, "bypass the result cache")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("csl", false, "output results as CSL-YAML")
	searchCmd.Flags().String("save", "", "save query and results to a YAML file")
	searchCmd.Flags().String("load", "", "load results from a previously saved query file")

	rootCmd.AddCommand(searchCmd)
}
