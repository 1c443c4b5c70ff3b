// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholarly/internal/aggregate"
	"github.com/pdiddy/scholarly/pkg/types"
)

var paperCmd = &cobra.Command{
	Use:   "paper <source> <id>",
	Short: "Fetch one paper by source-native identifier",
	Long: `Paper fetches a single paper's full metadata by its source-native
identifier: a PMID for pubmed, an arXiv ID for arxiv.

With --related it lists related papers instead (pubmed only). With --cite it
prints a citation in bibtex or apa style. With --full-text it prints the
open-access body text from PubMed Central (pubmed only); add --find to print
only the paragraphs containing a phrase.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, id := types.Source(args[0]), args[1]

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if mustBool(cmd, "related") {
			if src != types.SourcePubMed {
				return fmt.Errorf("related papers are only available for pubmed")
			}
			papers, err := a.agg.Related(cmd.Context(), id, mustInt(cmd, "max-results"))
			if err != nil {
				return err
			}
			res := &types.SearchResult{Papers: papers}
			if mustBool(cmd, "json") {
				return aggregate.FormatJSON(res, os.Stdout)
			}
			aggregate.FormatTable(res, a.prefs.Get().Display, os.Stdout)
			return nil
		}

		if mustBool(cmd, "full-text") || mustString(cmd, "find") != "" {
			if src != types.SourcePubMed {
				return fmt.Errorf("full text is only available for pubmed")
			}
			ft, err := a.agg.FullText(cmd.Context(), id)
			if err != nil {
				return err
			}
			if term := mustString(cmd, "find"); term != "" {
				for _, m := range aggregate.SearchWithin(ft, term) {
					if m.Section != "" {
						fmt.Printf("[%s] ", m.Section)
					}
					fmt.Println(m.Paragraph)
					fmt.Println()
				}
				return nil
			}
			if mustBool(cmd, "json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ft)
			}
			for _, sec := range ft.Sections {
				if sec.Title != "" {
					fmt.Printf("## %s\n\n", sec.Title)
				}
				for _, p := range sec.Paragraphs {
					fmt.Println(p)
					fmt.Println()
				}
			}
			return nil
		}

		paper, err := a.agg.GetPaper(cmd.Context(), src, id)
		if err != nil {
			return err
		}

		if style := mustString(cmd, "cite"); style != "" {
			text, err := aggregate.FormatCitation(paper, aggregate.CitationStyle(style))
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		}
		if mustBool(cmd, "json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(paper)
		}
		aggregate.FormatPaper(paper, os.Stdout)
		return nil
	},
}

func init() {
	paperCmd.Flags().Bool("related", false, "list related papers instead (pubmed only)")
	paperCmd.Flags().Int("max-results", 0, "maximum related papers (default from preferences)")
	paperCmd.Flags().String("cite", "", "print a citation: bibtex or apa")
	paperCmd.Flags().Bool("full-text", false, "print the PMC full text (pubmed only)")
	paperCmd.Flags().String("find", "", "print only full-text paragraphs containing this phrase")
	paperCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(paperCmd)
}
