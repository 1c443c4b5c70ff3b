// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholarly/internal/prefs"
	"github.com/pdiddy/scholarly/pkg/types"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show and modify search preferences",
	Long: `Prefs manages the persistent preferences document: which sources are
enabled and their priorities, default search parameters, display options and
cache settings. Every change is written to the preferences file immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return printPrefs(a)
	},
}

var prefsSourceCmd = &cobra.Command{
	Use:   "source <name>",
	Short: "Update one source's preference entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var patch prefs.SourcePatch
		if cmd.Flags().Changed("enabled") {
			v := mustBool(cmd, "enabled")
			patch.Enabled = &v
		}
		if cmd.Flags().Changed("priority") {
			v := mustInt(cmd, "priority")
			patch.Priority = &v
		}
		if cmd.Flags().Changed("max-results") {
			v := mustInt(cmd, "max-results")
			patch.MaxResults = &v
		}
		if err := a.prefs.SetSourcePreference(types.Source(args[0]), patch); err != nil {
			return err
		}
		return printPrefs(a)
	},
}

var prefsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Update default search parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var patch prefs.SearchPatch
		if cmd.Flags().Changed("max-results") {
			v := mustInt(cmd, "max-results")
			patch.MaxResults = &v
		}
		if cmd.Flags().Changed("sort") {
			v := types.SortKey(mustString(cmd, "sort"))
			patch.DefaultSort = &v
		}
		if cmd.Flags().Changed("dedup") {
			v := mustBool(cmd, "dedup")
			patch.Dedup = &v
		}
		if cmd.Flags().Changed("prefer-managed") {
			v := mustBool(cmd, "prefer-managed")
			patch.PreferManagedScraping = &v
		}
		if err := a.prefs.UpdateSearchPreferences(patch); err != nil {
			return err
		}
		return printPrefs(a)
	},
}

var prefsDisplayCmd = &cobra.Command{
	Use:   "display",
	Short: "Update display options",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var patch prefs.DisplayPatch
		if cmd.Flags().Changed("max-authors") {
			v := mustInt(cmd, "max-authors")
			patch.MaxAuthors = &v
		}
		if cmd.Flags().Changed("show-abstract") {
			v := mustBool(cmd, "show-abstract")
			patch.ShowAbstract = &v
		}
		if err := a.prefs.UpdateDisplayPreferences(patch); err != nil {
			return err
		}
		return printPrefs(a)
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.prefs.ResetToDefaults(); err != nil {
			return err
		}
		return printPrefs(a)
	},
}

var prefsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export preferences as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.prefs.Export()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return os.WriteFile(args[0], data, 0o644)
		}
		fmt.Println(string(data))
		return nil
	},
}

var prefsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace preferences from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := a.prefs.Import(data); err != nil {
			return err
		}
		return printPrefs(a)
	},
}

func printPrefs(a *app) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a.prefs.Get())
}

func init() {
	prefsSourceCmd.Flags().Bool("enabled", true, "enable or disable the source")
	prefsSourceCmd.Flags().Int("priority", 0, "source priority (1 is highest)")
	prefsSourceCmd.Flags().Int("max-results", 0, "per-source result cap")

	prefsSearchCmd.Flags().Int("max-results", 0, "default result cap")
	prefsSearchCmd.Flags().String("sort", "", "default sort: relevance, date, citations")
	prefsSearchCmd.Flags().Bool("dedup", true, "deduplicate results by default")
	prefsSearchCmd.Flags().Bool("prefer-managed", false, "prefer the managed scraping service for Google Scholar")

	prefsDisplayCmd.Flags().Int("max-authors", 0, "author names shown per result")
	prefsDisplayCmd.Flags().Bool("show-abstract", false, "include abstracts in table output")

	prefsCmd.AddCommand(prefsSourceCmd, prefsSearchCmd, prefsDisplayCmd, prefsResetCmd, prefsExportCmd, prefsImportCmd)
	rootCmd.AddCommand(prefsCmd)
}
