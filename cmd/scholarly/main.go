// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scholarly CLI. scholarly
// searches PubMed, arXiv and Google Scholar concurrently, merges and
// deduplicates the results, and can serve the same functionality over
// HTTP.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scholarly/internal/aggregate"
	"github.com/pdiddy/scholarly/internal/cache"
	"github.com/pdiddy/scholarly/internal/metrics"
	"github.com/pdiddy/scholarly/internal/prefs"
	"github.com/pdiddy/scholarly/internal/secrets"
	"github.com/pdiddy/scholarly/internal/source"
	"github.com/pdiddy/scholarly/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if non-empty, otherwise the secret
// value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

var rootCmd = &cobra.Command{
	Use:   "scholarly",
	Short: "Search academic papers across PubMed, arXiv and Google Scholar",
	Long: `scholarly queries PubMed, arXiv and Google Scholar in parallel, normalizes
the results into a single schema, removes cross-source duplicates, and ranks
the merged list. One failing source never fails a search; its error is
reported alongside the results from the sources that responded.

Google Scholar has no API: scholarly scrapes it either through the Firecrawl
managed scraping service (when an API key is configured) or through a local
headless browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is a local development convenience; absence is normal.
		_ = godotenv.Load()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scholarly.yaml or ~/.config/scholarly/config.yaml)")
	rootCmd.PersistentFlags().String("prefs", "", "preferences file (default: ~/.config/scholarly/preferences.json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scholarly")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scholarly"))
		}
	}

	viper.SetEnvPrefix("SCHOLARLY")
	viper.AutomaticEnv()

	viper.SetDefault("http.timeout", 30*time.Second)
	viper.SetDefault("http.user_agent", "scholarly/"+version)
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.page_timeout", 45*time.Second)
	viper.SetDefault("browser.min_request_gap", 5*time.Second)
	viper.SetDefault("aggregate.source_timeout", 60*time.Second)
	viper.SetDefault("dedup.title_similarity", 0.85)
	viper.SetDefault("dedup.require_author_overlap", true)
	viper.SetDefault("server.addr", "127.0.0.1:8131")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger. Console output goes to stderr
// so stdout stays clean for results.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v, _ := rootCmd.PersistentFlags().GetBool("verbose"); v {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// app bundles the wired components behind the CLI commands.
type app struct {
	log     zerolog.Logger
	prefs   *prefs.Store
	agg     *aggregate.Aggregator
	reg     *prometheus.Registry
	browser *source.Browser
	cache   *cache.Store
}

// newApp constructs the adapters, preference store, cache and
// aggregator from configuration.
func newApp() (*app, error) {
	log := newLogger()

	prefsPath, _ := rootCmd.PersistentFlags().GetString("prefs")
	if prefsPath == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return nil, err
		}
		prefsPath = p
	}
	store := prefs.Load(prefsPath, log)

	searchCfg := types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("http.timeout"),
			UserAgent: viper.GetString("http.user_agent"),
		},
		NCBIAPIKey:      secretDefault("ncbi-api-key", viper.GetString("ncbi_api_key")),
		FirecrawlAPIKey: secretDefault("firecrawl-api-key", viper.GetString("firecrawl_api_key")),
	}
	client := &http.Client{Timeout: searchCfg.Timeout}

	browser := source.NewBrowser(types.BrowserConfig{
		Headless:      viper.GetBool("browser.headless"),
		UserAgent:     searchCfg.UserAgent,
		PageTimeout:   viper.GetDuration("browser.page_timeout"),
		MinRequestGap: viper.GetDuration("browser.min_request_gap"),
	})

	scholar := &source.ScholarFallback{
		Managed: &source.FirecrawlAdapter{Client: client},
		Browser: &source.ScholarAdapter{Fetcher: browser},
		PreferManaged: func() bool {
			return store.Get().Search.PreferManagedScraping
		},
		Log: log,
	}

	adapters := map[types.Source]source.Adapter{
		types.SourcePubMed:        source.NewPubMedAdapter(client, searchCfg.NCBIAPIKey != ""),
		types.SourceArxiv:         &source.ArxivAdapter{Client: client},
		types.SourceGoogleScholar: scholar,
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var cacheStore *cache.Store
	cp := store.Get().Cache
	if cp.Enabled {
		dir := cp.Dir
		if dir == "" {
			dir = filepath.Join(filepath.Dir(prefsPath), "cache")
		}
		cs, err := cache.Open(dir, cp.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("opening result cache, continuing without")
		} else {
			cacheStore = cs
		}
	}

	dedupCfg := types.DedupConfig{
		TitleSimilarity:      viper.GetFloat64("dedup.title_similarity"),
		RequireAuthorOverlap: viper.GetBool("dedup.require_author_overlap"),
	}
	aggCfg := types.AggregateConfig{
		SourceTimeout: viper.GetDuration("aggregate.source_timeout"),
	}

	agg := aggregate.New(adapters, store, aggCfg, dedupCfg, searchCfg, aggregate.Options{
		Cache:   cacheStore,
		Metrics: m,
		Log:     log,
	})

	return &app{log: log, prefs: store, agg: agg, reg: reg, browser: browser, cache: cacheStore}, nil
}

// Close releases the browser and cache handles.
func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing browser")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing cache")
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
