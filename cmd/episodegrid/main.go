package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"episodegrid/internal/cache"
	"episodegrid/internal/config"
	"episodegrid/internal/rss"
	"episodegrid/internal/service"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "episodegrid",
		Short: "Serve the latest channel episodes as JSON",
		Long:  "Mirrors a channel's video feed, keeps the two most recent upload days of episodes in memory and serves them to the episode grid front-end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML config file")

	root.AddCommand(serveCmd(&configPath), fetchCmd(&configPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the feed refresh loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func fetchCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the feed once and print the curated episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[episodegrid] ", log.LstdFlags)
			c := cache.New(rss.NewFetcher(cfg.FeedURL, cfg.FetchTimeout, logger), cfg.CacheMaxAge, cfg.LazyGap, logger)

			episodes, err := c.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(episodes)
			}
			printEpisodes(cmd.OutOrStdout(), episodes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the episodes as a JSON array")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := log.New(os.Stdout, "[episodegrid] ", log.LstdFlags)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := rss.NewFetcher(cfg.FeedURL, cfg.FetchTimeout, logger)
	episodes := cache.New(fetcher, cfg.CacheMaxAge, cfg.LazyGap, logger)
	svc := service.NewService(episodes, logger, cfg)

	if err := svc.Run(ctx); err != nil {
		logger.Printf("service stopped with error: %v", err)
		return err
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.Load()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
