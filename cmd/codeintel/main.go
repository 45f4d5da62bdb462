// cmd/codeintel/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"codeintel/internal/backend"
	"codeintel/internal/blobcache"
	"codeintel/internal/codeview"
	"codeintel/internal/config"
	"codeintel/internal/logging"

	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	v       = config.New()
	cfg     *config.Config
	logger  = logging.Wrap(zap.NewNop())
	cfgFile string
)

// flagKeys maps config keys to the persistent flags overriding them.
var flagKeys = map[string]string{
	"log_level":                "log-level",
	"host":                     "host",
	"sourcegraph.url":          "sourcegraph-url",
	"sourcegraph.access_token": "token",
	"cache.path":               "cache-path",
}

var rootCmd = &cobra.Command{
	Use:   "codeintel",
	Short: "Code intelligence for code views on web pages",
	Long: `codeintel finds code views on a page, resolves the file each one shows,
fetches its contents and keeps an editor model per view and per text field.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
			return err
		}
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		cfg, err = config.Load(v, cfgFile, dir)
		if err != nil {
			return err
		}
		logger, err = logging.NewLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./codeintel.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("host", "generic", "code host resolvers to use")
	flags.String("sourcegraph-url", "https://sourcegraph.com", "code search instance URL")
	flags.String("token", "", "access token for the code search instance")
	flags.String("cache-path", "", "badger directory for cached blobs (in memory when empty)")

	rootCmd.AddCommand(watchCmd(), scanCmd(), fetchCmd(), editorsCmd(), hostsCmd())
}

func main() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// newFetcher builds the file info pipeline: backend, blob cache, fetcher.
func newFetcher(db *badger.DB) (*codeview.Fetcher, error) {
	client := backend.New(backend.Options{
		URL:         cfg.Sourcegraph.URL,
		AccessToken: cfg.Sourcegraph.AccessToken,
		PublicOnly:  cfg.Sourcegraph.PublicOnly,
		Timeout:     time.Duration(cfg.Sourcegraph.TimeoutSec) * time.Second,
	}, logger.Named("backend"))

	cache, err := blobcache.New(client, db, blobcache.Options{
		CacheSize:       cfg.Cache.Size,
		CompressMinSize: cfg.Cache.CompressMinSize,
	}, logger.Named("blobcache"))
	if err != nil {
		return nil, fmt.Errorf("creating blob cache: %w", err)
	}
	return codeview.NewFetcher(cache, client, logger.Named("fetcher")), nil
}

// reloadLevel applies a changed log level from the config file.
func reloadLevel(next *config.Config) {
	if err := logger.SetLevel(next.LogLevel); err != nil {
		logger.Warn("ignoring invalid log level", zap.String("level", next.LogLevel), zap.Error(err))
		return
	}
	logger.Info("log level changed", zap.String("level", next.LogLevel))
}
