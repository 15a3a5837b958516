package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"IntelVault/internal/app"
	"IntelVault/internal/config"
	"IntelVault/internal/logging"
)

var cfgFile string

// newRootCmd returns the intelvault command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "intelvault",
		Short:         "Curate AI engineering content into a scored knowledge vault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $INTEL_VAULT_CONFIG)")

	rootCmd.AddCommand(
		newIngestCmd(),
		newWatchCmd(),
		newDigestCmd(),
		newListCmd(),
		newExportCmd(),
		newEmbedCmd(),
		newRecommendCmd(),
		newNoveltyCmd(),
		newFeedbackCmd(),
		newCatalogSyncCmd(),
	)
	return rootCmd
}

// withApp loads configuration, builds the application and closes it after fn.
func withApp(fn func(*app.Application) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()
	return fn(application)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("render output: %w", err)
	}
	return nil
}
