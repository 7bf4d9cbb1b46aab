package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delfi-foods/pricescout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricescout",
	Short: "Per-SKU retail price reconciliation",
	Long:  "Reads a product list, collects price quotes from retail sites and the Skroutz aggregator, and reconciles the minimum price per SKU into a CSV table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
