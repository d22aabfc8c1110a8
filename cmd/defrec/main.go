// defrec classifies scraped defense procurement notices into the analyst
// worksheet format: taxonomy, geography, domestic content and financial
// fields, with deterministic derivation and validation on top.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"defrec/internal/config"
	"defrec/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiKey     string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "defrec",
	Short: "defrec - defense procurement record classification pipeline",
	Long: `defrec turns raw contract descriptions into fully classified analyst
worksheet rows.

Each record passes through four classification stages (taxonomy, geography,
domestic content, financial), supplier name reconciliation, deterministic
field derivation, and taxonomy validation. Previously classified records feed
a similarity memory that grounds later classifications.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if apiKey != "" {
			cfg.Service.APIKey = apiKey
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "defrec.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Classification service API key (overrides config and DEFREC_API_KEY)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(memoryCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
