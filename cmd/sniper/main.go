package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "solsniper/docs"
	"solsniper/internal/config"
	"solsniper/internal/logger"
)

var (
	configPath string
	envOnly    bool

	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sniper",
	Short:         "Solana token sniper engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// .env is optional; real environment variables win.
		_ = godotenv.Load()
		if !cmd.Flags().Changed("env-only") {
			if raw := os.Getenv("SNIPER_ENV_ONLY"); raw != "" {
				envOnly = strings.EqualFold(raw, "true") || raw == "1"
			}
		}
		if !cmd.Flags().Changed("config") {
			if p := os.Getenv("SNIPER_CONFIG"); p != "" {
				configPath = p
			}
		}
		loaded, err := config.Load(configPath, envOnly)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg = loaded
		l, err := logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", false, "read configuration from SNIPER_* environment variables only")
	rootCmd.AddCommand(serveCmd, walletCmd, feesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
