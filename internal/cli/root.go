package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"firerag/config"
	"firerag/internal/logging"
)

var (
	cfgFile string
	dataDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "firerag",
	Short: "Question answering over fire-safety regulations",
	Long: `firerag indexes extracted regulation pages and answers questions
about them: candidate chunks come from a vector or keyword index, an
LLM scores each candidate's relevance, and only context that clears
the relevance gate is turned into a structured, source-linked answer.

Example usage:
  firerag ingest --sources ./pages --media ./media  # build the index
  firerag query -q "fire door gap"                  # inspect retrieval
  firerag chat                                      # interactive answers
  firerag serve                                     # HTTP API`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; deployments set the environment directly.
		godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(level, cfg.Logging.Format)
		slog.SetDefault(logger)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./firerag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "data", "index data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetDataDir() string {
	return dataDir
}

func GetLogger() *slog.Logger {
	return logger
}
