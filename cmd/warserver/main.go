package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warserver",
	Short: "Standalone Bataille game server",
	Long: `warserver runs Bataille matches outside Nakama: an HTTP API for intents,
a websocket feed per game and a SQLite or in-memory match store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		if logJSON {
			log.SetFormatter(&logrus.JSONFormatter{})
		}
		return nil
	},
}

var (
	logLevel string
	logJSON  bool
)

func init() {
	// Runs before the other files' init so .env values reach flag defaults.
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("BATAILLE_LOG_LEVEL", "info"), "log level")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
