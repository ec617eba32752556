package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-qa/internal/capture"
	"pdf-qa/internal/config"
	"pdf-qa/internal/logging"
	"pdf-qa/internal/settings"
)

const configFilePath = "./configs/config.yaml"

var cfgPath string

func main() {
	if err := newRootCMD().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCMD() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdf-qa",
		Short:         "Ask questions about the PDF you are reading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", configFilePath, "config file")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("settings-backend", "", "settings backend (file, sqlite, postgres, redis)")
	pf.String("settings-path", "", "settings file for the file and sqlite backends")
	pf.String("settings-dsn", "", "postgres DSN for the postgres backend")
	pf.String("llm-provider", "", "completion provider (openai, ollama)")
	pf.String("llm-model", "", "completion model")
	pf.String("llm-base-url", "", "completion API base URL")
	pf.String("embedding-model", "", "embedding model")
	pf.String("embedding-base-url", "", "embedding API base URL")
	pf.Int("top-k", 0, "pages retrieved per question")

	root.AddCommand(popupCMD(), serveCMD(), optionsCMD(), configCMD())
	return root
}

// setup loads the configuration for cmd and configures logging.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, os.Stderr)
	log.Debug().Str("config", cfgPath).Str("settings_backend", cfg.Settings.Backend).Msg("Loaded config")
	return cfg, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func openSettings(ctx context.Context, cfg *config.Config) (*settings.Settings, error) {
	store, err := settings.New(ctx, cfg.Settings)
	if err != nil {
		return nil, err
	}
	return settings.NewSettings(store), nil
}

// openPage loads the document at rawURL as the page context.
func openPage(ctx context.Context, cfg *config.Config, rawURL string) (*capture.Page, error) {
	return capture.Open(ctx, rawURL,
		capture.WithHTTPClient(&http.Client{Timeout: cfg.Capture.Timeout}),
		capture.WithMaxBytes(cfg.Capture.MaxBytes),
	)
}
