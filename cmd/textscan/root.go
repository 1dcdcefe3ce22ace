package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/config"
	"github.com/jackzampolin/textscan/internal/home"
	"github.com/jackzampolin/textscan/internal/logging"
	"github.com/jackzampolin/textscan/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "textscan",
	Short: "Extract text from PDFs and live camera frames",
	Long: `textscan extracts text from PDF files and from a webcam feed.

PDF pages are read from their text layer, falling back to OCR for
scanned pages. Camera frames are sampled by a detection loop that draws
recognised text over the live picture and captures it on request.

Run it as a server (textscan serve) with a browser UI and HTTP API,
or directly from the terminal (textscan scan).`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.textscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "textscan home directory (default: ~/.textscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config, else the one in
// the --home directory, else the default search path.
func loadConfig() (*config.Manager, error) {
	file := cfgFile
	if file == "" && homeDir != "" {
		if h, err := home.New(homeDir); err == nil && h.ConfigExists() {
			file = h.ConfigPath()
		}
	}
	return config.NewManager(file)
}

// resolveHome applies --home over storage.home.
func resolveHome(cfg *config.Config) (*home.Dir, error) {
	path := homeDir
	if path == "" {
		path = cfg.Storage.Home
	}
	return home.New(path)
}

// setupLogger builds the process logger and makes it the slog default.
// The returned closer flushes the rotated log file, if any.
func setupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// stderrLogger is used by terminal commands so that stdout stays clean
// for results.
func stderrLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.NewWithWriter(os.Stderr, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}
