package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/camera"
	"github.com/jackzampolin/textscan/internal/config"
	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/server"
	"github.com/jackzampolin/textscan/internal/session"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the textscan server",
	Long: `Start the textscan HTTP server.

The server provides:
  - /            - Browser UI for PDF upload and webcam sessions
  - /api/pdf     - PDF text extraction with OCR fallback
  - /api/sessions - Webcam and replay detection sessions
  - /api/preview - Websocket stream of annotated frames
  - /health      - Basic server health check
  - /ready       - Readiness check (OCR engine registered)

The config file is watched; OCR and detection changes apply to new
sessions without a restart.

Examples:
  textscan serve                    # Start on default port 8080
  textscan serve --port 3000        # Start on custom port
  textscan serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		// Get home directory
		h, err := resolveHome(cfg)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		logCfg := *cfg
		if logCfg.Log.File == "" {
			logCfg.Log.File = filepath.Join(h.LogsDir(), "server.log")
		}
		logger, closer, err := setupLogger(&logCfg)
		if err != nil {
			return err
		}
		defer closer.Close()
		cm.SetLogger(logger)

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cm,
			Openers:       session.Openers{session.SourceCamera: cameraOpener(cm)},
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		if file := cm.ConfigFileUsed(); file != "" {
			logger.Info("watching config file", "file", file)
			cm.WatchConfig()
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// cameraOpener opens the configured webcam, or the device a session
// request names.
func cameraOpener(cm *config.Manager) session.Opener {
	return func(opts session.Options) (detect.Source, detect.Renderer, error) {
		c := cm.Get().Camera
		cfg := camera.Config{Device: c.Device, Width: c.Width, Height: c.Height}
		if opts.Device != nil {
			cfg.Device = *opts.Device
		}
		cam, err := camera.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cam, camera.NewMatRenderer(), nil
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (default: server.port)")

	rootCmd.AddCommand(serveCmd)
}
