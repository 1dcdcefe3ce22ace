package config

import (
	"fmt"
	"strconv"

	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/logging"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/pdftext"
	"github.com/jackzampolin/textscan/internal/preview"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Log: logging.DefaultConfig(),
		OCR: OCRCfg{
			Engine:    ocr.TesseractName,
			Languages: []string{"eng"},
			Level:     ocr.LevelLine,
		},
		PDF: pdftext.DefaultConfig(),
		Camera: CameraCfg{
			Device: 0,
			Width:  640,
			Height: 480,
		},
		Detection: detect.DefaultConfig(),
		Preview: PreviewCfg{
			MaxFPS: preview.DefaultMaxFPS,
		},
	}
}

// defaultKeys flattens DefaultConfig into viper keys so that every leaf
// can be overridden from the environment.
func defaultKeys() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"server.host": d.Server.Host,
		"server.port": d.Server.Port,

		"log.level":        d.Log.Level,
		"log.format":       d.Log.Format,
		"log.file":         d.Log.File,
		"log.max_size_mb":  d.Log.MaxSizeMB,
		"log.max_backups":  d.Log.MaxBackups,
		"log.max_age_days": d.Log.MaxAgeDays,

		"storage.home": d.Storage.Home,

		"ocr.engine":        d.OCR.Engine,
		"ocr.languages":     d.OCR.Languages,
		"ocr.level":         d.OCR.Level,
		"ocr.page_seg_mode": d.OCR.PageSegMode,
		"ocr.rate_limit":    d.OCR.RateLimit,

		"pdf.dpi":       d.PDF.DPI,
		"pdf.workers":   d.PDF.Workers,
		"pdf.threshold": d.PDF.Threshold,

		"camera.device": d.Camera.Device,
		"camera.width":  d.Camera.Width,
		"camera.height": d.Camera.Height,

		"detection.policy":       d.Detection.Policy,
		"detection.every_n":      d.Detection.EveryN,
		"detection.interval":     d.Detection.Interval,
		"detection.threshold":    d.Detection.Threshold,
		"detection.capture_mode": d.Detection.CaptureMode,

		"preview.max_fps": d.Preview.MaxFPS,
	}
}

// Validate returns every problem with the configuration.
func (c *Config) Validate() []string {
	var issues []string

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		issues = append(issues, fmt.Sprintf("server.port must be numeric, got %q", c.Server.Port))
	}
	if c.Log.Level != "" {
		if _, err := logging.ParseLevel(c.Log.Level); err != nil {
			issues = append(issues, "log.level: "+err.Error())
		}
	}
	switch c.OCR.Level {
	case "", ocr.LevelLine, ocr.LevelWord:
	default:
		issues = append(issues, fmt.Sprintf("ocr.level must be %q or %q", ocr.LevelLine, ocr.LevelWord))
	}
	if c.OCR.RateLimit < 0 {
		issues = append(issues, "ocr.rate_limit must be >= 0")
	}
	if c.PDF.DPI <= 0 {
		issues = append(issues, "pdf.dpi must be positive")
	}
	if c.PDF.Workers <= 0 {
		issues = append(issues, "pdf.workers must be positive")
	}
	if c.Camera.Device < 0 {
		issues = append(issues, "camera.device must be >= 0")
	}
	for _, issue := range c.Detection.Validate() {
		issues = append(issues, "detection: "+issue)
	}
	return issues
}
