package config

import (
	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/logging"
	"github.com/jackzampolin/textscan/internal/pdftext"
)

// Config holds textscan configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server    ServerCfg      `mapstructure:"server" yaml:"server"`
	Log       logging.Config `mapstructure:"log" yaml:"log"`
	Storage   StorageCfg     `mapstructure:"storage" yaml:"storage"`
	OCR       OCRCfg         `mapstructure:"ocr" yaml:"ocr"`
	PDF       pdftext.Config `mapstructure:"pdf" yaml:"pdf"`
	Camera    CameraCfg      `mapstructure:"camera" yaml:"camera"`
	Detection detect.Config  `mapstructure:"detection" yaml:"detection"`
	Preview   PreviewCfg     `mapstructure:"preview" yaml:"preview"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// StorageCfg locates the home directory. Empty means ~/.textscan.
type StorageCfg struct {
	Home string `mapstructure:"home" yaml:"home"` // supports ${ENV_VAR} syntax
}

// OCRCfg selects and tunes the OCR engine.
type OCRCfg struct {
	Engine      string   `mapstructure:"engine" yaml:"engine"`         // "tesseract" or "mock"
	Languages   []string `mapstructure:"languages" yaml:"languages"`   // tesseract language codes
	Level       string   `mapstructure:"level" yaml:"level"`           // "line" or "word"
	PageSegMode int      `mapstructure:"page_seg_mode" yaml:"page_seg_mode"`
	RateLimit   float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second, 0 = unlimited
}

// CameraCfg configures the capture device.
type CameraCfg struct {
	Device int `mapstructure:"device" yaml:"device"`
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// PreviewCfg configures the browser preview stream.
type PreviewCfg struct {
	MaxFPS int `mapstructure:"max_fps" yaml:"max_fps"`
}
