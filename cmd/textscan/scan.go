package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/camera"
	"github.com/jackzampolin/textscan/internal/config"
	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/overlay"
	"github.com/jackzampolin/textscan/internal/pdftext"
	"github.com/jackzampolin/textscan/internal/replay"
	"github.com/jackzampolin/textscan/internal/results"
	"github.com/jackzampolin/textscan/internal/server/endpoints"
	"github.com/jackzampolin/textscan/internal/session"
)

// scanFlags override the detection and OCR settings from config.
type scanFlags struct {
	engine      string
	legacy      string
	policy      string
	everyN      int
	interval    time.Duration
	threshold   float64
	captureMode string
	save        bool
	outDir      string
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.engine, "engine", "", "OCR engine (default: ocr.engine)")
	fl.StringVar(&f.legacy, "legacy", "", "Start from a historical preset: count (every 10th frame, manual) or time (every 3s, auto)")
	fl.StringVar(&f.policy, "policy", "", "Sampling policy: count or time")
	fl.IntVar(&f.everyN, "every-n", 0, "Detect every N frames (count policy)")
	fl.DurationVar(&f.interval, "interval", 0, "Detect at most this often (time policy)")
	fl.Float64Var(&f.threshold, "threshold", 0, "Confidence threshold in [0, 1)")
	fl.StringVar(&f.captureMode, "capture-mode", "", "Capture mode: manual or auto")
	fl.BoolVar(&f.save, "save", false, "Write captured text to "+results.WebcamFile)
	fl.StringVar(&f.outDir, "out-dir", ".", "Directory for saved results")
}

// detection merges the flags over base.
func (f *scanFlags) detection(cmd *cobra.Command, base detect.Config) (detect.Config, error) {
	cfg := base
	if f.legacy != "" {
		if f.legacy != detect.PolicyCount && f.legacy != detect.PolicyTime {
			return cfg, fmt.Errorf("%w: unknown legacy preset %q", detect.ErrInvalidConfig, f.legacy)
		}
		cfg = detect.Legacy(f.legacy)
	}
	fl := cmd.Flags()
	if f.policy != "" {
		cfg.Policy = f.policy
	}
	if fl.Changed("every-n") {
		cfg.EveryN = f.everyN
	}
	if fl.Changed("interval") {
		cfg.Interval = f.interval
	}
	if fl.Changed("threshold") {
		cfg.Threshold = f.threshold
	}
	if f.captureMode != "" {
		cfg.CaptureMode = f.captureMode
	}
	return cfg, cfg.Err()
}

// ScanResult is the outcome of a terminal detection run.
type ScanResult struct {
	Frames int64    `json:"frames"`
	Passes int64    `json:"passes"`
	State  string   `json:"state"`
	Lines  []string `json:"lines"`
	Saved  string   `json:"saved,omitempty"`
}

func (r ScanResult) TextLines() []string { return r.Lines }

// scanEnv is the config, logger and OCR engine shared by scan commands.
type scanEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	engine ocr.Engine
	close  func()
}

func newScanEnv(engineName string) (*scanEnv, error) {
	cm, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()
	logger, closer, err := stderrLogger(cfg)
	if err != nil {
		return nil, err
	}

	engines := ocr.NewRegistry()
	engines.SetLogger(logger)
	engines.Reload(cfg.ToOCRRegistryConfig())
	var engine ocr.Engine
	if engineName == "" {
		engine, err = engines.Default()
	} else {
		engine, err = engines.Get(engineName)
	}
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &scanEnv{cfg: cfg, logger: logger, engine: engine, close: func() { closer.Close() }}, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract text without a server",
}

var webcamFlags scanFlags
var webcamDevice int

var scanWebcamCmd = &cobra.Command{
	Use:   "webcam",
	Short: "Detect text on the webcam feed in a window",
	Long: `Open the webcam in a window and draw detected text over the picture.

Press Space to capture the text on screen (manual mode) and Q or Esc
to quit. In auto mode every fresh detection pass is captured.

Examples:
  textscan scan webcam
  textscan scan webcam --legacy time --save
  textscan scan webcam --device 1 --threshold 0.8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newScanEnv(webcamFlags.engine)
		if err != nil {
			return err
		}
		defer env.close()

		dcfg, err := webcamFlags.detection(cmd, env.cfg.Detection)
		if err != nil {
			return err
		}

		c := env.cfg.Camera
		camCfg := camera.Config{Device: c.Device, Width: c.Width, Height: c.Height}
		if cmd.Flags().Changed("device") {
			camCfg.Device = webcamDevice
		}
		cam, err := camera.Open(camCfg)
		if err != nil {
			if errors.Is(err, detect.ErrDeviceUnavailable) {
				env.logger.Error("webcam unavailable", "device", camCfg.Device, "error", err)
				return errors.New(endpoints.WebcamUnavailableMessage)
			}
			return err
		}

		title := camera.TitleManual
		if dcfg.CaptureMode == detect.CaptureAuto {
			title = camera.TitleAuto
		}
		win := camera.NewWindow(title)

		loop := &detect.Loop{
			Source:   cam,
			Detector: &ocr.FrameDetector{Engine: env.engine},
			Renderer: camera.NewMatRenderer(),
			Display:  win,
			Controls: win,
			Logger:   env.logger,
		}
		return runScan(cmd, loop, dcfg, &webcamFlags)
	},
}

var replayFlags scanFlags
var (
	replayLoop   bool
	replayDelay  time.Duration
	replayWindow bool
)

var scanReplayCmd = &cobra.Command{
	Use:   "replay <dir>",
	Short: "Run the detection loop over a directory of frames",
	Long: `Play the .png/.jpg frames in a directory through the detection loop.

Without --window there is no keyboard, so captures happen only in auto
mode; auto is used unless --capture-mode says otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newScanEnv(replayFlags.engine)
		if err != nil {
			return err
		}
		defer env.close()

		base := env.cfg.Detection
		if !replayWindow {
			base.CaptureMode = detect.CaptureAuto
		}
		dcfg, err := replayFlags.detection(cmd, base)
		if err != nil {
			return err
		}

		src, err := replay.Open(replay.Config{Dir: args[0], Loop: replayLoop, FrameDelay: replayDelay})
		if err != nil {
			return err
		}

		loop := &detect.Loop{
			Source:   src,
			Detector: &ocr.FrameDetector{Engine: env.engine},
			Renderer: overlay.NewRenderer(),
			Logger:   env.logger,
		}
		if replayWindow {
			win := camera.NewWindow(camera.TitleManual)
			loop.Display = win
			loop.Controls = win
		}
		return runScan(cmd, loop, dcfg, &replayFlags)
	},
}

// runScan runs loop to completion and reports or saves what it captured.
func runScan(cmd *cobra.Command, loop *detect.Loop, dcfg detect.Config, flags *scanFlags) error {
	s := detect.NewSession(dcfg, time.Now())
	s, err := loop.Run(cmd.Context(), s)
	if err != nil {
		return err
	}

	res := ScanResult{
		Frames: s.Frames(),
		Passes: s.Passes(),
		State:  string(s.State()),
		Lines:  s.Log().Lines(),
	}
	if flags.save {
		if len(res.Lines) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), session.NothingToSaveMessage)
		} else {
			store, err := results.NewStore(flags.outDir)
			if err != nil {
				return err
			}
			if res.Saved, err = store.SaveText(results.WebcamFile, res.Lines); err != nil {
				return err
			}
		}
	}
	return api.Output(res)
}

var (
	pdfEngine string
	pdfOutDir string
	pdfDPI    int
)

var scanPDFCmd = &cobra.Command{
	Use:   "pdf <file.pdf>",
	Short: "Extract text from a PDF",
	Long: `Extract text from every page of a PDF. Pages without a text layer
are rendered with pdftoppm and run through OCR.

Writes processed_results.csv and detected_text.txt to --out-dir.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newScanEnv(pdfEngine)
		if err != nil {
			return err
		}
		defer env.close()

		pcfg := env.cfg.PDF
		if cmd.Flags().Changed("dpi") {
			pcfg.DPI = pdfDPI
		}
		pipeline := pdftext.New(env.engine, pcfg, env.logger)

		res, err := pipeline.Process(cmd.Context(), args[0])
		if errors.Is(err, pdftext.ErrNoData) {
			return errors.New(pdftext.NoDataMessage)
		}
		if err != nil {
			return err
		}

		store, err := results.NewStore(pdfOutDir)
		if err != nil {
			return err
		}
		report, err := store.SavePDF(results.Report{
			Source:   args[0],
			Rows:     res.Rows,
			Lines:    res.Lines(),
			Pages:    res.Pages,
			OCRPages: res.OCRPages,
		})
		if err != nil {
			return err
		}
		return api.Output(report)
	},
}

func init() {
	webcamFlags.register(scanWebcamCmd)
	scanWebcamCmd.Flags().IntVar(&webcamDevice, "device", 0, "Camera device index (default: camera.device)")

	replayFlags.register(scanReplayCmd)
	scanReplayCmd.Flags().BoolVar(&replayLoop, "loop", false, "Restart from the first frame at the end")
	scanReplayCmd.Flags().DurationVar(&replayDelay, "frame-delay", 0, "Delay between frames")
	scanReplayCmd.Flags().BoolVar(&replayWindow, "window", false, "Show frames in a window with keyboard controls")

	scanPDFCmd.Flags().StringVar(&pdfEngine, "engine", "", "OCR engine for pages without text (default: ocr.engine)")
	scanPDFCmd.Flags().StringVar(&pdfOutDir, "out-dir", ".", "Directory for the CSV and text results")
	scanPDFCmd.Flags().IntVar(&pdfDPI, "dpi", 0, "Render resolution for OCR fallback (default: pdf.dpi)")

	scanCmd.AddCommand(scanWebcamCmd)
	scanCmd.AddCommand(scanReplayCmd)
	scanCmd.AddCommand(scanPDFCmd)
	rootCmd.AddCommand(scanCmd)
}
