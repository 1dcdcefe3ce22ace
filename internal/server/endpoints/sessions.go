package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/results"
	"github.com/jackzampolin/textscan/internal/session"
	"github.com/jackzampolin/textscan/internal/svcctx"
)

// WebcamUnavailableMessage is returned when the camera cannot be opened.
const WebcamUnavailableMessage = "Error: Cannot access webcam!"

// stopTimeout bounds how long a stop request waits for the loop to exit.
const stopTimeout = 10 * time.Second

const startSessionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"source": {"enum": ["camera", "replay"]},
		"device": {"type": "integer", "minimum": 0},
		"replay_dir": {"type": "string", "minLength": 1},
		"replay_loop": {"type": "boolean"},
		"frame_delay_ms": {"type": "integer", "minimum": 0},
		"engine": {"type": "string"},
		"policy": {"enum": ["count", "time"]},
		"every_n": {"type": "integer", "minimum": 1},
		"interval_ms": {"type": "integer", "minimum": 1},
		"threshold": {"type": "number", "minimum": 0, "exclusiveMaximum": 1},
		"capture_mode": {"enum": ["manual", "auto"]}
	},
	"if": {"properties": {"source": {"const": "replay"}}, "required": ["source"]},
	"then": {"required": ["replay_dir"]}
}`

var (
	startSchemaOnce sync.Once
	startSchema     *jsonschema.Schema
	startSchemaErr  error
)

func compileStartSchema() (*jsonschema.Schema, error) {
	startSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("start_session.json", strings.NewReader(startSessionSchema)); err != nil {
			startSchemaErr = fmt.Errorf("failed to load session schema: %w", err)
			return
		}
		startSchema, startSchemaErr = compiler.Compile("start_session.json")
	})
	return startSchema, startSchemaErr
}

// StartSessionRequest is the body of POST /api/sessions. Unset fields
// fall back to the server's configured defaults.
type StartSessionRequest struct {
	Source       string   `json:"source,omitempty"`
	Device       *int     `json:"device,omitempty"`
	ReplayDir    string   `json:"replay_dir,omitempty"`
	ReplayLoop   bool     `json:"replay_loop,omitempty"`
	FrameDelayMS int      `json:"frame_delay_ms,omitempty"`
	Engine       string   `json:"engine,omitempty"`
	Policy       string   `json:"policy,omitempty"`
	EveryN       int      `json:"every_n,omitempty"`
	IntervalMS   int      `json:"interval_ms,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"`
	CaptureMode  string   `json:"capture_mode,omitempty"`
}

// decodeStartRequest validates raw against the start schema and decodes it.
// An empty body is an empty request.
func decodeStartRequest(raw []byte) (StartSessionRequest, error) {
	var req StartSessionRequest
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}

	schema, err := compileStartSchema()
	if err != nil {
		return req, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return req, fmt.Errorf("invalid request: %s", validationMessage(ve))
		}
		return req, fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}

// validationMessage flattens the leaf causes of a validation error.
func validationMessage(ve *jsonschema.ValidationError) string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("%s: %s", loc, ve.Message)
	}
	msgs := make([]string, 0, len(ve.Causes))
	for _, c := range ve.Causes {
		msgs = append(msgs, validationMessage(c))
	}
	return strings.Join(msgs, "; ")
}

// Options merges the request over defaults.
func (req StartSessionRequest) Options(defaults detect.Config) session.Options {
	cfg := defaults
	if req.Policy != "" {
		cfg.Policy = req.Policy
	}
	if req.EveryN > 0 {
		cfg.EveryN = req.EveryN
	}
	if req.IntervalMS > 0 {
		cfg.Interval = time.Duration(req.IntervalMS) * time.Millisecond
	}
	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}
	if req.CaptureMode != "" {
		cfg.CaptureMode = req.CaptureMode
	}

	return session.Options{
		Source:     session.SourceKind(req.Source),
		Device:     req.Device,
		ReplayDir:  req.ReplayDir,
		ReplayLoop: req.ReplayLoop,
		FrameDelay: time.Duration(req.FrameDelayMS) * time.Millisecond,
		Engine:     req.Engine,
		Detection:  &cfg,
	}
}

// StartSessionEndpoint handles POST /api/sessions.
type StartSessionEndpoint struct{}

var _ api.Endpoint = (*StartSessionEndpoint)(nil)

func (e *StartSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions", e.handler
}

func (e *StartSessionEndpoint) RequiresInit() bool { return true }

func (e *StartSessionEndpoint) Group() string { return "sessions" }

// handler godoc
//
//	@Summary		Start a detection session
//	@Description	Opens the camera or a replay directory and runs the sampled detection loop in the background
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		StartSessionRequest	false	"Session options"
//	@Success		201		{object}	session.Snapshot
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/sessions [post]
func (e *StartSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	req, err := decodeStartRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := req.Options(sessions.Defaults())
	snap, err := sessions.Start(r.Context(), opts)
	if err != nil {
		camera := opts.Source == "" || opts.Source == session.SourceCamera
		if camera && errors.Is(err, detect.ErrDeviceUnavailable) {
			svcctx.LoggerFrom(r.Context()).Warn("webcam unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, WebcamUnavailableMessage)
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

func (e *StartSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		req       StartSessionRequest
		device    int
		threshold float64
		interval  time.Duration
		delay     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a detection session",
		Long: `Start a detection session on the server.

Examples:
  textscan api sessions start
  textscan api sessions start --source replay --replay-dir ./frames --capture-mode auto
  textscan api sessions start --policy time --interval 3s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("device") {
				req.Device = &device
			}
			if flags.Changed("threshold") {
				req.Threshold = &threshold
			}
			req.IntervalMS = int(interval / time.Millisecond)
			req.FrameDelayMS = int(delay / time.Millisecond)

			client := api.NewClient(getServerURL())
			var resp session.Snapshot
			if err := client.Post(cmd.Context(), "/api/sessions", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Source, "source", "", "Frame source: camera or replay")
	f.IntVar(&device, "device", 0, "Camera device index")
	f.StringVar(&req.ReplayDir, "replay-dir", "", "Directory of frames for the replay source")
	f.BoolVar(&req.ReplayLoop, "replay-loop", false, "Loop the replay directory")
	f.DurationVar(&delay, "frame-delay", 0, "Delay between replay frames")
	f.StringVar(&req.Engine, "engine", "", "OCR engine (default: server default)")
	f.StringVar(&req.Policy, "policy", "", "Sampling policy: count or time")
	f.IntVar(&req.EveryN, "every-n", 0, "Detect every N frames (count policy)")
	f.DurationVar(&interval, "interval", 0, "Detect at most this often (time policy)")
	f.Float64Var(&threshold, "threshold", 0, "Confidence threshold in [0, 1)")
	f.StringVar(&req.CaptureMode, "capture-mode", "", "Capture mode: manual or auto")
	return cmd
}

// ListSessionsResponse is the response for GET /api/sessions.
type ListSessionsResponse struct {
	Sessions []session.Snapshot `json:"sessions"`
	Running  int                `json:"running"`
}

// ListSessionsEndpoint handles GET /api/sessions.
type ListSessionsEndpoint struct{}

var _ api.Endpoint = (*ListSessionsEndpoint)(nil)

func (e *ListSessionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions", e.handler
}

func (e *ListSessionsEndpoint) RequiresInit() bool { return true }

func (e *ListSessionsEndpoint) Group() string { return "sessions" }

// handler godoc
//
//	@Summary	List detection sessions
//	@Tags		sessions
//	@Produce	json
//	@Success	200	{object}	ListSessionsResponse
//	@Router		/api/sessions [get]
func (e *ListSessionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
		return
	}
	list := sessions.List()
	resp := ListSessionsResponse{Sessions: list}
	for _, s := range list {
		if s.State == detect.StateRunning {
			resp.Running++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListSessionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List detection sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListSessionsResponse
			if err := client.Get(cmd.Context(), "/api/sessions", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetSessionEndpoint handles GET /api/sessions/{id}.
type GetSessionEndpoint struct{}

var _ api.Endpoint = (*GetSessionEndpoint)(nil)

func (e *GetSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions/{id}", e.handler
}

func (e *GetSessionEndpoint) RequiresInit() bool { return true }

func (e *GetSessionEndpoint) Group() string { return "sessions" }

// handler godoc
//
//	@Summary	Get a detection session
//	@Tags		sessions
//	@Produce	json
//	@Param		id	path		string	true	"Session ID"
//	@Success	200	{object}	session.Snapshot
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/sessions/{id} [get]
func (e *GetSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
		return
	}
	snap, err := sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (e *GetSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a detection session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp session.Snapshot
			if err := client.Get(cmd.Context(), "/api/sessions/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SignalResponse acknowledges a capture request.
type SignalResponse struct {
	ID     string `json:"id"`
	Signal string `json:"signal"`
}

// CaptureSessionEndpoint handles POST /api/sessions/{id}/capture.
type CaptureSessionEndpoint struct{}

var _ api.Endpoint = (*CaptureSessionEndpoint)(nil)

func (e *CaptureSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/capture", e.handler
}

func (e *CaptureSessionEndpoint) RequiresInit() bool { return true }

func (e *CaptureSessionEndpoint) Group() string { return "sessions" }

// handler godoc
//
//	@Summary		Capture on-screen text
//	@Description	Asks the session to append its current detections to the captured log on its next iteration
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		202	{object}	SignalResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/sessions/{id}/capture [post]
func (e *CaptureSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
		return
	}
	id := r.PathValue("id")
	if err := sessions.Capture(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, SignalResponse{ID: id, Signal: detect.SignalCapture.String()})
}

func (e *CaptureSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "capture <id>",
		Short: "Capture the text currently detected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SignalResponse
			if err := client.Post(cmd.Context(), "/api/sessions/"+args[0]+"/capture", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StopSessionEndpoint handles POST /api/sessions/{id}/stop.
type StopSessionEndpoint struct{}

var _ api.Endpoint = (*StopSessionEndpoint)(nil)

func (e *StopSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/stop", e.handler
}

func (e *StopSessionEndpoint) RequiresInit() bool { return true }

func (e *StopSessionEndpoint) Group() string { return "sessions" }

// handler godoc
//
//	@Summary		Stop a detection session
//	@Description	Sends the quit signal and waits for the loop to release its source
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	session.Snapshot
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/sessions/{id}/stop [post]
func (e *StopSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), stopTimeout)
	defer cancel()

	snap, err := sessions.Stop(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (e *StopSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a detection session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp session.Snapshot
			if err := client.Post(cmd.Context(), "/api/sessions/"+args[0]+"/stop", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SaveSessionEndpoint handles POST /api/sessions/{id}/save.
type SaveSessionEndpoint struct{}

var _ api.Endpoint = (*SaveSessionEndpoint)(nil)

func (e *SaveSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/save", e.handler
}

func (e *SaveSessionEndpoint) RequiresInit() bool { return true }

func (e *SaveSessionEndpoint) Group() string { return "sessions" }

// handler godoc
//
//	@Summary		Save captured text
//	@Description	Writes the captured log to webcam_detected_text.txt and returns it as an attachment
//	@Tags			sessions
//	@Produce		plain
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{file}		file
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/sessions/{id}/save [post]
func (e *SaveSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	store := svcctx.ResultsFrom(r.Context())
	if sessions == nil || store == nil {
		writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
		return
	}

	if _, _, err := sessions.Save(r.PathValue("id")); err != nil {
		if errors.Is(err, session.ErrNothingToSave) {
			writeError(w, http.StatusBadRequest, session.NothingToSaveMessage)
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}

	f, err := store.Open(results.WebcamFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveAttachment(w, r, results.WebcamFile, st.ModTime(), f)
}

func (e *SaveSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "save <id>",
		Short: "Save a session's captured text and download it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return download(cmd, client, http.MethodPost, "/api/sessions/"+args[0]+"/save", out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write to this path (default: webcam_detected_text.txt, - for stdout)")
	return cmd
}
