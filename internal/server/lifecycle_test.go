package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/textscan/internal/config"
	"github.com/jackzampolin/textscan/internal/detect"
	"github.com/jackzampolin/textscan/internal/home"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/server/endpoints"
	"github.com/jackzampolin/textscan/internal/session"
	"github.com/jackzampolin/textscan/internal/testutil"
)

const testConfig = `ocr:
  engine: mock
detection:
  every_n: 1
`

// newTestServer builds a server on a free port backed by the mock engine.
func newTestServer(t *testing.T, cfgYAML string) (*Server, testutil.ServerConfig, *config.Manager) {
	t.Helper()
	cfg := testutil.NewServerConfig(t)

	if err := os.WriteFile(cfg.ConfigFile, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cm, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	h, err := home.New(cfg.HomeDir)
	if err != nil {
		t.Fatal(err)
	}

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		Home:          h,
		ConfigManager: cm,
		Openers: session.Openers{
			session.SourceCamera: func(session.Options) (detect.Source, detect.Renderer, error) {
				return nil, nil, detect.ErrDeviceUnavailable
			},
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, cfg, cm
}

// startServer runs srv until the test ends.
func startServer(t *testing.T, srv *Server, cfg testutil.ServerConfig) *testutil.StartServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()
	starter := &testutil.StartServer{Cancel: cancel, Done: done}
	t.Cleanup(starter.Stop)

	if err := testutil.WaitForServer(cfg.URL(), 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	return starter
}

func TestServer_FullLifecycle(t *testing.T) {
	srv, cfg, _ := newTestServer(t, testConfig)

	ctx, cancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()
	if err := testutil.WaitForServer(cfg.URL(), 10*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}

	client := testutil.HTTPClient()

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.StatusCode != http.StatusOK || health.Status != "ok" {
			t.Errorf("health = %d %q", resp.StatusCode, health.Status)
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.StatusCode != http.StatusOK || health.Engine != ocr.MockName {
			t.Errorf("ready = %d %+v", resp.StatusCode, health)
		}
	})

	t.Run("status_endpoint", func(t *testing.T) {
		status, err := testutil.GetStatus(cfg.URL())
		if err != nil {
			t.Fatalf("status check failed: %v", err)
		}
		if status.Server != "running" || status.Engines.Default != ocr.MockName {
			t.Errorf("status = %+v", status)
		}
		if !strings.HasPrefix(status.WorkDir, cfg.HomeDir) {
			t.Errorf("WorkDir = %q, want under %q", status.WorkDir, cfg.HomeDir)
		}
	})

	t.Run("config_endpoint", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/api/config")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var got endpoints.ConfigResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.File != cfg.ConfigFile {
			t.Errorf("File = %q, want %q", got.File, cfg.ConfigFile)
		}
		if got.Config == nil || got.Config.OCR.Engine != ocr.MockName || got.Config.Detection.EveryN != 1 {
			t.Errorf("Config = %+v", got.Config)
		}
	})

	t.Run("swagger_embedded", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/swagger.json")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var doc struct {
			Paths map[string]any `json:"paths"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			t.Fatalf("failed to decode swagger.json: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET /swagger.json = %d, want 200", resp.StatusCode)
		}
		for _, path := range []string{"/api/pdf", "/api/sessions", "/api/sessions/{id}/save"} {
			if _, ok := doc.Paths[path]; !ok {
				t.Errorf("swagger.json has no %s", path)
			}
		}
	})

	t.Run("static_index", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/sessions/anything")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "textscan") {
			t.Errorf("GET /sessions/anything = %d, body has no index page", resp.StatusCode)
		}
	})

	var sessionID string
	t.Run("start_replay_session", func(t *testing.T) {
		body := `{"source":"replay","replay_dir":` + jsonString(testutil.WriteFrames(t, 2)) + `,"replay_loop":true,"frame_delay_ms":5}`
		resp, err := client.Post(cfg.URL()+"/api/sessions", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("start = %d", resp.StatusCode)
		}
		var snap session.Snapshot
		json.NewDecoder(resp.Body).Decode(&snap)
		sessionID = snap.ID
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
		if srv.Sessions().Running() != 1 {
			t.Errorf("Running() = %d, want 1", srv.Sessions().Running())
		}
	})

	// Shutdown server
	cancel()

	select {
	case err := <-serverErr:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("server did not shut down within timeout")
	}

	t.Run("not_running_after_shutdown", func(t *testing.T) {
		if srv.IsRunning() {
			t.Error("IsRunning() = true after shutdown, want false")
		}
	})

	t.Run("sessions_stopped_after_shutdown", func(t *testing.T) {
		snap, err := srv.Sessions().Get(sessionID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if snap.State == detect.StateRunning {
			t.Errorf("session still running after shutdown")
		}
	})
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
