package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestClient_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ok":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]string{"method": r.Method, "echo": body["msg"]})
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "session not found"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("post", func(t *testing.T) {
		var out map[string]string
		if err := c.Post(ctx, "/ok", map[string]string{"msg": "hi"}, &out); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
		if out["method"] != "POST" || out["echo"] != "hi" {
			t.Errorf("Post() = %v", out)
		}
	})

	t.Run("error response", func(t *testing.T) {
		err := c.Get(ctx, "/missing", nil)
		if !IsStatus(err, http.StatusNotFound) {
			t.Fatalf("Get() error = %v, want 404", err)
		}
		if !strings.Contains(err.Error(), "session not found") {
			t.Errorf("error = %q", err)
		}
	})

	t.Run("non-json error", func(t *testing.T) {
		err := c.Delete(ctx, "/other")
		if !IsStatus(err, http.StatusInternalServerError) || !strings.Contains(err.Error(), "boom") {
			t.Errorf("Delete() error = %v", err)
		}
	})
}

func TestClient_UploadDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f, hdr, err := r.FormFile("pdf")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(f)
			json.NewEncoder(w).Encode(map[string]any{"name": hdr.Filename, "size": len(data)})
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="detected_text.txt"`)
		w.Write([]byte("Page 1:\nHello"))
	}))
	defer srv.Close()
	c := NewClient(srv.URL)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	os.WriteFile(path, []byte("%PDF-1.4"), 0o644)

	var out struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	if err := c.Upload(context.Background(), "/api/pdf", "pdf", path, &out); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if out.Name != "doc.pdf" || out.Size != 8 {
		t.Errorf("Upload() = %+v", out)
	}

	var buf bytes.Buffer
	name, err := c.Download(context.Background(), http.MethodGet, "/api/files/detected_text.txt", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if name != "detected_text.txt" || buf.String() != "Page 1:\nHello" {
		t.Errorf("Download() = %q, %q", name, buf.String())
	}
}

func TestClient_WaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).WaitReady(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}

	t.Run("gives up", func(t *testing.T) {
		err := NewClient("http://127.0.0.1:1").WaitReady(context.Background(), 2, time.Millisecond)
		if err == nil {
			t.Error("WaitReady() against closed port should fail")
		}
	})
}

type lines []string

func (l lines) TextLines() []string { return l }

func TestOutputTo(t *testing.T) {
	data := lines{"a", "b"}
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputFormatText, "a\nb\n"},
		{OutputFormatJSON, "[\n  \"a\",\n  \"b\"\n]\n"},
		{OutputFormatYAML, "- a\n- b\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := OutputTo(&buf, tt.format, data); err != nil {
				t.Fatalf("OutputTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("OutputTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}

	t.Run("text falls back to yaml", func(t *testing.T) {
		var buf bytes.Buffer
		OutputTo(&buf, OutputFormatText, map[string]string{"status": "ok"})
		if buf.String() != "status: ok\n" {
			t.Errorf("OutputTo() = %q", buf.String())
		}
	})
}

type fakeEndpoint struct {
	method, path, group string
	init                bool
}

func (e fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(e.path)) }
}
func (e fakeEndpoint) RequiresInit() bool { return e.init }
func (e fakeEndpoint) Group() string      { return e.group }
func (e fakeEndpoint) Command(func() string) *cobra.Command {
	return &cobra.Command{Use: strings.TrimPrefix(e.path, "/")}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeEndpoint{method: "GET", path: "/health"})
	r.Register(fakeEndpoint{method: "GET", path: "/list", group: "sessions", init: true})
	r.Register(fakeEndpoint{method: "POST", path: "/start", group: "sessions", init: true})

	t.Run("routes and init middleware", func(t *testing.T) {
		mux := http.NewServeMux()
		r.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("/health status = %d", rec.Code)
		}
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/list", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("/list status = %d, want 503", rec.Code)
		}
	})

	t.Run("commands are grouped", func(t *testing.T) {
		cmd := r.BuildCommands(func() string { return "" })
		if len(cmd.Commands()) != 2 {
			t.Fatalf("api has %d subcommands, want 2", len(cmd.Commands()))
		}
		sessions, _, err := cmd.Find([]string{"sessions", "start"})
		if err != nil || sessions.Name() != "start" {
			t.Errorf("Find(sessions start) = %v, %v", sessions, err)
		}
	})
}
