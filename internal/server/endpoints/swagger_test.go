package endpoints

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/textscan/docs"
)

func TestSwaggerEndpoint(t *testing.T) {
	get := func(t *testing.T, e *SwaggerEndpoint) (int, []byte) {
		t.Helper()
		_, _, h := e.Route()
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/swagger.json", nil))
		body, _ := io.ReadAll(rec.Result().Body)
		return rec.Code, body
	}

	t.Run("serves the embedded document", func(t *testing.T) {
		code, body := get(t, &SwaggerEndpoint{})
		if code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if !bytes.Equal(body, docs.SwaggerJSON) {
			t.Error("body differs from the embedded document")
		}
		if !bytes.Contains(body, []byte(`"/api/sessions/{id}/capture"`)) {
			t.Error("embedded document has no capture route")
		}
	})

	t.Run("SpecPath overrides the embedded copy", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "swagger.json")
		want := []byte(`{"swagger":"2.0","paths":{}}`)
		if err := os.WriteFile(path, want, 0o644); err != nil {
			t.Fatal(err)
		}
		code, body := get(t, &SwaggerEndpoint{SpecPath: path})
		if code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if !bytes.Equal(body, want) {
			t.Errorf("body = %s, want %s", body, want)
		}
	})

	t.Run("missing override is not found", func(t *testing.T) {
		code, _ := get(t, &SwaggerEndpoint{SpecPath: filepath.Join(t.TempDir(), "nope.json")})
		if code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})
}
