package detect

import (
	"errors"
	"image"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestQuad(t *testing.T) {
	t.Run("from rect round trip", func(t *testing.T) {
		r := image.Rect(5, 7, 50, 20)
		q := QuadFromRect(r)
		if got := q.Bounds(); got != r {
			t.Errorf("Bounds() = %v, want %v", got, r)
		}
	})

	t.Run("rotated bounds", func(t *testing.T) {
		q := Quad{{10, 2}, {30, 8.5}, {26, 20}, {4.2, 14}}
		want := image.Rect(4, 2, 30, 20)
		if got := q.Bounds(); got != want {
			t.Errorf("Bounds() = %v, want %v", got, want)
		}
	})

	t.Run("points", func(t *testing.T) {
		q := Quad{{1.4, 1.6}, {9, 1}, {9, 5}, {1, 5}}
		want := []image.Point{{1, 2}, {9, 1}, {9, 5}, {1, 5}}
		if got := q.Points(); !reflect.DeepEqual(got, want) {
			t.Errorf("Points() = %v, want %v", got, want)
		}
	})
}

func TestSet_Above(t *testing.T) {
	set := Set{det("a", 0.9), det("b", 0.6), det("c", 0.61), det("d", 0.1)}
	if got := set.Above(DefaultThreshold).Texts(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Above(0.6) = %v, want [a c]", got)
	}
	if got := Set(nil).Above(0.6); len(got) != 0 {
		t.Errorf("Above on nil set = %v", got)
	}
}

func TestCaptureLog(t *testing.T) {
	at := time.Date(2024, 3, 9, 8, 5, 1, 0, time.Local)

	var log CaptureLog
	if n := log.Append(at, nil); n != 0 {
		t.Errorf("Append(nil) = %d, want 0", n)
	}
	log.Append(at, Set{det("STOP", 0.9), det("AHEAD", 0.8)})

	if log.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", log.Len())
	}
	want := []string{"2024-03-09 08:05:01 | STOP", "2024-03-09 08:05:01 | AHEAD"}
	if got := log.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}

	entries := log.Entries()
	entries[0].Text = "mutated"
	if log.Entries()[0].Text != "STOP" {
		t.Error("Entries() must return a copy")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		issue  string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"legacy time is valid", func(c *Config) { *c = Legacy(PolicyTime) }, ""},
		{"zero stride", func(c *Config) { c.EveryN = 0 }, "every_n"},
		{"zero interval", func(c *Config) { c.Policy = PolicyTime; c.Interval = 0 }, "interval"},
		{"unknown policy", func(c *Config) { c.Policy = "sometimes" }, "sampling policy"},
		{"threshold too high", func(c *Config) { c.Threshold = 1 }, "threshold"},
		{"unknown capture", func(c *Config) { c.CaptureMode = "voice" }, "capture mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Err()
			if tt.issue == "" {
				if err != nil {
					t.Fatalf("Err() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Err() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.issue) {
				t.Errorf("Err() = %q, want mention of %q", err, tt.issue)
			}
		})
	}
}

func TestLegacy(t *testing.T) {
	cfg := Legacy(PolicyTime)
	if cfg.Policy != PolicyTime || cfg.Interval != 3*time.Second || cfg.CaptureMode != CaptureAuto {
		t.Errorf("Legacy(time) = %+v", cfg)
	}
	cfg = Legacy(PolicyCount)
	if cfg.Policy != PolicyCount || cfg.EveryN != 10 || cfg.CaptureMode != CaptureManual {
		t.Errorf("Legacy(count) = %+v", cfg)
	}
}

func TestSession_StartsEmpty(t *testing.T) {
	s := NewSession(DefaultConfig(), time.Now())
	if s.ID == "" {
		t.Error("expected session id")
	}
	if len(s.Detections()) != 0 || s.Log().Len() != 0 {
		t.Error("new session must start with no detections and an empty log")
	}
	if s.State() != StateRunning {
		t.Errorf("State() = %s, want %s", s.State(), StateRunning)
	}
	s.Finish(time.Now(), errors.New("boom"))
	if s.State() != StateFailed || s.Err() == nil {
		t.Errorf("after failed finish: state=%s err=%v", s.State(), s.Err())
	}
}
