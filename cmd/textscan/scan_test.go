package main

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/detect"
)

func TestScanFlags_Detection(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    func(detect.Config) bool
		wantErr error
	}{
		{
			name: "defaults pass through",
			args: nil,
			want: func(c detect.Config) bool { return c == detect.DefaultConfig() },
		},
		{
			name: "legacy time preset",
			args: []string{"--legacy", "time"},
			want: func(c detect.Config) bool {
				return c.Policy == detect.PolicyTime && c.Interval == 3*time.Second && c.CaptureMode == detect.CaptureAuto
			},
		},
		{
			name: "flags override preset",
			args: []string{"--legacy", "time", "--interval", "500ms", "--capture-mode", "manual"},
			want: func(c detect.Config) bool {
				return c.Interval == 500*time.Millisecond && c.CaptureMode == detect.CaptureManual
			},
		},
		{
			name: "zero threshold is honoured",
			args: []string{"--threshold", "0"},
			want: func(c detect.Config) bool { return c.Threshold == 0 },
		},
		{
			name:    "bad legacy preset",
			args:    []string{"--legacy", "hourly"},
			wantErr: detect.ErrInvalidConfig,
		},
		{
			name:    "invalid every-n",
			args:    []string{"--every-n", "0"},
			wantErr: detect.ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f scanFlags
			cmd := &cobra.Command{Use: "test"}
			f.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}

			got, err := f.detection(cmd, detect.DefaultConfig())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("detection() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("detection() error = %v", err)
			}
			if !tt.want(got) {
				t.Errorf("detection() = %+v", got)
			}
		})
	}
}

func TestScanResult_TextLines(t *testing.T) {
	r := ScanResult{Lines: []string{"a", "b"}}
	if got := r.TextLines(); len(got) != 2 || got[1] != "b" {
		t.Errorf("TextLines() = %v", got)
	}
}
