package ports

import (
	"errors"
	"testing"
)

func TestLookupLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"quiet", LevelQuiet, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LookupLogLevel(tt.in)
			if got != tt.want {
				t.Errorf("LookupLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.wantErr != errors.Is(err, ErrUnknownLogLevel) {
				t.Errorf("LookupLogLevel(%q) error = %v", tt.in, err)
			}
		})
	}
}

func TestParseLogLevel_RoundTrip(t *testing.T) {
	for _, level := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelQuiet} {
		if got := ParseLogLevel(level.String()); got != level {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", level.String(), got, level)
		}
	}
	if got := ParseLogLevel("nonsense"); got != LevelInfo {
		t.Errorf("expected fallback to info, got %v", got)
	}
}
