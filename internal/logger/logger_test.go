package logger

import (
	"testing"

	"solsniper/internal/config"
)

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "json"})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	if !l.Core().Enabled(0) {
		t.Fatalf("info level should be enabled")
	}
	if l.Core().Enabled(-1) {
		t.Fatalf("debug level should be disabled")
	}
}

func TestNewConsoleEncoding(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Encoding: "CONSOLE"})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatalf("debug level should be enabled")
	}
}
