package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	logger, err := New(false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug disabled by default")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info enabled")
	}

	verbose, err := New(true)
	if err != nil {
		t.Fatalf("New(verbose) failed: %v", err)
	}
	if !verbose.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug enabled when verbose")
	}
}
