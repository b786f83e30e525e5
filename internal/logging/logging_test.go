package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
	}
	for level, want := range cases {
		logger, err := New(level, "json", "roomguard")
		if err != nil {
			t.Fatalf("new %q: %v", level, err)
		}
		if !logger.Core().Enabled(want) {
			t.Fatalf("level %q: expected %s enabled", level, want)
		}
		if want > zapcore.DebugLevel && logger.Core().Enabled(want-1) {
			t.Fatalf("level %q: expected %s disabled", level, want-1)
		}
	}
}

func TestNewConsole(t *testing.T) {
	if _, err := New("info", "console", ""); err != nil {
		t.Fatalf("console logger: %v", err)
	}
}
