package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewParsesLevel(t *testing.T) {
	t.Parallel()

	if log := New("debug", "json"); log.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("unexpected level: %v", log.GetLevel())
	}
	if log := New("nonsense", "json"); log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("bad level must fall back to info, got %v", log.GetLevel())
	}
	if log := New("", "console"); log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("empty level must fall back to info, got %v", log.GetLevel())
	}
}
