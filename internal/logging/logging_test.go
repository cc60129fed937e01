package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "warn"})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("期望 warn 级别, 实际 %s", logger.GetLevel())
	}

	logger = NewLogger(Config{Level: "not-a-level"})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("非法级别应回退到 info, 实际 %s", logger.GetLevel())
	}
}

func TestLogWriterConsole(t *testing.T) {
	if _, ok := logWriter(Config{Format: "console"}).(zerolog.ConsoleWriter); !ok {
		t.Fatal("console 格式应返回 ConsoleWriter")
	}
}
