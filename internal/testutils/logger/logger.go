package logger

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/lmittmann/tint"

	"github.com/polysight-org/polysight/logger"
)

/*
New returns logger for test t on debug level. Output goes through t.Log
so it is shown only for failing tests (or with -v).

Set PS_TEST_LOG_LEVEL to change the level.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, levelFromEnv())
}

// NewLvl returns logger for test t on given level.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(&testLogWriter{t: t}, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.0000",
		NoColor:    noColors(),
	}))
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return logger.Nop()
}

/*
LoggerBuilder returns logger factory func which ignores the configuration
and always returns test logger for t.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) { return New(t), nil }
}

type testLogWriter struct {
	t testing.TB
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func levelFromEnv() slog.Level {
	var lvl slog.Level = slog.LevelDebug
	if s := os.Getenv("PS_TEST_LOG_LEVEL"); s != "" {
		if err := lvl.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelDebug
		}
	}
	return lvl
}

func noColors() bool {
	b, err := strconv.ParseBool(os.Getenv("PS_TEST_LOG_NO_COLORS"))
	return err == nil && b
}
