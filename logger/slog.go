package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

const (
	// LevelTrace is more verbose than debug, used ie to log every message received.
	LevelTrace slog.Level = slog.LevelDebug - 4
	// levelNone disables logging.
	levelNone slog.Level = slog.LevelError + 100
)

/*
LogConfiguration is the logger configuration, loaded from yaml file
and/or command line flags.
*/
type LogConfiguration struct {
	Level        string `yaml:"defaultLevel"`
	Format       string `yaml:"format"`
	OutputPath   string `yaml:"outputPath"`
	TimeFormat   string `yaml:"timeFormat"`
	NodeIDFormat string `yaml:"nodeIdFormat"`
	// when true source file and line of the logging call is added to the output
	ShowSource bool `yaml:"showSource"`

	writer io.Writer // for tests, when set OutputPath is ignored
}

/*
New creates slog.Logger based on configuration. Nil config is interpreted
as "use defaults" (ie console format, DEBUG level, output to stderr).
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	h, err := cfg.Handler()
	if err != nil {
		return nil, fmt.Errorf("creating log handler: %w", err)
	}
	return slog.New(h), nil
}

/*
Handler creates slog.Handler for the configuration.
*/
func (cfg *LogConfiguration) Handler() (slog.Handler, error) {
	out := cfg.writer
	if out == nil {
		var err error
		if out, err = outputWriter(cfg.OutputPath); err != nil {
			return nil, fmt.Errorf("creating log output writer: %w", err)
		}
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			AddSource:   cfg.ShowSource,
			ReplaceAttr: composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatNodeIDAttr(cfg.NodeIDFormat)),
		}), nil
	case "text":
		return slog.NewTextHandler(out, &slog.HandlerOptions{
			Level:       level,
			AddSource:   cfg.ShowSource,
			ReplaceAttr: composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatNodeIDAttr(cfg.NodeIDFormat), formatDataAttrAsJSON),
		}), nil
	case "ecs":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			AddSource:   true,
			ReplaceAttr: composeAttrFmt(formatNodeIDAttr(cfg.NodeIDFormat), formatAttrECS),
		}), nil
	case "console", "":
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = "15:04:05.0000"
		}
		return tint.NewHandler(out, &tint.Options{
			Level:       level,
			AddSource:   cfg.ShowSource,
			TimeFormat:  timeFormat,
			NoColor:     !isTerminal(out),
			ReplaceAttr: composeAttrFmt(formatTimeAttr(noneOrEmpty(cfg.TimeFormat)), formatNodeIDAttr(nodeIDFormat(cfg.NodeIDFormat)), formatDataAttrAsJSON),
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// tint formats the time itself so only the "none" format needs attr rewriting.
func noneOrEmpty(format string) string {
	if format == "none" {
		return format
	}
	return ""
}

// console output uses short node ID unless configured otherwise
func nodeIDFormat(format string) string {
	if format == "" {
		return "short"
	}
	return format
}

func parseLevel(level string) (slog.Leveler, error) {
	switch strings.ToLower(level) {
	case "":
		return slog.LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	case "none":
		return levelNone, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

func outputWriter(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard":
		return io.Discard, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory for log file: %w", err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 file descriptor fits into int
}

/*
NewRoundHandler returns handler which adds current round number
(as returned by "curRound") to every log record.
*/
func NewRoundHandler(h slog.Handler, curRound func() uint64) slog.Handler {
	return &roundHandler{inner: h, round: curRound}
}

type roundHandler struct {
	inner slog.Handler
	round func() uint64
}

func (h *roundHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *roundHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Round(h.round()))
	return h.inner.Handle(ctx, r)
}

func (h *roundHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &roundHandler{inner: h.inner.WithAttrs(attrs), round: h.round}
}

func (h *roundHandler) WithGroup(name string) slog.Handler {
	return &roundHandler{inner: h.inner.WithGroup(name), round: h.round}
}

// Nop returns logger which discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelNone}))
}

// Duration logs time elapsed since "start" in milliseconds.
func Duration(start time.Time) slog.Attr {
	return slog.Int64("duration_ms", time.Since(start).Milliseconds())
}
