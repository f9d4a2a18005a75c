package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kochj23/SceneFixer/internal/infrastructure/config"
)

// serviceName is attached to every log record.
const serviceName = "scenefixer"

// Logger wraps slog.Logger with SceneFixer default fields and
// per-component levels.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	// root rebuilds the handler when a component overrides the level.
	root *rootConfig
}

type rootConfig struct {
	w       io.Writer
	cfg     config.LoggingConfig
	version string
}

// New creates a Logger writing to the configured output.
//
// Parameters:
//   - cfg: level, format ("json" by default, or "text"), output ("stdout"
//     or "stderr") and optional per-component levels
//   - version: build version attached to every record
//
// Returns:
//   - *Logger: logger carrying service and version attributes
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter is New with an explicit destination. Tests use it to capture output.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	root := &rootConfig{w: w, cfg: cfg, version: version}
	return &Logger{Logger: root.logger(cfg.Level), root: root}
}

func (r *rootConfig) logger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(r.cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(r.w, opts)
	default:
		handler = slog.NewJSONHandler(r.w, opts)
	}

	return slog.New(handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", r.version),
	}))
}

// parseLevel converts a string log level to slog.Level.
// Unrecognised levels fall back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
//	proberLog := logger.With("sweep", "toggle_all")
//	proberLog.Info("sweep started") // Includes sweep=toggle_all
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		root:   l.root,
	}
}

// Component returns a logger tagged component=name. When
// logging.components sets a level for name, the component logs at that
// level and drops attributes added with With on l.
//
//	logging:
//	  level: info
//	  components:
//	    prober: debug
func (l *Logger) Component(name string) *Logger {
	if l.root != nil {
		if level, ok := l.root.cfg.Components[name]; ok {
			return &Logger{
				Logger: l.root.logger(level).With("component", name),
				root:   l.root,
			}
		}
	}
	return l.With("component", name)
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
