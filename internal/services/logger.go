package services

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel maps LOG_LEVEL values; anything unknown is INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ProductionLogger writes structured entries through zerolog.
type ProductionLogger struct {
	logger zerolog.Logger
}

// NewProductionLogger creates a JSON logger on stdout at INFO.
func NewProductionLogger(service string) *ProductionLogger {
	return NewProductionLoggerWithWriter(service, os.Stdout, LogLevelInfo, true)
}

// NewProductionLoggerWithWriter lets callers pick output, level and format.
// structured=false switches to zerolog's human-readable console writer.
func NewProductionLoggerWithWriter(service string, out io.Writer, level LogLevel, structured bool) *ProductionLogger {
	if !structured {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(out).
		Level(level.zerolog()).
		With().
		Timestamp().
		Str("service", service).
		Logger()
	return &ProductionLogger{logger: l}
}

func (p *ProductionLogger) Info(msg string, keysAndValues ...interface{}) {
	p.logger.Info().Fields(fields(keysAndValues)).Msg(msg)
}

func (p *ProductionLogger) Error(msg string, keysAndValues ...interface{}) {
	p.logger.Error().Fields(fields(keysAndValues)).Msg(msg)
}

func (p *ProductionLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.logger.Debug().Fields(fields(keysAndValues)).Msg(msg)
}

func (p *ProductionLogger) Warn(msg string, keysAndValues ...interface{}) {
	p.logger.Warn().Fields(fields(keysAndValues)).Msg(msg)
}

// fields turns key/value pairs into a map; a trailing key without value is dropped.
func fields(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) < 2 {
		return nil
	}
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr && err != nil {
			out[key] = err.Error()
			continue
		}
		out[key] = keysAndValues[i+1]
	}
	return out
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}

// Environment-based logger factory
func NewLogger(service string) Logger {
	env := os.Getenv("GO_ENV")
	if env == "test" {
		return &NoOpLogger{}
	}
	return NewProductionLoggerWithWriter(service, os.Stdout, ParseLogLevel(os.Getenv("LOG_LEVEL")), env == "production")
}
