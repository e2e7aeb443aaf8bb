package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"weibocrawl/pkg/config"
)

// Logger defines the interface for logging operations
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
	WithContext(ctx context.Context) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
	FatalWithFields(msg string, fields map[string]interface{})

	GetZerolog() *zerolog.Logger
}

type zerologLogger struct {
	logger *zerolog.Logger
	fields map[string]interface{}
}

// New creates a Logger from the logging configuration
func New(cfg *config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if !cfg.DisableConsole {
		writers = append(writers, consoleWriter(os.Stderr))
	}
	if cfg.File != "" {
		file, err := openLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to setup file output: %w", err)
		}
		writers = append(writers, file)
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	zlog := zerolog.New(output).With().
		Timestamp().
		Str("app", "weibocrawl").
		Logger()

	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}, nil
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           out,
		TimeFormat:    "15:04:05",
		FieldsExclude: []string{"app"},
		FormatLevel: func(i interface{}) string {
			if i == nil {
				return ""
			}
			switch level := strings.ToUpper(fmt.Sprintf("%s", i)); level {
			case "DEBUG":
				return "\033[37mDEBG\033[0m"
			case "INFO":
				return "\033[32mINFO\033[0m"
			case "WARN":
				return "\033[33mWARN\033[0m"
			case "ERROR":
				return "\033[31mERRO\033[0m"
			case "FATAL":
				return "\033[35mFATL\033[0m"
			default:
				return level
			}
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("| %s", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[36m%s\033[0m:", i)
		},
	}
}

func openLogFile(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func parseLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *zerologLogger) Debug(msg string) { l.emit(l.logger.Debug(), msg, nil) }
func (l *zerologLogger) Info(msg string)  { l.emit(l.logger.Info(), msg, nil) }
func (l *zerologLogger) Warn(msg string)  { l.emit(l.logger.Warn(), msg, nil) }
func (l *zerologLogger) Error(msg string) { l.emit(l.logger.Error(), msg, nil) }

// Fatal logs and exits the process
func (l *zerologLogger) Fatal(msg string) { l.emit(l.logger.Fatal(), msg, nil) }

func (l *zerologLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.emit(l.logger.Debug(), msg, fields)
}

func (l *zerologLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.emit(l.logger.Info(), msg, fields)
}

func (l *zerologLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.emit(l.logger.Warn(), msg, fields)
}

func (l *zerologLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.emit(l.logger.Error(), msg, fields)
}

func (l *zerologLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.emit(l.logger.Fatal(), msg, fields)
}

// WithField returns a child logger carrying one more field
func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger carrying the merged fields
func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologLogger{logger: l.logger, fields: merged}
}

func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *zerologLogger) WithContext(ctx context.Context) Logger {
	ctxLogger := l.logger.With().Ctx(ctx).Logger()
	return &zerologLogger{logger: &ctxLogger, fields: l.fields}
}

func (l *zerologLogger) GetZerolog() *zerolog.Logger {
	return l.logger
}

func (l *zerologLogger) emit(event *zerolog.Event, msg string, fields map[string]interface{}) {
	for key, value := range l.fields {
		event = addFieldToEvent(event, key, value)
	}
	for key, value := range fields {
		event = addFieldToEvent(event, key, value)
	}
	event.Msg(msg)
}

func addFieldToEvent(event *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case float64:
		return event.Float64(key, v)
	case bool:
		return event.Bool(key, v)
	case time.Time:
		return event.Time(key, v)
	case time.Duration:
		return event.Dur(key, v)
	case error:
		return event.AnErr(key, v)
	case []string:
		return event.Strs(key, v)
	default:
		return event.Interface(key, v)
	}
}

var globalLogger Logger

// Initialize sets up the global logger
func Initialize(cfg *config.LoggingConfig) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	globalLogger = logger
	log.Logger = *logger.GetZerolog()
	return nil
}

// GetLogger returns the global logger, creating an info-level one on first use
func GetLogger() Logger {
	if globalLogger == nil {
		globalLogger, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return globalLogger
}

func Debug(msg string) { GetLogger().Debug(msg) }
func Info(msg string)  { GetLogger().Info(msg) }
func Warn(msg string)  { GetLogger().Warn(msg) }
func Error(msg string) { GetLogger().Error(msg) }

func WithField(key string, value interface{}) Logger {
	return GetLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) Logger {
	return GetLogger().WithFields(fields)
}

func WithError(err error) Logger {
	return GetLogger().WithError(err)
}
