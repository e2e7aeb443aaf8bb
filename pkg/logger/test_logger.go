package logger

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage is one entry captured by TestLogger
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

type capture struct {
	mu       sync.Mutex
	messages []LogMessage
}

// TestLogger records every message so tests can assert on what was logged.
// Children created with WithField/WithError share the parent's capture.
type TestLogger struct {
	sink   *capture
	fields map[string]interface{}
	err    error
}

// NewTestLogger creates an empty capturing logger
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &capture{}}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.messages = append(l.sink.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  merged,
		Error:   l.err,
	})
}

func (l *TestLogger) child(fields map[string]interface{}, err error) *TestLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{sink: l.sink, fields: merged, err: err}
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.record("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.record("FATAL", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.child(map[string]interface{}{key: value}, l.err)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.child(fields, l.err)
}

func (l *TestLogger) WithError(err error) Logger {
	return l.child(nil, err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger { return l }

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

// GetMessages returns a copy of everything captured so far
func (l *TestLogger) GetMessages() []LogMessage {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]LogMessage, len(l.sink.messages))
	copy(out, l.sink.messages)
	return out
}

// GetMessagesByLevel filters captured messages by level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// HasMessage reports whether any captured message contains text
func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.GetMessages() {
		if strings.Contains(m.Message, text) {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at ERROR
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("ERROR")) > 0
}

// Clear drops all captured messages
func (l *TestLogger) Clear() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.messages = nil
}
