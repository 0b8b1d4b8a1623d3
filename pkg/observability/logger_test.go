package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fresh-schedules/apiframework/pkg/contextkeys"
)

type logLine struct {
	Level     string `json:"level"`
	Message   string `json:"msg"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Error     string `json:"error"`
	Route     string `json:"route"`
}

func decodeLine(t *testing.T, buf *bytes.Buffer) logLine {
	t.Helper()
	var line logLine
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Failed to unmarshal log entry %q: %v", buf.String(), err)
	}
	return line
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		line := decodeLine(t, &buf)
		if line.Level != "INFO" {
			t.Errorf("Expected level INFO, got %s", line.Level)
		}
		if line.Message != "info message" {
			t.Errorf("Expected message 'info message', got %s", line.Message)
		}
	})

	t.Run("formatted warn", func(t *testing.T) {
		buf.Reset()
		logger.Warnf("limit %d reached", 5)
		line := decodeLine(t, &buf)
		if line.Message != "limit 5 reached" {
			t.Errorf("unexpected message %q", line.Message)
		}
	})
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithRequestID("req-1").
		WithError(errors.New("boom")).
		WithFields(map[string]interface{}{"route": "shifts.create"}).
		Error("failed")

	line := decodeLine(t, &buf)
	if line.RequestID != "req-1" {
		t.Errorf("request_id = %q", line.RequestID)
	}
	if line.Error != "boom" {
		t.Errorf("error = %q", line.Error)
	}
	if line.Route != "shifts.create" {
		t.Errorf("route = %q", line.Route)
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-7")
	ctx = contextkeys.WithUserID(ctx, "u-1")

	FromContext(ctx).Info("hello")

	line := decodeLine(t, &buf)
	if line.RequestID != "req-7" || line.UserID != "u-1" {
		t.Errorf("unexpected line %+v", line)
	}
}

func TestPanicError(t *testing.T) {
	if PanicError(nil) != nil {
		t.Error("nil recover should give nil error")
	}
	sentinel := errors.New("bad")
	if err := PanicError(sentinel); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
	if err := PanicError("oops"); err == nil || err.Error() != "panic: oops" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "cleanup")
		panic("kaboom")
	}()

	if !bytes.Contains(buf.Bytes(), []byte("kaboom")) {
		t.Errorf("panic not logged: %s", buf.String())
	}
}
