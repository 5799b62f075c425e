package logger_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/andreasstamos/chordify/pkg/logger"
)

func TestRedactHandler(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	r := logger.NewRedactHandler(h)
	l := slog.New(r)

	l.Info("User login", "email", "john.doe@example.com", "password", "secret123")

	out := buf.String()
	if !strings.Contains(out, "[EMAIL]") {
		t.Error("Email not redacted")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("Password not redacted")
	}
	if strings.Contains(out, "john.doe@example.com") {
		t.Error("Original email leaked")
	}
}

func TestSamplingHandler(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	s := logger.NewSamplingHandler(h, 0.0001)
	l := slog.New(s)

	l.Info("Should be dropped")
	if buf.Len() > 0 {
		t.Error("Log should be dropped by sampling")
	}

	l.Error("Should be kept")
	if !strings.Contains(buf.String(), "Should be kept") {
		t.Error("Error level should bypass sampling")
	}
}

func TestAsyncHandler(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	a := logger.NewAsyncHandler(h, 100, true)
	l := slog.New(a)

	start := time.Now()
	l.Info("Async message")
	if time.Since(start) > 10*time.Millisecond {
		t.Error("Async log took too long")
	}

	a.Shutdown()
	if !strings.Contains(buf.String(), "Async message") {
		t.Error("Async message not flushed")
	}
}

func TestRedactHandler_ExtendedKeys(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	r := logger.NewRedactHandler(h)
	l := slog.New(r)

	l.Info("Sensitive data",
		"api_key", "12345-abcde",
		"apikey", "secret-key-value",
		"access_key", "access-key-123",
		"authorization", "Bearer xyz123",
		"cookie", "session_id=abcdef",
		"bearer_token", "token-value",
		"my_secret", "hidden",
	)

	out := buf.String()
	t.Logf("Output: %s", out)

	checks := []struct {
		key      string
		value    string
		redacted bool
	}{
		{"api_key", "12345-abcde", true},
		{"apikey", "secret-key-value", true},
		{"access_key", "access-key-123", true},
		{"authorization", "Bearer xyz123", true},
		{"cookie", "session_id=abcdef", true},
		{"bearer_token", "token-value", true},
		{"my_secret", "hidden", true},
	}

	for _, check := range checks {
		if check.redacted && strings.Contains(out, check.value) {
			t.Errorf("Value for key '%s' was LEAKED: %s", check.key, check.value)
		}
	}

	if !strings.Contains(out, "[REDACTED]") {
		t.Error("No [REDACTED] found in output")
	}
}
