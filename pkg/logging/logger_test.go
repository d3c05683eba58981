package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	dec := json.NewDecoder(buf)
	for dec.More() {
		var e LogEntry
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	return entries
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", WarnLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", Fields{"k": "v"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "v", entries[0].Fields["k"])
	assert.Equal(t, "test", entries[0].Service)
}

func TestLoggerCarriesRequestIDAndCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.Error(ctx, "[TEST_ERROR] boom", Fields{}, errors.New("kaput"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].RequestID)
	assert.Equal(t, "kaput", entries[0].Error)
	assert.Contains(t, entries[0].File, "logger_test.go")
	assert.Empty(t, entries[0].StackTrace)
}

func TestFatalExitsAfterLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal(context.Background(), "fatal", nil, errors.New("dead"))

	assert.Equal(t, 1, code)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].StackTrace)
}

func TestContextLoggerMergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	child := logger.WithFields(Fields{"component": "reports", "shared": "base"})
	child.Info(context.Background(), "hello", Fields{"shared": "override"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "reports", entries[0].Fields["component"])
	assert.Equal(t, "override", entries[0].Fields["shared"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
