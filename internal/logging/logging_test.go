package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ParseLevel(tt.in).Level())
		})
	}
}

func TestNewWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn")

	logger.Info("skipped")
	logger.Warn("module skipped", zap.String("path", "bad.json"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "module skipped", entry["msg"])
	require.Equal(t, "bad.json", entry["path"])
	require.Contains(t, entry, "timestamp")
}

func TestNew(t *testing.T) {
	logger, err := New("debug")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	require.Same(t, l, OrNop(l))
}
