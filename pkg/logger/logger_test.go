package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e621dl/pkg/config"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"empty level", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "e621dl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				_, statErr := os.Stat(tt.cfg.File)
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	search := base.WithField("search", "cats")
	search.WithFields(map[string]interface{}{"post_id": 42}).Info("downloaded")
	base.Info("unrelated")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "cats", lines[0]["search"])
	assert.Equal(t, float64(42), lines[0]["post_id"])
	assert.NotContains(t, lines[1], "search", "parent logger must not inherit child fields")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithError(errors.New("disk full")).Error("write failed")
	assert.Same(t, l, l.WithError(nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "disk full", lines[0]["error"])
	assert.Equal(t, "error", lines[0]["level"])
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithField("component", "downloader").WarnWithFields("resume", map[string]interface{}{
		"offset": int64(1024),
		"tags":   []string{"cat", "dog"},
		"ok":     true,
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "downloader", lines[0]["component"])
	assert.Equal(t, float64(1024), lines[0]["offset"])
	assert.Equal(t, []interface{}{"cat", "dog"}, lines[0]["tags"])
	assert.Equal(t, true, lines[0]["ok"])
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())
}

func TestTestLogger(t *testing.T) {
	l := NewTestLogger()
	child := l.WithField("search", "dogs")

	child.Warn("tag does not exist")
	l.Info("starting")

	assert.True(t, l.HasMessage("does not exist"))
	assert.Len(t, l.GetMessagesByLevel("WARN"), 1)
	assert.Equal(t, "dogs", l.GetMessagesByLevel("WARN")[0].Fields["search"])
	assert.Contains(t, l.String(), "[INFO] starting")

	l.Clear()
	assert.Empty(t, l.GetMessages())
}
