package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "internal", "app", "enrich", "enricher.go")
	assert.Equal(t, filepath.Join("enrich", "enricher.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestConfig_Console(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"stdout", Config{Output: "stdout"}, true},
		{"default", Config{}, true},
		{"stderr", Config{Output: "STDERR"}, true},
		{"stdout json", Config{Output: "stdout", JSON: true}, false},
		{"stderr json", Config{Output: "stderr", JSON: true}, false},
		{"file", Config{Output: "/var/log/replaybox.log"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.console())
		})
	}
}

func TestBuild_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, zerolog.InfoLevel, false)
	l.Info().Msg("catalog enrichment disabled")
	assert.Contains(t, buf.String(), `"message":"catalog enrichment disabled"`)

	buf.Reset()
	l = build(&buf, zerolog.InfoLevel, true)
	l.Info().Msg("catalog enrichment disabled")
	assert.Contains(t, buf.String(), "catalog enrichment disabled")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestInit_FileOutputIsJSON(t *testing.T) {
	prev, prevLevel := zlog.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "run.log")
	closer, err := Init(Config{Output: path, Level: "info"})
	require.NoError(t, err)

	zlog.Info().Msg("snapshot written")
	zlog.Debug().Msg("suppressed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"snapshot written"`)
	assert.Contains(t, string(data), `"level":"info"`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestInit_UnwritableFile(t *testing.T) {
	_, err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "run.log")})
	assert.Error(t, err)
}
