package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "debug", Service: "ecotrack-api"}, &buf)

	logger.Debug().Str("entry_id", "e1").Msg("entry logged")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ecotrack-api", line["service"])
	require.Equal(t, "e1", line["entry_id"])
	require.Equal(t, "debug", line["level"])
	require.Contains(t, line, "time")
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "chatty"}, &buf)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
}

func TestNewWithWriterConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Format: "console"}, &buf)
	logger.Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
