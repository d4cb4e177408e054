package logger_test

import (
	"bytes"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecgview/internal/config"
	"ecgview/internal/logger"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("lead", "DII").Msg("parsed")

	var entry map[string]interface{}
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "parsed", entry["message"])
	assert.Equal(t, "DII", entry["lead"])
	assert.Equal(t, "ecgview", entry["service"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("rendering chart")
	assert.Contains(t, buf.String(), "rendering chart")
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	_, err := logger.NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestConsole_QuietUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	quiet := logger.Console(&buf, false)
	quiet.Info().Msg("chatty")
	assert.Empty(t, buf.String())

	verbose := logger.Console(&buf, true)
	verbose.Info().Msg("chatty")
	assert.Contains(t, buf.String(), "chatty")
}
