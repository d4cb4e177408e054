package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecgview/internal/config"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := config.LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("ECGVIEW_SERVER__PORT", "8088")
	t.Setenv("ECGVIEW_SERVER__READ_TIMEOUT", "5s")
	t.Setenv("ECGVIEW_RENDER__LAYOUT", "strip")
	t.Setenv("ECGVIEW_CACHE__MAX_ENTRIES", "3")

	cfg, err := config.LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "strip", cfg.Render.Layout)
	assert.Equal(t, 3, cfg.Cache.MaxEntries)
	// untouched values keep their defaults
	assert.Equal(t, config.Default().Server.WriteTimeout, cfg.Server.WriteTimeout)
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecgview.yaml")
	yml := `
primary:
  env: staging
render:
  layout: strip
  width: 1000
cache:
  driver: none
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("ECGVIEW_RENDER__WIDTH", "1200")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Primary.Env)
	assert.Equal(t, "strip", cfg.Render.Layout)
	assert.Equal(t, 1200, cfg.Render.Width, "env wins over file")
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown layout", map[string]string{"ECGVIEW_RENDER__LAYOUT": "spiral"}},
		{"redis without url", map[string]string{"ECGVIEW_CACHE__DRIVER": "redis"}},
		{"tls without files", map[string]string{"ECGVIEW_SERVER__TLS__ENABLED": "true"}},
		{"non numeric port", map[string]string{"ECGVIEW_SERVER__PORT": "http"}},
		{"bad log level", map[string]string{"ECGVIEW_LOG__LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadFile("")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_SelfSignedTLSNeedsNoFiles(t *testing.T) {
	t.Setenv("ECGVIEW_SERVER__TLS__ENABLED", "true")
	t.Setenv("ECGVIEW_SERVER__TLS__SELF_SIGNED", "true")

	cfg, err := config.LoadFile("")
	require.NoError(t, err)
	assert.True(t, cfg.Server.TLS.SelfSigned)
}
