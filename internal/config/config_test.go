package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfigFile(t, `
[transport]
initial_window_size = 1048576
max_frame_size = 32768

[logging]
log_level = "DEBUG"
target = "stdout"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Transport)
	require.NotNil(t, cfg.Transport.InitialWindowSize)
	assert.Equal(t, uint32(1048576), *cfg.Transport.InitialWindowSize)
	require.NotNil(t, cfg.Transport.MaxFrameSize)
	assert.Equal(t, uint32(32768), *cfg.Transport.MaxFrameSize)
	assert.Nil(t, cfg.Transport.HeaderTableSize, "unset settings stay nil")
	assert.Equal(t, LogLevelDebug, cfg.Logging.LogLevel)
	assert.Equal(t, "stdout", cfg.Logging.Target)
}

func TestLoadEmptyConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Transport)
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, LogLevelInfo, cfg.Logging.LogLevel)
	assert.Equal(t, "stderr", cfg.Logging.Target)
	assert.Nil(t, cfg.Transport.MaxFrameSize)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
[transport]
max_frmae_size = 32768
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateMaxFrameSizeRange(t *testing.T) {
	tooSmall := uint32(16383)
	tooLarge := uint32(1 << 24)
	boundary := uint32(16384)

	cfg := Default()
	cfg.Transport.MaxFrameSize = &tooSmall
	assert.Error(t, cfg.Validate())

	cfg.Transport.MaxFrameSize = &tooLarge
	assert.Error(t, cfg.Validate())

	cfg.Transport.MaxFrameSize = &boundary
	assert.NoError(t, cfg.Validate())
}

func TestValidateInitialWindowSizeBound(t *testing.T) {
	tooLarge := uint32(1 << 31)
	boundary := uint32(1<<31 - 1)

	cfg := Default()
	cfg.Transport.InitialWindowSize = &tooLarge
	assert.Error(t, cfg.Validate())

	cfg.Transport.InitialWindowSize = &boundary
	assert.NoError(t, cfg.Validate())
}

func TestValidateLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.LogLevel = "TRACE"
	assert.Error(t, cfg.Validate())

	cfg.Logging.LogLevel = LogLevelWarning
	cfg.Logging.Target = "relative/path.log"
	assert.Error(t, cfg.Validate())

	cfg.Logging.Target = "/var/log/h2mux.log"
	assert.NoError(t, cfg.Validate())
}
