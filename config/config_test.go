package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TEST_TUYA_KEY", "secret-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tuya:
  access_id: my-access-id
  access_key: ${TEST_TUYA_KEY}
  base_url: https://openapi.tuyaeu.com
  device_id: dev1
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "my-access-id", cfg.Tuya.AccessID)
	assert.Equal(t, "secret-from-env", cfg.Tuya.AccessKey)
	assert.Equal(t, "https://openapi.tuyaeu.com", cfg.Tuya.BaseURL)
	assert.Equal(t, "dev1", cfg.Tuya.DeviceID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "default applied")
	assert.Equal(t, "us", cfg.Tuya.Region, "default applied")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFromEnv_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "TUYA_ACCESS_ID=env-id\nTUYA_ACCESS_KEY=env-key\nTUYA_BASE_URL=https://openapi.tuyain.com\nDEVICE_ID=dev42\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv.Load does not override variables already set in the
	// process, so clear them for the duration of the test.
	t.Setenv("TUYA_ACCESS_ID", "")
	os.Unsetenv("TUYA_ACCESS_ID")
	t.Setenv("TUYA_ACCESS_KEY", "")
	os.Unsetenv("TUYA_ACCESS_KEY")
	t.Setenv("TUYA_BASE_URL", "")
	os.Unsetenv("TUYA_BASE_URL")
	t.Setenv("DEVICE_ID", "")
	os.Unsetenv("DEVICE_ID")

	cfg, err := FromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Tuya.AccessID)
	assert.Equal(t, "env-key", cfg.Tuya.AccessKey)
	assert.Equal(t, "https://openapi.tuyain.com", cfg.Tuya.BaseURL)
	assert.Equal(t, "dev42", cfg.Tuya.DeviceID)
}

func TestFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("TUYA_ACCESS_ID", "")
	os.Unsetenv("TUYA_ACCESS_ID")
	t.Setenv("TUYA_ACCESS_KEY", "")
	os.Unsetenv("TUYA_ACCESS_KEY")

	_, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFromEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv("TUYA_ACCESS_ID", "proc-id")
	t.Setenv("TUYA_ACCESS_KEY", "proc-key")

	cfg, err := FromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "proc-id", cfg.Tuya.AccessID)
	assert.Equal(t, "proc-key", cfg.Tuya.AccessKey)
}
