package configstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsNilNil(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestDefaultConfigShape(t *testing.T) {
	cfg, err := DefaultConfig("system.test", "h1")
	require.NoError(t, err)

	assert.Equal(t, "system.test.h1", cfg.Client.User)
	assert.Len(t, cfg.Key.Private, passwordLength)
	assert.Contains(t, cfg.Client.Permissions.Subscribe, "system.test.>")
	assert.Contains(t, cfg.Client.Permissions.Publish, "system.test.h1.>")
	assert.NotEqual(t, cfg.Key.Private, cfg.Client.Password)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "system.test")

	cfg, err := DefaultConfig("system.test", "h1")
	require.NoError(t, err)
	cfg.Vbus.URL = "nats://h1:4222"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cfg.Client.User, loaded.Client.User)
	assert.Equal(t, "nats://h1:4222", loaded.Vbus.URL)
	assert.False(t, loaded.ExternalCredentials)
}

func TestSaveLoadExternalCredentialsShape(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "system.test")

	cfg := &Config{ExternalCredentials: true, Vbus: Vbus{URL: "nats://h1:4222", Hostname: "h1"}}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.ExternalCredentials)
	assert.Equal(t, "nats://h1:4222", loaded.Vbus.URL)
	assert.Empty(t, loaded.Client.User)
}
