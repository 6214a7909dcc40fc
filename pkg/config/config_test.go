package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
admin:
  key: thaiday
store:
  path: /tmp/orders.json
redis:
  addr: localhost:6379
  ttl: 30s
etcd:
  endpoints: ["localhost:2379"]
  advertise_host: orders.internal
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "thaiday", cfg.Admin.Key)
	assert.Equal(t, "/tmp/orders.json", cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "preorder:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 5*time.Second, cfg.Writer.RequestTimeout)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Etcd.Enabled())
	assert.Equal(t, "orders.internal", cfg.Etcd.AdvertiseHost)
	assert.False(t, cfg.MongoDB.Enabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
admin:
  key: from-file
`)
	t.Setenv("PREORDER_ADMIN_KEY", "from-env")
	t.Setenv("PREORDER_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Key)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_WithoutFile(t *testing.T) {
	t.Setenv("PREORDER_ADMIN_KEY", "k")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "orders.json", cfg.Store.Path)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
}

func TestLoad_MissingAdminKey(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 5000\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "admin.key")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 70000},
		Admin:  AdminConfig{Key: "k"},
		Store:  StoreConfig{Path: "orders.json"},
		Writer: WriterConfig{RequestTimeout: time.Second},
	}
	assert.ErrorContains(t, cfg.Validate(), "server.port")
}
