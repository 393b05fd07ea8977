package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Proxy: ProxyConfig{
			ListenHost:   "127.0.0.1",
			ListenPort:   4000,
			ServerHost:   "mume.org",
			ServerPort:   4242,
			DialAttempts: 5,
			DialBackoff:  500 * time.Millisecond,
			WriteTimeout: 30 * time.Second,
		},
		Mapper: MapperConfig{
			MapFile:            "data/map.yaml",
			CommandPrefix:      "_",
			AutoLink:           true,
			AutoMerge:          true,
			AutoUpdate:         true,
			TentativeLookahead: 3,
			StepTimeout:        10 * time.Second,
			MaxSearchResults:   20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestProxyAddrs(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "127.0.0.1:4000", cfg.Proxy.ListenAddr())
	assert.Equal(t, "mume.org:4242", cfg.Proxy.ServerAddr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
proxy:
  listen_host: 127.0.0.1
  listen_port: 4001
  server_host: localhost
  server_port: 4242
mapper:
  map_file: testdata/map.yaml
  command_prefix: "_"
  tentative_lookahead: 2
  step_timeout: 5s
logging:
  level: debug
  format: console
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4001, cfg.Proxy.ListenPort)
	assert.Equal(t, "localhost", cfg.Proxy.ServerHost)
	assert.Equal(t, "testdata/map.yaml", cfg.Mapper.MapFile)
	assert.Equal(t, 2, cfg.Mapper.TentativeLookahead)
	assert.Equal(t, 5*time.Second, cfg.Mapper.StepTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Proxy.ListenPort)
	assert.Equal(t, "mume.org", cfg.Proxy.ServerHost)
	assert.Equal(t, "_", cfg.Mapper.CommandPrefix)
	assert.Equal(t, 3, cfg.Mapper.TentativeLookahead)
	assert.False(t, cfg.Mapper.AutoMap)
	assert.True(t, cfg.Mapper.AutoLink)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateListenPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.Proxy.ListenPort = port
		assert.Error(t, cfg.Validate(), "port %d should be invalid", port)
	}
}

func TestValidateServerHostEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Proxy.ServerHost = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateMapFileEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Mapper.MapFile = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateCommandPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.Mapper.CommandPrefix = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Mapper.CommandPrefix = "a b"
	assert.Error(t, cfg.Validate())
}

func TestValidateLookahead(t *testing.T) {
	cfg := validConfig()
	cfg.Mapper.TentativeLookahead = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateStepTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Mapper.StepTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateLogging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Logging.Format = "text"
	assert.Error(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Proxy.ListenPort = 0
	cfg.Mapper.MapFile = ""
	cfg.Logging.Level = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_port")
	assert.Contains(t, err.Error(), "map_file")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidPortsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.Proxy.ListenPort = rapid.IntRange(1, 65535).Draw(t, "listen")
		cfg.Proxy.ServerPort = rapid.IntRange(1, 65535).Draw(t, "server")
		assert.NoError(t, cfg.Validate())
	})
}
