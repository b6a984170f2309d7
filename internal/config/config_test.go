package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ontosearch/internal/index"
)

// isolate points the user config at an empty temp dir and clears the
// ONTOSEARCH_* environment.
func isolate(t *testing.T) string {
	t.Helper()
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	for _, k := range []string{
		"ONTOSEARCH_INDEX_DIR", "ONTOSEARCH_BATCH_SIZE", "ONTOSEARCH_CATEGORIES",
		"ONTOSEARCH_PAGE_SIZE", "ONTOSEARCH_SEARCH_TIMEOUT", "ONTOSEARCH_LOG_LEVEL",
		"ONTOSEARCH_TRANSPORT",
	} {
		t.Setenv(k, "")
	}
	return configDir
}

func writeUserConfig(t *testing.T, configDir, content string) {
	t.Helper()
	dir := filepath.Join(configDir, "ontosearch")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, index.DefaultBatchSize, cfg.Index.BatchSize)
	assert.Equal(t, []string{"display_name", "identifier", "annotation_value", "filtered_annotation"}, cfg.Index.Categories)
	assert.Equal(t, 100, cfg.Search.PageSize)
	assert.Equal(t, 64, cfg.Search.QueueSize)
	assert.Equal(t, 128, cfg.Search.QueryCacheSize)
	assert.Equal(t, "30s", cfg.Search.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectFile_OverridesDefaults(t *testing.T) {
	// Given: a project config with custom search settings
	isolate(t)
	projectDir := t.TempDir()
	content := `
version: 1
index:
  categories: [display_name, identifier]
search:
  page_size: 10
  timeout: 5s
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectFile), []byte(content), 0o644))

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: overridden values apply and the rest keep defaults
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.PageSize)
	assert.Equal(t, 64, cfg.Search.QueueSize)
	set, err := cfg.CategorySet()
	require.NoError(t, err)
	assert.Equal(t, "display_name,identifier", set.String())
	timeout, err := cfg.SearchTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	// Given: both user and project configs exist
	configDir := isolate(t)
	projectDir := t.TempDir()
	writeUserConfig(t, configDir, "search:\n  page_size: 20\n  queue_size: 8\n")
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectFile),
		[]byte("search:\n  page_size: 30\n"), 0o644))

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: project config takes precedence
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Search.PageSize)
	// And: user config's queue size is still used
	assert.Equal(t, 8, cfg.Search.QueueSize)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	configDir := isolate(t)
	projectDir := t.TempDir()
	writeUserConfig(t, configDir, "logging:\n  level: warn\n")
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectFile),
		[]byte("logging:\n  level: error\n"), 0o644))
	t.Setenv("ONTOSEARCH_LOG_LEVEL", "debug")
	t.Setenv("ONTOSEARCH_CATEGORIES", "identifier, display_name")
	t.Setenv("ONTOSEARCH_INDEX_DIR", "memory")

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"identifier", "display_name"}, cfg.Index.Categories)
	assert.Empty(t, cfg.IndexRoot())
}

func TestLoad_EnvVarInvalidNumber_IsIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("ONTOSEARCH_PAGE_SIZE", "lots")
	t.Setenv("ONTOSEARCH_BATCH_SIZE", "-3")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Search.PageSize)
	assert.Equal(t, index.DefaultBatchSize, cfg.Index.BatchSize)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolate(t)
	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectFile),
		[]byte("search: [unclosed"), 0o644))

	_, err := Load(projectDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := isolate(t)
	writeUserConfig(t, configDir, "search:\n  page_size: not-a-number\n")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load user config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty dir", func(c *Config) { c.Index.Dir = "" }, "index.dir"},
		{"zero batch", func(c *Config) { c.Index.BatchSize = 0 }, "index.batch_size"},
		{"unknown category", func(c *Config) { c.Index.Categories = []string{"colour"} }, "index.categories"},
		{"no categories", func(c *Config) { c.Index.Categories = nil }, "at least one category"},
		{"zero page", func(c *Config) { c.Search.PageSize = 0 }, "search.page_size"},
		{"zero queue", func(c *Config) { c.Search.QueueSize = 0 }, "search.queue_size"},
		{"zero cache", func(c *Config) { c.Search.QueryCacheSize = 0 }, "search.query_cache_size"},
		{"negative max", func(c *Config) { c.Search.MaxResults = -1 }, "search.max_results"},
		{"bad timeout", func(c *Config) { c.Search.Timeout = "soon" }, "search.timeout"},
		{"negative timeout", func(c *Config) { c.Search.Timeout = "-1s" }, "search.timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"upper level", func(c *Config) { c.Logging.Level = "DEBUG" }, ""},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }, "server.transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	assert.Equal(t, filepath.Join(configDir, "ontosearch", "config.yaml"), GetUserConfigPath())
	assert.False(t, UserConfigExists())

	writeUserConfig(t, configDir, "version: 1\n")
	assert.True(t, UserConfigExists())
}

func TestGetUserConfigPath_DefaultsToHomeConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config", "ontosearch", "config.yaml"), GetUserConfigPath())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	// Given: a customised config written to disk
	isolate(t)
	projectDir := t.TempDir()
	cfg := NewConfig()
	cfg.Index.Dir = MemoryDir
	cfg.Search.PageSize = 7
	require.NoError(t, cfg.WriteYAML(filepath.Join(projectDir, ProjectFile)))

	// When: loading it back
	loaded, err := Load(projectDir)

	// Then: the values survive
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "indexes"), expandHome("~/indexes"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
}
