// Package config loads ontosearch configuration from defaults, the user
// config file, the project file and ONTOSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/ontosearch/internal/index"
)

// ProjectFile is the name of the per-project configuration file.
const ProjectFile = ".ontosearch.yaml"

// Config represents the complete ontosearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// IndexConfig configures index storage and content.
type IndexConfig struct {
	// Dir is where on-disk indexes are kept. "memory" keeps indexes in memory.
	Dir string `yaml:"dir" json:"dir"`

	// BatchSize is the number of items written per batch during rebuilds.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Categories are the active search categories.
	Categories []string `yaml:"categories" json:"categories"`
}

// SearchConfig configures query execution.
type SearchConfig struct {
	// PageSize is the number of hits fetched between cancellation checks.
	PageSize int `yaml:"page_size" json:"page_size"`

	// QueueSize bounds the worker's job queue.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// QueryCacheSize is the number of compiled query batches kept.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`

	// Timeout bounds synchronous searches, as a Go duration string.
	Timeout string `yaml:"timeout" json:"timeout"`

	// MaxResults caps the results printed by the CLI and MCP tools.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
}

// MemoryDir is the Index.Dir value that keeps indexes in memory.
const MemoryDir = "memory"

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Dir:        defaultIndexDir(),
			BatchSize:  index.DefaultBatchSize,
			Categories: index.AllCategories().Names(),
		},
		Search: SearchConfig{
			PageSize:       100,
			QueueSize:      64,
			QueryCacheSize: 128,
			Timeout:        "30s",
			MaxResults:     50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Transport: "stdio",
		},
	}
}

// defaultIndexDir returns ~/.ontosearch/indexes.
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ontosearch", "indexes")
	}
	return filepath.Join(home, ".ontosearch", "indexes")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/ontosearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ontosearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ontosearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ontosearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "ontosearch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project in dir. Sources are applied in
// order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/ontosearch/config.yaml)
//  3. Project config (.ontosearch.yaml in dir)
//  4. Environment variables (ONTOSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectFile); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges configuration from a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Dir != "" {
		c.Index.Dir = expandHome(other.Index.Dir)
	}
	if other.Index.BatchSize != 0 {
		c.Index.BatchSize = other.Index.BatchSize
	}
	if len(other.Index.Categories) > 0 {
		c.Index.Categories = other.Index.Categories
	}

	if other.Search.PageSize != 0 {
		c.Search.PageSize = other.Search.PageSize
	}
	if other.Search.QueueSize != 0 {
		c.Search.QueueSize = other.Search.QueueSize
	}
	if other.Search.QueryCacheSize != 0 {
		c.Search.QueryCacheSize = other.Search.QueryCacheSize
	}
	if other.Search.Timeout != "" {
		c.Search.Timeout = other.Search.Timeout
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
}

// applyEnvOverrides applies ONTOSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ONTOSEARCH_INDEX_DIR"); v != "" {
		c.Index.Dir = expandHome(v)
	}
	if v := os.Getenv("ONTOSEARCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.BatchSize = n
		}
	}
	if v := os.Getenv("ONTOSEARCH_CATEGORIES"); v != "" {
		c.Index.Categories = splitList(v)
	}
	if v := os.Getenv("ONTOSEARCH_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.PageSize = n
		}
	}
	if v := os.Getenv("ONTOSEARCH_SEARCH_TIMEOUT"); v != "" {
		c.Search.Timeout = v
	}
	if v := os.Getenv("ONTOSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ONTOSEARCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return fmt.Errorf("index.dir must not be empty")
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if _, err := c.CategorySet(); err != nil {
		return fmt.Errorf("index.categories: %w", err)
	}

	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.Search.QueueSize <= 0 {
		return fmt.Errorf("search.queue_size must be positive, got %d", c.Search.QueueSize)
	}
	if c.Search.QueryCacheSize <= 0 {
		return fmt.Errorf("search.query_cache_size must be positive, got %d", c.Search.QueryCacheSize)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if _, err := c.SearchTimeout(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	return nil
}

// CategorySet parses the configured categories.
func (c *Config) CategorySet() (index.CategorySet, error) {
	set, err := index.ParseCategories(c.Index.Categories)
	if err != nil {
		return index.CategorySet{}, err
	}
	if set.IsEmpty() {
		return index.CategorySet{}, fmt.Errorf("at least one category is required")
	}
	return set, nil
}

// SearchTimeout parses the configured search timeout.
func (c *Config) SearchTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Search.Timeout)
	if err != nil {
		return 0, fmt.Errorf("search.timeout is not a duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("search.timeout must be positive, got %s", c.Search.Timeout)
	}
	return d, nil
}

// IndexRoot returns the directory for on-disk indexes, or "" when indexes
// are kept in memory.
func (c *Config) IndexRoot() string {
	if strings.EqualFold(c.Index.Dir, MemoryDir) {
		return ""
	}
	return c.Index.Dir
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
