// Package config loads modelseed configuration from environment
// variables with an optional YAML overlay file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Store directories
	DataDir      string `yaml:"data_dir"`
	RawDir       string `yaml:"raw_dir"`
	EnrichedDir  string `yaml:"enriched_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	MappedDir    string `yaml:"mapped_dir"`
	ArchiveDir   string `yaml:"archive_dir"`
	ReportsDir   string `yaml:"reports_dir"`
	SourceDir    string `yaml:"source_dir"`

	// Tag mapping
	TagMapFile     string `yaml:"tag_map_file"`
	AutoCreateTags bool   `yaml:"auto_create_tags"`
	DropUnresolved bool   `yaml:"drop_unresolved_tags"`

	// Upstream sources
	OllamaHost string `yaml:"ollama_host"`
	HubAPIURL  string `yaml:"hub_api_url"`
	HubAPIKey  string `yaml:"hub_api_key"`

	// Destination catalog API
	CatalogAPIURL string        `yaml:"catalog_api_url"`
	CatalogAPIKey string        `yaml:"catalog_api_key"`
	APITimeout    time.Duration `yaml:"api_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	// Model mapping
	PlaceholderURL string `yaml:"placeholder_url"`

	// Default component type per stage kind
	ExtractorType   string `yaml:"extractor_type"`
	EnricherType    string `yaml:"enricher_type"`
	TagMapperType   string `yaml:"tag_mapper_type"`
	ModelMapperType string `yaml:"model_mapper_type"`
	SeederType      string `yaml:"seeder_type"`
	ArchiverType    string `yaml:"archiver_type"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables.
// Defaults keep a no-env invocation working against local directories
// and a local Ollama server.
func Load() Config {
	dataDir := getEnv("MODELSEED_DATA_DIR", "./data")
	return Config{
		DataDir:      dataDir,
		RawDir:       getEnv("RAW_DATA_DIR", filepath.Join(dataDir, "raw")),
		EnrichedDir:  getEnv("ENRICHED_DATA_DIR", filepath.Join(dataDir, "enriched")),
		ProcessedDir: getEnv("PROCESSED_DATA_DIR", filepath.Join(dataDir, "processed")),
		MappedDir:    getEnv("MAPPED_DATA_DIR", filepath.Join(dataDir, "mapped")),
		ArchiveDir:   getEnv("ARCHIVE_DIR", filepath.Join(dataDir, "archive")),
		ReportsDir:   getEnv("REPORTS_DIR", filepath.Join(dataDir, "reports")),
		SourceDir:    getEnv("SOURCE_DATA_DIR", filepath.Join(dataDir, "source")),

		TagMapFile:     getEnv("TAG_MAP_FILE", filepath.Join(dataDir, "tagmap.json")),
		AutoCreateTags: parseBool(getEnv("AUTO_CREATE_TAGS", "false")),
		DropUnresolved: parseBool(getEnv("DROP_UNRESOLVED_TAGS", "false")),

		OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),
		HubAPIURL:  getEnv("HUB_API_URL", "https://huggingface.co/api"),
		HubAPIKey:  getEnv("HUB_API_KEY", ""),

		CatalogAPIURL: getEnv("CATALOG_API_URL", "http://localhost:8000/api"),
		CatalogAPIKey: getEnv("CATALOG_API_KEY", ""),
		APITimeout:    parseDuration(getEnv("API_TIMEOUT", "30s"), 30*time.Second),
		RetryAttempts: parseInt(getEnv("API_RETRY_ATTEMPTS", "3"), 3),
		RetryBackoff:  parseDuration(getEnv("RETRY_BACKOFF", "2s"), 2*time.Second),

		PlaceholderURL: getEnv("PLACEHOLDER_URL", "https://example.com/placeholder"),

		ExtractorType:   getEnv("DEFAULT_EXTRACTOR_TYPE", "ollama"),
		EnricherType:    getEnv("DEFAULT_ENRICHER_TYPE", "metadata"),
		TagMapperType:   getEnv("DEFAULT_TAG_MAPPER_TYPE", "simple"),
		ModelMapperType: getEnv("DEFAULT_MODEL_MAPPER_TYPE", "standard"),
		SeederType:      getEnv("DEFAULT_SEEDER_TYPE", "api"),
		ArchiverType:    getEnv("DEFAULT_ARCHIVER_TYPE", "metadata"),

		LogFile:  getEnv("MODELSEED_LOG_FILE", filepath.Join("logs", "modelseed.log")),
		LogLevel: parseLogLevel(getEnv("MODELSEED_LOG_LEVEL", "INFO")),
	}
}

// ApplyFile overlays values from a YAML file over the current config.
// Zero values in the file leave the existing configuration untouched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.merge(&overlay)
	return nil
}

func (c *Config) merge(src *Config) {
	strs := []struct {
		dst *string
		src string
	}{
		{&c.DataDir, src.DataDir},
		{&c.RawDir, src.RawDir},
		{&c.EnrichedDir, src.EnrichedDir},
		{&c.ProcessedDir, src.ProcessedDir},
		{&c.MappedDir, src.MappedDir},
		{&c.ArchiveDir, src.ArchiveDir},
		{&c.ReportsDir, src.ReportsDir},
		{&c.SourceDir, src.SourceDir},
		{&c.TagMapFile, src.TagMapFile},
		{&c.OllamaHost, src.OllamaHost},
		{&c.HubAPIURL, src.HubAPIURL},
		{&c.HubAPIKey, src.HubAPIKey},
		{&c.CatalogAPIURL, src.CatalogAPIURL},
		{&c.CatalogAPIKey, src.CatalogAPIKey},
		{&c.PlaceholderURL, src.PlaceholderURL},
		{&c.ExtractorType, src.ExtractorType},
		{&c.EnricherType, src.EnricherType},
		{&c.TagMapperType, src.TagMapperType},
		{&c.ModelMapperType, src.ModelMapperType},
		{&c.SeederType, src.SeederType},
		{&c.ArchiverType, src.ArchiverType},
		{&c.LogFile, src.LogFile},
	}
	for _, s := range strs {
		if s.src != "" {
			*s.dst = s.src
		}
	}
	if src.AutoCreateTags {
		c.AutoCreateTags = true
	}
	if src.DropUnresolved {
		c.DropUnresolved = true
	}
	if src.APITimeout != 0 {
		c.APITimeout = src.APITimeout
	}
	if src.RetryAttempts != 0 {
		c.RetryAttempts = src.RetryAttempts
	}
	if src.RetryBackoff != 0 {
		c.RetryBackoff = src.RetryBackoff
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}

func parseInt(value string, defaultVal int) int {
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func parseDuration(value string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	// Bare integers are taken as seconds.
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
