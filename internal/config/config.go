// Package config provides configuration management for the document
// translation service. Settings are loaded from a JSON file with
// environment-variable overrides for credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"doc-translator/internal/logger"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "doc-translator-config.json"
	// EnvOpenAIAPIKey is the environment variable name for the OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for the OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvTickSecret is the environment variable name for the tick endpoint secret
	EnvTickSecret = "DOCTRANS_TICK_SECRET"
	// EnvDatabaseDSN is the environment variable name for the database DSN
	EnvDatabaseDSN = "DOCTRANS_DB_DSN"
	// EnvRedisAddr is the environment variable name for the redis address
	EnvRedisAddr = "DOCTRANS_REDIS_ADDR"

	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default model used for translation
	DefaultModel = "gpt-4o-mini"
	// DefaultListenAddr is the default HTTP listen address
	DefaultListenAddr = ":8080"
	// DefaultDatabaseDSN is the default sqlite database file
	DefaultDatabaseDSN = "doc-translator.db"
	// DefaultMaxChunkChars is the default per-chunk character ceiling.
	// Stays well under the provider request-size limit.
	DefaultMaxChunkChars = 20000
	// DefaultMaxRetries is the default per-chunk retry ceiling
	DefaultMaxRetries = 3
	// DefaultMaxUploadBytes is the default upload size cap (50 MB)
	DefaultMaxUploadBytes = 50 * 1024 * 1024
)

// Config holds all service settings.
type Config struct {
	ListenAddr     string `json:"listen_addr"`
	TickSecret     string `json:"tick_secret"`
	DatabaseDSN    string `json:"database_dsn"`
	RedisAddr      string `json:"redis_addr"`
	StorageRoot    string `json:"storage_root"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	OpenAIBaseURL  string `json:"openai_base_url"`
	OpenAIModel    string `json:"openai_model"`
	DocumentAPIURL string `json:"document_api_url"`
	DocumentAPIKey string `json:"document_api_key"`
	MaxChunkChars  int    `json:"max_chunk_chars"`
	MaxRetries     int    `json:"max_retries"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

// Manager loads and persists service configuration.
type Manager struct {
	configPath string
	config     *Config
}

// NewManager creates a Manager for the given config path. If configPath is
// empty the default path under the user config directory is used.
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".config", "doc-translator", DefaultConfigFileName)
	}

	return &Manager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		DatabaseDSN:    DefaultDatabaseDSN,
		StorageRoot:    "data",
		OpenAIBaseURL:  DefaultBaseURL,
		OpenAIModel:    DefaultModel,
		MaxChunkChars:  DefaultMaxChunkChars,
		MaxRetries:     DefaultMaxRetries,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// Load reads the config file, falling back to defaults when it is missing or
// malformed. Environment variables override file values where set.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		cfg := defaultConfig()
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			m.config = cfg
		}
	}

	m.applyDefaults()
	m.applyEnvOverrides()
	return nil
}

func (m *Manager) applyDefaults() {
	if m.config.ListenAddr == "" {
		m.config.ListenAddr = DefaultListenAddr
	}
	if m.config.DatabaseDSN == "" {
		m.config.DatabaseDSN = DefaultDatabaseDSN
	}
	if m.config.StorageRoot == "" {
		m.config.StorageRoot = "data"
	}
	if m.config.OpenAIBaseURL == "" {
		m.config.OpenAIBaseURL = DefaultBaseURL
	}
	if m.config.OpenAIModel == "" {
		m.config.OpenAIModel = DefaultModel
	}
	if m.config.MaxChunkChars <= 0 {
		m.config.MaxChunkChars = DefaultMaxChunkChars
	}
	if m.config.MaxRetries <= 0 {
		m.config.MaxRetries = DefaultMaxRetries
	}
	if m.config.MaxUploadBytes <= 0 {
		m.config.MaxUploadBytes = DefaultMaxUploadBytes
	}
}

func (m *Manager) applyEnvOverrides() {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		m.config.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		m.config.OpenAIBaseURL = v
	}
	if v := os.Getenv(EnvTickSecret); v != "" {
		m.config.TickSecret = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		m.config.DatabaseDSN = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		m.config.RedisAddr = v
	}
}

// Save writes the current configuration to the config file.
func (m *Manager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}
