package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for pdfqa.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir" validate:"required"`
	UploadBufferBytes int    `yaml:"upload_buffer_bytes" validate:"gt=0"`
}

// ChunkingConfig holds the character window used to split page text.
type ChunkingConfig struct {
	Size    int `yaml:"size" validate:"gt=0"`
	Overlap int `yaml:"overlap" validate:"gte=0,ltfield=Size"`
}

// IndexConfig holds vector index build configuration.
type IndexConfig struct {
	MinChunkChars int `yaml:"min_chunk_chars" validate:"gte=0"`
	BatchSize     int `yaml:"batch_size" validate:"gt=0"`
}

// RetrieveConfig holds search configuration.
type RetrieveConfig struct {
	TopK      int           `yaml:"top_k" validate:"gt=0"`
	CacheSize int           `yaml:"cache_size"` // Query embedding cache entries (0 = default)
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" validate:"oneof=ollama openai gemini hash"`
	Model     string        `yaml:"model" validate:"required"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key (empty = provider default)
	Dimension int           `yaml:"dimension" validate:"gte=0"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LLMConfig holds generative model configuration.
type LLMConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=gemini openai deepseek local"`
	Model       string        `yaml:"model" validate:"required"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"` // empty = provider default
	Temperature float32       `yaml:"temperature" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	Workers        int           `yaml:"workers" validate:"gt=0"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" validate:"gt=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:           "data",
			UploadBufferBytes: 1024 * 1024,
		},
		Chunking: ChunkingConfig{
			Size:    1200,
			Overlap: 200,
		},
		Index: IndexConfig{
			MinChunkChars: 30,
			BatchSize:     64,
		},
		Retrieve: RetrieveConfig{
			TopK:      5,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			BaseURL:   "http://localhost:11434/v1",
			Dimension: 384,
			Timeout:   60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
			Timeout:     90 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			Workers:        4,
			MaxUploadBytes: 256 * 1024 * 1024,
			ReadTimeout:    2 * time.Minute,
			WriteTimeout:   5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for pdfqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "pdfqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".pdfqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadEnv loads .env.local and .env from dir into the process environment.
// Variables that are already set are not overridden; missing files are skipped.
func LoadEnv(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ChunkDBPath returns the path to the chunk database.
func (c *Config) ChunkDBPath() string {
	return filepath.Join(c.Storage.DataDir, "chunks.db")
}

// UploadDir returns the directory holding uploaded PDFs.
func (c *Config) UploadDir() string {
	return filepath.Join(c.Storage.DataDir, "uploads")
}

// IndexDir returns the directory holding per-document index artifacts.
func (c *Config) IndexDir() string {
	return filepath.Join(c.Storage.DataDir, "index")
}

// EnsureDataDirs ensures the upload and index directories exist.
func (c *Config) EnsureDataDirs() error {
	for _, dir := range []string{c.UploadDir(), c.IndexDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
