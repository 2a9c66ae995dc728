// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Database     DatabaseConfig          `mapstructure:"database"`
	OCR          OCRConfig               `mapstructure:"ocr"`
	Verification VerificationConfig      `mapstructure:"verification"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OCRConfig holds settings for the external extraction model endpoint.
type OCRConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	Timeout         int    `mapstructure:"timeout"`          // milliseconds
	DownloadTimeout int    `mapstructure:"download_timeout"` // milliseconds
	MaxRetries      int    `mapstructure:"max_retries"`
	BackoffInitial  int    `mapstructure:"backoff_initial"` // milliseconds
}

// VerificationConfig holds tunables for the field comparison stage.
type VerificationConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	CacheTTL            int     `mapstructure:"cache_ttl"`     // seconds, extraction cache
	PollInterval        int     `mapstructure:"poll_interval"` // milliseconds, pending-document poll
	BatchSize           int     `mapstructure:"batch_size"`    // documents per poll
}

// WorkerConfig holds the core settings applicable to every pipeline stage.
type WorkerConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
