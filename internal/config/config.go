package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Log Log `yaml:"log"`

	AI struct {
		Provider string        `yaml:"provider"`
		Timeout  time.Duration `yaml:"timeout"`
		Retry    struct {
			MaxAttempts    int           `yaml:"maxAttempts"`
			InitialBackoff time.Duration `yaml:"initialBackoff"`
			MaxBackoff     time.Duration `yaml:"maxBackoff"`
		} `yaml:"retry"`
		Gemini struct {
			APIKey      string  `yaml:"apiKey"`
			Model       string  `yaml:"model"`
			ImageModel  string  `yaml:"imageModel"`
			Temperature float32 `yaml:"temperature"`
		} `yaml:"gemini"`
		OpenAI struct {
			APIKey     string `yaml:"apiKey"`
			BaseURL    string `yaml:"baseURL"`
			Model      string `yaml:"model"`
			ImageModel string `yaml:"imageModel"`
		} `yaml:"openai"`
	} `yaml:"ai"`

	Media struct {
		MaxBytes int64 `yaml:"maxBytes"`
	} `yaml:"media"`

	// Minio is optional; without an endpoint camera frames can only be uploaded.
	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"minio"`

	Catalog struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Database struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Name     string `yaml:"name"`
		} `yaml:"database"`
	} `yaml:"catalog"`

	Controller struct {
		MaxFindings  int `yaml:"maxFindings"`
		MaxCampaigns int `yaml:"maxCampaigns"`
		MaxSessions  int `yaml:"maxSessions"`
	} `yaml:"controller"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Load baca file config.yaml. File yang tidak ada bukan error: default + env.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, analysis.Wrap(analysis.ErrConfiguration, "read config", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, analysis.Wrap(analysis.ErrConfiguration, "parse config", err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return &cfg, nil
}

// secrets dari env menang atas file
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.AI.Gemini.APIKey, "GEMINI_API_KEY", "API_KEY")
	set(&c.AI.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.AI.Provider, "AI_PROVIDER")
	set(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	set(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	set(&c.Catalog.DSN, "CATALOG_DSN")
	set(&c.Log.Level, "LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	// must outlive a full retry cycle of one analysis
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 3 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderGemini
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 45 * time.Second
	}
	c.Catalog.Driver = strings.ToLower(strings.TrimSpace(c.Catalog.Driver))
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = DriverMemory
	}
	if c.Controller.MaxFindings == 0 {
		c.Controller.MaxFindings = 200
	}
	if c.Controller.MaxCampaigns == 0 {
		c.Controller.MaxCampaigns = 50
	}
	if c.Controller.MaxSessions == 0 {
		c.Controller.MaxSessions = 1000
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 2
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 5
	}
}

// Validate reports problems that must abort start.
func (c *Config) Validate() error {
	var problems []string
	switch c.AI.Provider {
	case ProviderGemini:
		if c.AI.Gemini.APIKey == "" {
			problems = append(problems, "GEMINI_API_KEY (or API_KEY) is not set")
		}
	case ProviderOpenAI:
		if c.AI.OpenAI.APIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is not set")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown ai.provider %q", c.AI.Provider))
	}
	switch c.Catalog.Driver {
	case DriverMemory:
	case DriverMySQL, DriverPostgres:
		if c.CatalogDSN() == "" {
			problems = append(problems, fmt.Sprintf("catalog.driver %s needs catalog.dsn or catalog.database", c.Catalog.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown catalog.driver %q", c.Catalog.Driver))
	}
	if c.Minio.Endpoint != "" && c.Minio.BucketName == "" {
		problems = append(problems, "minio.bucketName is required when minio.endpoint is set")
	}
	if c.AI.Retry.MaxAttempts < 0 {
		problems = append(problems, "ai.retry.maxAttempts must not be negative")
	}
	if len(problems) > 0 {
		return analysis.Errorf(analysis.ErrConfiguration, "validate config", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// CatalogDSN returns catalog.dsn, or builds one from catalog.database.
func (c *Config) CatalogDSN() string {
	if c.Catalog.DSN != "" {
		return c.Catalog.DSN
	}
	db := c.Catalog.Database
	if db.Host == "" || db.Name == "" {
		return ""
	}
	switch c.Catalog.Driver {
	case DriverMySQL:
		return c.MySQLDSN()
	case DriverPostgres:
		port := db.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			db.Host, port, db.User, db.Password, db.Name)
	}
	return ""
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	db := c.Catalog.Database
	port := db.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		db.User,
		db.Password,
		db.Host,
		port,
		db.Name,
	)
}

// ObjectStoreEnabled reports whether camera frames can be fetched by key.
func (c *Config) ObjectStoreEnabled() bool { return c.Minio.Endpoint != "" }
