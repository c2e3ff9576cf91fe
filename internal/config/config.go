package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"

	"spendlog/internal/core"
)

type Config struct {
	// HTTP Server
	Port string `env:"PORT" envDefault:"8080"`

	// Backend selection
	DataBackend  string      `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string      `env:"SQLITE_DB_PATH" envDefault:"data/spendlog.db"`
	Mongo        MongoConfig `envPrefix:"MONGO_"`

	// Auth
	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`
	AdminToken    string        `env:"ADMIN_TOKEN"`

	DefaultTimezone string `env:"DEFAULT_TIMEZONE" envDefault:"America/New_York"`

	AMQP   AMQPConfig   `envPrefix:"AMQP_"`
	Google GoogleConfig `envPrefix:"GOOGLE_"`

	// Stats cache
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"2m"`
	CacheSize int           `env:"CACHE_SIZE" envDefault:"500"`

	// Middleware
	RateLimitRPM   int      `env:"RATE_LIMIT_RPM" envDefault:"120"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

type MongoConfig struct {
	URI      string `env:"URI"`
	Database string `env:"DATABASE" envDefault:"spendlog"`
}

// AMQPConfig is optional; an empty URL disables change events.
type AMQPConfig struct {
	URL      string `env:"URL"`
	Exchange string `env:"EXCHANGE" envDefault:"spendlog"`
	Queue    string `env:"QUEUE" envDefault:"spendlog_sheets"`
}

// GoogleConfig points at the spreadsheet expenses are mirrored to and the
// service account allowed to edit it.
type GoogleConfig struct {
	SpreadsheetID      string `env:"SPREADSHEET_ID"`
	SheetName          string `env:"SHEET_NAME" envDefault:"Expenses"`
	ServiceAccountJSON string `env:"SERVICE_ACCOUNT_JSON"`
	ServiceAccountFile string `env:"SERVICE_ACCOUNT_FILE"`
}

var validBackends = []string{"sqlite", "mongo", "memory"}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			errors = append(errors, "MONGO_URI is required when using mongo backend")
		} else if u, err := url.Parse(c.Mongo.URI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errors = append(errors, fmt.Sprintf("invalid MONGO_URI '%s': must use mongodb:// or mongodb+srv://", c.Mongo.URI))
		}
		if c.Mongo.Database == "" {
			errors = append(errors, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	if _, err := core.LoadLocation(c.DefaultTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default timezone '%s'", c.DefaultTimezone))
	}

	if c.AMQP.URL != "" {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings spendlog-worker needs on top of the shared ones.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQP.URL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.Google.SpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.Google.SheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if c.Google.ServiceAccountJSON == "" && c.Google.ServiceAccountFile == "" {
		errors = append(errors, "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE is required for the worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
