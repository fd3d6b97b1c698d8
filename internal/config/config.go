package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendStudio = "studio"
	BackendMeta   = "meta"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	VerifyToken               string
	WhatsAppToken             string
	WhatsAppBusinessAccountID string
	MetaAppID                 string
	GraphAPIVersion           string
	GraphAPIURL               string

	StudioAPIURL       string
	StudioBackend      string
	PollInterval       time.Duration
	SessionIdleTimeout time.Duration
	HTTPTimeout        time.Duration

	LogLevel       string
	LogDevelopment bool
	GinMode        string
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"DB_DRIVER":            DriverSQLite,
	"DB_PATH":              "./template_studio.db",
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "",
	"DB_NAME":              "template_studio",
	"DB_SSLMODE":           "disable",
	"VERIFY_TOKEN":         "",
	"WHATSAPP_TOKEN":       "",
	"WABA_ID":              "",
	"META_APP_ID":          "",
	"GRAPH_API_VERSION":    "v19.0",
	"GRAPH_API_URL":        "https://graph.facebook.com",
	"STUDIO_API_URL":       "http://localhost:8000",
	"STUDIO_BACKEND":       BackendStudio,
	"POLL_INTERVAL":        "10s",
	"SESSION_IDLE_TIMEOUT": "2h",
	"HTTP_TIMEOUT":         "60s",
	"LOG_LEVEL":            "info",
	"LOG_DEVELOPMENT":      false,
	"GIN_MODE":             "release",
}

// LoadConfig reads envFile (or .env when empty) and the process environment.
// A missing env file is not an error.
func LoadConfig(envFile string) (*Config, error) {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	cfg, loadErr := FromViper(newViper())
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil && envFile != "" {
		return cfg, fmt.Errorf("load %s: %w", envFile, err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                      v.GetString("PORT"),
		DBDriver:                  strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:                    v.GetString("DB_PATH"),
		DBHost:                    v.GetString("DB_HOST"),
		DBPort:                    v.GetString("DB_PORT"),
		DBUser:                    v.GetString("DB_USER"),
		DBPassword:                v.GetString("DB_PASSWORD"),
		DBName:                    v.GetString("DB_NAME"),
		DBSSLMode:                 v.GetString("DB_SSLMODE"),
		VerifyToken:               v.GetString("VERIFY_TOKEN"),
		WhatsAppToken:             v.GetString("WHATSAPP_TOKEN"),
		WhatsAppBusinessAccountID: v.GetString("WABA_ID"),
		MetaAppID:                 v.GetString("META_APP_ID"),
		GraphAPIVersion:           v.GetString("GRAPH_API_VERSION"),
		GraphAPIURL:               strings.TrimRight(v.GetString("GRAPH_API_URL"), "/"),
		StudioAPIURL:              strings.TrimRight(v.GetString("STUDIO_API_URL"), "/"),
		StudioBackend:             strings.ToLower(v.GetString("STUDIO_BACKEND")),
		PollInterval:              v.GetDuration("POLL_INTERVAL"),
		SessionIdleTimeout:        v.GetDuration("SESSION_IDLE_TIMEOUT"),
		HTTPTimeout:               v.GetDuration("HTTP_TIMEOUT"),
		LogLevel:                  v.GetString("LOG_LEVEL"),
		LogDevelopment:            v.GetBool("LOG_DEVELOPMENT"),
		GinMode:                   v.GetString("GIN_MODE"),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	switch c.StudioBackend {
	case BackendStudio, BackendMeta:
	default:
		return fmt.Errorf("STUDIO_BACKEND must be %q or %q, got %q", BackendStudio, BackendMeta, c.StudioBackend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %s", c.SessionIdleTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

// PostgresDSN is the connection string used when DBDriver is postgres.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// GraphURL joins path onto the versioned Graph API base.
func (c *Config) GraphURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.GraphAPIURL, c.GraphAPIVersion, strings.TrimLeft(path, "/"))
}
