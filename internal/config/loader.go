package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadRoster reads only the roster policy section. Offline tools use it
// to apply the same policy as the server without a database.
func LoadRoster() (*RosterConfig, error) {
	rc := &RosterConfig{}
	if err := loadStruct(reflect.ValueOf(rc).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return rc, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if allowed := field.Tag.Get("oneof"); allowed != "" {
			value = strings.ToLower(strings.TrimSpace(value))
			if !inList(strings.Fields(allowed), value) {
				return fmt.Errorf("invalid value for %s=%q: must be one of: %s",
					envName, value, strings.Join(strings.Fields(allowed), ", "))
			}
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

func inList(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// clientFieldKeys are the accepted CLIENT_REQUIRED_FIELDS entries.
var clientFieldKeys = []string{
	"razon_social", "nit", "email", "telefono", "responsable",
	"cargo", "direccion", "departamento", "municipio",
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.PersistTimeout <= 0 {
		errs = append(errs, "PERSIST_TIMEOUT must be positive")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload and import
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.BatchSize <= 0 {
		errs = append(errs, "UPLOAD_BATCH_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	// Rate limit
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ImportLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
	}

	// Security
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Roster policy
	if len(c.Roster.ClientRequired) == 0 {
		errs = append(errs, "CLIENT_REQUIRED_FIELDS must name at least one field")
	}
	for _, f := range c.Roster.ClientRequired {
		if !inList(clientFieldKeys, f) {
			errs = append(errs, fmt.Sprintf("CLIENT_REQUIRED_FIELDS: unknown field %q", f))
		}
	}

	// Mail
	if c.Mail.Enabled() {
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			errs = append(errs, fmt.Sprintf("SMTP_PORT (%d) must be 1-65535", c.Mail.Port))
		}
		if len(c.Mail.InternalTo) == 0 {
			errs = append(errs, "MAIL_INTERNAL_TO is required when SMTP_HOST is set")
		}
		if c.Mail.Timeout <= 0 {
			errs = append(errs, "MAIL_TIMEOUT must be positive")
		}
	}

	// Session
	if c.Session.TTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.Session.Store == "memory" && c.Session.MaxEntries <= 0 {
		errs = append(errs, "SESSION_MAX_ENTRIES must be positive")
	}
	if c.Session.Store == "redis" {
		if c.Session.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required when SESSION_STORE=redis")
		} else if _, err := url.Parse(c.Session.RedisURL); err != nil {
			errs = append(errs, fmt.Sprintf("REDIS_URL is not a valid URL: %v", err))
		}
	}

	// Archive
	if c.Archive.Enabled() && c.Archive.Timeout <= 0 {
		errs = append(errs, "ARCHIVE_TIMEOUT must be positive")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Database URLs, passwords and keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, BatchSize: %d}, ",
		c.Upload.MaxFileSize, c.Upload.BatchSize))
	b.WriteString(fmt.Sprintf("Import: {MaxConcurrent: %d, MaxWaitTime: %s}, ",
		c.Import.MaxConcurrent, c.Import.MaxWaitTime))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Roster: {Duplicates: %q, Locations: %q, BlankLocation: %q, Collision: %q}, ",
		c.Roster.Duplicates, c.Roster.Locations, c.Roster.BlankLocation, c.Roster.Collision))
	b.WriteString(fmt.Sprintf("Mail: {Host: %q, Port: %d, Username: %q, Password: %s}, ",
		c.Mail.Host, c.Mail.Port, c.Mail.Username, mask(c.Mail.Password)))
	b.WriteString(fmt.Sprintf("Session: {Store: %q, TTL: %s, RedisURL: %s}, ",
		c.Session.Store, c.Session.TTL, mask(c.Session.RedisURL)))
	b.WriteString(fmt.Sprintf("Archive: {Bucket: %q, Prefix: %q}, ", c.Archive.Bucket, c.Archive.Prefix))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
