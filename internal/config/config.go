// Package config loads the service configuration from environment variables.
// Defaults are applied for unset values and everything is validated on
// startup so that a misconfigured deployment fails fast.
package config

import (
	"time"

	"github.com/sievert/ingreso/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Roster   RosterConfig
	Mail     MailConfig
	Session  SessionConfig
	Archive  ArchiveConfig
	Geo      GeoConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight imports (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// MigrateOnStart applies pending migrations before serving (default: true)
	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" default:"true"`

	// PersistTimeout bounds the submission transaction (default: 30s)
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" default:"30s"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted roster file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// BatchSize is the number of users copied per CopyFrom chunk (default: 1000)
	BatchSize int `env:"UPLOAD_BATCH_SIZE" default:"1000"`
}

// ImportConfig bounds concurrent roster imports.
type ImportConfig struct {
	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import and submit endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api with the X-API-Key header (default: false)
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info" oneof:"debug info warn error"`
	Format string `env:"LOG_FORMAT" default:"text" oneof:"text json"`
}

// RosterConfig selects the roster import and validation policy.
type RosterConfig struct {
	Duplicates     string   `env:"ROSTER_DUPLICATE_POLICY" default:"strict" oneof:"strict relaxed"`
	Locations      string   `env:"ROSTER_LOCATION_MODE" default:"joined" oneof:"joined exploded"`
	BlankLocation  string   `env:"ROSTER_BLANK_LOCATION" default:"allow" oneof:"allow reject"`
	ClientRequired []string `env:"CLIENT_REQUIRED_FIELDS" default:"razon_social,nit,email,responsable"`
	Collision      string   `env:"FACILITY_NAME_COLLISION" default:"reject" oneof:"reject merge"`
}

// MailConfig holds the SMTP relay settings. Mail is disabled when Host is empty.
type MailConfig struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" default:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	TLSPolicy string `env:"SMTP_TLS_POLICY" default:"opportunistic" oneof:"mandatory opportunistic none"`

	From       string   `env:"MAIL_FROM" default:"ingreso@localhost"`
	InternalTo []string `env:"MAIL_INTERNAL_TO"`

	// PolicyAttachment is attached to welcome e-mails when the file exists
	PolicyAttachment string `env:"MAIL_POLICY_ATTACHMENT"`

	// PortalURL is quoted in the welcome e-mail
	PortalURL string `env:"MAIL_PORTAL_URL"`

	Timeout time.Duration `env:"MAIL_TIMEOUT" default:"20s"`
}

// Enabled reports whether an SMTP relay is configured.
func (c *MailConfig) Enabled() bool { return c.Host != "" }

// SessionConfig selects where onboarding sessions live between requests.
type SessionConfig struct {
	Store      string        `env:"SESSION_STORE" default:"memory" oneof:"memory redis"`
	TTL        time.Duration `env:"SESSION_TTL" default:"24h"`
	MaxEntries int           `env:"SESSION_MAX_ENTRIES" default:"1000"`
	RedisURL   string        `env:"REDIS_URL"`
	KeyPrefix  string        `env:"SESSION_KEY_PREFIX" default:"ingreso:session:"`
}

// ArchiveConfig holds the S3 snapshot archive settings. Archiving is
// disabled when Bucket is empty.
type ArchiveConfig struct {
	Bucket      string        `env:"ARCHIVE_BUCKET"`
	Prefix      string        `env:"ARCHIVE_PREFIX" default:"snapshots"`
	KMSKeyID    string        `env:"ARCHIVE_KMS_KEY_ID"`
	EndpointURL string        `env:"ARCHIVE_ENDPOINT_URL" envAlt:"AWS_ENDPOINT_URL"`
	Timeout     time.Duration `env:"ARCHIVE_TIMEOUT" default:"15s"`
}

// Enabled reports whether snapshots are archived.
func (c *ArchiveConfig) Enabled() bool { return c.Bucket != "" }

// GeoConfig points at the department/municipality list.
type GeoConfig struct {
	// CitiesFile is a ';'-separated CSV; the built-in list is used when empty or unreadable
	CitiesFile string `env:"GEO_CITIES_FILE"`
}

// Policy builds the core roster policy from the configuration.
func (c *RosterConfig) Policy() core.Policy {
	return core.Policy{
		Duplicates:           core.DuplicatePolicy(c.Duplicates),
		Locations:            core.LocationMode(c.Locations),
		BlankLocation:        core.BlankLocationPolicy(c.BlankLocation),
		ClientRequiredFields: c.ClientRequired,
		FacilityCollision:    core.CollisionPolicy(c.Collision),
	}
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
