package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.), security settings
// - default: Values common across all environments (timeouts, grid sizes, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Token      TokenConfig
	Provider   ProviderConfig
	CalDAV     CalDAVConfig
	Scheduling SchedulingConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

// TokenConfig signs the per-booking manage tokens returned by create and
// required by cancel/reschedule.
type TokenConfig struct {
	Secret   string        `envconfig:"TOKEN_SECRET" required:"true"`
	Duration time.Duration `envconfig:"TOKEN_DURATION" default:"720h"`
}

// ProviderConfig points at the external staff/schedule directory.
type ProviderConfig struct {
	BaseURL string        `envconfig:"PROVIDER_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"PROVIDER_API_KEY" default:""`
	Timeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
}

// CalDAVConfig describes the external calendar server. CollectionURL is a
// template expanded per staff member ("%d" receives the staff id).
type CalDAVConfig struct {
	CollectionURL string        `envconfig:"CALDAV_COLLECTION_URL" required:"true"`
	Username      string        `envconfig:"CALDAV_USERNAME" default:""`
	Password      string        `envconfig:"CALDAV_PASSWORD" default:""`
	Timeout       time.Duration `envconfig:"CALDAV_TIMEOUT" default:"15s"`
}

// SchedulingConfig is read once at startup and handed to the availability
// engine as an explicit policy value on every call.
type SchedulingConfig struct {
	// HoursMode: off | restrict | override (see schedule.EnforcementMode).
	HoursMode string `envconfig:"SCHED_HOURS_MODE" default:"restrict"`
	// BusinessHours is a weekly template "Mon=09:00-17:00;Tue=09:00-17:00" in
	// the business timezone. Empty means no global hours are configured.
	BusinessHours string `envconfig:"SCHED_BUSINESS_HOURS" default:""`
	// BusinessTimeZone is the IANA zone business hours are expressed in.
	BusinessTimeZone string        `envconfig:"SCHED_BUSINESS_TZ" default:"UTC"`
	GridStep         time.Duration `envconfig:"SCHED_GRID_STEP" default:"15m"`
	LeadTime         time.Duration `envconfig:"SCHED_LEAD_TIME" default:"60m"`
	Horizon          time.Duration `envconfig:"SCHED_HORIZON" default:"168h"`
	CacheTTL         time.Duration `envconfig:"SCHED_CACHE_TTL" default:"5m"`
	GroupBookings    bool          `envconfig:"SCHED_GROUP_BOOKINGS" default:"false"`
	// FallbackToGlobalHours keeps availability alive under "restrict" when a
	// staff schedule and the global hours do not intersect at all.
	FallbackToGlobalHours bool `envconfig:"SCHED_FALLBACK_TO_GLOBAL" default:"false"`
	// DeferConfirmation creates bookings as pending instead of confirmed.
	DeferConfirmation bool `envconfig:"SCHED_DEFER_CONFIRMATION" default:"false"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		Token: TokenConfig{
			Secret:   "test-secret",
			Duration: time.Hour,
		},
		Scheduling: SchedulingConfig{
			HoursMode:        "restrict",
			BusinessTimeZone: "UTC",
			GridStep:         15 * time.Minute,
			LeadTime:         time.Hour,
			Horizon:          7 * 24 * time.Hour,
			CacheTTL:         5 * time.Minute,
		},
	}
}
