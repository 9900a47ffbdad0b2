package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Geo       GeoConfig       `yaml:"geo"`
	Presence  PresenceConfig  `yaml:"presence"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Decay     DecayConfig     `yaml:"decay"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	CORS      CORSConfig      `yaml:"cors"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"`
	BasePath        string        `yaml:"base_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// GetDSN returns the connection string handed to the postgres driver.
func (c DatabaseConfig) GetDSN() string {
	return c.URL
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	ServiceURL     string        `yaml:"service_url"`
	JWTSecret      string        `yaml:"jwt_secret"`
	InternalAPIKey string        `yaml:"internal_api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

type GeoConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	BreakerFailures  uint32        `yaml:"breaker_failures"`
	BreakerOpenFor   time.Duration `yaml:"breaker_open_for"`
	BreakerHalfOpens uint32        `yaml:"breaker_half_open_requests"`
}

type PresenceConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

type JobsConfig struct {
	Enabled       bool           `yaml:"enabled"`
	RunTimeout    time.Duration  `yaml:"run_timeout"`
	Inactivity    ScanJobConfig  `yaml:"inactivity"`
	StaleScore    ScanJobConfig  `yaml:"stale_score"`
	Decay         ScheduleConfig `yaml:"decay"`
	PresenceSweep ScheduleConfig `yaml:"presence_sweep"`
}

type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

type ScanJobConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Schedule  string        `yaml:"schedule"`
	Threshold time.Duration `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
	BatchSize int           `yaml:"batch_size"`
}

type DecayConfig struct {
	PatternHalfLife       time.Duration `yaml:"pattern_half_life"`
	MemoryHalfLife        time.Duration `yaml:"memory_half_life"`
	PatternFloor          float64       `yaml:"pattern_floor"`
	PatternFlagThreshold  float64       `yaml:"pattern_flag_threshold"`
	MemoryDeleteThreshold float64       `yaml:"memory_delete_threshold"`
	BatchSize             int           `yaml:"batch_size"`
}

type EventsConfig struct {
	// Driver selects the event bus: "redis", "nats" or "none".
	Driver        string `yaml:"driver"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type TelemetryConfig struct {
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8010",
			Mode:            "debug",
			BasePath:        "/api",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logger: LoggerConfig{Level: "info"},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Auth: AuthConfig{
			Timeout: 5 * time.Second,
		},
		Geo: GeoConfig{
			Enabled:          true,
			BaseURL:          "http://ip-api.com/json",
			Timeout:          3 * time.Second,
			CacheTTL:         24 * time.Hour,
			BreakerFailures:  5,
			BreakerOpenFor:   time.Minute,
			BreakerHalfOpens: 1,
		},
		Presence: PresenceConfig{
			StaleAfter: 5 * time.Minute,
		},
		Jobs: JobsConfig{
			Enabled:    true,
			RunTimeout: 30 * time.Minute,
			Inactivity: ScanJobConfig{
				Enabled:   true,
				Schedule:  "0 0 13 * * *",
				Threshold: 7 * 24 * time.Hour,
				Cooldown:  14 * 24 * time.Hour,
				BatchSize: 500,
			},
			StaleScore: ScanJobConfig{
				Enabled:   true,
				Schedule:  "0 30 13 * * 1",
				Threshold: 30 * 24 * time.Hour,
				Cooldown:  7 * 24 * time.Hour,
				BatchSize: 500,
			},
			Decay: ScheduleConfig{
				Enabled:  true,
				Schedule: "0 0 3 * * *",
			},
			PresenceSweep: ScheduleConfig{
				Enabled:  true,
				Schedule: "0 */5 * * * *",
			},
		},
		Decay: DecayConfig{
			PatternHalfLife:       30 * 24 * time.Hour,
			MemoryHalfLife:        90 * 24 * time.Hour,
			PatternFloor:          0.1,
			PatternFlagThreshold:  0.3,
			MemoryDeleteThreshold: 0.05,
			BatchSize:             500,
		},
		Events: EventsConfig{
			Driver:        "redis",
			SubjectPrefix: "tributalks",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "presence-service",
			SampleRatio: 0.1,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		cfg.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			cfg.Redis.Port = p
		}
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if apiKey := os.Getenv("INTERNAL_API_KEY"); apiKey != "" {
		cfg.Auth.InternalAPIKey = apiKey
	}
	if geoURL := os.Getenv("GEO_BASE_URL"); geoURL != "" {
		cfg.Geo.BaseURL = geoURL
	}
	if geoEnabled := os.Getenv("GEO_ENABLED"); geoEnabled != "" {
		if b, err := strconv.ParseBool(geoEnabled); err == nil {
			cfg.Geo.Enabled = b
		}
	}
	if jobsEnabled := os.Getenv("JOBS_ENABLED"); jobsEnabled != "" {
		if b, err := strconv.ParseBool(jobsEnabled); err == nil {
			cfg.Jobs.Enabled = b
		}
	}
	if driver := os.Getenv("EVENTS_DRIVER"); driver != "" {
		cfg.Events.Driver = driver
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.Events.NATSURL = natsURL
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.OTLPEndpoint = endpoint
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
