package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Socket     SocketConfig     `yaml:"socket"`
	Occupancy  OccupancyConfig  `yaml:"occupancy"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
	Layout     []FloorLayout    `yaml:"layout"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// SocketConfig holds the line-protocol listener configuration.
type SocketConfig struct {
	ListenAddr          string        `yaml:"listen_addr"`
	MaxLineBytes        int           `yaml:"max_line_bytes"`
	SendBuffer          int           `yaml:"send_buffer"`
	WriteTimeoutSeconds int           `yaml:"write_timeout_seconds"`
	WriteTimeout        time.Duration `yaml:"-"`
	MessagesPerSec      float64       `yaml:"messages_per_sec"`
	MessageBurst        int           `yaml:"message_burst"`
}

// OccupancyConfig holds the seat policy values.
type OccupancyConfig struct {
	SessionLengthMinutes int           `yaml:"session_length_minutes"`
	AwayAllowanceMinutes int           `yaml:"away_allowance_minutes"`
	AwayThresholdMinutes int           `yaml:"away_threshold_minutes"`
	SessionLength        time.Duration `yaml:"-"`
	AwayAllowance        time.Duration `yaml:"-"`
	AwayThreshold        time.Duration `yaml:"-"`
}

// SweeperConfig holds the expiry sweeper configuration.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// MQTTConfig holds the sensor bridge configuration.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FloorLayout describes the seats of one floor. Zones is empty for floors
// without zones; SeatsPerZone seats numbered from 1 exist in each zone.
type FloorLayout struct {
	Floor        int      `yaml:"floor"`
	Zones        []string `yaml:"zones"`
	SeatsPerZone int      `yaml:"seats_per_zone"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values and computes derived durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Socket.ListenAddr == "" {
		cfg.Socket.ListenAddr = ":5050"
	}
	if cfg.Socket.MaxLineBytes <= 0 {
		cfg.Socket.MaxLineBytes = 64 * 1024
	}
	if cfg.Socket.SendBuffer <= 0 {
		cfg.Socket.SendBuffer = 64
	}
	if cfg.Socket.WriteTimeoutSeconds <= 0 {
		cfg.Socket.WriteTimeoutSeconds = 5
	}
	cfg.Socket.WriteTimeout = time.Duration(cfg.Socket.WriteTimeoutSeconds) * time.Second
	if cfg.Socket.MessagesPerSec <= 0 {
		cfg.Socket.MessagesPerSec = 20
	}
	if cfg.Socket.MessageBurst <= 0 {
		cfg.Socket.MessageBurst = 40
	}

	if cfg.Occupancy.SessionLengthMinutes <= 0 {
		cfg.Occupancy.SessionLengthMinutes = 120
	}
	if cfg.Occupancy.AwayAllowanceMinutes <= 0 {
		cfg.Occupancy.AwayAllowanceMinutes = 60
	}
	if cfg.Occupancy.AwayThresholdMinutes <= 0 {
		cfg.Occupancy.AwayThresholdMinutes = cfg.Occupancy.AwayAllowanceMinutes
	}
	cfg.Occupancy.SessionLength = time.Duration(cfg.Occupancy.SessionLengthMinutes) * time.Minute
	cfg.Occupancy.AwayAllowance = time.Duration(cfg.Occupancy.AwayAllowanceMinutes) * time.Minute
	cfg.Occupancy.AwayThreshold = time.Duration(cfg.Occupancy.AwayThresholdMinutes) * time.Minute

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 60
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "studyhall/sensors/+"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "studyhalld"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
