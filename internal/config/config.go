package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	TimeFrames TimeFramesConfig `mapstructure:"timeframes"`
	Devices    DevicesConfig    `mapstructure:"devices"`
	Command    CommandConfig    `mapstructure:"command"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
	Environment  string `mapstructure:"environment"`
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	// Path is the sqlite database file, used when Driver is "sqlite"
	Path string `mapstructure:"path"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Brokers        string `mapstructure:"brokers"`
	ConsumerGroup  string `mapstructure:"consumer_group"`
	SecurityEnable bool   `mapstructure:"security_enable"`
	SecurityUser   string `mapstructure:"security_user"`
	SecurityPass   string `mapstructure:"security_pass"`
}

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// TimeFramesConfig lists the symbolic frames the resolver recognizes when no
// stored setting overrides them
type TimeFramesConfig struct {
	Frames []string `mapstructure:"frames"`
}

// DevicesConfig holds device directory configuration
type DevicesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// CommandConfig holds configuration for the device state command transport
type CommandConfig struct {
	Transport     string        `mapstructure:"transport"` // "http" or "mqtt"
	Timeout       time.Duration `mapstructure:"timeout"`
	RelayEndpoint string        `mapstructure:"relay_endpoint"`
	MQTT          MQTTConfig    `mapstructure:"mqtt"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// JobsConfig holds cron expressions for the periodic tasks
type JobsConfig struct {
	RollupSpec     string `mapstructure:"rollup_spec"`
	ScheduleSpec   string `mapstructure:"schedule_spec"`
	RetentionSpec  string `mapstructure:"retention_spec"`
	ScheduleTZ     string `mapstructure:"schedule_timezone"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// RetentionConfig holds raw sample retention configuration
type RetentionConfig struct {
	RawDays int `mapstructure:"raw_days"`
}

// LoadConfig loads the application configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default configuration file path if not provided
	if configPath == "" {
		configPath = "./config"
	}

	// A local .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("VOLTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// If the configuration file is not found, that's fine, we'll use defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15)  // seconds
	v.SetDefault("server.write_timeout", 15) // seconds
	v.SetDefault("server.idle_timeout", 60)  // seconds
	v.SetDefault("server.environment", "development")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "voltwatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.path", "voltwatch.db")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "kafka:9092")
	v.SetDefault("kafka.consumer_group", "voltwatch")
	v.SetDefault("kafka.security_enable", false)

	// JWT defaults
	v.SetDefault("jwt.expiration_hours", 24)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("timeframes.frames", []string{
		"today", "todayPartly", "todayLive", "last7days", "last30days", "custom",
	})

	v.SetDefault("devices.cache_ttl", 30*time.Second)

	v.SetDefault("command.transport", "http")
	v.SetDefault("command.timeout", 5*time.Second)
	v.SetDefault("command.relay_endpoint", "/relay")
	v.SetDefault("command.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("command.mqtt.client_id", "voltwatch-server")
	v.SetDefault("command.mqtt.topic_prefix", "voltwatch/commands")

	v.SetDefault("jobs.rollup_spec", "0 0 4 * * *")
	v.SetDefault("jobs.schedule_spec", "0 * * * * *")
	v.SetDefault("jobs.retention_spec", "0 30 4 * * *")
	v.SetDefault("jobs.schedule_timezone", "UTC")
	v.SetDefault("jobs.max_concurrency", 8)

	v.SetDefault("retention.raw_days", 0)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.JWT.Secret == "" {
		// In development mode, set a default secret
		if config.Server.Environment == "development" {
			config.JWT.Secret = "development-jwt-secret-key-change-in-production"
		} else {
			return fmt.Errorf("JWT secret is required in non-development environments")
		}
	}

	switch config.Database.Driver {
	case "postgres":
		if config.Database.Password == "" {
			dbPassword := os.Getenv("VOLTWATCH_DATABASE_PASSWORD")
			if dbPassword == "" {
				if config.Server.Environment != "development" {
					return fmt.Errorf("database password is required in non-development environments")
				}
			} else {
				config.Database.Password = dbPassword
			}
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}

	switch config.Command.Transport {
	case "http", "mqtt":
	default:
		return fmt.Errorf("unsupported command transport: %s", config.Command.Transport)
	}

	if config.Command.Timeout <= 0 {
		return fmt.Errorf("command timeout must be positive")
	}

	if _, err := time.LoadLocation(config.Jobs.ScheduleTZ); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", config.Jobs.ScheduleTZ, err)
	}

	if config.Retention.RawDays < 0 {
		return fmt.Errorf("retention.raw_days must not be negative")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.TimeZone)
}

// ScheduleLocation returns the location schedule windows are interpreted in
func (c *JobsConfig) ScheduleLocation() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction returns true if the environment is production
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if the environment is development
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}
