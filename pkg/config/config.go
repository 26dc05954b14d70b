package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LogLevel     string
}

// DatabaseConfig holds archive database configuration. Driver selects
// between "postgres" and "sqlite"; Path is only used by sqlite.
type DatabaseConfig struct {
	Enabled         bool
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for the approval bus and
// metrics collector
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// EngineConfig holds orchestration engine configuration
type EngineConfig struct {
	DefaultGateTimeout  time.Duration
	DefaultPollInterval time.Duration
	OperationTimeout    time.Duration
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars only
	}

	// Override with environment variables
	viper.AutomaticEnv()

	config := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("server.port"),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
			LogLevel:     viper.GetString("server.log_level"),
		},
		Database: DatabaseConfig{
			Enabled:         viper.GetBool("database.enabled"),
			Driver:          viper.GetString("database.driver"),
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			Path:            viper.GetString("database.path"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Engine: EngineConfig{
			DefaultGateTimeout:  viper.GetDuration("engine.default_gate_timeout"),
			DefaultPollInterval: viper.GetDuration("engine.default_poll_interval"),
			OperationTimeout:    viper.GetDuration("engine.operation_timeout"),
		},
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.log_level", "info")

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.host", "127.0.0.1")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "rollout")
	viper.SetDefault("database.password", "rollout_dev_password")
	viper.SetDefault("database.dbname", "rollout")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.path", "rollout.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Engine defaults
	viper.SetDefault("engine.default_gate_timeout", 10*time.Minute)
	viper.SetDefault("engine.default_poll_interval", 15*time.Second)
	viper.SetDefault("engine.operation_timeout", 10*time.Minute)
}

// GetDatabaseDSN returns the PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
