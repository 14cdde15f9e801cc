package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	SLA       SLAConfig       `mapstructure:"sla"`
	Substrate SubstrateConfig `mapstructure:"substrate"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// GetDSN builds the postgres DSN.
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig configures the redis connection shared by the task queue and the
// substrate schedule cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json, console
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig configures JWT validation.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	TokenExpiryMin int    `mapstructure:"token_expiry_min"`
}

// SLAConfig tunes schedule-health classification.
type SLAConfig struct {
	// AtRiskDays is the days-until-due window that classifies an in-progress
	// phase as At Risk instead of On Track.
	AtRiskDays int `mapstructure:"at_risk_days"`
}

// SubstrateConfig configures the durable-execution coordination client.
type SubstrateConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	SignalQueue       string `mapstructure:"signal_queue"`
	ScheduleKeyPrefix string `mapstructure:"schedule_key_prefix"`
}

// WorkerConfig configures the asynq worker server.
type WorkerConfig struct {
	Concurrency          int `mapstructure:"concurrency"`
	ExpirySweepIntervalM int `mapstructure:"expiry_sweep_interval_min"`
}

// Load reads configs/config.<env>.yaml and applies SYNAPSE_* environment
// overrides. configPath, when non-empty, overrides the search directory.
func Load(env, configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SYNAPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is allowed: defaults + env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "synapse")
	v.SetDefault("database.password", "synapse")
	v.SetDefault("database.dbname", "synapse_dte")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("auth.token_expiry_min", 60)

	v.SetDefault("sla.at_risk_days", 2)

	v.SetDefault("substrate.enabled", true)
	v.SetDefault("substrate.signal_queue", "substrate")
	v.SetDefault("substrate.schedule_key_prefix", "substrate:schedule:")

	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.expiry_sweep_interval_min", 15)
}
