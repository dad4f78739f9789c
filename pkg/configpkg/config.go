// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	DBDriver      string `mapstructure:"DB_DRIVER"`
	DBSource      string `mapstructure:"DB_SOURCE"`
	MigrationURL  string `mapstructure:"MIGRATION_URL"`
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	Environement  string `mapstructure:"GO_ENV"`

	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	LockWaitTimeout   time.Duration `mapstructure:"LOCK_WAIT_TIMEOUT"`
	LockLeaseDuration time.Duration `mapstructure:"LOCK_LEASE_DURATION"`
	LockRetryDelay    time.Duration `mapstructure:"LOCK_RETRY_DELAY"`

	TransferMaxAttempts int           `mapstructure:"TRANSFER_MAX_ATTEMPTS"`
	TransferRetryDelay  time.Duration `mapstructure:"TRANSFER_RETRY_DELAY"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("MIGRATION_URL", "file://configs/db/migration")
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("GO_ENV", "production")
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_WAIT_TIMEOUT", 5*time.Second)
	v.SetDefault("LOCK_LEASE_DURATION", 10*time.Second)
	v.SetDefault("LOCK_RETRY_DELAY", 50*time.Millisecond)
	v.SetDefault("TRANSFER_MAX_ATTEMPTS", 3)
	v.SetDefault("TRANSFER_RETRY_DELAY", 100*time.Millisecond)
	v.SetDefault("RABBITMQ_EXCHANGE", "ledger_events")
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
