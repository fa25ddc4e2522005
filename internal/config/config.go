package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Host string
		Port string
		User string
		Pass string
		Name string
	}
	Redis struct {
		Addr string
	}
	Kafka struct {
		Brokers string
		Topic   string
	}
}

// DSN builds the MySQL data source name.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.Database.User, c.Database.Pass, c.Database.Host, c.Database.Port, c.Database.Name)
}

// KafkaBrokers returns the broker list split from the comma-separated setting.
func (c Config) KafkaBrokers() []string {
	return strings.Split(c.Kafka.Brokers, ",")
}

// Load reads configuration from environment variables and an optional config file.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("USERSVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.pass", "")
	v.SetDefault("database.name", "user_management")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("kafka.brokers", "localhost:9092,localhost:9093,localhost:9094")
	v.SetDefault("kafka.topic", "user-topic")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
