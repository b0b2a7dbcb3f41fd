package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Minio     MinioConfig     `mapstructure:"minio"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Consul    ConsulConfig    `mapstructure:"consul"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" split_words:"true"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver" validate:"oneof=mongo postgres memory"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type MongoConfig struct {
	URI         string        `mapstructure:"uri" envconfig:"URI"`
	Database    string        `mapstructure:"database"`
	Timeout     time.Duration `mapstructure:"timeout"`
	EnsureIndex bool          `mapstructure:"ensure_index" split_words:"true"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
	AutoMigrate  bool   `mapstructure:"auto_migrate" split_words:"true"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret" validate:"required,min=16"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours" split_words:"true" validate:"gt=0"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" envconfig:"URL" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Brokers  string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id" split_words:"true"`
}

type SMTPConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Host          string  `mapstructure:"host" validate:"required_if=Enabled true"`
	Port          int     `mapstructure:"port"`
	Username      string  `mapstructure:"username"`
	Password      string  `mapstructure:"password"`
	From          string  `mapstructure:"from" validate:"omitempty,email"`
	RatePerSecond float64 `mapstructure:"rate_per_second" split_words:"true"`
	Burst         int     `mapstructure:"burst"`
}

type MinioConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	AccessKey     string        `mapstructure:"access_key" split_words:"true"`
	SecretKey     string        `mapstructure:"secret_key" split_words:"true"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl" envconfig:"USE_SSL"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry" split_words:"true"`
}

type OutboxConfig struct {
	Embedded      bool          `mapstructure:"embedded"`
	BatchSize     int           `mapstructure:"batch_size" split_words:"true" validate:"gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true" validate:"gt=0"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true" validate:"gt=0"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout" split_words:"true"`
	Retention     time.Duration `mapstructure:"retention"`
	// HealthPort serves the standalone worker's health and metrics.
	HealthPort int `mapstructure:"health_port" split_words:"true" validate:"gt=0"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins" split_words:"true"`
	AllowedMethods []string      `mapstructure:"allowed_methods" split_words:"true"`
	AllowedHeaders []string      `mapstructure:"allowed_headers" split_words:"true"`
	MaxAge         time.Duration `mapstructure:"max_age" split_words:"true"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name" split_words:"true"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio" split_words:"true" validate:"gte=0,lte=1"`
}

type ConsulConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Address     string `mapstructure:"address"`
	ServiceName string `mapstructure:"service_name" split_words:"true"`
	ServiceHost string `mapstructure:"service_host" split_words:"true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.mode", "release")

	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "repairdesk")
	v.SetDefault("storage.mongo.timeout", 10*time.Second)
	v.SetDefault("storage.mongo.ensure_index", true)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.max_open_conns", 20)
	v.SetDefault("storage.postgres.max_idle_conns", 5)

	v.SetDefault("jwt.issuer", "repair-desk")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("kafka.topic", "repair-events")
	v.SetDefault("kafka.client_id", "repair-desk")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.rate_per_second", 5.0)
	v.SetDefault("smtp.burst", 10)

	v.SetDefault("minio.bucket", "repair-images")
	v.SetDefault("minio.presign_expiry", 15*time.Minute)

	v.SetDefault("outbox.embedded", true)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 30*time.Second)
	v.SetDefault("outbox.claim_timeout", 2*time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.health_port", 8081)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("tracing.service_name", "repair-desk")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("consul.address", "localhost:8500")
	v.SetDefault("consul.service_name", "repair-desk")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "repair_desk")
}

// Load reads the YAML config file, overlays REPAIR_* environment variables and
// validates the result. An explicit path wins over CONFIG_FILE and the search paths.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("repair", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
