package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the sync service.
type Config struct {
	App          AppConfig
	MQTT         MQTTConfig
	API          APIConfig
	HTTP         HTTPConfig
	Destinations DestinationsConfig
	Upload       UploadConfig
	Kafka        KafkaConfig
	Tracing      TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"videosync"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type MQTTConfig struct {
	BrokerURL   string        `env:"MQTT_BROKER_URL" envDefault:"tcp://localhost:1883"`
	ClientID    string        `env:"MQTT_CLIENT_ID" envDefault:"videosync"`
	TopicPrefix string        `env:"MQTT_TOPIC_PREFIX" envDefault:"frigate"`
	Username    string        `env:"MQTT_USERNAME"`
	Password    string        `env:"MQTT_PASSWORD"`
	KeepAlive   time.Duration `env:"MQTT_KEEP_ALIVE" envDefault:"30s"`
}

// APIConfig points at the surveillance controller's HTTP API, used to fetch
// recording clips.
type APIConfig struct {
	BaseURL string        `env:"CONTROLLER_API_URL" envDefault:"http://localhost:5000"`
	Proxy   string        `env:"CONTROLLER_API_PROXY"`
	Timeout time.Duration `env:"CONTROLLER_API_TIMEOUT" envDefault:"30s"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

// DestinationsConfig lists the upload targets. Specs is an ordered,
// comma-separated list of descriptors, e.g.
// "local:///var/lib/videosync,sftp://backup@nas:22/cams?identity=/etc/videosync/id".
// The list is immutable for the process lifetime.
type DestinationsConfig struct {
	Specs          []string `env:"DEST_SPECS" envSeparator:","`
	LocalOverwrite bool     `env:"DEST_LOCAL_OVERWRITE" envDefault:"true"`

	S3Endpoint  string `env:"DEST_S3_ENDPOINT" envDefault:"localhost:9000"`
	S3Region    string `env:"DEST_S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"DEST_S3_ACCESS_KEY"`
	S3SecretKey string `env:"DEST_S3_SECRET_KEY"`
	S3UseSSL    bool   `env:"DEST_S3_USE_SSL" envDefault:"false"`
}

type UploadConfig struct {
	RetryInitialInterval time.Duration `env:"UPLOAD_RETRY_INITIAL_INTERVAL" envDefault:"1s"`
	RetryMaxInterval     time.Duration `env:"UPLOAD_RETRY_MAX_INTERVAL" envDefault:"60s"`
	RetryMaxAttempts     int           `env:"UPLOAD_RETRY_MAX_ATTEMPTS" envDefault:"8"`
	ShutdownGrace        time.Duration `env:"UPLOAD_SHUTDOWN_GRACE" envDefault:"30s"`
}

// KafkaConfig configures the optional outcome-event producer. Leaving
// Brokers empty disables publishing.
type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	OutcomeTopic string        `env:"KAFKA_OUTCOME_TOPIC" envDefault:"videosync.outcomes"`
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
	Retries      int           `env:"KAFKA_RETRIES" envDefault:"3"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=videosync"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
