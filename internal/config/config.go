package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Database  DatabaseConfig
	MinIO     MinIOConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	Proxy     ProxyConfig
	Ads       AdsConfig
	Transcode TranscodeConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	PublicBaseURL   string        `envconfig:"API_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"adsplice"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"adsplice"`
	DBName   string `envconfig:"POSTGRES_DB" default:"adsplice"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"ads"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"adsplice"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"adsplice"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProxyConfig configures the outbound egress route pool. Routes is a
// comma-separated list of proxy URLs; an empty list is a valid degraded
// state in which all fetches go direct.
type ProxyConfig struct {
	Routes           []string      `envconfig:"PROXY_ROUTES" default:""`
	FailureThreshold int           `envconfig:"PROXY_FAILURE_THRESHOLD" default:"3"`
	Cooldown         time.Duration `envconfig:"PROXY_COOLDOWN" default:"5m"`
	FetchTimeout     time.Duration `envconfig:"PROXY_FETCH_TIMEOUT" default:"30s"`
}

type AdsConfig struct {
	VariantDir       string        `envconfig:"ADS_VARIANT_DIR" default:"/var/lib/adsplice/variants"`
	TempDir          string        `envconfig:"ADS_TEMP_DIR" default:"/tmp/adsplice"`
	PlaylistCacheTTL time.Duration `envconfig:"ADS_PLAYLIST_CACHE_TTL" default:"60s"`
}

type TranscodeConfig struct {
	FFmpegPath   string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath  string        `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	Timeout      time.Duration `envconfig:"TRANSCODE_TIMEOUT" default:"120s"`
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
