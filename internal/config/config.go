package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"video-share-service/internal/organization"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is given.
const DefaultConfigPath = "configs/video-share-service.yaml"

// Config is the full process configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Storage      StorageConfig      `mapstructure:"storage"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Organization OrganizationConfig `mapstructure:"organization"`
	Processing   ProcessingConfig   `mapstructure:"processing"`
	Share        ShareConfig        `mapstructure:"share"`
	Reconciler   ReconcilerConfig   `mapstructure:"reconciler"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type KafkaConfig struct {
	Brokers       []string    `mapstructure:"brokers"`
	ConsumerGroup string      `mapstructure:"consumer_group"`
	Topics        KafkaTopics `mapstructure:"topics"`
}

type KafkaTopics struct {
	Work     string `mapstructure:"work"`
	Result   string `mapstructure:"result"`
	Progress string `mapstructure:"progress"`
}

// StorageConfig selects and configures the artifact store.
type StorageConfig struct {
	Type       string        `mapstructure:"type"` // minio or s3
	Endpoint   string        `mapstructure:"endpoint"`
	Bucket     string        `mapstructure:"bucket"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	Region     string        `mapstructure:"region"`
	UseSSL     bool          `mapstructure:"use_ssl"`
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type OrganizationConfig struct {
	Current   string              `mapstructure:"current"`
	Peers     []organization.Peer `mapstructure:"peers"`
	PeersFile string              `mapstructure:"peers_file"`
}

// Quality is one rung of the encoding ladder.
type Quality struct {
	Name    string `mapstructure:"name"`
	Height  int    `mapstructure:"height"`
	Bitrate string `mapstructure:"bitrate"`
	Preset  string `mapstructure:"preset"`
	CRF     int    `mapstructure:"crf"`
}

// RetryConfig describes exponential backoff for encode and upload steps.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type ProcessingConfig struct {
	TempDir    string      `mapstructure:"temp_dir"`
	FFmpegPath string      `mapstructure:"ffmpeg_path"`
	Qualities  []Quality   `mapstructure:"qualities"`
	Retry      RetryConfig `mapstructure:"retry"`
}

type ShareConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	PoolSize    int           `mapstructure:"pool_size"`
	PeerTimeout time.Duration `mapstructure:"peer_timeout"`
}

type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "video_share")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "video-transcoding-group")
	v.SetDefault("kafka.topics.work", "video-transcoding")
	v.SetDefault("kafka.topics.result", "video-transcoding-result")
	v.SetDefault("kafka.topics.progress", "video-progress")

	v.SetDefault("storage.type", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "videos")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presign_ttl", 7*24*time.Hour)

	v.SetDefault("jwt.secret", "default-jwt-secret-key")

	v.SetDefault("processing.temp_dir", "/tmp/video-processing")
	v.SetDefault("processing.ffmpeg_path", "ffmpeg")
	v.SetDefault("processing.retry.max_attempts", 3)
	v.SetDefault("processing.retry.initial_delay", 2*time.Second)
	v.SetDefault("processing.retry.multiplier", 2.0)
	v.SetDefault("processing.retry.max_delay", 10*time.Second)

	v.SetDefault("share.ttl", 30*24*time.Hour)
	v.SetDefault("share.pool_size", 5)
	v.SetDefault("share.peer_timeout", time.Duration(0))

	v.SetDefault("reconciler.interval", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
}

// DefaultQualities is the ladder used when none is configured.
func DefaultQualities() []Quality {
	return []Quality{
		{Name: "480p", Height: 480, Bitrate: "1000k", Preset: "medium", CRF: 23},
		{Name: "720p", Height: 720, Bitrate: "2500k", Preset: "medium", CRF: 23},
		{Name: "1080p", Height: 1080, Bitrate: "5000k", Preset: "medium", CRF: 22},
	}
}

// ResolvePath picks the config file: explicit flag, then CONFIG_PATH, then the default.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads configuration from path. A missing file is tolerated so the
// service can run from defaults and VSS_* environment variables alone.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Processing.Qualities) == 0 {
		cfg.Processing.Qualities = DefaultQualities()
	}

	if cfg.Organization.PeersFile != "" {
		peers, err := LoadPeersFile(cfg.Organization.PeersFile)
		if err != nil {
			return nil, err
		}
		cfg.Organization.Peers = append(cfg.Organization.Peers, peers...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type peersDocument struct {
	Peers []organization.Peer `yaml:"peers"`
}

// LoadPeersFile reads a static peer table from a YAML document of the form
// `peers: [{id, ip, endpoint}]`.
func LoadPeersFile(path string) ([]organization.Peer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read peers file: %w", err)
	}
	var doc peersDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse peers file: %w", err)
	}
	return doc.Peers, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Processing.Qualities) == 0 {
		errs = append(errs, errors.New("processing.qualities must not be empty"))
	}
	seen := make(map[string]bool, len(c.Processing.Qualities))
	for _, q := range c.Processing.Qualities {
		if q.Name == "" {
			errs = append(errs, errors.New("processing.qualities: quality without name"))
			continue
		}
		if seen[q.Name] {
			errs = append(errs, fmt.Errorf("processing.qualities: duplicate quality %q", q.Name))
		}
		seen[q.Name] = true
		if q.Height <= 0 {
			errs = append(errs, fmt.Errorf("processing.qualities: %s has non-positive height", q.Name))
		}
	}

	if c.Processing.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("processing.retry.max_attempts must be positive"))
	}
	if c.Share.PoolSize <= 0 {
		errs = append(errs, errors.New("share.pool_size must be positive"))
	}
	if c.Share.TTL <= 0 {
		errs = append(errs, errors.New("share.ttl must be positive"))
	}
	if c.Reconciler.Interval <= 0 {
		errs = append(errs, errors.New("reconciler.interval must be positive"))
	}

	if c.Organization.Current == "" {
		errs = append(errs, errors.New("organization.current is required"))
	} else {
		found := false
		for _, p := range c.Organization.Peers {
			if p.ID == c.Organization.Current {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Errorf("organization.current %q is not among organization.peers", c.Organization.Current))
		}
	}

	switch c.Storage.Type {
	case "minio", "s3":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not supported", c.Storage.Type))
	}

	return errors.Join(errs...)
}
