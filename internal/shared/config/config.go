package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Artifact sources.
const (
	ArtifactSourceFile     = "file"
	ArtifactSourcePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Artifacts ArtifactConfig
	Database  DatabaseConfig
	TLS       TLSConfig
	Telemetry TelemetryConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Debug     DebugConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	AllowedHosts    []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

type ArtifactConfig struct {
	Source         string
	Dir            string
	Manifest       string
	Version        string
	VerifyDigests  bool
	WatchPublished bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type KafkaConfig struct {
	Broker      string
	GroupID     string
	InputTopic  string
	OutputTopic string
	DLQTopic    string
	CommitEvery int
}

// RedisConfig enables stream deduplication when Addrs is set. More than one
// address selects the cluster client.
type RedisConfig struct {
	Addrs     []string
	DedupeTTL time.Duration
}

type DebugConfig struct {
	PipelineColumns bool
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxBodyBytes, err := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil || maxBodyBytes <= 0 {
		return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %q", os.Getenv("MAX_BODY_BYTES"))
	}

	shutdownTimeout, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	commitEvery, err := strconv.Atoi(getEnv("KAFKA_COMMIT_EVERY", "20"))
	if err != nil || commitEvery <= 0 {
		return nil, fmt.Errorf("invalid KAFKA_COMMIT_EVERY: %q", os.Getenv("KAFKA_COMMIT_EVERY"))
	}

	dedupeTTL, err := time.ParseDuration(getEnv("REDIS_DEDUPE_TTL", "24h"))
	if err != nil || dedupeTTL <= 0 {
		return nil, fmt.Errorf("invalid REDIS_DEDUPE_TTL: %q", os.Getenv("REDIS_DEDUPE_TTL"))
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			AllowedHosts:    splitList(getEnv("ALLOWED_HOSTS", "")),
			MaxBodyBytes:    maxBodyBytes,
			ShutdownTimeout: shutdownTimeout,
		},
		Artifacts: ArtifactConfig{
			Source:         strings.ToLower(getEnv("ARTIFACT_SOURCE", ArtifactSourceFile)),
			Dir:            getEnv("ARTIFACT_DIR", "artifacts"),
			Manifest:       getEnv("ARTIFACT_MANIFEST", "manifest.yaml"),
			Version:        getEnv("ARTIFACT_VERSION", ""),
			VerifyDigests:  getBoolEnv("ARTIFACT_VERIFY_DIGESTS", true),
			WatchPublished: getBoolEnv("ARTIFACT_WATCH_PUBLISHED", true),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "fraudserve"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "fraudserve-api"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Kafka: KafkaConfig{
			Broker:      getEnv("KAFKA_BROKER", "localhost:9092"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "fraudserve-scorer"),
			InputTopic:  getEnv("KAFKA_INPUT_TOPIC", "raw_transactions"),
			OutputTopic: getEnv("KAFKA_OUTPUT_TOPIC", "scored_transactions"),
			DLQTopic:    getEnv("KAFKA_DLQ_TOPIC", "raw_transactions_dlq"),
			CommitEvery: commitEvery,
		},
		Redis: RedisConfig{
			Addrs:     splitList(getEnv("REDIS_ADDRS", "")),
			DedupeTTL: dedupeTTL,
		},
		Debug: DebugConfig{
			PipelineColumns: getBoolEnv("LOG_PIPELINE_DEBUG", false),
		},
	}

	// Validate artifact source
	switch cfg.Artifacts.Source {
	case ArtifactSourceFile:
	case ArtifactSourcePostgres:
		if cfg.Artifacts.Version == "" {
			return nil, fmt.Errorf("ARTIFACT_VERSION is required when ARTIFACT_SOURCE=postgres")
		}
	default:
		return nil, fmt.Errorf("ARTIFACT_SOURCE must be %q or %q, got %q",
			ArtifactSourceFile, ArtifactSourcePostgres, cfg.Artifacts.Source)
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
