// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration.
type Config struct {
	DB          DBConfig
	Server      ServerConfig
	Poll        PollConfig
	Cluster     ClusterConfig
	Changefeed  ChangefeedConfig
	S3          S3Config
	Ollama      OllamaConfig
	MetricsAddr string
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	DBName  string
	SSLMode string
}

// DSN returns a PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Pass +
		"@" + c.Host + ":" + strconv.Itoa(c.Port) +
		"/" + c.DBName + "?sslmode=" + c.SSLMode
}

// ServerConfig holds HTTP server parameters for the read API.
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the full listen address (host:port).
func (c ServerConfig) Addr() string {
	return c.Host + c.Port
}

// PollConfig holds the ingestion scheduler parameters.
type PollConfig struct {
	// TickSeconds is the timer cadence of the scheduler.
	TickSeconds int
	// PollsPerTick bounds how many feeds one tick polls concurrently.
	PollsPerTick int
	// BackoffBase is the first retry delay after a feed failure; it doubles
	// per consecutive failure up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// BaseInterval is how long a healthy feed waits before its next poll.
	BaseInterval time.Duration
}

// ClusterConfig holds the clustering and status-evolution parameters.
type ClusterConfig struct {
	FuzzyThreshold     float64
	StrongThreshold    float64
	MinSharedEntities  int
	ArchiveAge         time.Duration
	BreakingWindow     time.Duration
	HeadlineThresholds []int
	ArticleDeadline    time.Duration
	SummarizerTimeout  time.Duration
}

// ChangefeedConfig holds the change-feed consumer parameters. Partitions is
// baked into rows at write time; changing it re-buckets new writes only.
type ChangefeedConfig struct {
	Partitions int
	Workers    int
	LeaseTTL   time.Duration
}

// S3Config holds S3-compatible object storage parameters for the optional
// raw snapshot archive.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// OllamaConfig holds the LLM server parameters for headline synthesis and
// story summaries.
type OllamaConfig struct {
	Host  string
	Model string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honoured when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DB: DBConfig{
			Host:    envOr("DB_HOST", "localhost"),
			Port:    envOrInt("DB_PORT", 5432),
			User:    envOr("DB_USER", "newswire"),
			Pass:    envOr("DB_PASS", "newswire"),
			DBName:  envOr("DB_NAME", "newswire"),
			SSLMode: envOr("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: envOr("SERVER_PORT", ":8080"),
			Host: envOr("SERVER_HOST", ""),
		},
		Poll: PollConfig{
			TickSeconds:  envOrInt("POLL_TICK_SECONDS", 10),
			PollsPerTick: envOrInt("POLLS_PER_TICK", 5),
			BackoffBase:  envOrDuration("POLL_BACKOFF_BASE", 30*time.Second),
			BackoffCap:   envOrDuration("POLL_BACKOFF_CAP", 30*time.Minute),
			BaseInterval: envOrDuration("FEED_BASE_INTERVAL", time.Minute),
		},
		Cluster: ClusterConfig{
			FuzzyThreshold:     envOrFloat("FUZZY_SIMILARITY_THRESHOLD", 0.70),
			StrongThreshold:    envOrFloat("STRONG_SIMILARITY_THRESHOLD", 0.80),
			MinSharedEntities:  envOrInt("MIN_SHARED_ENTITIES", 3),
			ArchiveAge:         time.Duration(envOrInt("ARCHIVE_AGE_HOURS", 24)) * time.Hour,
			BreakingWindow:     time.Duration(envOrInt("BREAKING_WINDOW_MINUTES", 30)) * time.Minute,
			HeadlineThresholds: envOrInts("HEADLINE_THRESHOLDS", []int{3, 5, 10, 15}),
			ArticleDeadline:    time.Duration(envOrInt("ARTICLE_DEADLINE_SECONDS", 10)) * time.Second,
			SummarizerTimeout:  time.Duration(envOrInt("SUMMARIZER_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Changefeed: ChangefeedConfig{
			Partitions: envOrInt("CHANGEFEED_PARTITIONS", 4),
			Workers:    envOrInt("CLUSTER_WORKERS", 2),
			LeaseTTL:   time.Duration(envOrInt("LEASE_TTL_SECONDS", 60)) * time.Second,
		},
		S3: S3Config{
			Endpoint:  envOr("S3_ENDPOINT", ""),
			Bucket:    envOr("S3_BUCKET", "newswire-snapshots"),
			AccessKey: envOr("S3_ACCESS_KEY", ""),
			SecretKey: envOr("S3_SECRET_KEY", ""),
			Region:    envOr("S3_REGION", "us-east-1"),
		},
		Ollama: OllamaConfig{
			Host:  envOr("OLLAMA_HOST", "http://localhost:11434"),
			Model: envOr("OLLAMA_MODEL", "llama3"),
		},
		MetricsAddr: envOr("METRICS_ADDR", ":9091"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envOrInts parses a comma-separated list of integers, e.g. "3,5,10,15".
func envOrInts(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fallback
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
