// Package config loads wallharvest settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/wallharvest/internal/db"
	"github.com/raphaelgruber/wallharvest/internal/events"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Collection sources
	GroupsFile string
	DumpDir    string
	SourceTag  string

	// Kafka lifecycle events; disabled when no brokers are set.
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string

	// Default per-group post limit for new tasks.
	PostLimit int
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "wallharvest"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "ingest"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("WALLHARVEST_LOG_FILE", "/tmp/wallharvest.log"),
		LogLevel: parseLogLevel(getEnv("WALLHARVEST_LOG_LEVEL", "INFO")),

		GroupsFile: getEnv("WALLHARVEST_GROUPS_FILE", "groups.yaml"),
		DumpDir:    getEnv("WALLHARVEST_DUMP_DIR", "dumps"),
		SourceTag:  getEnv("WALLHARVEST_SOURCE_TAG", "wall"),

		KafkaBrokers:  splitList(getEnv("WALLHARVEST_KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("WALLHARVEST_KAFKA_TOPIC", "wallharvest.task-events"),
		KafkaClientID: getEnv("WALLHARVEST_KAFKA_CLIENT_ID", "wallharvest"),

		PostLimit: getEnvInt("WALLHARVEST_POST_LIMIT", 100),
	}
}

// DB returns the SurrealDB connection settings.
func (c Config) DB() db.Config {
	return db.Config{
		URL:       c.SurrealDBURL,
		Namespace: c.SurrealDBNamespace,
		Database:  c.SurrealDBDatabase,
		Username:  c.SurrealDBUser,
		Password:  c.SurrealDBPass,
		AuthLevel: c.SurrealDBAuthLevel,
	}
}

// Kafka returns the Kafka publisher settings.
func (c Config) Kafka() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers:  c.KafkaBrokers,
		Topic:    c.KafkaTopic,
		ClientID: c.KafkaClientID,
	}
}

// KafkaEnabled reports whether lifecycle events go to Kafka.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
