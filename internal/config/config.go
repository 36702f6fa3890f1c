package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Embedding  EmbeddingConfig
	Matching   MatchingConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Thresholds ThresholdsConfig
}

type EmbeddingConfig struct {
	URL string // base URL of the embedding service, defaults to http://localhost:8000
}

type MatchingConfig struct {
	FaceThreshold float64 // cosine similarity above which a face counts as a match
}

type StorageConfig struct {
	DataDir string // root directory for the jsonfile backend and the media zones
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty selects the jsonfile backend
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// ThresholdsConfig holds the built-in matching defaults shipped with the binary.
type ThresholdsConfig struct {
	Face  ThresholdEntry `yaml:"face"`
	Voice ThresholdEntry `yaml:"voice"`
}

type ThresholdEntry struct {
	Similarity float64 `yaml:"similarity"`
	Dim        int     `yaml:"dim"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Matching: MatchingConfig{
			FaceThreshold: envFloat("FACE_MATCH_THRESHOLD", thresholds.Face.Similarity),
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Thresholds: thresholds,
	}
}
