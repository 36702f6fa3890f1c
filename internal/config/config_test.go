package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FACE_MATCH_THRESHOLD", "")
	t.Setenv("DATA_DIR", "")

	cfg := Load()

	if cfg.Matching.FaceThreshold != 0.40 {
		t.Errorf("expected default face threshold 0.40, got %f", cfg.Matching.FaceThreshold)
	}
	if cfg.Thresholds.Voice.Similarity != 0.75 {
		t.Errorf("expected embedded voice threshold 0.75, got %f", cfg.Thresholds.Voice.Similarity)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("expected default data dir 'data', got '%s'", cfg.Storage.DataDir)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACE_MATCH_THRESHOLD", "0.55")
	t.Setenv("DATA_DIR", "/tmp/consent-data")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "10")

	cfg := Load()

	if cfg.Matching.FaceThreshold != 0.55 {
		t.Errorf("expected face threshold 0.55, got %f", cfg.Matching.FaceThreshold)
	}
	if cfg.Storage.DataDir != "/tmp/consent-data" {
		t.Errorf("expected data dir override, got '%s'", cfg.Storage.DataDir)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("expected max open conns 10, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 7},
		{"valid", "42", 42},
		{"invalid", "abc", 7},
		{"negative", "-3", 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tc.value)
			if got := envInt("TEST_ENV_INT", 7); got != tc.expected {
				t.Errorf("envInt(%q) = %d; want %d", tc.value, got, tc.expected)
			}
		})
	}
}
