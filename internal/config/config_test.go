package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "contacerta.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.Matching.AmountTolerance, "unset tolerance keeps the engine default")
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMatchingOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AMOUNT_TOLERANCE", "0.05")
	t.Setenv("SIMILARITY_THRESHOLD", "0.7")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Matching.AmountTolerance)
	require.NotNil(t, cfg.Matching.SimilarityThreshold)
	assert.InDelta(t, 0.05, *cfg.Matching.AmountTolerance, 1e-9)
	assert.InDelta(t, 0.7, *cfg.Matching.SimilarityThreshold, 1e-9)
}

func TestLoadExplicitZeroTolerance(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AMOUNT_TOLERANCE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Matching.AmountTolerance)
	assert.Zero(t, *cfg.Matching.AmountTolerance)
}

func TestLoadRejectsBadFloat(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AMOUNT_TOLERANCE", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}
