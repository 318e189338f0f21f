package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PUBMED_API_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4242", cfg.HTTPPort)
	assert.Equal(t, "pubmed", cfg.LookupProvider)
	assert.Equal(t, 5, cfg.StoreRateLimit)
	assert.Equal(t, 200, cfg.DetailsPageSize)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLookupLimits(t *testing.T) {
	cfg := &Config{LookupRateLimitWithKey: 10, LookupRateLimitNoKey: 3, LookupNoKeyDelay: 1500 * time.Millisecond}

	limit, delay := cfg.LookupLimits()
	assert.Equal(t, 3, limit)
	assert.Equal(t, 1500*time.Millisecond, delay)

	cfg.PubMedAPIKey = "secret"
	limit, delay = cfg.LookupLimits()
	assert.Equal(t, 10, limit)
	assert.Zero(t, delay)
}

func TestLookupLimits_KeyIgnoredForEuropePMC(t *testing.T) {
	cfg := &Config{
		LookupProvider:         "europepmc",
		PubMedAPIKey:           "secret",
		LookupRateLimitWithKey: 10,
		LookupRateLimitNoKey:   3,
		LookupNoKeyDelay:       2 * time.Second,
	}
	limit, delay := cfg.LookupLimits()
	assert.Equal(t, 3, limit)
	assert.Equal(t, 2*time.Second, delay)

	cfg.LookupProvider = "PubMed"
	limit, delay = cfg.LookupLimits()
	assert.Equal(t, 10, limit)
	assert.Zero(t, delay)
}

func TestLookupLimits_NoKeyDelayIsMandatory(t *testing.T) {
	cfg := &Config{LookupRateLimitNoKey: 3}
	_, delay := cfg.LookupLimits()
	assert.Equal(t, time.Second, delay)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5433, DBUser: "u", DBPassword: "p", DBName: "n"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=disable", cfg.DSN())
}
