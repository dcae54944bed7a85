package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PRICING_API_BASE", "REACT_APP_API_BASE", "SINGLE_TIMEOUT_SEC", "BATCH_TIMEOUT_SEC", "HEALTH_TIMEOUT_SEC", "ENGINE_WAIT_SEC", "PORT"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, DefaultAPIBase, cfg.APIBase)
	assert.Equal(t, 30*time.Second, cfg.SingleTimeout)
	assert.Equal(t, 120*time.Second, cfg.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.HealthTimeout)
	assert.Zero(t, cfg.EngineWait)
	assert.Equal(t, "8080", cfg.Port)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PRICING_API_BASE", "http://engine:9000/")
	t.Setenv("SINGLE_TIMEOUT_SEC", "5")
	t.Setenv("BATCH_TIMEOUT_SEC", "not-a-number")
	t.Setenv("ENGINE_WAIT_SEC", "15")

	cfg := FromEnv()
	assert.Equal(t, "http://engine:9000", cfg.APIBase)
	assert.Equal(t, 5*time.Second, cfg.SingleTimeout)
	assert.Equal(t, 120*time.Second, cfg.BatchTimeout)
	assert.Equal(t, 15*time.Second, cfg.EngineWait)
}

func TestFromEnvLegacyBaseName(t *testing.T) {
	t.Setenv("PRICING_API_BASE", "")
	t.Setenv("REACT_APP_API_BASE", "http://legacy:8000")

	assert.Equal(t, "http://legacy:8000", FromEnv().APIBase)
}
