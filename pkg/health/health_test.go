package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerStartsNotReady(t *testing.T) {
	c := NewChecker()
	assert.False(t, c.IsReady())
	assert.Equal(t, StatusFailed, c.ReadinessCheck().Status)
}

func TestCheckerSetReadyFlipsReadinessCheck(t *testing.T) {
	c := NewChecker()
	c.SetReady(true)
	assert.True(t, c.IsReady())
	assert.Equal(t, StatusOK, c.ReadinessCheck().Status)
}

func TestLivenessCheckIsAlwaysOK(t *testing.T) {
	c := NewChecker()
	assert.Equal(t, StatusOK, c.LivenessCheck().Status)
}

func TestHealthCheckFailsWhenNotReadyEvenThoughAlive(t *testing.T) {
	c := NewChecker()
	resp := c.HealthCheck()
	assert.Equal(t, StatusFailed, resp.Status)
	byName := map[string]Status{}
	for _, chk := range resp.Checks {
		byName[chk.Name] = chk.Status
	}
	assert.Equal(t, StatusOK, byName["liveness"])
	assert.Equal(t, StatusFailed, byName["readiness"])
}
