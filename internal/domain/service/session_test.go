package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kube-rca/agent/internal/domain/service"
)

func TestAlertSessionKey(t *testing.T) {
	labels := map[string]string{
		"alertname": "HighLatency",
		"namespace": "shop",
		"pod":       " ",
		"workload":  "checkout",
	}

	tests := []struct {
		name        string
		incidentID  string
		fingerprint string
		labels      map[string]string
		want        string
	}{
		{"incident and fingerprint", "INC-1", "abc", labels, "INC-1:abc"},
		{"fingerprint only", "", "abc", labels, "alert:abc"},
		{"whitespace trimmed", " INC-1 ", " abc ", nil, "INC-1:abc"},
		{"composite with incident", "INC-1", "", labels, "INC-1:HighLatency-shop-checkout"},
		{"composite without incident", "", "", labels, "alert:HighLatency-shop-checkout"},
		{"nothing usable", "", "", map[string]string{"team": "x"}, "default"},
		{"nothing at all", "INC-1", "", nil, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.AlertSessionKey(tt.incidentID, tt.fingerprint, tt.labels))
		})
	}
}

func TestIncidentAndChatSessionKeys(t *testing.T) {
	assert.Equal(t, "INC-9:summary", service.IncidentSessionKey("INC-9"))
	assert.Equal(t, "summary", service.IncidentSessionKey("  "))
	assert.Equal(t, "conv-1:chat", service.ChatSessionKey("conv-1"))
	assert.Equal(t, "default:chat", service.ChatSessionKey(""))
}

func TestRuntimeSessionID(t *testing.T) {
	a := service.RuntimeSessionID("alert:abc")
	b := service.RuntimeSessionID("alert:abc")

	assert.True(t, strings.HasPrefix(a, "alert:abc:run:"))
	assert.Len(t, strings.TrimPrefix(a, "alert:abc:run:"), 12)
	assert.NotEqual(t, a, b)
}
