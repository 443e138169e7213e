package service

import (
	"strings"

	"github.com/google/uuid"
)

const runtimeMarker = ":run:"

// compositeLabelKeys identify an alert when no fingerprint is available.
var compositeLabelKeys = []string{
	"alertname",
	"namespace",
	"pod",
	"workload",
	"destination_workload",
	"destination_service_name",
}

// AlertSessionKey derives the durable session key for an alert.
func AlertSessionKey(incidentID, fingerprint string, labels map[string]string) string {
	incidentID = strings.TrimSpace(incidentID)
	fingerprint = strings.TrimSpace(fingerprint)

	prefix := "alert:"
	if incidentID != "" {
		prefix = incidentID + ":"
	}

	if fingerprint != "" {
		return prefix + fingerprint
	}

	parts := make([]string, 0, len(compositeLabelKeys))
	for _, key := range compositeLabelKeys {
		if v := strings.TrimSpace(labels[key]); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return prefix + strings.Join(parts, "-")
	}

	return "default"
}

// IncidentSessionKey derives the durable session key for an incident summary.
func IncidentSessionKey(incidentID string) string {
	if id := strings.TrimSpace(incidentID); id != "" {
		return id + ":summary"
	}
	return "summary"
}

// ChatSessionKey derives the durable session key for a conversation.
func ChatSessionKey(conversationID string) string {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		id = "default"
	}
	return id + ":chat"
}

// RuntimeSessionID returns a fresh per-invocation id under a durable key.
func RuntimeSessionID(durable string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return durable + runtimeMarker + token
}
