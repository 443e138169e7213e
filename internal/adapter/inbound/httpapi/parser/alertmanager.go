// Package parser decodes alert webhook payloads.
package parser

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi/middleware"
	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/inbound"
)

// SignatureHeader carries the HMAC-SHA256 signature of the body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	errMissingSignature = errors.New("missing " + SignatureHeader + " header")
	errBadSignature     = errors.New("invalid HMAC signature")
)

// alertManagerPayload is the Alertmanager webhook group payload.
type alertManagerPayload struct {
	Version           string              `json:"version"`
	GroupKey          string              `json:"groupKey"`
	TruncatedAlerts   int                 `json:"truncatedAlerts"`
	Status            string              `json:"status"`
	Receiver          string              `json:"receiver"`
	GroupLabels       map[string]string   `json:"groupLabels"`
	CommonLabels      map[string]string   `json:"commonLabels"`
	CommonAnnotations map[string]string   `json:"commonAnnotations"`
	ExternalURL       string              `json:"externalURL"`
	Alerts            []alertManagerAlert `json:"alerts"`
}

type alertManagerAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// AlertManagerParser parses Alertmanager webhook payloads.
type AlertManagerParser struct{}

var _ inbound.WebhookParser = (*AlertManagerParser)(nil)

// NewAlertManagerParser creates a new AlertManagerParser.
func NewAlertManagerParser() *AlertManagerParser {
	return &AlertManagerParser{}
}

func (a *AlertManagerParser) Source() string {
	return "alertmanager"
}

// ValidateSignature checks the X-Hub-Signature-256 header against the
// HMAC-SHA256 of the body. An empty secret accepts every request.
func (a *AlertManagerParser) ValidateSignature(r *http.Request, secret string) error {
	if secret == "" {
		return nil
	}
	sigHeader := r.Header.Get(SignatureHeader)
	if sigHeader == "" {
		return errMissingSignature
	}
	const prefix = "sha256="
	if !strings.HasPrefix(sigHeader, prefix) {
		return fmt.Errorf("invalid signature format")
	}
	providedSig, err := hex.DecodeString(strings.TrimPrefix(sigHeader, prefix))
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	body, ok := middleware.RawBody(r.Context())
	if !ok {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("reading request body for signature validation: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	if !hmac.Equal(Sign(body, secret), providedSig) {
		return errBadSignature
	}
	return nil
}

// Sign returns the HMAC-SHA256 of body.
func Sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// Parse extracts one alert per entry of the group payload. Common labels
// and annotations are merged in; per-alert values take precedence.
func (a *AlertManagerParser) Parse(_ context.Context, r *http.Request) ([]model.Alert, error) {
	var payload alertManagerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("alertmanager: failed to decode JSON: %w", err)
	}

	alerts := make([]model.Alert, 0, len(payload.Alerts))
	for _, am := range payload.Alerts {
		labels := make(map[string]string, len(payload.CommonLabels)+len(am.Labels))
		maps.Copy(labels, payload.CommonLabels)
		maps.Copy(labels, am.Labels)

		annotations := make(map[string]string, len(payload.CommonAnnotations)+len(am.Annotations))
		maps.Copy(annotations, payload.CommonAnnotations)
		maps.Copy(annotations, am.Annotations)

		status := strings.ToLower(strings.TrimSpace(am.Status))
		if status == "" {
			status = strings.ToLower(strings.TrimSpace(payload.Status))
		}

		alert := model.Alert{
			Status:       status,
			Labels:       labels,
			Annotations:  annotations,
			StartsAt:     timePtr(am.StartsAt),
			EndsAt:       timePtr(am.EndsAt),
			GeneratorURL: am.GeneratorURL,
			Fingerprint:  am.Fingerprint,
		}
		if alert.Fingerprint == "" {
			alert.Fingerprint = labelsFingerprint(labels)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// timePtr maps Alertmanager's zero time to nil.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// labelsFingerprint computes a deterministic hash of the label set.
func labelsFingerprint(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write([]byte(labels[k]))
		h.Write([]byte(","))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
