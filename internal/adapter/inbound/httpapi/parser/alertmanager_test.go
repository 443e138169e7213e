package parser_test

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi/parser"
)

const firingPayload = `{
	"version": "4",
	"groupKey": "{}:{alertname=\"KubePodCrashLooping\"}",
	"status": "firing",
	"receiver": "kube-rca",
	"groupLabels": {"alertname": "KubePodCrashLooping"},
	"commonLabels": {"cluster": "prod-eu", "severity": "warning"},
	"commonAnnotations": {"runbook_url": "https://runbooks/crashloop"},
	"externalURL": "http://alertmanager",
	"alerts": [
		{
			"status": "firing",
			"labels": {
				"alertname": "KubePodCrashLooping",
				"severity": "critical",
				"namespace": "payments",
				"pod": "api-7d9f"
			},
			"annotations": {
				"summary": "Pod is crash looping",
				"runbook_url": "https://runbooks/override"
			},
			"startsAt": "2026-01-01T00:00:00Z",
			"endsAt": "0001-01-01T00:00:00Z",
			"generatorURL": "http://prometheus/graph",
			"fingerprint": "aabbcc"
		}
	]
}`

func newRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/alertmanager", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAlertManagerParser_Source(t *testing.T) {
	if got := parser.NewAlertManagerParser().Source(); got != "alertmanager" {
		t.Errorf("expected 'alertmanager', got %q", got)
	}
}

func TestAlertManagerParser_Parse_Firing(t *testing.T) {
	alerts, err := parser.NewAlertManagerParser().Parse(context.Background(), newRequest(firingPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}

	a := alerts[0]
	if a.Status != "firing" {
		t.Errorf("status = %q, want firing", a.Status)
	}
	if a.Name() != "KubePodCrashLooping" || a.Namespace() != "payments" || a.PodName() != "api-7d9f" {
		t.Errorf("unexpected target labels: %v", a.Labels)
	}
	if a.Severity() != "critical" {
		t.Errorf("alert label should win over common label, got severity %q", a.Severity())
	}
	if a.Label("cluster") != "prod-eu" {
		t.Errorf("expected common label to be merged, got %v", a.Labels)
	}
	if a.Annotation("runbook_url") != "https://runbooks/override" {
		t.Errorf("alert annotation should win, got %q", a.Annotation("runbook_url"))
	}
	if a.Fingerprint != "aabbcc" {
		t.Errorf("fingerprint = %q, want aabbcc", a.Fingerprint)
	}
	if a.StartsAt == nil || a.StartsAt.Year() != 2026 {
		t.Errorf("startsAt = %v", a.StartsAt)
	}
	if a.EndsAt != nil {
		t.Errorf("zero endsAt should map to nil, got %v", a.EndsAt)
	}
	if a.GeneratorURL != "http://prometheus/graph" {
		t.Errorf("generatorURL = %q", a.GeneratorURL)
	}
}

func TestAlertManagerParser_Parse_ResolvedAndGroupStatus(t *testing.T) {
	payload := `{
		"status": "resolved",
		"alerts": [
			{
				"labels": {"alertname": "TestAlert"},
				"startsAt": "2026-01-01T00:00:00Z",
				"endsAt": "2026-01-01T01:00:00Z"
			}
		]
	}`

	alerts, err := parser.NewAlertManagerParser().Parse(context.Background(), newRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := alerts[0]
	if a.Status != "resolved" {
		t.Errorf("status = %q, want group status resolved", a.Status)
	}
	if a.EndsAt == nil {
		t.Error("expected EndsAt to be set")
	}
	if len(a.Fingerprint) != 16 {
		t.Errorf("expected fingerprint derived from labels, got %q", a.Fingerprint)
	}
}

func TestAlertManagerParser_Parse_FingerprintIsStable(t *testing.T) {
	payload := `{"alerts":[{"status":"firing","labels":{"b":"2","a":"1"}},{"status":"firing","labels":{"a":"1","b":"2"}}]}`

	alerts, err := parser.NewAlertManagerParser().Parse(context.Background(), newRequest(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Fingerprint != alerts[1].Fingerprint {
		t.Errorf("fingerprints differ: %q vs %q", alerts[0].Fingerprint, alerts[1].Fingerprint)
	}
}

func TestAlertManagerParser_Parse_InvalidJSON(t *testing.T) {
	if _, err := parser.NewAlertManagerParser().Parse(context.Background(), newRequest("{")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestAlertManagerParser_ValidateSignature(t *testing.T) {
	p := parser.NewAlertManagerParser()
	secret := "hook-secret"
	valid := "sha256=" + hex.EncodeToString(parser.Sign([]byte(firingPayload), secret))

	tests := []struct {
		name    string
		secret  string
		header  string
		wantErr bool
	}{
		{"no secret configured", "", "", false},
		{"missing header", secret, "", true},
		{"bad prefix", secret, "md5=abc", true},
		{"bad encoding", secret, "sha256=zz", true},
		{"wrong signature", secret, "sha256=" + hex.EncodeToString([]byte("nope")), true},
		{"valid", secret, valid, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(firingPayload)
			if tc.header != "" {
				req.Header.Set(parser.SignatureHeader, tc.header)
			}
			err := p.ValidateSignature(req, tc.secret)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateSignature() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestAlertManagerParser_ValidateSignature_KeepsBodyReadable(t *testing.T) {
	p := parser.NewAlertManagerParser()
	req := newRequest(firingPayload)
	req.Header.Set(parser.SignatureHeader, "sha256="+hex.EncodeToString(parser.Sign([]byte(firingPayload), "s")))

	if err := p.ValidateSignature(req, "s"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alerts, err := p.Parse(context.Background(), req)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("expected body to remain parseable, got %d alerts, err %v", len(alerts), err)
	}
}
