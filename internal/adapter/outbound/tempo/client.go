// Package tempo searches and fetches distributed traces from Grafana Tempo.
package tempo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kube-rca/agent/internal/adapter/outbound/prometheus"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

const defaultSearchLimit = 5

// Client implements outbound.TraceBackend over the Tempo HTTP API. Requests
// that 404 are retried under the /tempo path prefix used by gateway setups.
type Client struct {
	baseURL    string
	tenantID   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ outbound.TraceBackend = (*Client)(nil)

// New creates a Client. An empty or invalid rawURL yields a disabled client.
func New(rawURL, tenantID string, timeout time.Duration, logger *slog.Logger) *Client {
	c := &Client{
		baseURL:    prometheus.NormalizeBaseURL(rawURL),
		tenantID:   strings.TrimSpace(tenantID),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if strings.TrimSpace(rawURL) != "" && c.baseURL == "" {
		logger.Warn("invalid tempo url, tempo tools disabled", "url", rawURL)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) endpoint() map[string]any {
	return map[string]any{"base_url": c.baseURL, "tenant_id": c.tenantID}
}

func (c *Client) DescribeEndpoint() map[string]any {
	if !c.Enabled() {
		return map[string]any{"warning": "tempo url not configured"}
	}
	return map[string]any{"endpoint": c.endpoint()}
}

// SearchTraces runs a TraceQL search. Start and end accept unix seconds or
// RFC3339 and are sent as unix seconds.
func (c *Client) SearchTraces(ctx context.Context, search outbound.TraceSearch) map[string]any {
	if !c.Enabled() {
		return c.DescribeEndpoint()
	}

	limit := search.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params := url.Values{}
	params.Set("q", search.Query)
	params.Set("start", normalizeSearchTime(search.Start))
	params.Set("end", normalizeSearchTime(search.End))
	params.Set("limit", strconv.Itoa(limit))

	window := map[string]any{"start": search.Start, "end": search.End}
	payload, reqErr := c.getWithFallback(ctx, []string{"/api/search", "/tempo/api/search"}, params)
	if reqErr != nil {
		return map[string]any{
			"error":    "failed to search tempo traces",
			"detail":   reqErr.descriptor(),
			"endpoint": c.endpoint(),
			"query":    search.Query,
			"window":   window,
		}
	}

	traces := extractTraceSummaries(payload)
	return map[string]any{
		"endpoint":    c.endpoint(),
		"query":       search.Query,
		"window":      window,
		"trace_count": len(traces),
		"traces":      traces,
		"data":        payload,
	}
}

// GetTrace fetches one trace by id.
func (c *Client) GetTrace(ctx context.Context, traceID string) map[string]any {
	if !c.Enabled() {
		return c.DescribeEndpoint()
	}

	escaped := url.PathEscape(traceID)
	payload, reqErr := c.getWithFallback(ctx, []string{"/api/traces/" + escaped, "/tempo/api/traces/" + escaped}, nil)
	if reqErr != nil {
		return map[string]any{
			"error":    "failed to get tempo trace",
			"detail":   reqErr.descriptor(),
			"endpoint": c.endpoint(),
			"trace_id": traceID,
		}
	}
	return map[string]any{
		"endpoint": c.endpoint(),
		"trace_id": traceID,
		"data":     payload,
	}
}

// requestError describes a failed Tempo call.
type requestError struct {
	StatusCode int
	Reason     string
	URL        string
	Body       string
}

func (e *requestError) descriptor() map[string]any {
	out := map[string]any{"reason": e.Reason, "url": e.URL}
	if e.StatusCode != 0 {
		out["status_code"] = e.StatusCode
	}
	if e.Body != "" {
		out["body"] = e.Body
	}
	return out
}

func (c *Client) getWithFallback(ctx context.Context, paths []string, params url.Values) (any, *requestError) {
	var last *requestError
	for _, path := range paths {
		payload, err := c.getJSON(ctx, path, params)
		if err == nil {
			return payload, nil
		}
		last = err
		if err.StatusCode != http.StatusNotFound {
			return nil, err
		}
	}
	return nil, last
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values) (any, *requestError) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &requestError{Reason: err.Error(), URL: target}
	}
	req.Header.Set("Accept", "application/json")
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to query tempo", "url", target, "error", err)
		return nil, &requestError{Reason: err.Error(), URL: target}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &requestError{Reason: fmt.Sprintf("reading response: %v", err), URL: target}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("tempo http error", "status", resp.StatusCode, "url", target)
		snippet := string(body)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, &requestError{
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
			URL:        target,
			Body:       snippet,
		}
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &requestError{Reason: "failed to decode tempo response: " + err.Error(), URL: target}
	}
	switch payload.(type) {
	case map[string]any, []any:
		return payload, nil
	}
	return nil, &requestError{Reason: "unexpected tempo payload type", URL: target}
}

func extractTraceSummaries(payload any) []map[string]any {
	var entries []any
	switch p := payload.(type) {
	case map[string]any:
		for _, key := range []string{"traces", "data", "results"} {
			if list, ok := p[key].([]any); ok {
				entries = list
				break
			}
		}
	case []any:
		entries = p
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		traceID := firstNonEmpty(entry, "traceID", "traceId", "trace_id", "id")
		if traceID == nil {
			continue
		}
		summary := map[string]any{
			"trace_id":             traceID,
			"root_service_name":    firstNonEmpty(entry, "rootServiceName", "root_service_name", "serviceName", "service_name"),
			"root_trace_name":      firstNonEmpty(entry, "rootTraceName", "root_trace_name", "traceName", "trace_name"),
			"start_time_unix_nano": firstNonEmpty(entry, "startTimeUnixNano", "start_time_unix_nano"),
			"duration_ms":          firstNonEmpty(entry, "durationMs", "duration_ms"),
		}
		if spanSet, ok := entry["spanSet"]; ok && spanSet != nil {
			summary["span_set"] = spanSet
		}
		out = append(out, summary)
	}
	return out
}

func firstNonEmpty(entry map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := entry[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return v
	}
	return nil
}

// normalizeSearchTime converts RFC3339 or fractional unix values into whole
// unix seconds. Unparseable input is passed through unchanged.
func normalizeSearchTime(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return raw
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return strconv.FormatInt(t.Unix(), 10)
		}
	}
	return raw
}

// TraceFilter narrows a TraceQL query. Empty fields are ignored.
type TraceFilter struct {
	ServiceName string
	Namespace   string
	SpanName    string
	// Status is one of error, ok or unset.
	Status string
}

var errInvalidStatus = errors.New("status must be one of error, ok, unset")

// BuildTraceQL composes a TraceQL span selector from filter. With no
// filters it returns "{}".
func BuildTraceQL(f TraceFilter) (string, error) {
	var filters []string
	if f.ServiceName != "" {
		filters = append(filters, fmt.Sprintf("resource.service.name = %s", quote(f.ServiceName)))
	}
	if f.Namespace != "" {
		filters = append(filters, fmt.Sprintf("resource.k8s.namespace.name = %s", quote(f.Namespace)))
	}
	if f.SpanName != "" {
		filters = append(filters, fmt.Sprintf("name = %s", quote(f.SpanName)))
	}
	if f.Status != "" {
		status := strings.ToLower(f.Status)
		switch status {
		case "error", "ok", "unset":
			filters = append(filters, "status = "+status)
		default:
			return "", errInvalidStatus
		}
	}
	if len(filters) == 0 {
		return "{}", nil
	}
	return "{ " + strings.Join(filters, " && ") + " }", nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
