// Package prometheus answers PromQL questions from the agent through the
// Prometheus HTTP API.
package prometheus

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// Client implements outbound.MetricsBackend. Failures are returned as
// descriptor maps carrying an "error" key.
type Client struct {
	baseURL string
	api     promv1.API
	timeout time.Duration
	logger  *slog.Logger
}

var _ outbound.MetricsBackend = (*Client)(nil)

// New creates a Client. An empty or invalid rawURL yields a disabled client.
func New(rawURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	c := &Client{baseURL: NormalizeBaseURL(rawURL), timeout: timeout, logger: logger}
	if strings.TrimSpace(rawURL) != "" && c.baseURL == "" {
		logger.Warn("invalid prometheus url, prometheus tools disabled", "url", rawURL)
	}
	if c.baseURL == "" {
		return c, nil
	}

	client, err := api.NewClient(api.Config{Address: c.baseURL})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}
	c.api = promv1.NewAPI(client)
	return c, nil
}

// NormalizeBaseURL adds a missing http scheme and strips trailing slashes.
// It returns "" for values that do not parse into scheme and host.
func NormalizeBaseURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.TrimRight(value, "/")
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) endpoint() map[string]any {
	return map[string]any{"base_url": c.baseURL}
}

func (c *Client) DescribeEndpoint() map[string]any {
	if !c.Enabled() {
		return map[string]any{"warning": "prometheus url not configured"}
	}
	return map[string]any{"endpoint": c.endpoint()}
}

// ListMetrics returns metric names, optionally filtered by a regular
// expression matched anywhere in the name.
func (c *Client) ListMetrics(ctx context.Context, match string) map[string]any {
	if !c.Enabled() {
		return c.DescribeEndpoint()
	}

	var pattern *regexp.Regexp
	if match != "" {
		re, err := regexp.Compile(match)
		if err != nil {
			return map[string]any{
				"error":   "invalid regex pattern",
				"detail":  err.Error(),
				"pattern": match,
			}
		}
		pattern = re
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	values, _, err := c.api.LabelValues(ctx, "__name__", nil, time.Time{}, time.Time{})
	if err != nil {
		c.logger.Warn("failed to list prometheus metrics", "error", err)
		return map[string]any{
			"error":    "failed to list Prometheus metrics",
			"detail":   err.Error(),
			"endpoint": c.endpoint(),
		}
	}

	metrics := make([]string, 0, len(values))
	for _, v := range values {
		name := string(v)
		if pattern != nil && !pattern.MatchString(name) {
			continue
		}
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	return map[string]any{
		"endpoint": c.endpoint(),
		"metrics":  metrics,
		"count":    len(metrics),
	}
}

// Query runs an instant query. at is RFC3339 or unix seconds; empty means now.
func (c *Client) Query(ctx context.Context, query, at string) map[string]any {
	if !c.Enabled() {
		return c.DescribeEndpoint()
	}

	ts := time.Now()
	if at != "" {
		parsed, err := parseTime(at)
		if err != nil {
			return map[string]any{
				"error":  "invalid query time",
				"detail": err.Error(),
				"time":   at,
			}
		}
		ts = parsed
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	value, warnings, err := c.api.Query(ctx, query, ts)
	if err != nil {
		c.logger.Warn("failed to query prometheus", "query", query, "error", err)
		return map[string]any{
			"error":    "failed to query Prometheus",
			"detail":   err.Error(),
			"endpoint": c.endpoint(),
			"query":    query,
		}
	}

	out := map[string]any{
		"endpoint": c.endpoint(),
		"query":    query,
		"data": map[string]any{
			"resultType": value.Type().String(),
			"result":     value,
		},
		"series": seriesCount(value),
	}
	if len(warnings) > 0 {
		out["warnings"] = []string(warnings)
	}
	return out
}

func seriesCount(value model.Value) int {
	switch v := value.(type) {
	case model.Vector:
		return len(v)
	case model.Matrix:
		return len(v)
	case *model.Scalar, *model.String:
		return 1
	default:
		return 0
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func parseTime(raw string) (time.Time, error) {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or unix seconds: %w", err)
	}
	return t, nil
}
