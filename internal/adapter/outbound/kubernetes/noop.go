package kubernetes

import (
	"context"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// UnavailableReader stands in for the Reader when no cluster is configured,
// for example during local development. Every call fails with ErrUnavailable.
type UnavailableReader struct{}

var _ outbound.ClusterReader = UnavailableReader{}

func (UnavailableReader) PodStatus(context.Context, string, string) (*model.PodStatus, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) PodSpecSummary(context.Context, string, string) (map[string]any, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) PodEvents(context.Context, string, string) ([]model.PodEvent, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) NamespaceEvents(context.Context, string) ([]model.PodEvent, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) ClusterEvents(context.Context) ([]model.PodEvent, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) PreviousLogs(context.Context, string, string) ([]model.LogSnippet, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) PodLogs(context.Context, string, string, model.LogOptions) ([]model.LogSnippet, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) WorkloadStatus(context.Context, string, string) (map[string]any, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) NodeStatus(context.Context, string) (map[string]any, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) PodMetrics(context.Context, string, string) (map[string]any, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) NodeMetrics(context.Context, string) (map[string]any, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) Manifest(context.Context, outbound.ManifestRef) (map[string]any, error) {
	return nil, ErrUnavailable
}

func (UnavailableReader) ListManifests(context.Context, outbound.ManifestQuery) ([]map[string]any, error) {
	return nil, ErrUnavailable
}
