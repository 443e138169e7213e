package kubernetes

import (
	"context"
	"errors"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/masking"
)

const lastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

var errInvalidResource = errors.New("api version and resource are required")

// Manifest fetches one object of any resource type. Status, managed fields
// and the last-applied annotation are removed and Secret values are masked.
func (r *Reader) Manifest(ctx context.Context, ref outbound.ManifestRef) (map[string]any, error) {
	if r.dynamic == nil {
		return nil, ErrUnavailable
	}
	if ref.Version == "" || ref.Resource == "" || ref.Name == "" {
		return nil, errInvalidResource
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	gvr := schema.GroupVersionResource{Group: ref.Group, Version: ref.Version, Resource: ref.Resource}
	obj, err := r.resourceClient(gvr, ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting %s %s/%s: %w", gvr.String(), ref.Namespace, ref.Name, err)
	}
	return sanitizeManifest(obj), nil
}

// ListManifests lists objects of one resource type, sanitized like Manifest.
func (r *Reader) ListManifests(ctx context.Context, query outbound.ManifestQuery) ([]map[string]any, error) {
	if r.dynamic == nil {
		return nil, ErrUnavailable
	}
	if query.Version == "" || query.Resource == "" {
		return nil, errInvalidResource
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	gvr := schema.GroupVersionResource{Group: query.Group, Version: query.Version, Resource: query.Resource}
	opts := metav1.ListOptions{LabelSelector: query.LabelSelector}
	if query.Limit > 0 {
		opts.Limit = query.Limit
	}
	list, err := r.resourceClient(gvr, query.Namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing %s in %q: %w", gvr.String(), query.Namespace, err)
	}

	out := make([]map[string]any, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, sanitizeManifest(&list.Items[i]))
	}
	return out, nil
}

func (r *Reader) resourceClient(gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return r.dynamic.Resource(gvr)
	}
	return r.dynamic.Resource(gvr).Namespace(namespace)
}

func sanitizeManifest(obj *unstructured.Unstructured) map[string]any {
	m := obj.DeepCopy().Object
	delete(m, "status")

	if meta, ok := m["metadata"].(map[string]any); ok {
		delete(meta, "managedFields")
		if ann, ok := meta["annotations"].(map[string]any); ok {
			delete(ann, lastAppliedAnnotation)
			if len(ann) == 0 {
				delete(meta, "annotations")
			}
		}
	}

	if obj.GetKind() == "Secret" {
		for _, field := range []string{"data", "stringData"} {
			values, ok := m[field].(map[string]any)
			if !ok {
				continue
			}
			for k := range values {
				values[k] = masking.Token
			}
		}
	}
	return m
}
