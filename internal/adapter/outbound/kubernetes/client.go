package kubernetes

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Clients bundles the API clients used by the reader.
type Clients struct {
	Core    kubernetes.Interface
	Metrics metricsv.Interface
	Dynamic dynamic.Interface
}

// NewRESTConfig builds a client config from in-cluster settings or a kubeconfig file.
func NewRESTConfig(inCluster bool, kubeconfigPath string) (*rest.Config, error) {
	var config *rest.Config
	var err error

	if inCluster {
		config, err = rest.InClusterConfig()
	} else {
		loading := clientcmd.NewDefaultClientConfigLoadingRules()
		if kubeconfigPath != "" {
			loading.ExplicitPath = kubeconfigPath
		}
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loading, &clientcmd.ConfigOverrides{}).ClientConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("building k8s config: %w", err)
	}
	return config, nil
}

// NewClients creates the core, metrics and dynamic clients from one config.
func NewClients(inCluster bool, kubeconfigPath string) (Clients, error) {
	config, err := NewRESTConfig(inCluster, kubeconfigPath)
	if err != nil {
		return Clients{}, err
	}

	core, err := kubernetes.NewForConfig(config)
	if err != nil {
		return Clients{}, fmt.Errorf("creating core client: %w", err)
	}
	metrics, err := metricsv.NewForConfig(config)
	if err != nil {
		return Clients{}, fmt.Errorf("creating metrics client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return Clients{}, fmt.Errorf("creating dynamic client: %w", err)
	}
	return Clients{Core: core, Metrics: metrics, Dynamic: dyn}, nil
}
