//go:build !discovery

package runtimeselect

import "github.com/lambda-microservice/controller/pkg/lambdaerr"

// DiscoverySelector is unavailable in this build. Build with -tags discovery
// to enable Kubernetes-backed selection.
type DiscoverySelector struct{}

// NewDiscoverySelector always fails in builds without the discovery tag, so
// the core routing path never depends on the Kubernetes client.
func NewDiscoverySelector(namespace string) (*DiscoverySelector, error) {
	return nil, lambdaerr.Config("discovery selector requires building with -tags discovery", nil)
}

func (s *DiscoverySelector) Select(languageTitle string) (Kind, error) {
	return "", lambdaerr.Config("discovery selector is not built into this binary", nil)
}
