//go:build discovery

package runtimeselect

import (
	"context"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

const (
	discoveryLabelSelector = "component=runtime"
	runtimeLabelKey        = "runtime"
	discoveryCacheTTL      = 30 * time.Second
	servicePrefix          = "svc-"
)

// keywordRule is one entry of the keyword-match tier: any language_title
// containing one of terms resolves to kind.
type keywordRule struct {
	terms []string
	kind  Kind
}

var keywordRules = []keywordRule{
	{terms: []string{"nodejs", "node", "javascript", "js"}, kind: KindNodeJS},
	{terms: []string{"python", "py"}, kind: KindPython},
	{terms: []string{"rust", "rs"}, kind: KindRust},
}

// discoveryCacheEntry mirrors spec.md's ServiceDiscoveryCache: a resolved
// service-name -> Kind map plus the time it was built, stale after
// discoveryCacheTTL.
type discoveryCacheEntry struct {
	services    map[string]Kind
	lastUpdated time.Time
}

func (e discoveryCacheEntry) stale(now time.Time) bool {
	return now.Sub(e.lastUpdated) > discoveryCacheTTL
}

// DiscoverySelector resolves a language_title to a Kind by listing
// Kubernetes Services labelled component=runtime in a namespace, reading
// each one's runtime label, and matching the query against the resulting
// service-name -> Kind map with a three-tier lookup: exact service match,
// then service-prefix match, then keyword match. A miss at all three
// tiers falls back to prefix matching; a miss there too is a bad-request.
type DiscoverySelector struct {
	clientset kubernetes.Interface
	namespace string
	fallback  PrefixSelector

	mu    sync.RWMutex
	cache discoveryCacheEntry
}

// NewDiscoverySelector builds an in-cluster Kubernetes client. It fails at
// construction if no in-cluster configuration is available.
func NewDiscoverySelector(namespace string) (*DiscoverySelector, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, lambdaerr.Config("discovery selector: no in-cluster kubernetes config", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, lambdaerr.Config("discovery selector: build kubernetes client", err)
	}

	return &DiscoverySelector{
		clientset: clientset,
		namespace: namespace,
	}, nil
}

// newDiscoverySelectorWithClient builds a selector around an injected
// client, for tests driven by k8s.io/client-go/kubernetes/fake.
func newDiscoverySelectorWithClient(clientset kubernetes.Interface, namespace string) *DiscoverySelector {
	return &DiscoverySelector{clientset: clientset, namespace: namespace}
}

func (s *DiscoverySelector) Select(languageTitle string) (Kind, error) {
	title := normalize(languageTitle)

	services, err := s.services()
	if err != nil {
		return "", err
	}

	if kind, ok := services[title]; ok {
		return kind, nil
	}

	if strings.HasPrefix(title, servicePrefix) {
		rest := strings.TrimPrefix(title, servicePrefix)
		for name, kind := range services {
			if rest == name || strings.HasPrefix(rest, name) {
				return kind, nil
			}
		}
	}

	for _, rule := range keywordRules {
		for _, term := range rule.terms {
			if strings.Contains(title, term) {
				return rule.kind, nil
			}
		}
	}

	return s.fallback.Select(languageTitle)
}

// services returns the cached service-name -> Kind map, refreshing it from
// the cluster API when stale.
func (s *DiscoverySelector) services() (map[string]Kind, error) {
	s.mu.RLock()
	entry := s.cache
	s.mu.RUnlock()
	if entry.services != nil && !entry.stale(time.Now()) {
		return entry.services, nil
	}

	refreshed, err := s.listServices()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = discoveryCacheEntry{services: refreshed, lastUpdated: time.Now()}
	s.mu.Unlock()

	return refreshed, nil
}

func (s *DiscoverySelector) listServices() (map[string]Kind, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	list, err := s.clientset.CoreV1().Services(s.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: discoveryLabelSelector,
	})
	if err != nil {
		return nil, lambdaerr.Runtime("discovery selector: list services", err)
	}

	services := make(map[string]Kind, len(list.Items))
	for _, svc := range list.Items {
		kind, ok := svc.Labels[runtimeLabelKey]
		if !ok {
			continue
		}
		services[normalize(svc.Name)] = Kind(kind)
	}
	return services, nil
}

var _ Selector = (*DiscoverySelector)(nil)
