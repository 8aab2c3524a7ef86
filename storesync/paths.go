package storesync

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"github.com/sirupsen/logrus"
)

// PathResolver discovers which of a resource's candidate collection paths a
// repository deployment actually exposes. Each logical resource is resolved
// once with a minimal probe query; the winner is cached for the process
// lifetime so discovery never becomes a per-request cost.
type PathResolver struct {
	repo RemoteClient

	mu       sync.Mutex
	resolved map[string]string
}

func NewPathResolver(repo RemoteClient) *PathResolver {
	return &PathResolver{
		repo:     repo,
		resolved: map[string]string{},
	}
}

// Resolve returns the verified collection path for the named resource,
// probing the ordered candidates on first use.
func (p *PathResolver) Resolve(ctx context.Context, name string, candidates []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path, ok := p.resolved[name]; ok {
		return path, nil
	}

	probe := url.Values{}
	probe.Set("limit", "1")

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		tried = append(tried, candidate)
		if _, err := p.repo.Get(ctx, candidate, probe); err != nil {
			continue
		}
		p.resolved[name] = candidate
		config.GetLogger().WithFields(logrus.Fields{
			"resource": name,
			"path":     candidate,
			"tried":    len(tried),
		}).Info("resolved repository collection path")
		return candidate, nil
	}

	return "", fmt.Errorf("no collection path for %s (tried %s)", name, strings.Join(tried, ", "))
}

// Forget drops a cached resolution so the next use re-probes. Re-resolution
// is an explicit, rare operation.
func (p *PathResolver) Forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resolved, name)
}
