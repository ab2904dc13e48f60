package pool

import (
	"sync"

	"github.com/flowcraft/core/errs"
)

// Registry holds one Pool per configured server name, giving the rest of
// the engine a single place to acquire a connection to any server by
// name without threading individual Pool references through call sites.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Register adds a configured Pool under its server name. Registering the
// same server name twice replaces the previous pool.
func (r *Registry) Register(p *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[p.cfg.ServerName] = p
}

// Pool returns the pool registered for serverName.
func (r *Registry) Pool(serverName string) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[serverName]
	if !ok {
		return nil, errs.Newf(errs.Validation, "mcp pool registry: unknown server %q", serverName).WithServer(serverName)
	}
	return p, nil
}

// Close closes every registered pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pools {
		_ = p.Close()
	}
	return nil
}
