package ratelimit

import (
	"fmt"
	"sort"
	"sync"

	"ratelimiter/internal/models"
)

// Registry holds the named policies available to checks, seeded from
// configuration and mutable at runtime through the admin API. All methods
// are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	policies    map[string]models.Policy
	defaultName string
}

// NewRegistry creates a registry seeded with the configured policies. Every
// policy must already have passed validation (config load validates them).
func NewRegistry(policies []models.Policy, defaultName string) *Registry {
	r := &Registry{
		policies:    make(map[string]models.Policy, len(policies)),
		defaultName: defaultName,
	}
	for _, p := range policies {
		r.policies[p.Name] = p
	}
	return r
}

// Get returns the named policy.
func (r *Registry) Get(name string) (models.Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// Default returns the policy the enforcement middleware applies, or false
// when no default is configured.
func (r *Registry) Default() (models.Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return models.Policy{}, false
	}
	p, ok := r.policies[r.defaultName]
	return p, ok
}

// Resolve returns the named policy, falling back to the default when name
// is empty.
func (r *Registry) Resolve(name string) (models.Policy, bool) {
	if name == "" {
		return r.Default()
	}
	return r.Get(name)
}

// List returns all policies sorted by name.
func (r *Registry) List() []models.Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Set validates and stores a policy, creating or replacing it. An updated
// policy applies to the next decision; existing key states carry over.
func (r *Registry) Set(p models.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Name] = p
	return nil
}

// Delete removes a policy. The configured default policy cannot be removed.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[name]; !ok {
		return fmt.Errorf("policy %q not found", name)
	}
	if name == r.defaultName {
		return fmt.Errorf("policy %q is the default policy and cannot be deleted", name)
	}
	delete(r.policies, name)
	return nil
}
