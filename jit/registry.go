package jit

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry resolves instance identifiers to live instances. Identifiers are
// scoped by domain, positive, and dense enough that iterating 1..MaxID is
// cheap. Get returns nil for an identifier that is not registered.
type Registry interface {
	Get(domain string, id uint32) any
	MaxID(domain string) uint32
}

// DomainRegistry is a goroutine-safe Registry. Freed identifiers are reused
// lowest-first, so a domain's identifiers stay dense.
type DomainRegistry struct {
	mu      sync.RWMutex
	domains map[string][]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *DomainRegistry {
	return &DomainRegistry{domains: make(map[string][]any)}
}

// Put registers inst in domain and returns its identifier.
func (r *DomainRegistry) Put(domain string, inst any) (uint32, error) {
	if inst == nil {
		return 0, errors.Errorf("registry: cannot register a nil instance in domain %q", domain)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.domains[domain]
	for i, s := range slots {
		if s == nil {
			slots[i] = inst
			return uint32(i + 1), nil
		}
	}
	r.domains[domain] = append(slots, inst)
	return uint32(len(slots) + 1), nil
}

// Remove unregisters the instance with the given identifier.
func (r *DomainRegistry) Remove(domain string, id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.domains[domain]
	if id == 0 || int(id) > len(slots) || slots[id-1] == nil {
		return errors.Errorf("registry: no instance %d in domain %q", id, domain)
	}
	slots[id-1] = nil

	// Trim trailing free slots so MaxID stays tight.
	n := len(slots)
	for n > 0 && slots[n-1] == nil {
		n--
	}
	r.domains[domain] = slots[:n]
	return nil
}

// Get implements Registry.
func (r *DomainRegistry) Get(domain string, id uint32) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots := r.domains[domain]
	if id == 0 || int(id) > len(slots) {
		return nil
	}
	return slots[id-1]
}

// MaxID implements Registry.
func (r *DomainRegistry) MaxID(domain string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint32(len(r.domains[domain]))
}

// Len returns the number of live instances in domain.
func (r *DomainRegistry) Len(domain string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.domains[domain] {
		if s != nil {
			n++
		}
	}
	return n
}
