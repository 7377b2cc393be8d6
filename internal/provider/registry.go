package provider

import (
	"fmt"
	"sort"
)

// Registry maps provider codes to their capability handles. Registration
// happens once at process start; lookups afterwards are read-only, so no
// locking is needed.
type Registry struct {
	services map[string]Service
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{services: map[string]Service{}}
}

// Register adds a provider under the given code, replacing any previous
// registration for that code.
func (r *Registry) Register(code string, svc Service) {
	r.services[code] = svc
}

// Get resolves a provider code to its handle. Fails with ErrUnknownProvider
// for codes that were never registered.
func (r *Registry) Get(code string) (Service, error) {
	svc, ok := r.services[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, code)
	}
	return svc, nil
}

// Codes returns the registered provider codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.services))
	for code := range r.services {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
