// Package hosts holds the resolvers that know how a given site marks up
// code views and text fields.
package hosts

import (
	"fmt"
	"sort"
	"sync"

	"codeintel/internal/codeview"
	"codeintel/internal/errors"
	"codeintel/internal/textfield"
	"codeintel/internal/views"
)

// Host is the resolver set for one kind of page.
type Host struct {
	Name               string
	CodeViewResolvers  []views.Resolver[*codeview.ResolvedCodeView]
	TextFieldResolvers []views.Resolver[*textfield.View]
}

type Registry struct {
	mu    sync.RWMutex
	hosts map[string]Host
}

func NewRegistry() *Registry {
	return &Registry{hosts: make(map[string]Host)}
}

func (r *Registry) Register(h Host) error {
	if h.Name == "" {
		return errors.ValidationError("host name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hosts[h.Name]; ok {
		return errors.ValidationError(fmt.Sprintf("host already registered: %s", h.Name), h.Name)
	}
	r.hosts[h.Name] = h
	return nil
}

func (r *Registry) Lookup(name string) (Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hosts[name]
	if !ok {
		return Host{}, errors.NotFound(fmt.Sprintf("unknown host: %s", name))
	}
	return h, nil
}

// Names lists registered hosts in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hosts))
	for name := range r.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a registry with the generic hosts.
func Builtin(tabWidth int) *Registry {
	r := NewRegistry()
	// Names are distinct, so registration cannot fail.
	_ = r.Register(Generic())
	_ = r.Register(GenericTabs(tabWidth))
	return r
}
