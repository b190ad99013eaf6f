package source

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/config"
)

// Registry maps source names to their adapters.
type Registry struct {
	sources map[string]Source
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry with every adapter configured from cfg.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{sources: make(map[string]Source)}
	r.Register(&Votes{BaseURL: cfg.Sources.Votes.BaseURL})
	r.Register(&FloorUpdates{URL: cfg.Sources.Floor.BaseURL})
	r.Register(&GAOReports{BaseURL: cfg.Sources.GAO.BaseURL, Days: cfg.Sources.GAO.Days})
	r.Register(&BillText{})
	return r
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	name := s.Name()
	if _, ok := r.sources[name]; !ok {
		r.order = append(r.order, name)
	}
	r.sources[name] = s
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q", name)
	}
	return s, nil
}

// Select returns the named sources in the order given. "all" or no names
// selects every source in registration order.
func (r *Registry) Select(names []string) ([]Source, error) {
	if len(names) == 0 || (len(names) == 1 && names[0] == "all") {
		return r.All(), nil
	}
	out := make([]Source, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// All returns every registered source.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// Names returns the registered source names.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
