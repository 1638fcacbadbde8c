// Package export renders read-only projections of a document: the raw
// values, a machine-checkable schema description, and human-readable status
// reports. Exporters never mutate the model; every view can be regenerated
// at will.
package export

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Exporter renders one named view of a document.
type Exporter interface {
	Name() string
	Export(doc *schema.Document) ([]byte, error)
}

// Registry stores exporters by name, providing discovery and duplication
// safeguards.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		exporters: make(map[string]Exporter),
	}
}

// Register adds an exporter by its Name(). Duplicate names return an error.
func (r *Registry) Register(exporter Exporter) error {
	if exporter == nil {
		return fmt.Errorf("export: exporter is required")
	}
	name := exporter.Name()
	if name == "" {
		return fmt.Errorf("export: exporter name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exporters[name]; exists {
		return fmt.Errorf("export: exporter %q already registered", name)
	}

	r.exporters[name] = exporter
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(exporter Exporter) {
	if err := r.Register(exporter); err != nil {
		panic(err)
	}
}

// Get retrieves an exporter by name.
func (r *Registry) Get(name string) (Exporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exporter, ok := r.exporters[name]
	if !ok {
		return nil, fmt.Errorf("export: exporter %q not found", name)
	}
	return exporter, nil
}

// List returns a sorted list of exporter names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether an exporter is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.exporters[name]
	return ok
}

// DefaultRegistry wires the built-in views: values, schema, and the two
// report flavors.
func DefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	registry.MustRegister(&ValuesExporter{})
	registry.MustRegister(&SchemaExporter{})

	for _, format := range []ReportFormat{ReportMarkdown, ReportHTML} {
		report, err := NewReport(format)
		if err != nil {
			return nil, err
		}
		registry.MustRegister(report)
	}
	return registry, nil
}
