package cypher

import (
	"fmt"
	"reflect"
)

// Registry is the per-query parameter table. Every literal value bound into
// a query is registered here; structurally equal values (same type, same
// content) collapse to a single generated name so a repeated literal isn't
// sent to the server twice under two names.
type Registry struct {
	order  []string
	values map[string]any
}

// NewRegistry returns an empty parameter table.
func NewRegistry() *Registry {
	return &Registry{values: map[string]any{}}
}

// Register records v and returns its parameter name ("p1", "p2", …),
// reusing an existing name if v structurally equals an already-registered
// value.
func (r *Registry) Register(v any) string {
	for _, name := range r.order {
		if reflect.DeepEqual(r.values[name], v) {
			return name
		}
	}
	name := fmt.Sprintf("p%d", len(r.order)+1)
	r.order = append(r.order, name)
	r.values[name] = v
	return name
}

// Names returns registered parameter names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Values materializes the registry into the map[string]any the Bolt RUN
// message carries as its parameters field.
func (r *Registry) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// merge absorbs other's registrations into r, returning a rename table
// (other's name -> r's name) for any entries that got a new name because
// their value wasn't already present in r. Values already present in r
// collapse onto r's existing name, preserving value identity across the
// merge as required by query composition.
func (r *Registry) merge(other *Registry) map[string]string {
	renames := make(map[string]string, len(other.order))
	for _, name := range other.order {
		newName := r.Register(other.values[name])
		if newName != name {
			renames[name] = newName
		}
	}
	return renames
}
