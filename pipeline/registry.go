package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/flowtag/contract"
	"github.com/vk/flowtag/internal/ctxlog"
)

// Registry maps stage-usable names to contract descriptors for a single
// application instance. It exists so declarative pipeline definitions can
// reference functions by name; descriptors themselves stay ordinary values.
type Registry struct {
	descriptors map[string]*contract.Descriptor
}

// NewRegistry creates and initializes a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*contract.Descriptor)}
}

// Register binds a descriptor to a name referenced by stage blocks.
func (r *Registry) Register(ctx context.Context, name string, d *contract.Descriptor) {
	if _, exists := r.descriptors[name]; exists {
		panic(fmt.Sprintf("descriptor with name '%s' already registered", name))
	}
	ctxlog.FromContext(ctx).Debug("Registering descriptor.", "name", name, "role", d.Role().String())
	r.descriptors[name] = d
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*contract.Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}
