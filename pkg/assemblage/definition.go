// Package assemblage is the composition kernel: a declaration model for
// injectable components, a container that materializes the dependency graph
// into singletons or transients, lifecycle orchestration, an event bus
// facade, and installation of transversal interceptors.
//
// A type becomes an assemblage by declaring a constructor and a Definition:
//
//	assemblage.MustDeclare[*App](NewApp, assemblage.Definition{
//		Inject: []assemblage.Injection{
//			assemblage.Bind[Database, *PostgresDB](),
//			assemblage.To[*UserService](),
//		},
//		Events: []string{"app:ready"},
//		Tags:   []string{"root"},
//	})
//
// A root assemblage is then built with an Assembler, which walks the
// transitive Inject lists, registers every participant, constructs instances
// in dependency order, runs lifecycle hooks, and installs the engaged
// transversals.
package assemblage

import (
	"context"

	"github.com/mwantia/assemblage/pkg/aop"
)

// Configuration is the free-form dictionary threaded to an entry at
// registration time and consumable by its constructor.
type Configuration map[string]any

// Metadata is the arbitrary key/value dictionary a definition forwards to
// its instance.
type Metadata map[string]any

// DisposeFunc tears down the container that constructed the receiver. It is
// handed to constructors that request it so an assemblage can trigger its own
// assembly's shutdown.
type DisposeFunc func(ctx context.Context) error

// RegisterHook runs once per registered class during registration, before
// any instance of the class exists.
type RegisterHook func(ctx *Context, cfg Configuration) error

// Definition describes what an assemblage injects, publishes, and accepts.
// The zero value is a valid definition: a singleton with no dependencies.
type Definition struct {
	// Transient makes Require return a fresh instance on every call.
	// The default lifetime is singleton.
	Transient bool

	// Inject lists the dependencies to register when this assemblage joins
	// a graph, in registration order.
	Inject []Injection

	// Use binds pre-built values under identifiers without construction.
	Use []Binding

	// Events lists the channel names this assemblage may emit on. Emitting
	// an undeclared channel fails.
	Events []string

	// Tags groups the assemblage for Tagged lookups.
	Tags []string

	// Metadata is forwarded verbatim to constructors that request it.
	Metadata Metadata

	// Params optionally overrides the source of individual constructor
	// parameter slots. Missing or nil entries fall back to Auto.
	Params []ParamSource

	// Engage names the transversals to install after the graph is built.
	// Only the root assemblage's Engage list is honored.
	Engage []aop.Transversal

	// OnRegister runs once for the class during registration.
	OnRegister RegisterHook
}

// normalizeDefinition validates def and returns a normalized copy: duplicate
// events and tags collapse, slices are copied so later caller mutation does
// not leak into the declaration.
func normalizeDefinition(def Definition) (Definition, error) {
	norm := def

	events, err := normalizeChannels(def.Events)
	if err != nil {
		return Definition{}, err
	}
	norm.Events = events
	norm.Tags = dedupStrings(def.Tags)

	norm.Inject = make([]Injection, len(def.Inject))
	for i, inj := range def.Inject {
		if inj.concrete == nil {
			return Definition{}, InvalidDefinitionError{Reason: "inject entry built outside To/Bind"}
		}
		if inj.abstract != nil && !inj.concrete.AssignableTo(inj.abstract) {
			return Definition{}, InvalidDefinitionError{
				Reason: inj.concrete.String() + " does not satisfy " + inj.abstract.String(),
			}
		}
		norm.Inject[i] = inj
	}

	norm.Use = make([]Binding, len(def.Use))
	for i, binding := range def.Use {
		if binding.identifier == nil {
			return Definition{}, InvalidDefinitionError{Reason: "use entry with nil identifier"}
		}
		if binding.value == nil {
			return Definition{}, InvalidDefinitionError{
				Reason: "use entry " + identifierName(binding.identifier) + " with nil value",
			}
		}
		norm.Use[i] = binding
	}

	norm.Params = make([]ParamSource, len(def.Params))
	copy(norm.Params, def.Params)

	norm.Engage = make([]aop.Transversal, len(def.Engage))
	copy(norm.Engage, def.Engage)

	return norm, nil
}

func normalizeChannels(channels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(channels))
	normalized := make([]string, 0, len(channels))
	for _, channel := range channels {
		if channel == "" {
			return nil, InvalidDefinitionError{Reason: "empty event channel name"}
		}
		if _, exists := seen[channel]; exists {
			continue
		}
		seen[channel] = struct{}{}
		normalized = append(normalized, channel)
	}
	return normalized, nil
}

func dedupStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func mergeConfiguration(base, override Configuration) Configuration {
	if len(override) == 0 {
		return base
	}
	merged := make(Configuration, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		merged[key] = value
	}
	return merged
}
