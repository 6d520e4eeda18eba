package assemblage

import (
	"reflect"

	"github.com/mwantia/assemblage/pkg/events"
)

// Context is the read-only facade an assemblage receives to interact with
// its assembly: lookups, tag queries, the event bus, and the transversal
// invocation facade.
//
// Every entry owns its own Context so channel discipline can be enforced
// against the emitting assemblage's declaration.
type Context struct {
	c     *container
	owner *entry
}

// Has reports whether an entry exists for the identifier.
func (ctx *Context) Has(id any) bool {
	return ctx.c.has(id)
}

// Concrete returns the canonical concrete type for an identifier.
func (ctx *Context) Concrete(id any) (reflect.Type, error) {
	return ctx.c.concreteOf(id)
}

// Require returns the instance for an identifier, constructing it on first
// use. An optional configuration override is merged on top of the registered
// configuration for this construction.
func (ctx *Context) Require(id any, cfg ...Configuration) (any, error) {
	var override Configuration
	if len(cfg) > 0 {
		override = cfg[0]
	}
	return ctx.c.require(id, override)
}

// Tagged returns all live singleton instances whose definitions list the
// tag, in registration order.
func (ctx *Context) Tagged(tag string) []any {
	return ctx.c.tagged(tag)
}

// On subscribes a listener to a channel. Listening does not require the
// channel to be declared.
func (ctx *Context) On(channel string, listener events.Listener) {
	ctx.c.bus.On(channel, listener)
}

// Off removes listeners from a channel; with none given the channel is
// cleared.
func (ctx *Context) Off(channel string, listeners ...events.Listener) {
	ctx.c.bus.Off(channel, listeners...)
}

// Emit publishes on a channel the owning assemblage declared. Emitting an
// undeclared channel fails with events.UnknownChannelError; listener panics
// are collected into the returned error without aborting delivery.
func (ctx *Context) Emit(channel string, args ...any) error {
	if !ctx.declared(channel) {
		return events.UnknownChannelError{Channel: channel}
	}
	return ctx.c.bus.Emit(channel, args...)
}

// Invoke calls a method on target through the assembly's transversal engine,
// running any advice chains installed for it.
func (ctx *Context) Invoke(target any, method string, args ...any) (any, error) {
	return ctx.c.engine.Invoke(target, method, args...)
}

func (ctx *Context) declared(channel string) bool {
	if ctx.owner == nil {
		return false
	}
	for _, declared := range ctx.owner.definition.Events {
		if declared == channel {
			return true
		}
	}
	return false
}

// Resolve returns the instance for type identifier T from the context,
// typed. It is the generic convenience over Context.Require.
func Resolve[T any](ctx *Context, cfg ...Configuration) (T, error) {
	var zero T

	instance, err := ctx.Require(Type[T](), cfg...)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, UnknownIdentifierError{Identifier: Type[T]().String()}
	}
	return typed, nil
}
