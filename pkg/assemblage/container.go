package assemblage

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/mwantia/assemblage/pkg/aop"
	"github.com/mwantia/assemblage/pkg/events"
	"github.com/mwantia/assemblage/pkg/metadata"
)

// entry is one registry record: an identifier bound to a concrete with its
// definition, configuration, lifetime, and (once resolved) instance.
type entry struct {
	identifier    any
	concrete      reflect.Type
	decl          *declaration
	definition    Definition
	configuration Configuration
	singleton     bool
	tags          []string

	instance    any
	resolved    bool
	initialized bool

	ctx *Context
}

// container owns the registry and the instance table for one build.
//
// Composition is single-threaded by design: registration and resolution run
// on the builder's goroutine, and user code only reads through the public
// context once the build returned. The event bus carries its own locking for
// runtime emission.
type container struct {
	log     *zap.Logger
	store   *metadata.Store
	bus     *events.Bus
	engine  *aop.Engine
	globals map[string]any

	entries    map[any]*entry
	byConcrete map[reflect.Type]*entry
	order      []*entry

	stack     []*entry
	initOrder []*entry

	buildCtx    context.Context
	disposeFn   DisposeFunc
	initialized bool
	disposed    bool
}

func newContainer(ctx context.Context, log *zap.Logger, store *metadata.Store, engine *aop.Engine, globals map[string]any) *container {
	c := &container{
		log:        log,
		store:      store,
		bus:        events.NewBus(),
		engine:     engine,
		globals:    globals,
		entries:    make(map[any]*entry),
		byConcrete: make(map[reflect.Type]*entry),
		buildCtx:   ctx,
	}
	c.disposeFn = c.dispose
	return c
}

// registerConcrete inserts an entry for a declared concrete under the given
// identifier, then walks the declaration's own Use and Inject lists
// depth-first. Identical re-registration is a silent no-op; the same
// identifier with a different concrete is rejected.
func (c *container) registerConcrete(id any, concrete reflect.Type, cfg Configuration) error {
	if existing, exists := c.entries[id]; exists {
		if existing.concrete == concrete {
			return nil
		}
		return DuplicateRegistrationError{Identifier: identifierName(id)}
	}

	decl, exists := declarationFor(c.store, concrete)
	if !exists {
		return NotDeclaredError{Type: concrete.String()}
	}

	e := &entry{
		identifier:    id,
		concrete:      concrete,
		decl:          decl,
		definition:    decl.def,
		configuration: cfg,
		singleton:     !decl.def.Transient,
		tags:          decl.def.Tags,
	}
	e.ctx = &Context{c: c, owner: e}
	c.insert(e)

	c.log.Debug("registered assemblage",
		zap.String("identifier", identifierName(id)),
		zap.String("concrete", concrete.String()),
		zap.Bool("singleton", e.singleton))

	for _, binding := range decl.def.Use {
		if err := c.bindUse(binding); err != nil {
			return err
		}
	}
	for _, inj := range decl.def.Inject {
		if err := c.registerConcrete(inj.identifier(), inj.concrete, inj.config); err != nil {
			return err
		}
	}

	return nil
}

// bindUse inserts a pre-built value. The entry behaves as an already
// resolved singleton with an empty definition. A second binding under an
// already-bound identifier is first-wins, matching the registration
// tie-break; values are never compared, they may be of uncomparable types.
func (c *container) bindUse(binding Binding) error {
	if _, exists := c.entries[binding.identifier]; exists {
		return nil
	}

	e := &entry{
		identifier: binding.identifier,
		concrete:   reflect.TypeOf(binding.value),
		singleton:  true,
		instance:   binding.value,
		resolved:   true,
	}
	e.ctx = &Context{c: c, owner: e}
	c.insert(e)

	c.log.Debug("bound instance",
		zap.String("identifier", identifierName(binding.identifier)))

	return nil
}

func (c *container) insert(e *entry) {
	c.entries[e.identifier] = e
	if e.concrete != nil {
		if _, exists := c.byConcrete[e.concrete]; !exists {
			c.byConcrete[e.concrete] = e
		}
	}
	c.order = append(c.order, e)
}

// lookup finds an entry by canonical identifier, falling back to the
// first-registered entry for a concrete type.
func (c *container) lookup(id any) *entry {
	key := normalizeIdentifier(id)
	if e, exists := c.entries[key]; exists {
		return e
	}
	if t, isType := key.(reflect.Type); isType {
		if e, exists := c.byConcrete[t]; exists {
			return e
		}
	}
	return nil
}

func (c *container) has(id any) bool {
	return c.lookup(id) != nil
}

func (c *container) concreteOf(id any) (reflect.Type, error) {
	e := c.lookup(id)
	if e == nil {
		return nil, UnknownIdentifierError{Identifier: identifierName(id)}
	}
	return e.concrete, nil
}

// require returns the instance for an identifier, constructing it (and,
// recursively, its dependencies) on first use. Singletons are cached;
// transient entries construct fresh on every call.
func (c *container) require(id any, override Configuration) (any, error) {
	e := c.lookup(id)
	if e == nil {
		return nil, UnknownIdentifierError{Identifier: identifierName(id)}
	}

	if e.resolved && e.singleton {
		return e.instance, nil
	}

	for _, frame := range c.stack {
		if frame == e {
			return nil, DependencyCycleError{Path: c.cyclePath(e)}
		}
	}
	c.stack = append(c.stack, e)
	defer func() {
		c.stack = c.stack[:len(c.stack)-1]
	}()

	cfg := mergeConfiguration(e.configuration, override)
	args, err := c.resolveArgs(e, cfg)
	if err != nil {
		return nil, err
	}

	instance, err := construct(e, args)
	if err != nil {
		return nil, err
	}

	c.log.Debug("constructed assemblage",
		zap.String("identifier", identifierName(e.identifier)),
		zap.Bool("singleton", e.singleton))

	if e.singleton {
		e.instance = instance
		e.resolved = true
		c.initOrder = append(c.initOrder, e)
		if c.initialized {
			if err := c.initEntry(instance, e); err != nil {
				return nil, err
			}
		}
	} else if err := c.initInstance(instance, e); err != nil {
		return nil, err
	}

	return instance, nil
}

func construct(e *entry, args []reflect.Value) (any, error) {
	out := e.decl.ctor.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("assemblage: constructing %s: %w",
			identifierName(e.identifier), out[1].Interface().(error))
	}
	return out[0].Interface(), nil
}

// initEntry runs OnInit for a singleton entry and records completion.
func (c *container) initEntry(instance any, e *entry) error {
	if err := c.initInstance(instance, e); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

func (c *container) initInstance(instance any, e *entry) error {
	init, implements := instance.(Initializer)
	if !implements {
		return nil
	}
	if err := init.OnInit(c.buildCtx); err != nil {
		return LifecycleError{Identifier: identifierName(e.identifier), Hook: "init", Err: err}
	}
	return nil
}

// runInitPhase fires OnInit over the construction post-order: every entry's
// transitive singleton dependencies completed their hook before the entry's
// own hook starts. A failure disposes the already-initialized prefix in
// reverse before surfacing.
func (c *container) runInitPhase(ctx context.Context) error {
	for _, e := range c.initOrder {
		if e.initialized {
			continue
		}
		if err := c.initEntry(e.instance, e); err != nil {
			c.log.Debug("init failed, unwinding",
				zap.String("identifier", identifierName(e.identifier)))
			if disposeErr := c.dispose(ctx); disposeErr != nil {
				return LifecycleError{
					Identifier: identifierName(e.identifier),
					Hook:       "init",
					Err:        fmt.Errorf("%w (dispose after failure: %w)", err, disposeErr),
				}
			}
			return err
		}
	}
	c.initialized = true
	return nil
}

// tagged returns the live singleton instances whose definitions carry the
// tag, in registration order.
func (c *container) tagged(tag string) []any {
	var instances []any
	for _, e := range c.order {
		if !e.singleton || !e.resolved {
			continue
		}
		for _, candidate := range e.tags {
			if candidate == tag {
				instances = append(instances, e.instance)
				break
			}
		}
	}
	return instances
}

// dispose runs OnDispose over initialized singletons in reverse init order,
// clears the instance table and listeners, and detaches interceptors.
// Individual hook failures do not stop the teardown; they are collected and
// joined.
func (c *container) dispose(ctx context.Context) error {
	if c.disposed {
		return nil
	}
	c.disposed = true

	errs := &Errors{}
	for i := len(c.initOrder) - 1; i >= 0; i-- {
		e := c.initOrder[i]
		if !e.initialized {
			continue
		}
		e.initialized = false
		if disposer, implements := e.instance.(Disposer); implements {
			if err := disposer.OnDispose(ctx); err != nil {
				errs.Add(LifecycleError{
					Identifier: identifierName(e.identifier),
					Hook:       "dispose",
					Err:        err,
				})
			}
		}
	}

	for _, e := range c.order {
		if e.decl != nil {
			e.instance = nil
			e.resolved = false
		}
	}
	c.initOrder = nil
	c.bus.Clear()
	c.engine.Reset()

	c.log.Debug("container disposed")

	return errs.Errors()
}

func (c *container) cyclePath(repeated *entry) []string {
	path := make([]string, 0, len(c.stack)+1)
	for _, frame := range c.stack {
		path = append(path, identifierName(frame.identifier))
	}
	return append(path, identifierName(repeated.identifier))
}
