package assemblage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mwantia/assemblage/pkg/aop"
	"github.com/mwantia/assemblage/pkg/config"
	"github.com/mwantia/assemblage/pkg/metadata"
)

// Assembler builds one dependency graph from a declared root. Each assembler
// owns its container and its transversal engine, so disposing or resetting
// one build never affects another.
type Assembler struct {
	log         *zap.Logger
	store       *metadata.Store
	globals     map[string]any
	overrides   map[any]Configuration
	configFiles []configFile
	engine      *aop.Engine
	c           *container
	built       bool
}

type configFile struct {
	identifier any
	path       string
	envPrefix  string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used by the assembler, its container, and its
// transversal engine. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Assembler) {
		a.log = log
	}
}

// WithGlobals pre-populates the globals map consulted by FromGlobal slots.
func WithGlobals(globals map[string]any) Option {
	return func(a *Assembler) {
		for name, value := range globals {
			a.globals[name] = value
		}
	}
}

// WithGlobal sets one named global value.
func WithGlobal(name string, value any) Option {
	return func(a *Assembler) {
		a.globals[name] = value
	}
}

// WithMetadataStore reads declarations from the given store instead of the
// process-wide default.
func WithMetadataStore(store *metadata.Store) Option {
	return func(a *Assembler) {
		a.store = store
	}
}

// WithConfiguration overrides the configuration object registered for the
// identifier, merged on top of the injection tuple's configuration.
func WithConfiguration(identifier any, cfg Configuration) Option {
	return func(a *Assembler) {
		a.overrides[normalizeIdentifier(identifier)] = cfg
	}
}

// WithConfigFile loads a TOML or YAML document at build time and threads it
// in as the configuration override for the identifier.
func WithConfigFile(identifier any, path string) Option {
	return func(a *Assembler) {
		a.configFiles = append(a.configFiles, configFile{
			identifier: normalizeIdentifier(identifier),
			path:       path,
		})
	}
}

// WithConfigFileEnv is WithConfigFile with an environment variable overlay:
// PREFIX_KEY values override file keys.
func WithConfigFileEnv(identifier any, path, envPrefix string) Option {
	return func(a *Assembler) {
		a.configFiles = append(a.configFiles, configFile{
			identifier: normalizeIdentifier(identifier),
			path:       path,
			envPrefix:  envPrefix,
		})
	}
}

// New creates an assembler ready to build one root.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		log:       zap.NewNop(),
		store:     metadata.Default,
		globals:   make(map[string]any),
		overrides: make(map[any]Configuration),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.engine = aop.NewEngine(aop.WithLogger(a.log))

	return a
}

// Build materializes the graph rooted at T:
//
//  1. Registers the root and, depth-first in declaration order, everything
//     its transitive Inject and Use lists name.
//  2. Fires each class's OnRegister hook once, in registration order.
//  3. Requires the root, constructing whatever it actually depends on, in a
//     deterministic order with cycle detection.
//  4. Runs OnInit hooks so every assemblage initializes after its transitive
//     singleton dependencies.
//  5. Registers the root's engaged transversals and installs interceptors
//     for every registered concrete.
//
// Any failure aborts the build; already-initialized instances are disposed
// in reverse order before the error surfaces.
func Build[T any](ctx context.Context, a *Assembler) (T, error) {
	var zero T

	if a.built {
		return zero, fmt.Errorf("assemblage: assembler already built; create a new one per graph")
	}
	a.built = true

	root := metadata.TypeOf[T]()
	decl, exists := declarationFor(a.store, root)
	if !exists {
		return zero, NotDeclaredError{Type: root.String()}
	}

	for _, cf := range a.configFiles {
		doc, err := loadConfigFile(cf)
		if err != nil {
			return zero, err
		}
		a.overrides[cf.identifier] = mergeConfiguration(a.overrides[cf.identifier], doc)
	}

	c := newContainer(ctx, a.log, a.store, a.engine, a.globals)
	a.c = c

	if err := c.registerConcrete(root, root, nil); err != nil {
		return zero, err
	}
	for id, override := range a.overrides {
		if e := c.lookup(id); e != nil {
			e.configuration = mergeConfiguration(e.configuration, override)
		}
	}

	for _, e := range c.order {
		if e.definition.OnRegister == nil {
			continue
		}
		if err := e.definition.OnRegister(e.ctx, e.configuration); err != nil {
			return zero, LifecycleError{
				Identifier: identifierName(e.identifier),
				Hook:       "register",
				Err:        err,
			}
		}
	}

	instance, err := c.require(root, nil)
	if err != nil {
		return zero, err
	}

	if err := c.runInitPhase(ctx); err != nil {
		return zero, err
	}

	abort := func(err error) (T, error) {
		if disposeErr := c.dispose(ctx); disposeErr != nil {
			return zero, fmt.Errorf("%w (dispose after failure: %w)", err, disposeErr)
		}
		return zero, err
	}

	for _, transversal := range decl.def.Engage {
		if err := a.engine.Register(transversal); err != nil {
			return abort(err)
		}
	}
	for _, e := range c.order {
		if e.concrete != nil {
			a.engine.InstallType(e.concrete)
		}
	}

	a.log.Debug("build complete",
		zap.String("root", root.String()),
		zap.Int("entries", len(c.order)))

	typed, ok := instance.(T)
	if !ok {
		return abort(fmt.Errorf("assemblage: root constructor produced %T, want %s", instance, root))
	}
	return typed, nil
}

func loadConfigFile(cf configFile) (Configuration, error) {
	var doc config.Document
	var err error
	if cf.envPrefix != "" {
		doc, err = config.LoadWithEnv(cf.path, cf.envPrefix)
	} else {
		doc, err = config.Load(cf.path)
	}
	if err != nil {
		return nil, err
	}
	return Configuration(doc), nil
}

// Context returns the root assemblage's public context. It is nil before
// Build.
func (a *Assembler) Context() *Context {
	if a.c == nil || len(a.c.order) == 0 {
		return nil
	}
	return a.c.order[0].ctx
}

// Engine exposes the assembler's transversal engine, for registering advice
// outside a root's Engage list and for test isolation via Reset.
func (a *Assembler) Engine() *aop.Engine {
	return a.engine
}

// Invoke calls a method on target through the transversal engine.
func (a *Assembler) Invoke(target any, method string, args ...any) (any, error) {
	return a.engine.Invoke(target, method, args...)
}

// Dispose tears the build down: OnDispose hooks in reverse init order,
// instance table and listeners cleared, interceptors detached. Dispose is
// idempotent.
func (a *Assembler) Dispose(ctx context.Context) error {
	if a.c == nil {
		return nil
	}
	return a.c.dispose(ctx)
}
