package aop

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Engine owns the advice registry and the per-target interception tables.
//
// Each assembler constructs its own engine, so detaching one build's
// interceptors never leaks into another. Reset restores a fresh engine state
// for callers that reuse one.
type Engine struct {
	mu       sync.RWMutex
	log      *zap.Logger
	advices  []*compiledAdvice
	targets  map[reflect.Type]map[string]*chain
	sequence int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for registration and installation events.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an engine with an empty advice registry.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		log:     zap.NewNop(),
		targets: make(map[reflect.Type]map[string]*chain),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// chain holds the advice matched for one (target type, method) pair, each
// kind sorted by priority (higher first), ties broken by registration order.
type chain struct {
	before []*compiledAdvice
	around []*compiledAdvice
	after  []*compiledAdvice
}

func (c *chain) empty() bool {
	return len(c.before) == 0 && len(c.around) == 0 && len(c.after) == 0
}

// Register compiles and stores every advice of the transversal. A pointcut
// that fails the grammar rejects the whole transversal.
func (e *Engine) Register(t Transversal) error {
	compiled := make([]*compiledAdvice, 0, len(t.Advices))
	for _, advice := range t.Advices {
		pointcut, err := ParsePointcut(advice.Pointcut)
		if err != nil {
			return fmt.Errorf("aop: transversal %q: %w", t.Name, err)
		}
		compiled = append(compiled, &compiledAdvice{advice: advice, pointcut: pointcut})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ca := range compiled {
		ca.sequence = e.sequence
		e.sequence++
		e.advices = append(e.advices, ca)
	}

	e.log.Debug("registered transversal",
		zap.String("name", t.Name),
		zap.Int("advices", len(compiled)))

	return nil
}

// Install builds the interception table for the instance's concrete type.
func (e *Engine) Install(instance any) {
	t := reflect.TypeOf(instance)
	if t == nil {
		return
	}
	e.InstallType(t)
}

// InstallType builds the interception table for a concrete type. Matching
// uses the type's declared name against each pointcut's class part and
// enumerates the exported method set. Installing a type with no matching
// advice is a no-op.
func (e *Engine) InstallType(t reflect.Type) {
	class := className(t)
	if class == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	methods := make(map[string]*chain)
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i).Name
		ch := &chain{}
		for _, ca := range e.advices {
			if !ca.pointcut.Matches(class, method) {
				continue
			}
			switch ca.advice.Kind {
			case KindBefore:
				ch.before = append(ch.before, ca)
			case KindAround:
				ch.around = append(ch.around, ca)
			case KindAfter:
				ch.after = append(ch.after, ca)
			}
		}
		if ch.empty() {
			continue
		}
		sortByPriority(ch.before)
		sortByPriority(ch.around)
		sortByPriority(ch.after)
		methods[method] = ch
	}

	if len(methods) == 0 {
		return
	}
	e.targets[t] = methods

	e.log.Debug("installed interceptors",
		zap.String("class", class),
		zap.Int("methods", len(methods)))
}

// Intercepts reports whether Invoke would run an advice chain for the
// (target, method) pair.
func (e *Engine) Intercepts(target any, method string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	methods, exists := e.targets[reflect.TypeOf(target)]
	if !exists {
		return false
	}
	_, exists = methods[method]
	return exists
}

// Invoke calls the named method on target through its advice chain. When no
// advice matches, the original method is called directly, so the facade is
// transparent for unadvised targets.
func (e *Engine) Invoke(target any, method string, args ...any) (any, error) {
	e.mu.RLock()
	var ch *chain
	if methods, exists := e.targets[reflect.TypeOf(target)]; exists {
		ch = methods[method]
	}
	e.mu.RUnlock()

	if ch == nil {
		return callMethod(target, method, args)
	}
	return e.run(ch, target, method, args)
}

// run executes the advice chain: before advice in priority order, the around
// composition (outermost first) down to the original method, then after
// advice observing the final result.
func (e *Engine) run(ch *chain, target any, method string, args []any) (any, error) {
	inv := &Invocation{
		Method: method,
		Target: target,
		Args:   args,
	}

	for _, ca := range ch.before {
		if err := ca.advice.Before(inv); err != nil {
			return nil, err
		}
	}

	next := func() (any, error) {
		return callMethod(target, method, inv.Args)
	}
	for i := len(ch.around) - 1; i >= 0; i-- {
		ca := ch.around[i]
		inner := next
		next = func() (any, error) {
			inv.proceed = inner
			return ca.advice.Around(inv)
		}
	}

	result, err := next()
	if err != nil {
		return nil, err
	}
	inv.Result = result

	for _, ca := range ch.after {
		ca.advice.After(inv)
	}

	return inv.Result, nil
}

// Reset detaches every interceptor and clears the advice registry, leaving
// the engine as if freshly constructed.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advices = nil
	e.targets = make(map[reflect.Type]map[string]*chain)
	e.sequence = 0

	e.log.Debug("engine reset")
}

func sortByPriority(advices []*compiledAdvice) {
	sort.SliceStable(advices, func(i, j int) bool {
		if advices[i].advice.Priority != advices[j].advice.Priority {
			return advices[i].advice.Priority > advices[j].advice.Priority
		}
		return advices[i].sequence < advices[j].sequence
	})
}

// className resolves the declared name pointcuts match against, looking
// through pointer indirection.
func className(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// callMethod invokes the original method via reflection, converting the
// loosely typed argument list to the method signature and splitting a
// trailing error return off the result.
func callMethod(target any, method string, args []any) (any, error) {
	mv := reflect.ValueOf(target).MethodByName(method)
	if !mv.IsValid() {
		return nil, UnknownMethodError{Class: className(reflect.TypeOf(target)), Method: method}
	}

	in, err := convertArgs(mv.Type(), method, args)
	if err != nil {
		return nil, err
	}

	return splitResults(mv.Call(in))
}

func convertArgs(mt reflect.Type, method string, args []any) ([]reflect.Value, error) {
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("aop: method %s expects at least %d arguments, got %d", method, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("aop: method %s expects %d arguments, got %d", method, fixed, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var want reflect.Type
		if i < fixed {
			want = mt.In(i)
		} else {
			want = mt.In(fixed).Elem()
		}

		if arg == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		value := reflect.ValueOf(arg)
		if !value.Type().AssignableTo(want) {
			if !value.Type().ConvertibleTo(want) {
				return nil, fmt.Errorf("aop: method %s argument %d: cannot use %s as %s", method, i, value.Type(), want)
			}
			value = value.Convert(want)
		}
		in[i] = value
	}

	return in, nil
}

func splitResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		results := make([]any, len(out))
		for i, value := range out {
			results[i] = value.Interface()
		}
		return results, nil
	}
}
