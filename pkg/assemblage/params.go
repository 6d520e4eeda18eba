package assemblage

import (
	"context"
	"reflect"
)

// ParamSource selects what a constructor parameter slot receives. A
// definition's Params list pairs sources with slots positionally; slots
// without a source resolve through Auto.
type ParamSource interface {
	resolve(c *container, e *entry, param reflect.Type, cfg Configuration) (any, error)
}

var (
	contextType       = reflect.TypeOf((*Context)(nil))
	configurationType = reflect.TypeOf(Configuration(nil))
	metadataType      = reflect.TypeOf(Metadata(nil))
	disposeType       = reflect.TypeOf(DisposeFunc(nil))
	stdContextType    = reflect.TypeOf((*context.Context)(nil)).Elem()
)

type paramKind int

const (
	paramAuto paramKind = iota
	paramContext
	paramConfiguration
	paramMetadata
	paramDispose
	paramUse
	paramGlobal
)

type paramSource struct {
	kind paramKind
	name string
}

// Auto resolves the slot from its declared type: well-known ambient types
// are produced directly, anything else goes through Require.
func Auto() ParamSource { return paramSource{kind: paramAuto} }

// FromContext injects the public context facade.
func FromContext() ParamSource { return paramSource{kind: paramContext} }

// FromConfiguration injects the entry's configuration object.
func FromConfiguration() ParamSource { return paramSource{kind: paramConfiguration} }

// FromMetadata injects the definition's metadata dictionary.
func FromMetadata() ParamSource { return paramSource{kind: paramMetadata} }

// FromDispose injects a handle that tears down the container.
func FromDispose() ParamSource { return paramSource{kind: paramDispose} }

// FromUse injects Require(name), for values bound under string identifiers.
func FromUse(name string) ParamSource { return paramSource{kind: paramUse, name: name} }

// FromGlobal injects the named value from the assembler's globals map.
func FromGlobal(name string) ParamSource { return paramSource{kind: paramGlobal, name: name} }

func (s paramSource) resolve(c *container, e *entry, param reflect.Type, cfg Configuration) (any, error) {
	switch s.kind {
	case paramContext:
		return e.ctx, nil
	case paramConfiguration:
		return cfg, nil
	case paramMetadata:
		return e.definition.Metadata, nil
	case paramDispose:
		return c.disposeFn, nil
	case paramUse:
		return c.require(s.name, nil)
	case paramGlobal:
		value, exists := c.globals[s.name]
		if !exists {
			return nil, &unresolved{reason: "global " + s.name + " not provided"}
		}
		return value, nil
	default:
		return s.resolveAuto(c, e, param, cfg)
	}
}

// resolveAuto implements the untagged slot rules: ambient well-known types
// first, then the declared type as a container identifier.
func (s paramSource) resolveAuto(c *container, e *entry, param reflect.Type, cfg Configuration) (any, error) {
	switch param {
	case contextType:
		return e.ctx, nil
	case configurationType:
		return cfg, nil
	case metadataType:
		return e.definition.Metadata, nil
	case disposeType:
		return c.disposeFn, nil
	case stdContextType:
		return c.buildCtx, nil
	}

	if !c.has(param) {
		return nil, &unresolved{reason: "no entry registered for " + param.String()}
	}
	return c.require(param, nil)
}

// unresolved carries a slot failure reason up to resolveArgs, which wraps it
// with the constructor and slot index.
type unresolved struct{ reason string }

func (u *unresolved) Error() string { return u.reason }

// resolveArgs produces the constructor argument vector for an entry. The
// parameter order is never changed; each slot resolves to exactly one source.
func (c *container) resolveArgs(e *entry, cfg Configuration) ([]reflect.Value, error) {
	ct := e.decl.ctor.Type()
	sources := e.definition.Params

	args := make([]reflect.Value, ct.NumIn())
	for i := 0; i < ct.NumIn(); i++ {
		param := ct.In(i)

		var source ParamSource = paramSource{kind: paramAuto}
		if i < len(sources) && sources[i] != nil {
			source = sources[i]
		}

		value, err := source.resolve(c, e, param, cfg)
		if err != nil {
			if failure, ok := err.(*unresolved); ok {
				return nil, UnresolvedParameterError{
					Constructor: ct.String(),
					Index:       i,
					Reason:      failure.reason,
				}
			}
			return nil, err
		}

		arg, ok := assignTo(value, param)
		if !ok {
			return nil, UnresolvedParameterError{
				Constructor: ct.String(),
				Index:       i,
				Reason:      "resolved " + typeName(value) + ", want " + param.String(),
			}
		}
		args[i] = arg
	}

	return args, nil
}

func assignTo(value any, want reflect.Type) (reflect.Value, bool) {
	if value == nil {
		switch want.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(want), true
		default:
			return reflect.Value{}, false
		}
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(want) {
		return rv, true
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), true
	}
	return reflect.Value{}, false
}

func typeName(value any) string {
	if value == nil {
		return "<nil>"
	}
	return reflect.TypeOf(value).String()
}
