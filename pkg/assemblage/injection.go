package assemblage

import (
	"reflect"

	"github.com/mwantia/assemblage/pkg/metadata"
)

// Injection is one entry of a definition's Inject list. The four tuple
// shapes map onto the two constructors:
//
//	To[*Concrete]()                 register the concrete under itself
//	To[*Concrete](cfg)              ... with a configuration object
//	Bind[Abstract, *Concrete]()     register the concrete under the abstraction
//	Bind[Abstract, *Concrete](cfg)  ... with a configuration object
type Injection struct {
	abstract reflect.Type
	concrete reflect.Type
	config   Configuration
}

// To registers concrete type C under its own identifier, optionally with a
// configuration object.
func To[C any](cfg ...Configuration) Injection {
	inj := Injection{concrete: metadata.TypeOf[C]()}
	if len(cfg) > 0 {
		inj.config = cfg[0]
	}
	return inj
}

// Bind registers concrete type C under the abstract identifier A, optionally
// with a configuration object. Assignability of C to A is checked when the
// enclosing definition is declared.
func Bind[A any, C any](cfg ...Configuration) Injection {
	inj := Injection{
		abstract: metadata.TypeOf[A](),
		concrete: metadata.TypeOf[C](),
	}
	if len(cfg) > 0 {
		inj.config = cfg[0]
	}
	return inj
}

// identifier returns the canonical lookup key this injection registers under.
func (inj Injection) identifier() any {
	if inj.abstract != nil {
		return inj.abstract
	}
	return inj.concrete
}

// Binding is one entry of a definition's Use list: a pre-built value bound
// under an identifier without construction.
type Binding struct {
	identifier any
	value      any
}

// Use binds value under the given identifier (a type, a string, or a sample
// value whose dynamic type becomes the key).
func Use(identifier any, value any) Binding {
	return Binding{identifier: normalizeIdentifier(identifier), value: value}
}

// UseType binds value under the type identifier T.
func UseType[T any](value T) Binding {
	return Binding{identifier: metadata.TypeOf[T](), value: value}
}
