package assemblage

import (
	"reflect"

	"github.com/mwantia/assemblage/pkg/metadata"
)

// declarationKey is the metadata slot declarations are stored under.
const declarationKey metadata.Key = "assemblage.declaration"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// declaration is the registration-time record for a declared type: its
// normalized definition plus the constructor resolved per parameter slot.
type declaration struct {
	concrete reflect.Type
	def      Definition
	ctor     reflect.Value
}

// Declare attaches a constructor and a definition to type T, making it
// available as an assemblage. The constructor must be a func whose single
// value result is assignable to T, optionally followed by an error:
//
//	func NewUserService(db Database, cfg assemblage.Configuration) *UserService
//	func NewBroker(ctx *assemblage.Context) (*Broker, error)
//
// The definition is validated and normalized here, so declaration mistakes
// surface at startup rather than mid-build. Re-declaring a type overwrites
// its previous declaration.
func Declare[T any](constructor any, def Definition) error {
	concrete := metadata.TypeOf[T]()

	ctor := reflect.ValueOf(constructor)
	if !ctor.IsValid() || ctor.Kind() != reflect.Func {
		return InvalidDefinitionError{Reason: "constructor for " + concrete.String() + " is not a function"}
	}

	ct := ctor.Type()
	switch ct.NumOut() {
	case 1:
	case 2:
		if ct.Out(1) != errorType {
			return InvalidDefinitionError{
				Reason: "constructor for " + concrete.String() + " second result must be error",
			}
		}
	default:
		return InvalidDefinitionError{
			Reason: "constructor for " + concrete.String() + " must return the instance and an optional error",
		}
	}
	if !ct.Out(0).AssignableTo(concrete) {
		return InvalidDefinitionError{
			Reason: "constructor returns " + ct.Out(0).String() + ", want " + concrete.String(),
		}
	}
	if len(def.Params) > ct.NumIn() {
		return InvalidDefinitionError{
			Reason: "definition for " + concrete.String() + " has more param sources than constructor parameters",
		}
	}

	normalized, err := normalizeDefinition(def)
	if err != nil {
		return err
	}

	metadata.Define(declarationKey, &declaration{
		concrete: concrete,
		def:      normalized,
		ctor:     ctor,
	}, concrete)

	return nil
}

// MustDeclare is Declare for package-level wiring; it panics on an invalid
// declaration.
func MustDeclare[T any](constructor any, def Definition) {
	if err := Declare[T](constructor, def); err != nil {
		panic(err)
	}
}

// declarationFor reads the declaration of a concrete type from the store.
func declarationFor(store *metadata.Store, concrete reflect.Type) (*declaration, bool) {
	value, exists := store.GetOwn(declarationKey, concrete)
	if !exists {
		return nil, false
	}
	decl, valid := value.(*declaration)
	return decl, valid
}
