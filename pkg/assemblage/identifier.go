package assemblage

import (
	"reflect"
	"strconv"

	"github.com/mwantia/assemblage/pkg/metadata"
)

// Identifiers are container lookup keys: a concrete type, an abstract
// (interface) type, or a plain string. Types compare by identity, strings by
// value.

// Type returns the identifier for type T. Use the pointer form for concrete
// assemblages (Type[*UserService]()) and the plain form for abstractions
// (Type[Database]()).
func Type[T any]() reflect.Type {
	return metadata.TypeOf[T]()
}

// normalizeIdentifier canonicalizes a lookup key. Accepted shapes are
// reflect.Type and string; anything else is keyed by its dynamic type, so a
// sample value works where spelling out the type parameter is awkward.
func normalizeIdentifier(id any) any {
	switch key := id.(type) {
	case reflect.Type:
		return key
	case string:
		return key
	default:
		return reflect.TypeOf(id)
	}
}

// identifierName renders an identifier for error messages.
func identifierName(id any) string {
	switch key := id.(type) {
	case reflect.Type:
		return key.String()
	case string:
		return strconv.Quote(key)
	case nil:
		return "<nil>"
	default:
		return reflect.TypeOf(id).String()
	}
}
