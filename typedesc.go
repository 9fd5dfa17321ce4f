package jsongate

import (
	"reflect"
)

// anyType is the materialization target used when no more specific type
// is known (discarded overflow elements, unbounded variables).
var anyType = reflect.TypeOf((*any)(nil)).Elem()

// TypeDesc describes the declared type of one parameter slot. The set of
// variants is closed: the assignability validator treats anything outside
// it as untrusted and denies substitution.
type TypeDesc interface {
	typeDesc()
}

// ClassType is a concrete Go type (struct, interface, pointer, scalar).
type ClassType struct {
	T reflect.Type
}

// ArrayType is a sequence of a component type. Only the component matters
// for assignability; array-ness itself is not checked.
type ArrayType struct {
	Elem TypeDesc
}

// ParameterizedType is a generic type applied to arguments. Assignability
// is decided at erasure level, against the raw type only.
type ParameterizedType struct {
	Raw  TypeDesc
	Args []TypeDesc
}

// TypeVariable is a declared generic parameter with optional upper bounds,
// e.g. a proxied signature's "T extends Number".
type TypeVariable struct {
	Name   string
	Bounds []TypeDesc
}

// WildcardType is an unknown type with optional upper and lower bounds.
type WildcardType struct {
	Upper []TypeDesc
	Lower []TypeDesc
}

func (ClassType) typeDesc()         {}
func (ArrayType) typeDesc()         {}
func (ParameterizedType) typeDesc() {}
func (TypeVariable) typeDesc()      {}
func (WildcardType) typeDesc()      {}

// ClassOf builds a ClassType from a value's dynamic type.
func ClassOf(v any) ClassType {
	return ClassType{T: reflect.TypeOf(v)}
}

// materializeTarget derives the concrete reflect.Type a JSON value should
// be decoded into for the given descriptor. Generic structure is erased:
// a parameterized type decodes as its raw type, a bounded variable as its
// first bound, anything unbounded as any.
func materializeTarget(desc TypeDesc) reflect.Type {
	switch d := desc.(type) {
	case ClassType:
		if d.T == nil {
			return anyType
		}
		return d.T
	case ArrayType:
		return reflect.SliceOf(materializeTarget(d.Elem))
	case ParameterizedType:
		return materializeTarget(d.Raw)
	case TypeVariable:
		if len(d.Bounds) > 0 {
			return materializeTarget(d.Bounds[0])
		}
		return anyType
	case WildcardType:
		if len(d.Upper) > 0 {
			return materializeTarget(d.Upper[0])
		}
		return anyType
	default:
		return anyType
	}
}

// ParameterSlot is one ordinal position in a method's declared parameter
// list. Name is empty when the method metadata carries no names. Slots
// are read-only for the duration of a binding call.
type ParameterSlot struct {
	Index int
	Name  string
	Type  TypeDesc
}
