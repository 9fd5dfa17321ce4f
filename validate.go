package jsongate

import (
	"reflect"
)

// validateAssignable decides whether a caller-proposed concrete type may
// stand in for a declared descriptor. The check is directional: with
// parent=true the candidate must be acceptable where the declared type is
// expected (candidate assignable to declared); with parent=false the
// reverse. A candidate is never granted more power than the declared slot
// already permits, which is what blocks type-confusion substitutions.
//
// Unrecognized descriptor shapes are denied: fail closed.
func validateAssignable(desc TypeDesc, candidate reflect.Type, parent bool) bool {
	if candidate == nil {
		return false
	}
	switch d := desc.(type) {
	case ClassType:
		if d.T == nil {
			return false
		}
		if parent {
			return candidate.AssignableTo(d.T)
		}
		return d.T.AssignableTo(candidate)
	case ArrayType:
		return validateAssignable(d.Elem, candidate, parent)
	case ParameterizedType:
		// Erasure-level check: arguments are ignored.
		return validateAssignable(d.Raw, candidate, parent)
	case TypeVariable:
		if parent {
			for _, b := range d.Bounds {
				if !validateAssignable(b, candidate, true) {
					return false
				}
			}
		}
		return true
	case WildcardType:
		if parent {
			for _, b := range d.Upper {
				if !validateAssignable(b, candidate, true) {
					return false
				}
			}
			for _, b := range d.Lower {
				if !validateAssignable(b, candidate, false) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}
