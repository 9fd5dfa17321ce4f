package jsongate

// overrideOutcome reports what happened to a caller-supplied type name
// during resolution. Rejection is routine caller behavior, not a failure:
// it is counted, never logged as an error and never surfaced.
type overrideOutcome int

const (
	overrideNone overrideOutcome = iota
	overrideHonored
	overrideRejected
)

// effectiveType resolves the type a slot's JSON value is materialized
// into. An empty override or an unknown type name falls back to the
// declared descriptor (a lookup miss is not a binding failure). A known
// candidate replaces the declared type only when it passes the
// assignability check in the parent direction.
func effectiveType(types *TypeRegistry, declared TypeDesc, override string) (TypeDesc, overrideOutcome) {
	if override == "" || types == nil {
		return declared, overrideNone
	}
	candidate, ok := types.Lookup(override)
	if !ok {
		return declared, overrideNone
	}
	if validateAssignable(declared, candidate, true) {
		return ClassType{T: candidate}, overrideHonored
	}
	return declared, overrideRejected
}
