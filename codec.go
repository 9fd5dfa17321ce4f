package jsongate

import (
	"encoding/json"
)

// GenericCodec is the surface the dispatcher consumes: it extracts the
// generic argument frame from a call envelope, binds the JSON payload
// onto a method's parameter slots, and serializes results for the trip
// back.
type GenericCodec struct {
	binder *ArgumentBinder
}

// NewGenericCodec creates a codec resolving overrides against types
func NewGenericCodec(types *TypeRegistry) *GenericCodec {
	return &GenericCodec{binder: NewArgumentBinder(types)}
}

// WithMetrics attaches a metrics collector to the underlying binder
func (c *GenericCodec) WithMetrics(m *Metrics) *GenericCodec {
	c.binder.WithMetrics(m)
	return c
}

// Serialize encodes a call result for the wire. A nil result stays nil,
// everything else is plain JSON.
func (c *GenericCodec) Serialize(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// BindArguments maps a raw JSON payload plus optional per-slot type-name
// overrides onto the given parameter slots. overrides may be nil.
func (c *GenericCodec) BindArguments(slots []ParameterSlot, overrides []string, payload []byte) ([]any, error) {
	return c.binder.Bind(slots, overrides, payload)
}

// DeserializeCall binds a call envelope's generic frame onto a method's
// slots. A frame with fewer than three components carries no overrides
// and no payload; with declared parameters that is an arity failure, the
// overrides alone degrade gracefully.
func (c *GenericCodec) DeserializeCall(msg *Message, meta *MethodMeta) ([]any, error) {
	if len(meta.Slots) == 0 {
		return []any{}, nil
	}
	typeNames, payload := splitGenericFrame(msg.Frame)
	return c.binder.Bind(meta.Slots, typeNames, payload)
}

// splitGenericFrame extracts the type-name overrides (component 1) and
// the JSON payload (component 2) from a generic frame. Short frames and
// unexpected component shapes degrade to "no overrides" / "no payload";
// the frame is caller-controlled wire data and is never trusted to be
// well-formed.
func splitGenericFrame(frame []any) (typeNames []string, payload []byte) {
	if len(frame) < 3 {
		return nil, nil
	}
	switch names := frame[1].(type) {
	case []string:
		typeNames = names
	case []any:
		typeNames = make([]string, len(names))
		for i, n := range names {
			if s, ok := n.(string); ok {
				typeNames[i] = s
			}
		}
	}
	switch p := frame[2].(type) {
	case []byte:
		payload = p
	case string:
		payload = []byte(p)
	}
	return typeNames, payload
}
