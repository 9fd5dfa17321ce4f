package jsongate

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
)

// slotState tracks object-mode binding per slot. The explicit null state
// distinguishes "bound to a JSON null" from "never visited"; it never
// escapes the binder, a finished bind reports a true nil.
type slotState int

const (
	slotUnset slotState = iota
	slotNull
	slotValue
)

// materializer lazily decodes one captured JSON sub-document once a
// target type is known. The binder, not the parser, decides the type.
type materializer func(target reflect.Type) (any, error)

func lazyValue(raw json.RawMessage) materializer {
	return func(target reflect.Type) (any, error) {
		if target == nil {
			target = anyType
		}
		pv := reflect.New(target)
		if err := json.Unmarshal(raw, pv.Interface()); err != nil {
			return nil, &CodecError{Reason: reasonNotJSON, Err: err}
		}
		return pv.Elem().Interface(), nil
	}
}

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ArgumentBinder maps a JSON array or object payload onto an ordered
// list of parameter slots. Each call is self-contained: the result
// slice, fill cursor and name index are call-local, so one binder can
// serve concurrent calls without locking.
type ArgumentBinder struct {
	types   *TypeRegistry
	metrics *Metrics
}

// NewArgumentBinder creates a binder resolving overrides against types
func NewArgumentBinder(types *TypeRegistry) *ArgumentBinder {
	return &ArgumentBinder{types: types}
}

// WithMetrics attaches a metrics collector for override/bind counters
func (b *ArgumentBinder) WithMetrics(m *Metrics) *ArgumentBinder {
	b.metrics = m
	return b
}

// Bind materializes payload into exactly one value per slot. The first
// payload byte selects the strategy: '[' positional, '{' named with
// positional fill-in. Binding is atomic: either every slot is populated
// or an error is returned and no partial result escapes.
func (b *ArgumentBinder) Bind(slots []ParameterSlot, overrides []string, payload []byte) ([]any, error) {
	if len(slots) == 0 {
		return []any{}, nil
	}
	if len(payload) == 0 {
		return nil, &CodecError{Reason: reasonWrongParameterCount}
	}
	switch payload[0] {
	case '[':
		return b.bindArray(slots, overrides, payload)
	case '{':
		return b.bindObject(slots, overrides, payload)
	default:
		return nil, &CodecError{Reason: reasonNotJSON}
	}
}

// bindArray fills slots strictly in stream order. Elements beyond the
// slot count are still decoded, as any, so the element count stays
// honest for the arity check.
func (b *ArgumentBinder) bindArray(slots []ParameterSlot, overrides []string, payload []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if _, err := dec.Token(); err != nil {
		return nil, &CodecError{Reason: reasonNotJSON, Err: err}
	}
	result := make([]any, len(slots))
	consumed := 0
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &CodecError{Reason: reasonNotJSON, Err: err}
		}
		value := lazyValue(raw)
		if consumed < len(slots) {
			v, err := value(materializeTarget(b.effective(slots[consumed].Type, overrideFor(overrides, consumed))))
			if err != nil {
				return nil, err
			}
			result[consumed] = v
		} else {
			if _, err := value(anyType); err != nil {
				return nil, err
			}
		}
		consumed++
	}
	if _, err := dec.Token(); err != nil {
		return nil, &CodecError{Reason: reasonNotJSON, Err: err}
	}
	if consumed != len(slots) {
		return nil, &CodecError{Reason: reasonWrongParameterCount}
	}
	return result, nil
}

// bindObject handles the single-slot fast path and the general
// name-first, else positional-cursor strategy. The cursor only moves
// forward and never reuses a filled slot, even when a named key later
// writes below it.
func (b *ArgumentBinder) bindObject(slots []ParameterSlot, overrides []string, payload []byte) ([]any, error) {
	if len(slots) == 1 {
		v, err := lazyValue(payload)(materializeTarget(b.effective(slots[0].Type, overrideFor(overrides, 0))))
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}

	names := buildNameIndex(slots)
	result := make([]any, len(slots))
	states := make([]slotState, len(slots))

	set := func(i int, raw json.RawMessage) error {
		if isJSONNull(raw) {
			result[i] = nil
			states[i] = slotNull
			return nil
		}
		v, err := lazyValue(raw)(materializeTarget(b.effective(slots[i].Type, overrideFor(overrides, i))))
		if err != nil {
			return err
		}
		result[i] = v
		states[i] = slotValue
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	if _, err := dec.Token(); err != nil {
		return nil, &CodecError{Reason: reasonNotJSON, Err: err}
	}
	cursor := 0
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &CodecError{Reason: reasonNotJSON, Err: err}
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &CodecError{Reason: reasonNotJSON, Err: err}
		}
		if pos, ok := names[key]; ok {
			if err := set(pos, raw); err != nil {
				return nil, err
			}
			continue
		}
		for i := cursor; i < len(slots); i++ {
			if states[i] == slotUnset {
				if err := set(i, raw); err != nil {
					return nil, err
				}
				cursor = i + 1
				break
			}
		}
		// no free slot beyond the cursor: the value is dropped
	}
	if _, err := dec.Token(); err != nil {
		return nil, &CodecError{Reason: reasonNotJSON, Err: err}
	}
	for i := range states {
		if states[i] == slotUnset {
			return nil, &CodecError{Reason: reasonWrongParameterCount}
		}
	}
	return result, nil
}

// buildNameIndex maps declared names plus the synthetic argN aliases to
// ordinal indices. Built only for multi-parameter object binding and
// scoped to one call.
func buildNameIndex(slots []ParameterSlot) map[string]int {
	names := make(map[string]int, len(slots)*2)
	for _, s := range slots {
		if s.Name != "" {
			names[s.Name] = s.Index
		}
		names["arg"+strconv.Itoa(s.Index)] = s.Index
	}
	return names
}

func overrideFor(overrides []string, i int) string {
	if i < len(overrides) {
		return overrides[i]
	}
	return ""
}

func (b *ArgumentBinder) effective(declared TypeDesc, override string) TypeDesc {
	et, outcome := effectiveType(b.types, declared, override)
	if b.metrics != nil {
		switch outcome {
		case overrideHonored:
			b.metrics.RecordOverrideHonored()
		case overrideRejected:
			b.metrics.RecordOverrideRejected()
		}
	}
	return et
}
