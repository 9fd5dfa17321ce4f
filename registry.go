package jsongate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrNotInvokable    = errors.New("method has no bound implementation")
)

// TypeRegistry is the class-loader capability: it maps wire-level type
// names to Go types so caller-supplied overrides can be resolved. Only
// registered names are loadable; an unknown name is treated as "no
// override given".
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry creates an empty TypeRegistry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]reflect.Type)}
}

// Register maps a wire name to the dynamic type of the given value
func (r *TypeRegistry) Register(name string, v any) {
	r.RegisterType(name, reflect.TypeOf(v))
}

// RegisterType maps a wire name to a reflect.Type
func (r *TypeRegistry) RegisterType(name string, t reflect.Type) {
	if name == "" || t == nil {
		return
	}
	r.mu.Lock()
	r.types[name] = t
	r.mu.Unlock()
}

// Lookup resolves a wire name to a registered type
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	t, ok := r.types[name]
	r.mu.RUnlock()
	return t, ok
}

// MethodMeta is the metadata for one invokable method: its ordered
// parameter slots plus either a reflected Go method or a declared
// handler for proxied signatures.
type MethodMeta struct {
	Name  string
	Slots []ParameterSlot

	fn      reflect.Value
	handler func(args []any) (any, error)
}

// Callable reports whether the method has something to invoke
func (m *MethodMeta) Callable() bool {
	return m.fn.IsValid() || m.handler != nil
}

// Invoke calls the underlying implementation with already-bound
// arguments. Reflected methods follow the usual Go return conventions:
// no results, a single value, a single error, or (value, error).
func (m *MethodMeta) Invoke(args []any) (any, error) {
	if m.handler != nil {
		return m.handler(args)
	}
	if !m.fn.IsValid() {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrNotInvokable)
	}
	ft := m.fn.Type()
	if len(args) != ft.NumIn() {
		return nil, &CodecError{Reason: reasonWrongParameterCount}
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(ft.In(i))
			continue
		}
		v := reflect.ValueOf(a)
		if v.Type() != ft.In(i) && v.CanConvert(ft.In(i)) {
			v = v.Convert(ft.In(i))
		}
		in[i] = v
	}
	out := m.fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	case 2:
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		return nil, fmt.Errorf("%s: unexpected number of return values", m.Name)
	}
}

// Service is a named collection of invokable methods
type Service struct {
	Name string

	mu      sync.RWMutex
	methods map[string]*MethodMeta
}

// Method looks up a method by name
func (s *Service) Method(name string) (*MethodMeta, bool) {
	s.mu.RLock()
	m, ok := s.methods[name]
	s.mu.RUnlock()
	return m, ok
}

// Methods returns the method names in no particular order
func (s *Service) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.methods))
	for n := range s.methods {
		names = append(names, n)
	}
	return names
}

// SetParamNames attaches declared parameter names to a method, enabling
// by-name binding in object payloads. Go reflection does not expose
// parameter names, so they must be declared explicitly; without them the
// method still binds positionally and via the synthetic argN aliases.
func (s *Service) SetParamNames(method string, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.methods[method]
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.Name, method, ErrMethodNotFound)
	}
	if len(names) != len(m.Slots) {
		return fmt.Errorf("%s.%s: %d names for %d parameters", s.Name, method, len(names), len(m.Slots))
	}
	for i, n := range names {
		m.Slots[i].Name = n
	}
	return nil
}

// DeclareParamType replaces a slot's declared descriptor, e.g. to narrow
// a reflected any parameter to a bounded type variable for a proxied
// signature.
func (s *Service) DeclareParamType(method string, index int, desc TypeDesc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.methods[method]
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.Name, method, ErrMethodNotFound)
	}
	if index < 0 || index >= len(m.Slots) {
		return fmt.Errorf("%s.%s: slot %d out of range", s.Name, method, index)
	}
	m.Slots[index].Type = desc
	return nil
}

// DeclareMethod registers a method whose signature is described rather
// than reflected, backed by a plain handler. This is how schemas with
// bounded type variables or wildcards enter the gateway, e.g. when the
// service proxies to a callee outside the Go type system.
func (s *Service) DeclareMethod(name string, slots []ParameterSlot, handler func(args []any) (any, error)) *MethodMeta {
	for i := range slots {
		slots[i].Index = i
	}
	m := &MethodMeta{Name: name, Slots: slots, handler: handler}
	s.mu.Lock()
	s.methods[name] = m
	s.mu.Unlock()
	return m
}

// ServiceRegistry is the method metadata provider consumed by the
// gateway worker: it owns the registered services and the TypeRegistry
// used for override resolution.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]*Service
	types    *TypeRegistry
}

// NewServiceRegistry creates a registry with its own TypeRegistry
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]*Service),
		types:    NewTypeRegistry(),
	}
}

// Types returns the registry used for type-name override resolution
func (r *ServiceRegistry) Types() *TypeRegistry {
	return r.types
}

// RegisterService scans the exported methods of impl and registers them
// under the given service name. Each parameter becomes a slot with a
// ClassType descriptor; names can be attached afterwards with
// SetParamNames.
func (r *ServiceRegistry) RegisterService(name string, impl any) (*Service, error) {
	if name == "" || impl == nil {
		return nil, errors.New("service name and implementation are required")
	}
	v := reflect.ValueOf(impl)
	t := v.Type()
	svc := &Service{Name: name, methods: make(map[string]*MethodMeta)}
	for i := 0; i < t.NumMethod(); i++ {
		mi := t.Method(i)
		fn := v.Method(i)
		ft := fn.Type()
		slots := make([]ParameterSlot, ft.NumIn())
		for j := 0; j < ft.NumIn(); j++ {
			slots[j] = ParameterSlot{Index: j, Type: ClassType{T: ft.In(j)}}
		}
		svc.methods[mi.Name] = &MethodMeta{Name: mi.Name, Slots: slots, fn: fn}
	}
	r.mu.Lock()
	r.services[name] = svc
	r.mu.Unlock()
	return svc, nil
}

// Service looks up a registered service by name
func (r *ServiceRegistry) Service(name string) (*Service, bool) {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()
	return svc, ok
}

// Resolve splits a "service.Method" target and returns its metadata
func (r *ServiceRegistry) Resolve(target string) (*Service, *MethodMeta, error) {
	dot := strings.LastIndex(target, ".")
	if dot <= 0 || dot == len(target)-1 {
		return nil, nil, fmt.Errorf("invalid target %q: %w", target, ErrMethodNotFound)
	}
	svcName, methodName := target[:dot], target[dot+1:]
	svc, ok := r.Service(svcName)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", svcName, ErrServiceNotFound)
	}
	m, ok := svc.Method(methodName)
	if !ok {
		return nil, nil, fmt.Errorf("%s.%s: %w", svcName, methodName, ErrMethodNotFound)
	}
	return svc, m, nil
}
