package jsongate

import (
	"errors"
	"reflect"
	"strings"
)

// Test fixtures shared across the suite.

// Animal is a declared parameter type that only well-behaved candidates
// may substitute for.
type Animal interface {
	Speak() string
}

var animalType = reflect.TypeOf((*Animal)(nil)).Elem()

type Dog struct {
	Name string `json:"name"`
}

func (d Dog) Speak() string { return "woof" }

type Cat struct {
	Name string `json:"name"`
}

func (c Cat) Speak() string { return "meow" }

// EvilNative is loadable but does not satisfy Animal; it stands in for
// an attacker-chosen deserialization target.
type EvilNative struct {
	Cmd string `json:"cmd"`
}

func newTestTypes() *TypeRegistry {
	types := NewTypeRegistry()
	types.Register("Dog", Dog{})
	types.Register("Cat", Cat{})
	types.Register("EvilNative", EvilNative{})
	return types
}

func intSlots(n int, names ...string) []ParameterSlot {
	slots := make([]ParameterSlot, n)
	for i := range slots {
		slots[i] = ParameterSlot{Index: i, Type: ClassType{T: reflect.TypeOf(0)}}
		if i < len(names) {
			slots[i].Name = names[i]
		}
	}
	return slots
}

// Calculator is a plain service for dispatch tests
type Calculator struct{}

func (Calculator) Add(a, b int) int { return a + b }

func (Calculator) Concat(prefix string, parts []string) string {
	return prefix + strings.Join(parts, "")
}

func (Calculator) Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func (Calculator) Boom() int { panic("kaboom") }

func (Calculator) Version() string { return "1.0" }

func (Calculator) Describe(a Animal) string {
	if a == nil {
		return "nothing"
	}
	return a.Speak()
}
