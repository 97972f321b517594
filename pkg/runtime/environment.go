package runtime

import (
	"fmt"
	"sort"
)

// Environment is one scope frame: a mapping of names to values, optionally
// nested under a parent frame.
type Environment struct {
	values map[string]Value
	parent *Environment

	// blockEnv caches the derived frame used for blocks executing directly
	// inside this frame. Created lazily on first need, cleared (not
	// discarded) at the end of every block execution, reused after that.
	blockEnv *Environment
}

// NewEnvironment creates a new frame, optionally nested under a parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		values: make(map[string]Value),
		parent: parent,
	}
}

// Parent exposes the enclosing frame (nil when global).
func (e *Environment) Parent() *Environment {
	return e.parent
}

// Snapshot returns a copy of the current bindings.
func (e *Environment) Snapshot() map[string]Value {
	out := make(map[string]Value, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Define inserts or shadows a binding in this frame.
func (e *Environment) Define(name string, value Value) {
	e.values[name] = value
}

// Assign updates an existing binding in the nearest frame where it appears.
func (e *Environment) Assign(name string, value Value) error {
	if _, ok := e.values[name]; ok {
		e.values[name] = value
		return nil
	}
	if e.parent != nil {
		return e.parent.Assign(name, value)
	}
	return fmt.Errorf("Undefined variable '%s'", name)
}

// Get retrieves a binding, searching outward through the frame chain.
func (e *Environment) Get(name string) (Value, error) {
	if v, ok := e.values[name]; ok {
		return v, nil
	}
	if e.parent != nil {
		return e.parent.Get(name)
	}
	return nil, fmt.Errorf("Undefined variable '%s'", name)
}

// GetOwn retrieves a binding held directly by this frame, ignoring the
// enclosing chain. Member access on class values uses this so enclosing
// scope names do not leak through as members.
func (e *Environment) GetOwn(name string) (Value, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Has reports whether the name is bound in this frame or any enclosing one.
func (e *Environment) Has(name string) bool {
	if _, ok := e.values[name]; ok {
		return true
	}
	if e.parent != nil {
		return e.parent.Has(name)
	}
	return false
}

// Keys returns this frame's bindings in sorted order (useful for
// determinism in tests).
func (e *Environment) Keys() []string {
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of bindings held directly by this frame.
func (e *Environment) Len() int {
	return len(e.values)
}

// Clear empties this frame's bindings while preserving its identity and
// parent link. Cached child frames survive a clear.
func (e *Environment) Clear() {
	e.values = make(map[string]Value)
}

// BlockEnv returns the cached block frame, or nil when none has been
// created yet.
func (e *Environment) BlockEnv() *Environment {
	return e.blockEnv
}

// SetBlockEnv caches the derived block frame for reuse by later block
// executions inside this frame.
func (e *Environment) SetBlockEnv(env *Environment) {
	e.blockEnv = env
}

// Extend creates a new child frame.
func (e *Environment) Extend() *Environment {
	return NewEnvironment(e)
}
