package runtime

import (
	"fmt"
	"strings"

	"quill/interpreter-go/pkg/ast"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindVoid Kind = iota
	KindNil
	KindString
	KindBool
	KindInteger
	KindFloat
	KindArray
	KindFunction
	KindNativeFunction
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindNativeFunction:
		return "native_function"
	case KindClass:
		return "class"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values.
type Value interface {
	Kind() Kind
}

// VoidValue marks "no usable value": the result of an empty block or of a
// statement that produces nothing. Distinct from NilValue, which scripts can
// observe and bind.
type VoidValue struct{}

func (VoidValue) Kind() Kind { return KindVoid }

type NilValue struct{}

func (NilValue) Kind() Kind { return KindNil }

type StringValue struct {
	Val string
}

func (v StringValue) Kind() Kind { return KindString }

type BoolValue struct {
	Val bool
}

func (v BoolValue) Kind() Kind { return KindBool }

type IntegerValue struct {
	Val int64
}

func (v IntegerValue) Kind() Kind { return KindInteger }

type FloatValue struct {
	Val float64
}

func (v FloatValue) Kind() Kind { return KindFloat }

type ArrayValue struct {
	Elements []Value
}

func (v *ArrayValue) Kind() Kind { return KindArray }

// FunctionValue is a script-declared function. Quill is dynamically scoped:
// the body runs against the caller's frame, so no closure environment is
// captured here.
type FunctionValue struct {
	Declaration *ast.FunctionDeclaration
}

func (v *FunctionValue) Kind() Kind { return KindFunction }

func (v *FunctionValue) Name() string {
	if v.Declaration != nil && v.Declaration.ID != nil {
		return v.Declaration.ID.Name
	}
	return "<fn>"
}

// NativeCallContext provides hooks for native functions.
type NativeCallContext struct {
	Env *Environment
}

type NativeFunc func(*NativeCallContext, []Value) (Value, error)

type NativeFunctionValue struct {
	Name  string
	Arity int // -1 means variadic
	Impl  NativeFunc
}

func (v NativeFunctionValue) Kind() Kind { return KindNativeFunction }

// ClassValue is a named namespace seeded by its declaration's body block and
// augmented later by deferred member initializers.
type ClassValue struct {
	Name string
	Env  *Environment
}

func (v *ClassValue) Kind() Kind { return KindClass }

// ToString renders a value the way the REPL and string concatenation do.
func ToString(val Value) string {
	switch v := val.(type) {
	case nil:
		return "nil"
	case VoidValue:
		return ""
	case NilValue:
		return "nil"
	case StringValue:
		return v.Val
	case BoolValue:
		if v.Val {
			return "true"
		}
		return "false"
	case IntegerValue:
		return fmt.Sprintf("%d", v.Val)
	case FloatValue:
		return fmt.Sprintf("%g", v.Val)
	case *ArrayValue:
		parts := make([]string, len(v.Elements))
		for i, el := range v.Elements {
			parts[i] = ToString(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *FunctionValue:
		return fmt.Sprintf("<fn %s>", v.Name())
	case NativeFunctionValue:
		return fmt.Sprintf("<native fn %s>", v.Name)
	case *ClassValue:
		return fmt.Sprintf("<class %s>", v.Name)
	default:
		return fmt.Sprintf("[%s]", val.Kind())
	}
}
