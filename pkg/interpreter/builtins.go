package interpreter

import (
	"fmt"

	"quill/interpreter-go/pkg/runtime"
)

func (i *Interpreter) installBuiltins() {
	i.global.Define("print", runtime.NativeFunctionValue{
		Name:  "print",
		Arity: -1,
		Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			parts := make([]any, len(args))
			for idx, arg := range args {
				parts[idx] = runtime.ToString(arg)
			}
			fmt.Fprintln(i.stdout, parts...)
			return runtime.VoidValue{}, nil
		},
	})

	i.global.Define("len", runtime.NativeFunctionValue{
		Name:  "len",
		Arity: 1,
		Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			switch v := args[0].(type) {
			case runtime.StringValue:
				return runtime.IntegerValue{Val: int64(len([]rune(v.Val)))}, nil
			case *runtime.ArrayValue:
				return runtime.IntegerValue{Val: int64(len(v.Elements))}, nil
			default:
				return nil, fmt.Errorf("len expects a string or array, got %s", args[0].Kind())
			}
		},
	})

	i.global.Define("str", runtime.NativeFunctionValue{
		Name:  "str",
		Arity: 1,
		Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			return runtime.StringValue{Val: runtime.ToString(args[0])}, nil
		},
	})

	i.global.Define("push", runtime.NativeFunctionValue{
		Name:  "push",
		Arity: 2,
		Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			arr, ok := args[0].(*runtime.ArrayValue)
			if !ok {
				return nil, fmt.Errorf("push expects an array, got %s", args[0].Kind())
			}
			arr.Elements = append(arr.Elements, args[1])
			return arr, nil
		},
	})
}
