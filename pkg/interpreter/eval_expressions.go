package interpreter

import (
	"fmt"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/runtime"
)

func (i *Interpreter) evaluateExpression(node ast.Expression, stack *runtime.CallStack) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.StringLiteral:
		return runtime.StringValue{Val: n.Value}, nil
	case *ast.IntegerLiteral:
		return runtime.IntegerValue{Val: n.Value}, nil
	case *ast.FloatLiteral:
		return runtime.FloatValue{Val: n.Value}, nil
	case *ast.BooleanLiteral:
		return runtime.BoolValue{Val: n.Value}, nil
	case *ast.NilLiteral:
		return runtime.NilValue{}, nil
	case *ast.ArrayLiteral:
		elements := make([]runtime.Value, len(n.Elements))
		for idx, el := range n.Elements {
			val, err := i.evaluateExpression(el, stack)
			if err != nil {
				return nil, err
			}
			elements[idx] = val
		}
		return &runtime.ArrayValue{Elements: elements}, nil
	case *ast.Identifier:
		return stack.Top().Get(n.Name)
	case *ast.AssignmentExpression:
		return i.evaluateAssignment(n, stack)
	case *ast.UnaryExpression:
		return i.evaluateUnary(n, stack)
	case *ast.BinaryExpression:
		return i.evaluateBinary(n, stack)
	case *ast.CallExpression:
		return i.evaluateCall(n, stack)
	case *ast.MemberAccessExpression:
		return i.evaluateMemberAccess(n, stack)
	case *ast.IndexExpression:
		return i.evaluateIndex(n, stack)
	case *ast.BlockStatement:
		return i.EvaluateBlock(n, stack)
	case *ast.IfStatement:
		return i.evaluateIfStatement(n, stack)
	default:
		return nil, fmt.Errorf("unsupported expression type: %s", n.NodeType())
	}
}

// evaluateAssignment updates an existing binding when one is visible from
// the current frame, and defines into the current frame otherwise.
func (i *Interpreter) evaluateAssignment(expr *ast.AssignmentExpression, stack *runtime.CallStack) (runtime.Value, error) {
	val, err := i.evaluateExpression(expr.Value, stack)
	if err != nil {
		return nil, err
	}
	switch target := expr.Target.(type) {
	case *ast.Identifier:
		env := stack.Top()
		if env.Has(target.Name) {
			if err := env.Assign(target.Name, val); err != nil {
				return nil, err
			}
		} else {
			env.Define(target.Name, val)
		}
		return val, nil
	case *ast.MemberAccessExpression:
		obj, err := i.evaluateExpression(target.Object, stack)
		if err != nil {
			return nil, err
		}
		cls, ok := obj.(*runtime.ClassValue)
		if !ok {
			return nil, fmt.Errorf("cannot assign member on %s", obj.Kind())
		}
		cls.Env.Define(target.Member.Name, val)
		return val, nil
	case *ast.IndexExpression:
		obj, err := i.evaluateExpression(target.Object, stack)
		if err != nil {
			return nil, err
		}
		arr, ok := obj.(*runtime.ArrayValue)
		if !ok {
			return nil, fmt.Errorf("cannot index-assign on %s", obj.Kind())
		}
		idxVal, err := i.evaluateExpression(target.Index, stack)
		if err != nil {
			return nil, err
		}
		idx, ok := idxVal.(runtime.IntegerValue)
		if !ok {
			return nil, fmt.Errorf("array index must be an integer, got %s", idxVal.Kind())
		}
		if idx.Val < 0 || idx.Val >= int64(len(arr.Elements)) {
			return nil, fmt.Errorf("array index %d out of bounds (len %d)", idx.Val, len(arr.Elements))
		}
		arr.Elements[idx.Val] = val
		return val, nil
	default:
		return nil, fmt.Errorf("invalid assignment target: %s", expr.Target.NodeType())
	}
}

func (i *Interpreter) evaluateUnary(expr *ast.UnaryExpression, stack *runtime.CallStack) (runtime.Value, error) {
	operand, err := i.evaluateExpression(expr.Operand, stack)
	if err != nil {
		return nil, err
	}
	switch expr.Operator {
	case ast.UnaryNot:
		return runtime.BoolValue{Val: !isTruthy(operand)}, nil
	case ast.UnaryNegate:
		switch v := operand.(type) {
		case runtime.IntegerValue:
			return runtime.IntegerValue{Val: -v.Val}, nil
		case runtime.FloatValue:
			return runtime.FloatValue{Val: -v.Val}, nil
		}
		return nil, fmt.Errorf("cannot negate %s", operand.Kind())
	default:
		return nil, fmt.Errorf("unsupported unary operator %q", expr.Operator)
	}
}

func (i *Interpreter) evaluateBinary(expr *ast.BinaryExpression, stack *runtime.CallStack) (runtime.Value, error) {
	// && and || short-circuit.
	if expr.Operator == "&&" || expr.Operator == "||" {
		left, err := i.evaluateExpression(expr.Left, stack)
		if err != nil {
			return nil, err
		}
		if expr.Operator == "&&" && !isTruthy(left) {
			return runtime.BoolValue{Val: false}, nil
		}
		if expr.Operator == "||" && isTruthy(left) {
			return runtime.BoolValue{Val: true}, nil
		}
		right, err := i.evaluateExpression(expr.Right, stack)
		if err != nil {
			return nil, err
		}
		return runtime.BoolValue{Val: isTruthy(right)}, nil
	}

	left, err := i.evaluateExpression(expr.Left, stack)
	if err != nil {
		return nil, err
	}
	right, err := i.evaluateExpression(expr.Right, stack)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	case "==":
		return runtime.BoolValue{Val: valuesEqual(left, right)}, nil
	case "!=":
		return runtime.BoolValue{Val: !valuesEqual(left, right)}, nil
	}

	if ls, lok := left.(runtime.StringValue); lok {
		switch expr.Operator {
		case "+":
			return runtime.StringValue{Val: ls.Val + runtime.ToString(right)}, nil
		case "<", "<=", ">", ">=":
			rs, rok := right.(runtime.StringValue)
			if !rok {
				return nil, fmt.Errorf("cannot compare string with %s", right.Kind())
			}
			return compareStrings(expr.Operator, ls.Val, rs.Val)
		}
	}

	return numericBinary(expr.Operator, left, right)
}

func valuesEqual(left, right runtime.Value) bool {
	switch l := left.(type) {
	case runtime.NilValue:
		_, ok := right.(runtime.NilValue)
		return ok
	case runtime.StringValue:
		r, ok := right.(runtime.StringValue)
		return ok && l.Val == r.Val
	case runtime.BoolValue:
		r, ok := right.(runtime.BoolValue)
		return ok && l.Val == r.Val
	case runtime.IntegerValue:
		switch r := right.(type) {
		case runtime.IntegerValue:
			return l.Val == r.Val
		case runtime.FloatValue:
			return float64(l.Val) == r.Val
		}
		return false
	case runtime.FloatValue:
		switch r := right.(type) {
		case runtime.IntegerValue:
			return l.Val == float64(r.Val)
		case runtime.FloatValue:
			return l.Val == r.Val
		}
		return false
	default:
		return left == right
	}
}

func compareStrings(op, left, right string) (runtime.Value, error) {
	switch op {
	case "<":
		return runtime.BoolValue{Val: left < right}, nil
	case "<=":
		return runtime.BoolValue{Val: left <= right}, nil
	case ">":
		return runtime.BoolValue{Val: left > right}, nil
	case ">=":
		return runtime.BoolValue{Val: left >= right}, nil
	}
	return nil, fmt.Errorf("unsupported string operator %q", op)
}

func numericBinary(op string, left, right runtime.Value) (runtime.Value, error) {
	li, lIsInt := left.(runtime.IntegerValue)
	lf, lIsFloat := left.(runtime.FloatValue)
	ri, rIsInt := right.(runtime.IntegerValue)
	rf, rIsFloat := right.(runtime.FloatValue)

	if (!lIsInt && !lIsFloat) || (!rIsInt && !rIsFloat) {
		return nil, fmt.Errorf("operator %q requires numeric operands, got %s and %s", op, left.Kind(), right.Kind())
	}

	if lIsInt && rIsInt {
		switch op {
		case "+":
			return runtime.IntegerValue{Val: li.Val + ri.Val}, nil
		case "-":
			return runtime.IntegerValue{Val: li.Val - ri.Val}, nil
		case "*":
			return runtime.IntegerValue{Val: li.Val * ri.Val}, nil
		case "/":
			if ri.Val == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return runtime.IntegerValue{Val: li.Val / ri.Val}, nil
		case "%":
			if ri.Val == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return runtime.IntegerValue{Val: li.Val % ri.Val}, nil
		case "<":
			return runtime.BoolValue{Val: li.Val < ri.Val}, nil
		case "<=":
			return runtime.BoolValue{Val: li.Val <= ri.Val}, nil
		case ">":
			return runtime.BoolValue{Val: li.Val > ri.Val}, nil
		case ">=":
			return runtime.BoolValue{Val: li.Val >= ri.Val}, nil
		}
		return nil, fmt.Errorf("unsupported operator %q", op)
	}

	lv := lf.Val
	if lIsInt {
		lv = float64(li.Val)
	}
	rv := rf.Val
	if rIsInt {
		rv = float64(ri.Val)
	}
	switch op {
	case "+":
		return runtime.FloatValue{Val: lv + rv}, nil
	case "-":
		return runtime.FloatValue{Val: lv - rv}, nil
	case "*":
		return runtime.FloatValue{Val: lv * rv}, nil
	case "/":
		if rv == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return runtime.FloatValue{Val: lv / rv}, nil
	case "<":
		return runtime.BoolValue{Val: lv < rv}, nil
	case "<=":
		return runtime.BoolValue{Val: lv <= rv}, nil
	case ">":
		return runtime.BoolValue{Val: lv > rv}, nil
	case ">=":
		return runtime.BoolValue{Val: lv >= rv}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

// evaluateCall runs a function body against a fresh frame whose parent is
// the caller's current frame: Quill is dynamically scoped, so callees see
// their caller's bindings.
func (i *Interpreter) evaluateCall(expr *ast.CallExpression, stack *runtime.CallStack) (runtime.Value, error) {
	callee, err := i.evaluateExpression(expr.Callee, stack)
	if err != nil {
		return nil, err
	}
	args := make([]runtime.Value, len(expr.Arguments))
	for idx, arg := range expr.Arguments {
		val, err := i.evaluateExpression(arg, stack)
		if err != nil {
			return nil, err
		}
		args[idx] = val
	}

	switch fn := callee.(type) {
	case *runtime.FunctionValue:
		return i.callFunction(fn, args, stack)
	case runtime.NativeFunctionValue:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return nil, fmt.Errorf("%s expects %d arguments, got %d", fn.Name, fn.Arity, len(args))
		}
		return fn.Impl(&runtime.NativeCallContext{Env: stack.Top()}, args)
	default:
		return nil, fmt.Errorf("cannot call %s", callee.Kind())
	}
}

func (i *Interpreter) callFunction(fn *runtime.FunctionValue, args []runtime.Value, stack *runtime.CallStack) (runtime.Value, error) {
	decl := fn.Declaration
	if len(args) != len(decl.Params) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", fn.Name(), len(decl.Params), len(args))
	}
	frame := runtime.NewEnvironment(stack.Top())
	for idx, param := range decl.Params {
		frame.Define(param.Name, args[idx])
	}

	stack.Push(frame)
	defer stack.Pop()

	// The call frame is already the right scope for the body, so the block
	// runs with the override flag and no subordinate frame is swapped in.
	val, err := i.EvaluateBlockScoped(decl.Body, stack, true)
	if err != nil {
		if ret, ok := err.(returnSignal); ok {
			return ret.value, nil
		}
		return nil, err
	}
	return val, nil
}

func (i *Interpreter) evaluateMemberAccess(expr *ast.MemberAccessExpression, stack *runtime.CallStack) (runtime.Value, error) {
	obj, err := i.evaluateExpression(expr.Object, stack)
	if err != nil {
		return nil, err
	}
	cls, ok := obj.(*runtime.ClassValue)
	if !ok {
		return nil, fmt.Errorf("member access requires a class value, got %s", obj.Kind())
	}
	if val, ok := cls.Env.GetOwn(expr.Member.Name); ok {
		return val, nil
	}
	return nil, fmt.Errorf("class %s has no member '%s'", cls.Name, expr.Member.Name)
}

func (i *Interpreter) evaluateIndex(expr *ast.IndexExpression, stack *runtime.CallStack) (runtime.Value, error) {
	obj, err := i.evaluateExpression(expr.Object, stack)
	if err != nil {
		return nil, err
	}
	idxVal, err := i.evaluateExpression(expr.Index, stack)
	if err != nil {
		return nil, err
	}
	idx, ok := idxVal.(runtime.IntegerValue)
	if !ok {
		return nil, fmt.Errorf("index must be an integer, got %s", idxVal.Kind())
	}
	switch v := obj.(type) {
	case *runtime.ArrayValue:
		if idx.Val < 0 || idx.Val >= int64(len(v.Elements)) {
			return nil, fmt.Errorf("array index %d out of bounds (len %d)", idx.Val, len(v.Elements))
		}
		return v.Elements[idx.Val], nil
	case runtime.StringValue:
		runes := []rune(v.Val)
		if idx.Val < 0 || idx.Val >= int64(len(runes)) {
			return nil, fmt.Errorf("string index %d out of bounds (len %d)", idx.Val, len(runes))
		}
		return runtime.StringValue{Val: string(runes[idx.Val])}, nil
	default:
		return nil, fmt.Errorf("cannot index %s", obj.Kind())
	}
}
