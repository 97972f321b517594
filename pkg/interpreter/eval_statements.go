package interpreter

import (
	"fmt"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/runtime"
)

func (i *Interpreter) evaluateStatement(node ast.Statement, stack *runtime.CallStack) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.BlockStatement:
		return i.EvaluateBlock(n, stack)
	case *ast.IfStatement:
		return i.evaluateIfStatement(n, stack)
	case *ast.WhileStatement:
		return i.evaluateWhileStatement(n, stack)
	case *ast.ReturnStatement:
		return i.evaluateReturnStatement(n, stack)
	case *ast.BreakStatement:
		return nil, breakSignal{value: runtime.VoidValue{}}
	case *ast.ContinueStatement:
		return nil, continueSignal{}
	case *ast.FunctionDeclaration:
		return i.evaluateFunctionDeclaration(n, stack)
	case *ast.ClassDeclaration:
		return i.evaluateClassDeclaration(n, stack)
	case *ast.MemberInitializer:
		return i.evaluateMemberInitializer(n, stack)
	case ast.Expression:
		return i.evaluateExpression(n, stack)
	default:
		return nil, fmt.Errorf("unsupported statement type: %s", n.NodeType())
	}
}

func (i *Interpreter) evaluateIfStatement(stmt *ast.IfStatement, stack *runtime.CallStack) (runtime.Value, error) {
	cond, err := i.evaluateExpression(stmt.Condition, stack)
	if err != nil {
		return nil, err
	}
	if isTruthy(cond) {
		return i.EvaluateBlock(stmt.Then, stack)
	}
	if stmt.Else != nil {
		return i.evaluateStatement(stmt.Else, stack)
	}
	return runtime.VoidValue{}, nil
}

func (i *Interpreter) evaluateWhileStatement(loop *ast.WhileStatement, stack *runtime.CallStack) (runtime.Value, error) {
	var result runtime.Value = runtime.VoidValue{}
	for {
		cond, err := i.evaluateExpression(loop.Condition, stack)
		if err != nil {
			return nil, err
		}
		if !isTruthy(cond) {
			return result, nil
		}
		val, err := i.EvaluateBlock(loop.Body, stack)
		if err != nil {
			switch sig := err.(type) {
			case breakSignal:
				return sig.value, nil
			case continueSignal:
				continue
			default:
				return nil, err
			}
		}
		result = val
	}
}

func (i *Interpreter) evaluateReturnStatement(stmt *ast.ReturnStatement, stack *runtime.CallStack) (runtime.Value, error) {
	var result runtime.Value = runtime.NilValue{}
	if stmt.Argument != nil {
		val, err := i.evaluateExpression(stmt.Argument, stack)
		if err != nil {
			return nil, err
		}
		result = val
	}
	return nil, returnSignal{value: result}
}

func (i *Interpreter) evaluateFunctionDeclaration(decl *ast.FunctionDeclaration, stack *runtime.CallStack) (runtime.Value, error) {
	if decl.ID == nil {
		return nil, fmt.Errorf("function declaration requires a name")
	}
	fn := &runtime.FunctionValue{Declaration: decl}
	stack.Top().Define(decl.ID.Name, fn)
	return runtime.VoidValue{}, nil
}

// evaluateClassDeclaration binds a class value in the current frame and runs
// the class body once in the class's own environment. The block evaluator
// re-runs class declarations ahead of ordinary statements, so a repeated
// execution of the enclosing block rebinds a fresh class value.
func (i *Interpreter) evaluateClassDeclaration(decl *ast.ClassDeclaration, stack *runtime.CallStack) (runtime.Value, error) {
	if decl.ID == nil {
		return nil, fmt.Errorf("class declaration requires a name")
	}
	enclosing := stack.Top()
	classEnv := runtime.NewEnvironment(enclosing)
	cls := &runtime.ClassValue{Name: decl.ID.Name, Env: classEnv}
	enclosing.Define(decl.ID.Name, cls)

	stack.Push(classEnv)
	defer stack.Pop()
	if decl.Body != nil {
		if _, err := i.EvaluateBlockScoped(decl.Body, stack, true); err != nil {
			return nil, err
		}
	}
	return runtime.VoidValue{}, nil
}

// evaluateMemberInitializer runs its body inside an existing class's
// environment. The block evaluator guarantees these run only after all
// non-deferred statements of the enclosing block.
func (i *Interpreter) evaluateMemberInitializer(init *ast.MemberInitializer, stack *runtime.CallStack) (runtime.Value, error) {
	if init.Class == nil {
		return nil, fmt.Errorf("member initializer requires a class name")
	}
	val, err := stack.Top().Get(init.Class.Name)
	if err != nil {
		return nil, err
	}
	cls, ok := val.(*runtime.ClassValue)
	if !ok {
		return nil, fmt.Errorf("member initializer target '%s' is not a class, got %s", init.Class.Name, val.Kind())
	}

	stack.Push(cls.Env)
	defer stack.Pop()
	if init.Body != nil {
		if _, err := i.EvaluateBlockScoped(init.Body, stack, true); err != nil {
			return nil, err
		}
	}
	return runtime.VoidValue{}, nil
}
