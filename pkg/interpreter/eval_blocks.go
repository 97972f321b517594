package interpreter

import (
	"fmt"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/runtime"
)

// NodeFilter suppresses children from block evaluation without affecting
// their indexing. Used for selective re-execution of a block's statements.
type NodeFilter func(node ast.Statement) bool

// EvaluateBlock executes a block under a managed block scope.
func (i *Interpreter) EvaluateBlock(block *ast.BlockStatement, stack *runtime.CallStack) (runtime.Value, error) {
	return i.EvaluateBlockFiltered(block, stack, false, nil)
}

// EvaluateBlockScoped executes a block. When overrideScope is set the block
// runs in the stack's current frame instead of a subordinate one; callers
// that have already established the correct scope (function bodies, class
// bodies, member initializers) use this, as do callers performing multiple
// passes over the same block.
func (i *Interpreter) EvaluateBlockScoped(block *ast.BlockStatement, stack *runtime.CallStack, overrideScope bool) (runtime.Value, error) {
	return i.EvaluateBlockFiltered(block, stack, overrideScope, nil)
}

// EvaluateBlockFiltered is the full block entry point: it handles the
// synchronized-block protocol and delegates the body to runBlockBody.
//
// Ordering is load-bearing: the lock expression is evaluated in the
// enclosing, pre-swap scope; cancellation is re-checked after the lock
// value is produced; only then is the scope entered. A lock expression that
// fails aborts before any frame swap, so there is nothing to clean up.
func (i *Interpreter) EvaluateBlockFiltered(block *ast.BlockStatement, stack *runtime.CallStack, overrideScope bool, filter NodeFilter) (runtime.Value, error) {
	if err := i.checkCancelled(block, stack); err != nil {
		return nil, err
	}

	var lockValue runtime.Value
	if block.IsSynchronized {
		expr, err := syncLockExpression(block)
		if err != nil {
			return nil, err
		}
		lockValue, err = i.evaluateExpression(expr, stack)
		if err != nil {
			return nil, err
		}
		switch lockValue.(type) {
		case nil, runtime.NilValue, runtime.VoidValue:
			return nil, fmt.Errorf("cannot synchronize on nil")
		}
	}

	if err := i.checkCancelled(block, stack); err != nil {
		return nil, err
	}

	var ret runtime.Value
	var err error
	if block.IsSynchronized {
		mu := i.monitor(lockValue)
		i.logger.Trace().Str("lock", runtime.ToString(lockValue)).Msg("acquiring block monitor")
		mu.Lock()
		func() {
			defer mu.Unlock()
			ret, err = i.runBlockBody(block, stack, overrideScope, filter)
		}()
	} else {
		ret, err = i.runBlockBody(block, stack, overrideScope, filter)
	}
	if err != nil {
		return nil, err
	}

	if err := i.checkCancelled(block, stack); err != nil {
		return nil, err
	}
	return ret, nil
}

// runBlockBody executes the block's children in two passes under a managed
// scope. Pass one handles class declarations so later statements can see
// the classes they introduce; it runs on the node's first execution
// unconditionally (to seed the sticky flag) and afterwards only when a
// class declaration was ever found. Pass two runs everything else in
// order, deferring member initializers until the end so the class they
// augment has finished initializing.
func (i *Interpreter) runBlockBody(block *ast.BlockStatement, stack *runtime.CallStack, overrideScope bool, filter NodeFilter) (runtime.Value, error) {
	var ret runtime.Value = runtime.VoidValue{}

	if !overrideScope {
		top := stack.Top()
		blockEnv := top.BlockEnv()
		if blockEnv == nil {
			blockEnv = runtime.NewEnvironment(top)
			top.SetBlockEnv(blockEnv)
		}
		enclosing := stack.Swap(blockEnv)
		defer func() {
			// The block frame is reused next time: clear its contents,
			// keep its identity, and put the enclosing frame back. This
			// must run on every exit path.
			stack.Top().Clear()
			stack.Swap(enclosing)
		}()
	}

	start := 0
	if block.IsSynchronized {
		start = 1
	}
	body := block.Body

	if block.FirstRun() || block.HasClassDeclarations() {
		for idx := start; idx < len(body); idx++ {
			node := body[idx]
			if filter != nil && !filter(node) {
				continue
			}
			if decl, ok := node.(*ast.ClassDeclaration); ok {
				block.NoteClassDeclaration()
				if _, err := i.evaluateStatement(decl, stack); err != nil {
					return nil, err
				}
			}
			if err := i.checkCancelled(block, stack); err != nil {
				return nil, err
			}
		}
	}

	var deferred []*ast.MemberInitializer
	var signal error

	for idx := start; idx < len(body); idx++ {
		node := body[idx]

		if _, ok := node.(*ast.ClassDeclaration); ok {
			continue
		}
		if filter != nil && !filter(node) {
			continue
		}
		// Member initializers override class members; let the class finish
		// initializing first.
		if init, ok := node.(*ast.MemberInitializer); ok {
			deferred = append(deferred, init)
			continue
		}

		val, err := i.evaluateStatement(node, stack)
		if err != nil && !isControlSignal(err) {
			return nil, err
		}
		if cerr := i.checkCancelled(block, stack); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			// A return (or break/continue) was issued: stop evaluating
			// children, but still drain the initializers collected so far.
			signal = err
			break
		}
		ret = val
	}

	for len(deferred) > 0 {
		node := deferred[0]
		deferred = deferred[1:]
		if _, err := i.evaluateStatement(node, stack); err != nil && !isControlSignal(err) {
			return nil, err
		}
	}

	block.FinishFirstRun()

	if err := i.checkCancelled(block, stack); err != nil {
		return nil, err
	}
	if signal != nil {
		return nil, signal
	}
	return ret, nil
}

func syncLockExpression(block *ast.BlockStatement) (ast.Expression, error) {
	if len(block.Body) == 0 {
		return nil, fmt.Errorf("synchronized block requires a lock expression")
	}
	expr, ok := block.Body[0].(ast.Expression)
	if !ok {
		return nil, fmt.Errorf("synchronized block lock must be an expression, got %s", block.Body[0].NodeType())
	}
	return expr, nil
}
