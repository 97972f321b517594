package interpreter

import (
	"context"
	"strings"
	"sync"
	"testing"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/runtime"
)

// recorder returns a native function that appends its argument to a shared
// log, for observing evaluation order.
func recorder() (func() []string, runtime.NativeFunctionValue) {
	var mu sync.Mutex
	var log []string
	fn := runtime.NativeFunctionValue{
		Name:  "record",
		Arity: 1,
		Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			mu.Lock()
			defer mu.Unlock()
			log = append(log, runtime.ToString(args[0]))
			return runtime.VoidValue{}, nil
		},
	}
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), log...)
	}
	return snapshot, fn
}

func record(label string) ast.Statement {
	return ast.Call(ast.ID("record"), ast.Str(label))
}

func TestBlockScopeRestoredAfterEvaluation(t *testing.T) {
	interp := New()
	stack := runtime.NewCallStack(interp.GlobalEnvironment())
	before := stack.Top()

	block := ast.Block(ast.Assign(ast.ID("x"), ast.Int(1)), ast.ID("x"))
	val, err := interp.EvaluateBlock(block, stack)
	if err != nil {
		t.Fatalf("block evaluation failed: %v", err)
	}
	if iv, ok := val.(runtime.IntegerValue); !ok || iv.Val != 1 {
		t.Fatalf("unexpected block result %#v", val)
	}
	if stack.Top() != before {
		t.Fatalf("current frame not restored after evaluation")
	}
	if stack.Depth() != 1 {
		t.Fatalf("unexpected stack depth %d", stack.Depth())
	}
}

func TestBlockScopeRestoredWhenChildFails(t *testing.T) {
	interp := New()
	stack := runtime.NewCallStack(interp.GlobalEnvironment())
	before := stack.Top()

	block := ast.Block(
		ast.Assign(ast.ID("x"), ast.Int(1)),
		ast.ID("no_such_variable"),
	)
	if _, err := interp.EvaluateBlock(block, stack); err == nil {
		t.Fatalf("expected evaluation error")
	}
	if stack.Top() != before {
		t.Fatalf("current frame not restored after failure")
	}
}

func TestBlockFrameReusedAcrossExecutions(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	stack := runtime.NewCallStack(env)

	block := ast.Block(ast.Assign(ast.ID("x"), ast.Int(1)))
	if _, err := interp.EvaluateBlock(block, stack); err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	first := env.BlockEnv()
	if first == nil {
		t.Fatalf("block frame not cached on the enclosing frame")
	}
	if first.Len() != 0 {
		t.Fatalf("block frame not cleared after evaluation: %v", first.Keys())
	}
	if _, err := interp.EvaluateBlock(block, stack); err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}
	if env.BlockEnv() != first {
		t.Fatalf("block frame recreated instead of reused")
	}
}

func TestBlockFrameSharedByBlocksInSameFrame(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	stack := runtime.NewCallStack(env)

	if _, err := interp.EvaluateBlock(ast.Block(ast.Assign(ast.ID("a"), ast.Int(1))), stack); err != nil {
		t.Fatalf("first block failed: %v", err)
	}
	cached := env.BlockEnv()
	if _, err := interp.EvaluateBlock(ast.Block(ast.Assign(ast.ID("b"), ast.Int(2))), stack); err != nil {
		t.Fatalf("second block failed: %v", err)
	}
	if env.BlockEnv() != cached {
		t.Fatalf("distinct blocks in the same frame should share the cached block frame")
	}
}

func TestOverrideScopeRunsInCurrentFrame(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	stack := runtime.NewCallStack(env)

	block := ast.Block(ast.Assign(ast.ID("x"), ast.Int(7)))
	if _, err := interp.EvaluateBlockScoped(block, stack, true); err != nil {
		t.Fatalf("override evaluation failed: %v", err)
	}
	if env.BlockEnv() != nil {
		t.Fatalf("override evaluation must not create a block frame")
	}
	val, err := env.Get("x")
	if err != nil {
		t.Fatalf("binding not visible in the current frame: %v", err)
	}
	if iv, ok := val.(runtime.IntegerValue); !ok || iv.Val != 7 {
		t.Fatalf("unexpected value %#v", val)
	}
}

func TestEmptyBlockYieldsVoid(t *testing.T) {
	interp := New()
	stack := runtime.NewCallStack(interp.GlobalEnvironment())
	val, err := interp.EvaluateBlock(ast.Block(), stack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := val.(runtime.VoidValue); !ok {
		t.Fatalf("expected void result, got %#v", val)
	}
}

func TestClassPassRunsOnFirstExecutionWithoutClasses(t *testing.T) {
	interp := New()
	stack := runtime.NewCallStack(interp.GlobalEnvironment())

	block := ast.Block(ast.Assign(ast.ID("x"), ast.Int(1)))
	if !block.FirstRun() {
		t.Fatalf("fresh node should report first run")
	}
	if _, err := interp.EvaluateBlock(block, stack); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if block.FirstRun() {
		t.Fatalf("first-run latch not cleared")
	}
	if block.HasClassDeclarations() {
		t.Fatalf("class flag set without class declarations")
	}
}

func TestClassDeclarationsRunBeforeOtherStatements(t *testing.T) {
	interp := New()
	snapshot, fn := recorder()
	interp.GlobalEnvironment().Define("record", fn)
	stack := runtime.NewCallStack(interp.GlobalEnvironment())

	block := ast.Block(
		record("stmt"),
		ast.Class("C", record("class")),
	)
	if _, err := interp.EvaluateBlock(block, stack); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	got := snapshot()
	if strings.Join(got, ",") != "class,stmt" {
		t.Fatalf("unexpected order %v", got)
	}
	if !block.HasClassDeclarations() {
		t.Fatalf("class flag not latched")
	}
}

func TestClassPassRepeatsOnceClassesWereFound(t *testing.T) {
	interp := New()
	snapshot, fn := recorder()
	interp.GlobalEnvironment().Define("record", fn)
	stack := runtime.NewCallStack(interp.GlobalEnvironment())

	block := ast.Block(ast.Class("C", record("class")))
	for run := 0; run < 3; run++ {
		if _, err := interp.EvaluateBlock(block, stack); err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
	}
	got := snapshot()
	if len(got) != 3 {
		t.Fatalf("expected the class pass on every execution, got %v", got)
	}
}

func TestDeferredInitializersRunLastInOriginalOrder(t *testing.T) {
	interp := New()
	snapshot, fn := recorder()
	interp.GlobalEnvironment().Define("record", fn)
	stack := runtime.NewCallStack(interp.GlobalEnvironment())

	block := ast.Block(
		ast.Class("C"),
		ast.Init("C", record("i1")),
		record("s1"),
		ast.Init("C", record("i2")),
		record("s2"),
	)
	if _, err := interp.EvaluateBlock(block, stack); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	got := snapshot()
	if strings.Join(got, ",") != "s1,s2,i1,i2" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDeferredInitializersDrainAfterReturn(t *testing.T) {
	interp := New()
	snapshot, fn := recorder()
	interp.GlobalEnvironment().Define("record", fn)
	stack := runtime.NewCallStack(interp.GlobalEnvironment())

	block := ast.Block(
		ast.Class("C"),
		ast.Init("C", record("i1")),
		record("s1"),
		ast.Ret(ast.Int(42)),
		record("s2"),
		ast.Init("C", record("late")),
	)
	_, err := interp.EvaluateBlock(block, stack)
	sig, ok := err.(returnSignal)
	if !ok {
		t.Fatalf("expected return signal, got %v", err)
	}
	if iv, ok := sig.value.(runtime.IntegerValue); !ok || iv.Val != 42 {
		t.Fatalf("unexpected return value %#v", sig.value)
	}
	got := snapshot()
	if strings.Join(got, ",") != "s1,i1" {
		t.Fatalf("unexpected order %v", got)
	}
	if stack.Top() != interp.GlobalEnvironment() {
		t.Fatalf("scope not restored after return")
	}
}

func TestNodeFilterSuppressesChildren(t *testing.T) {
	interp := New()
	snapshot, fn := recorder()
	interp.GlobalEnvironment().Define("record", fn)
	stack := runtime.NewCallStack(interp.GlobalEnvironment())

	hidden := record("hidden")
	block := ast.Block(record("visible"), hidden)
	filter := func(node ast.Statement) bool { return node != hidden }
	if _, err := interp.EvaluateBlockFiltered(block, stack, false, filter); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	got := snapshot()
	if strings.Join(got, ",") != "visible" {
		t.Fatalf("filter not applied: %v", got)
	}
}

func TestCancellationAbortsEvaluation(t *testing.T) {
	interp := New()
	stack := runtime.NewCallStack(interp.GlobalEnvironment())
	before := stack.Top()

	interp.RequestCancel()
	_, err := interp.EvaluateBlock(ast.Block(ast.Int(1)), stack)
	if _, ok := err.(*CancelledError); !ok {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if stack.Top() != before {
		t.Fatalf("scope not restored after cancellation")
	}

	interp.ResetCancel()
	if _, err := interp.EvaluateBlock(ast.Block(ast.Int(1)), stack); err != nil {
		t.Fatalf("evaluation after reset failed: %v", err)
	}
}

func TestCancellationMidBlockStillRestoresScope(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	stack := runtime.NewCallStack(env)

	// The first child trips the cancellation flag; the check after the
	// child's evaluation must abort before the second child runs.
	env.Define("trip", runtime.NativeFunctionValue{
		Name:  "trip",
		Arity: 0,
		Impl: func(_ *runtime.NativeCallContext, _ []runtime.Value) (runtime.Value, error) {
			interp.RequestCancel()
			return runtime.VoidValue{}, nil
		},
	})
	snapshot, fn := recorder()
	env.Define("record", fn)

	block := ast.Block(ast.Call(ast.ID("trip")), record("after"))
	_, err := interp.EvaluateBlock(block, stack)
	if _, ok := err.(*CancelledError); !ok {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if got := snapshot(); len(got) != 0 {
		t.Fatalf("children after the cancellation point must not run: %v", got)
	}
	if stack.Top() != env {
		t.Fatalf("scope not restored after mid-block cancellation")
	}
	if block.FirstRun() != true {
		t.Fatalf("an aborted first execution must leave the first-run latch set")
	}
}

func TestBindContextFromAnotherGoroutine(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	stack := runtime.NewCallStack(env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A concurrent goroutine binds an already-cancelled context while the
	// block is mid-evaluation; the polling point after the first child must
	// observe it.
	bound := make(chan struct{})
	env.Define("wait", runtime.NativeFunctionValue{
		Name:  "wait",
		Arity: 0,
		Impl: func(_ *runtime.NativeCallContext, _ []runtime.Value) (runtime.Value, error) {
			<-bound
			return runtime.VoidValue{}, nil
		},
	})
	go func() {
		interp.BindContext(ctx)
		close(bound)
	}()

	block := ast.Block(ast.Call(ast.ID("wait")), ast.Int(1))
	_, err := interp.EvaluateBlock(block, stack)
	if _, ok := err.(*CancelledError); !ok {
		t.Fatalf("expected cancellation from concurrently bound context, got %v", err)
	}
	if stack.Top() != env {
		t.Fatalf("scope not restored after cancellation")
	}
}

func TestBoundContextCancelsEvaluation(t *testing.T) {
	interp := New()
	ctx, cancel := context.WithCancel(context.Background())
	interp.BindContext(ctx)
	cancel()

	stack := runtime.NewCallStack(interp.GlobalEnvironment())
	_, err := interp.EvaluateBlock(ast.Block(ast.Int(1)), stack)
	if _, ok := err.(*CancelledError); !ok {
		t.Fatalf("expected cancellation from bound context, got %v", err)
	}
}

func TestSyncLockFailureAbortsBeforeScopeEntry(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	stack := runtime.NewCallStack(env)

	block := ast.SyncBlock(ast.ID("missing_lock"), ast.Assign(ast.ID("x"), ast.Int(1)))
	if _, err := interp.EvaluateBlock(block, stack); err == nil {
		t.Fatalf("expected lock expression failure")
	}
	if env.BlockEnv() != nil {
		t.Fatalf("no block frame should be created when the lock expression fails")
	}
	if !block.FirstRun() {
		t.Fatalf("aborted execution must not clear the first-run latch")
	}
}

func TestSyncLockEvaluatedInEnclosingScope(t *testing.T) {
	interp := New()
	env := interp.GlobalEnvironment()
	env.Define("lock", runtime.StringValue{Val: "L"})
	stack := runtime.NewCallStack(env)

	block := ast.SyncBlock(ast.ID("lock"), ast.Assign(ast.ID("x"), ast.Int(1)), ast.ID("x"))
	val, err := interp.EvaluateBlock(block, stack)
	if err != nil {
		t.Fatalf("synchronized evaluation failed: %v", err)
	}
	if iv, ok := val.(runtime.IntegerValue); !ok || iv.Val != 1 {
		t.Fatalf("unexpected result %#v", val)
	}
}

func TestSynchronizeOnNilFails(t *testing.T) {
	interp := New()
	stack := runtime.NewCallStack(interp.GlobalEnvironment())
	block := ast.SyncBlock(ast.Nil(), ast.Int(1))
	if _, err := interp.EvaluateBlock(block, stack); err == nil {
		t.Fatalf("expected error synchronizing on nil")
	}
}
