package interpreter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/runtime"
)

func TestSynchronizedBlocksOnSameLockAreExclusive(t *testing.T) {
	interp := New()
	lock := &runtime.ArrayValue{}

	var active, maxActive atomic.Int64
	enter := runtime.NativeFunctionValue{
		Name:  "enter",
		Arity: 0,
		Impl: func(_ *runtime.NativeCallContext, _ []runtime.Value) (runtime.Value, error) {
			n := active.Add(1)
			for {
				max := maxActive.Load()
				if n <= max || maxActive.CompareAndSwap(max, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			return runtime.VoidValue{}, nil
		},
	}
	exit := runtime.NativeFunctionValue{
		Name:  "exit",
		Arity: 0,
		Impl: func(_ *runtime.NativeCallContext, _ []runtime.Value) (runtime.Value, error) {
			active.Add(-1)
			return runtime.VoidValue{}, nil
		},
	}

	block := ast.SyncBlock(ast.ID("lock"),
		ast.Call(ast.ID("enter")),
		ast.Call(ast.ID("exit")),
	)

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		// Each worker gets its own frame so block scopes are not shared;
		// the lock value itself is shared, so the monitor is too.
		env := runtime.NewEnvironment(interp.GlobalEnvironment())
		env.Define("lock", lock)
		env.Define("enter", enter)
		env.Define("exit", exit)
		wg.Add(1)
		go func() {
			defer wg.Done()
			stack := runtime.NewCallStack(env)
			for run := 0; run < 25; run++ {
				if _, err := interp.EvaluateBlock(block, stack); err != nil {
					t.Errorf("synchronized evaluation failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := maxActive.Load(); got != 1 {
		t.Fatalf("observed %d concurrent holders of the same lock", got)
	}
}

func TestSynchronizedBlocksOnDistinctLocksOverlap(t *testing.T) {
	interp := New()

	// Each side closes its own channel then waits for the other. If the two
	// blocks were serialized the rendezvous would never complete.
	chA := make(chan struct{})
	chB := make(chan struct{})
	meet := func(mine, other chan struct{}) runtime.NativeFunctionValue {
		return runtime.NativeFunctionValue{
			Name:  "meet",
			Arity: 0,
			Impl: func(_ *runtime.NativeCallContext, _ []runtime.Value) (runtime.Value, error) {
				close(mine)
				select {
				case <-other:
					return runtime.VoidValue{}, nil
				case <-time.After(5 * time.Second):
					return nil, errNoOverlap
				}
			},
		}
	}

	block := ast.SyncBlock(ast.ID("lock"), ast.Call(ast.ID("meet")))

	run := func(lockName string, fn runtime.NativeFunctionValue, done chan<- error) {
		env := runtime.NewEnvironment(interp.GlobalEnvironment())
		env.Define("lock", runtime.StringValue{Val: lockName})
		env.Define("meet", fn)
		stack := runtime.NewCallStack(env)
		_, err := interp.EvaluateBlock(block, stack)
		done <- err
	}

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go run("A", meet(chA, chB), doneA)
	go run("B", meet(chB, chA), doneB)

	for _, done := range []chan error{doneA, doneB} {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("distinct locks did not allow overlap: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for synchronized blocks")
		}
	}
}

var errNoOverlap = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "rendezvous timed out" }

func TestMonitorRegistrySharedAcrossStacks(t *testing.T) {
	interp := New()
	lock := runtime.StringValue{Val: "shared"}

	a := interp.monitor(lock)
	b := interp.monitor(lock)
	if a != b {
		t.Fatalf("same lock value produced distinct monitors")
	}
	c := interp.monitor(runtime.StringValue{Val: "other"})
	if a == c {
		t.Fatalf("distinct lock values share a monitor")
	}
}

func TestMonitorKeysReferenceValuesByIdentity(t *testing.T) {
	interp := New()
	first := &runtime.ArrayValue{}
	second := &runtime.ArrayValue{}
	if interp.monitor(first) == interp.monitor(second) {
		t.Fatalf("distinct arrays must not share a monitor")
	}
	if interp.monitor(first) != interp.monitor(first) {
		t.Fatalf("same array must map to the same monitor")
	}
}
