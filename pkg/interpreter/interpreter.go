package interpreter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/runtime"
)

// Interpreter drives evaluation of Quill AST nodes. One interpreter may be
// shared by several concurrently running scripts; each script owns its own
// call stack, so only the monitor registry and cancellation flag are
// synchronized.
type Interpreter struct {
	id     string
	global *runtime.Environment
	// monitors maps lock-value identity to its exclusive lock. Entries are
	// never evicted, so a script that synchronizes on unboundedly many
	// distinct values grows the table for the interpreter's lifetime.
	monitors cmap.ConcurrentMap[string, *sync.Mutex]
	stdout   io.Writer
	logger   zerolog.Logger

	cancelRequested atomic.Bool
	ctx             atomic.Pointer[context.Context]
}

// New returns an interpreter with an empty global environment and the
// builtin functions installed.
func New() *Interpreter {
	i := &Interpreter{
		id:       ulid.Make().String(),
		global:   runtime.NewEnvironment(nil),
		monitors: cmap.New[*sync.Mutex](),
		stdout:   os.Stdout,
		logger:   zerolog.Nop(),
	}
	i.installBuiltins()
	return i
}

// ID returns the interpreter instance identifier used in log output.
func (i *Interpreter) ID() string {
	return i.id
}

// GlobalEnvironment returns the interpreter's global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Environment {
	return i.global
}

// SetStdout redirects builtin print output.
func (i *Interpreter) SetStdout(w io.Writer) {
	i.stdout = w
}

// SetLogger attaches a trace logger. Evaluation is silent by default.
func (i *Interpreter) SetLogger(logger zerolog.Logger) {
	i.logger = logger.With().Str("interp", i.id).Logger()
}

// BindContext makes evaluation honor ctx cancellation at the cooperative
// polling points. Safe to call while evaluations are running on other
// goroutines; they observe the new context at their next polling point.
func (i *Interpreter) BindContext(ctx context.Context) {
	i.ctx.Store(&ctx)
}

// RequestCancel asks running evaluations to stop at their next polling
// point. It does not interrupt a blocked synchronized-section wait.
func (i *Interpreter) RequestCancel() {
	i.cancelRequested.Store(true)
}

// ResetCancel clears a previous cancellation request.
func (i *Interpreter) ResetCancel() {
	i.cancelRequested.Store(false)
}

// CancelledError aborts an evaluation when a cancellation request is
// observed at a polling point. It unwinds through the same cleanup path as
// any other evaluation failure.
type CancelledError struct {
	Node  ast.NodeType
	Depth int
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("evaluation cancelled at %s (stack depth %d)", e.Node, e.Depth)
}

// checkCancelled is the cooperative polling point. It is called at every
// step of block evaluation and may abort the whole evaluation.
func (i *Interpreter) checkCancelled(node ast.Node, stack *runtime.CallStack) error {
	ctx := i.ctx.Load()
	if i.cancelRequested.Load() || (ctx != nil && (*ctx).Err() != nil) {
		err := &CancelledError{Node: node.NodeType(), Depth: stack.Depth()}
		i.logger.Debug().Str("node", string(err.Node)).Int("depth", err.Depth).Msg("cancellation observed")
		return err
	}
	return nil
}

// EvaluateModule executes a module on a fresh call stack and returns the
// last evaluated value and the global environment.
func (i *Interpreter) EvaluateModule(module *ast.Module) (runtime.Value, *runtime.Environment, error) {
	stack := runtime.NewCallStack(i.global)
	var last runtime.Value = runtime.VoidValue{}
	for _, stmt := range module.Body {
		val, err := i.evaluateStatement(stmt, stack)
		if err != nil {
			switch err.(type) {
			case returnSignal:
				return nil, nil, fmt.Errorf("return outside function")
			case breakSignal:
				return nil, nil, fmt.Errorf("break outside loop")
			case continueSignal:
				return nil, nil, fmt.Errorf("continue outside loop")
			}
			return nil, nil, err
		}
		last = val
	}
	return last, i.global, nil
}

// monitor returns the exclusive lock backing a synchronized block keyed on
// the given lock value. Scalars key by value, reference values by identity.
func (i *Interpreter) monitor(lockValue runtime.Value) *sync.Mutex {
	key := monitorKey(lockValue)
	i.monitors.SetIfAbsent(key, &sync.Mutex{})
	mu, _ := i.monitors.Get(key)
	return mu
}

func monitorKey(v runtime.Value) string {
	switch val := v.(type) {
	case runtime.StringValue:
		return "s:" + val.Val
	case runtime.IntegerValue:
		return fmt.Sprintf("i:%d", val.Val)
	case runtime.FloatValue:
		return fmt.Sprintf("f:%g", val.Val)
	case runtime.BoolValue:
		return fmt.Sprintf("b:%t", val.Val)
	case *runtime.ArrayValue:
		return fmt.Sprintf("p:%p", val)
	case *runtime.FunctionValue:
		return fmt.Sprintf("p:%p", val)
	case *runtime.ClassValue:
		return fmt.Sprintf("p:%p", val)
	case runtime.NativeFunctionValue:
		return "n:" + val.Name
	default:
		return fmt.Sprintf("v:%v", val)
	}
}

func isTruthy(val runtime.Value) bool {
	switch v := val.(type) {
	case runtime.BoolValue:
		return v.Val
	case runtime.NilValue:
		return false
	case runtime.VoidValue:
		return false
	default:
		return true
	}
}

// Control signals travel the error channel so they unwind through the same
// cleanup paths as evaluation failures; enclosing constructs intercept them.

type returnSignal struct {
	value runtime.Value
}

func (returnSignal) Error() string { return "return" }

type breakSignal struct {
	value runtime.Value
}

func (breakSignal) Error() string { return "break" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue" }

// isControlSignal distinguishes control-flow unwinding from real failures.
func isControlSignal(err error) bool {
	switch err.(type) {
	case returnSignal, breakSignal, continueSignal:
		return true
	}
	return false
}
