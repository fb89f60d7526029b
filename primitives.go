package smg

import (
	"fmt"

	"go.uber.org/zap"
)

// nondetTypes maps __VERIFIER_nondet_ suffixes to their result type.
var nondetTypes = map[string]*Type{
	"bool":      Bool,
	"char":      Char,
	"uchar":     UChar,
	"short":     Short,
	"ushort":    UShort,
	"int":       Int,
	"uint":      UInt,
	"unsigned":  UInt,
	"long":      Long,
	"ulong":     ULong,
	"longlong":  LongLong,
	"ulonglong": ULongLong,
	"loff_t":    LongLong,
	"size_t":    ULong,
	"u8":        UChar,
	"u16":       UShort,
	"u32":       UInt,
	"u64":       ULongLong,
	"pointer":   PointerTo(Void),
}

// registerPrimitives registers handlers for allocation, deallocation,
// memory and verifier functions.
func (in *Interpreter) registerPrimitives() {
	for _, name := range in.opts.AllocationFunctions {
		in.Register(name, executeMalloc)
	}
	for _, name := range in.opts.ZeroingAllocationFunctions {
		if name == "calloc" {
			in.Register(name, executeCalloc)
		} else {
			in.Register(name, executeZalloc)
		}
	}
	for _, name := range in.opts.DeallocationFunctions {
		in.Register(name, executeFree)
	}
	for _, name := range in.opts.ExternalAllocationFunctions {
		in.Register(name, executeExternalAlloc)
	}
	for _, name := range in.opts.StackAllocationFunctions {
		in.Register(name, executeAlloca)
	}
	for suffix, t := range nondetTypes {
		in.Register("__VERIFIER_nondet_"+suffix, nondet(t))
	}

	in.Register("__VERIFIER_assume", executeAssume)
	in.Register("__builtin_expect", executeExpect)
	in.Register("memset", executeMemset)
	in.Register("memcpy", executeMemcpy)
	in.Register("memmove", executeMemcpy)
	in.Register("null_deref_assert_check", executeDerefCheck)

	for _, name := range []string{"exit", "abort", "reach_error", "__VERIFIER_error", "__assert_fail"} {
		in.Register(name, executeExit)
	}
}

// arg returns argument i converted to type t.
func (in *Interpreter) arg(call *Call, args []Expr, i int, t *Type) (Expr, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s: missing argument %d", call.Func, i+1)
	}
	return in.convert(args[i], call.Args[i].Type(), t), nil
}

// result stores value of type t into the call's destination, if any.
func (in *Interpreter) result(state *State, call *Call, value Expr, t *Type) error {
	if call.Dst == nil {
		return nil
	}
	return in.assign(state, call.Dst, in.convert(value, t, call.Dst.Type()))
}

func executeMalloc(in *Interpreter, state *State, call *Call, args []Expr) error {
	size, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}
	return in.allocate(state, call, size, false)
}

func executeZalloc(in *Interpreter, state *State, call *Call, args []Expr) error {
	size, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}
	return in.allocate(state, call, size, true)
}

func executeCalloc(in *Interpreter, state *State, call *Call, args []Expr) error {
	n, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}
	size, err := in.arg(call, args, 1, ULong)
	if err != nil {
		return err
	}

	// An overflowing product cannot be allocated.
	if cn, ok := n.(*ConstantExpr); ok {
		if cs, ok := size.(*ConstantExpr); ok && cn.Value != 0 && cs.Value > (1<<64-1)/cn.Value {
			return in.result(state, call, NewConstantExpr64(0), ULong)
		}
	}
	return in.allocate(state, call, NewBinaryExpr(MUL, n, size), true)
}

// allocate creates a heap object of size bytes and stores its address in
// the call's destination. Sizes that cannot be allocated yield NULL.
func (in *Interpreter) allocate(state *State, call *Call, size Expr, zeroed bool) error {
	label := fmt.Sprintf("%s@%s", call.Func, state.Location())

	if _, ok := size.(*ConstantExpr); !ok {
		store, res := state.store.Assume(NewBinaryExpr(ULT, size, NewConstantExpr64(MaxObjectSize)))
		if res == Infeasible {
			in.Logger.Debug("allocation size too large", zap.String("label", label))
			return in.result(state, call, NewConstantExpr64(0), ULong)
		}
		state.store = store
	}

	graph, obj, err := state.graph.Allocate(ObjectHeap, size, label)
	if err == ErrInvalidSize {
		in.Logger.Debug("allocation size too large", zap.String("label", label))
		return in.result(state, call, NewConstantExpr64(0), ULong)
	} else if err != nil {
		return err
	}

	// The failing allocation continues from the original graph.
	if in.opts.MallocMayFail {
		fail := state.Fork()
		if err := in.result(fail, call, NewConstantExpr64(0), ULong); err != nil {
			return err
		}
		in.forks = append(in.forks, fail)
	}

	obj.Zeroed = zeroed
	state.graph = graph.Insert(obj)
	in.Logger.Debug("allocate", zap.String("label", label), zap.Stringer("size", size))
	return in.result(state, call, obj.Addr(), ULong)
}

func executeExternalAlloc(in *Interpreter, state *State, call *Call, args []Expr) error {
	label := fmt.Sprintf("%s@%s", call.Func, state.Location())
	graph, obj, err := state.graph.Allocate(ObjectHeap, NewConstantExpr64(in.opts.ExternalAllocationSize), label)
	if err != nil {
		return err
	}
	obj.External = true
	state.graph = graph.Insert(obj)
	return in.result(state, call, obj.Addr(), ULong)
}

func executeAlloca(in *Interpreter, state *State, call *Call, args []Expr) error {
	size, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}

	label := fmt.Sprintf("%s@%s", call.Func, state.Location())
	graph, obj, err := state.graph.Allocate(ObjectStack, size, label)
	if err == ErrInvalidSize {
		return fmt.Errorf("%s: size %s too large", call.Func, size)
	} else if err != nil {
		return err
	}
	obj.Frame = len(state.stack) - 1
	state.graph = graph.Insert(obj)

	frame := state.Frame()
	frame.allocs = append(frame.allocs, obj.ID)
	return in.result(state, call, obj.Addr(), ULong)
}

func executeFree(in *Interpreter, state *State, call *Call, args []Expr) error {
	addr, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}

	acc := in.Checker.CheckFree(state, addr)
	if err := in.guard(state, acc); err != nil {
		return err
	}
	if acc.Pointer.Kind != PointerTarget {
		return nil
	}

	graph, err := state.graph.Free(state.graph.Object(acc.Pointer.Object.ID))
	if err != nil {
		return err
	}
	state.graph = graph
	return nil
}

func nondet(t *Type) FunctionHandler {
	return func(in *Interpreter, state *State, call *Call, args []Expr) error {
		value := in.gen.New(call.Func[len("__VERIFIER_nondet_"):], in.width(t))
		if t == Bool {
			store, res := state.store.Assume(NewBinaryExpr(ULE, value, NewConstantExpr(1, ExprWidth(value))))
			assert(res != Infeasible, "nondet bool range is empty")
			state.store = store
		}
		return in.result(state, call, value, t)
	}
}

func executeAssume(in *Interpreter, state *State, call *Call, args []Expr) error {
	if len(args) != 1 {
		return fmt.Errorf("%s: expected 1 argument", call.Func)
	}
	store, res := state.store.Assume(NewNotZeroExpr(args[0]))
	if res == Infeasible {
		in.pruned++
		state.terminate(StatusInfeasible, "assumption at %s is infeasible", state.Location())
		return nil
	}
	state.store = store
	return nil
}

func executeExpect(in *Interpreter, state *State, call *Call, args []Expr) error {
	value, err := in.arg(call, args, 0, Long)
	if err != nil {
		return err
	}
	return in.result(state, call, value, Long)
}

func executeExit(in *Interpreter, state *State, call *Call, args []Expr) error {
	state.terminate(StatusFinished, "%s called at %s", call.Func, state.Location())
	return nil
}

// executeDerefCheck reads one byte through its argument.
func executeDerefCheck(in *Interpreter, state *State, call *Call, args []Expr) error {
	addr, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}
	_, err = in.read(state, addr, 1)
	return err
}

func executeMemset(in *Interpreter, state *State, call *Call, args []Expr) error {
	dst, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}
	c, err := in.arg(call, args, 1, Int)
	if err != nil {
		return err
	}
	n, err := in.arg(call, args, 2, ULong)
	if err != nil {
		return err
	}

	if size, ok := in.constOffset(state, n); ok && size == 0 {
		return in.result(state, call, dst, ULong)
	}

	acc := in.Checker.CheckRange(state, dst, n)
	if err := in.guard(state, acc); err != nil {
		return err
	}

	if p := acc.Pointer; p.Kind == PointerTarget {
		obj := state.graph.Object(p.Object.ID)
		off, offOK := in.constOffset(state, p.Offset)
		size, sizeOK := in.constOffset(state, n)
		if offOK && sizeOK {
			state.graph = state.graph.Memset(obj, off, size, NewExtractExpr(c, 0, Width8))
		} else {
			lo, hi := in.offsetBounds(state, p.Offset, state.store.Range(n).Max(), obj)
			state.graph = state.graph.Havoc(obj, lo, hi)
		}
	}
	return in.result(state, call, dst, ULong)
}

func executeMemcpy(in *Interpreter, state *State, call *Call, args []Expr) error {
	dst, err := in.arg(call, args, 0, ULong)
	if err != nil {
		return err
	}
	src, err := in.arg(call, args, 1, ULong)
	if err != nil {
		return err
	}
	n, err := in.arg(call, args, 2, ULong)
	if err != nil {
		return err
	}

	size, ok := in.constOffset(state, n)
	if ok {
		chunks, err := in.snapshot(state, src, size)
		if err != nil {
			return err
		}
		if err := in.restore(state, dst, size, chunks); err != nil {
			return err
		}
		return in.result(state, call, dst, ULong)
	}

	if err := in.guard(state, in.Checker.CheckRange(state, src, n)); err != nil {
		return err
	}
	acc := in.Checker.CheckRange(state, dst, n)
	if err := in.guard(state, acc); err != nil {
		return err
	}
	if p := acc.Pointer; p.Kind == PointerTarget {
		obj := state.graph.Object(p.Object.ID)
		lo, hi := in.offsetBounds(state, p.Offset, state.store.Range(n).Max(), obj)
		state.graph = state.graph.Havoc(obj, lo, hi)
	}
	return in.result(state, call, dst, ULong)
}
