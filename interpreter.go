package smg

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// UnknownFunctionPolicy decides how calls to functions without a body or
// primitive handler are treated.
type UnknownFunctionPolicy string

const (
	// UnknownFunctionStrict ends the path with an analysis error.
	UnknownFunctionStrict = UnknownFunctionPolicy("strict")

	// UnknownFunctionAssumeSafe returns a fresh unknown result and leaves
	// memory reachable from the arguments intact.
	UnknownFunctionAssumeSafe = UnknownFunctionPolicy("assume-safe")
)

// InterpreterOptions configures the memory model of the interpreter.
type InterpreterOptions struct {
	// Allocation calls may return NULL as a second successor.
	MallocMayFail bool

	// Report unreachable heap objects every time a frame is dropped,
	// not only when the program ends.
	CheckLeaksOnReturn bool

	// Heap objects still referenced from main's locals at exit are leaks.
	NonFreedInMainIsLeak bool

	UnknownFunctions UnknownFunctionPolicy

	AllocationFunctions         []string
	ZeroingAllocationFunctions  []string
	DeallocationFunctions       []string
	ExternalAllocationFunctions []string
	StackAllocationFunctions    []string

	// Size in bytes of objects returned by external allocation functions.
	ExternalAllocationSize uint64
}

// DefaultInterpreterOptions returns the default memory model options.
func DefaultInterpreterOptions() InterpreterOptions {
	return InterpreterOptions{
		CheckLeaksOnReturn:          true,
		UnknownFunctions:            UnknownFunctionStrict,
		AllocationFunctions:         []string{"malloc", "__kmalloc", "kmalloc"},
		ZeroingAllocationFunctions:  []string{"calloc", "kzalloc"},
		DeallocationFunctions:       []string{"free", "kfree"},
		ExternalAllocationFunctions: []string{"external_allocated_data", "ext_allocation"},
		StackAllocationFunctions:    []string{"alloca", "__builtin_alloca"},
		ExternalAllocationSize:      1 << 16,
	}
}

// errTerminated unwinds evaluation once the current state has ended.
var errTerminated = errors.New("state terminated")

// Interpreter executes program statements over abstract states.
type Interpreter struct {
	prog    *Program
	opts    InterpreterOptions
	gen     *SymbolGen
	fns     map[string]FunctionHandler
	funcIDs map[string]uint64

	// States produced by the current step in addition to the stepped state.
	forks []*State

	// Number of statements executed and branches found infeasible.
	steps  int
	pruned int

	Checker *Checker
	Logger  *zap.Logger
}

// FunctionHandler executes a call to a primitive function. Arguments are
// evaluated scalars.
type FunctionHandler func(in *Interpreter, state *State, call *Call, args []Expr) error

// NewInterpreter returns a new instance of Interpreter for prog.
func NewInterpreter(prog *Program, opts InterpreterOptions) *Interpreter {
	in := &Interpreter{
		prog:    prog,
		opts:    opts,
		gen:     &SymbolGen{},
		fns:     make(map[string]FunctionHandler),
		funcIDs: make(map[string]uint64),
		Checker: NewChecker(),
		Logger:  zap.NewNop(),
	}
	in.registerPrimitives()
	return in
}

// Program returns the program being interpreted.
func (in *Interpreter) Program() *Program { return in.prog }

// Options returns the interpreter's memory model options.
func (in *Interpreter) Options() InterpreterOptions { return in.opts }

// Steps returns the number of statements executed.
func (in *Interpreter) Steps() int { return in.steps }

// Pruned returns the number of successors dropped as infeasible.
func (in *Interpreter) Pruned() int { return in.pruned }

// Register registers a handler for a function name.
// Every call to the named function is delegated to the handler.
func (in *Interpreter) Register(name string, h FunctionHandler) {
	in.fns[name] = h
}

// Init returns the initial state: globals allocated and initialized,
// and a frame pushed for the entry function with unknown arguments.
func (in *Interpreter) Init(entry string, solver Solver) (*State, error) {
	fn := in.prog.Function(entry)
	if fn == nil {
		return nil, fmt.Errorf("entry function not found: %s", entry)
	} else if in.prog.Machine.PointerSize*8 != WidthPtr {
		return nil, fmt.Errorf("machine model %s: analysis requires %d-bit pointers", in.prog.Machine.Name, WidthPtr)
	}

	graph := NewGraph(in.gen)
	globals := make(map[*Var]uint64)
	for _, v := range in.prog.Globals {
		size, err := in.prog.Machine.Sizeof(v.Type)
		if err != nil {
			return nil, fmt.Errorf("global %s: %s", v.Name, err)
		}
		var obj *Object
		if graph, obj, err = graph.Allocate(ObjectGlobal, NewConstantExpr64(size), v.Name); err != nil {
			return nil, fmt.Errorf("global %s: %s", v.Name, err)
		}
		obj.Zeroed, obj.External, obj.Type = !v.External, v.External, v.Type
		graph = graph.Insert(obj)
		globals[v] = obj.ID
	}

	state := NewState(graph, NewConstraintStore(solver), globals)
	for _, v := range in.prog.Globals {
		if v.Init == nil {
			continue
		}
		value, err := in.eval(state, v.Init)
		if err != nil {
			return nil, fmt.Errorf("global %s: %s", v.Name, err)
		}
		obj := state.Global(v)
		if err := in.store(state, obj.Addr(), v.Type, in.convert(value, v.Init.Type(), v.Type)); err != nil {
			return nil, fmt.Errorf("global %s: %s", v.Name, err)
		}
	}

	if err := in.push(state, fn, nil, nil); err != nil {
		return nil, err
	}
	for _, v := range fn.Params {
		if !v.Type.IsScalar() {
			continue
		}
		w := in.width(v.Type)
		if err := in.store(state, state.Local(v).Addr(), v.Type, in.gen.New(v.Name, w)); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Step executes the statement at the current location of state and returns
// every resulting state, including state itself. Terminated states carry
// their status and, for violations, the violation.
func (in *Interpreter) Step(state *State) ([]*State, error) {
	in.forks = nil
	in.steps++

	stmt := state.Stmt()
	if stmt == nil {
		return nil, fmt.Errorf("no statement at %s", state.Location())
	}
	state.visit()

	err := in.execute(state, stmt)
	if err == errTerminated {
		err = nil
	} else if err != nil {
		in.Logger.Debug("analysis error", zap.String("loc", state.Location()), zap.Error(err))
		state.terminate(StatusError, "%s: %s", state.Location(), err)
		err = nil
	}

	states := append([]*State{state}, in.forks...)
	in.forks = nil
	return states, err
}

func (in *Interpreter) execute(state *State, stmt Stmt) error {
	switch stmt := stmt.(type) {
	case *Assign:
		return in.executeAssignStmt(state, stmt)
	case *Copy:
		return in.executeCopyStmt(state, stmt)
	case *Call:
		return in.executeCallStmt(state, stmt)
	case *If:
		return in.executeIfStmt(state, stmt)
	case *Goto:
		return in.executeGotoStmt(state, stmt)
	case *Return:
		return in.executeReturnStmt(state, stmt)
	default:
		return fmt.Errorf("illegal statement: %T", stmt)
	}
}

func (in *Interpreter) executeAssignStmt(state *State, stmt *Assign) error {
	value, err := in.eval(state, stmt.Src)
	if err != nil {
		return err
	}
	if err := in.assign(state, stmt.Dst, in.convert(value, stmt.Src.Type(), stmt.Dst.Type())); err != nil {
		return err
	}
	state.Frame().pc++
	return nil
}

func (in *Interpreter) executeCopyStmt(state *State, stmt *Copy) error {
	size, err := in.prog.Machine.Sizeof(stmt.Dst.Type())
	if err != nil {
		return err
	}
	chunks, err := in.loadChunks(state, stmt.Src, size)
	if err != nil {
		return err
	}
	if err := in.storeChunks(state, stmt.Dst, size, chunks); err != nil {
		return err
	}
	state.Frame().pc++
	return nil
}

func (in *Interpreter) executeIfStmt(state *State, stmt *If) error {
	value, err := in.eval(state, stmt.Cond)
	if err != nil {
		return err
	}
	cond := NewNotZeroExpr(value)

	// Add the false branch if it is feasible.
	if store, res := state.store.Assume(NewLogicalNotExpr(cond)); res != Infeasible {
		other := state.Fork()
		other.store = store
		other.Frame().pc = stmt.Else
		in.Logger.Debug("fork", zap.String("loc", state.Location()), zap.String("branch", "false"))
		in.forks = append(in.forks, other)
	} else {
		in.pruned++
	}

	// Continue with the true branch if it is feasible.
	store, res := state.store.Assume(cond)
	if res == Infeasible {
		in.pruned++
		state.terminate(StatusInfeasible, "branch at %s is infeasible", state.Location())
		return errTerminated
	}
	state.store = store
	state.Frame().pc = stmt.Then
	return nil
}

func (in *Interpreter) executeGotoStmt(state *State, stmt *Goto) error {
	state.Frame().pc = stmt.Target
	return nil
}

func (in *Interpreter) executeCallStmt(state *State, stmt *Call) error {
	if h := in.fns[stmt.Func]; h != nil {
		args := make([]Expr, len(stmt.Args))
		for i, arg := range stmt.Args {
			if arg.Type().IsAggregate() {
				return fmt.Errorf("aggregate argument to %s", stmt.Func)
			}
			value, err := in.eval(state, arg)
			if err != nil {
				return err
			}
			args[i] = value
		}
		n := len(in.forks)
		err := h(in, state, stmt, args)
		for _, s := range in.forks[n:] {
			if !s.Terminated() {
				s.Frame().pc++
			}
		}
		if err != nil {
			return err
		}
		if !state.Terminated() {
			state.Frame().pc++
		}
		return nil
	}

	fn := in.prog.Function(stmt.Func)
	if fn == nil {
		return in.executeUnknownCall(state, stmt)
	}
	if len(fn.Params) != len(stmt.Args) {
		return fmt.Errorf("call to %s: %d arguments, want %d", fn.Name, len(stmt.Args), len(fn.Params))
	}

	// Arguments are evaluated in the caller's frame.
	args := make([]argValue, len(stmt.Args))
	for i, arg := range stmt.Args {
		if p := fn.Params[i]; p.Type.IsAggregate() {
			load, ok := arg.(*Load)
			if !ok {
				return fmt.Errorf("call to %s: aggregate argument %s", fn.Name, arg)
			}
			size, err := in.prog.Machine.Sizeof(p.Type)
			if err != nil {
				return err
			}
			if args[i].chunks, err = in.loadChunks(state, load.Place, size); err != nil {
				return err
			}
			continue
		}
		value, err := in.eval(state, arg)
		if err != nil {
			return err
		}
		args[i].expr = in.convert(value, arg.Type(), fn.Params[i].Type)
	}
	return in.push(state, fn, stmt, args)
}

// argValue is an evaluated argument: a scalar or an aggregate's contents.
type argValue struct {
	expr   Expr
	chunks []Chunk
}

// push adds a frame for fn, allocating its parameters and locals.
func (in *Interpreter) push(state *State, fn *Function, call *Call, args []argValue) error {
	depth := len(state.stack)
	frame := state.Push(fn, call)
	for _, v := range append(append([]*Var{}, fn.Params...), fn.Locals...) {
		size, err := in.prog.Machine.Sizeof(v.Type)
		if err != nil {
			return fmt.Errorf("%s: local %s: %s", fn.Name, v.Name, err)
		}
		graph, obj, err := state.graph.Allocate(ObjectStack, NewConstantExpr64(size), fn.Name+"."+v.Name)
		if err != nil {
			return fmt.Errorf("%s: local %s: %s", fn.Name, v.Name, err)
		}
		obj.Frame, obj.Type = depth, v.Type
		state.graph = graph.Insert(obj)
		frame.bind(v, obj)
	}

	for i, arg := range args {
		obj := state.Local(fn.Params[i])
		if arg.chunks != nil {
			state.graph = state.graph.Restore(obj, 0, in.sizeof(fn.Params[i].Type), arg.chunks)
			continue
		}
		if err := in.store(state, obj.Addr(), fn.Params[i].Type, arg.expr); err != nil {
			return err
		}
	}
	in.Logger.Debug("call", zap.String("fn", fn.Name), zap.Int("depth", depth))
	return nil
}

func (in *Interpreter) executeUnknownCall(state *State, stmt *Call) error {
	if in.opts.UnknownFunctions != UnknownFunctionAssumeSafe {
		return fmt.Errorf("%s: %s", ErrUnknownFunction, stmt.Func)
	}
	in.Logger.Debug("unknown function assumed safe", zap.String("fn", stmt.Func), zap.String("loc", state.Location()))

	for _, arg := range stmt.Args {
		if _, err := in.eval(state, arg); err != nil {
			return err
		}
	}
	if stmt.Dst != nil {
		if err := in.havocPlace(state, stmt.Dst); err != nil {
			return err
		}
	}
	state.Frame().pc++
	return nil
}

func (in *Interpreter) executeReturnStmt(state *State, stmt *Return) error {
	frame := state.Frame()
	fn := frame.fn

	// Capture the result before the frame's objects become invalid.
	var ret argValue
	if stmt.Value != nil {
		if fn.Result.IsAggregate() {
			load, ok := stmt.Value.(*Load)
			if !ok {
				return fmt.Errorf("%s: aggregate return %s", fn.Name, stmt.Value)
			}
			chunks, err := in.loadChunks(state, load.Place, in.sizeof(fn.Result))
			if err != nil {
				return err
			}
			ret.chunks = chunks
		} else {
			value, err := in.eval(state, stmt.Value)
			if err != nil {
				return err
			}
			ret.expr = in.convert(value, stmt.Value.Type(), fn.Result)
		}
	}

	main := len(state.stack) == 1
	if main {
		var keep []*Frame
		if !in.opts.NonFreedInMainIsLeak {
			keep = state.stack
		}
		if err := in.checkLeaks(state, keep, ret); err != nil {
			return err
		}
	}

	for _, id := range frame.Objects() {
		state.graph = state.graph.Invalidate(state.graph.Object(id))
	}
	if !main && in.opts.CheckLeaksOnReturn {
		if err := in.checkLeaks(state, state.stack[:len(state.stack)-1], ret); err != nil {
			return err
		}
	}
	state.Pop()

	if main {
		in.Logger.Debug("program finished", zap.String("fn", fn.Name))
		return nil
	}

	// Store the result in the caller's destination.
	if call := frame.call; call != nil {
		if call.Dst != nil {
			switch {
			case ret.chunks != nil:
				if err := in.storeChunks(state, call.Dst, in.sizeof(fn.Result), ret.chunks); err != nil {
					return err
				}
			case ret.expr != nil:
				if err := in.assign(state, call.Dst, in.convert(ret.expr, fn.Result, call.Dst.Type())); err != nil {
					return err
				}
			default:
				if err := in.havocPlace(state, call.Dst); err != nil {
					return err
				}
			}
		}
	}
	state.Frame().pc++
	return nil
}

// checkLeaks reports a leak if a heap object is unreachable from globals,
// the objects of frames, and the in-flight return value.
func (in *Interpreter) checkLeaks(state *State, frames []*Frame, ret argValue) error {
	var roots []Expr
	for _, id := range state.globals {
		roots = append(roots, state.graph.Object(id).Addr())
	}
	for _, f := range frames {
		for _, id := range f.Objects() {
			roots = append(roots, state.graph.Object(id).Addr())
		}
	}
	if ret.expr != nil {
		roots = append(roots, ret.expr)
	}
	for _, c := range ret.chunks {
		roots = append(roots, c.Value)
	}

	leaks := in.Checker.CheckLeaks(state, roots)
	if len(leaks) == 0 {
		return nil
	}

	labels := make([]string, len(leaks))
	for i, obj := range leaks {
		labels[i] = obj.Label
	}
	msg := fmt.Sprintf("memory leak of %s", strings.Join(labels, ", "))
	in.terminate(state, in.Checker.Violation(state, ViolationLeak, leaks[0], msg))
	return errTerminated
}

// terminate ends state with a violation.
func (in *Interpreter) terminate(state *State, v *Violation) {
	state.violation = v
	state.terminate(StatusViolation, "%s", v)
}

// guard applies an access classification to state. Unsafe ends the state.
// MaybeUnsafe forks a violating state and narrows state to the safe case.
func (in *Interpreter) guard(state *State, acc Access) error {
	switch acc.Result {
	case Safe:
		return nil
	case Unsafe:
		in.terminate(state, in.Checker.Violation(state, acc.Kind, acc.Pointer.Object, acc.Message))
		return errTerminated
	}

	if store, res := state.store.Assume(NewLogicalNotExpr(acc.Cond)); res != Infeasible {
		bad := state.Fork()
		bad.store = store
		in.terminate(bad, in.Checker.Violation(bad, acc.Kind, acc.Pointer.Object, acc.Message))
		in.forks = append(in.forks, bad)
	} else {
		in.pruned++
	}

	store, res := state.store.Assume(acc.Cond)
	if res == Infeasible {
		in.pruned++
		state.terminate(StatusInfeasible, "safe access at %s is infeasible", state.Location())
		return errTerminated
	}
	state.store = store
	return nil
}

// eval evaluates a scalar operand.
func (in *Interpreter) eval(state *State, op Operand) (Expr, error) {
	switch op := op.(type) {
	case *Const:
		return NewConstantExpr(op.Value, in.width(op.T)), nil

	case *Load:
		if op.Type().IsAggregate() {
			return nil, fmt.Errorf("load of aggregate %s", op)
		}
		return in.load(state, op.Place)

	case *AddrOf:
		return in.addr(state, op.Place)

	case *Sizeof:
		return NewConstantExpr(op.Size, in.width(ULong)), nil

	case *FuncRef:
		return in.funcAddr(op.Name), nil

	case *Cast:
		x, err := in.eval(state, op.X)
		if err != nil {
			return nil, err
		}
		return in.convert(x, op.X.Type(), op.T), nil

	case *PtrAdd:
		ptr, err := in.eval(state, op.Ptr)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(state, op.Index)
		if err != nil {
			return nil, err
		}
		idx = in.convert(idx, op.Index.Type(), Long)
		return PointerAdd(ptr, NewBinaryExpr(MUL, NewConstantExpr64(op.Scale), idx)), nil

	case *Unary:
		x, err := in.eval(state, op.X)
		if err != nil {
			return nil, err
		}
		if op.Op == "!" {
			return NewCastExpr(NewIsZeroExpr(x), in.width(Int), false), nil
		}
		x = in.convert(x, op.X.Type(), op.T)
		if isFloat(op.T) {
			return in.gen.New("float", in.width(op.T)), nil
		}
		switch op.Op {
		case "-":
			return NewBinaryExpr(SUB, NewConstantExpr(0, ExprWidth(x)), x), nil
		case "~":
			return NewNotExpr(x), nil
		}
		return nil, fmt.Errorf("unknown unary operator: %s", op.Op)

	case *Binary:
		return in.evalBinary(state, op)

	default:
		return nil, fmt.Errorf("illegal operand: %T", op)
	}
}

func (in *Interpreter) evalBinary(state *State, op *Binary) (Expr, error) {
	x, err := in.eval(state, op.X)
	if err != nil {
		return nil, err
	}
	y, err := in.eval(state, op.Y)
	if err != nil {
		return nil, err
	}
	x, y = in.convert(x, op.X.Type(), op.T), in.convert(y, op.Y.Type(), op.T)

	// Floating point values are opaque.
	if isFloat(op.T) {
		if op.IsCompare() {
			return NewCastExpr(in.gen.New("fcmp", WidthBool), in.width(Int), false), nil
		}
		return in.gen.New("float", in.width(op.T)), nil
	}

	signed := op.T.Signed && op.T.Kind != TypePointer
	var bop BinaryOp
	switch op.Op {
	case "+":
		bop = ADD
	case "-":
		bop = SUB
	case "*":
		bop = MUL
	case "/":
		bop = pick(signed, SDIV, UDIV)
	case "%":
		bop = pick(signed, SREM, UREM)
	case "&":
		bop = AND
	case "|":
		bop = OR
	case "^":
		bop = XOR
	case "<<":
		bop = SHL
	case ">>":
		bop = pick(signed, ASHR, LSHR)
	case "==":
		bop = EQ
	case "!=":
		bop = NE
	case "<":
		bop = pick(signed, SLT, ULT)
	case "<=":
		bop = pick(signed, SLE, ULE)
	case ">":
		bop = pick(signed, SGT, UGT)
	case ">=":
		bop = pick(signed, SGE, UGE)
	default:
		return nil, fmt.Errorf("unknown binary operator: %s", op.Op)
	}

	value := NewBinaryExpr(bop, x, y)
	if op.IsCompare() {
		return NewCastExpr(value, in.width(Int), false), nil
	}
	return value, nil
}

func pick(signed bool, s, u BinaryOp) BinaryOp {
	if signed {
		return s
	}
	return u
}

// addr evaluates the address of a place.
func (in *Interpreter) addr(state *State, place Place) (Expr, error) {
	switch place := place.(type) {
	case *VarPlace:
		obj := state.Local(place.Var)
		if obj == nil {
			return nil, fmt.Errorf("undefined variable: %s", place.Var.Name)
		}
		return obj.Addr(), nil

	case *DerefPlace:
		return in.eval(state, place.Ptr)

	case *FieldPlace:
		base, err := in.addr(state, place.Base)
		if err != nil {
			return nil, err
		}
		return PointerAdd(base, NewConstantExpr64(place.Field.Offset)), nil

	case *IndexPlace:
		base, err := in.addr(state, place.Base)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(state, place.Index)
		if err != nil {
			return nil, err
		}
		idx = in.convert(idx, place.Index.Type(), Long)
		scale := NewConstantExpr64(in.sizeof(place.Type()))
		return PointerAdd(base, NewBinaryExpr(MUL, scale, idx)), nil

	default:
		return nil, fmt.Errorf("illegal place: %T", place)
	}
}

// load reads the scalar value of a place.
func (in *Interpreter) load(state *State, place Place) (Expr, error) {
	addr, err := in.addr(state, place)
	if err != nil {
		return nil, err
	}

	// Bitfields read their containing bytes.
	if fp, ok := place.(*FieldPlace); ok && fp.Field.Bitfield {
		raw, err := in.read(state, addr, fp.Field.Size)
		if err != nil {
			return nil, err
		}
		bits := NewExtractExpr(raw, uint(fp.Field.BitOffset), uint(fp.Field.BitWidth))
		return NewCastExpr(bits, in.width(fp.Type()), fp.Type().Signed), nil
	}
	return in.read(state, addr, in.sizeof(place.Type()))
}

// read returns size bytes at addr after checking the access.
func (in *Interpreter) read(state *State, addr Expr, size uint64) (Expr, error) {
	acc := in.Checker.CheckAccess(state, addr, size)
	if err := in.guard(state, acc); err != nil {
		return nil, err
	}

	p := acc.Pointer
	if p.Kind != PointerTarget || size > 8 {
		return in.gen.New("unknown", uint(size*8)), nil
	}
	off, ok := in.constOffset(state, p.Offset)
	if !ok {
		return in.gen.New(p.Object.Label+"[?]", uint(size*8)), nil
	}

	graph, value := state.graph.Read(state.graph.Object(p.Object.ID), off, size)
	state.graph = graph
	return value, nil
}

// constOffset returns the single value of off, if the store pins it.
func (in *Interpreter) constOffset(state *State, off Expr) (uint64, bool) {
	if c, ok := off.(*ConstantExpr); ok {
		return c.Value, true
	}
	return state.store.Range(off).Singleton()
}

// assign stores a scalar value into a place.
func (in *Interpreter) assign(state *State, place Place, value Expr) error {
	addr, err := in.addr(state, place)
	if err != nil {
		return err
	}

	if fp, ok := place.(*FieldPlace); ok && fp.Field.Bitfield {
		raw, err := in.read(state, addr, fp.Field.Size)
		if err != nil {
			return err
		}
		return in.write(state, addr, fp.Field.Size, insertBits(raw, value, fp.Field.BitOffset, fp.Field.BitWidth))
	}
	return in.store(state, addr, place.Type(), value)
}

// store writes a scalar value of type t at addr.
func (in *Interpreter) store(state *State, addr Expr, t *Type, value Expr) error {
	return in.write(state, addr, in.sizeof(t), value)
}

// write stores size bytes at addr after checking the access.
func (in *Interpreter) write(state *State, addr Expr, size uint64, value Expr) error {
	acc := in.Checker.CheckAccess(state, addr, size)
	if err := in.guard(state, acc); err != nil {
		return err
	}

	p := acc.Pointer
	if p.Kind != PointerTarget {
		in.Logger.Debug("write through unknown pointer dropped", zap.Stringer("addr", addr), zap.String("loc", state.Location()))
		return nil
	}

	obj := state.graph.Object(p.Object.ID)
	off, ok := in.constOffset(state, p.Offset)
	if !ok {
		lo, hi := in.offsetBounds(state, p.Offset, size, obj)
		state.graph = state.graph.Havoc(obj, lo, hi)
		return nil
	}
	state.graph = state.graph.Write(obj, off, size, value)
	return nil
}

// offsetBounds returns the byte range an access of size bytes at a
// symbolic offset may touch within obj.
func (in *Interpreter) offsetBounds(state *State, off Expr, size uint64, obj *Object) (lo, hi uint64) {
	r := state.store.Range(off)
	lo, hi = minUint64(r.Min(), MaxObjectSize), minUint64(r.Max(), MaxObjectSize)
	hi += minUint64(size, MaxObjectSize)
	if c, ok := obj.Size.(*ConstantExpr); ok && hi > c.Value {
		hi = c.Value
	} else if !ok && hi > MaxObjectSize {
		hi = MaxObjectSize
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// havocPlace makes the contents of a place unknown.
func (in *Interpreter) havocPlace(state *State, place Place) error {
	if place.Type().IsAggregate() {
		size := in.sizeof(place.Type())
		addr, err := in.addr(state, place)
		if err != nil {
			return err
		}
		return in.havoc(state, addr, size)
	}
	return in.assign(state, place, in.gen.New("ret", in.width(place.Type())))
}

// havoc forgets size bytes at addr after checking the access.
func (in *Interpreter) havoc(state *State, addr Expr, size uint64) error {
	acc := in.Checker.CheckAccess(state, addr, size)
	if err := in.guard(state, acc); err != nil {
		return err
	}
	if p := acc.Pointer; p.Kind == PointerTarget {
		obj := state.graph.Object(p.Object.ID)
		lo, hi := in.offsetBounds(state, p.Offset, size, obj)
		state.graph = state.graph.Havoc(obj, lo, hi)
	}
	return nil
}

// loadChunks captures size bytes of an aggregate place.
func (in *Interpreter) loadChunks(state *State, place Place, size uint64) ([]Chunk, error) {
	addr, err := in.addr(state, place)
	if err != nil {
		return nil, err
	}
	return in.snapshot(state, addr, size)
}

func (in *Interpreter) snapshot(state *State, addr Expr, size uint64) ([]Chunk, error) {
	if size == 0 {
		return []Chunk{}, nil
	}
	acc := in.Checker.CheckAccess(state, addr, size)
	if err := in.guard(state, acc); err != nil {
		return nil, err
	}

	// Unknown contents are returned as empty chunks.
	p := acc.Pointer
	if p.Kind != PointerTarget {
		return []Chunk{}, nil
	}
	off, ok := in.constOffset(state, p.Offset)
	if !ok {
		return []Chunk{}, nil
	}
	graph, chunks := state.graph.Snapshot(state.graph.Object(p.Object.ID), off, size)
	state.graph = graph
	return chunks, nil
}

// storeChunks writes captured contents into an aggregate place.
func (in *Interpreter) storeChunks(state *State, place Place, size uint64, chunks []Chunk) error {
	addr, err := in.addr(state, place)
	if err != nil {
		return err
	}
	return in.restore(state, addr, size, chunks)
}

func (in *Interpreter) restore(state *State, addr Expr, size uint64, chunks []Chunk) error {
	if size == 0 {
		return nil
	}
	acc := in.Checker.CheckAccess(state, addr, size)
	if err := in.guard(state, acc); err != nil {
		return err
	}

	p := acc.Pointer
	if p.Kind != PointerTarget {
		return nil
	}
	obj := state.graph.Object(p.Object.ID)
	off, ok := in.constOffset(state, p.Offset)
	if !ok {
		lo, hi := in.offsetBounds(state, p.Offset, size, obj)
		state.graph = state.graph.Havoc(obj, lo, hi)
		return nil
	}
	state.graph = state.graph.Restore(obj, off, size, chunks)
	return nil
}

// funcAddr returns a stable address for a function. Function addresses lie
// outside every object.
func (in *Interpreter) funcAddr(name string) Expr {
	id, ok := in.funcIDs[name]
	if !ok {
		id = uint64(len(in.funcIDs) + 1)
		in.funcIDs[name] = id
	}
	return NewConstantExpr64((0xFFFF0000 - id) << addrShift)
}

// sizeof returns the size of t in bytes. Layout errors are reported when
// the program is decoded so they cannot occur here.
func (in *Interpreter) sizeof(t *Type) uint64 {
	size, err := in.prog.Machine.Sizeof(t)
	assert(err == nil, "sizeof %s: %s", t, err)
	return size
}

// width returns the bit width of a scalar type.
func (in *Interpreter) width(t *Type) uint {
	if t.Kind == TypeVoid {
		return Width8
	}
	return uint(in.sizeof(t) * 8)
}

func isFloat(t *Type) bool {
	return t.Kind == TypeFloat || t.Kind == TypeDouble
}

// convert applies a C conversion of value from type from to type to.
func (in *Interpreter) convert(value Expr, from, to *Type) Expr {
	w := in.width(to)
	if isFloat(from) != isFloat(to) {
		return in.gen.New("conv", w)
	}
	if to.Kind == TypeBool {
		return NewCastExpr(NewNotZeroExpr(value), w, false)
	}
	signed := from.Signed && from.Kind != TypePointer
	return NewCastExpr(value, w, signed)
}

// insertBits replaces width bits of raw starting at offset with the low
// bits of value.
func insertBits(raw, value Expr, offset, width uint64) Expr {
	rw := uint64(ExprWidth(raw))
	bits := NewCastExpr(value, uint(width), false)
	if offset > 0 {
		bits = NewConcatExpr(bits, NewExtractExpr(raw, 0, uint(offset)))
	}
	if end := offset + width; end < rw {
		bits = NewConcatExpr(NewExtractExpr(raw, uint(end), uint(rw-end)), bits)
	}
	return bits
}
