package smg

import (
	"bytes"
	"fmt"
	"go/token"
	"sort"
)

// State represents a program path under exploration.
type State struct {
	id     int
	parent *State

	// Call stack
	stack []*Frame

	// Objects backing global variables. Shared by all states.
	globals map[*Var]uint64

	// Memory and numeric knowledge along this path.
	graph *Graph
	store *ConstraintStore

	// Shows whether state is running, finished, or terminated.
	status    Status
	reason    string
	violation *Violation

	// Number of statements executed and the positions visited.
	depth int
	trail *trail
}

// NewState returns a state with an empty stack over the given memory.
func NewState(graph *Graph, store *ConstraintStore, globals map[*Var]uint64) *State {
	return &State{
		graph:   graph,
		store:   store,
		globals: globals,
		status:  StatusRunning,
	}
}

// ID returns an autoincrementing ID assigned by the explorer.
func (s *State) ID() int { return s.id }

// Parent returns the state this state was forked from.
func (s *State) Parent() *State { return s.parent }

// Graph returns the symbolic memory graph of the state.
func (s *State) Graph() *Graph { return s.graph }

// Store returns the constraint store of the state.
func (s *State) Store() *ConstraintStore { return s.store }

// Status returns the current status of the state.
// See Reason() for additional information if the state terminated early.
func (s *State) Status() Status { return s.status }

// Reason returns additional information about the status of the state.
func (s *State) Reason() string { return s.reason }

// Terminated returns true if the state completed or abandoned its path.
func (s *State) Terminated() bool {
	return s.status != StatusRunning
}

// Violation returns the violation that terminated the state, if any.
func (s *State) Violation() *Violation { return s.violation }

// Depth returns the number of statements executed along the path.
func (s *State) Depth() int { return s.depth }

// terminate ends the path with the given status.
func (s *State) terminate(status Status, format string, args ...interface{}) {
	s.status = status
	s.reason = fmt.Sprintf(format, args...)
}

// Frame returns the current stack frame.
func (s *State) Frame() *Frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// CallerFrame returns the parent of the current stack frame.
func (s *State) CallerFrame() *Frame {
	if len(s.stack) <= 1 {
		return nil
	}
	return s.stack[len(s.stack)-2]
}

// Frames returns the call stack, outermost first.
func (s *State) Frames() []*Frame { return s.stack }

// Stmt returns the statement about to execute.
func (s *State) Stmt() Stmt {
	if f := s.Frame(); f != nil {
		return f.Stmt()
	}
	return nil
}

// Position returns the source position of the current statement.
func (s *State) Position() token.Position {
	if stmt := s.Stmt(); stmt != nil {
		return stmt.Pos()
	}
	return token.Position{}
}

// Location returns a short description of the current statement's location.
func (s *State) Location() string {
	f := s.Frame()
	if f == nil {
		return ""
	}
	if pos := s.Position(); pos.Line > 0 {
		return fmt.Sprintf("%s:%d", f.fn.Name, pos.Line)
	}
	return fmt.Sprintf("%s@%d", f.fn.Name, f.pc)
}

// Trail returns the locations visited along the path, oldest first.
func (s *State) Trail() []string {
	var a []string
	for t := s.trail; t != nil; t = t.prev {
		a = append(a, t.loc)
	}
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
	return a
}

// visit records the current location on the trail.
func (s *State) visit() {
	s.depth++
	s.trail = &trail{loc: s.Location(), prev: s.trail}
}

// trail is a persistent list of visited locations, shared between forks.
type trail struct {
	loc  string
	prev *trail
}

// Global returns the object backing global v.
func (s *State) Global(v *Var) *Object {
	if id, ok := s.globals[v]; ok {
		return s.graph.Object(id)
	}
	return nil
}

// Local returns the object backing v in the current frame, falling back
// to globals.
func (s *State) Local(v *Var) *Object {
	if f := s.Frame(); f != nil {
		if id, ok := f.locals[v]; ok {
			return s.graph.Object(id)
		}
	}
	return s.Global(v)
}

// Clone returns a copy of the state including copies of the stack frames.
// Memory and constraints are persistent and shared.
func (s *State) Clone() *State {
	other := *s
	other.stack = make([]*Frame, len(s.stack))
	for i := range s.stack {
		other.stack[i] = s.stack[i].Clone()
	}
	return &other
}

// Fork returns a child copy of the state.
func (s *State) Fork() *State {
	child := s.Clone()
	child.parent = s
	return child
}

// Push adds a frame for fn to the top of the stack. The call is the
// statement in the caller whose destination receives the result.
func (s *State) Push(fn *Function, call *Call) *Frame {
	f := NewFrame(fn, call)
	s.stack = append(s.stack, f)
	return f
}

// Pop removes the current frame from the stack.
// Marks the state finished if no frames remain.
func (s *State) Pop() *Frame {
	f := s.Frame()
	s.stack[len(s.stack)-1] = nil
	s.stack = s.stack[:len(s.stack)-1]

	if len(s.stack) == 0 {
		s.status = StatusFinished
	}
	return f
}

// Dump returns the contents of the state and frames as a string.
func (s *State) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "PROGRAM STATE")
	fmt.Fprintln(&buf, "=============")
	fmt.Fprintf(&buf, "status=%s\n", s.status)
	fmt.Fprintf(&buf, "reason=%s\n", s.reason)
	fmt.Fprintln(&buf, "")
	for i := len(s.stack) - 1; i >= 0; i-- {
		fmt.Fprintf(&buf, "== FRAME #%d\n", i)
		fmt.Fprintln(&buf, s.stack[i].Dump(s.graph))
	}

	fmt.Fprint(&buf, s.graph.Dump())
	fmt.Fprint(&buf, s.store.Dump())
	return buf.String()
}

// Status represents the current status of a state.
// The state will also include a reason if the status is not running.
type Status string

const (
	StatusRunning    = Status("running")    // has future states
	StatusFinished   = Status("finished")   // clean completion
	StatusViolation  = Status("violation")  // memory safety violation
	StatusInfeasible = Status("infeasible") // path condition unsatisfiable
	StatusError      = Status("error")      // analysis could not continue
)

// Frame represents the state of a call into a function.
type Frame struct {
	fn     *Function
	call   *Call
	locals map[*Var]uint64 // variable -> object id
	allocs []uint64        // alloca objects
	pc     int
}

// NewFrame returns a new frame positioned at the start of fn.
func NewFrame(fn *Function, call *Call) *Frame {
	return &Frame{
		fn:     fn,
		call:   call,
		locals: make(map[*Var]uint64),
	}
}

// Function returns the function executing in the frame.
func (f *Frame) Function() *Function { return f.fn }

// PC returns the index of the current statement.
func (f *Frame) PC() int { return f.pc }

// Stmt returns the current statement.
func (f *Frame) Stmt() Stmt {
	if f.pc < 0 || f.pc >= len(f.fn.Body) {
		return nil
	}
	return f.fn.Body[f.pc]
}

// Objects returns the ids of every object owned by the frame, sorted.
func (f *Frame) Objects() []uint64 {
	a := make([]uint64, 0, len(f.locals)+len(f.allocs))
	for _, id := range f.locals {
		a = append(a, id)
	}
	a = append(a, f.allocs...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	return a
}

// Vars returns the frame's variables sorted by name.
func (f *Frame) Vars() []*Var {
	a := make([]*Var, 0, len(f.locals))
	for v := range f.locals {
		a = append(a, v)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	return a
}

// bind associates v with an object in the frame.
func (f *Frame) bind(v *Var, obj *Object) {
	f.locals[v] = obj.ID
}

// Clone returns a copy of the frame.
func (f *Frame) Clone() *Frame {
	other := *f

	other.locals = make(map[*Var]uint64, len(f.locals))
	for k, v := range f.locals {
		other.locals[k] = v
	}

	other.allocs = make([]uint64, len(f.allocs))
	copy(other.allocs, f.allocs)

	return &other
}

// Dump returns the contents of the frame as a string.
func (f *Frame) Dump(g *Graph) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "fn=%s pc=%d\n", f.fn.Name, f.pc)
	for _, v := range f.Vars() {
		fmt.Fprintf(&buf, "%s (%s) -> %s\n", v.Name, v.Type, g.Object(f.locals[v]))
	}
	return buf.String()
}
