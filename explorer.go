package smg

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Verdict is the overall classification of a program.
type Verdict string

const (
	VerdictSafe    = Verdict("safe")    // every path explored, no violation
	VerdictUnsafe  = Verdict("unsafe")  // at least one violation reached
	VerdictUnknown = Verdict("unknown") // exploration incomplete, no violation
)

// Subsumption reports whether next is covered by prev, a state previously
// seen at the same location. Covered states are not explored further.
type Subsumption func(prev, next *State) bool

// NoSubsumption never treats a state as covered.
func NoSubsumption(prev, next *State) bool { return false }

// ExactSubsumption covers next if it has the same call stack, memory graph
// and constraints as prev.
func ExactSubsumption(prev, next *State) bool {
	if len(prev.stack) != len(next.stack) {
		return false
	}
	for i := range prev.stack {
		a, b := prev.stack[i], next.stack[i]
		if a.fn != b.fn || a.pc != b.pc || a.call != b.call || len(a.allocs) != len(b.allocs) || len(a.locals) != len(b.locals) {
			return false
		}
		for v, id := range a.locals {
			if b.locals[v] != id {
				return false
			}
		}
		for j := range a.allocs {
			if a.allocs[j] != b.allocs[j] {
				return false
			}
		}
	}
	return prev.graph.Equal(next.graph) && prev.store.Equal(next.store)
}

// ParseSubsumption returns a subsumption policy by name: "exact" or "none".
func ParseSubsumption(name string) (Subsumption, error) {
	switch name {
	case "", "exact":
		return ExactSubsumption, nil
	case "none":
		return NoSubsumption, nil
	default:
		return nil, fmt.Errorf("unknown subsumption policy: %q", name)
	}
}

// Stats holds counters from one exploration.
type Stats struct {
	Steps    int `yaml:"steps"`    // statements executed
	States   int `yaml:"states"`   // states created, including the initial state
	Pruned   int `yaml:"pruned"`   // infeasible successors dropped
	Subsumed int `yaml:"subsumed"` // states covered by an earlier state
	Pending  int `yaml:"pending"`  // states left unexplored at cutoff
	Errors   int `yaml:"errors"`   // paths ended by an analysis error
}

// Result is the outcome of an exploration.
type Result struct {
	Verdict    Verdict
	Violations []*Violation
	Stats      Stats

	// Why the verdict is unknown, if it is.
	Reason string
}

// Explorer drives the interpreter over the state space of a program.
type Explorer struct {
	Interpreter *Interpreter
	Searcher    Searcher
	Subsumption Subsumption
	Reporter    Reporter
	Solver      Solver

	// Function where execution begins.
	Entry string

	// Budgets. Zero means unlimited.
	MaxStates     int
	MaxPathLength int

	// Stop at the first violation found.
	StopOnViolation bool

	Logger *zap.Logger

	root    *State
	queued  map[*State]bool     // states added to the searcher and not yet selected
	seen    map[string][]*State // snapshots at join locations
	result  *Result
	reason  string // first cause of incompleteness
	dropped int    // states cut off by a budget
	nextID  int

	steps0, pruned0 int
}

// NewExplorer returns a new instance of Explorer with a depth-first
// searcher, exact subsumption and "main" as the entry function.
func NewExplorer(in *Interpreter) *Explorer {
	return &Explorer{
		Interpreter: in,
		Searcher:    NewDFSSearcher(),
		Subsumption: ExactSubsumption,
		Entry:       "main",
		Logger:      zap.NewNop(),
	}
}

// RootState returns a snapshot of the initial state of the exploration.
func (e *Explorer) RootState() *State { return e.root }

// nextStateID returns the next autoincrementing state ID.
func (e *Explorer) nextStateID() int {
	e.nextID++
	return e.nextID
}

// Start creates the initial state and adds it to the searcher.
func (e *Explorer) Start() error {
	root, err := e.Interpreter.Init(e.Entry, e.Solver)
	if err != nil {
		return err
	}
	root.id = e.nextStateID()

	// States advance in place, so keep the initial state as a snapshot.
	e.root = root.Clone()
	e.queued = map[*State]bool{root: true}
	e.seen = make(map[string][]*State)
	e.result = &Result{Stats: Stats{States: 1}}
	e.reason, e.dropped = "", 0
	e.steps0, e.pruned0 = e.Interpreter.Steps(), e.Interpreter.Pruned()
	e.Searcher.AddState(root)
	return nil
}

// ExecuteNextState executes one statement of the next pending state. This
// can be called continually until ErrNoStateAvailable is returned.
func (e *Explorer) ExecuteNextState() (*State, error) {
	var state *State
	for state == nil {
		if state = e.Searcher.SelectState(); state == nil {
			return nil, ErrNoStateAvailable
		} else if !e.queued[state] {
			state = nil // already selected through another searcher
		}
	}
	delete(e.queued, state)

	if e.MaxPathLength > 0 && state.Depth() >= e.MaxPathLength {
		e.Logger.Debug("path length exceeded", zap.Int("state", state.id), zap.String("loc", state.Location()))
		e.cutoff(fmt.Sprintf("path length budget of %d exhausted at %s", e.MaxPathLength, state.Location()))
		return state, nil
	}

	states, err := e.Interpreter.Step(state)
	if err != nil {
		return state, err
	}

	for _, s := range states {
		if s != state {
			s.id = e.nextStateID()
			e.result.Stats.States++
		}

		switch s.Status() {
		case StatusViolation:
			e.result.Violations = append(e.result.Violations, s.Violation())
			if e.Reporter != nil {
				e.Reporter.Report(s.Violation())
			}
			continue
		case StatusError:
			e.result.Stats.Errors++
			if e.reason == "" {
				e.reason = s.Reason()
			}
			continue
		case StatusFinished, StatusInfeasible:
			continue
		}

		if e.subsumed(s) {
			e.result.Stats.Subsumed++
			continue
		}
		if e.MaxStates > 0 && s != state && e.result.Stats.States > e.MaxStates {
			e.cutoff(fmt.Sprintf("state budget of %d exhausted", e.MaxStates))
			continue
		}
		e.queued[s] = true
		e.Searcher.AddState(s)
	}
	return state, nil
}

// cutoff records a state dropped by a budget.
func (e *Explorer) cutoff(reason string) {
	e.dropped++
	if e.reason == "" {
		e.reason = reason
	}
}

// Run explores the program until every path ends, a budget is exhausted or
// ctx is done. Violations found before a cutoff are kept in the result.
func (e *Explorer) Run(ctx context.Context) (*Result, error) {
	if err := e.Start(); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			if e.reason == "" {
				e.reason = fmt.Sprintf("exploration interrupted: %s", err)
			}
			break
		}

		if _, err := e.ExecuteNextState(); err == ErrNoStateAvailable {
			break
		} else if err != nil {
			return e.Result(), err
		}

		if e.StopOnViolation && len(e.result.Violations) > 0 {
			break
		}
	}

	result := e.Result()
	e.Logger.Info("exploration finished",
		zap.String("verdict", string(result.Verdict)),
		zap.Int("states", result.Stats.States),
		zap.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// Result returns the outcome of the exploration so far. Pending states make
// the verdict unknown unless a violation was found.
func (e *Explorer) Result() *Result {
	if e.result == nil {
		return nil
	}
	result := *e.result
	result.Violations = append([]*Violation(nil), e.result.Violations...)
	result.Stats.Steps = e.Interpreter.Steps() - e.steps0
	result.Stats.Pruned = e.Interpreter.Pruned() - e.pruned0
	result.Stats.Pending = e.dropped + len(e.queued)

	switch {
	case len(result.Violations) > 0:
		result.Verdict = VerdictUnsafe
	case e.reason != "" || result.Stats.Pending > 0 || result.Stats.Errors > 0:
		result.Verdict = VerdictUnknown
		result.Reason = e.reason
		if result.Reason == "" {
			result.Reason = fmt.Sprintf("%d states pending", result.Stats.Pending)
		}
	default:
		result.Verdict = VerdictSafe
	}
	return &result
}

// subsumed reports whether s is at a join location and covered by a state
// previously seen there. Uncovered states are recorded.
func (e *Explorer) subsumed(s *State) bool {
	f := s.Frame()
	if f == nil || !f.fn.IsJoin(f.pc) {
		return false
	}

	key := fmt.Sprintf("%d:%s@%d", len(s.stack), f.fn.Name, f.pc)
	for _, prev := range e.seen[key] {
		if e.Subsumption(prev, s) {
			e.Logger.Debug("subsumed", zap.Int("state", s.id), zap.Int("by", prev.id), zap.String("loc", s.Location()))
			return true
		}
	}

	// States are mutated in place as they advance, so keep a snapshot.
	e.seen[key] = append(e.seen[key], s.Clone())
	return false
}
