package smg

import (
	"fmt"
	"go/token"
	"sort"
)

// ViolationKind is the category of a memory-safety violation.
type ViolationKind string

const (
	ViolationNullDeref    = ViolationKind("null-deref")
	ViolationOutOfBounds  = ViolationKind("out-of-bounds")
	ViolationUseAfterFree = ViolationKind("use-after-free")
	ViolationDoubleFree   = ViolationKind("double-free")
	ViolationInvalidFree  = ViolationKind("invalid-free")
	ViolationLeak         = ViolationKind("leak")
)

// ViolationKinds returns all kinds in reporting order.
func ViolationKinds() []ViolationKind {
	return []ViolationKind{
		ViolationNullDeref,
		ViolationOutOfBounds,
		ViolationUseAfterFree,
		ViolationDoubleFree,
		ViolationInvalidFree,
		ViolationLeak,
	}
}

// Violation is a memory-safety violation reached along one path.
type Violation struct {
	Kind     ViolationKind
	Location string
	Position token.Position
	Message  string

	// Object involved, if any.
	Object *Object

	// Terminal state of the violating path.
	State *State

	Witness Witness
}

// String returns a one-line description of the violation.
func (v *Violation) String() string {
	return fmt.Sprintf("%s at %s: %s", v.Kind, v.Location, v.Message)
}

// Witness describes how a violation is reached.
type Witness struct {
	// Locations visited, oldest first.
	Path []string

	// Example values of symbols on the path. Values come from the solver
	// when one is configured, otherwise they are the known ranges.
	Values map[string]string
}

// Names returns the witness symbol names in sorted order.
func (w Witness) Names() []string {
	a := make([]string, 0, len(w.Values))
	for name := range w.Values {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

// Reporter receives violations as they are discovered.
type Reporter interface {
	Report(v *Violation)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(v *Violation)

// Report calls fn(v).
func (fn ReporterFunc) Report(v *Violation) { fn(v) }
