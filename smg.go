package smg

import (
	"errors"
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// WidthPtr is the bit width of an address.
const WidthPtr = Width64

var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")
)

var (
	// ErrDoubleFree is returned when an object is freed a second time.
	ErrDoubleFree = errors.New("double free")

	// ErrInvalidSize is returned when an allocation size cannot be satisfied.
	ErrInvalidSize = errors.New("invalid allocation size")

	// ErrIncompleteType is returned when the layout of a declared but
	// undefined struct or union is requested.
	ErrIncompleteType = errors.New("incomplete type")

	// ErrZeroLengthArray is returned for a zero-length array when the
	// machine model does not accept them.
	ErrZeroLengthArray = errors.New("zero-length array")

	// ErrNoStateAvailable is returned by the explorer when the worklist is empty.
	ErrNoStateAvailable = errors.New("no state available")

	// ErrUnknownFunction is returned when a call targets a function with no
	// body and no primitive handler under the strict policy.
	ErrUnknownFunction = errors.New("unknown function")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
