//go:build !z3

package main

import (
	"fmt"

	"github.com/benbjohnson/smg"
)

// newSolver returns the named constraint solver and a function to release
// it. Without the z3 build tag only range reasoning is available.
func newSolver(name string) (smg.Solver, func(), error) {
	switch name {
	case "", "none":
		return nil, func() {}, nil
	case "z3":
		return nil, nil, fmt.Errorf("z3 solver not available: rebuild with -tags z3")
	default:
		return nil, nil, fmt.Errorf("unknown solver: %q", name)
	}
}
