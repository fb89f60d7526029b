//go:build z3

package main

import (
	"fmt"

	"github.com/benbjohnson/smg"
	"github.com/benbjohnson/smg/z3"
)

// newSolver returns the named constraint solver and a function to release it.
func newSolver(name string) (smg.Solver, func(), error) {
	switch name {
	case "", "none":
		return nil, func() {}, nil
	case "z3":
		s := z3.NewSolver()
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown solver: %q", name)
	}
}
