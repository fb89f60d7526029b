package smg

// Solver represents a decision procedure for bit-vector constraints.
//
// Solve reports whether the conjunction of constraints is satisfiable. If it
// is and symbols is not empty, values holds one satisfying value per symbol.
type Solver interface {
	Solve(constraints []Expr, symbols []*SymbolExpr) (satisfiable bool, values []uint64, err error)
}
