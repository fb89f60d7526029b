//go:build z3

package z3_test

import (
	"testing"

	"github.com/benbjohnson/smg"
	"github.com/benbjohnson/smg/z3"
	"github.com/google/go-cmp/cmp"
)

func TestSolver_Solve(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			if satisfiable, _, err := s.Solve([]smg.Expr{smg.NewBoolConstantExpr(true)}, nil); err != nil {
				t.Fatal(err)
			} else if !satisfiable {
				t.Fatal("expected satisfiable")
			}
		})
		t.Run("False", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			if satisfiable, _, err := s.Solve([]smg.Expr{smg.NewBoolConstantExpr(false)}, nil); err != nil {
				t.Fatal(err)
			} else if satisfiable {
				t.Fatal("expected unsatisfiable")
			}
		})
	})

	t.Run("Symbol", func(t *testing.T) {
		for _, w := range []uint{8, 16, 32, 64} {
			s := z3.NewSolver()
			sym := &smg.SymbolExpr{ID: 1, Width: w, Name: "x"}
			if satisfiable, values, err := s.Solve(
				[]smg.Expr{smg.NewBinaryExpr(smg.EQ, sym, smg.NewConstantExpr(10, w))},
				[]*smg.SymbolExpr{sym},
			); err != nil {
				t.Fatal(err)
			} else if !satisfiable {
				t.Fatalf("width %d: expected satisfiable", w)
			} else if diff := cmp.Diff(values, []uint64{10}); diff != "" {
				t.Fatalf("width %d: %s", w, diff)
			}
			MustCloseSolver(s)
		}
	})

	t.Run("Bool", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		b := &smg.SymbolExpr{ID: 1, Width: 1}
		if satisfiable, values, err := s.Solve([]smg.Expr{b}, []*smg.SymbolExpr{b}); err != nil {
			t.Fatal(err)
		} else if !satisfiable {
			t.Fatal("expected satisfiable")
		} else if diff := cmp.Diff(values, []uint64{1}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Range", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		x := &smg.SymbolExpr{ID: 1, Width: 32}
		if satisfiable, _, err := s.Solve([]smg.Expr{
			smg.NewBinaryExpr(smg.ULT, x, smg.NewConstantExpr(3, 32)),
			smg.NewBinaryExpr(smg.UGT, x, smg.NewConstantExpr(5, 32)),
		}, nil); err != nil {
			t.Fatal(err)
		} else if satisfiable {
			t.Fatal("expected unsatisfiable")
		}
	})

	// Mask and shift: (x & 0xF0) >> 4 == 3 and x < 0x40.
	t.Run("Bits", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		x := &smg.SymbolExpr{ID: 1, Width: 8}
		masked := smg.NewBinaryExpr(smg.LSHR, smg.NewBinaryExpr(smg.AND, x, smg.NewConstantExpr(0xF0, 8)), smg.NewConstantExpr(4, 8))
		if satisfiable, values, err := s.Solve([]smg.Expr{
			smg.NewBinaryExpr(smg.EQ, masked, smg.NewConstantExpr(3, 8)),
			smg.NewBinaryExpr(smg.EQ, smg.NewBinaryExpr(smg.AND, x, smg.NewConstantExpr(0x0F, 8)), smg.NewConstantExpr(0, 8)),
		}, []*smg.SymbolExpr{x}); err != nil {
			t.Fatal(err)
		} else if !satisfiable {
			t.Fatal("expected satisfiable")
		} else if diff := cmp.Diff(values, []uint64{0x30}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Cast", func(t *testing.T) {
		t.Run("Signed", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			value := -200
			if satisfiable, _, err := s.Solve([]smg.Expr{
				&smg.BinaryExpr{
					Op: smg.EQ,
					LHS: &smg.CastExpr{
						Src:    smg.NewConstantExpr(uint64(uint16(int16(value))), 16),
						Width:  32,
						Signed: true,
					},
					RHS: smg.NewConstantExpr(uint64(uint32(int32(value))), 32),
				},
			}, nil); err != nil {
				t.Fatal(err)
			} else if !satisfiable {
				t.Fatal("expected satisfiable")
			}
		})
		t.Run("Truncate", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			x := &smg.SymbolExpr{ID: 1, Width: 32}
			if satisfiable, values, err := s.Solve([]smg.Expr{
				smg.NewBinaryExpr(smg.EQ, smg.NewExtractExpr(x, 0, 8), smg.NewConstantExpr(0xFF, 8)),
				smg.NewBinaryExpr(smg.ULT, x, smg.NewConstantExpr(0x100, 32)),
			}, []*smg.SymbolExpr{x}); err != nil {
				t.Fatal(err)
			} else if !satisfiable {
				t.Fatal("expected satisfiable")
			} else if diff := cmp.Diff(values, []uint64{0xFF}); diff != "" {
				t.Fatal(diff)
			}
		})
	})

	t.Run("BinaryExpr", func(t *testing.T) {
		for _, tt := range []struct {
			name     string
			op       smg.BinaryOp
			lhs, rhs uint64
			exp      uint64
		}{
			{"ADD", smg.ADD, 1000, 200, 1200},
			{"SUB", smg.SUB, 1000, 200, 800},
			{"MUL", smg.MUL, 100, 20, 2000},
			{"UDIV", smg.UDIV, 1000, 20, 50},
			{"UREM", smg.UREM, 1003, 10, 3},
			{"SHL", smg.SHL, 3, 4, 48},
			{"ASHR", smg.ASHR, 0xFF00, 4, 0xFFF0},
		} {
			t.Run(tt.name, func(t *testing.T) {
				s := z3.NewSolver()
				defer MustCloseSolver(s)

				// Built directly so the expression is not folded.
				x := &smg.SymbolExpr{ID: 1, Width: 16}
				if satisfiable, values, err := s.Solve([]smg.Expr{
					&smg.BinaryExpr{Op: smg.EQ, LHS: x, RHS: smg.NewConstantExpr(tt.lhs, 16)},
					&smg.BinaryExpr{
						Op:  smg.EQ,
						LHS: &smg.BinaryExpr{Op: tt.op, LHS: x, RHS: smg.NewConstantExpr(tt.rhs, 16)},
						RHS: smg.NewConstantExpr(tt.exp, 16),
					},
				}, []*smg.SymbolExpr{x}); err != nil {
					t.Fatal(err)
				} else if !satisfiable {
					t.Fatal("expected satisfiable")
				} else if diff := cmp.Diff(values, []uint64{tt.lhs}); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	})
}

func MustCloseSolver(s *z3.Solver) {
	if err := s.Close(); err != nil {
		panic(err)
	}
}
