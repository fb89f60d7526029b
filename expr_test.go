package smg_test

import (
	"testing"

	"github.com/benbjohnson/smg"
	"github.com/google/go-cmp/cmp"
)

func TestExprWidth(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 32}
	for _, tt := range []struct {
		name string
		expr smg.Expr
		exp  uint
	}{
		{"Constant", smg.NewConstantExpr(0, 16), 16},
		{"Symbol", x, 32},
		{"Address", smg.NewAddressExpr(3), 64},
		{"Concat", &smg.ConcatExpr{MSB: smg.NewConstantExpr(0, 8), LSB: x}, 40},
		{"Extract", &smg.ExtractExpr{Expr: x, Offset: 8, Width: 8}, 8},
		{"Not", &smg.NotExpr{Expr: x}, 32},
		{"Cast", &smg.CastExpr{Src: x, Width: 64}, 64},
		{"Arithmetic", &smg.BinaryExpr{Op: smg.ADD, LHS: x, RHS: x}, 32},
		{"Compare", &smg.BinaryExpr{Op: smg.ULT, LHS: x, RHS: x}, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got, exp := smg.ExprWidth(tt.expr), tt.exp; got != exp {
				t.Fatalf("ExprWidth=%d, expected %d", got, exp)
			}
		})
	}
}

func TestBinaryOp(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		if got, exp := smg.ULT.String(), "ult"; got != exp {
			t.Fatalf("String()=%q, expected %q", got, exp)
		} else if got, exp := smg.BinaryOp(100).String(), "BinaryOp<100>"; got != exp {
			t.Fatalf("String()=%q, expected %q", got, exp)
		}
	})
	t.Run("Parse", func(t *testing.T) {
		if op, ok := smg.ParseBinaryOp("ashr"); !ok || op != smg.ASHR {
			t.Fatalf("unexpected op: %s %v", op, ok)
		} else if _, ok := smg.ParseBinaryOp("foo"); ok {
			t.Fatal("expected unknown op")
		}
	})
	t.Run("Class", func(t *testing.T) {
		if !smg.ADD.IsArithmetic() || smg.ADD.IsCompare() {
			t.Fatal("expected ADD to be arithmetic")
		} else if !smg.SGE.IsCompare() || smg.SGE.IsArithmetic() {
			t.Fatal("expected SGE to be a comparison")
		} else if !smg.SDIV.IsSigned() || smg.UDIV.IsSigned() {
			t.Fatal("unexpected signedness")
		}
	})
}

func TestExpr_String(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8, Name: "x"}
	y := &smg.SymbolExpr{ID: 2, Width: 8}
	for _, tt := range []struct {
		expr smg.Expr
		exp  string
	}{
		{&smg.BinaryExpr{Op: smg.ADD, LHS: smg.NewConstantExpr(0, 32), RHS: smg.NewConstantExpr(1, 32)}, "(add (const 0 32) (const 1 32))"},
		{x, "(sym x#1 8)"},
		{y, "(sym #2 8)"},
		{&smg.ConcatExpr{MSB: x, LSB: y}, "(concat (sym x#1 8) (sym #2 8))"},
		{&smg.ExtractExpr{Expr: x, Offset: 4, Width: 2}, "(extract (sym x#1 8) 4 2)"},
		{&smg.NotExpr{Expr: y}, "(not (sym #2 8))"},
		{&smg.CastExpr{Src: y, Width: 32, Signed: true}, "(sext (sym #2 8) 32)"},
		{&smg.CastExpr{Src: y, Width: 16}, "(zext (sym #2 8) 16)"},
		{smg.NewAddressExpr(3), "(addr #3)"},
	} {
		if got := tt.expr.String(); got != tt.exp {
			t.Fatalf("String()=%s, expected %s", got, tt.exp)
		}
	}
}

func TestNewBinaryExpr_ADD(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}

	// Object bases stay apart from the offsets added to them.
	t.Run("Address", func(t *testing.T) {
		a := smg.NewAddressExpr(1)
		sum := smg.NewBinaryExpr(smg.ADD, smg.NewBinaryExpr(smg.ADD, a, smg.NewConstantExpr64(4)), smg.NewConstantExpr64(1<<32))
		if diff := cmp.Diff(sum, &smg.BinaryExpr{Op: smg.ADD, LHS: smg.NewConstantExpr64(1<<32 + 4), RHS: a}); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewBinaryExpr(smg.SUB, sum, a), smg.Expr(smg.NewConstantExpr64(1<<32 + 4))); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Constant", func(t *testing.T) {
		if diff := cmp.Diff(
			smg.NewConstantExpr(10, 8),
			smg.NewBinaryExpr(smg.ADD, smg.NewConstantExpr(6, 8), smg.NewConstantExpr(4, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Overflow", func(t *testing.T) {
		if diff := cmp.Diff(
			smg.NewConstantExpr(4, 8),
			smg.NewBinaryExpr(smg.ADD, smg.NewConstantExpr(250, 8), smg.NewConstantExpr(10, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Zero", func(t *testing.T) {
		if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.ADD, x, smg.NewConstantExpr(0, 8))); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantMovedLeft", func(t *testing.T) {
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.ADD, LHS: smg.NewConstantExpr(3, 8), RHS: x},
			smg.NewBinaryExpr(smg.ADD, x, smg.NewConstantExpr(3, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Associative", func(t *testing.T) {
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.ADD, LHS: smg.NewConstantExpr(4, 8), RHS: x},
			smg.NewBinaryExpr(
				smg.ADD,
				smg.NewConstantExpr(1, 8),
				smg.NewBinaryExpr(smg.ADD, smg.NewConstantExpr(3, 8), x),
			),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Bool", func(t *testing.T) {
		if diff := cmp.Diff(
			smg.NewConstantExpr(0, 1),
			smg.NewBinaryExpr(smg.ADD, smg.NewConstantExpr(1, 1), smg.NewConstantExpr(1, 1)),
		); diff != "" {
			t.Fatal(diff)
		}

		b := &smg.SymbolExpr{ID: 2, Width: 1}
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.XOR, LHS: smg.NewConstantExpr(1, 1), RHS: b},
			smg.NewBinaryExpr(smg.ADD, b, smg.NewConstantExpr(1, 1)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_SUB(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}

	t.Run("Self", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewConstantExpr(0, 8), smg.NewBinaryExpr(smg.SUB, x, x)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Constant", func(t *testing.T) {
		if diff := cmp.Diff(
			smg.NewConstantExpr(254, 8),
			smg.NewBinaryExpr(smg.SUB, smg.NewConstantExpr(1, 8), smg.NewConstantExpr(3, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantRHS", func(t *testing.T) {
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.ADD, LHS: smg.NewConstantExpr(253, 8), RHS: x},
			smg.NewBinaryExpr(smg.SUB, x, smg.NewConstantExpr(3, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_MUL(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 32}
	if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.MUL, x, smg.NewConstantExpr(1, 32))); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(smg.NewConstantExpr(0, 32), smg.NewBinaryExpr(smg.MUL, x, smg.NewConstantExpr(0, 32))); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(
		&smg.BinaryExpr{Op: smg.MUL, LHS: smg.NewConstantExpr(4, 32), RHS: x},
		smg.NewBinaryExpr(smg.MUL, x, smg.NewConstantExpr(4, 32)),
	); diff != "" {
		t.Fatal(diff)
	}
}

func TestNewBinaryExpr_Div(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 32}

	t.Run("ByZero", func(t *testing.T) {
		zero := smg.NewConstantExpr(0, 32)
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.UDIV, LHS: smg.NewConstantExpr(10, 32), RHS: zero},
			smg.NewBinaryExpr(smg.UDIV, smg.NewConstantExpr(10, 32), zero),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ByOne", func(t *testing.T) {
		if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.SDIV, x, smg.NewConstantExpr(1, 32))); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewConstantExpr(0, 32), smg.NewBinaryExpr(smg.UREM, x, smg.NewConstantExpr(1, 32))); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Signed", func(t *testing.T) {
		// -6 / 4 truncates toward zero.
		if diff := cmp.Diff(
			smg.NewConstantExpr(0xFF, 8),
			smg.NewBinaryExpr(smg.SDIV, smg.NewConstantExpr(uint64(0xFA), 8), smg.NewConstantExpr(4, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_Bitwise(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}

	t.Run("AND", func(t *testing.T) {
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.AND, LHS: x, RHS: smg.NewConstantExpr(3, 8)},
			smg.NewBinaryExpr(smg.AND, smg.NewConstantExpr(3, 8), x),
		); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.AND, x, smg.NewConstantExpr(0xFF, 8))); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewConstantExpr(0, 8), smg.NewBinaryExpr(smg.AND, x, smg.NewConstantExpr(0, 8))); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("OR", func(t *testing.T) {
		if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.OR, smg.NewConstantExpr(0, 8), x)); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewConstantExpr(0xFF, 8), smg.NewBinaryExpr(smg.OR, x, smg.NewConstantExpr(0xFF, 8))); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("XOR", func(t *testing.T) {
		if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.XOR, x, smg.NewConstantExpr(0, 8))); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Shift", func(t *testing.T) {
		if diff := cmp.Diff(x, smg.NewBinaryExpr(smg.SHL, x, smg.NewConstantExpr(0, 8))); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(
			smg.NewConstantExpr(0, 8),
			smg.NewBinaryExpr(smg.SHL, smg.NewConstantExpr(1, 8), smg.NewConstantExpr(8, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(
			smg.NewConstantExpr(0xC0, 8),
			smg.NewBinaryExpr(smg.ASHR, smg.NewConstantExpr(0x80, 8), smg.NewConstantExpr(1, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(
			smg.NewConstantExpr(0x40, 8),
			smg.NewBinaryExpr(smg.LSHR, smg.NewConstantExpr(0x80, 8), smg.NewConstantExpr(1, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewBinaryExpr_EQ(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}

	t.Run("Self", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewBoolConstantExpr(true), smg.NewBinaryExpr(smg.EQ, x, x)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ConstantMovedLeft", func(t *testing.T) {
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.EQ, LHS: smg.NewConstantExpr(5, 8), RHS: x},
			smg.NewBinaryExpr(smg.EQ, x, smg.NewConstantExpr(5, 8)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("True", func(t *testing.T) {
		eq := smg.NewBinaryExpr(smg.EQ, x, smg.NewConstantExpr(5, 8))
		if diff := cmp.Diff(eq, smg.NewBinaryExpr(smg.EQ, smg.NewBoolConstantExpr(true), eq)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("DoubleNegation", func(t *testing.T) {
		b := &smg.SymbolExpr{ID: 2, Width: 1}
		if diff := cmp.Diff(b, smg.NewLogicalNotExpr(smg.NewLogicalNotExpr(b))); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Offset", func(t *testing.T) {
		// 10 == 3 + x  =>  7 == x
		if diff := cmp.Diff(
			&smg.BinaryExpr{Op: smg.EQ, LHS: smg.NewConstantExpr(7, 8), RHS: x},
			smg.NewBinaryExpr(smg.EQ, smg.NewConstantExpr(10, 8), smg.NewBinaryExpr(smg.ADD, smg.NewConstantExpr(3, 8), x)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Cast", func(t *testing.T) {
		t.Run("Unreachable", func(t *testing.T) {
			if diff := cmp.Diff(
				smg.NewBoolConstantExpr(false),
				smg.NewBinaryExpr(smg.EQ, smg.NewCastExpr(x, 32, false), smg.NewConstantExpr(300, 32)),
			); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("Unsigned", func(t *testing.T) {
			if diff := cmp.Diff(
				&smg.BinaryExpr{Op: smg.EQ, LHS: smg.NewConstantExpr(200, 8), RHS: x},
				smg.NewBinaryExpr(smg.EQ, smg.NewCastExpr(x, 32, false), smg.NewConstantExpr(200, 32)),
			); diff != "" {
				t.Fatal(diff)
			}
		})
		t.Run("Signed", func(t *testing.T) {
			if diff := cmp.Diff(
				&smg.BinaryExpr{Op: smg.EQ, LHS: smg.NewConstantExpr(0xFF, 8), RHS: x},
				smg.NewBinaryExpr(smg.EQ, smg.NewCastExpr(x, 32, true), smg.NewConstantExpr(0xFFFFFFFF, 32)),
			); diff != "" {
				t.Fatal(diff)
			}
		})
	})
}

func TestNewBinaryExpr_Compare(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 32}
	y := &smg.SymbolExpr{ID: 2, Width: 32}

	t.Run("NE", func(t *testing.T) {
		if diff := cmp.Diff(
			&smg.BinaryExpr{
				Op:  smg.EQ,
				LHS: smg.NewBoolConstantExpr(false),
				RHS: &smg.BinaryExpr{Op: smg.EQ, LHS: smg.NewConstantExpr(5, 32), RHS: x},
			},
			smg.NewBinaryExpr(smg.NE, x, smg.NewConstantExpr(5, 32)),
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Reversed", func(t *testing.T) {
		for _, tt := range []struct {
			op, exp smg.BinaryOp
		}{
			{smg.UGT, smg.ULT},
			{smg.UGE, smg.ULE},
			{smg.SGT, smg.SLT},
			{smg.SGE, smg.SLE},
		} {
			if diff := cmp.Diff(&smg.BinaryExpr{Op: tt.exp, LHS: y, RHS: x}, smg.NewBinaryExpr(tt.op, x, y)); diff != "" {
				t.Fatalf("%s: %s", tt.op, diff)
			}
		}
	})
	t.Run("Self", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewBoolConstantExpr(false), smg.NewBinaryExpr(smg.ULT, x, x)); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewBoolConstantExpr(true), smg.NewBinaryExpr(smg.SLE, x, x)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Constant", func(t *testing.T) {
		neg := smg.NewConstantExpr(0xFFFFFFFF, 32)
		one := smg.NewConstantExpr(1, 32)
		if diff := cmp.Diff(smg.NewBoolConstantExpr(false), smg.NewBinaryExpr(smg.ULT, neg, one)); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewBoolConstantExpr(true), smg.NewBinaryExpr(smg.SLT, neg, one)); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewConcatExpr(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		got := smg.NewConcatExpr(smg.NewConstantExpr(0x80, 8), smg.NewConstantExpr(0xFF, 8))
		if diff := cmp.Diff(got, smg.NewConstantExpr(0x80FF, 16)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Contiguous", func(t *testing.T) {
		x := &smg.SymbolExpr{ID: 1, Width: 32}
		got := smg.NewConcatExpr(
			&smg.ExtractExpr{Expr: x, Offset: 8, Width: 8},
			&smg.ExtractExpr{Expr: x, Offset: 0, Width: 8},
		)
		if diff := cmp.Diff(got, &smg.ExtractExpr{Expr: x, Offset: 0, Width: 16}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Symbolic", func(t *testing.T) {
		x := &smg.SymbolExpr{ID: 1, Width: 8}
		y := &smg.SymbolExpr{ID: 2, Width: 8}
		if diff := cmp.Diff(smg.NewConcatExpr(x, y), &smg.ConcatExpr{MSB: x, LSB: y}); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewExtractExpr(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 32}

	t.Run("SameWidth", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewExtractExpr(x, 0, 32), x); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Constant", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewExtractExpr(smg.NewConstantExpr(0x1234, 16), 8, 8), smg.NewConstantExpr(0x12, 8)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Concat", func(t *testing.T) {
		a := &smg.SymbolExpr{ID: 2, Width: 8}
		b := &smg.SymbolExpr{ID: 3, Width: 8}
		concat := &smg.ConcatExpr{MSB: a, LSB: b}
		if diff := cmp.Diff(smg.NewExtractExpr(concat, 0, 8), b); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewExtractExpr(concat, 8, 8), a); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(
			smg.NewExtractExpr(concat, 4, 8),
			&smg.ConcatExpr{
				MSB: &smg.ExtractExpr{Expr: a, Offset: 0, Width: 4},
				LSB: &smg.ExtractExpr{Expr: b, Offset: 4, Width: 4},
			},
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Nested", func(t *testing.T) {
		got := smg.NewExtractExpr(&smg.ExtractExpr{Expr: x, Offset: 8, Width: 16}, 4, 8)
		if diff := cmp.Diff(got, &smg.ExtractExpr{Expr: x, Offset: 12, Width: 8}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Cast", func(t *testing.T) {
		b := &smg.SymbolExpr{ID: 2, Width: 8}
		ext := smg.NewCastExpr(b, 32, true)
		if diff := cmp.Diff(smg.NewExtractExpr(ext, 0, 8), b); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewExtractExpr(ext, 8, 8), &smg.ExtractExpr{Expr: ext, Offset: 8, Width: 8}); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestNewNotExpr(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}
	if diff := cmp.Diff(smg.NewNotExpr(smg.NewNotExpr(x)), x); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(smg.NewNotExpr(smg.NewConstantExpr(0x0F, 8)), smg.NewConstantExpr(0xF0, 8)); diff != "" {
		t.Fatal(diff)
	}
}

func TestNewCastExpr(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}

	t.Run("Nop", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewCastExpr(x, 8, true), x); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Truncate", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewCastExpr(x, 4, false), &smg.ExtractExpr{Expr: x, Offset: 0, Width: 4}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Constant", func(t *testing.T) {
		if diff := cmp.Diff(smg.NewCastExpr(smg.NewConstantExpr(0x80, 8), 16, true), smg.NewConstantExpr(0xFF80, 16)); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(smg.NewCastExpr(smg.NewConstantExpr(0x80, 8), 16, false), smg.NewConstantExpr(0x80, 16)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Collapse", func(t *testing.T) {
		if diff := cmp.Diff(
			smg.NewCastExpr(smg.NewCastExpr(x, 16, false), 32, false),
			&smg.CastExpr{Src: x, Width: 32},
		); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(
			smg.NewCastExpr(smg.NewCastExpr(x, 16, true), 64, true),
			&smg.CastExpr{Src: x, Width: 64, Signed: true},
		); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("MixedSign", func(t *testing.T) {
		sext := smg.NewCastExpr(x, 16, true)
		if diff := cmp.Diff(smg.NewCastExpr(sext, 32, false), &smg.CastExpr{Src: sext, Width: 32}); diff != "" {
			t.Fatal(diff)
		}
		zext := smg.NewCastExpr(x, 16, false)
		if diff := cmp.Diff(smg.NewCastExpr(zext, 32, true), &smg.CastExpr{Src: zext, Width: 32, Signed: true}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Bool", func(t *testing.T) {
		b := &smg.SymbolExpr{ID: 2, Width: 1}
		if diff := cmp.Diff(smg.NewCastExpr(b, 32, true), &smg.CastExpr{Src: b, Width: 32}); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestConstantExpr(t *testing.T) {
	t.Run("Int64", func(t *testing.T) {
		if got, exp := smg.NewConstantExpr(0xFF, 8).Int64(), int64(-1); got != exp {
			t.Fatalf("Int64()=%d, expected %d", got, exp)
		} else if got, exp := smg.NewConstantExpr(0x7F, 8).Int64(), int64(127); got != exp {
			t.Fatalf("Int64()=%d, expected %d", got, exp)
		}
	})
	t.Run("Masked", func(t *testing.T) {
		if got, exp := smg.NewConstantExpr(0x1FF, 8).Value, uint64(0xFF); got != exp {
			t.Fatalf("Value=%d, expected %d", got, exp)
		}
	})
	t.Run("SRem", func(t *testing.T) {
		got := smg.NewConstantExpr(uint64(0xF9), 8).SRem(smg.NewConstantExpr(3, 8)) // -7 % 3
		if diff := cmp.Diff(got, smg.NewConstantExpr(0xFF, 8)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("AShrSaturates", func(t *testing.T) {
		got := smg.NewConstantExpr(0x80, 8).AShr(smg.NewConstantExpr(20, 8))
		if diff := cmp.Diff(got, smg.NewConstantExpr(0xFF, 8)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Compare", func(t *testing.T) {
		a, b := smg.NewConstantExpr(0xFF, 8), smg.NewConstantExpr(1, 8)
		if !a.Ugt(b).IsTrue() || !a.Slt(b).IsTrue() || !a.Sge(a).IsTrue() || !b.Uge(b).IsTrue() {
			t.Fatal("unexpected comparison")
		}
		if !a.IsAllOnes() || b.IsAllOnes() {
			t.Fatal("unexpected IsAllOnes")
		}
	})
}

func TestCompareExpr(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}
	y := &smg.SymbolExpr{ID: 2, Width: 8}
	if got := smg.CompareExpr(smg.NewConstantExpr(1, 8), x); got != -1 {
		t.Fatalf("unexpected result: %d", got)
	} else if got := smg.CompareExpr(y, x); got != 1 {
		t.Fatalf("unexpected result: %d", got)
	} else if got := smg.CompareExpr(
		&smg.BinaryExpr{Op: smg.ADD, LHS: x, RHS: y},
		&smg.BinaryExpr{Op: smg.ADD, LHS: x, RHS: &smg.SymbolExpr{ID: 2, Width: 8}},
	); got != 0 {
		t.Fatalf("unexpected result: %d", got)
	} else if got := smg.CompareExpr(nil, x); got != -1 {
		t.Fatalf("unexpected result: %d", got)
	}
}

// substitute replaces a symbol with a constant.
type substitute struct {
	id    uint64
	value uint64
}

func (v *substitute) Visit(expr smg.Expr) (smg.Expr, smg.ExprVisitor) {
	if sym, ok := expr.(*smg.SymbolExpr); ok && sym.ID == v.id {
		return smg.NewConstantExpr(v.value, sym.Width), nil
	}
	return expr, v
}

func TestWalkExpr(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}
	y := &smg.SymbolExpr{ID: 2, Width: 8}

	t.Run("Rebuild", func(t *testing.T) {
		expr := &smg.BinaryExpr{Op: smg.ADD, LHS: smg.NewConstantExpr(3, 8), RHS: x}
		if diff := cmp.Diff(smg.WalkExpr(&substitute{id: 1, value: 2}, expr), smg.NewConstantExpr(5, 8)); diff != "" {
			t.Fatal(diff)
		}
		if got, exp := expr.RHS, smg.Expr(x); got != exp {
			t.Fatal("expected original expression to be unchanged")
		}
	})
	t.Run("Unchanged", func(t *testing.T) {
		expr := &smg.NotExpr{Expr: y}
		if got := smg.WalkExpr(&substitute{id: 1, value: 2}, expr); got != smg.Expr(expr) {
			t.Fatalf("expected same expression, got %s", got)
		}
	})
}

func TestFindSymbols(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8, Name: "x"}
	y := &smg.SymbolExpr{ID: 2, Width: 8, Name: "y"}
	symbols := smg.FindSymbols(
		&smg.BinaryExpr{Op: smg.ADD, LHS: y, RHS: &smg.NotExpr{Expr: x}},
		&smg.CastExpr{Src: x, Width: 16},
		smg.NewConstantExpr(1, 8),
	)
	if diff := cmp.Diff(symbols, []*smg.SymbolExpr{x, y}); diff != "" {
		t.Fatal(diff)
	}
}

func TestExprEvaluator_Evaluate(t *testing.T) {
	x := &smg.SymbolExpr{ID: 1, Width: 8}
	y := &smg.SymbolExpr{ID: 2, Width: 8}

	t.Run("Binary", func(t *testing.T) {
		ee := smg.NewExprEvaluator([]*smg.SymbolExpr{x, y}, []uint64{3, 4})
		expr := &smg.BinaryExpr{
			Op:  smg.ADD,
			LHS: &smg.BinaryExpr{Op: smg.MUL, LHS: x, RHS: y},
			RHS: smg.NewConstantExpr(2, 8),
		}
		if got, err := ee.Evaluate(expr); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(got, smg.NewConstantExpr(14, 8)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Compare", func(t *testing.T) {
		ee := smg.NewExprEvaluator([]*smg.SymbolExpr{x, y}, []uint64{3, 4})
		if got, err := ee.Evaluate(&smg.BinaryExpr{Op: smg.ULT, LHS: x, RHS: y}); err != nil {
			t.Fatal(err)
		} else if !got.IsTrue() {
			t.Fatalf("unexpected result: %s", got)
		}
	})
	t.Run("Cast", func(t *testing.T) {
		ee := smg.NewExprEvaluator([]*smg.SymbolExpr{x}, []uint64{0x80})
		if got, err := ee.Evaluate(&smg.CastExpr{Src: x, Width: 16, Signed: true}); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(got, smg.NewConstantExpr(0xFF80, 16)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Masked", func(t *testing.T) {
		ee := smg.NewExprEvaluator([]*smg.SymbolExpr{x}, []uint64{0x1FF})
		if got, err := ee.Evaluate(x); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(got, smg.NewConstantExpr(0xFF, 8)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("ErrDivisionByZero", func(t *testing.T) {
		ee := smg.NewExprEvaluator([]*smg.SymbolExpr{x, y}, []uint64{3, 0})
		if _, err := ee.Evaluate(&smg.BinaryExpr{Op: smg.UDIV, LHS: x, RHS: y}); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("ErrUnbound", func(t *testing.T) {
		ee := smg.NewExprEvaluator(nil, nil)
		if _, err := ee.Evaluate(x); err == nil {
			t.Fatal("expected error")
		}
	})
}
