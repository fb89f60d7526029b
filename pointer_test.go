package smg_test

import (
	"testing"

	"github.com/benbjohnson/smg"
	"github.com/google/go-cmp/cmp"
)

func TestGraph_Resolve(t *testing.T) {
	g := smg.NewGraph(&smg.SymbolGen{})
	g, obj := MustAllocate(t, g, smg.ObjectHeap, 16, "p")

	t.Run("Null", func(t *testing.T) {
		if p := g.Resolve(smg.NewConstantExpr64(0)); p.Kind != smg.PointerNull {
			t.Fatalf("unexpected pointer: %s", p)
		}
	})

	t.Run("Base", func(t *testing.T) {
		p := g.Resolve(obj.Addr())
		if p.Kind != smg.PointerTarget || p.Object.ID != obj.ID {
			t.Fatalf("unexpected pointer: %s", p)
		} else if diff := cmp.Diff(p.Offset, smg.Expr(smg.NewConstantExpr64(0))); diff != "" {
			t.Fatal(diff)
		} else if got, exp := p.String(), "&p#1+(const 0 64)"; got != exp {
			t.Fatalf("String()=%s, expected %s", got, exp)
		}
	})

	t.Run("ConstantOffset", func(t *testing.T) {
		p := g.Resolve(smg.PointerAdd(obj.Addr(), smg.NewConstantExpr32(8)))
		if p.Kind != smg.PointerTarget {
			t.Fatalf("unexpected pointer: %s", p)
		} else if diff := cmp.Diff(p.Offset, smg.Expr(smg.NewConstantExpr64(8))); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("SymbolicOffset", func(t *testing.T) {
		i := &smg.SymbolExpr{ID: 100, Width: 32, Name: "i"}
		p := g.Resolve(smg.PointerAdd(obj.Addr(), i))
		if p.Kind != smg.PointerTarget {
			t.Fatalf("unexpected pointer: %s", p)
		} else if diff := cmp.Diff(p.Offset, smg.NewCastExpr(i, 64, true)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("OffsetPastNextObject", func(t *testing.T) {
		g, next := MustAllocate(t, g, smg.ObjectHeap, 16, "q")
		addr := smg.PointerAdd(obj.Addr(), smg.NewConstantExpr64(1<<32 + 4))

		p := g.Resolve(addr)
		if p.Kind != smg.PointerTarget || p.Object.ID != obj.ID {
			t.Fatalf("unexpected pointer: %s", p)
		} else if diff := cmp.Diff(p.Offset, smg.Expr(smg.NewConstantExpr64(1<<32 + 4))); diff != "" {
			t.Fatal(diff)
		}

		// A negative offset from the later object stays relative to it.
		p = g.Resolve(smg.PointerAdd(next.Addr(), smg.NewConstantExpr64(uint64(1<<64-8))))
		if p.Kind != smg.PointerTarget || p.Object.ID != next.ID {
			t.Fatalf("unexpected pointer: %s", p)
		} else if diff := cmp.Diff(p.Offset, smg.Expr(smg.NewConstantExpr64(uint64(1<<64-8)))); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("NestedOffset", func(t *testing.T) {
		i := &smg.SymbolExpr{ID: 102, Width: 64, Name: "i"}
		p := smg.PointerAdd(smg.PointerAdd(obj.Addr(), smg.NewConstantExpr64(8)), i)
		if p := g.Resolve(p); p.Kind != smg.PointerTarget || p.Object.ID != obj.ID {
			t.Fatalf("unexpected pointer: %s", p)
		} else if diff := cmp.Diff(p.Offset, smg.NewBinaryExpr(smg.ADD, smg.NewConstantExpr64(8), i)); diff != "" {
			t.Fatal(diff)
		}

		// Masking an address loses the object it came from.
		masked := smg.NewBinaryExpr(smg.AND, obj.Addr(), smg.NewConstantExpr64(^uint64(7)))
		if p := g.Resolve(masked); p.Kind != smg.PointerUnknown {
			t.Fatalf("unexpected pointer: %s", p)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		// An error code used as a pointer.
		p := g.Resolve(smg.NewConstantExpr64(uint64(0xFFFFFFFFFFFFFFF4)))
		if p.Kind != smg.PointerInvalid {
			t.Fatalf("unexpected pointer: %s", p)
		}
		if p := g.Resolve(smg.NewConstantExpr64(12385)); p.Kind != smg.PointerInvalid {
			t.Fatalf("unexpected pointer: %s", p)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		sym := &smg.SymbolExpr{ID: 101, Width: 64}
		if p := g.Resolve(sym); p.Kind != smg.PointerUnknown {
			t.Fatalf("unexpected pointer: %s", p)
		} else if got, exp := p.String(), "unknown((sym #101 64))"; got != exp {
			t.Fatalf("String()=%s, expected %s", got, exp)
		}
	})
}
