package smg_test

import (
	"testing"

	"github.com/benbjohnson/smg"
	"github.com/google/go-cmp/cmp"
)

// MustAllocate allocates an object of a constant size or fails the test.
func MustAllocate(tb testing.TB, g *smg.Graph, kind smg.ObjectKind, size uint64, label string) (*smg.Graph, *smg.Object) {
	tb.Helper()
	g, obj, err := g.Allocate(kind, smg.NewConstantExpr64(size), label)
	if err != nil {
		tb.Fatal(err)
	}
	return g, obj
}

// zeroed returns g with obj marked as zero-initialized.
func zeroed(g *smg.Graph, obj *smg.Object) (*smg.Graph, *smg.Object) {
	o := *obj
	o.Zeroed = true
	return g.Insert(&o), &o
}

func TestGraph_Allocate(t *testing.T) {
	g := smg.NewGraph(&smg.SymbolGen{})
	g, a := MustAllocate(t, g, smg.ObjectHeap, 16, "a")
	g, b := MustAllocate(t, g, smg.ObjectStack, 4, "b")

	if got, exp := a.ID, uint64(1); got != exp {
		t.Fatalf("ID=%d, expected %d", got, exp)
	} else if got, exp := b.ID, uint64(2); got != exp {
		t.Fatalf("ID=%d, expected %d", got, exp)
	} else if got, exp := b.Base(), uint64(2)<<32; got != exp {
		t.Fatalf("Base=%x, expected %x", got, exp)
	} else if got, exp := len(g.Objects()), 2; got != exp {
		t.Fatalf("len(Objects)=%d, expected %d", got, exp)
	} else if g.Object(3) != nil {
		t.Fatal("expected no object")
	}

	if _, _, err := g.Allocate(smg.ObjectHeap, smg.NewConstantExpr64(smg.MaxObjectSize), "huge"); err != smg.ErrInvalidSize {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraph_ReadWrite(t *testing.T) {
	t.Run("Exact", func(t *testing.T) {
		g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectStack, 8, "x")
		g = g.Write(obj, 0, 4, smg.NewConstantExpr32(0x11223344))
		if _, v := g.Read(obj, 0, 4); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr32(0x11223344))) {
			t.Fatalf("unexpected value: %s", v)
		}
		if _, v := g.Read(obj, 1, 2); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr16(0x2233))) {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	t.Run("LittleEndian", func(t *testing.T) {
		g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectStack, 2, "x")
		g = g.Write(obj, 0, 1, smg.NewConstantExpr8(0xAA))
		g = g.Write(obj, 1, 1, smg.NewConstantExpr8(0xBB))
		if _, v := g.Read(obj, 0, 2); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr16(0xBBAA))) {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectStack, 8, "x")
		g = g.Write(obj, 0, 8, smg.NewConstantExpr64(0x1122334455667788))
		g = g.Write(obj, 2, 2, smg.NewConstantExpr16(0xFFFF))
		if got, exp := len(g.Edges(obj)), 3; got != exp {
			t.Fatalf("len(Edges)=%d, expected %d", got, exp)
		}
		if _, v := g.Read(obj, 0, 8); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr64(0x11223344FFFF7788))) {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	t.Run("Zeroed", func(t *testing.T) {
		g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectHeap, 8, "buf")
		g, obj = zeroed(g, obj)
		g = g.Write(obj, 0, 1, smg.NewConstantExpr8(0x7F))
		if _, v := g.Read(obj, 0, 4); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr32(0x7F))) {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	t.Run("Uninitialized", func(t *testing.T) {
		g0, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectHeap, 8, "buf")
		g1, v1 := g0.Read(obj, 0, 4)
		sym, ok := v1.(*smg.SymbolExpr)
		if !ok {
			t.Fatalf("expected symbol, got %s", v1)
		} else if got, exp := sym.Name, "buf[0]"; got != exp {
			t.Fatalf("Name=%s, expected %s", got, exp)
		}

		// Later reads agree; the original graph is untouched.
		if _, v2 := g1.Read(obj, 0, 4); v2 != v1 {
			t.Fatalf("unexpected value: %s", v2)
		} else if got := len(g0.Edges(obj)); got != 0 {
			t.Fatalf("len(Edges)=%d, expected 0", got)
		}
	})
}

func TestGraph_Memset(t *testing.T) {
	g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectHeap, 4, "buf")
	g = g.Memset(obj, 0, 4, smg.NewConstantExpr8(0xAB))
	if _, v := g.Read(obj, 0, 4); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr32(0xABABABAB))) {
		t.Fatalf("unexpected value: %s", v)
	}

	g, obj = zeroed(g, obj)
	g = g.Memset(obj, 0, 4, smg.NewConstantExpr8(0))
	if got := len(g.Edges(obj)); got != 0 {
		t.Fatalf("len(Edges)=%d, expected 0", got)
	} else if _, v := g.Read(obj, 2, 2); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr16(0))) {
		t.Fatalf("unexpected value: %s", v)
	}
}

func TestGraph_Havoc(t *testing.T) {
	g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectHeap, 16, "buf")
	g, obj = zeroed(g, obj)
	g = g.Write(obj, 0, 4, smg.NewConstantExpr32(1))
	g = g.Havoc(obj, 0, 4)

	if _, v := g.Read(obj, 0, 4); smg.IsConstantExpr(v) {
		t.Fatalf("expected unknown value, got %s", v)
	} else if _, v := g.Read(obj, 4, 4); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr32(0))) {
		t.Fatalf("unexpected value: %s", v)
	}
}

func TestGraph_Copy(t *testing.T) {
	g := smg.NewGraph(&smg.SymbolGen{})
	g, src := MustAllocate(t, g, smg.ObjectStack, 8, "src")
	g, dst := MustAllocate(t, g, smg.ObjectStack, 8, "dst")
	g = g.Write(src, 0, 2, smg.NewConstantExpr16(0x1234))
	g = g.Write(src, 2, 4, smg.NewConstantExpr32(0xCAFEBABE))

	g = g.Copy(dst, 2, src, 0, 6)
	if _, v := g.Read(dst, 2, 2); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr16(0x1234))) {
		t.Fatalf("unexpected value: %s", v)
	} else if _, v := g.Read(dst, 4, 4); !cmp.Equal(v, smg.Expr(smg.NewConstantExpr32(0xCAFEBABE))) {
		t.Fatalf("unexpected value: %s", v)
	}
}

func TestGraph_Free(t *testing.T) {
	g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectHeap, 8, "p")
	g = g.Write(obj, 0, 8, smg.NewConstantExpr64(1))

	g, err := g.Free(obj)
	if err != nil {
		t.Fatal(err)
	}
	freed := g.Object(obj.ID)
	if got, exp := freed.Validity, smg.Freed; got != exp {
		t.Fatalf("Validity=%s, expected %s", got, exp)
	} else if got := len(g.Edges(freed)); got != 0 {
		t.Fatalf("len(Edges)=%d, expected 0", got)
	}

	if _, err := g.Free(freed); err != smg.ErrDoubleFree {
		t.Fatalf("unexpected error: %v", err)
	}

	g = g.Invalidate(freed)
	if got, exp := g.Object(obj.ID).Validity, smg.Invalid; got != exp {
		t.Fatalf("Validity=%s, expected %s", got, exp)
	}
}

func TestGraph_Leaks(t *testing.T) {
	g := smg.NewGraph(&smg.SymbolGen{})
	g, a := MustAllocate(t, g, smg.ObjectHeap, 16, "a")
	g, b := MustAllocate(t, g, smg.ObjectHeap, 16, "b")
	g, c := MustAllocate(t, g, smg.ObjectHeap, 16, "c")
	g, s := MustAllocate(t, g, smg.ObjectStack, 8, "s")

	// s -> a+8 -> c; b is unreachable.
	g = g.Write(s, 0, 8, smg.PointerAdd(a.Addr(), smg.NewConstantExpr64(8)))
	g = g.Write(a, 8, 8, c.Addr())

	reachable := g.Reachable([]smg.Expr{s.Addr()})
	if !reachable.Has(int(a.ID)) || !reachable.Has(int(c.ID)) || reachable.Has(int(b.ID)) {
		t.Fatalf("unexpected reachable set: %s", reachable)
	}

	leaks := g.Leaks([]smg.Expr{s.Addr()})
	if got, exp := len(leaks), 1; got != exp {
		t.Fatalf("len(Leaks)=%d, expected %d", got, exp)
	} else if got, exp := leaks[0].ID, b.ID; got != exp {
		t.Fatalf("leak=%d, expected %d", got, exp)
	}

	// Freed and external objects are never leaks.
	g, _ = g.Free(b)
	if leaks := g.Leaks(nil); len(leaks) != 2 {
		t.Fatalf("unexpected leaks: %v", leaks)
	}
	ext := *g.Object(a.ID)
	ext.External = true
	if leaks := g.Insert(&ext).Leaks(nil); len(leaks) != 1 || leaks[0].ID != c.ID {
		t.Fatalf("unexpected leaks: %v", leaks)
	}
}

func TestGraph_Equal(t *testing.T) {
	build := func(v uint64) *smg.Graph {
		g, obj := MustAllocate(t, smg.NewGraph(&smg.SymbolGen{}), smg.ObjectHeap, 8, "p")
		return g.Write(obj, 0, 4, smg.NewConstantExpr32(v))
	}
	if !build(1).Equal(build(1)) {
		t.Fatal("expected equal graphs")
	} else if build(1).Equal(build(2)) {
		t.Fatal("expected different graphs")
	}
}
