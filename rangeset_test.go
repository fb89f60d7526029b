package smg_test

import (
	"testing"

	"github.com/benbjohnson/smg"
	"github.com/google/go-cmp/cmp"
)

func TestNewRangeSet(t *testing.T) {
	t.Run("Merge", func(t *testing.T) {
		r := smg.NewRangeSet(8,
			smg.Interval{Lo: 5, Hi: 10},
			smg.Interval{Lo: 0, Hi: 3},
			smg.Interval{Lo: 4, Hi: 4},
			smg.Interval{Lo: 20, Hi: 30},
		)
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 10}, {Lo: 20, Hi: 30}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Clamp", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 250, Hi: 1000}, smg.Interval{Lo: 9, Hi: 2})
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 250, Hi: 255}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("JoinClosest", func(t *testing.T) {
		var a []smg.Interval
		for i := uint64(0); i < 20; i++ {
			a = append(a, smg.Interval{Lo: i * 10, Hi: i * 10})
		}
		r := smg.NewRangeSet(8, a...)
		if got, exp := len(r.Intervals), 16; got != exp {
			t.Fatalf("len=%d, expected %d", got, exp)
		} else if got, exp := r.Intervals[0], (smg.Interval{Lo: 0, Hi: 40}); got != exp {
			t.Fatalf("first=%v, expected %v", got, exp)
		}
		for i := uint64(0); i < 20; i++ {
			if !r.Contains(i * 10) {
				t.Fatalf("expected %d to be kept", i*10)
			}
		}
	})
}

func TestRangeSet_String(t *testing.T) {
	for _, tt := range []struct {
		r   smg.RangeSet
		exp string
	}{
		{smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 10}, smg.Interval{Lo: 20, Hi: 30}), "[0,10]∪[20,30]u8"},
		{smg.SingletonRange(5, 32), "{5}u32"},
		{smg.EmptyRange(16), "{}u16"},
	} {
		if got := tt.r.String(); got != tt.exp {
			t.Fatalf("String()=%s, expected %s", got, tt.exp)
		}
	}
}

func TestRangeSet_Predicates(t *testing.T) {
	if !smg.FullRange(8).IsFull() || smg.SingletonRange(1, 8).IsFull() {
		t.Fatal("unexpected IsFull")
	} else if !smg.EmptyRange(8).IsEmpty() || smg.FullRange(8).IsEmpty() {
		t.Fatal("unexpected IsEmpty")
	}
	if v, ok := smg.SingletonRange(300, 8).Singleton(); !ok || v != 44 {
		t.Fatalf("unexpected singleton: %d %v", v, ok)
	} else if _, ok := smg.FullRange(8).Singleton(); ok {
		t.Fatal("expected no singleton")
	}
	if !smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 127}).IsNonNegative() || smg.FullRange(8).IsNonNegative() {
		t.Fatal("unexpected IsNonNegative")
	}
}

func TestSignedRange(t *testing.T) {
	r := smg.SignedRange(-2, 3, 8)
	if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 3}, {Lo: 254, Hi: 255}}); diff != "" {
		t.Fatal(diff)
	}
	if got, exp := r.SignedMin(), int64(-2); got != exp {
		t.Fatalf("SignedMin=%d, expected %d", got, exp)
	} else if got, exp := r.SignedMax(), int64(3); got != exp {
		t.Fatalf("SignedMax=%d, expected %d", got, exp)
	} else if got, exp := r.Min(), uint64(0); got != exp {
		t.Fatalf("Min=%d, expected %d", got, exp)
	} else if got, exp := r.Max(), uint64(255); got != exp {
		t.Fatalf("Max=%d, expected %d", got, exp)
	}

	if !smg.SignedRange(3, -2, 8).IsEmpty() {
		t.Fatal("expected empty range")
	}
}

func TestRangeSet_SetOperations(t *testing.T) {
	a := smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 10}, smg.Interval{Lo: 20, Hi: 30})
	b := smg.NewRangeSet(8, smg.Interval{Lo: 5, Hi: 25})

	t.Run("Intersect", func(t *testing.T) {
		if diff := cmp.Diff(a.Intersect(b).Intervals, []smg.Interval{{Lo: 5, Hi: 10}, {Lo: 20, Hi: 25}}); diff != "" {
			t.Fatal(diff)
		}
		if !a.Intersect(smg.SingletonRange(15, 8)).IsEmpty() {
			t.Fatal("expected empty intersection")
		}
	})
	t.Run("Union", func(t *testing.T) {
		if diff := cmp.Diff(a.Union(b).Intervals, []smg.Interval{{Lo: 0, Hi: 30}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Complement", func(t *testing.T) {
		if diff := cmp.Diff(a.Complement().Intervals, []smg.Interval{{Lo: 11, Hi: 19}, {Lo: 31, Hi: 255}}); diff != "" {
			t.Fatal(diff)
		}
		if !smg.FullRange(8).Complement().IsEmpty() {
			t.Fatal("expected empty complement")
		}
		if !smg.EmptyRange(8).Complement().IsFull() {
			t.Fatal("expected full complement")
		}
	})
	t.Run("SubsetOf", func(t *testing.T) {
		if !smg.SingletonRange(7, 8).SubsetOf(a) {
			t.Fatal("expected subset")
		} else if b.SubsetOf(a) {
			t.Fatal("expected not subset")
		}
	})
	t.Run("Equal", func(t *testing.T) {
		if !a.Equal(smg.NewRangeSet(8, smg.Interval{Lo: 20, Hi: 30}, smg.Interval{Lo: 0, Hi: 10})) {
			t.Fatal("expected equal")
		} else if a.Equal(smg.NewRangeSet(16, a.Intervals...)) {
			t.Fatal("expected widths to differ")
		}
	})
}

func TestRangeSet_Casts(t *testing.T) {
	t.Run("ZExt", func(t *testing.T) {
		if diff := cmp.Diff(smg.FullRange(8).ZExt(32).Intervals, []smg.Interval{{Lo: 0, Hi: 255}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("SExt", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 126, Hi: 129}).SExt(16)
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 126, Hi: 127}, {Lo: 0xFF80, Hi: 0xFF81}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Truncate", func(t *testing.T) {
		r := smg.NewRangeSet(16, smg.Interval{Lo: 250, Hi: 260}).Truncate(8)
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 4}, {Lo: 250, Hi: 255}}); diff != "" {
			t.Fatal(diff)
		}
		if !smg.NewRangeSet(16, smg.Interval{Lo: 0, Hi: 300}).Truncate(8).IsFull() {
			t.Fatal("expected full range")
		}
	})
}

func TestRangeSet_Arithmetic(t *testing.T) {
	t.Run("Add", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 250, Hi: 255}).Shift(10)
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 4, Hi: 9}}); diff != "" {
			t.Fatal(diff)
		}
		r = smg.NewRangeSet(8, smg.Interval{Lo: 250, Hi: 255}).Add(smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 10}))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 9}, {Lo: 250, Hi: 255}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Sub", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 10, Hi: 20}).Sub(smg.SingletonRange(5, 8))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 5, Hi: 15}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Mul", func(t *testing.T) {
		r := smg.NewRangeSet(32, smg.Interval{Lo: 1, Hi: 3}).Mul(smg.SingletonRange(4, 32))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 4, Hi: 12}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("UDiv", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 10, Hi: 20}).UDiv(smg.NewRangeSet(8, smg.Interval{Lo: 2, Hi: 5}))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 2, Hi: 10}}); diff != "" {
			t.Fatal(diff)
		}
		if !smg.SingletonRange(10, 8).UDiv(smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 1})).IsFull() {
			t.Fatal("expected full range for possible zero divisor")
		}
	})
	t.Run("URem", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 100}).URem(smg.SingletonRange(10, 8))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 9}}); diff != "" {
			t.Fatal(diff)
		}
		r = smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 3}).URem(smg.SingletonRange(10, 8))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 3}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("And", func(t *testing.T) {
		r := smg.FullRange(64).And(smg.SingletonRange(5, 64))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 0, Hi: 5}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Not", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 0, Hi: 10}).Not()
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 245, Hi: 255}}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Shift", func(t *testing.T) {
		r := smg.NewRangeSet(8, smg.Interval{Lo: 16, Hi: 32}).LShr(smg.SingletonRange(2, 8))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 4, Hi: 8}}); diff != "" {
			t.Fatal(diff)
		}
		r = smg.NewRangeSet(8, smg.Interval{Lo: 1, Hi: 3}).Shl(smg.SingletonRange(2, 8))
		if diff := cmp.Diff(r.Intervals, []smg.Interval{{Lo: 4, Hi: 12}}); diff != "" {
			t.Fatal(diff)
		}
		if !smg.SingletonRange(1, 8).Shl(smg.FullRange(8)).IsFull() {
			t.Fatal("expected full range for symbolic shift")
		}
	})
}
