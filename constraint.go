package smg

import (
	"bytes"
	"fmt"

	"github.com/benbjohnson/immutable"
)

// Truth is the three-valued outcome of evaluating a condition against a store.
type Truth int

const (
	TruthUnknown Truth = iota
	TruthTrue
	TruthFalse
)

// String returns the string representation of the truth value.
func (t Truth) String() string {
	switch t {
	case TruthTrue:
		return "true"
	case TruthFalse:
		return "false"
	default:
		return "unknown"
	}
}

// AssumeResult describes the effect of adding a condition to a store.
type AssumeResult int

const (
	// Unchanged means the condition already held on every value in the store.
	Unchanged AssumeResult = iota

	// Narrowed means the condition was recorded and ranges may have shrunk.
	Narrowed

	// Infeasible means no value satisfies the store and the condition.
	Infeasible
)

// String returns the string representation of the result.
func (r AssumeResult) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Narrowed:
		return "narrowed"
	case Infeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("AssumeResult<%d>", int(r))
	}
}

// ConstraintStore tracks the feasible values of symbolic terms.
//
// Each tracked term (a symbol, or a compound expression such as a cast of a
// symbol) maps to a RangeSet. Equalities between symbols are kept in a
// union-find so that joined symbols share one range. Every assumed condition
// is also kept so that an optional Solver can discharge what ranges cannot.
//
// A store is immutable: Assume returns a new store sharing structure with
// the receiver, so forked states never observe each other's narrowing.
type ConstraintStore struct {
	terms       *immutable.SortedMap // Expr -> RangeSet
	parent      *immutable.Map       // symbol id -> *SymbolExpr
	constraints *immutable.List      // Expr

	solver Solver
}

// NewConstraintStore returns an empty store. The solver is optional.
func NewConstraintStore(solver Solver) *ConstraintStore {
	return &ConstraintStore{
		terms:       immutable.NewSortedMap(&exprComparer{}),
		parent:      immutable.NewMap(&uint64Hasher{}),
		constraints: immutable.NewList(),
		solver:      solver,
	}
}

func (cs *ConstraintStore) clone() *ConstraintStore {
	other := *cs
	return &other
}

// Constraints returns the conditions assumed so far, in order.
func (cs *ConstraintStore) Constraints() []Expr {
	a := make([]Expr, cs.constraints.Len())
	for i := range a {
		a[i] = cs.constraints.Get(i).(Expr)
	}
	return a
}

// Find returns the representative of sym's equality class.
func (cs *ConstraintStore) Find(sym *SymbolExpr) *SymbolExpr {
	for {
		v, ok := cs.parent.Get(sym.ID)
		if !ok {
			return sym
		}
		sym = v.(*SymbolExpr)
	}
}

// union joins the equality classes of a & b, intersecting their ranges.
func (cs *ConstraintStore) union(a, b *SymbolExpr) (*ConstraintStore, bool) {
	ra, rb := cs.Find(a), cs.Find(b)
	if ra.ID == rb.ID {
		return cs, true
	}
	r := cs.Range(ra).Intersect(cs.Range(rb))
	if r.IsEmpty() {
		return nil, false
	}
	if rb.ID < ra.ID {
		ra, rb = rb, ra
	}

	other := cs.clone()
	other.parent = cs.parent.Set(rb.ID, ra)
	other.terms = cs.terms.Delete(rb)
	return other.setRange(ra, r), true
}

// lookup returns the recorded range of a term, if any.
func (cs *ConstraintStore) lookup(e Expr) (RangeSet, bool) {
	if sym, ok := e.(*SymbolExpr); ok {
		e = cs.Find(sym)
	}
	v, ok := cs.terms.Get(e)
	if !ok {
		return RangeSet{}, false
	}
	return v.(RangeSet), true
}

// setRange returns a store recording r as the range of e.
func (cs *ConstraintStore) setRange(e Expr, r RangeSet) *ConstraintStore {
	switch x := e.(type) {
	case *ConstantExpr, *AddressExpr:
		return cs
	case *SymbolExpr:
		e = cs.Find(x)
	}
	if r.IsFull() {
		if _, ok := cs.terms.Get(e); !ok {
			return cs
		}
	}
	other := cs.clone()
	other.terms = cs.terms.Set(e, r)
	return other
}

// Range returns the set of values e may hold under the store's facts.
func (cs *ConstraintStore) Range(e Expr) RangeSet {
	r := cs.compute(e)
	if stored, ok := cs.lookup(e); ok {
		r = r.Intersect(stored)
	}
	return r
}

func (cs *ConstraintStore) compute(e Expr) RangeSet {
	switch e := e.(type) {
	case *ConstantExpr:
		return SingletonRange(e.Value, e.Width)

	case *SymbolExpr:
		return FullRange(e.Width)

	case *AddressExpr:
		return SingletonRange(e.Value(), WidthPtr)

	case *CastExpr:
		src := cs.Range(e.Src)
		if e.Signed {
			return src.SExt(e.Width)
		}
		return src.ZExt(e.Width)

	case *ExtractExpr:
		src := cs.Range(e.Expr)
		if e.Offset > 0 {
			src = src.LShr(SingletonRange(uint64(e.Offset), src.Width))
		}
		return src.Truncate(e.Width)

	case *ConcatExpr:
		w, lw := ExprWidth(e), ExprWidth(e.LSB)
		msb := cs.Range(e.MSB).ZExt(w).Shl(SingletonRange(uint64(lw), w))
		return msb.Add(cs.Range(e.LSB).ZExt(w))

	case *NotExpr:
		return cs.Range(e.Expr).Not()

	case *BinaryExpr:
		lhs, rhs := cs.Range(e.LHS), cs.Range(e.RHS)
		if lhs.IsEmpty() || rhs.IsEmpty() {
			return EmptyRange(ExprWidth(e))
		}
		if e.Op.IsCompare() {
			return compareRange(e.Op, lhs, rhs)
		}

		// Fold exactly when both operands are known.
		if l, ok := lhs.Singleton(); ok {
			if r, ok := rhs.Singleton(); ok {
				if c, ok := NewBinaryExpr(e.Op, NewConstantExpr(l, lhs.Width), NewConstantExpr(r, rhs.Width)).(*ConstantExpr); ok {
					return SingletonRange(c.Value, c.Width)
				}
			}
		}
		return arithmeticRange(e.Op, lhs, rhs)

	default:
		panic(fmt.Sprintf("unexpected expression: %T", e))
	}
}

func arithmeticRange(op BinaryOp, lhs, rhs RangeSet) RangeSet {
	switch op {
	case ADD:
		return lhs.Add(rhs)
	case SUB:
		return lhs.Sub(rhs)
	case MUL:
		return lhs.Mul(rhs)
	case UDIV:
		return lhs.UDiv(rhs)
	case UREM:
		return lhs.URem(rhs)
	case SDIV, SREM:
		if lhs.IsNonNegative() && rhs.IsNonNegative() {
			if op == SDIV {
				return lhs.UDiv(rhs)
			}
			return lhs.URem(rhs)
		}
		return FullRange(lhs.Width)
	case AND:
		return lhs.And(rhs)
	case OR:
		return lhs.Or(rhs)
	case XOR:
		return lhs.Xor(rhs)
	case SHL:
		return lhs.Shl(rhs)
	case LSHR:
		return lhs.LShr(rhs)
	case ASHR:
		return lhs.AShr(rhs)
	default:
		panic(fmt.Sprintf("unexpected arithmetic op: %s", op))
	}
}

// compareRange returns the boolean range of comparing values from lhs & rhs.
func compareRange(op BinaryOp, lhs, rhs RangeSet) RangeSet {
	var t Truth
	switch op {
	case EQ:
		if l, ok := lhs.Singleton(); ok {
			if r, ok := rhs.Singleton(); ok && l == r {
				t = TruthTrue
				break
			}
		}
		if lhs.Intersect(rhs).IsEmpty() {
			t = TruthFalse
		}
	case ULT:
		if lhs.Max() < rhs.Min() {
			t = TruthTrue
		} else if lhs.Min() >= rhs.Max() {
			t = TruthFalse
		}
	case ULE:
		if lhs.Max() <= rhs.Min() {
			t = TruthTrue
		} else if lhs.Min() > rhs.Max() {
			t = TruthFalse
		}
	case SLT:
		if lhs.SignedMax() < rhs.SignedMin() {
			t = TruthTrue
		} else if lhs.SignedMin() >= rhs.SignedMax() {
			t = TruthFalse
		}
	case SLE:
		if lhs.SignedMax() <= rhs.SignedMin() {
			t = TruthTrue
		} else if lhs.SignedMin() > rhs.SignedMax() {
			t = TruthFalse
		}
	default:
		panic(fmt.Sprintf("unexpected compare op: %s", op))
	}

	switch t {
	case TruthTrue:
		return SingletonRange(1, WidthBool)
	case TruthFalse:
		return SingletonRange(0, WidthBool)
	default:
		return FullRange(WidthBool)
	}
}

// Truth evaluates a boolean condition against the store.
func (cs *ConstraintStore) Truth(cond Expr) Truth {
	assert(ExprWidth(cond) == WidthBool, "truth of non-boolean width %d", ExprWidth(cond))
	r := cs.Range(cond)
	if v, ok := r.Singleton(); ok {
		if v == 1 {
			return TruthTrue
		}
		return TruthFalse
	} else if r.IsEmpty() {
		return TruthFalse
	}
	return TruthUnknown
}

// Assume returns a store in which cond holds. The returned store is nil
// when the result is Infeasible.
func (cs *ConstraintStore) Assume(cond Expr) (*ConstraintStore, AssumeResult) {
	switch cs.Truth(cond) {
	case TruthTrue:
		return cs, Unchanged
	case TruthFalse:
		return nil, Infeasible
	}

	other, ok := cs.restrict(cond, SingletonRange(1, WidthBool))
	if !ok {
		return nil, Infeasible
	}
	if other == cs {
		other = cs.clone()
	}
	other.constraints = other.constraints.Append(cond)

	// Fall back to the solver for facts that ranges cannot express.
	if other.solver != nil {
		if sat, _, err := other.solver.Solve(other.Constraints(), nil); err == nil && !sat {
			return nil, Infeasible
		}
	}
	return other, Narrowed
}

// Model returns a satisfying assignment for syms, if a solver is configured.
func (cs *ConstraintStore) Model(syms []*SymbolExpr) ([]uint64, bool) {
	if cs.solver == nil || len(syms) == 0 {
		return nil, false
	}
	sat, values, err := cs.solver.Solve(cs.Constraints(), syms)
	if err != nil || !sat {
		return nil, false
	}
	return values, true
}

// restrict returns a store in which term only takes values from set.
// Returns false if that leaves no feasible value.
func (cs *ConstraintStore) restrict(term Expr, set RangeSet) (*ConstraintStore, bool) {
	cur := cs.Range(term)
	next := cur.Intersect(set)
	if next.IsEmpty() {
		return nil, false
	} else if next.Equal(cur) && ExprWidth(term) != WidthBool {
		return cs, true
	}
	cs = cs.setRange(term, next)

	switch term := term.(type) {
	case *CastExpr:
		sw := ExprWidth(term.Src)
		if term.Signed {
			return cs.restrict(term.Src, sextPreimage(next, sw))
		}
		return cs.restrict(term.Src, NewRangeSet(sw, next.Intervals...))

	case *ExtractExpr:
		// Only lift into the operand when truncation is injective on its
		// current range; otherwise the fact stays on the truncated term.
		if term.Offset != 0 {
			return cs, true
		}
		src := cs.Range(term.Expr)
		if src.IsEmpty() {
			return nil, false
		}
		k := src.Min() >> term.Width
		if src.Max()>>term.Width != k || term.Width >= Width64 {
			return cs, true
		}
		base := k << term.Width
		lifted := make([]Interval, len(next.Intervals))
		for i, iv := range next.Intervals {
			lifted[i] = Interval{base + iv.Lo, base + iv.Hi}
		}
		return cs.restrict(term.Expr, NewRangeSet(src.Width, lifted...))

	case *NotExpr:
		return cs.restrict(term.Expr, next.Not())

	case *BinaryExpr:
		if term.Op.IsCompare() {
			if v, ok := next.Singleton(); ok {
				return cs.narrowCompare(term.Op, term.LHS, term.RHS, v == 1)
			}
			return cs, true
		}
		return cs.restrictArithmetic(term, next)
	}
	return cs, true
}

func (cs *ConstraintStore) restrictArithmetic(term *BinaryExpr, set RangeSet) (*ConstraintStore, bool) {
	switch term.Op {
	case ADD:
		if c, ok := term.LHS.(*ConstantExpr); ok {
			return cs.restrict(term.RHS, set.Sub(SingletonRange(c.Value, c.Width)))
		}
	case SUB:
		if c, ok := term.LHS.(*ConstantExpr); ok {
			return cs.restrict(term.RHS, SingletonRange(c.Value, c.Width).Sub(set))
		}
	case AND:
		if ExprWidth(term) != WidthBool {
			break
		}
		if v, ok := set.Singleton(); ok && v == 1 {
			other, ok := cs.restrict(term.LHS, set)
			if !ok {
				return nil, false
			}
			return other.restrict(term.RHS, set)
		} else if ok && v == 0 {
			return cs.restrictEither(term.LHS, term.RHS, set)
		}
	case OR:
		if ExprWidth(term) != WidthBool {
			break
		}
		if v, ok := set.Singleton(); ok && v == 0 {
			other, ok := cs.restrict(term.LHS, set)
			if !ok {
				return nil, false
			}
			return other.restrict(term.RHS, set)
		} else if ok && v == 1 {
			return cs.restrictEither(term.LHS, term.RHS, set)
		}
	case XOR:
		if ExprWidth(term) != WidthBool {
			break
		}
		if c, ok := term.LHS.(*ConstantExpr); ok {
			v, _ := set.Singleton()
			return cs.restrict(term.RHS, SingletonRange(v^c.Value, WidthBool))
		}
	}
	return cs, true
}

// restrictEither handles a disjunction: if one side cannot take a value in
// set, the other side must.
func (cs *ConstraintStore) restrictEither(a, b Expr, set RangeSet) (*ConstraintStore, bool) {
	_, aok := cs.restrict(a, set)
	_, bok := cs.restrict(b, set)
	switch {
	case !aok && !bok:
		return nil, false
	case !aok:
		return cs.restrict(b, set)
	case !bok:
		return cs.restrict(a, set)
	}
	return cs, true
}

// narrowCompare restricts both operands of lhs op rhs, or of its negation.
func (cs *ConstraintStore) narrowCompare(op BinaryOp, lhs, rhs Expr, holds bool) (*ConstraintStore, bool) {
	if !holds {
		switch op {
		case EQ:
			op = NE
		case ULT: // !(l < r) => r <= l
			op, lhs, rhs = ULE, rhs, lhs
		case ULE: // !(l <= r) => r < l
			op, lhs, rhs = ULT, rhs, lhs
		case SLT:
			op, lhs, rhs = SLE, rhs, lhs
		case SLE:
			op, lhs, rhs = SLT, rhs, lhs
		}
	}

	w := ExprWidth(lhs)
	max := bitmask(w)
	minSigned, maxSigned := signExtend(uint64(1)<<(w-1), w), int64(bitmask(w-1))

	lr, rr := cs.Range(lhs), cs.Range(rhs)
	if lr.IsEmpty() || rr.IsEmpty() {
		return nil, false
	}

	var lset, rset RangeSet
	switch op {
	case EQ:
		if a, ok := lhs.(*SymbolExpr); ok {
			if b, ok := rhs.(*SymbolExpr); ok {
				return cs.union(a, b)
			}
		}
		lset, rset = rr, lr
	case NE:
		lset, rset = FullRange(w), FullRange(w)
		if v, ok := rr.Singleton(); ok {
			lset = SingletonRange(v, w).Complement()
		}
		if v, ok := lr.Singleton(); ok {
			rset = SingletonRange(v, w).Complement()
		}
	case ULT:
		if rr.Max() == 0 || lr.Min() == max {
			return nil, false
		}
		lset = NewRangeSet(w, Interval{0, rr.Max() - 1})
		rset = NewRangeSet(w, Interval{lr.Min() + 1, max})
	case ULE:
		lset = NewRangeSet(w, Interval{0, rr.Max()})
		rset = NewRangeSet(w, Interval{lr.Min(), max})
	case SLT:
		if rr.SignedMax() == minSigned || lr.SignedMin() == maxSigned {
			return nil, false
		}
		lset = SignedRange(minSigned, rr.SignedMax()-1, w)
		rset = SignedRange(lr.SignedMin()+1, maxSigned, w)
	case SLE:
		lset = SignedRange(minSigned, rr.SignedMax(), w)
		rset = SignedRange(lr.SignedMin(), maxSigned, w)
	default:
		return cs, true
	}

	other, ok := cs.restrict(lhs, lset)
	if !ok {
		return nil, false
	}
	if op == EQ {
		rset = other.Range(lhs)
	}
	return other.restrict(rhs, rset)
}

// sextPreimage maps a set of sign-extended values back to the source width.
// Values that no source value extends to are dropped.
func sextPreimage(r RangeSet, sw uint) RangeSet {
	half := uint64(1) << (sw - 1)
	shift := bitmask(r.Width) - bitmask(sw)
	low := NewRangeSet(r.Width, Interval{0, half - 1})
	high := NewRangeSet(r.Width, Interval{half + shift, bitmask(r.Width)})

	var a []Interval
	a = append(a, r.Intersect(low).Intervals...)
	for _, iv := range r.Intersect(high).Intervals {
		a = append(a, Interval{iv.Lo - shift, iv.Hi - shift})
	}
	return NewRangeSet(sw, a...)
}

// Equal returns true if both stores record the same facts.
func (cs *ConstraintStore) Equal(other *ConstraintStore) bool {
	if cs.terms.Len() != other.terms.Len() || cs.parent.Len() != other.parent.Len() || cs.constraints.Len() != other.constraints.Len() {
		return false
	}

	a, b := cs.terms.Iterator(), other.terms.Iterator()
	for !a.Done() {
		ak, av := a.Next()
		bk, bv := b.Next()
		if CompareExpr(ak.(Expr), bk.(Expr)) != 0 || !av.(RangeSet).Equal(bv.(RangeSet)) {
			return false
		}
	}

	itr := cs.parent.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		ov, ok := other.parent.Get(k)
		if !ok || ov.(*SymbolExpr).ID != v.(*SymbolExpr).ID {
			return false
		}
	}

	for i := 0; i < cs.constraints.Len(); i++ {
		if CompareExpr(cs.constraints.Get(i).(Expr), other.constraints.Get(i).(Expr)) != 0 {
			return false
		}
	}
	return true
}

// Dump returns a text listing of every tracked term and its range.
func (cs *ConstraintStore) Dump() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "== CONSTRAINTS")
	itr := cs.terms.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		fmt.Fprintf(&buf, "%s ∈ %s\n", k, v)
	}
	fmt.Fprintln(&buf, "")
	return buf.String()
}

// exprComparer orders expressions for use as sorted map keys.
type exprComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b. Panic if a or b is not an Expr.
func (c *exprComparer) Compare(a, b interface{}) int {
	return CompareExpr(a.(Expr), b.(Expr))
}

// uint64Hasher hashes symbol ids for immutable maps.
type uint64Hasher struct{}

// Hash returns a 32-bit hash of key. Panic if key is not a uint64.
func (h *uint64Hasher) Hash(key interface{}) uint32 {
	v := key.(uint64)
	return uint32(v ^ (v >> 32))
}

// Equal returns true if a and b are the same uint64.
func (h *uint64Hasher) Equal(a, b interface{}) bool {
	return a.(uint64) == b.(uint64)
}
