package smg

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
)

// maxIntervals is the number of disjoint intervals a RangeSet keeps before
// the closest intervals are joined.
const maxIntervals = 16

// Interval is a closed range [Lo, Hi] of unsigned values.
type Interval struct {
	Lo, Hi uint64
}

// RangeSet is the set of values a bit vector of Width bits may hold,
// represented as sorted, disjoint, non-adjacent intervals over the unsigned
// interpretation of its bits. Signed views are derived by splitting at 2^(W-1).
//
// RangeSet values are immutable.
type RangeSet struct {
	Width     uint
	Intervals []Interval
}

// NewRangeSet returns a normalized set of the given intervals.
// Intervals with Lo > Hi are dropped.
func NewRangeSet(width uint, intervals ...Interval) RangeSet {
	max := bitmask(width)
	a := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Lo > iv.Hi || iv.Lo > max {
			continue
		}
		if iv.Hi > max {
			iv.Hi = max
		}
		a = append(a, iv)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Lo < a[j].Lo })

	// Merge overlapping and adjacent intervals.
	out := a[:0]
	for _, iv := range a {
		if n := len(out); n > 0 && (out[n-1].Hi == max || iv.Lo <= out[n-1].Hi+1) {
			if iv.Hi > out[n-1].Hi {
				out[n-1].Hi = iv.Hi
			}
			continue
		}
		out = append(out, iv)
	}

	// Join the closest neighbours until the set is small enough.
	for len(out) > maxIntervals {
		best := 0
		for i := 1; i < len(out)-1; i++ {
			if out[i+1].Lo-out[i].Hi < out[best+1].Lo-out[best].Hi {
				best = i
			}
		}
		out[best].Hi = out[best+1].Hi
		out = append(out[:best+1], out[best+2:]...)
	}

	return RangeSet{Width: width, Intervals: out}
}

// FullRange returns the set of all values of the given width.
func FullRange(width uint) RangeSet {
	return RangeSet{Width: width, Intervals: []Interval{{0, bitmask(width)}}}
}

// EmptyRange returns the empty set of the given width.
func EmptyRange(width uint) RangeSet {
	return RangeSet{Width: width}
}

// SingletonRange returns the set containing only v.
func SingletonRange(v uint64, width uint) RangeSet {
	v &= bitmask(width)
	return RangeSet{Width: width, Intervals: []Interval{{v, v}}}
}

// SignedRange returns the set of values whose signed interpretation lies in [lo, hi].
func SignedRange(lo, hi int64, width uint) RangeSet {
	if lo > hi {
		return EmptyRange(width)
	}
	ulo, uhi := uint64(lo)&bitmask(width), uint64(hi)&bitmask(width)
	if (lo < 0) == (hi < 0) {
		return NewRangeSet(width, Interval{ulo, uhi})
	}
	return NewRangeSet(width, Interval{0, uhi}, Interval{ulo, bitmask(width)})
}

// String returns a compact representation, e.g. "[0,5]u32".
func (r RangeSet) String() string {
	var buf bytes.Buffer
	if len(r.Intervals) == 0 {
		buf.WriteString("{}")
	}
	for i, iv := range r.Intervals {
		if i > 0 {
			buf.WriteString("∪")
		}
		if iv.Lo == iv.Hi {
			fmt.Fprintf(&buf, "{%d}", iv.Lo)
		} else {
			fmt.Fprintf(&buf, "[%d,%d]", iv.Lo, iv.Hi)
		}
	}
	fmt.Fprintf(&buf, "u%d", r.Width)
	return buf.String()
}

// IsEmpty returns true if the set contains no values.
func (r RangeSet) IsEmpty() bool { return len(r.Intervals) == 0 }

// IsFull returns true if the set contains every value of its width.
func (r RangeSet) IsFull() bool {
	return len(r.Intervals) == 1 && r.Intervals[0].Lo == 0 && r.Intervals[0].Hi == bitmask(r.Width)
}

// Singleton returns the only value of the set, if it has exactly one.
func (r RangeSet) Singleton() (uint64, bool) {
	if len(r.Intervals) == 1 && r.Intervals[0].Lo == r.Intervals[0].Hi {
		return r.Intervals[0].Lo, true
	}
	return 0, false
}

// Min returns the smallest unsigned value. The set must not be empty.
func (r RangeSet) Min() uint64 {
	assert(!r.IsEmpty(), "min of empty range")
	return r.Intervals[0].Lo
}

// Max returns the largest unsigned value. The set must not be empty.
func (r RangeSet) Max() uint64 {
	assert(!r.IsEmpty(), "max of empty range")
	return r.Intervals[len(r.Intervals)-1].Hi
}

// SignedMin returns the smallest value under the signed interpretation.
func (r RangeSet) SignedMin() int64 {
	half := uint64(1) << (r.Width - 1)
	for _, iv := range r.Intervals {
		if iv.Hi >= half {
			if iv.Lo < half {
				return signExtend(half, r.Width)
			}
			return signExtend(iv.Lo, r.Width)
		}
	}
	return signExtend(r.Min(), r.Width)
}

// SignedMax returns the largest value under the signed interpretation.
func (r RangeSet) SignedMax() int64 {
	half := uint64(1) << (r.Width - 1)
	for i := len(r.Intervals) - 1; i >= 0; i-- {
		if iv := r.Intervals[i]; iv.Lo < half {
			if iv.Hi >= half {
				return signExtend(half-1, r.Width)
			}
			return signExtend(iv.Hi, r.Width)
		}
	}
	return signExtend(r.Max(), r.Width)
}

// Contains returns true if v is a member of the set.
func (r RangeSet) Contains(v uint64) bool {
	for _, iv := range r.Intervals {
		if v >= iv.Lo && v <= iv.Hi {
			return true
		}
	}
	return false
}

// Equal returns true if both sets contain the same values.
func (r RangeSet) Equal(other RangeSet) bool {
	if r.Width != other.Width || len(r.Intervals) != len(other.Intervals) {
		return false
	}
	for i := range r.Intervals {
		if r.Intervals[i] != other.Intervals[i] {
			return false
		}
	}
	return true
}

// SubsetOf returns true if every value of r is also in other.
func (r RangeSet) SubsetOf(other RangeSet) bool {
	return r.Intersect(other).Equal(r)
}

// Union returns the values in either set.
func (r RangeSet) Union(other RangeSet) RangeSet {
	assert(r.Width == other.Width, "union: width mismatch: %d != %d", r.Width, other.Width)
	a := make([]Interval, 0, len(r.Intervals)+len(other.Intervals))
	a = append(a, r.Intervals...)
	a = append(a, other.Intervals...)
	return NewRangeSet(r.Width, a...)
}

// Intersect returns the values in both sets.
func (r RangeSet) Intersect(other RangeSet) RangeSet {
	assert(r.Width == other.Width, "intersect: width mismatch: %d != %d", r.Width, other.Width)
	var a []Interval
	for i, j := 0, 0; i < len(r.Intervals) && j < len(other.Intervals); {
		x, y := r.Intervals[i], other.Intervals[j]
		lo, hi := maxUint64(x.Lo, y.Lo), minUint64(x.Hi, y.Hi)
		if lo <= hi {
			a = append(a, Interval{lo, hi})
		}
		if x.Hi < y.Hi {
			i++
		} else {
			j++
		}
	}
	return NewRangeSet(r.Width, a...)
}

// Complement returns the values not in the set.
func (r RangeSet) Complement() RangeSet {
	var a []Interval
	next := uint64(0)
	for _, iv := range r.Intervals {
		if iv.Lo > next {
			a = append(a, Interval{next, iv.Lo - 1})
		}
		if iv.Hi == bitmask(r.Width) {
			return NewRangeSet(r.Width, a...)
		}
		next = iv.Hi + 1
	}
	a = append(a, Interval{next, bitmask(r.Width)})
	return NewRangeSet(r.Width, a...)
}

// ZExt returns the set zero-extended to width.
func (r RangeSet) ZExt(width uint) RangeSet {
	assert(width >= r.Width, "zext: narrowing %d -> %d", r.Width, width)
	return NewRangeSet(width, r.Intervals...)
}

// SExt returns the set sign-extended to width. Values with the sign bit set
// move to the top of the wider range.
func (r RangeSet) SExt(width uint) RangeSet {
	assert(width >= r.Width, "sext: narrowing %d -> %d", r.Width, width)
	half := uint64(1) << (r.Width - 1)
	shift := bitmask(width) - bitmask(r.Width)
	var a []Interval
	for _, iv := range r.Intervals {
		if iv.Lo < half {
			a = append(a, Interval{iv.Lo, minUint64(iv.Hi, half-1)})
		}
		if iv.Hi >= half {
			a = append(a, Interval{maxUint64(iv.Lo, half) + shift, iv.Hi + shift})
		}
	}
	return NewRangeSet(width, a...)
}

// Truncate returns the set of the low width bits of every member, i.e. the
// values modulo 2^width. Bit patterns are kept; values are not clamped.
func (r RangeSet) Truncate(width uint) RangeSet {
	assert(width <= r.Width, "truncate: widening %d -> %d", r.Width, width)
	var a []Interval
	for _, iv := range r.Intervals {
		a = append(a, wrapInterval(new(big.Int).SetUint64(iv.Lo), new(big.Int).SetUint64(iv.Hi), width)...)
	}
	return NewRangeSet(width, a...)
}

// Shift returns the set with c added to every member, modulo 2^Width.
func (r RangeSet) Shift(c uint64) RangeSet {
	return r.Add(SingletonRange(c, r.Width))
}

// Add returns the set of sums modulo 2^Width.
func (r RangeSet) Add(other RangeSet) RangeSet {
	return r.combine(other, func(x, y Interval) (lo, hi *big.Int) {
		lo = new(big.Int).Add(bigUint(x.Lo), bigUint(y.Lo))
		hi = new(big.Int).Add(bigUint(x.Hi), bigUint(y.Hi))
		return lo, hi
	})
}

// Sub returns the set of differences modulo 2^Width.
func (r RangeSet) Sub(other RangeSet) RangeSet {
	return r.combine(other, func(x, y Interval) (lo, hi *big.Int) {
		lo = new(big.Int).Sub(bigUint(x.Lo), bigUint(y.Hi))
		hi = new(big.Int).Sub(bigUint(x.Hi), bigUint(y.Lo))
		return lo, hi
	})
}

// Mul returns a superset of the products modulo 2^Width.
func (r RangeSet) Mul(other RangeSet) RangeSet {
	return r.combine(other, func(x, y Interval) (lo, hi *big.Int) {
		lo = new(big.Int).Mul(bigUint(x.Lo), bigUint(y.Lo))
		hi = new(big.Int).Mul(bigUint(x.Hi), bigUint(y.Hi))
		return lo, hi
	})
}

// UDiv returns a superset of the unsigned quotients.
// Division by a possible zero yields the full range.
func (r RangeSet) UDiv(other RangeSet) RangeSet {
	if r.IsEmpty() || other.IsEmpty() {
		return EmptyRange(r.Width)
	} else if other.Min() == 0 {
		return FullRange(r.Width)
	}
	return NewRangeSet(r.Width, Interval{r.Min() / other.Max(), r.Max() / other.Min()})
}

// URem returns a superset of the unsigned remainders.
func (r RangeSet) URem(other RangeSet) RangeSet {
	if r.IsEmpty() || other.IsEmpty() {
		return EmptyRange(r.Width)
	} else if other.Min() == 0 {
		return FullRange(r.Width)
	} else if r.Max() < other.Min() {
		return r
	}
	return NewRangeSet(r.Width, Interval{0, minUint64(r.Max(), other.Max()-1)})
}

// And returns a superset of the bitwise AND. The result never exceeds
// either operand, so a constant mask clamps the range to [0, mask].
func (r RangeSet) And(other RangeSet) RangeSet {
	if r.IsEmpty() || other.IsEmpty() {
		return EmptyRange(r.Width)
	}
	return NewRangeSet(r.Width, Interval{0, minUint64(r.Max(), other.Max())})
}

// Or returns a superset of the bitwise OR.
func (r RangeSet) Or(other RangeSet) RangeSet {
	if r.IsEmpty() || other.IsEmpty() {
		return EmptyRange(r.Width)
	}
	return NewRangeSet(r.Width, Interval{maxUint64(r.Min(), other.Min()), fillOnes(maxUint64(r.Max(), other.Max()))})
}

// Xor returns a superset of the bitwise XOR.
func (r RangeSet) Xor(other RangeSet) RangeSet {
	if r.IsEmpty() || other.IsEmpty() {
		return EmptyRange(r.Width)
	}
	return NewRangeSet(r.Width, Interval{0, fillOnes(maxUint64(r.Max(), other.Max()))})
}

// Not returns the bitwise complement of every member.
func (r RangeSet) Not() RangeSet {
	max := bitmask(r.Width)
	a := make([]Interval, len(r.Intervals))
	for i, iv := range r.Intervals {
		a[i] = Interval{max - iv.Hi, max - iv.Lo}
	}
	return NewRangeSet(r.Width, a...)
}

// Shl returns a superset of the left shift by other bits.
func (r RangeSet) Shl(other RangeSet) RangeSet {
	if k, ok := other.Singleton(); ok && k < uint64(r.Width) {
		return r.Mul(SingletonRange(1<<k, r.Width))
	}
	return FullRange(r.Width)
}

// LShr returns a superset of the logical right shift by other bits.
func (r RangeSet) LShr(other RangeSet) RangeSet {
	if r.IsEmpty() || other.IsEmpty() {
		return EmptyRange(r.Width)
	}
	lo, hi := other.Min(), other.Max()
	if lo >= uint64(r.Width) {
		return SingletonRange(0, r.Width)
	}
	min := uint64(0)
	if hi < uint64(r.Width) {
		min = r.Min() >> hi
	}
	return NewRangeSet(r.Width, Interval{min, r.Max() >> lo})
}

// AShr returns a superset of the arithmetic right shift by other bits.
func (r RangeSet) AShr(other RangeSet) RangeSet {
	if r.IsNonNegative() {
		return r.LShr(other)
	}
	return FullRange(r.Width)
}

// IsNonNegative returns true if no member has its sign bit set.
func (r RangeSet) IsNonNegative() bool {
	return r.IsEmpty() || r.Max() < uint64(1)<<(r.Width-1)
}

func (r RangeSet) combine(other RangeSet, fn func(x, y Interval) (lo, hi *big.Int)) RangeSet {
	assert(r.Width == other.Width, "width mismatch: %d != %d", r.Width, other.Width)
	var a []Interval
	for _, x := range r.Intervals {
		for _, y := range other.Intervals {
			lo, hi := fn(x, y)
			a = append(a, wrapInterval(lo, hi, r.Width)...)
		}
	}
	return NewRangeSet(r.Width, a...)
}

// wrapInterval reduces the mathematical interval [lo, hi] modulo 2^width.
func wrapInterval(lo, hi *big.Int, width uint) []Interval {
	mod := new(big.Int).Lsh(big.NewInt(1), width)
	if span := new(big.Int).Sub(hi, lo); span.Cmp(new(big.Int).Sub(mod, big.NewInt(1))) >= 0 {
		return []Interval{{0, bitmask(width)}}
	}
	l := new(big.Int).Mod(lo, mod).Uint64()
	h := new(big.Int).Mod(hi, mod).Uint64()
	if l <= h {
		return []Interval{{l, h}}
	}
	return []Interval{{0, h}, {l, bitmask(width)}}
}

func bigUint(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// fillOnes returns v with every bit below its highest set bit set.
func fillOnes(v uint64) uint64 {
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
