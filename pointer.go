package smg

import "fmt"

// PointerKind classifies the result of resolving an address.
type PointerKind int

const (
	// PointerTarget is an address computed from a known object's base.
	// Its offset may lie outside the object.
	PointerTarget PointerKind = iota

	// PointerNull is the constant address zero.
	PointerNull

	// PointerUnknown is an address with no object base, such as an
	// opaque pointer read from outside the analyzed code.
	PointerUnknown

	// PointerInvalid is a constant address that lies in no object,
	// such as an error code cast to a pointer.
	PointerInvalid
)

// String returns the string representation of the kind.
func (k PointerKind) String() string {
	switch k {
	case PointerTarget:
		return "target"
	case PointerNull:
		return "null"
	case PointerUnknown:
		return "unknown"
	case PointerInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("PointerKind<%d>", int(k))
	}
}

// PointerValue is a resolved address: an object and a byte offset into it,
// or one of the sentinel kinds.
type PointerValue struct {
	Kind   PointerKind
	Object *Object
	Offset Expr // pointer width, set for PointerTarget
	Addr   Expr
}

// String returns the string representation of the pointer.
func (p PointerValue) String() string {
	if p.Kind == PointerTarget {
		return fmt.Sprintf("&%s#%d+%s", p.Object.Label, p.Object.ID, p.Offset)
	}
	return fmt.Sprintf("%s(%s)", p.Kind, p.Addr)
}

// Resolve decomposes addr into its target object and offset. The object is
// the one whose base the address was computed from, whatever the offset: an
// offset past the end or before the start stays an offset into that object.
func (g *Graph) Resolve(addr Expr) PointerValue {
	assert(ExprWidth(addr) == WidthPtr, "resolve: address width %d", ExprWidth(addr))

	base, offset, ok := splitAddr(addr)
	if !ok {
		if c, ok := addr.(*ConstantExpr); ok {
			if c.Value == 0 {
				return PointerValue{Kind: PointerNull, Addr: addr}
			}
			return PointerValue{Kind: PointerInvalid, Addr: addr}
		}
		return PointerValue{Kind: PointerUnknown, Addr: addr}
	}

	obj := g.Object(base.Object)
	if obj == nil {
		return PointerValue{Kind: PointerInvalid, Addr: addr}
	}
	return PointerValue{Kind: PointerTarget, Object: obj, Offset: offset, Addr: addr}
}

// splitAddr separates the object base of addr from its byte offset. Sums
// are decomposed with the base on either side, differences only with the
// base on the left. Any other use of a base address, or more than one base,
// is not a pointer into an object.
func splitAddr(addr Expr) (base *AddressExpr, offset Expr, ok bool) {
	switch addr := addr.(type) {
	case *AddressExpr:
		return addr, NewConstantExpr64(0), true
	case *BinaryExpr:
		switch addr.Op {
		case ADD:
			if base, off, ok := splitAddr(addr.RHS); ok && !hasAddress(addr.LHS) {
				return base, NewBinaryExpr(ADD, addr.LHS, off), true
			} else if base, off, ok := splitAddr(addr.LHS); ok && !hasAddress(addr.RHS) {
				return base, NewBinaryExpr(ADD, off, addr.RHS), true
			}
		case SUB:
			if base, off, ok := splitAddr(addr.LHS); ok && !hasAddress(addr.RHS) {
				return base, NewBinaryExpr(SUB, off, addr.RHS), true
			}
		}
	}
	return nil, nil, false
}

// hasAddress returns true if an object base address occurs in expr.
func hasAddress(expr Expr) bool {
	v := &hasAddressVisitor{}
	WalkExpr(v, expr)
	return v.found
}

type hasAddressVisitor struct {
	found bool
}

func (v *hasAddressVisitor) Visit(expr Expr) (Expr, ExprVisitor) {
	if _, ok := expr.(*AddressExpr); ok {
		v.found = true
	}
	if v.found {
		return expr, nil
	}
	return expr, v
}

// PointerAdd returns addr advanced by delta bytes. It never fails: the
// result is classified on dereference.
func PointerAdd(addr, delta Expr) Expr {
	switch w := ExprWidth(delta); {
	case w < WidthPtr:
		delta = NewCastExpr(delta, WidthPtr, true)
	case w > WidthPtr:
		delta = NewExtractExpr(delta, 0, WidthPtr)
	}
	return NewBinaryExpr(ADD, addr, delta)
}
