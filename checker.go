package smg

import (
	"fmt"

	"go.uber.org/zap"
)

// AccessResult classifies a memory access or deallocation.
type AccessResult int

const (
	Safe AccessResult = iota
	Unsafe
	MaybeUnsafe
)

// String returns the string representation of the result.
func (r AccessResult) String() string {
	switch r {
	case Safe:
		return "safe"
	case Unsafe:
		return "unsafe"
	case MaybeUnsafe:
		return "maybe-unsafe"
	default:
		return fmt.Sprintf("AccessResult<%d>", int(r))
	}
}

// Access is the classification of one memory operation.
type Access struct {
	Result  AccessResult
	Kind    ViolationKind // set unless Safe
	Pointer PointerValue
	Message string

	// Condition under which the operation is safe. Set for MaybeUnsafe.
	Cond Expr
}

// Checker classifies memory operations against a state.
type Checker struct {
	Logger *zap.Logger
}

// NewChecker returns a new instance of Checker.
func NewChecker() *Checker {
	return &Checker{Logger: zap.NewNop()}
}

// CheckAccess classifies a read or write of size bytes at addr.
func (c *Checker) CheckAccess(s *State, addr Expr, size uint64) Access {
	return c.CheckRange(s, addr, NewConstantExpr64(size))
}

// CheckRange classifies an access of a possibly symbolic number of bytes
// at addr, such as the destination of memset.
func (c *Checker) CheckRange(s *State, addr Expr, size Expr) Access {
	p := s.graph.Resolve(addr)
	switch p.Kind {
	case PointerNull:
		return Access{Result: Unsafe, Kind: ViolationNullDeref, Pointer: p, Message: "dereference of NULL"}

	case PointerInvalid:
		return Access{Result: Unsafe, Kind: ViolationOutOfBounds, Pointer: p, Message: fmt.Sprintf("address %s is outside any object", addr)}

	case PointerUnknown:
		cond := NewNotZeroExpr(addr)
		switch s.store.Truth(cond) {
		case TruthTrue:
			return Access{Result: Safe, Pointer: p}
		case TruthFalse:
			return Access{Result: Unsafe, Kind: ViolationNullDeref, Pointer: p, Message: "dereference of NULL"}
		default:
			return Access{Result: MaybeUnsafe, Kind: ViolationNullDeref, Pointer: p, Message: fmt.Sprintf("dereference of possibly NULL %s", addr), Cond: cond}
		}
	}

	obj := p.Object
	switch obj.Validity {
	case Freed:
		return Access{Result: Unsafe, Kind: ViolationUseAfterFree, Pointer: p, Message: fmt.Sprintf("access to freed object %s", obj.Label)}
	case Invalid:
		return Access{Result: Unsafe, Kind: ViolationUseAfterFree, Pointer: p, Message: fmt.Sprintf("stack object %s out of scope", obj.Label)}
	}

	cond := boundsCond(p.Offset, obj.Size, size)
	switch s.store.Truth(cond) {
	case TruthTrue:
		return Access{Result: Safe, Pointer: p}
	case TruthFalse:
		return Access{Result: Unsafe, Kind: ViolationOutOfBounds, Pointer: p, Message: c.boundsMessage(p, size)}
	default:
		return Access{Result: MaybeUnsafe, Kind: ViolationOutOfBounds, Pointer: p, Message: c.boundsMessage(p, size), Cond: cond}
	}
}

func (c *Checker) boundsMessage(p PointerValue, size Expr) string {
	return fmt.Sprintf("%s byte access at offset %s of %s (size %s)", size, p.Offset, p.Object.Label, p.Object.Size)
}

// boundsCond returns the condition that [off, off+w) lies within size.
func boundsCond(off, size, w Expr) Expr {
	return NewBinaryExpr(AND,
		NewBinaryExpr(ULE, w, size),
		NewBinaryExpr(ULE, off, NewBinaryExpr(SUB, size, w)),
	)
}

// CheckFree classifies a deallocation of addr. A Safe result with a null or
// unknown pointer means the call has no effect.
func (c *Checker) CheckFree(s *State, addr Expr) Access {
	p := s.graph.Resolve(addr)
	switch p.Kind {
	case PointerNull:
		return Access{Result: Safe, Pointer: p}
	case PointerUnknown:
		c.Logger.Debug("free of unknown pointer ignored", zap.Stringer("addr", addr), zap.String("loc", s.Location()))
		return Access{Result: Safe, Pointer: p}
	case PointerInvalid:
		return Access{Result: Unsafe, Kind: ViolationInvalidFree, Pointer: p, Message: fmt.Sprintf("free of address %s outside any object", addr)}
	}

	obj := p.Object
	if obj.Kind != ObjectHeap {
		return Access{Result: Unsafe, Kind: ViolationInvalidFree, Pointer: p, Message: fmt.Sprintf("free of %s object %s", obj.Kind, obj.Label)}
	} else if obj.Validity == Freed {
		return Access{Result: Unsafe, Kind: ViolationDoubleFree, Pointer: p, Message: fmt.Sprintf("double free of %s", obj.Label)}
	}

	cond := NewIsZeroExpr(p.Offset)
	switch s.store.Truth(cond) {
	case TruthTrue:
		return Access{Result: Safe, Pointer: p}
	case TruthFalse:
		return Access{Result: Unsafe, Kind: ViolationInvalidFree, Pointer: p, Message: fmt.Sprintf("free of %s at offset %s", obj.Label, p.Offset)}
	default:
		return Access{Result: MaybeUnsafe, Kind: ViolationInvalidFree, Pointer: p, Message: fmt.Sprintf("free of %s at offset %s", obj.Label, p.Offset), Cond: cond}
	}
}

// CheckLeaks returns the heap objects of s unreachable from roots.
func (c *Checker) CheckLeaks(s *State, roots []Expr) []*Object {
	return s.graph.Leaks(roots)
}

// Violation returns a violation of the given kind at the state's location.
func (c *Checker) Violation(s *State, kind ViolationKind, obj *Object, msg string) *Violation {
	v := &Violation{
		Kind:     kind,
		Location: s.Location(),
		Position: s.Position(),
		Message:  msg,
		Object:   obj,
		State:    s,
		Witness:  c.witness(s),
	}
	c.Logger.Info("violation", zap.String("kind", string(kind)), zap.String("loc", v.Location), zap.String("msg", msg))
	return v
}

func (c *Checker) witness(s *State) Witness {
	w := Witness{Path: s.Trail(), Values: make(map[string]string)}

	syms := FindSymbols(s.store.Constraints()...)
	if values, ok := s.store.Model(syms); ok {
		for i, sym := range syms {
			w.Values[sym.String()] = fmt.Sprint(values[i])
		}
		return w
	}
	for _, sym := range syms {
		if r := s.store.Range(sym); !r.IsFull() {
			w.Values[sym.String()] = r.String()
		}
	}
	return w
}
