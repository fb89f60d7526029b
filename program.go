package smg

import (
	"fmt"
	"go/token"
	"sort"
)

// Program is a lowered C translation unit.
type Program struct {
	Machine   MachineModel
	Types     map[string]*Type // "struct foo", "union bar", "enum baz"
	Typedefs  map[string]*Type
	Globals   []*Var
	Functions map[string]*Function
}

// NewProgram returns an empty program for the given machine model.
func NewProgram(m MachineModel) *Program {
	return &Program{
		Machine:   m,
		Types:     make(map[string]*Type),
		Typedefs:  make(map[string]*Type),
		Functions: make(map[string]*Function),
	}
}

// Function returns the named function, if defined.
func (p *Program) Function(name string) *Function {
	return p.Functions[name]
}

// FunctionNames returns the names of all functions in sorted order.
func (p *Program) FunctionNames() []string {
	a := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

// LookupType returns a type by C name: a builtin, a typedef or a tag.
func (p *Program) LookupType(name string) *Type {
	if t := BuiltinType(name); t != nil {
		return t
	} else if t := p.Typedefs[name]; t != nil {
		return t
	}
	return p.Types[name]
}

// Var is a global, parameter or local variable.
type Var struct {
	Name     string
	Type     *Type
	Init     Operand // globals only, zero when nil
	External bool    // extern global with opaque contents
	Position token.Position
}

// Function is a function definition. Body statements are addressed by index.
type Function struct {
	Name     string
	Params   []*Var
	Locals   []*Var
	Result   *Type
	Body     []Stmt
	Labels   map[string]int
	Position token.Position

	joins map[int]bool
}

// IsJoin returns true if the statement at pc is the target of a jump.
func (f *Function) IsJoin(pc int) bool {
	if f.joins == nil {
		f.joins = make(map[int]bool)
		for _, stmt := range f.Body {
			switch stmt := stmt.(type) {
			case *If:
				f.joins[stmt.Then] = true
				f.joins[stmt.Else] = true
			case *Goto:
				f.joins[stmt.Target] = true
			}
		}
	}
	return f.joins[pc]
}

// Stmt is a statement of a function body.
type Stmt interface {
	Pos() token.Position
	String() string
	stmt()
}

func (*Assign) stmt() {}
func (*Copy) stmt()   {}
func (*Call) stmt()   {}
func (*If) stmt()     {}
func (*Goto) stmt()   {}
func (*Return) stmt() {}

// At is the source position of a statement.
type At struct {
	Position token.Position
}

// Pos returns the source position.
func (a At) Pos() token.Position { return a.Position }

// Assign stores a scalar value.
type Assign struct {
	At
	Dst Place
	Src Operand
}

func (s *Assign) String() string { return fmt.Sprintf("%s = %s", s.Dst, s.Src) }

// Copy copies an aggregate value between places of the same type.
type Copy struct {
	At
	Dst Place
	Src Place
}

func (s *Copy) String() string { return fmt.Sprintf("%s = %s", s.Dst, s.Src) }

// Call invokes a function and optionally stores its result in Dst.
type Call struct {
	At
	Dst  Place
	Func string
	Args []Operand
}

func (s *Call) String() string {
	str := fmt.Sprintf("%s(%v)", s.Func, s.Args)
	if s.Dst != nil {
		str = fmt.Sprintf("%s = %s", s.Dst, str)
	}
	return str
}

// If branches to Then when Cond is nonzero, otherwise to Else.
type If struct {
	At
	Cond Operand
	Then int
	Else int
}

func (s *If) String() string { return fmt.Sprintf("if %s goto %d else %d", s.Cond, s.Then, s.Else) }

// Goto jumps to Target.
type Goto struct {
	At
	Target int
}

func (s *Goto) String() string { return fmt.Sprintf("goto %d", s.Target) }

// Return leaves the function with an optional value.
type Return struct {
	At
	Value Operand
}

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", s.Value)
}

// Place is an lvalue.
type Place interface {
	Type() *Type
	String() string
	place()
}

func (*VarPlace) place()   {}
func (*DerefPlace) place() {}
func (*FieldPlace) place() {}
func (*IndexPlace) place() {}

// VarPlace names a variable.
type VarPlace struct {
	Var *Var
}

func (p *VarPlace) Type() *Type    { return p.Var.Type }
func (p *VarPlace) String() string { return p.Var.Name }

// DerefPlace is the object a pointer points to.
type DerefPlace struct {
	Ptr Operand
}

func (p *DerefPlace) Type() *Type    { return p.Ptr.Type().Elem }
func (p *DerefPlace) String() string { return fmt.Sprintf("*(%s)", p.Ptr) }

// FieldPlace is a struct or union member.
type FieldPlace struct {
	Base  Place
	Field FieldLayout
}

func (p *FieldPlace) Type() *Type    { return p.Field.Type }
func (p *FieldPlace) String() string { return fmt.Sprintf("%s.%s", p.Base, p.Field.Name) }

// IndexPlace is an element of an array.
type IndexPlace struct {
	Base  Place
	Index Operand
}

func (p *IndexPlace) Type() *Type    { return p.Base.Type().Elem }
func (p *IndexPlace) String() string { return fmt.Sprintf("%s[%s]", p.Base, p.Index) }

// Operand is an rvalue.
type Operand interface {
	Type() *Type
	String() string
	operand()
}

func (*Const) operand()   {}
func (*Load) operand()    {}
func (*AddrOf) operand()  {}
func (*Unary) operand()   {}
func (*Binary) operand()  {}
func (*Cast) operand()    {}
func (*PtrAdd) operand()  {}
func (*Sizeof) operand()  {}
func (*FuncRef) operand() {}

// Const is an integer literal.
type Const struct {
	Value uint64
	T     *Type
}

func (o *Const) Type() *Type    { return o.T }
func (o *Const) String() string { return fmt.Sprint(o.Value) }

// Load reads the value at a place.
type Load struct {
	Place Place
}

func (o *Load) Type() *Type    { return o.Place.Type() }
func (o *Load) String() string { return o.Place.String() }

// AddrOf takes the address of a place.
type AddrOf struct {
	Place Place
}

func (o *AddrOf) Type() *Type    { return PointerTo(o.Place.Type()) }
func (o *AddrOf) String() string { return "&" + o.Place.String() }

// Unary applies "-", "~" or "!" in type T.
type Unary struct {
	Op string
	X  Operand
	T  *Type
}

func (o *Unary) Type() *Type    { return o.T }
func (o *Unary) String() string { return fmt.Sprintf("%s(%s)", o.Op, o.X) }

// Binary applies a C binary operator. Operands are converted to T before
// the operation. Comparisons compare in T and yield an int.
type Binary struct {
	Op string
	X  Operand
	Y  Operand
	T  *Type
}

// IsCompare returns true for relational and equality operators.
func (o *Binary) IsCompare() bool {
	switch o.Op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (o *Binary) Type() *Type {
	if o.IsCompare() {
		return Int
	}
	return o.T
}

func (o *Binary) String() string { return fmt.Sprintf("(%s %s %s)", o.X, o.Op, o.Y) }

// Cast converts X to type T.
type Cast struct {
	X Operand
	T *Type
}

func (o *Cast) Type() *Type    { return o.T }
func (o *Cast) String() string { return fmt.Sprintf("(%s)%s", o.T, o.X) }

// PtrAdd advances a pointer by Index elements of its pointee type.
type PtrAdd struct {
	Ptr   Operand
	Index Operand
	Scale uint64 // element size in bytes
}

func (o *PtrAdd) Type() *Type    { return o.Ptr.Type() }
func (o *PtrAdd) String() string { return fmt.Sprintf("(%s + %s)", o.Ptr, o.Index) }

// Sizeof is a compile-time size in bytes.
type Sizeof struct {
	Of   *Type
	Size uint64
}

func (o *Sizeof) Type() *Type    { return ULong }
func (o *Sizeof) String() string { return fmt.Sprintf("sizeof(%s)", o.Of) }

// FuncRef is the address of a function, only usable as a call argument
// or stored as an opaque value.
type FuncRef struct {
	Name string
}

func (o *FuncRef) Type() *Type    { return PointerTo(&Type{Kind: TypeFunc}) }
func (o *FuncRef) String() string { return o.Name }
