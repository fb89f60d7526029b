package smg

import (
	"fmt"
	"strings"
)

// TypeKind is the category of a C type.
type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeBool
	TypeChar
	TypeShort
	TypeInt
	TypeLong
	TypeLongLong
	TypeFloat
	TypeDouble
	TypeEnum
	TypePointer
	TypeArray
	TypeStruct
	TypeUnion
	TypeFunc
)

var typeKinds = [...]string{
	TypeVoid:     "void",
	TypeBool:     "_Bool",
	TypeChar:     "char",
	TypeShort:    "short",
	TypeInt:      "int",
	TypeLong:     "long",
	TypeLongLong: "long long",
	TypeFloat:    "float",
	TypeDouble:   "double",
	TypeEnum:     "enum",
	TypePointer:  "pointer",
	TypeArray:    "array",
	TypeStruct:   "struct",
	TypeUnion:    "union",
	TypeFunc:     "function",
}

// String returns the string representation of the kind.
func (k TypeKind) String() string {
	if int(k) < len(typeKinds) {
		return typeKinds[k]
	}
	return fmt.Sprintf("TypeKind<%d>", int(k))
}

// Type represents a C type.
type Type struct {
	Kind   TypeKind
	Name   string // tag for struct/union/enum
	Signed bool   // integer types

	Elem *Type  // pointer & array element
	Len  uint64 // array length, zero for GCC zero-length arrays

	// Struct & union members. A struct or union declared without a body
	// is incomplete.
	Fields   []*Field
	Complete bool

	Packed  bool
	Aligned uint64 // aligned(N) attribute, zero if absent
}

// Field is a struct or union member.
type Field struct {
	Name    string
	Type    *Type
	Bits    uint64 // bitfield width
	BitSet  bool   // true if declared as a bitfield, even of width 0
	Aligned uint64
}

// Predeclared types.
var (
	Void      = &Type{Kind: TypeVoid}
	Bool      = &Type{Kind: TypeBool}
	Char      = &Type{Kind: TypeChar, Signed: true}
	UChar     = &Type{Kind: TypeChar}
	Short     = &Type{Kind: TypeShort, Signed: true}
	UShort    = &Type{Kind: TypeShort}
	Int       = &Type{Kind: TypeInt, Signed: true}
	UInt      = &Type{Kind: TypeInt}
	Long      = &Type{Kind: TypeLong, Signed: true}
	ULong     = &Type{Kind: TypeLong}
	LongLong  = &Type{Kind: TypeLongLong, Signed: true}
	ULongLong = &Type{Kind: TypeLongLong}
	Float     = &Type{Kind: TypeFloat, Signed: true}
	Double    = &Type{Kind: TypeDouble, Signed: true}
)

// builtinTypes maps C type names to predeclared types.
var builtinTypes = map[string]*Type{
	"void":               Void,
	"_Bool":              Bool,
	"bool":               Bool,
	"char":               Char,
	"signed char":        Char,
	"unsigned char":      UChar,
	"short":              Short,
	"unsigned short":     UShort,
	"int":                Int,
	"signed":             Int,
	"unsigned":           UInt,
	"unsigned int":       UInt,
	"long":               Long,
	"unsigned long":      ULong,
	"long long":          LongLong,
	"unsigned long long": ULongLong,
	"float":              Float,
	"double":             Double,
}

// BuiltinType returns the predeclared type with the given C name.
func BuiltinType(name string) *Type {
	return builtinTypes[strings.Join(strings.Fields(name), " ")]
}

// PointerTo returns a pointer type to elem.
func PointerTo(elem *Type) *Type {
	return &Type{Kind: TypePointer, Elem: elem}
}

// ArrayOf returns an array type of n elements.
func ArrayOf(elem *Type, n uint64) *Type {
	return &Type{Kind: TypeArray, Elem: elem, Len: n}
}

// IsInteger returns true for integer, boolean, enum and pointer types.
func (t *Type) IsInteger() bool {
	switch t.Kind {
	case TypeBool, TypeChar, TypeShort, TypeInt, TypeLong, TypeLongLong, TypeEnum:
		return true
	}
	return false
}

// IsScalar returns true for types held in a single bit-vector value.
func (t *Type) IsScalar() bool {
	switch t.Kind {
	case TypePointer, TypeFloat, TypeDouble:
		return true
	}
	return t.IsInteger()
}

// IsAggregate returns true for struct, union and array types.
func (t *Type) IsAggregate() bool {
	switch t.Kind {
	case TypeStruct, TypeUnion, TypeArray:
		return true
	}
	return false
}

// Field returns the named member, if any.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// String returns the C spelling of the type.
func (t *Type) String() string {
	switch t.Kind {
	case TypePointer:
		return t.Elem.String() + " *"
	case TypeArray:
		return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
	case TypeStruct, TypeUnion, TypeEnum:
		return t.Kind.String() + " " + t.Name
	case TypeBool, TypeVoid, TypeFloat, TypeDouble, TypeFunc:
		return t.Kind.String()
	}
	if t.Signed {
		return t.Kind.String()
	}
	return "unsigned " + t.Kind.String()
}
