package smg

import (
	"fmt"

	"github.com/pkg/errors"
)

// MachineModel describes the sizes and alignments of a target ABI.
type MachineModel struct {
	Name          string
	PointerSize   uint64
	LongSize      uint64
	LongLongAlign uint64
	DoubleAlign   uint64

	// RejectZeroLengthArrays disables the GCC zero-length array extension.
	RejectZeroLengthArrays bool
}

// LP64 is the x86-64 System V model.
var LP64 = MachineModel{Name: "lp64", PointerSize: 8, LongSize: 8, LongLongAlign: 8, DoubleAlign: 8}

// ILP32 is the i386 System V model.
var ILP32 = MachineModel{Name: "ilp32", PointerSize: 4, LongSize: 4, LongLongAlign: 4, DoubleAlign: 4}

// ParseMachineModel returns the model with the given name.
func ParseMachineModel(name string) (MachineModel, error) {
	switch name {
	case "", "lp64", "x86_64", "linux64":
		return LP64, nil
	case "ilp32", "i386", "linux32":
		return ILP32, nil
	default:
		return MachineModel{}, fmt.Errorf("unknown machine model: %q", name)
	}
}

// Layout is the computed layout of a type.
type Layout struct {
	Size   uint64
	Align  uint64
	Fields []FieldLayout
}

// Field returns the layout of the named member.
func (l *Layout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

// FieldLayout is the placement of a member within its struct or union.
// Bitfields occupy the Size bytes at Offset, of which BitWidth bits
// starting at BitOffset hold the value.
type FieldLayout struct {
	Name      string
	Type      *Type
	Offset    uint64
	Size      uint64
	Bitfield  bool
	BitOffset uint64
	BitWidth  uint64
}

// Sizeof returns the size of t in bytes.
func (m MachineModel) Sizeof(t *Type) (uint64, error) {
	l, err := m.Layout(t)
	if err != nil {
		return 0, err
	}
	return l.Size, nil
}

// Alignof returns the alignment of t in bytes.
func (m MachineModel) Alignof(t *Type) (uint64, error) {
	l, err := m.Layout(t)
	if err != nil {
		return 0, err
	}
	return l.Align, nil
}

// Layout computes the size, alignment and member offsets of t.
func (m MachineModel) Layout(t *Type) (*Layout, error) {
	switch t.Kind {
	case TypeVoid, TypeBool, TypeChar, TypeFunc:
		return &Layout{Size: 1, Align: 1}, nil
	case TypeShort:
		return &Layout{Size: 2, Align: 2}, nil
	case TypeInt, TypeEnum, TypeFloat:
		return &Layout{Size: 4, Align: 4}, nil
	case TypeLong:
		return &Layout{Size: m.LongSize, Align: m.LongSize}, nil
	case TypeLongLong:
		return &Layout{Size: 8, Align: m.LongLongAlign}, nil
	case TypeDouble:
		return &Layout{Size: 8, Align: m.DoubleAlign}, nil
	case TypePointer:
		return &Layout{Size: m.PointerSize, Align: m.PointerSize}, nil
	case TypeArray:
		return m.arrayLayout(t)
	case TypeStruct:
		return m.structLayout(t)
	case TypeUnion:
		return m.unionLayout(t)
	default:
		return nil, fmt.Errorf("layout: unsupported type kind: %s", t.Kind)
	}
}

func (m MachineModel) arrayLayout(t *Type) (*Layout, error) {
	if t.Len == 0 && m.RejectZeroLengthArrays {
		return nil, errors.Wrapf(ErrZeroLengthArray, "layout %s", t)
	}
	elem, err := m.Layout(t.Elem)
	if err != nil {
		return nil, err
	}
	return &Layout{Size: elem.Size * t.Len, Align: elem.Align}, nil
}

// memberAlign returns the alignment used to place f.
func (m MachineModel) memberAlign(t *Type, f *Field, natural uint64) uint64 {
	align := natural
	if t.Packed {
		align = 1
	}
	if f.Aligned > align {
		align = f.Aligned
	}
	return align
}

func (m MachineModel) structLayout(t *Type) (*Layout, error) {
	if !t.Complete {
		return nil, errors.Wrapf(ErrIncompleteType, "layout %s", t)
	}

	layout := &Layout{Align: 1}
	var bit uint64 // running offset in bits
	for _, f := range t.Fields {
		fl, err := m.Layout(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		align := m.memberAlign(t, f, fl.Align)

		if f.BitSet {
			unit := fl.Align * 8

			// Zero-width bitfields close the current unit.
			if f.Bits == 0 {
				bit = roundUp(bit, unit)
				continue
			}
			if f.Bits > fl.Size*8 {
				return nil, fmt.Errorf("layout %s: bitfield %s wider than its type", t, f.Name)
			}

			// A bitfield may not straddle a unit of its type unless packed.
			if !t.Packed && (bit-bit%unit)+fl.Size*8 < bit+f.Bits {
				bit = roundUp(bit, unit)
			}

			bo := bit % 8
			layout.Fields = append(layout.Fields, FieldLayout{
				Name:      f.Name,
				Type:      f.Type,
				Offset:    bit / 8,
				Size:      (bo + f.Bits + 7) / 8,
				Bitfield:  true,
				BitOffset: bo,
				BitWidth:  f.Bits,
			})
			bit += f.Bits
			if f.Name != "" {
				layout.Align = maxUint64(layout.Align, align)
			}
			continue
		}

		off := roundUp(roundUp(bit, 8)/8, align)
		layout.Fields = append(layout.Fields, FieldLayout{
			Name:   f.Name,
			Type:   f.Type,
			Offset: off,
			Size:   fl.Size,
		})
		bit = (off + fl.Size) * 8
		layout.Align = maxUint64(layout.Align, align)
	}

	if t.Aligned > layout.Align {
		layout.Align = t.Aligned
	}
	layout.Size = roundUp(roundUp(bit, 8)/8, layout.Align)
	return layout, nil
}

func (m MachineModel) unionLayout(t *Type) (*Layout, error) {
	if !t.Complete {
		return nil, errors.Wrapf(ErrIncompleteType, "layout %s", t)
	}

	layout := &Layout{Align: 1}
	var size uint64
	for _, f := range t.Fields {
		fl, err := m.Layout(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		align := m.memberAlign(t, f, fl.Align)

		field := FieldLayout{Name: f.Name, Type: f.Type, Size: fl.Size}
		if f.BitSet {
			if f.Bits == 0 {
				continue
			}
			field.Bitfield, field.BitWidth = true, f.Bits
			field.Size = (f.Bits + 7) / 8
		}
		layout.Fields = append(layout.Fields, field)
		size = maxUint64(size, field.Size)
		layout.Align = maxUint64(layout.Align, align)
	}

	if t.Aligned > layout.Align {
		layout.Align = t.Aligned
	}
	layout.Size = roundUp(size, layout.Align)
	return layout, nil
}

// roundUp returns v rounded up to a multiple of n.
func roundUp(v, n uint64) uint64 {
	if n <= 1 {
		return v
	}
	return (v + n - 1) / n * n
}
