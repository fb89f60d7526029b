package smg

import (
	"fmt"
	"go/token"
	"io"
	"os"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ReadProgramFile decodes the program in the YAML file at path.
func ReadProgramFile(path string) (*Program, error) {
	return DecodeOptions{}.ReadFile(path)
}

// ReadProgram decodes a program from a YAML document.
func ReadProgram(r io.Reader) (*Program, error) {
	return DecodeOptions{}.Read(r)
}

// DecodeOptions adjusts how programs are decoded.
type DecodeOptions struct {
	// Machine model used when the program does not name one.
	Machine string

	// Reject GCC zero-length arrays.
	RejectZeroLengthArrays bool
}

// ReadFile decodes the program in the YAML file at path.
func (opts DecodeOptions) ReadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return opts.read(f, path)
}

// Read decodes a program from a YAML document.
func (opts DecodeOptions) Read(r io.Reader) (*Program, error) {
	return opts.read(r, "")
}

func (opts DecodeOptions) read(r io.Reader, filename string) (*Program, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, errors.Wrap(err, "decode program")
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("decode program: empty document")
	}

	d := &decoder{opts: opts, filename: filename, globals: make(map[string]*Var)}
	if err := d.decodeProgram(doc.Content[0]); err != nil {
		return nil, err
	}
	return d.prog, nil
}

type decoder struct {
	opts     DecodeOptions
	filename string
	prog     *Program
	globals  map[string]*Var
	scope    map[string]*Var
}

func (d *decoder) pos(n *yaml.Node) token.Position {
	return token.Position{Filename: d.filename, Line: n.Line, Column: n.Column}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", d.pos(n), fmt.Sprintf(format, args...))
}

// mapping returns the key/value pairs of a mapping node in document order.
func (d *decoder) mapping(n *yaml.Node) ([][2]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected mapping")
	}
	var a [][2]*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		a = append(a, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
	}
	return a, nil
}

// field returns the value of key in a mapping node, or nil.
func field(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func (d *decoder) decodeProgram(root *yaml.Node) error {
	name := stringField(root, "machine")
	if name == "" {
		name = d.opts.Machine
	}
	machine, err := ParseMachineModel(name)
	if err != nil {
		return errors.Wrap(err, "decode program")
	}
	machine.RejectZeroLengthArrays = d.opts.RejectZeroLengthArrays
	d.prog = NewProgram(machine)

	// Tag types are declared first so fields and typedefs may refer to them
	// in any order.
	types := field(root, "types")
	if types != nil {
		if err := d.declareTypes(types); err != nil {
			return err
		}
	}
	if n := field(root, "typedefs"); n != nil {
		if err := d.decodeTypedefs(n); err != nil {
			return err
		}
	}
	if types != nil {
		if err := d.defineTypes(types); err != nil {
			return err
		}
	}

	if n := field(root, "globals"); n != nil {
		for _, item := range n.Content {
			v, err := d.decodeVar(item)
			if err != nil {
				return err
			}
			v.External, _ = strconv.ParseBool(stringField(item, "extern"))
			d.globals[v.Name] = v
			d.prog.Globals = append(d.prog.Globals, v)
		}

		// Initializers may take the address of any global.
		for i, item := range n.Content {
			if init := field(item, "init"); init != nil {
				op, err := d.decodeOperand(init)
				if err != nil {
					return err
				}
				d.prog.Globals[i].Init = op
			}
		}
	}

	if n := field(root, "functions"); n != nil {
		for _, item := range n.Content {
			fn, err := d.decodeFunction(item)
			if err != nil {
				return err
			}
			d.prog.Functions[fn.Name] = fn
		}
	}
	return nil
}

func stringField(n *yaml.Node, key string) string {
	if v := field(n, key); v != nil && v.Kind == yaml.ScalarNode {
		return v.Value
	}
	return ""
}

func (d *decoder) declareTypes(n *yaml.Node) error {
	for _, item := range n.Content {
		kind, name, err := d.typeTag(item)
		if err != nil {
			return err
		}
		key := kind.String() + " " + name
		if _, ok := d.prog.Types[key]; ok {
			return d.errorf(item, "duplicate type: %s", key)
		}
		d.prog.Types[key] = &Type{Kind: kind, Name: name, Signed: kind == TypeEnum}
	}
	return nil
}

func (d *decoder) typeTag(n *yaml.Node) (TypeKind, string, error) {
	for _, kind := range []TypeKind{TypeStruct, TypeUnion, TypeEnum} {
		if name := stringField(n, kind.String()); name != "" {
			return kind, name, nil
		}
	}
	return 0, "", d.errorf(n, "type requires a struct, union or enum tag")
}

func (d *decoder) defineTypes(n *yaml.Node) error {
	for _, item := range n.Content {
		kind, name, _ := d.typeTag(item)
		t := d.prog.Types[kind.String()+" "+name]
		if kind == TypeEnum {
			t.Complete = true
			continue
		}

		fields := field(item, "fields")
		if fields == nil {
			continue // incomplete
		}
		t.Complete = true
		t.Packed, _ = strconv.ParseBool(stringField(item, "packed"))
		if s := stringField(item, "aligned"); s != "" {
			v, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return d.errorf(item, "invalid aligned attribute: %q", s)
			}
			t.Aligned = v
		}

		for _, fn := range fields.Content {
			f := &Field{Name: stringField(fn, "name")}
			ft, err := d.parseType(fn, stringField(fn, "type"))
			if err != nil {
				return err
			}
			f.Type = ft
			if s := stringField(fn, "bits"); s != "" {
				if f.Bits, err = strconv.ParseUint(s, 0, 64); err != nil {
					return d.errorf(fn, "invalid bitfield width: %q", s)
				}
				f.BitSet = true
			}
			if s := stringField(fn, "aligned"); s != "" {
				if f.Aligned, err = strconv.ParseUint(s, 0, 64); err != nil {
					return d.errorf(fn, "invalid aligned attribute: %q", s)
				}
			}
			t.Fields = append(t.Fields, f)
		}
	}
	return nil
}

func (d *decoder) decodeTypedefs(n *yaml.Node) error {
	pairs, err := d.mapping(n)
	if err != nil {
		return err
	}
	for _, kv := range pairs {
		t, err := d.parseType(kv[1], kv[1].Value)
		if err != nil {
			return err
		}
		d.prog.Typedefs[kv[0].Value] = t
	}
	return nil
}

// parseType parses a C type name such as "struct foo *" or "__u64[5]".
func (d *decoder) parseType(n *yaml.Node, s string) (*Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, d.errorf(n, "missing type")
	}

	// Array suffixes apply outermost first: int[2][3] is 2 arrays of int[3].
	var dims []uint64
	for strings.HasSuffix(s, "]") {
		i := strings.LastIndex(s, "[")
		if i < 0 {
			return nil, d.errorf(n, "invalid type: %q", s)
		}
		dim := strings.TrimSuffix(strings.TrimSpace(s[i+1:len(s)-1]), "U")
		v, err := strconv.ParseUint(dim, 0, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid array length: %q", s)
		}
		dims = append(dims, v)
		s = strings.TrimSpace(s[:i])
	}

	var ptrs int
	for strings.HasSuffix(s, "*") {
		ptrs++
		s = strings.TrimSpace(strings.TrimSuffix(s, "*"))
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "const "))
	s = strings.TrimSpace(strings.TrimSuffix(s, " const"))

	t := d.prog.LookupType(s)
	if t == nil {
		// Tags used only through pointers need no definition.
		for _, kind := range []TypeKind{TypeStruct, TypeUnion} {
			if prefix := kind.String() + " "; strings.HasPrefix(s, prefix) {
				t = &Type{Kind: kind, Name: strings.TrimSpace(strings.TrimPrefix(s, prefix))}
				d.prog.Types[s] = t
			}
		}
	}
	if t == nil {
		return nil, d.errorf(n, "unknown type: %q", s)
	}

	for i := 0; i < ptrs; i++ {
		t = PointerTo(t)
	}
	for _, dim := range dims {
		t = ArrayOf(t, dim)
	}
	return t, nil
}

func (d *decoder) decodeVar(n *yaml.Node) (*Var, error) {
	name := stringField(n, "name")
	if name == "" {
		return nil, d.errorf(n, "variable requires a name")
	}
	t, err := d.parseType(n, stringField(n, "type"))
	if err != nil {
		return nil, err
	}
	return &Var{Name: name, Type: t, Position: d.pos(n)}, nil
}

func (d *decoder) decodeFunction(n *yaml.Node) (*Function, error) {
	fn := &Function{
		Name:     stringField(n, "name"),
		Result:   Void,
		Labels:   make(map[string]int),
		Position: d.pos(n),
	}
	if fn.Name == "" {
		return nil, d.errorf(n, "function requires a name")
	}
	if s := stringField(n, "result"); s != "" {
		t, err := d.parseType(n, s)
		if err != nil {
			return nil, err
		}
		fn.Result = t
	}

	d.scope = make(map[string]*Var)
	for _, key := range []string{"params", "locals"} {
		list := field(n, key)
		if list == nil {
			continue
		}
		for _, item := range list.Content {
			v, err := d.decodeVar(item)
			if err != nil {
				return nil, err
			}
			if _, ok := d.scope[v.Name]; ok {
				return nil, d.errorf(item, "duplicate variable: %s", v.Name)
			}
			d.scope[v.Name] = v
			if key == "params" {
				fn.Params = append(fn.Params, v)
			} else {
				fn.Locals = append(fn.Locals, v)
			}
		}
	}

	body := field(n, "body")
	if body == nil {
		return nil, d.errorf(n, "function %s has no body", fn.Name)
	}

	// Labels refer to the index of the statement that follows them.
	type jump struct {
		node  *yaml.Node
		label string
		set   func(int)
	}
	var jumps []jump
	for _, item := range body.Content {
		pairs, err := d.mapping(item)
		if err != nil {
			return nil, err
		} else if len(pairs) != 1 {
			return nil, d.errorf(item, "statement requires exactly one key")
		}
		key, val := pairs[0][0].Value, pairs[0][1]
		at := At{Position: d.pos(item)}

		switch key {
		case "label":
			if _, ok := fn.Labels[val.Value]; ok {
				return nil, d.errorf(item, "duplicate label: %s", val.Value)
			}
			fn.Labels[val.Value] = len(fn.Body)

		case "assign", "copy":
			dst, err := d.decodePlace(field(val, "dst"))
			if err != nil {
				return nil, err
			}
			srcNode := field(val, "src")
			if srcNode == nil {
				return nil, d.errorf(val, "%s requires src", key)
			}
			if dst.Type().IsAggregate() {
				src, err := d.decodePlace(srcNode)
				if err != nil {
					return nil, err
				}
				fn.Body = append(fn.Body, &Copy{At: at, Dst: dst, Src: src})
				break
			}
			src, err := d.decodeOperand(srcNode)
			if err != nil {
				return nil, err
			}
			fn.Body = append(fn.Body, &Assign{At: at, Dst: dst, Src: src})

		case "call":
			stmt := &Call{At: at, Func: stringField(val, "func")}
			if stmt.Func == "" {
				return nil, d.errorf(val, "call requires func")
			}
			if args := field(val, "args"); args != nil {
				for _, arg := range args.Content {
					op, err := d.decodeOperand(arg)
					if err != nil {
						return nil, err
					}
					stmt.Args = append(stmt.Args, op)
				}
			}
			if dst := field(val, "dst"); dst != nil {
				if stmt.Dst, err = d.decodePlace(dst); err != nil {
					return nil, err
				}
			}
			fn.Body = append(fn.Body, stmt)

		case "if":
			cond, err := d.decodeOperand(field(val, "cond"))
			if err != nil {
				return nil, err
			}
			stmt := &If{At: at, Cond: cond}
			jumps = append(jumps, jump{node: val, label: stringField(val, "then"), set: func(pc int) { stmt.Then = pc }})
			if label := stringField(val, "else"); label != "" {
				jumps = append(jumps, jump{node: val, label: label, set: func(pc int) { stmt.Else = pc }})
			} else {
				stmt.Else = len(fn.Body) + 1
			}
			fn.Body = append(fn.Body, stmt)

		case "goto":
			stmt := &Goto{At: at}
			jumps = append(jumps, jump{node: val, label: val.Value, set: func(pc int) { stmt.Target = pc }})
			fn.Body = append(fn.Body, stmt)

		case "return":
			stmt := &Return{At: at}
			if val.Tag != "!!null" {
				if fn.Result.IsAggregate() {
					src, err := d.decodePlace(val)
					if err != nil {
						return nil, err
					}
					stmt.Value = &Load{Place: src}
				} else if stmt.Value, err = d.decodeOperand(val); err != nil {
					return nil, err
				}
			}
			fn.Body = append(fn.Body, stmt)

		default:
			return nil, d.errorf(item, "unknown statement: %s", key)
		}
	}

	// Falling off the end of a function returns.
	tail := len(fn.Body) == 0
	if !tail {
		_, ok := fn.Body[len(fn.Body)-1].(*Return)
		tail = !ok
	}
	for _, pc := range fn.Labels {
		tail = tail || pc == len(fn.Body)
	}
	if tail {
		fn.Body = append(fn.Body, &Return{At: At{Position: d.pos(body)}})
	}

	for _, j := range jumps {
		pc, ok := fn.Labels[j.label]
		if !ok {
			return nil, d.errorf(j.node, "undefined label: %q", j.label)
		}
		j.set(pc)
	}
	return fn, nil
}

// decodePlace decodes an lvalue: a path string or a mapping.
func (d *decoder) decodePlace(n *yaml.Node) (Place, error) {
	if n == nil {
		return nil, errors.New("missing place")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return d.parsePath(n, n.Value)
	case yaml.MappingNode:
		if v := field(n, "deref"); v != nil {
			ptr, err := d.decodeOperand(v)
			if err != nil {
				return nil, err
			}
			return d.deref(n, ptr)
		}
		if name := stringField(n, "field"); name != "" {
			base, err := d.decodePlace(field(n, "of"))
			if err != nil {
				return nil, err
			}
			return d.member(n, base, name)
		}
		if v := field(n, "index"); v != nil {
			base, err := d.decodePlace(field(n, "of"))
			if err != nil {
				return nil, err
			}
			idx, err := d.decodeOperand(v)
			if err != nil {
				return nil, err
			}
			return d.index(n, base, idx)
		}
	}
	return nil, d.errorf(n, "invalid place")
}

func (d *decoder) deref(n *yaml.Node, ptr Operand) (Place, error) {
	if ptr.Type().Kind != TypePointer {
		return nil, d.errorf(n, "dereference of non-pointer: %s", ptr)
	}
	return &DerefPlace{Ptr: ptr}, nil
}

func (d *decoder) member(n *yaml.Node, base Place, name string) (Place, error) {
	t := base.Type()
	if t.Kind != TypeStruct && t.Kind != TypeUnion {
		return nil, d.errorf(n, "member %s of non-struct: %s", name, base)
	}
	layout, err := d.prog.Machine.Layout(t)
	if err != nil {
		return nil, d.errorf(n, "%s", err)
	}
	fl, ok := layout.Field(name)
	if !ok {
		return nil, d.errorf(n, "%s has no member %s", t, name)
	}
	return &FieldPlace{Base: base, Field: fl}, nil
}

func (d *decoder) index(n *yaml.Node, base Place, idx Operand) (Place, error) {
	switch t := base.Type(); t.Kind {
	case TypeArray:
		return &IndexPlace{Base: base, Index: idx}, nil
	case TypePointer:
		add, err := d.ptrAdd(n, &Load{Place: base}, idx)
		if err != nil {
			return nil, err
		}
		return &DerefPlace{Ptr: add}, nil
	default:
		return nil, d.errorf(n, "index of non-array: %s", base)
	}
}

func (d *decoder) ptrAdd(n *yaml.Node, ptr, idx Operand) (Operand, error) {
	ptr = d.decay(ptr)
	if ptr.Type().Kind != TypePointer {
		return nil, d.errorf(n, "pointer arithmetic on non-pointer: %s", ptr)
	}
	scale, err := d.prog.Machine.Sizeof(ptr.Type().Elem)
	if err != nil {
		return nil, d.errorf(n, "%s", err)
	}
	return &PtrAdd{Ptr: ptr, Index: idx, Scale: scale}, nil
}

// decay converts an array-typed load into a pointer to its first element.
func (d *decoder) decay(op Operand) Operand {
	if load, ok := op.(*Load); ok && load.Type().Kind == TypeArray {
		return &Cast{X: &AddrOf{Place: load.Place}, T: PointerTo(load.Type().Elem)}
	}
	return op
}

// parsePath parses a C lvalue path such as "p->def[5]" or "*q".
func (d *decoder) parsePath(n *yaml.Node, s string) (Place, error) {
	var sc scanner.Scanner
	sc.Init(strings.NewReader(s))
	sc.Mode = scanner.ScanIdents | scanner.ScanInts
	sc.Error = func(*scanner.Scanner, string) {}

	var derefs int
	tok := sc.Scan()
	for tok == '*' {
		derefs++
		tok = sc.Scan()
	}
	if tok != scanner.Ident {
		return nil, d.errorf(n, "invalid path: %q", s)
	}
	place, err := d.lookup(n, sc.TokenText())
	if err != nil {
		return nil, err
	}

	for tok = sc.Scan(); tok != scanner.EOF; tok = sc.Scan() {
		switch tok {
		case '.':
			if sc.Scan() != scanner.Ident {
				return nil, d.errorf(n, "invalid path: %q", s)
			}
			if place, err = d.member(n, place, sc.TokenText()); err != nil {
				return nil, err
			}
		case '-':
			if sc.Scan() != '>' || sc.Scan() != scanner.Ident {
				return nil, d.errorf(n, "invalid path: %q", s)
			}
			name := sc.TokenText()
			if place, err = d.deref(n, d.decay(&Load{Place: place})); err != nil {
				return nil, err
			}
			if place, err = d.member(n, place, name); err != nil {
				return nil, err
			}
		case '[':
			var idx Operand
			switch sc.Scan() {
			case scanner.Int:
				v, err := strconv.ParseUint(sc.TokenText(), 0, 64)
				if err != nil {
					return nil, d.errorf(n, "invalid index: %q", s)
				}
				idx = &Const{Value: v, T: Int}
			case scanner.Ident:
				p, err := d.lookup(n, sc.TokenText())
				if err != nil {
					return nil, err
				}
				idx = &Load{Place: p}
			default:
				return nil, d.errorf(n, "invalid path: %q", s)
			}
			if sc.Scan() != ']' {
				return nil, d.errorf(n, "invalid path: %q", s)
			}
			if place, err = d.index(n, place, idx); err != nil {
				return nil, err
			}
		default:
			return nil, d.errorf(n, "invalid path: %q", s)
		}
	}

	for i := 0; i < derefs; i++ {
		if place, err = d.deref(n, d.decay(&Load{Place: place})); err != nil {
			return nil, err
		}
	}
	return place, nil
}

func (d *decoder) lookup(n *yaml.Node, name string) (Place, error) {
	if v := d.scope[name]; v != nil {
		return &VarPlace{Var: v}, nil
	} else if v := d.globals[name]; v != nil {
		return &VarPlace{Var: v}, nil
	}
	return nil, d.errorf(n, "undefined: %s", name)
}

// decodeOperand decodes an rvalue: an integer, a path string ("&" prefix
// takes the address), or a mapping with one operator key.
func (d *decoder) decodeOperand(n *yaml.Node) (Operand, error) {
	if n == nil {
		return nil, errors.New("missing operand")
	}

	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!int" {
			return d.literal(n, n.Value, nil)
		}
		s := strings.TrimSpace(n.Value)
		if strings.HasPrefix(s, "&") {
			place, err := d.parsePath(n, s[1:])
			if err != nil {
				return nil, err
			}
			return &AddrOf{Place: place}, nil
		}
		if s == "NULL" {
			return &Const{Value: 0, T: PointerTo(Void)}, nil
		} else if isIdent(s) && !d.isPath(s) {
			return &FuncRef{Name: s}, nil
		}
		place, err := d.parsePath(n, s)
		if err != nil {
			return nil, err
		}
		return d.decay(&Load{Place: place}), nil
	}

	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "invalid operand")
	}

	var t *Type
	if s := stringField(n, "type"); s != "" {
		var err error
		if t, err = d.parseType(n, s); err != nil {
			return nil, err
		}
	}

	switch {
	case field(n, "const") != nil:
		return d.literal(n, field(n, "const").Value, t)

	case field(n, "load") != nil:
		place, err := d.decodePlace(field(n, "load"))
		if err != nil {
			return nil, err
		}
		return d.decay(&Load{Place: place}), nil

	case field(n, "addr") != nil:
		place, err := d.decodePlace(field(n, "addr"))
		if err != nil {
			return nil, err
		}
		return &AddrOf{Place: place}, nil

	case field(n, "sizeof") != nil:
		of, err := d.parseType(n, stringField(n, "sizeof"))
		if err != nil {
			return nil, err
		}
		size, err := d.prog.Machine.Sizeof(of)
		if err != nil {
			return nil, d.errorf(n, "%s", err)
		}
		return &Sizeof{Of: of, Size: size}, nil

	case field(n, "cast") != nil:
		to, err := d.parseType(n, stringField(n, "cast"))
		if err != nil {
			return nil, err
		}
		x, err := d.decodeOperand(field(n, "x"))
		if err != nil {
			return nil, err
		}
		return &Cast{X: d.decay(x), T: to}, nil

	case field(n, "ptradd") != nil:
		ptr, err := d.decodeOperand(field(n, "ptradd"))
		if err != nil {
			return nil, err
		}
		idx, err := d.decodeOperand(field(n, "index"))
		if err != nil {
			return nil, err
		}
		return d.ptrAdd(n, ptr, idx)

	case field(n, "unop") != nil:
		x, err := d.decodeOperand(field(n, "x"))
		if err != nil {
			return nil, err
		}
		op := stringField(n, "unop")
		switch op {
		case "-", "~":
			if t == nil {
				t = d.promote(x.Type())
			}
		case "!":
			t = Int
		default:
			return nil, d.errorf(n, "unknown unary operator: %q", op)
		}
		return &Unary{Op: op, X: d.decay(x), T: t}, nil

	case field(n, "op") != nil:
		op := stringField(n, "op")
		x, err := d.decodeOperand(field(n, "x"))
		if err != nil {
			return nil, err
		}
		y, err := d.decodeOperand(field(n, "y"))
		if err != nil {
			return nil, err
		}
		x, y = d.decay(x), d.decay(y)
		if _, ok := binaryOperators[op]; !ok {
			return nil, d.errorf(n, "unknown binary operator: %q", op)
		}
		if t == nil {
			if op == "<<" || op == ">>" {
				t = d.promote(x.Type())
			} else {
				t = d.arithmeticType(x.Type(), y.Type())
			}
		}
		return &Binary{Op: op, X: x, Y: y, T: t}, nil

	case field(n, "func") != nil:
		return &FuncRef{Name: stringField(n, "func")}, nil
	}
	return nil, d.errorf(n, "invalid operand")
}

func (d *decoder) isPath(s string) bool {
	return d.scope[s] != nil || d.globals[s] != nil
}

func isIdent(s string) bool {
	for i, r := range s {
		if r != '_' && !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || i > 0 && '0' <= r && r <= '9') {
			return false
		}
	}
	return s != ""
}

// literal decodes an integer constant. Without an explicit type, literals
// are int when they fit, otherwise long or unsigned long.
func (d *decoder) literal(n *yaml.Node, s string, t *Type) (Operand, error) {
	var value uint64
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		value = uint64(v)
		if t == nil {
			if v >= -1<<31 && v < 1<<31 {
				t = Int
			} else {
				t = Long
			}
		}
	} else if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		value = v
		if t == nil {
			t = ULong
		}
	} else {
		return nil, d.errorf(n, "invalid integer: %q", s)
	}

	size, err := d.prog.Machine.Sizeof(t)
	if err != nil {
		return nil, d.errorf(n, "%s", err)
	}
	return &Const{Value: value & bitmask(uint(size*8)), T: t}, nil
}

var binaryOperators = map[string]struct{}{
	"+": {}, "-": {}, "*": {}, "/": {}, "%": {},
	"&": {}, "|": {}, "^": {}, "<<": {}, ">>": {},
	"==": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
}

// promote applies the C integer promotions.
func (d *decoder) promote(t *Type) *Type {
	switch t.Kind {
	case TypeBool, TypeChar, TypeShort, TypeEnum:
		return Int
	}
	return t
}

// arithmeticType applies the usual arithmetic conversions.
func (d *decoder) arithmeticType(x, y *Type) *Type {
	if x.Kind == TypePointer || y.Kind == TypePointer {
		return ULong
	}
	if x.Kind == TypeDouble || y.Kind == TypeDouble {
		return Double
	} else if x.Kind == TypeFloat || y.Kind == TypeFloat {
		return Float
	}

	x, y = d.promote(x), d.promote(y)
	if x.Kind == y.Kind && x.Signed == y.Signed {
		return x
	}
	xs, _ := d.prog.Machine.Sizeof(x)
	ys, _ := d.prog.Machine.Sizeof(y)
	switch {
	case x.Signed == y.Signed:
		if xs >= ys {
			return x
		}
		return y
	case !x.Signed && xs >= ys:
		return x
	case !y.Signed && ys >= xs:
		return y
	case x.Signed && xs > ys:
		return x
	case y.Signed && ys > xs:
		return y
	case x.Signed:
		return &Type{Kind: x.Kind}
	default:
		return &Type{Kind: y.Kind}
	}
}
