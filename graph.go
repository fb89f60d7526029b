package smg

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"golang.org/x/tools/container/intsets"
)

// addrShift places the numeric base address of object n at n<<addrShift.
// The numeric value only orders and separates addresses in comparisons;
// which object an address refers to is carried by its AddressExpr base.
const addrShift = 32

// MaxObjectSize is the exclusive upper bound of an object's size in bytes.
const MaxObjectSize = 1 << addrShift

// havocChunkLimit bounds the byte range that Havoc materializes as fresh
// symbols in a zero-initialized object.
const havocChunkLimit = 4096

// ObjectKind is the storage class of a memory object.
type ObjectKind int

const (
	ObjectStack ObjectKind = iota
	ObjectHeap
	ObjectGlobal
)

// String returns the string representation of the kind.
func (k ObjectKind) String() string {
	switch k {
	case ObjectStack:
		return "stack"
	case ObjectHeap:
		return "heap"
	case ObjectGlobal:
		return "global"
	default:
		return fmt.Sprintf("ObjectKind<%d>", int(k))
	}
}

// Validity is the lifecycle state of a memory object.
type Validity int

const (
	Valid Validity = iota
	Freed
	// Invalid marks an object that is out of scope, e.g. a local after
	// its frame returned.
	Invalid
)

// String returns the string representation of the validity.
func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Freed:
		return "freed"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Validity<%d>", int(v))
	}
}

// Object represents a region of memory in the graph.
type Object struct {
	ID       uint64
	Label    string
	Kind     ObjectKind
	Size     Expr // in bytes, pointer width
	Validity Validity

	// Zeroed objects read zero for any byte without an edge.
	Zeroed bool

	// External objects are allocated outside the analyzed code and are
	// never reported as leaks.
	External bool

	// Frame is the stack depth that owns a stack object, otherwise -1.
	Frame int

	// Declared type, if any.
	Type *Type
}

// Base returns the address of the first byte of the object.
func (o *Object) Base() uint64 {
	return o.ID << addrShift
}

// Addr returns the address of the object as an expression.
func (o *Object) Addr() *AddressExpr {
	return NewAddressExpr(o.ID)
}

// String returns a short description of the object.
func (o *Object) String() string {
	return fmt.Sprintf("%s#%d(%s, size=%s, %s)", o.Label, o.ID, o.Kind, o.Size, o.Validity)
}

// Edge is a has-value edge: bytes [Offset, Offset+Size) of Object hold Value.
type Edge struct {
	Object uint64
	Offset uint64
	Size   uint64
	Value  Expr
}

// End returns the offset just past the last byte of the edge.
func (e *Edge) End() uint64 { return e.Offset + e.Size }

// String returns the string representation of the edge.
func (e *Edge) String() string {
	return fmt.Sprintf("[%d]+%db = %s", e.Offset, e.Size, e.Value)
}

// SymbolGen allocates unique symbols. It is shared by all states of one
// analysis so that symbol ids never collide across forks.
type SymbolGen struct {
	n uint64
}

// New returns a fresh unconstrained symbol.
func (g *SymbolGen) New(name string, width uint) *SymbolExpr {
	return &SymbolExpr{ID: atomic.AddUint64(&g.n, 1), Width: width, Name: name}
}

// Graph is a symbolic memory graph: a set of memory objects and the
// has-value edges describing their contents. Points-to edges are implicit:
// a value points to every object whose base address occurs in it.
//
// Graphs are persistent. Every mutating method returns a new graph that
// shares structure with its receiver.
type Graph struct {
	objects *immutable.SortedMap // id -> *Object
	edges   *immutable.SortedMap // edgeKey -> *Edge
	nextID  uint64
	gen     *SymbolGen
}

// NewGraph returns an empty graph drawing fresh symbols from gen.
func NewGraph(gen *SymbolGen) *Graph {
	return &Graph{
		objects: immutable.NewSortedMap(&uint64Comparer{}),
		edges:   immutable.NewSortedMap(&edgeKeyComparer{}),
		nextID:  1,
		gen:     gen,
	}
}

func (g *Graph) clone() *Graph {
	other := *g
	return &other
}

// Allocate returns a graph with a new valid object of the given size.
// Returns ErrInvalidSize if size is a constant that cannot be allocated.
func (g *Graph) Allocate(kind ObjectKind, size Expr, label string) (*Graph, *Object, error) {
	assert(ExprWidth(size) == WidthPtr, "allocation size must be pointer width: %d", ExprWidth(size))
	if c, ok := size.(*ConstantExpr); ok && c.Value >= MaxObjectSize {
		return g, nil, ErrInvalidSize
	}

	obj := &Object{
		ID:       g.nextID,
		Label:    label,
		Kind:     kind,
		Size:     size,
		Validity: Valid,
		Frame:    -1,
	}

	other := g.clone()
	other.nextID++
	other.objects = g.objects.Set(obj.ID, obj)
	return other, obj, nil
}

// Insert returns a graph with obj stored under its id, replacing any
// previous version. Used to update attributes of an allocated object.
func (g *Graph) Insert(obj *Object) *Graph {
	_, ok := g.objects.Get(obj.ID)
	assert(ok, "insert: unknown object: id=%d", obj.ID)
	other := g.clone()
	other.objects = g.objects.Set(obj.ID, obj)
	return other
}

// Object returns the object with the given id, if any.
func (g *Graph) Object(id uint64) *Object {
	if v, ok := g.objects.Get(id); ok {
		return v.(*Object)
	}
	return nil
}

// Objects returns all objects ordered by id.
func (g *Graph) Objects() []*Object {
	var a []*Object
	itr := g.objects.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		a = append(a, v.(*Object))
	}
	return a
}

// Edges returns the edges of an object ordered by offset.
func (g *Graph) Edges(obj *Object) []*Edge {
	var a []*Edge
	itr := g.edges.Iterator()
	itr.Seek(edgeKey{obj: obj.ID})
	for !itr.Done() {
		k, v := itr.Next()
		if k.(edgeKey).obj != obj.ID {
			break
		}
		a = append(a, v.(*Edge))
	}
	return a
}

// overlapping returns the edges of obj that share a byte with [off, end).
func (g *Graph) overlapping(obj *Object, off, end uint64) []*Edge {
	var a []*Edge
	for _, e := range g.Edges(obj) {
		if e.Offset >= end {
			break
		} else if e.End() > off {
			a = append(a, e)
		}
	}
	return a
}

func (g *Graph) setEdge(e *Edge) {
	g.edges = g.edges.Set(edgeKey{obj: e.Object, off: e.Offset}, e)
}

func (g *Graph) deleteEdge(e *Edge) {
	g.edges = g.edges.Delete(edgeKey{obj: e.Object, off: e.Offset})
}

// erase removes the contents of [off, end), splitting edges that straddle
// either boundary so their remaining bytes keep their values.
func (g *Graph) erase(obj *Object, off, end uint64) {
	for _, e := range g.overlapping(obj, off, end) {
		g.deleteEdge(e)
		if e.Offset < off {
			n := off - e.Offset
			g.setEdge(&Edge{Object: obj.ID, Offset: e.Offset, Size: n, Value: NewExtractExpr(e.Value, 0, uint(n*8))})
		}
		if e.End() > end {
			n := e.End() - end
			g.setEdge(&Edge{Object: obj.ID, Offset: end, Size: n, Value: NewExtractExpr(e.Value, uint((end-e.Offset)*8), uint(n*8))})
		}
	}
}

// Write returns a graph in which bytes [off, off+size) of obj hold value.
func (g *Graph) Write(obj *Object, off, size uint64, value Expr) *Graph {
	assert(uint64(ExprWidth(value)) == size*8, "write: value width %d != %d bytes", ExprWidth(value), size)
	other := g.clone()
	other.erase(obj, off, off+size)
	other.setEdge(&Edge{Object: obj.ID, Offset: off, Size: size, Value: value})
	return other
}

// Read returns the value of bytes [off, off+size) of obj. Bytes with no
// edge read as zero in zeroed objects and as fresh symbols otherwise; fresh
// symbols are recorded in the returned graph so later reads agree.
func (g *Graph) Read(obj *Object, off, size uint64) (*Graph, Expr) {
	assert(size > 0 && size <= 8, "read: invalid size %d", size)
	end := off + size
	edges := g.overlapping(obj, off, end)

	// Exact or contained hit on a single edge.
	if len(edges) == 1 && edges[0].Offset <= off && edges[0].End() >= end {
		e := edges[0]
		return g, NewExtractExpr(e.Value, uint((off-e.Offset)*8), uint(size*8))
	}

	// Assemble from pieces, lowest address first, filling gaps.
	other := g
	var value Expr
	push := func(piece Expr) {
		if value == nil {
			value = piece
		} else {
			value = NewConcatExpr(piece, value) // little endian
		}
	}
	gap := func(from, to uint64) {
		if from >= to {
			return
		}
		var piece Expr
		if obj.Zeroed {
			piece = NewConstantExpr(0, uint((to-from)*8))
		} else {
			sym := g.gen.New(fmt.Sprintf("%s[%d]", obj.Label, from), uint((to-from)*8))
			if other == g {
				other = g.clone()
			}
			other.setEdge(&Edge{Object: obj.ID, Offset: from, Size: to - from, Value: sym})
			piece = sym
		}
		push(piece)
	}

	pos := off
	for _, e := range edges {
		gap(pos, e.Offset)
		lo, hi := maxUint64(e.Offset, off), minUint64(e.End(), end)
		push(NewExtractExpr(e.Value, uint((lo-e.Offset)*8), uint((hi-lo)*8)))
		pos = hi
	}
	gap(pos, end)
	return other, value
}

// Havoc returns a graph in which bytes [off, end) of obj hold unknown values.
func (g *Graph) Havoc(obj *Object, off, end uint64) *Graph {
	other := g.clone()
	other.erase(obj, off, end)
	if !obj.Zeroed {
		return other
	}

	// Keep the zero knowledge of the rest of the object when the range is
	// small enough to materialize.
	if end-off > havocChunkLimit {
		o := *obj
		o.Zeroed = false
		other.objects = other.objects.Set(o.ID, &o)
		return other
	}
	for pos := off; pos < end; {
		n := minUint64(8, end-pos)
		other.setEdge(&Edge{Object: obj.ID, Offset: pos, Size: n, Value: g.gen.New(fmt.Sprintf("%s[%d]", obj.Label, pos), uint(n*8))})
		pos += n
	}
	return other
}

// Memset returns a graph in which bytes [off, off+size) of obj each hold b.
func (g *Graph) Memset(obj *Object, off, size uint64, b Expr) *Graph {
	assert(ExprWidth(b) == Width8, "memset: byte width %d", ExprWidth(b))
	other := g.clone()
	other.erase(obj, off, off+size)
	if c, ok := b.(*ConstantExpr); ok && c.Value == 0 && obj.Zeroed {
		return other
	}
	for pos := off; pos < off+size; {
		n := minUint64(8, off+size-pos)
		value := b
		for i := uint64(1); i < n; i++ {
			value = NewConcatExpr(b, value)
		}
		other.setEdge(&Edge{Object: obj.ID, Offset: pos, Size: n, Value: value})
		pos += n
	}
	return other
}

// Chunk is a run of bytes captured from an object, relative to the start
// of the captured range.
type Chunk struct {
	Offset uint64
	Size   uint64
	Value  Expr
}

// Snapshot returns the contents of bytes [off, off+size) of obj as chunks of
// at most 8 bytes, materializing unknown bytes as recorded fresh symbols.
func (g *Graph) Snapshot(obj *Object, off, size uint64) (*Graph, []Chunk) {
	var chunks []Chunk
	other := g
	for pos := off; pos < off+size; {
		n := minUint64(8, off+size-pos)

		// Keep existing edges whole when they start here and fit the range.
		for _, e := range g.overlapping(obj, pos, pos+1) {
			if e.Offset == pos && e.End() <= off+size && e.Size <= 8 {
				n = e.Size
			}
		}

		var value Expr
		other, value = other.Read(obj, pos, n)
		chunks = append(chunks, Chunk{Offset: pos - off, Size: n, Value: value})
		pos += n
	}
	return other, chunks
}

// Restore returns a graph in which bytes [off, off+size) of obj hold the
// given chunks. Bytes not covered by a chunk become unknown.
func (g *Graph) Restore(obj *Object, off, size uint64, chunks []Chunk) *Graph {
	var n uint64
	for _, c := range chunks {
		n += c.Size
	}

	other := g
	if n != size {
		other = g.Havoc(obj, off, off+size)
		obj = other.Object(obj.ID)
	}
	for _, c := range chunks {
		if c.Offset+c.Size > size {
			continue
		}
		other = other.Write(obj, off+c.Offset, c.Size, c.Value)
	}
	return other
}

// Copy returns a graph in which bytes [dstOff, dstOff+size) of dst hold
// the contents of bytes [srcOff, srcOff+size) of src.
func (g *Graph) Copy(dst *Object, dstOff uint64, src *Object, srcOff, size uint64) *Graph {
	other, chunks := g.Snapshot(src, srcOff, size)
	return other.Restore(other.Object(dst.ID), dstOff, size, chunks)
}

// Free returns a graph in which obj is freed and its contents dropped.
// Pointers to obj remain and fail on their next dereference.
func (g *Graph) Free(obj *Object) (*Graph, error) {
	if obj.Validity == Freed {
		return g, ErrDoubleFree
	}
	return g.setValidity(obj, Freed), nil
}

// Invalidate returns a graph in which obj is out of scope.
func (g *Graph) Invalidate(obj *Object) *Graph {
	return g.setValidity(obj, Invalid)
}

func (g *Graph) setValidity(obj *Object, v Validity) *Graph {
	other := g.clone()
	for _, e := range g.Edges(obj) {
		other.deleteEdge(e)
	}
	o := *obj
	o.Validity = v
	other.objects = g.objects.Set(o.ID, &o)
	return other
}

// Reachable returns the ids of every object reachable from the root values
// through the contents of reachable, live objects.
func (g *Graph) Reachable(roots []Expr) *intsets.Sparse {
	var visited intsets.Sparse
	var queue []*Object

	mark := func(value Expr) {
		for _, obj := range g.Targets(value) {
			if visited.Insert(int(obj.ID)) {
				queue = append(queue, obj)
			}
		}
	}
	for _, root := range roots {
		mark(root)
	}

	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		if obj.Validity != Valid {
			continue
		}
		for _, e := range g.Edges(obj) {
			mark(e.Value)
		}
	}
	return &visited
}

// Targets returns the objects whose base address occurs in value.
func (g *Graph) Targets(value Expr) []*Object {
	v := &addressVisitor{g: g}
	WalkExpr(v, value)
	return v.objects
}

type addressVisitor struct {
	g       *Graph
	objects []*Object
}

func (v *addressVisitor) Visit(expr Expr) (Expr, ExprVisitor) {
	if a, ok := expr.(*AddressExpr); ok {
		if obj := v.g.Object(a.Object); obj != nil {
			v.objects = append(v.objects, obj)
		}
	}
	return expr, v
}

// Leaks returns valid, non-external heap objects not reachable from roots.
func (g *Graph) Leaks(roots []Expr) []*Object {
	reachable := g.Reachable(roots)
	var a []*Object
	for _, obj := range g.Objects() {
		if obj.Kind == ObjectHeap && obj.Validity == Valid && !obj.External && !reachable.Has(int(obj.ID)) {
			a = append(a, obj)
		}
	}
	return a
}

// Equal returns true if both graphs hold the same objects and edges.
func (g *Graph) Equal(other *Graph) bool {
	if g.objects.Len() != other.objects.Len() || g.edges.Len() != other.edges.Len() {
		return false
	}

	a, b := g.objects.Iterator(), other.objects.Iterator()
	for !a.Done() {
		_, av := a.Next()
		_, bv := b.Next()
		x, y := av.(*Object), bv.(*Object)
		if x.ID != y.ID || x.Kind != y.Kind || x.Validity != y.Validity || x.Zeroed != y.Zeroed || CompareExpr(x.Size, y.Size) != 0 {
			return false
		}
	}

	a, b = g.edges.Iterator(), other.edges.Iterator()
	for !a.Done() {
		_, av := a.Next()
		_, bv := b.Next()
		x, y := av.(*Edge), bv.(*Edge)
		if x.Object != y.Object || x.Offset != y.Offset || x.Size != y.Size || CompareExpr(x.Value, y.Value) != 0 {
			return false
		}
	}
	return true
}

// Dump returns a text listing of the objects and their edges.
func (g *Graph) Dump() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "== OBJECTS")
	for _, obj := range g.Objects() {
		fmt.Fprintf(&buf, "%08x %s\n", obj.Base(), obj)
		for _, e := range g.Edges(obj) {
			fmt.Fprintf(&buf, "  + %s\n", e)
		}
	}
	fmt.Fprintln(&buf, "")
	return buf.String()
}

// edgeKey orders edges by object, then offset.
type edgeKey struct {
	obj uint64
	off uint64
}

type edgeKeyComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b. Panic if a or b is not an edgeKey.
func (c *edgeKeyComparer) Compare(a, b interface{}) int {
	x, y := a.(edgeKey), b.(edgeKey)
	if cmp := compareUint(x.obj, y.obj); cmp != 0 {
		return cmp
	}
	return compareUint(x.off, y.off)
}

type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b. Panic if a or b is not a uint64.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	return compareUint(a.(uint64), b.(uint64))
}
