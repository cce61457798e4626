// value.go — the typed value universe shared by the field store, the heap
// and the command language: cells, cell references, functors, and the Val
// union that flows through expressions.
package hpvm

import (
	"fmt"
	"strconv"
	"strings"
)

// CellRef is a heap address: an index into the heap array field.
// Displays as "@7".
type CellRef int

func (r CellRef) String() string { return "@" + strconv.Itoa(int(r)) }

// Functor identifies a structure's shape: a symbol plus an arity.
// Two functors are equal iff both symbol and arity match.
type Functor struct {
	Sym   string
	Arity int
}

func (f Functor) String() string {
	return quoteSym(f.Sym) + "/" + strconv.Itoa(f.Arity)
}

// CellKind tags a heap cell.
type CellKind uint8

const (
	KindRef CellKind = iota // pointer to another cell; self-pointer = unbound
	KindStr                 // structure: functor + address of first argument
	KindSym                 // constant symbol
	KindInt                 // signed 32-bit integer
)

func (k CellKind) String() string {
	switch k {
	case KindRef:
		return "Ref"
	case KindStr:
		return "Str"
	case KindSym:
		return "Sym"
	case KindInt:
		return "Int"
	}
	return fmt.Sprintf("CellKind(%d)", k)
}

// Cell is one tagged heap slot. Exactly one payload field is meaningful per
// kind; constructors zero the rest so cells compare structurally with ==.
//
//	Ref(@3)           pointer (self-pointer means free/unbound)
//	Str('*'/2, @0)    functor plus arg0 address; args occupy arg0..arg0+arity-1
//	Sym(:x)           symbol constant
//	Int(5)            integer constant
type Cell struct {
	Kind CellKind
	Ref  CellRef // Ref target, or Str first-argument address
	Fn   Functor // Str only
	Sym  string  // Sym only
	Int  int32   // Int only
}

func RefCell(r CellRef) Cell             { return Cell{Kind: KindRef, Ref: r} }
func StrCell(f Functor, arg0 CellRef) Cell { return Cell{Kind: KindStr, Fn: f, Ref: arg0} }
func SymCell(name string) Cell           { return Cell{Kind: KindSym, Sym: name} }
func IntCell(n int32) Cell               { return Cell{Kind: KindInt, Int: n} }

func (c Cell) String() string {
	switch c.Kind {
	case KindRef:
		return fmt.Sprintf("Ref(%s)", c.Ref)
	case KindStr:
		return fmt.Sprintf("Str(%s, %s)", c.Fn, c.Ref)
	case KindSym:
		return fmt.Sprintf("Sym(%s)", displaySym(c.Sym))
	case KindInt:
		return fmt.Sprintf("Int(%d)", c.Int)
	}
	return fmt.Sprintf("Cell{kind=%d}", c.Kind)
}

// ValTy is the declared type of a field or the runtime type of a value.
type ValTy uint8

const (
	TyCell ValTy = iota
	TyCellRef
	TyUsize
	TyI32
	TySymbol
	TyFunctor
)

func (t ValTy) String() string {
	switch t {
	case TyCell:
		return "Cell"
	case TyCellRef:
		return "CellRef"
	case TyUsize:
		return "Usize"
	case TyI32:
		return "I32"
	case TySymbol:
		return "Symbol"
	case TyFunctor:
		return "Functor"
	}
	return fmt.Sprintf("ValTy(%d)", t)
}

// ParseValTy reads a type name as it appears in session and scenario files.
func ParseValTy(s string) (ValTy, error) {
	switch s {
	case "Cell":
		return TyCell, nil
	case "CellRef":
		return TyCellRef, nil
	case "Usize":
		return TyUsize, nil
	case "I32":
		return TyI32, nil
	case "Symbol":
		return TySymbol, nil
	case "Functor":
		return TyFunctor, nil
	}
	return 0, fmt.Errorf("unknown type name %q", s)
}

// Val is the tagged union of every value the command language can produce.
// Like Cell, constructors zero unused payloads so == is structural equality.
type Val struct {
	Ty   ValTy
	Cell Cell
	Ref  CellRef
	U    int // usize; never negative
	I    int32
	Sym  string
	Fn   Functor
}

func CellVal(c Cell) Val       { return Val{Ty: TyCell, Cell: c} }
func CellRefVal(r CellRef) Val { return Val{Ty: TyCellRef, Ref: r} }
func UsizeVal(n int) Val       { return Val{Ty: TyUsize, U: n} }
func I32Val(n int32) Val       { return Val{Ty: TyI32, I: n} }
func SymVal(s string) Val      { return Val{Ty: TySymbol, Sym: s} }
func FunctorVal(f Functor) Val { return Val{Ty: TyFunctor, Fn: f} }

func (v Val) String() string {
	switch v.Ty {
	case TyCell:
		return v.Cell.String()
	case TyCellRef:
		return v.Ref.String()
	case TyUsize:
		return strconv.Itoa(v.U)
	case TyI32:
		return fmt.Sprintf("%+d", v.I)
	case TySymbol:
		return displaySym(v.Sym)
	case TyFunctor:
		return v.Fn.String()
	}
	return fmt.Sprintf("Val{ty=%d}", v.Ty)
}

// AsCellRef extracts a heap address from values that can stand for one:
// a CellRef, or a Ref/Str cell. Other values yield a NotAReferenceError.
func (v Val) AsCellRef() (CellRef, error) {
	switch {
	case v.Ty == TyCellRef:
		return v.Ref, nil
	case v.Ty == TyCell && (v.Cell.Kind == KindRef || v.Cell.Kind == KindStr):
		return v.Cell.Ref, nil
	}
	return 0, &NotAReferenceError{Val: v.String(), Want: "CellRef, Ref cell, or Str cell"}
}

// AsUsize extracts a non-negative integer, accepting Usize directly and I32
// when it is not negative.
func (v Val) AsUsize() (int, error) {
	switch v.Ty {
	case TyUsize:
		return v.U, nil
	case TyI32:
		if v.I >= 0 {
			return int(v.I), nil
		}
	}
	return 0, &TypeMismatchError{Expected: "Usize", Received: v.Ty.String(), Expr: v.String()}
}

// AsOffset extracts a signed offset for relative indexing.
func (v Val) AsOffset() (int, error) {
	switch v.Ty {
	case TyUsize:
		return v.U, nil
	case TyI32:
		return int(v.I), nil
	}
	return 0, &TypeMismatchError{Expected: "Usize or I32", Received: v.Ty.String(), Expr: v.String()}
}

// AsCell converts to a heap-storable cell. CellRef values convert to Ref
// cells; symbols and functorless values that have no cell form error out.
func (v Val) AsCell() (Cell, error) {
	switch v.Ty {
	case TyCell:
		return v.Cell, nil
	case TyCellRef:
		return RefCell(v.Ref), nil
	case TySymbol:
		return SymCell(v.Sym), nil
	case TyI32:
		return IntCell(v.I), nil
	}
	return Cell{}, &TypeMismatchError{Expected: "Cell", Received: v.Ty.String(), Expr: v.String()}
}

// AsFunctor extracts a functor from a Functor value or a Str cell.
func (v Val) AsFunctor() (Functor, error) {
	switch v.Ty {
	case TyFunctor:
		return v.Fn, nil
	case TyCell:
		if v.Cell.Kind == KindStr {
			return v.Cell.Fn, nil
		}
	}
	return Functor{}, &TypeMismatchError{Expected: "Functor", Received: v.Ty.String(), Expr: v.String()}
}

// AssignableTo reports whether a value may be stored in a slot of the given
// declared type. Fields are strict about their declared type except that a
// Cell slot accepts anything with a cell form (CellRef becomes Ref).
func (v Val) AssignableTo(t ValTy) bool {
	if v.Ty == t {
		return true
	}
	if t == TyCell {
		_, err := v.AsCell()
		return err == nil
	}
	return false
}

// Coerce converts a value for storage in a slot of the declared type.
// Callers must have checked AssignableTo first.
func (v Val) Coerce(t ValTy) Val {
	if v.Ty == t {
		return v
	}
	if t == TyCell {
		if c, err := v.AsCell(); err == nil {
			return CellVal(c)
		}
	}
	return v
}

// ----- symbol quoting -----

func isIdentSym(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		alpha := (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
		digit := b >= '0' && b <= '9'
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !digit {
			return false
		}
	}
	return true
}

// quoteSym renders a symbol's text for functor position: bare when it is a
// plain identifier, single-quoted otherwise ('*', 'hello world').
func quoteSym(s string) string {
	if isIdentSym(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// displaySym renders a symbol value: ":x" or ":'...'"
func displaySym(s string) string { return ":" + quoteSym(s) }
