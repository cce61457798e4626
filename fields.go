// fields.go — the typed field store: named scalar slots and fixed-capacity
// arrays, with aliasing, defaults and reset. The store exclusively owns all
// cell values and array contents; the term model (term.go) operates on the
// heap array purely by index.
package hpvm

import "fmt"

// FieldID identifies a declared field or array. Resolving any of a field's
// names (canonical or alias) yields the same FieldID.
type FieldID int

type slotKind uint8

const (
	slotScalar slotKind = iota
	slotArray
)

type slot struct {
	name    string
	aliases []string
	kind    slotKind
	ty      ValTy // scalar type, or element type for arrays
	def     *Val  // scalars only
	val     Val
	set     bool
	cap     int // arrays only
	arr     []Val
}

// Store holds every declared field and array. Field names and aliases share
// one namespace; duplicates are schema errors.
type Store struct {
	slots []slot
	names map[string]FieldID
}

func NewStore() *Store {
	return &Store{names: make(map[string]FieldID)}
}

func (s *Store) register(name string, id FieldID) error {
	if !isIdentSym(name) {
		return &SchemaError{Name: name, Reason: "not a valid field name"}
	}
	if prev, ok := s.names[name]; ok {
		return &SchemaError{Name: name,
			Reason: fmt.Sprintf("already registered (names `%s`)", s.slots[prev].name)}
	}
	s.names[name] = id
	return nil
}

// checkNames validates a whole declaration's names before any is registered,
// so a refused declaration leaves the store untouched.
func (s *Store) checkNames(name string, aliases []string) error {
	seen := make(map[string]bool, 1+len(aliases))
	for _, n := range append([]string{name}, aliases...) {
		if !isIdentSym(n) {
			return &SchemaError{Name: n, Reason: "not a valid field name"}
		}
		if prev, ok := s.names[n]; ok {
			return &SchemaError{Name: n,
				Reason: fmt.Sprintf("already registered (names `%s`)", s.slots[prev].name)}
		}
		if seen[n] {
			return &SchemaError{Name: n, Reason: "repeated in one declaration"}
		}
		seen[n] = true
	}
	return nil
}

// Declare adds a scalar field. The default, when present, must match the
// declared type; it becomes the field's value immediately and again on every
// Reset.
func (s *Store) Declare(name string, ty ValTy, def *Val, aliases ...string) (FieldID, error) {
	if def != nil && !def.AssignableTo(ty) {
		return 0, &SchemaError{Name: name,
			Reason: fmt.Sprintf("default `%s` is not a %s", def, ty)}
	}
	if err := s.checkNames(name, aliases); err != nil {
		return 0, err
	}
	id := FieldID(len(s.slots))
	s.names[name] = id
	for _, a := range aliases {
		s.names[a] = id
	}
	sl := slot{name: name, aliases: aliases, kind: slotScalar, ty: ty}
	if def != nil {
		d := def.Coerce(ty)
		sl.def = &d
		sl.val = d
		sl.set = true
	}
	s.slots = append(s.slots, sl)
	return id, nil
}

// DeclareArray adds a fixed-capacity array field with the given element
// type. Arrays start empty and are cleared by Reset.
func (s *Store) DeclareArray(name string, elem ValTy, capacity int, aliases ...string) (FieldID, error) {
	if capacity < 1 {
		return 0, &SchemaError{Name: name, Reason: fmt.Sprintf("capacity %d is not positive", capacity)}
	}
	if err := s.checkNames(name, aliases); err != nil {
		return 0, err
	}
	id := FieldID(len(s.slots))
	s.names[name] = id
	for _, a := range aliases {
		s.names[a] = id
	}
	s.slots = append(s.slots, slot{
		name: name, aliases: aliases, kind: slotArray, ty: elem, cap: capacity,
	})
	return id, nil
}

// Resolve maps a canonical name or alias to its FieldID.
func (s *Store) Resolve(name string) (FieldID, error) {
	id, ok := s.names[name]
	if !ok {
		return 0, &UnknownFieldError{Name: name}
	}
	return id, nil
}

// Name returns the canonical name for an id.
func (s *Store) Name(id FieldID) string { return s.slots[id].name }

// IsArray reports whether id names an array field.
func (s *Store) IsArray(id FieldID) bool { return s.slots[id].kind == slotArray }

// Ty returns the declared type (element type for arrays).
func (s *Store) Ty(id FieldID) ValTy { return s.slots[id].ty }

// Get reads a scalar field's value.
func (s *Store) Get(id FieldID) (Val, error) {
	sl := &s.slots[id]
	if sl.kind != slotScalar {
		return Val{}, &TypeMismatchError{Expected: "scalar field", Received: "array",
			Expr: sl.name}
	}
	if !sl.set {
		return Val{}, &UninitializedFieldError{Name: sl.name}
	}
	return sl.val, nil
}

// Set writes a scalar field's value, enforcing the declared type.
func (s *Store) Set(id FieldID, v Val) error {
	sl := &s.slots[id]
	if sl.kind != slotScalar {
		return &TypeMismatchError{Expected: "scalar field", Received: "array", Expr: sl.name}
	}
	if !v.AssignableTo(sl.ty) {
		return &TypeMismatchError{Expected: sl.ty.String(), Received: v.Ty.String(),
			Expr: fmt.Sprintf("%s <- %s", sl.name, v)}
	}
	sl.val = v.Coerce(sl.ty)
	sl.set = true
	return nil
}

// Push appends to an array field. Fails with CapacityError past the declared
// capacity rather than growing silently.
func (s *Store) Push(id FieldID, v Val) error {
	sl := &s.slots[id]
	if sl.kind != slotArray {
		return &TypeMismatchError{Expected: "array field", Received: "scalar", Expr: sl.name}
	}
	if !v.AssignableTo(sl.ty) {
		return &TypeMismatchError{Expected: sl.ty.String(), Received: v.Ty.String(),
			Expr: fmt.Sprintf("push(%s, %s)", sl.name, v)}
	}
	if len(sl.arr) >= sl.cap {
		return &CapacityError{Array: sl.name, Cap: sl.cap}
	}
	sl.arr = append(sl.arr, v.Coerce(sl.ty))
	return nil
}

// ArrayGet reads one element of an array field.
func (s *Store) ArrayGet(id FieldID, i int) (Val, error) {
	sl := &s.slots[id]
	if sl.kind != slotArray {
		return Val{}, &TypeMismatchError{Expected: "array field", Received: "scalar", Expr: sl.name}
	}
	if i < 0 || i >= len(sl.arr) {
		return Val{}, &IndexError{Array: sl.name, Index: i, Len: len(sl.arr)}
	}
	return sl.arr[i], nil
}

// ArraySet overwrites one existing element of an array field. New elements
// come only from Push.
func (s *Store) ArraySet(id FieldID, i int, v Val) error {
	sl := &s.slots[id]
	if sl.kind != slotArray {
		return &TypeMismatchError{Expected: "array field", Received: "scalar", Expr: sl.name}
	}
	if i < 0 || i >= len(sl.arr) {
		return &IndexError{Array: sl.name, Index: i, Len: len(sl.arr)}
	}
	if !v.AssignableTo(sl.ty) {
		return &TypeMismatchError{Expected: sl.ty.String(), Received: v.Ty.String(),
			Expr: fmt.Sprintf("%s[%d] <- %s", sl.name, i, v)}
	}
	sl.arr[i] = v.Coerce(sl.ty)
	return nil
}

// Len returns an array field's logical length.
func (s *Store) Len(id FieldID) (int, error) {
	sl := &s.slots[id]
	if sl.kind != slotArray {
		return 0, &TypeMismatchError{Expected: "array field", Received: "scalar", Expr: sl.name}
	}
	return len(sl.arr), nil
}

// Cap returns an array field's declared capacity.
func (s *Store) Cap(id FieldID) int { return s.slots[id].cap }

// AddAlias registers an extra alias for an existing field.
func (s *Store) AddAlias(id FieldID, alias string) error {
	if err := s.register(alias, id); err != nil {
		return err
	}
	s.slots[id].aliases = append(s.slots[id].aliases, alias)
	return nil
}

// RemoveAlias drops an alias. Canonical names cannot be removed.
func (s *Store) RemoveAlias(alias string) error {
	id, ok := s.names[alias]
	if !ok {
		return &UnknownFieldError{Name: alias}
	}
	sl := &s.slots[id]
	if sl.name == alias {
		return &SchemaError{Name: alias, Reason: "is a canonical field name, not an alias"}
	}
	delete(s.names, alias)
	for i, a := range sl.aliases {
		if a == alias {
			sl.aliases = append(sl.aliases[:i], sl.aliases[i+1:]...)
			break
		}
	}
	return nil
}

// Reset restores every scalar to its declared default (or unset) and clears
// every array.
func (s *Store) Reset() {
	for i := range s.slots {
		sl := &s.slots[i]
		switch sl.kind {
		case slotScalar:
			if sl.def != nil {
				sl.val = *sl.def
				sl.set = true
			} else {
				sl.val = Val{}
				sl.set = false
			}
		case slotArray:
			sl.arr = sl.arr[:0]
		}
	}
}

// FieldInfo is a read-only snapshot of one declared field, for listings and
// persistence.
type FieldInfo struct {
	ID      FieldID
	Name    string
	Aliases []string
	IsArray bool
	Ty      ValTy
	Default *Val  // scalars; nil when none
	Val     *Val  // scalars; nil when unset
	Cap     int   // arrays
	Elems   []Val // arrays; copy of current contents
}

// Fields returns snapshots of every declared field in declaration order.
func (s *Store) Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(s.slots))
	for id := range s.slots {
		sl := &s.slots[id]
		info := FieldInfo{
			ID:      FieldID(id),
			Name:    sl.name,
			Aliases: append([]string(nil), sl.aliases...),
			IsArray: sl.kind == slotArray,
			Ty:      sl.ty,
			Cap:     sl.cap,
		}
		if sl.kind == slotScalar {
			if sl.def != nil {
				d := *sl.def
				info.Default = &d
			}
			if sl.set {
				v := sl.val
				info.Val = &v
			}
		} else {
			info.Elems = append([]Val(nil), sl.arr...)
		}
		out = append(out, info)
	}
	return out
}
