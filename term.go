// term.go — term model operations over the heap array field: dereference,
// bind, allocation and trailing. The heap itself belongs to the field store;
// everything here works by index.
package hpvm

import "fmt"

// HeapLen returns the number of allocated heap cells.
func (m *Machine) HeapLen() int {
	n, _ := m.store.Len(m.heapID)
	return n
}

// HeapCell reads the cell at addr.
func (m *Machine) HeapCell(addr CellRef) (Cell, error) {
	v, err := m.store.ArrayGet(m.heapID, int(addr))
	if err != nil {
		return Cell{}, err
	}
	return v.Cell, nil
}

// SetHeapCell overwrites the cell at addr without any binding check. This is
// the raw write used by `<addr>.* <- <cell>` assignments; scripts that want
// rebind protection use Bind.
func (m *Machine) SetHeapCell(addr CellRef, c Cell) error {
	return m.store.ArraySet(m.heapID, int(addr), CellVal(c))
}

// Deref follows Ref cells from addr until it reaches a non-Ref cell or a Ref
// that points to itself (the free-variable fixed point), and returns that
// terminal address. Ref chains are acyclic by construction; manual heap
// edits can break that, so a cycle is detected rather than looped on.
func (m *Machine) Deref(addr CellRef) (CellRef, error) {
	start := addr
	for steps := 0; ; steps++ {
		c, err := m.HeapCell(addr)
		if err != nil {
			return 0, err
		}
		if c.Kind != KindRef || c.Ref == addr {
			return addr, nil
		}
		if steps > m.HeapLen() {
			return 0, fmt.Errorf("dereference: Ref cycle detected starting at %s", start)
		}
		addr = c.Ref
	}
}

// Bind overwrites the cell at addr with c. Binding over a free
// (self-referencing) cell always succeeds; binding the identical value is a
// no-op; anything else is a RebindConflictError. Whether to trail the
// binding is the caller's decision.
func (m *Machine) Bind(addr CellRef, c Cell) error {
	old, err := m.HeapCell(addr)
	if err != nil {
		return err
	}
	if old == c {
		return nil
	}
	free := old.Kind == KindRef && old.Ref == addr
	if !free {
		return &RebindConflictError{Addr: addr, Old: old, New: c}
	}
	return m.SetHeapCell(addr, c)
}

// PushCell appends c to the heap and returns its address. This is the sole
// allocation path; the heap grows monotonically within a session. heap_ptr
// is synced to the new heap length, so immediately before a push `hp` names
// the address the pushed cell will occupy (push(Ref(hp)) allocates a fresh
// unbound variable).
func (m *Machine) PushCell(c Cell) (CellRef, error) {
	addr := CellRef(m.HeapLen())
	if err := m.store.Push(m.heapID, CellVal(c)); err != nil {
		return 0, err
	}
	if err := m.store.Set(m.hpID, CellRefVal(addr + 1)); err != nil {
		return 0, err
	}
	return addr, nil
}

// TrailAddr appends addr to the trail array for later undoing. The engine
// never decides when trailing is necessary; scripts do.
func (m *Machine) TrailAddr(addr CellRef) error {
	return m.store.Push(m.trailID, CellRefVal(addr))
}
