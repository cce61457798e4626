// display.go — human-facing rendering of terms, fields and listings.
package hpvm

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderTerm renders the term rooted at a heap address in structure syntax:
// structures as f(...), symbols bare (quoted when needed), integers as
// numbers, and free variables as _N where N is their address.
func (m *Machine) RenderTerm(addr CellRef) (string, error) {
	// Raw heap edits can create argument cycles deref alone cannot see, so
	// rendering carries a budget.
	return m.renderTerm(addr, m.HeapLen()+8)
}

func (m *Machine) renderTerm(addr CellRef, budget int) (string, error) {
	if budget <= 0 {
		return "…", nil
	}
	end, err := m.Deref(addr)
	if err != nil {
		return "", err
	}
	c, err := m.HeapCell(end)
	if err != nil {
		return "", err
	}
	switch c.Kind {
	case KindRef:
		return "_" + strconv.Itoa(int(end)), nil
	case KindSym:
		return quoteSym(c.Sym), nil
	case KindInt:
		return strconv.Itoa(int(c.Int)), nil
	case KindStr:
		if c.Fn.Arity == 0 {
			return quoteSym(c.Fn.Sym), nil
		}
		parts := make([]string, c.Fn.Arity)
		for i := 0; i < c.Fn.Arity; i++ {
			s, err := m.renderTerm(c.Ref+CellRef(i), budget-1)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return quoteSym(c.Fn.Sym) + "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "?", nil
}

// DescribeFields renders one line per declared field, in declaration order.
func (m *Machine) DescribeFields() []string {
	infos := m.store.Fields()
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name
		if len(fi.Aliases) > 0 {
			name += " (" + strings.Join(fi.Aliases, ", ") + ")"
		}
		if fi.IsArray {
			out = append(out, fmt.Sprintf("%s : [%s; %d/%d]", name, fi.Ty, len(fi.Elems), fi.Cap))
			continue
		}
		val := "(unset)"
		if fi.Val != nil {
			val = fi.Val.String()
		}
		out = append(out, fmt.Sprintf("%s : %s = %s", name, fi.Ty, val))
	}
	return out
}

// HeapLines renders every heap cell with its address and the term readable
// from that address.
func (m *Machine) HeapLines() ([]string, error) {
	n := m.HeapLen()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		addr := CellRef(i)
		c, err := m.HeapCell(addr)
		if err != nil {
			return nil, err
		}
		term, err := m.RenderTerm(addr)
		if err != nil {
			term = "?"
		}
		out = append(out, fmt.Sprintf("%4s  %-24s %s", addr, c, term))
	}
	return out, nil
}

// TrailLines renders the trail newest-last.
func (m *Machine) TrailLines() ([]string, error) {
	n, err := m.store.Len(m.trailID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v, err := m.store.ArrayGet(m.trailID, i)
		if err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("%4d  %s", i, v))
	}
	return out, nil
}

// ProgramLines renders the loaded program with an arrow at the pointer.
func (m *Machine) ProgramLines() []string {
	cur := m.IP()
	out := make([]string, 0, len(m.program))
	for i, in := range m.program {
		mark := "  "
		if i == cur {
			mark = "->"
		}
		out = append(out, fmt.Sprintf("%s %3d  %s", mark, i, in))
	}
	return out
}
