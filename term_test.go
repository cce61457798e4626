package hpvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushCells(t *testing.T, m *Machine, cells ...Cell) []CellRef {
	t.Helper()
	addrs := make([]CellRef, len(cells))
	for i, c := range cells {
		addr, err := m.PushCell(c)
		require.NoError(t, err, "push %s", c)
		addrs[i] = addr
	}
	return addrs
}

func Test_Term_PushCell_SyncsHeapPointer(t *testing.T) {
	m := newTestMachine(t)

	addr, err := m.PushCell(SymCell("a"))
	require.NoError(t, err)
	assert.Equal(t, CellRef(0), addr)
	assert.Equal(t, 1, m.HeapLen())
	assert.Equal(t, CellRefVal(1), evalVal(t, m, "hp"), "hp names the next free cell")

	addr, err = m.PushCell(IntCell(42))
	require.NoError(t, err)
	assert.Equal(t, CellRef(1), addr)

	c, err := m.HeapCell(1)
	require.NoError(t, err)
	assert.Equal(t, IntCell(42), c)

	_, err = m.HeapCell(2)
	var ie *IndexError
	require.ErrorAs(t, err, &ie, "unallocated cells are unreadable")
}

func Test_Term_Deref_StopsAtFixedPoint(t *testing.T) {
	m := newTestMachine(t)
	// @0 free, @1 -> @0, @2 -> @1, @3 bound symbol, @4 -> @3
	pushCells(t, m,
		RefCell(0),
		RefCell(0),
		RefCell(1),
		SymCell("a"),
		RefCell(3),
	)

	for _, tc := range []struct {
		start, want CellRef
	}{
		{0, 0}, // a free variable derefs to itself
		{1, 0},
		{2, 0}, // chains collapse to the free cell
		{3, 3}, // bound cells deref to themselves
		{4, 3},
	} {
		got, err := m.Deref(tc.start)
		require.NoError(t, err, "deref @%d", tc.start)
		assert.Equal(t, tc.want, got, "deref @%d", tc.start)
	}
}

func Test_Term_Deref_DetectsManualCycles(t *testing.T) {
	m := newTestMachine(t)
	pushCells(t, m, RefCell(1), RefCell(0))

	_, err := m.Deref(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func Test_Term_Bind(t *testing.T) {
	m := newTestMachine(t)
	pushCells(t, m, RefCell(0), SymCell("a"))

	require.NoError(t, m.Bind(0, SymCell("b")), "free cells accept any binding")
	c, err := m.HeapCell(0)
	require.NoError(t, err)
	assert.Equal(t, SymCell("b"), c)

	require.NoError(t, m.Bind(1, SymCell("a")), "rebinding the identical value is a no-op")

	err = m.Bind(1, SymCell("b"))
	var rbe *RebindConflictError
	require.ErrorAs(t, err, &rbe)
	assert.Equal(t, CellRef(1), rbe.Addr)
	assert.Equal(t, SymCell("a"), rbe.Old)
	assert.Equal(t, SymCell("b"), rbe.New)

	c, err = m.HeapCell(1)
	require.NoError(t, err)
	assert.Equal(t, SymCell("a"), c, "a refused bind changes nothing")
}

func Test_Term_TrailAddr(t *testing.T) {
	m := newTestMachine(t, WithTrailCapacity(2))

	require.NoError(t, m.TrailAddr(3))
	require.NoError(t, m.TrailAddr(7))
	err := m.TrailAddr(9)
	var ce *CapacityError
	require.ErrorAs(t, err, &ce, "the trail has a fixed capacity too")

	lines, err := m.TrailLines()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "@3")
	assert.Contains(t, lines[1], "@7")
}

func Test_Term_HeapCapacity(t *testing.T) {
	m := newTestMachine(t, WithHeapCapacity(2))
	pushCells(t, m, SymCell("a"), SymCell("b"))

	_, err := m.PushCell(SymCell("c"))
	var ce *CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "heap", ce.Array)
	assert.Equal(t, 2, m.HeapLen())
}
