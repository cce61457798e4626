package hpvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderAt(t *testing.T, m *Machine, addr int) string {
	t.Helper()
	s, err := m.RenderTerm(CellRef(addr))
	require.NoError(t, err)
	return s
}

func Test_Display_RenderTerm(t *testing.T) {
	m := newTestMachine(t)
	mustExec(t, m, "push(Ref(hp))")                 // @0 free
	mustExec(t, m, "push(Sym(:a))")                 // @1
	mustExec(t, m, "push(Int(-7))")                 // @2
	mustExec(t, m, "push(Str(point/2, hp[+1].&))")  // @3 point(@4, @5)
	mustExec(t, m, "push(Ref(@1))")                 // @4 -> a
	mustExec(t, m, "push(Ref(@0))")                 // @5 -> free @0
	mustExec(t, m, "push(Str('+'/0, @0))")          // @6 arity 0 ignores arg0
	mustExec(t, m, "push(Sym(:'two words'))")       // @7

	assert.Equal(t, "_0", renderAt(t, m, 0), "free variables render by address")
	assert.Equal(t, "a", renderAt(t, m, 1))
	assert.Equal(t, "-7", renderAt(t, m, 2))
	assert.Equal(t, "point(a, _0)", renderAt(t, m, 3))
	assert.Equal(t, "a", renderAt(t, m, 4), "references render their target")
	assert.Equal(t, "'+'", renderAt(t, m, 6))
	assert.Equal(t, "'two words'", renderAt(t, m, 7))
}

func Test_Display_RenderTerm_BudgetsManualCycles(t *testing.T) {
	m := newTestMachine(t)
	// A structure whose argument leads back to itself. Deref cannot see this
	// cycle (the chain ends at the Str cell), so the budget has to cut it.
	mustExec(t, m, "push(Str(f/1, hp[+1].&))")
	mustExec(t, m, "push(Ref(@0))")

	term := renderAt(t, m, 0)
	assert.True(t, strings.HasPrefix(term, "f(f("), "the cycle unrolls a few levels")
	assert.Contains(t, term, "…", "and then gets cut off")
}

func Test_Display_DescribeFields(t *testing.T) {
	m := newTestMachine(t)
	declareRegs(t, m, "A1")
	mustExec(t, m, "push(Sym(:a))")
	mustExec(t, m, "push(Sym(:b))")
	mustExec(t, m, "push(trail, @0)")

	lines := m.DescribeFields()
	require.Len(t, lines, 8, "five builtin scalars, two arrays, one register")
	assert.Equal(t, "instr_ptr (ip, P) : Usize = 0", lines[0])
	assert.Equal(t, "heap_ptr (hp, H) : CellRef = @2", lines[1])
	assert.Equal(t, "mode : Symbol = :read", lines[4])
	assert.Equal(t, "heap : [Cell; 2/1024]", lines[5])
	assert.Equal(t, "trail (tr) : [CellRef; 1/128]", lines[6])
	assert.Equal(t, "A1 : CellRef = (unset)", lines[7])
}

func Test_Display_HeapAndTrailLines(t *testing.T) {
	m := newTestMachine(t)
	mustExec(t, m, "push(Str(f/1, hp[+1].&))")
	mustExec(t, m, "push(Sym(:a))")
	mustExec(t, m, "push(trail, @1)")

	heap, err := m.HeapLines()
	require.NoError(t, err)
	require.Len(t, heap, 2)
	assert.Contains(t, heap[0], "@0")
	assert.Contains(t, heap[0], "Str(f/1, @1)")
	assert.Contains(t, heap[0], "f(a)", "every cell shows the term readable from it")
	assert.Contains(t, heap[1], "Sym(:a)")

	trail, err := m.TrailLines()
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Contains(t, trail[0], "@1")
}

func Test_Display_ProgramLines_MarkThePointer(t *testing.T) {
	m := newTestMachine(t)
	loadLines(t, m, "label f/0", "proceed")

	lines := m.ProgramLines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "->"), "arrow sits on the current instruction")
	assert.True(t, strings.HasPrefix(lines[1], "  "))
	assert.Contains(t, lines[0], "label f/0")

	require.NoError(t, m.Advance())
	lines = m.ProgramLines()
	assert.True(t, strings.HasPrefix(lines[1], "->"), "the arrow follows the pointer")
}
