package hpvm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadBundledScenario(t *testing.T, name string) (*Machine, *Scenario) {
	t.Helper()
	sc, err := LoadScenario(filepath.Join("scenarios", name))
	require.NoError(t, err, "bundled scenario %s must load", name)
	m := newTestMachine(t)
	require.NoError(t, sc.Apply(m), "bundled scenario %s must apply", name)
	return m, sc
}

func Test_Scenario_CallReturn_RunsToTheEnd(t *testing.T) {
	m, sc := loadBundledScenario(t, "call_return.yaml")
	assert.NotEmpty(t, sc.Description)
	require.Len(t, m.Program(), 6)
	require.Equal(t, 1, m.HeapLen(), "setup allocated the argument variable")

	out, steps, err := m.RunToCompletion()
	require.NoError(t, err)
	assert.Equal(t, Advanced, out)
	assert.Equal(t, 6, steps)
	assert.True(t, m.Finished())

	assert.Equal(t, UsizeVal(1), evalVal(t, m, "cp"), "call saved the return address")
	term, err := m.RenderTerm(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", term, "the procedure bound its argument")
}

func Test_Scenario_Differentiation_HeadMatch(t *testing.T) {
	m, _ := loadBundledScenario(t, "differentiation.yaml")
	require.Len(t, m.Program(), 19)

	// The setup built the query d(x*y, x, D).
	require.Equal(t, 5, m.HeapLen())
	assert.Equal(t, StrCell(Functor{Sym: "*", Arity: 2}, 1), heapCell(t, m, 0))
	term, err := m.RenderTerm(0)
	require.NoError(t, err)
	assert.Equal(t, "'*'(x, y)", term)

	// Matching the existing structure walks it in read mode.
	stepExpect(t, m, Advanced) // label d/3
	stepExpect(t, m, Advanced) // get_structure A1, '*'/2
	assert.Equal(t, "read", m.Mode())
	stepExpect(t, m, Advanced) // unify_variable A1
	stepExpect(t, m, Advanced) // unify_variable Y1
	assert.Equal(t, CellRefVal(1), evalVal(t, m, "A1"), "A1 reused for the first argument")
	assert.Equal(t, CellRefVal(2), evalVal(t, m, "Y1"))
	assert.Equal(t, CellRefVal(3), evalVal(t, m, "S"), "cursor walked past both arguments")

	// The rest of the clause builds the answer skeleton, calls itself on
	// d(x, x, DU), and fails there: x is not a product.
	out, steps, err := m.RunToCompletion()
	require.NoError(t, err)
	assert.Equal(t, MatchFailed, out)
	assert.Equal(t, 13, steps)
	assert.Equal(t, 1, m.IP(), "failure leaves the pointer on the mismatching head")
	assert.False(t, m.Finished())

	// D was bound to DU*y + x*DV with both derivatives still free.
	term, err = m.RenderTerm(4)
	require.NoError(t, err)
	assert.Equal(t, "'+'('*'(_9, y), '*'(x, _13))", term)

	// Three bindings were trailed: D and the two argument variables.
	trail, err := m.TrailLines()
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Contains(t, trail[0], "@4")
	assert.Contains(t, trail[1], "@6")
	assert.Contains(t, trail[2], "@7")
}

func Test_Scenario_ApplyReportsSetupLine(t *testing.T) {
	sc := &Scenario{Setup: []string{"mode <- :write", "mode <- :sideways"}}
	err := sc.Apply(newTestMachine(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup line 2")
	assert.Contains(t, err.Error(), "mode <- :sideways")
}

func Test_Scenario_ApplyDeclaresFieldsBeforeSetup(t *testing.T) {
	sc := &Scenario{
		Fields:  []sessionField{{Name: "A1", Type: "CellRef"}},
		Setup:   []string{"A1 <- push(Ref(hp))"},
		Program: []string{"get_structure A1, f/1"},
	}
	m := newTestMachine(t)
	require.NoError(t, sc.Apply(m))
	assert.Equal(t, CellRefVal(0), evalVal(t, m, "A1"))
	assert.Len(t, m.Program(), 1)
	assert.Equal(t, 0, m.IP(), "loading the program rewinds the pointer")
}

func Test_Scenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func Test_Scenario_BadProgramLine(t *testing.T) {
	sc := &Scenario{Program: []string{"proceed", "warble A1"}}
	err := sc.Apply(newTestMachine(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program line 2")
}
