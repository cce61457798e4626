package hpvm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Session_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	a := newTestMachine(t)
	declareRegs(t, a, "A1", "A2")
	mustExec(t, a, "A1 <- push(Str(f/2, hp[+1].&))")
	mustExec(t, a, "push(Sym(:'hello world'))")
	mustExec(t, a, "push(Int(-3))")
	mustExec(t, a, "mode <- :write")
	mustExec(t, a, "ip <- 3")
	mustExec(t, a, "push(trail, @0)")
	_, err := a.Store().Declare("off", TyI32, nil)
	require.NoError(t, err)
	mustExec(t, a, "off <- -2")
	_, err = a.Store().Declare("entry", TyFunctor, nil)
	require.NoError(t, err)
	mustExec(t, a, "entry <- '*'/2")
	ipID, err := a.Store().Resolve("instr_ptr")
	require.NoError(t, err)
	require.NoError(t, a.Store().AddAlias(ipID, "pc"))

	require.NoError(t, SaveSession(path, a, "nano"))

	b := newTestMachine(t)
	editor, err := LoadSession(path, b)
	require.NoError(t, err)
	assert.Equal(t, "nano", editor)

	// Builtins took values and the extra alias; user fields were declared.
	assert.Equal(t, 3, b.IP())
	assert.Equal(t, "write", b.Mode())
	assert.Equal(t, UsizeVal(3), evalVal(t, b, "pc"))
	assert.Equal(t, CellRefVal(0), evalVal(t, b, "A1"))
	assert.Equal(t, I32Val(-2), evalVal(t, b, "off"))
	assert.Equal(t, FunctorVal(Functor{Sym: "*", Arity: 2}), evalVal(t, b, "entry"))
	_, _, err = b.ExecCommand("A2")
	var uie *UninitializedFieldError
	assert.ErrorAs(t, err, &uie, "unset fields come back unset")

	// Array contents survive in order, display syntax and all.
	require.Equal(t, 3, b.HeapLen())
	assert.Equal(t, StrCell(Functor{Sym: "f", Arity: 2}, 1), heapCell(t, b, 0))
	assert.Equal(t, SymCell("hello world"), heapCell(t, b, 1))
	assert.Equal(t, IntCell(-3), heapCell(t, b, 2))
	assert.Equal(t, CellRefVal(0), evalVal(t, b, "trail[0]"))
	assert.Equal(t, CellRefVal(3), evalVal(t, b, "hp"), "heap_ptr rides along as a saved value")
}

func Test_Session_SecondLoadIsIdempotentForAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	a := newTestMachine(t)
	require.NoError(t, SaveSession(path, a, ""))

	b := newTestMachine(t)
	_, err := LoadSession(path, b)
	require.NoError(t, err, "builtin aliases in the file already exist and are skipped")
}

func Test_Session_TypeConflictIsRefused(t *testing.T) {
	doc := "fields:\n" +
		"  - name: instr_ptr\n" +
		"    type: CellRef\n" +
		"    value: \"@2\"\n"
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadSession(path, newTestMachine(t))
	require.Error(t, err)
	var tme *TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Equal(t, "Usize", tme.Expected)
	assert.Contains(t, err.Error(), "instr_ptr")
}

func Test_Session_UnknownTypeName(t *testing.T) {
	doc := "fields:\n" +
		"  - name: weird\n" +
		"    type: Float\n"
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadSession(path, newTestMachine(t))
	require.ErrorContains(t, err, `unknown type name "Float"`)
}

func Test_Session_MissingFileReportsNotExist(t *testing.T) {
	_, err := LoadSession(filepath.Join(t.TempDir(), "absent.yaml"), newTestMachine(t))
	assert.True(t, os.IsNotExist(err), "callers decide whether a fresh start is fine")
}

func Test_Session_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: {not a list"), 0o644))

	_, err := LoadSession(path, newTestMachine(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session", "the error names the file's role")
}

func Test_Session_DefaultsSurviveTheTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	a := newTestMachine(t)
	def := SymVal("idle")
	_, err := a.Store().Declare("state", TySymbol, &def)
	require.NoError(t, err)
	mustExec(t, a, "state <- :busy")
	require.NoError(t, SaveSession(path, a, ""))

	b := newTestMachine(t)
	_, err = LoadSession(path, b)
	require.NoError(t, err)
	assert.Equal(t, SymVal("busy"), evalVal(t, b, "state"))

	b.Reset()
	assert.Equal(t, SymVal("idle"), evalVal(t, b, "state"), "the declared default came through")
}
