package hpvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func declScalar(t *testing.T, st *Store, name string, ty ValTy, def *Val, aliases ...string) FieldID {
	t.Helper()
	id, err := st.Declare(name, ty, def, aliases...)
	require.NoError(t, err, "declare %s", name)
	return id
}

func Test_Store_AliasesResolveToSameField(t *testing.T) {
	st := NewStore()
	def := UsizeVal(0)
	id := declScalar(t, st, "instr_ptr", TyUsize, &def, "ip", "P")

	for _, name := range []string{"instr_ptr", "ip", "P"} {
		got, err := st.Resolve(name)
		require.NoError(t, err, "resolve %s", name)
		assert.Equal(t, id, got)
	}

	require.NoError(t, st.Set(id, UsizeVal(7)))
	via, err := st.Resolve("P")
	require.NoError(t, err)
	v, err := st.Get(via)
	require.NoError(t, err)
	assert.Equal(t, UsizeVal(7), v, "writes through any name are visible through all")
}

func Test_Store_NameCollisions(t *testing.T) {
	st := NewStore()
	declScalar(t, st, "count", TyUsize, nil, "n")

	for _, tc := range []struct {
		name    string
		declare func() error
	}{
		{"duplicate canonical", func() error {
			_, err := st.Declare("count", TyUsize, nil)
			return err
		}},
		{"alias shadowing canonical", func() error {
			_, err := st.Declare("other", TyUsize, nil, "count")
			return err
		}},
		{"canonical shadowing alias", func() error {
			_, err := st.Declare("n", TyUsize, nil)
			return err
		}},
		{"alias repeated in one declaration", func() error {
			_, err := st.Declare("pair", TyUsize, nil, "two", "two")
			return err
		}},
		{"array alias shadowing canonical", func() error {
			_, err := st.DeclareArray("log", TyCell, 4, "count")
			return err
		}},
		{"invalid name", func() error {
			_, err := st.Declare("9lives", TyUsize, nil)
			return err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.declare()
			var se *SchemaError
			require.ErrorAs(t, err, &se)
		})
	}

	// Refused declarations register nothing, not even the names that were
	// checked before the offending one.
	for _, name := range []string{"other", "pair", "two", "log"} {
		_, err := st.Resolve(name)
		var ufe *UnknownFieldError
		require.ErrorAs(t, err, &ufe, "resolve %s", name)
	}

	// And the names stay free for a later, valid declaration.
	id, err := st.Declare("other", TyUsize, nil)
	require.NoError(t, err)
	require.NoError(t, st.Set(id, UsizeVal(3)))
	v, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, UsizeVal(3), v)
}

func Test_Store_UnknownAndUninitialized(t *testing.T) {
	st := NewStore()
	id := declScalar(t, st, "A1", TyCellRef, nil)

	_, err := st.Resolve("A2")
	var ufe *UnknownFieldError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "A2", ufe.Name)

	_, err = st.Get(id)
	var uie *UninitializedFieldError
	require.ErrorAs(t, err, &uie, "no default means unset until first write")

	require.NoError(t, st.Set(id, CellRefVal(3)))
	v, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, CellRefVal(3), v)
}

func Test_Store_SetEnforcesDeclaredType(t *testing.T) {
	st := NewStore()
	id := declScalar(t, st, "A1", TyCellRef, nil)

	err := st.Set(id, SymVal("x"))
	var tme *TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Equal(t, "CellRef", tme.Expected)

	// Cell slots accept anything with a cell form.
	cellID := declScalar(t, st, "scratch", TyCell, nil)
	require.NoError(t, st.Set(cellID, CellRefVal(2)), "a bare address stores as a Ref cell")
	v, err := st.Get(cellID)
	require.NoError(t, err)
	assert.Equal(t, CellVal(RefCell(2)), v)
}

func Test_Store_ArrayPushAndCapacity(t *testing.T) {
	st := NewStore()
	id, err := st.DeclareArray("trail", TyCellRef, 2, "tr")
	require.NoError(t, err)

	require.NoError(t, st.Push(id, CellRefVal(0)))
	require.NoError(t, st.Push(id, CellRefVal(5)))

	err = st.Push(id, CellRefVal(9))
	var ce *CapacityError
	require.ErrorAs(t, err, &ce, "arrays refuse to grow past their capacity")
	assert.Equal(t, "trail", ce.Array)
	assert.Equal(t, 2, ce.Cap)

	n, err := st.Len(id)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the failed push added nothing")

	v, err := st.ArrayGet(id, 1)
	require.NoError(t, err)
	assert.Equal(t, CellRefVal(5), v)

	_, err = st.ArrayGet(id, 2)
	var ie *IndexError
	require.ErrorAs(t, err, &ie, "reads past the logical length are refused")

	require.NoError(t, st.ArraySet(id, 0, CellRefVal(7)))
	err = st.ArraySet(id, 5, CellRefVal(7))
	require.ErrorAs(t, err, &ie, "writes cannot invent elements")
}

func Test_Store_AliasManagement(t *testing.T) {
	st := NewStore()
	id := declScalar(t, st, "heap_ptr", TyCellRef, nil, "hp")

	require.NoError(t, st.AddAlias(id, "H"))
	got, err := st.Resolve("H")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	err = st.AddAlias(id, "hp")
	var se *SchemaError
	require.ErrorAs(t, err, &se, "aliases share the one namespace")

	require.NoError(t, st.RemoveAlias("hp"))
	_, err = st.Resolve("hp")
	assert.Error(t, err, "removed aliases stop resolving")

	err = st.RemoveAlias("heap_ptr")
	require.ErrorAs(t, err, &se, "canonical names are not aliases")
	_, err = st.Resolve("heap_ptr")
	assert.NoError(t, err)
}

func Test_Store_ResetRestoresDeclaredState(t *testing.T) {
	st := NewStore()
	def := SymVal("read")
	modeID := declScalar(t, st, "mode", TySymbol, &def)
	regID := declScalar(t, st, "A1", TyCellRef, nil)
	arrID, err := st.DeclareArray("heap", TyCell, 8)
	require.NoError(t, err)

	require.NoError(t, st.Set(modeID, SymVal("write")))
	require.NoError(t, st.Set(regID, CellRefVal(4)))
	require.NoError(t, st.Push(arrID, CellVal(SymCell("a"))))

	st.Reset()

	v, err := st.Get(modeID)
	require.NoError(t, err)
	assert.Equal(t, SymVal("read"), v, "defaults come back")

	_, err = st.Get(regID)
	var uie *UninitializedFieldError
	require.ErrorAs(t, err, &uie, "defaultless fields unset")

	n, err := st.Len(arrID)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "arrays empty")
	assert.Equal(t, 8, st.Cap(arrID), "capacity survives")
}

func Test_Store_FieldsSnapshot(t *testing.T) {
	st := NewStore()
	def := UsizeVal(0)
	declScalar(t, st, "instr_ptr", TyUsize, &def, "ip")
	_, err := st.DeclareArray("heap", TyCell, 4)
	require.NoError(t, err)

	infos := st.Fields()
	require.Len(t, infos, 2)

	assert.Equal(t, "instr_ptr", infos[0].Name)
	assert.Equal(t, []string{"ip"}, infos[0].Aliases)
	assert.False(t, infos[0].IsArray)
	require.NotNil(t, infos[0].Default)
	assert.Equal(t, UsizeVal(0), *infos[0].Default)

	assert.Equal(t, "heap", infos[1].Name)
	assert.True(t, infos[1].IsArray)
	assert.Equal(t, 4, infos[1].Cap)
	assert.Empty(t, infos[1].Elems)
}
