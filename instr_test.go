package hpvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Instr_DisplayParseRoundTrip(t *testing.T) {
	// One line per kind; display syntax is the parse syntax.
	for _, src := range []string{
		"label d/3",
		"get_structure A1, f/2",
		"unify_variable A2",
		"unify_value Y1",
		"get_variable Y1, A2",
		"get_value X4, A1",
		"put_structure A1, pair/2",
		"put_variable X4, A1",
		"put_value X4, A2",
		"set_variable A2",
		"set_value A2",
		"call d/3, nvars=3",
		"execute fin/0",
		"proceed",
	} {
		t.Run(src, func(t *testing.T) {
			in, err := ParseInstr(src)
			require.NoError(t, err)
			assert.Equal(t, src, in.String())
		})
	}

	// Non-identifier functor text stays quoted through the round trip.
	in, err := ParseInstr("get_structure A1, '*'/2")
	require.NoError(t, err)
	assert.Equal(t, "get_structure A1, '*'/2", in.String())
	assert.Equal(t, Functor{Sym: "*", Arity: 2}, in.Ops[1].Fn)
}

func Test_Instr_OperandKinds(t *testing.T) {
	in, err := ParseInstr("call d/3, nvars=2")
	require.NoError(t, err)
	require.Len(t, in.Ops, 2)
	assert.Equal(t, OpLabel, in.Ops[0].Kind, "call targets resolve as labels")
	assert.Equal(t, Functor{Sym: "d", Arity: 3}, in.Ops[0].Fn)
	assert.Equal(t, OpCount, in.Ops[1].Kind)
	assert.Equal(t, 2, in.Ops[1].N)

	in, err = ParseInstr("get_structure A1, f/2")
	require.NoError(t, err)
	assert.Equal(t, OpReg, in.Ops[0].Kind)
	assert.Equal(t, "A1", in.Ops[0].Reg)
	assert.Equal(t, OpFunctor, in.Ops[1].Kind, "get_structure matches a shape, not a label")
}

func Test_Instr_ParseErrors(t *testing.T) {
	for _, tc := range []struct {
		src string
		msg string
	}{
		{"flarp A1", "unknown instruction `flarp`"},
		{"get_structure", "expected a register name"},
		{"get_structure A1 f/2", "expected `,` between operands"},
		{"get_structure A1, f", "expected `/arity` after functor name"},
		{"get_structure A1, f/x", "expected arity after `/`"},
		{"get_structure A1, 3/2", "expected a functor like f/2"},
		{"call d/3, count=3", "expected `nvars=`, got `count`"},
		{"call d/3, nvars=x", "expected a count"},
		{"proceed A1", "trailing input after instruction"},
	} {
		t.Run(tc.src, func(t *testing.T) {
			_, err := ParseInstr(tc.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func Test_Instr_KindNames(t *testing.T) {
	kinds := InstrKinds()
	require.Len(t, kinds, 14)
	assert.Equal(t, ILabel, kinds[0])
	assert.Equal(t, IProceed, kinds[len(kinds)-1])

	for _, k := range kinds {
		got, ok := KindByName(k.Name())
		require.True(t, ok, "name %q", k.Name())
		assert.Equal(t, k, got)
	}

	_, ok := KindByName("get_structures")
	assert.False(t, ok)
}

func Test_Instr_ParseProgram(t *testing.T) {
	prog, err := ParseProgram([]string{
		"",
		"# head match",
		"  label d/3  ",
		"get_structure A1, '*'/2",
		"",
		"proceed",
	})
	require.NoError(t, err)
	require.Len(t, prog, 3, "blanks and comments are skipped")
	assert.Equal(t, ILabel, prog[0].Kind)
	assert.Equal(t, IProceed, prog[2].Kind)

	_, err = ParseProgram([]string{"proceed", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program line 2", "errors name the source line")
}

func Test_Instr_ScanLabels(t *testing.T) {
	prog, err := ParseProgram([]string{
		"label d/3",
		"proceed",
		"label d/1",
		"proceed",
	})
	require.NoError(t, err)

	labels, err := ScanLabels(prog)
	require.NoError(t, err)
	assert.Equal(t, map[Functor]int{
		{Sym: "d", Arity: 3}: 0,
		{Sym: "d", Arity: 1}: 2,
	}, labels, "same symbol with different arities names different entry points")
}

func Test_Instr_ScanLabels_RejectsDuplicates(t *testing.T) {
	prog, err := ParseProgram([]string{
		"label d/3",
		"proceed",
		"label d/3",
	})
	require.NoError(t, err)

	_, err = ScanLabels(prog)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "d/3", se.Name)
	assert.Equal(t, "duplicate label", se.Reason)
}
