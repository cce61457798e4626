// instr.go — instruction kinds, operands, and the program form.
//
// A program is an ordered list of instructions. Display syntax is also the
// parse syntax, one instruction per line: `get_structure A1, '*'/2`. Operand
// shapes are fixed per kind and table-driven, so parsing and rendering stay
// in lockstep.
package hpvm

import (
	"fmt"
	"strings"
)

type InstrKind uint8

const (
	ILabel InstrKind = iota
	IGetStructure
	IUnifyVariable
	IUnifyValue
	IGetVariable
	IGetValue
	IPutStructure
	IPutVariable
	IPutValue
	ISetVariable
	ISetValue
	ICall
	IExecute
	IProceed
)

type OperandKind uint8

const (
	OpReg     OperandKind = iota // register name, binds $N as that field
	OpFunctor                    // functor literal f/2
	OpLabel                      // functor naming a code label; resolved at dispatch
	OpCount                      // named unsigned count, rendered key=N
)

// Operand is one instruction argument.
type Operand struct {
	Kind OperandKind
	Reg  string
	Fn   Functor
	N    int
}

func (o Operand) String() string {
	switch o.Kind {
	case OpReg:
		return o.Reg
	case OpFunctor, OpLabel:
		return o.Fn.String()
	}
	return fmt.Sprintf("%d", o.N)
}

// Instr is one program instruction.
type Instr struct {
	Kind InstrKind
	Ops  []Operand
}

// ─────────────────────────────── shape table ────────────────────────────────

type opShape uint8

const (
	shapeReg opShape = iota
	shapeFunctor
	shapeLabel
	shapeCount
)

type slotSpec struct {
	shape opShape
	key   string // display key for shapeCount operands
}

type kindSpec struct {
	name  string
	slots []slotSpec
}

var instrSpecs = [...]kindSpec{
	ILabel:         {"label", []slotSpec{{shape: shapeFunctor}}},
	IGetStructure:  {"get_structure", []slotSpec{{shape: shapeReg}, {shape: shapeFunctor}}},
	IUnifyVariable: {"unify_variable", []slotSpec{{shape: shapeReg}}},
	IUnifyValue:    {"unify_value", []slotSpec{{shape: shapeReg}}},
	IGetVariable:   {"get_variable", []slotSpec{{shape: shapeReg}, {shape: shapeReg}}},
	IGetValue:      {"get_value", []slotSpec{{shape: shapeReg}, {shape: shapeReg}}},
	IPutStructure:  {"put_structure", []slotSpec{{shape: shapeReg}, {shape: shapeFunctor}}},
	IPutVariable:   {"put_variable", []slotSpec{{shape: shapeReg}, {shape: shapeReg}}},
	IPutValue:      {"put_value", []slotSpec{{shape: shapeReg}, {shape: shapeReg}}},
	ISetVariable:   {"set_variable", []slotSpec{{shape: shapeReg}}},
	ISetValue:      {"set_value", []slotSpec{{shape: shapeReg}}},
	ICall:          {"call", []slotSpec{{shape: shapeLabel}, {shape: shapeCount, key: "nvars"}}},
	IExecute:       {"execute", []slotSpec{{shape: shapeLabel}}},
	IProceed:       {"proceed", nil},
}

var kindByName = func() map[string]InstrKind {
	m := make(map[string]InstrKind, len(instrSpecs))
	for k, sp := range instrSpecs {
		m[sp.name] = InstrKind(k)
	}
	return m
}()

// Name returns the instruction's display name, which is also its script key.
func (k InstrKind) Name() string { return instrSpecs[k].name }

func (k InstrKind) String() string { return k.Name() }

// KindByName looks up an instruction kind from its display name.
func KindByName(name string) (InstrKind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

// InstrKinds lists every instruction kind in declaration order.
func InstrKinds() []InstrKind {
	ks := make([]InstrKind, len(instrSpecs))
	for i := range ks {
		ks[i] = InstrKind(i)
	}
	return ks
}

func (in Instr) String() string {
	sp := instrSpecs[in.Kind]
	if len(in.Ops) == 0 {
		return sp.name
	}
	parts := make([]string, len(in.Ops))
	for i, op := range in.Ops {
		if i < len(sp.slots) && sp.slots[i].shape == shapeCount {
			parts[i] = fmt.Sprintf("%s=%d", sp.slots[i].key, op.N)
			continue
		}
		parts[i] = op.String()
	}
	return sp.name + " " + strings.Join(parts, ", ")
}

// ──────────────────────────────── parsing ───────────────────────────────────

// ParseInstr parses one instruction in display syntax.
func ParseInstr(src string) (Instr, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return Instr{}, err
	}
	p := &parser{toks: toks}
	p.skipNewlines()
	name, err := p.need(ID, "expected an instruction name")
	if err != nil {
		return Instr{}, err
	}
	kind, ok := KindByName(name.Lexeme)
	if !ok {
		return Instr{}, &ParseError{Line: name.Line, Col: name.Col,
			Msg: fmt.Sprintf("unknown instruction `%s`", name.Lexeme)}
	}
	in := Instr{Kind: kind}
	for i, slot := range instrSpecs[kind].slots {
		if i > 0 {
			if _, err := p.need(COMMA, "expected `,` between operands"); err != nil {
				return Instr{}, err
			}
		}
		op, err := parseOperand(p, slot)
		if err != nil {
			return Instr{}, err
		}
		in.Ops = append(in.Ops, op)
	}
	p.skipNewlines()
	if !p.atEnd() {
		return Instr{}, p.errHere("trailing input after instruction")
	}
	return in, nil
}

func parseOperand(p *parser, slot slotSpec) (Operand, error) {
	switch slot.shape {
	case shapeReg:
		t, err := p.need(ID, "expected a register name")
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OpReg, Reg: t.Lexeme}, nil

	case shapeFunctor, shapeLabel:
		fn, err := parseFunctorOperand(p)
		if err != nil {
			return Operand{}, err
		}
		kind := OpFunctor
		if slot.shape == shapeLabel {
			kind = OpLabel
		}
		return Operand{Kind: kind, Fn: fn}, nil

	case shapeCount:
		key, err := p.need(ID, fmt.Sprintf("expected `%s=`", slot.key))
		if err != nil {
			return Operand{}, err
		}
		if key.Lexeme != slot.key {
			return Operand{}, &ParseError{Line: key.Line, Col: key.Col,
				Msg: fmt.Sprintf("expected `%s=`, got `%s`", slot.key, key.Lexeme)}
		}
		if _, err := p.need(EQ, "expected `=`"); err != nil {
			return Operand{}, err
		}
		n, err := p.need(UINT, "expected a count")
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OpCount, N: n.Literal.(int)}, nil
	}
	return Operand{}, p.errHere("bad operand shape")
}

func parseFunctorOperand(p *parser) (Functor, error) {
	t := p.peek()
	if t.Type != ID && t.Type != QUOTED {
		return Functor{}, p.errHere("expected a functor like f/2")
	}
	p.i++
	sym := t.Lexeme
	if t.Type == QUOTED {
		sym = t.Literal.(string)
	}
	if _, err := p.need(SLASH, "expected `/arity` after functor name"); err != nil {
		return Functor{}, err
	}
	ar, err := p.need(UINT, "expected arity after `/`")
	if err != nil {
		return Functor{}, err
	}
	return Functor{Sym: sym, Arity: ar.Literal.(int)}, nil
}

// ParseProgram parses one instruction per line, skipping blanks and comments.
func ParseProgram(lines []string) ([]Instr, error) {
	var prog []Instr
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		in, err := ParseInstr(trimmed)
		if err != nil {
			return nil, fmt.Errorf("program line %d: %w", i+1, err)
		}
		prog = append(prog, in)
	}
	return prog, nil
}

// ScanLabels maps each label instruction's functor to its own program index.
// Stepping a label is a plain advance; calls jump to the label and execution
// falls through into the body.
func ScanLabels(prog []Instr) (map[Functor]int, error) {
	labels := make(map[Functor]int)
	for i, in := range prog {
		if in.Kind != ILabel {
			continue
		}
		fn := in.Ops[0].Fn
		if _, dup := labels[fn]; dup {
			return nil, &SchemaError{Name: fn.String(), Reason: "duplicate label"}
		}
		labels[fn] = i
	}
	return labels, nil
}
