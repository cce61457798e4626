// machine.go — the machine: field store, program, and the step dispatcher.
//
// OVERVIEW
// --------
// A Machine owns every piece of mutable state: the field store (builtin
// registers, the heap and trail arrays, any scenario-declared fields), the
// loaded program with its label map, the instruction scripts, and the
// classifier that answers ask(e). Step() executes exactly one instruction by
// running its script and mapping the script's control signal to an Outcome.
//
// Step() is the sole suspension point. Control returns to the surrounding
// session after every instruction so state can be inspected and scripts
// edited between steps. Everything is single-threaded; nothing here locks.
package hpvm

import (
	"fmt"
	"io"
	"log/slog"
)

// Outcome classifies what one Step did. Match failure and unimplemented
// scripts are outcomes, not errors: the session decides what to do next.
type Outcome uint8

const (
	Advanced       Outcome = iota // script signalled next; pointer moved past the instruction
	Jumped                        // script transferred control to a code address
	Paused                        // script ended without a signal; pointer wherever the script left it
	MatchFailed                   // script signalled fail (the simulated program would backtrack)
	NotImplemented                // script signalled todo, or no script exists for the kind
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case Jumped:
		return "jumped"
	case Paused:
		return "paused"
	case MatchFailed:
		return "match failed"
	case NotImplemented:
		return "not implemented"
	}
	return "?"
}

// Machine is one interactive session's state.
type Machine struct {
	store *Store

	ipID, hpID, spID, cpID, modeID FieldID
	heapID, trailID                FieldID

	program []Instr
	labels  map[Functor]int

	scripts    map[InstrKind]*Script
	scriptDir  string
	classifier Classifier
	echo       func(Val)

	shellTmps map[string]Val

	heapCap  int
	trailCap int
	log      *slog.Logger
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithClassifier selects who answers ask(e) for this session.
func WithClassifier(c Classifier) Option { return func(m *Machine) { m.classifier = c } }

// WithScriptDir overlays built-in scripts with <kind>.md files from dir.
func WithScriptDir(dir string) Option { return func(m *Machine) { m.scriptDir = dir } }

// WithEchoSink receives values produced by bare expression statements inside
// instruction scripts. Without a sink those values are dropped.
func WithEchoSink(fn func(Val)) Option { return func(m *Machine) { m.echo = fn } }

// WithLogger routes step tracing. The default logger discards everything.
func WithLogger(l *slog.Logger) Option { return func(m *Machine) { m.log = l } }

// WithHeapCapacity sizes the heap array.
func WithHeapCapacity(n int) Option { return func(m *Machine) { m.heapCap = n } }

// WithTrailCapacity sizes the trail array.
func WithTrailCapacity(n int) Option { return func(m *Machine) { m.trailCap = n } }

// NewMachine builds a machine with the builtin fields declared and the
// instruction scripts loaded.
func NewMachine(opts ...Option) (*Machine, error) {
	m := &Machine{
		classifier: AutoClassifier{},
		shellTmps:  map[string]Val{},
		heapCap:    1024,
		trailCap:   128,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.store = NewStore()
	if err := m.declareBuiltins(); err != nil {
		return nil, err
	}

	scripts, err := LoadScripts(m.scriptDir)
	if err != nil {
		return nil, err
	}
	m.scripts = scripts
	return m, nil
}

func (m *Machine) declareBuiltins() error {
	decl := func(id *FieldID, name string, ty ValTy, def Val, aliases ...string) error {
		v := def
		got, err := m.store.Declare(name, ty, &v, aliases...)
		if err != nil {
			return err
		}
		*id = got
		return nil
	}
	if err := decl(&m.ipID, "instr_ptr", TyUsize, UsizeVal(0), "ip", "P"); err != nil {
		return err
	}
	if err := decl(&m.hpID, "heap_ptr", TyCellRef, CellRefVal(0), "hp", "H"); err != nil {
		return err
	}
	if err := decl(&m.spID, "struct_ptr", TyCellRef, CellRefVal(0), "S"); err != nil {
		return err
	}
	if err := decl(&m.cpID, "cont_ptr", TyUsize, UsizeVal(0), "cp", "CP"); err != nil {
		return err
	}
	if err := decl(&m.modeID, "mode", TySymbol, SymVal("read")); err != nil {
		return err
	}
	var err error
	if m.heapID, err = m.store.DeclareArray("heap", TyCell, m.heapCap); err != nil {
		return err
	}
	if m.trailID, err = m.store.DeclareArray("trail", TyCellRef, m.trailCap, "tr"); err != nil {
		return err
	}
	return nil
}

// ─────────────────────────────── program access ─────────────────────────────

// LoadProgram installs a program and its label map and rewinds the pointer.
func (m *Machine) LoadProgram(prog []Instr) error {
	labels, err := ScanLabels(prog)
	if err != nil {
		return err
	}
	m.program = prog
	m.labels = labels
	return m.store.Set(m.ipID, UsizeVal(0))
}

// Program returns the loaded instructions.
func (m *Machine) Program() []Instr { return m.program }

// IP returns the current instruction pointer.
func (m *Machine) IP() int {
	v, err := m.store.Get(m.ipID)
	if err != nil {
		return 0
	}
	n, err := v.AsUsize()
	if err != nil {
		return 0
	}
	return n
}

// CurrentInstr returns the instruction under the pointer, if any.
func (m *Machine) CurrentInstr() (Instr, bool) {
	ip := m.IP()
	if ip < 0 || ip >= len(m.program) {
		return Instr{}, false
	}
	return m.program[ip], true
}

// Finished reports whether the pointer has moved past the last instruction.
func (m *Machine) Finished() bool { return m.IP() >= len(m.program) }

// Advance moves the pointer one instruction forward without running a script.
func (m *Machine) Advance() error {
	return m.store.Set(m.ipID, UsizeVal(m.IP()+1))
}

// Mode returns the current unification mode symbol, "read" or "write".
func (m *Machine) Mode() string {
	v, err := m.store.Get(m.modeID)
	if err != nil {
		return "read"
	}
	return v.Sym
}

// SetMode sets the unification mode; anything but "read" or "write" is refused.
func (m *Machine) SetMode(mode string) error {
	if mode != "read" && mode != "write" {
		return &TypeMismatchError{Expected: ":read or :write", Received: SymVal(mode).String()}
	}
	return m.store.Set(m.modeID, SymVal(mode))
}

// Store exposes the field store for listing, schema and scenario use.
func (m *Machine) Store() *Store { return m.store }

func (m *Machine) classify(addr CellRef) (Verdict, error) {
	return m.classifier.Classify(m, addr)
}

// ──────────────────────────────── stepping ──────────────────────────────────

// Step executes the instruction under the pointer. Reference, type and
// capacity errors leave the pointer unchanged and the state exactly as the
// script left it, so the user can edit the script and retry the same step.
func (m *Machine) Step() (Outcome, error) {
	ip := m.IP()
	if ip >= len(m.program) {
		return Paused, &ProgramExhaustedError{IP: ip, Len: len(m.program)}
	}
	in := m.program[ip]

	if in.Kind == ILabel {
		if err := m.store.Set(m.ipID, UsizeVal(ip + 1)); err != nil {
			return Paused, err
		}
		m.log.Debug("step", "ip", ip, "instr", in.String(), "outcome", Advanced.String())
		return Advanced, nil
	}

	sc := m.scripts[in.Kind]
	if sc == nil {
		m.log.Debug("step", "ip", ip, "instr", in.String(), "outcome", NotImplemented.String())
		return NotImplemented, nil
	}

	// Operands bind before the script runs; an unknown register or label
	// fails here with the machine untouched.
	params, err := m.bindParams(in)
	if err != nil {
		return Paused, err
	}

	env := newEnv(m, params, nil)
	sig, jump, line, err := env.exec(sc.Stmts)
	if err != nil {
		return Paused, sc.wrapErr(in.String(), line, err)
	}

	out := Paused
	switch sig {
	case sigNext:
		if err := m.store.Set(m.ipID, UsizeVal(ip + 1)); err != nil {
			return Paused, sc.wrapErr(in.String(), line, err)
		}
		out = Advanced
	case sigJump:
		if err := m.store.Set(m.ipID, UsizeVal(jump)); err != nil {
			return Paused, sc.wrapErr(in.String(), line, err)
		}
		out = Jumped
	case sigTodo:
		out = NotImplemented
	case sigFail:
		out = MatchFailed
	}
	m.log.Debug("step", "ip", ip, "instr", in.String(), "outcome", out.String())
	return out, nil
}

func (m *Machine) bindParams(in Instr) ([]Param, error) {
	params := make([]Param, 0, len(in.Ops))
	for _, op := range in.Ops {
		switch op.Kind {
		case OpReg:
			id, err := m.store.Resolve(op.Reg)
			if err != nil {
				return nil, err
			}
			params = append(params, FieldParam(id))
		case OpFunctor:
			params = append(params, LitParam(FunctorVal(op.Fn)))
		case OpLabel:
			idx, ok := m.labels[op.Fn]
			if !ok {
				return nil, &UnknownLabelError{Label: op.Fn}
			}
			params = append(params, LitParam(UsizeVal(idx)))
		case OpCount:
			params = append(params, LitParam(UsizeVal(op.N)))
		}
	}
	return params, nil
}

// runLimit bounds RunToCompletion against jump loops; manual stepping has no
// limit.
const runLimit = 1 << 20

// RunToCompletion steps until the program ends or a step stops making
// progress: an error, a MatchFailed or NotImplemented outcome, or a Paused
// outcome that left the pointer where it was. Returns the last outcome and
// the number of steps taken.
func (m *Machine) RunToCompletion() (Outcome, int, error) {
	out := Paused
	steps := 0
	for !m.Finished() {
		if steps >= runLimit {
			return out, steps, fmt.Errorf("run gave up after %d steps; the program appears to loop", steps)
		}
		before := m.IP()
		o, err := m.Step()
		steps++
		out = o
		if err != nil {
			return out, steps, err
		}
		switch o {
		case Advanced, Jumped:
			continue
		case Paused:
			if m.IP() == before {
				return out, steps, nil
			}
		default:
			return out, steps, nil
		}
	}
	return out, steps, nil
}

// ─────────────────────────────── shell commands ─────────────────────────────

// ExecCommand runs one command-language statement outside any instruction:
// scenario setup lines and interactive shell input. Temporary variables
// persist across calls for the session. Script parameters and control
// signals are not available here. The returned flag reports whether the
// statement produced a value to echo.
func (m *Machine) ExecCommand(src string) (Val, bool, error) {
	stmt, err := ParseCommand(src)
	if err != nil {
		return Val{}, false, WrapErrorWithSource(err, src)
	}
	env := newEnv(m, nil, m.shellTmps)
	if tagOf(stmt) == "expr" {
		v, err := env.rval(stmt[2].(S))
		if err != nil {
			return Val{}, false, err
		}
		return v, true, nil
	}
	sig, _, _, err := env.exec([]S{stmt})
	if err != nil {
		return Val{}, false, err
	}
	if sig != sigNone {
		return Val{}, false, &ParseError{Line: 1, Col: 1,
			Msg: "control statements only work inside instruction scripts"}
	}
	return Val{}, false, nil
}

// Reset restores every field to its declared default, clears the heap and
// trail, and drops the session's temporary variables. The program, scripts
// and declared fields survive.
func (m *Machine) Reset() {
	m.store.Reset()
	m.shellTmps = map[string]Val{}
}

// ─────────────────────────────── script access ──────────────────────────────

// Script returns the active script for an instruction kind.
func (m *Machine) Script(kind InstrKind) *Script { return m.scripts[kind] }

// SetScript replaces the active script for an instruction kind.
func (m *Machine) SetScript(kind InstrKind, sc *Script) { m.scripts[kind] = sc }

// ScriptDir returns the session's script override directory.
func (m *Machine) ScriptDir() string { return m.scriptDir }

// ReloadScript re-reads one script from the override directory, falling back
// to the built-in default when the file is gone.
func (m *Machine) ReloadScript(kind InstrKind) error {
	if m.scriptDir != "" {
		sc, err := LoadScriptFile(m.scriptDir, kind)
		if err == nil {
			m.scripts[kind] = sc
			return nil
		}
		if !isNotExist(err) {
			return err
		}
	}
	d, ok := stdScripts[kind]
	if !ok {
		delete(m.scripts, kind)
		return nil
	}
	sc, err := NewScript(kind.Name(), d.doc, d.src)
	if err != nil {
		return err
	}
	m.scripts[kind] = sc
	return nil
}
