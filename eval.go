// eval.go — tree-walking evaluator for parsed command nodes.
//
// Scripts and shell commands share this evaluator. A run is wrapped in an
// evalEnv carrying the machine, the instruction's operand bindings ($N) and a
// temporary-variable scope (.name). Instruction runs get a fresh scope;
// the interactive shell keeps one scope for the whole session.
//
// Statement execution returns a control signal rather than performing control
// transfer itself; the dispatcher in machine.go maps signals to outcomes.
package hpvm

import "fmt"

type signal uint8

const (
	sigNone signal = iota // fell off the end of the script
	sigNext               // advance instr_ptr past the current instruction
	sigTodo               // semantics not written yet; leave instr_ptr alone
	sigFail               // match failure
	sigJump               // transfer control to a code address
)

// Param is one $N binding for a script run. A register operand binds as the
// register's field, readable and assignable; any other operand binds as a
// literal value.
type Param struct {
	IsField bool
	Field   FieldID
	Lit     Val
}

// FieldParam binds $N to a register field.
func FieldParam(id FieldID) Param { return Param{IsField: true, Field: id} }

// LitParam binds $N to a fixed value.
func LitParam(v Val) Param { return Param{Lit: v} }

type evalEnv struct {
	m      *Machine
	params []Param
	tmps   map[string]Val
}

func newEnv(m *Machine, params []Param, tmps map[string]Val) *evalEnv {
	if tmps == nil {
		tmps = map[string]Val{}
	}
	return &evalEnv{m: m, params: params, tmps: tmps}
}

// ───────────────────────────── statement execution ──────────────────────────

// exec runs statements in order until one raises a control signal or fails.
// jump carries the target code address when sig is sigJump. line reports the
// source line of the statement that errored or signaled, descending into
// if/else blocks.
func (ev *evalEnv) exec(stmts []S) (sig signal, jump int, line int, err error) {
	for _, stmt := range stmts {
		line = stmt[1].(int)
		var inner int
		sig, jump, inner, err = ev.execOne(stmt)
		if inner != 0 {
			line = inner
		}
		if err != nil {
			return sigNone, 0, line, err
		}
		if sig != sigNone {
			return sig, jump, line, nil
		}
	}
	return sigNone, 0, 0, nil
}

// execOne's line result is non-zero only when a nested block pinpointed a
// deeper statement.
func (ev *evalEnv) execOne(stmt S) (signal, int, int, error) {
	switch tagOf(stmt) {
	case "assign":
		return sigNone, 0, 0, ev.assign(stmt[2].(S), stmt[3].(S))

	case "if":
		ok, err := ev.cond(stmt[2].(S))
		if err != nil {
			return sigNone, 0, 0, err
		}
		blk, _ := stmt[3].([]S)
		if !ok {
			blk, _ = stmt[4].([]S)
		}
		return ev.exec(blk)

	case "next":
		return sigNext, 0, 0, nil
	case "todo":
		return sigTodo, 0, 0, nil
	case "fail":
		return sigFail, 0, 0, nil

	case "jump":
		v, err := ev.rval(stmt[2].(S))
		if err != nil {
			return sigNone, 0, 0, err
		}
		// Functor targets name labels; call/execute operands arrive already
		// resolved to code addresses.
		if v.Ty == TyFunctor {
			idx, ok := ev.m.labels[v.Fn]
			if !ok {
				return sigNone, 0, 0, &UnknownLabelError{Label: v.Fn}
			}
			return sigJump, idx, 0, nil
		}
		target, err := v.AsUsize()
		if err != nil {
			return sigNone, 0, 0, &TypeMismatchError{Expected: "code address or functor label",
				Received: v.Ty.String(), Expr: v.String()}
		}
		return sigJump, target, 0, nil

	case "pusharr":
		return sigNone, 0, 0, ev.pushArr(stmt[2].(S), stmt[3].(S))

	case "bind":
		return sigNone, 0, 0, ev.bindStmt(stmt[2].(S), stmt[3].(S))

	case "expr":
		v, err := ev.rval(stmt[2].(S))
		if err == nil && ev.m.echo != nil {
			ev.m.echo(v)
		}
		return sigNone, 0, 0, err
	}
	return sigNone, 0, 0, fmt.Errorf("unknown statement form %q", tagOf(stmt))
}

func (ev *evalEnv) cond(c S) (bool, error) {
	a, err := ev.rval(c[2].(S))
	if err != nil {
		return false, err
	}
	b, err := ev.rval(c[3].(S))
	if err != nil {
		return false, err
	}
	eq := a == b
	if c[1].(string) == "!=" {
		return !eq, nil
	}
	return eq, nil
}

func (ev *evalEnv) pushArr(arrExpr, elemExpr S) error {
	if tagOf(arrExpr) != "field" {
		return &TypeMismatchError{Expected: "array field", Received: tagOf(arrExpr),
			Expr: "push(..., ...)"}
	}
	id, err := ev.m.store.Resolve(arrExpr[1].(string))
	if err != nil {
		return &UnknownReferenceError{Name: arrExpr[1].(string)}
	}
	v, err := ev.rval(elemExpr)
	if err != nil {
		return err
	}
	// Pushing onto the heap by name is still an allocation, so it goes
	// through PushCell to keep heap_ptr in sync.
	if id == ev.m.heapID {
		c, err := v.AsCell()
		if err != nil {
			return err
		}
		_, err = ev.m.PushCell(c)
		return err
	}
	return ev.m.store.Push(id, v)
}

func (ev *evalEnv) bindStmt(addrExpr, cellExpr S) error {
	av, err := ev.rval(addrExpr)
	if err != nil {
		return err
	}
	addr, err := av.AsCellRef()
	if err != nil {
		return err
	}
	cv, err := ev.rval(cellExpr)
	if err != nil {
		return err
	}
	c, err := cv.AsCell()
	if err != nil {
		return err
	}
	return ev.m.Bind(addr, c)
}

// ───────────────────────────────── assignment ───────────────────────────────

func (ev *evalEnv) assign(lv, rv S) error {
	v, err := ev.rval(rv)
	if err != nil {
		return err
	}
	return ev.assignTo(lv, v)
}

func (ev *evalEnv) assignTo(lv S, v Val) error {
	switch tagOf(lv) {
	case "field":
		id, err := ev.m.store.Resolve(lv[1].(string))
		if err != nil {
			return &UnknownReferenceError{Name: lv[1].(string)}
		}
		return ev.setField(id, v)

	case "tmp":
		ev.tmps[lv[1].(string)] = v
		return nil

	case "param":
		p, err := ev.param(lv[1].(int))
		if err != nil {
			return err
		}
		if !p.IsField {
			return &NotAReferenceError{Val: fmt.Sprintf("$%d", lv[1].(int)),
				Want: "register operand"}
		}
		return ev.setField(p.Field, v)

	case "deref1":
		av, err := ev.rval(lv[1].(S))
		if err != nil {
			return err
		}
		addr, err := av.AsCellRef()
		if err != nil {
			return err
		}
		c, err := v.AsCell()
		if err != nil {
			return err
		}
		return ev.m.SetHeapCell(addr, c)

	case "index":
		return ev.assignIndex(lv[1].(S), lv[2].(S), v)
	}
	return fmt.Errorf("cannot assign to %q expression", tagOf(lv))
}

// setField routes writes to the mode field through validation; everything
// else goes straight to the store.
func (ev *evalEnv) setField(id FieldID, v Val) error {
	if id == ev.m.modeID {
		if v.Ty != TySymbol || (v.Sym != "read" && v.Sym != "write") {
			return &TypeMismatchError{Expected: ":read or :write", Received: v.String(),
				Expr: "mode <- " + v.String()}
		}
	}
	return ev.m.store.Set(id, v)
}

func (ev *evalEnv) assignIndex(base, idx S, v Val) error {
	// arr[i] <- v overwrites one element of an array field
	if tagOf(base) == "field" {
		if id, err := ev.m.store.Resolve(base[1].(string)); err == nil && ev.m.store.IsArray(id) {
			iv, err := ev.rval(idx)
			if err != nil {
				return err
			}
			i, err := iv.AsUsize()
			if err != nil {
				return err
			}
			return ev.m.store.ArraySet(id, i, v)
		}
	}
	// ref[n] <- v stores through a heap address; n may be signed
	bv, err := ev.rval(base)
	if err != nil {
		return err
	}
	if bv.Ty == TyUsize {
		return &TypeMismatchError{Expected: "heap address",
			Received: "Usize", Expr: "the code region is not writable"}
	}
	addr, err := bv.AsCellRef()
	if err != nil {
		return err
	}
	iv, err := ev.rval(idx)
	if err != nil {
		return err
	}
	off, err := iv.AsOffset()
	if err != nil {
		return err
	}
	c, err := v.AsCell()
	if err != nil {
		return err
	}
	return ev.m.SetHeapCell(addr+CellRef(off), c)
}

// ──────────────────────────────── expressions ───────────────────────────────

func (ev *evalEnv) rval(e S) (Val, error) {
	switch tagOf(e) {
	case "u":
		return UsizeVal(e[1].(int)), nil
	case "i":
		return I32Val(e[1].(int32)), nil
	case "sym":
		return SymVal(e[1].(string)), nil
	case "at":
		return CellRefVal(CellRef(e[1].(int))), nil
	case "fn":
		return FunctorVal(Functor{Sym: e[1].(string), Arity: e[2].(int)}), nil

	case "field":
		id, err := ev.m.store.Resolve(e[1].(string))
		if err != nil {
			return Val{}, &UnknownReferenceError{Name: e[1].(string)}
		}
		return ev.m.store.Get(id)

	case "tmp":
		name := e[1].(string)
		v, ok := ev.tmps[name]
		if !ok {
			return Val{}, &UnknownReferenceError{Name: "." + name}
		}
		return v, nil

	case "param":
		p, err := ev.param(e[1].(int))
		if err != nil {
			return Val{}, err
		}
		if p.IsField {
			return ev.m.store.Get(p.Field)
		}
		return p.Lit, nil

	case "deref1":
		av, err := ev.rval(e[1].(S))
		if err != nil {
			return Val{}, err
		}
		addr, err := av.AsCellRef()
		if err != nil {
			return Val{}, err
		}
		c, err := ev.m.HeapCell(addr)
		if err != nil {
			return Val{}, err
		}
		return CellVal(c), nil

	case "addrof":
		return ev.addrOf(e[1].(S))

	case "index":
		return ev.indexVal(e[1].(S), e[2].(S))

	case "call":
		return ev.callVal(e)
	}
	return Val{}, fmt.Errorf("unknown expression form %q", tagOf(e))
}

func (ev *evalEnv) param(n int) (Param, error) {
	if n < 1 || n > len(ev.params) {
		return Param{}, &UnknownReferenceError{Name: fmt.Sprintf("$%d", n)}
	}
	return ev.params[n-1], nil
}

// addrOf gives the address an index names instead of the value held there:
// `heap[3].&` is the slot @3, `S[+1].&` the cell address one past S, and
// `ip[+1].&` the code address of the following instruction.
func (ev *evalEnv) addrOf(e S) (Val, error) {
	if tagOf(e) != "index" {
		return Val{}, &TypeMismatchError{Expected: "indexed target like base[i]",
			Received: tagOf(e), Expr: "address-of"}
	}
	base, idx := e[1].(S), e[2].(S)

	// heap[i].& names the slot itself. Other arrays have no addresses; only
	// heap slots do.
	if tagOf(base) == "field" {
		if id, err := ev.m.store.Resolve(base[1].(string)); err == nil && ev.m.store.IsArray(id) {
			if id != ev.m.heapID {
				return Val{}, &NotAReferenceError{Val: ev.m.store.Name(id),
					Want: "the heap array"}
			}
			iv, err := ev.rval(idx)
			if err != nil {
				return Val{}, err
			}
			i, err := iv.AsUsize()
			if err != nil {
				return Val{}, err
			}
			return CellRefVal(CellRef(i)), nil
		}
	}

	bv, err := ev.rval(base)
	if err != nil {
		return Val{}, err
	}
	iv, err := ev.rval(idx)
	if err != nil {
		return Val{}, err
	}
	off, err := iv.AsOffset()
	if err != nil {
		return Val{}, err
	}
	switch bv.Ty {
	case TyUsize:
		return UsizeVal(bv.U + off), nil
	default:
		addr, err := bv.AsCellRef()
		if err != nil {
			return Val{}, err
		}
		return CellRefVal(addr + CellRef(off)), nil
	}
}

func (ev *evalEnv) indexVal(base, idx S) (Val, error) {
	// arr[i] reads an element of an array field
	if tagOf(base) == "field" {
		if id, err := ev.m.store.Resolve(base[1].(string)); err == nil && ev.m.store.IsArray(id) {
			iv, err := ev.rval(idx)
			if err != nil {
				return Val{}, err
			}
			i, err := iv.AsUsize()
			if err != nil {
				return Val{}, err
			}
			return ev.m.store.ArrayGet(id, i)
		}
	}
	// ref[n] loads the heap cell at base+n; n may be signed
	bv, err := ev.rval(base)
	if err != nil {
		return Val{}, err
	}
	if bv.Ty == TyUsize {
		return Val{}, &TypeMismatchError{Expected: "heap address",
			Received: "Usize", Expr: "indexing; use `.&` for code addresses"}
	}
	addr, err := bv.AsCellRef()
	if err != nil {
		return Val{}, err
	}
	iv, err := ev.rval(idx)
	if err != nil {
		return Val{}, err
	}
	off, err := iv.AsOffset()
	if err != nil {
		return Val{}, err
	}
	c, err := ev.m.HeapCell(addr + CellRef(off))
	if err != nil {
		return Val{}, err
	}
	return CellVal(c), nil
}

// ─────────────────────────────── builtin calls ──────────────────────────────

func (ev *evalEnv) callVal(e S) (Val, error) {
	name := e[1].(string)
	args := make([]Val, 0, len(e)-2)
	for _, a := range e[2:] {
		v, err := ev.rval(a.(S))
		if err != nil {
			return Val{}, err
		}
		args = append(args, v)
	}

	switch name {
	case "Ref", "Str", "Sym", "Int":
		c, err := literalCell(name, args)
		if err != nil {
			return Val{}, err
		}
		return CellVal(c), nil

	case "deref":
		if err := arity(name, args, 1); err != nil {
			return Val{}, err
		}
		addr, err := args[0].AsCellRef()
		if err != nil {
			return Val{}, err
		}
		end, err := ev.m.Deref(addr)
		if err != nil {
			return Val{}, err
		}
		return CellRefVal(end), nil

	case "push":
		if err := arity(name, args, 1); err != nil {
			return Val{}, err
		}
		c, err := args[0].AsCell()
		if err != nil {
			return Val{}, err
		}
		addr, err := ev.m.PushCell(c)
		if err != nil {
			return Val{}, err
		}
		return CellRefVal(addr), nil

	case "ask":
		if err := arity(name, args, 1); err != nil {
			return Val{}, err
		}
		addr, err := args[0].AsCellRef()
		if err != nil {
			return Val{}, err
		}
		verdict, err := ev.m.classify(addr)
		if err != nil {
			return Val{}, err
		}
		return SymVal(verdict.Sym()), nil

	case "tag":
		if err := arity(name, args, 1); err != nil {
			return Val{}, err
		}
		c, err := args[0].AsCell()
		if err != nil {
			return Val{}, err
		}
		return SymVal(kindSym(c.Kind)), nil

	case "functor":
		if err := arity(name, args, 1); err != nil {
			return Val{}, err
		}
		if args[0].Ty == TyFunctor {
			return args[0], nil
		}
		c, err := args[0].AsCell()
		if err != nil {
			return Val{}, err
		}
		if c.Kind != KindStr {
			return Val{}, &TypeMismatchError{Expected: "Str cell",
				Received: c.Kind.String(), Expr: "functor(" + c.String() + ")"}
		}
		return FunctorVal(c.Fn), nil

	case "args":
		if err := arity(name, args, 1); err != nil {
			return Val{}, err
		}
		c, err := args[0].AsCell()
		if err != nil {
			return Val{}, err
		}
		if c.Kind != KindStr {
			return Val{}, &TypeMismatchError{Expected: "Str cell",
				Received: c.Kind.String(), Expr: "args(" + c.String() + ")"}
		}
		return CellRefVal(c.Ref), nil
	}
	return Val{}, &UnknownReferenceError{Name: name + "(...)"}
}

func arity(name string, args []Val, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s takes %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func kindSym(k CellKind) string {
	switch k {
	case KindRef:
		return "ref"
	case KindStr:
		return "str"
	case KindSym:
		return "sym"
	case KindInt:
		return "int"
	}
	return "?"
}
