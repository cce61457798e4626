// classify.go — the bound/unbound decision seam behind the ask(e) builtin.
//
// Scripts never inspect cell tags to decide whether a variable is free; they
// ask a Classifier. The automatic classifier computes the answer from the
// heap. The asking classifier forwards the question to the surrounding
// session, so a human can answer in place of the engine without the script
// changing. Which one a machine uses is chosen at construction time.
package hpvm

// Verdict is a classifier's answer.
type Verdict uint8

const (
	VerdictBound Verdict = iota
	VerdictUnbound
)

// Sym renders the verdict as the symbol scripts compare against.
func (v Verdict) Sym() string {
	if v == VerdictUnbound {
		return "unbound"
	}
	return "bound"
}

func (v Verdict) String() string { return ":" + v.Sym() }

// Classifier answers whether the cell at an address holds a bound value or a
// free variable.
type Classifier interface {
	Classify(m *Machine, addr CellRef) (Verdict, error)
}

// AutoClassifier reads the heap: a Ref cell addressing itself is a free
// variable, anything else is bound. Scripts are expected to deref before
// asking, so no chain is followed here.
type AutoClassifier struct{}

func (AutoClassifier) Classify(m *Machine, addr CellRef) (Verdict, error) {
	c, err := m.HeapCell(addr)
	if err != nil {
		return VerdictBound, err
	}
	if c.Kind == KindRef && c.Ref == addr {
		return VerdictUnbound, nil
	}
	return VerdictBound, nil
}

// AskClassifier hands the question to a prompt function, typically one that
// blocks on shell input. The prompt sees the address and the cell stored
// there. A nil prompt falls back to the automatic answer.
type AskClassifier struct {
	Prompt func(addr CellRef, c Cell) (Verdict, error)
}

func (a AskClassifier) Classify(m *Machine, addr CellRef) (Verdict, error) {
	if a.Prompt == nil {
		return AutoClassifier{}.Classify(m, addr)
	}
	c, err := m.HeapCell(addr)
	if err != nil {
		return VerdictBound, err
	}
	return a.Prompt(addr, c)
}
