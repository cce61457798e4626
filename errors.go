// errors.go — the error taxonomy plus caret-snippet rendering for script
// compilation diagnostics.
//
// Schema, reference, type, capacity and label errors are fatal to the
// operation that raised them; match failure and not-implemented are
// outcomes, not errors (see Outcome in machine.go). Every error carries
// enough context (field name, operand values, script line) for the user to
// edit and retry — nothing is skipped or auto-corrected.
package hpvm

import (
	"fmt"
	"strings"
)

// SchemaError reports an invalid declaration: duplicate field or alias
// names, bad defaults, duplicate program labels. Fatal at load time.
type SchemaError struct {
	Name   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s: %s", e.Name, e.Reason)
}

// UnknownFieldError reports a name that resolves to no field or array.
type UnknownFieldError struct{ Name string }

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field `%s`", e.Name)
}

// UninitializedFieldError reports a read of a field that has no default and
// was never written.
type UninitializedFieldError struct{ Name string }

func (e *UninitializedFieldError) Error() string {
	return fmt.Sprintf("field `%s` has not been initialized", e.Name)
}

// TypeMismatchError reports a value whose type disagrees with what the
// target or operation requires.
type TypeMismatchError struct {
	Expected string
	Received string
	Expr     string // display of the offending value or expression, may be empty
}

func (e *TypeMismatchError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Received)
	}
	return fmt.Sprintf("type mismatch: expected %s, got %s (`%s`)", e.Expected, e.Received, e.Expr)
}

// CapacityError reports a push past an array's declared capacity.
type CapacityError struct {
	Array string
	Cap   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("array `%s` is full (capacity %d)", e.Array, e.Cap)
}

// IndexError reports an array access outside the logical length.
type IndexError struct {
	Array string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for `%s` (length %d)", e.Index, e.Array, e.Len)
}

// UnknownReferenceError reports a script expression naming an unknown field,
// alias or tmp var, or an instruction parameter that does not exist.
type UnknownReferenceError struct{ Name string }

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference `%s`", e.Name)
}

// NotAReferenceError reports a dereference or address-of applied to a value
// that cannot stand for a heap address.
type NotAReferenceError struct {
	Val  string
	Want string
}

func (e *NotAReferenceError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("`%s` is not a reference", e.Val)
	}
	return fmt.Sprintf("`%s` is not a reference (need %s)", e.Val, e.Want)
}

// RebindConflictError reports a bind against a cell that already holds a
// different non-free value. Only free (self-referencing) cells may be
// productively bound.
type RebindConflictError struct {
	Addr CellRef
	Old  Cell
	New  Cell
}

func (e *RebindConflictError) Error() string {
	return fmt.Sprintf("cell at %s is already bound to %s; refusing to rebind to %s",
		e.Addr, e.Old, e.New)
}

// UnknownLabelError reports a jump target functor with no declared entry
// point in the loaded program.
type UnknownLabelError struct{ Label Functor }

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown label `%s`", e.Label)
}

// ProgramExhaustedError reports a step attempted with the instruction
// pointer past the end of the program.
type ProgramExhaustedError struct {
	IP  int
	Len int
}

func (e *ProgramExhaustedError) Error() string {
	return fmt.Sprintf("program exhausted: instruction pointer %d, program length %d", e.IP, e.Len)
}

// LexError is a lexical error in command-language source. Line is 1-based,
// Col 0-based (rendered 1-based).
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ParseError is a syntax error in command-language source.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ScriptError wraps an error raised while an instruction's script ran,
// adding the instruction display, the 1-based line within the script's
// command source, and the offending command text.
type ScriptError struct {
	Instr string
	Line  int
	Cmd   string
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script for `%s`, line %d (`%s`): %v",
		e.Instr, e.Line, strings.TrimSpace(e.Cmd), e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

/* ===========================
   Caret-snippet rendering
   =========================== */

// WrapErrorWithSource augments lex/parse errors with a caret-annotated
// snippet of the source they came from. Other errors pass through unchanged.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

func WrapErrorWithName(err error, srcName string, src string) error {
	switch e := err.(type) {
	case *LexError:
		// Lex Col is 0-based; render as 1-based.
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "LEXICAL ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "PARSE ERROR", srcName, e.Line, e.Col+1, e.Msg))
	default:
		return err
	}
}

// prettyErrorStringLabeled builds a snippet with a header and a caret. It
// shows at most one previous and one next line when available. Coordinates
// are 1-based and clamped to the source bounds.
func prettyErrorStringLabeled(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad < 0 {
		caretPad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
