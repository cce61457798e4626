// script.go — instruction scripts: documentation plus fenced command blocks.
//
// A script is a small Markdown document. Prose explains what the instruction
// does; every ``` fenced block holds command-language statements that define
// what it actually does when stepped. Users may override any built-in script
// by dropping <kind>.md into the machine's script directory and editing it
// between steps.
//
// When extracting the command text, non-command lines are blanked rather
// than removed, so statement line numbers (and error carets) match the file
// as the user sees it.
package hpvm

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Script is one instruction's behavior.
type Script struct {
	Name  string // instruction kind name, also the file stem
	Doc   string // prose outside the command fences
	Src   string // file text with non-command lines blanked
	Stmts []S

	lines []string
}

// ParseScriptText splits a script document into documentation and command
// text and parses the commands.
func ParseScriptText(name, text string) (*Script, error) {
	raw := strings.Split(text, "\n")
	src := make([]string, len(raw))
	var doc []string
	inFence := false
	for i, line := range raw {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			src[i] = ""
			continue
		}
		if inFence {
			src[i] = line
			continue
		}
		src[i] = ""
		doc = append(doc, line)
	}
	sc := &Script{
		Name:  name,
		Doc:   strings.TrimSpace(strings.Join(doc, "\n")),
		Src:   strings.Join(src, "\n"),
		lines: src,
	}
	stmts, err := ParseScript(sc.Src)
	if err != nil {
		return nil, err
	}
	sc.Stmts = stmts
	return sc, nil
}

// NewScript builds a script from separate documentation and command text,
// going through the same document form users edit.
func NewScript(name, doc, commands string) (*Script, error) {
	return ParseScriptText(name, renderScript(doc, commands))
}

// LineText returns the raw command line at a 1-based position, for error
// context.
func (sc *Script) LineText(line int) string {
	if line < 1 || line > len(sc.lines) {
		return ""
	}
	return sc.lines[line-1]
}

// wrapErr attaches instruction and line context to an evaluation error.
func (sc *Script) wrapErr(instr string, line int, err error) error {
	return &ScriptError{Instr: instr, Line: line, Cmd: sc.LineText(line), Err: err}
}

// Render produces the canonical document form.
func (sc *Script) Render() string {
	cmds := strings.TrimRight(commandText(sc.lines), "\n")
	return renderScript(sc.Doc, cmds)
}

func commandText(lines []string) string {
	var b strings.Builder
	started := false
	for _, l := range lines {
		if !started && l == "" {
			continue
		}
		started = true
		b.WriteString(l)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderScript(doc, commands string) string {
	var b strings.Builder
	if doc != "" {
		b.WriteString(strings.TrimSpace(doc))
		b.WriteString("\n\n")
	}
	b.WriteString("```\n")
	b.WriteString(strings.TrimRight(commands, "\n"))
	b.WriteString("\n```\n")
	return b.String()
}

// ───────────────────────────── loading & saving ─────────────────────────────

// DefaultScripts builds the built-in script table.
func DefaultScripts() (map[InstrKind]*Script, error) {
	out := make(map[InstrKind]*Script, len(stdScripts))
	for kind, d := range stdScripts {
		sc, err := NewScript(kind.Name(), d.doc, d.src)
		if err != nil {
			return nil, WrapErrorWithName(err, kind.Name(), d.src)
		}
		out[kind] = sc
	}
	return out, nil
}

// LoadScripts returns the built-in table overlaid with any <kind>.md files
// found in dir. An empty dir means built-ins only.
func LoadScripts(dir string) (map[InstrKind]*Script, error) {
	out, err := DefaultScripts()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return out, nil
	}
	for k := range instrSpecs {
		kind := InstrKind(k)
		sc, _, err := loadScriptFile(dir, kind)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[kind] = sc
	}
	return out, nil
}

// LoadScriptFile reads and parses one override file, returning fs.ErrNotExist
// when the file is absent.
func LoadScriptFile(dir string, kind InstrKind) (*Script, error) {
	sc, _, err := loadScriptFile(dir, kind)
	return sc, err
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

func loadScriptFile(dir string, kind InstrKind) (*Script, string, error) {
	path := filepath.Join(dir, kind.Name()+".md")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	sc, err := ParseScriptText(kind.Name(), string(b))
	if err != nil {
		return nil, path, WrapErrorWithName(err, path, string(b))
	}
	return sc, path, nil
}

// WriteScriptFile writes a script's canonical document to dir, creating the
// directory if needed. Used to seed a file before handing it to an editor.
func WriteScriptFile(dir string, sc *Script) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, sc.Name+".md")
	if err := os.WriteFile(path, []byte(sc.Render()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
