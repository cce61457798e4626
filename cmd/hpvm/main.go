package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/tinylogic/hpvm"
)

const (
	appName     = "hpvm"
	historyFile = ".hpvm_history"
)

var (
	banner = fmt.Sprintf("hpvm %s human-powered machine\nCtrl+C cancels input, Ctrl+D exits. Type help for commands.", hpvm.Version)

	helpText = `
Shell commands:
  help                      Show this help
  fields                    List every field and its current value
  list [heap|trail|code]    Dump an array or the loaded program (default heap)
  step [n]                  Execute n instructions (default 1)
  run                       Step until the program stops
  next                      Move the pointer forward without executing
  print <expr>              Evaluate an expression and print the result
  <lval> <- <expr>          Assign to a field, .tmp or heap cell
  push <expr>               Push a value onto the heap
  alias <field> <name>      Add an alias for a field
  del <name>                Remove an alias
  docs [instr]              Show an instruction's script and documentation
  edit [instr]              Edit an instruction's script, then reload it
  save                      Write the session file
  reset                     Restore every field to its declared default
  quit                      Exit

Anything else is evaluated as a command, e.g. hp or heap[3].* or push(Sym(:x)).
`
)

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		os.Exit(cmdRepl(nil))
	}

	switch args[0] {
	case "repl":
		os.Exit(cmdRepl(args[1:]))
	case "run":
		os.Exit(cmdRun(args[1:]))
	case "version":
		fmt.Println(hpvm.Version)
		return
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		// Bare flags mean repl; anything else is a mistake.
		if strings.HasPrefix(args[0], "-") {
			os.Exit(cmdRepl(args))
		}
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`hpvm %s (built %s)

Usage:
  %s repl [-session FILE] [-scripts DIR] [-scenario FILE] [-ask] [-trace]
      Start the interactive shell (the default when no command is given).
  %s run [-session FILE] [-scripts DIR] [-ask] [-trace] <scenario.yaml>
      Load a scenario and step it until it stops.
  %s version
      Print the compiled version.

`, hpvm.Version, hpvm.BuildDate, appName, appName, appName)
}

func machineOpts(scripts string, ask, trace bool, rd lineReader) []hpvm.Option {
	opts := []hpvm.Option{
		hpvm.WithEchoSink(func(v hpvm.Val) { fmt.Println(blue("  " + v.String())) }),
	}
	if scripts != "" {
		opts = append(opts, hpvm.WithScriptDir(scripts))
	}
	if ask {
		opts = append(opts, hpvm.WithClassifier(hpvm.AskClassifier{Prompt: askVerdict(rd)}))
	}
	if trace {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, hpvm.WithLogger(slog.New(h)))
	}
	return opts
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	session := fs.String("session", "", "session file to load before and save after the run")
	scripts := fs.String("scripts", "", "directory of script overrides")
	ask := fs.Bool("ask", false, "answer ask(e) on stdin instead of automatically")
	trace := fs.Bool("trace", false, "log every step to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s run [flags] <scenario.yaml>\n", appName)
		return 2
	}

	rd := &plainReader{in: bufio.NewReader(os.Stdin)}
	m, err := hpvm.NewMachine(machineOpts(*scripts, *ask, *trace, rd)...)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}

	editor := ""
	if *session != "" {
		if editor, err = hpvm.LoadSession(*session, m); err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 1
		}
	}

	scen, err := hpvm.LoadScenario(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	if scen.Description != "" {
		fmt.Println(scen.Description)
	}
	if err := scen.Apply(m); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}

	out, steps, err := m.RunToCompletion()
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	if m.Finished() {
		fmt.Println(green(fmt.Sprintf("program finished after %d steps", steps)))
	} else {
		in, _ := m.CurrentInstr()
		fmt.Printf("stopped at %d  %s  %s after %d steps\n", m.IP(), in, outcomeColor(out), steps)
	}
	for _, ln := range m.DescribeFields() {
		fmt.Println(ln)
	}

	if *session != "" {
		if err := hpvm.SaveSession(*session, m, editor); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 1
		}
	}
	return 0
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	session := fs.String("session", "", "session file to load, and to write on save/quit")
	scripts := fs.String("scripts", "", "directory of script overrides")
	scenario := fs.String("scenario", "", "scenario file to load on startup")
	ask := fs.Bool("ask", false, "answer ask(e) at the prompt instead of automatically")
	trace := fs.Bool("trace", false, "log every step to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println(banner)
	}

	var rd lineReader
	if interactive {
		home, _ := os.UserHomeDir()
		histPath := filepath.Join(home, historyFile)

		ln := liner.NewLiner()
		defer ln.Close()
		ln.SetCtrlCAborts(true)

		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigc)
		go func() {
			<-sigc
			ln.Close()
			os.Exit(130)
		}()

		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		rd = ln
	} else {
		rd = &plainReader{in: bufio.NewReader(os.Stdin)}
	}

	m, err := hpvm.NewMachine(machineOpts(*scripts, *ask, *trace, rd)...)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}

	sh := &shell{m: m, rd: rd, session: *session}

	if *session != "" {
		editor, err := hpvm.LoadSession(*session, m)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 1
		}
		sh.editor = editor
	}

	if *scenario != "" {
		scen, err := hpvm.LoadScenario(*scenario)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 1
		}
		if err := scen.Apply(m); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 1
		}
		if scen.Description != "" {
			fmt.Println(scen.Description)
		}
		fmt.Printf("loaded %d instructions\n", len(m.Program()))
	}

	for {
		line, err := rd.Prompt(sh.prompt())
		if errors.Is(err, io.EOF) {
			fmt.Println()
			break
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rd.AppendHistory(line)
		if sh.dispatch(line) {
			break
		}
	}

	if sh.session != "" {
		if err := hpvm.SaveSession(sh.session, m, sh.editor); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 1
		}
		fmt.Println(green("saved " + sh.session))
	}
	return 0
}

// -----------------------------------------------------------------------------
// line readers
// -----------------------------------------------------------------------------

// lineReader is the part of liner the shell uses, so piped stdin can swap in
// a plain reader.
type lineReader interface {
	Prompt(p string) (string, error)
	AppendHistory(item string)
}

// plainReader reads lines without prompts or history, for non-terminal stdin.
type plainReader struct {
	in *bufio.Reader
}

func (r *plainReader) Prompt(string) (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *plainReader) AppendHistory(string) {}

func askVerdict(rd lineReader) func(addr hpvm.CellRef, c hpvm.Cell) (hpvm.Verdict, error) {
	return func(addr hpvm.CellRef, c hpvm.Cell) (hpvm.Verdict, error) {
		for {
			ans, err := rd.Prompt(fmt.Sprintf("cell %s holds %s. bound or unbound? ", addr, c))
			if err != nil {
				return 0, err
			}
			switch strings.ToLower(strings.TrimSpace(ans)) {
			case "b", "bound":
				return hpvm.VerdictBound, nil
			case "u", "unbound", "free":
				return hpvm.VerdictUnbound, nil
			}
			fmt.Println(`answer "bound" or "unbound"`)
		}
	}
}

// -----------------------------------------------------------------------------
// shell
// -----------------------------------------------------------------------------

type shell struct {
	m       *hpvm.Machine
	rd      lineReader
	session string
	editor  string
}

func (sh *shell) prompt() string {
	if in, ok := sh.m.CurrentInstr(); ok {
		return fmt.Sprintf("[%d  %s] => ", sh.m.IP(), in)
	}
	return "[done] => "
}

// dispatch runs one shell line and reports whether the shell should exit.
func (sh *shell) dispatch(line string) bool {
	trimmed := strings.TrimSpace(line)
	cmd, rest := trimmed, ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		cmd, rest = trimmed[:i], strings.TrimSpace(trimmed[i:])
	}

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Print(helpText)
	case "fields":
		for _, ln := range sh.m.DescribeFields() {
			fmt.Println(ln)
		}
	case "list":
		sh.cmdList(rest)
	case "step":
		sh.cmdStep(rest)
	case "run":
		sh.cmdRun()
	case "next":
		sh.cmdNext()
	case "print":
		if rest == "" {
			fmt.Println(red("print what?"))
			break
		}
		sh.eval(rest)
	case "push":
		sh.eval("push(" + rest + ")")
	case "alias":
		sh.cmdAlias(rest)
	case "del":
		sh.cmdDel(rest)
	case "docs":
		sh.cmdDocs(rest)
	case "edit":
		sh.cmdEdit(rest)
	case "save":
		sh.cmdSave()
	case "reset":
		sh.m.Reset()
		fmt.Println(green("machine reset"))
	default:
		sh.eval(trimmed)
	}
	return false
}

func (sh *shell) eval(src string) {
	v, hasVal, err := sh.m.ExecCommand(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	if hasVal {
		sh.printVal(v)
	}
}

// printVal echoes a value; cell references also get their rendered term.
func (sh *shell) printVal(v hpvm.Val) {
	out := v.String()
	if v.Ty == hpvm.TyCellRef {
		if ref, err := v.AsCellRef(); err == nil {
			if t, rerr := sh.m.RenderTerm(ref); rerr == nil {
				out += "  " + t
			}
		}
	}
	fmt.Println(blue(out))
}

func (sh *shell) cmdList(what string) {
	var lines []string
	var err error
	switch what {
	case "", "heap":
		lines, err = sh.m.HeapLines()
	case "trail":
		lines, err = sh.m.TrailLines()
	case "code", "program":
		lines = sh.m.ProgramLines()
	default:
		fmt.Println(red("list what? heap, trail or code"))
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	if len(lines) == 0 {
		fmt.Println("(empty)")
		return
	}
	for _, ln := range lines {
		fmt.Println(ln)
	}
}

func (sh *shell) cmdStep(arg string) {
	n := 1
	if arg != "" {
		var err error
		if n, err = strconv.Atoi(arg); err != nil || n < 1 {
			fmt.Println(red("step takes a positive count"))
			return
		}
	}
	for i := 0; i < n; i++ {
		if !sh.stepOnce() {
			return
		}
	}
}

// stepOnce executes one instruction and reports whether stepping may continue.
func (sh *shell) stepOnce() bool {
	in, ok := sh.m.CurrentInstr()
	if !ok {
		fmt.Println("program finished")
		return false
	}
	ip := sh.m.IP()
	out, err := sh.m.Step()
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return false
	}
	fmt.Printf("%4d  %-36s -> %s\n", ip, in, outcomeColor(out))
	return out == hpvm.Advanced || out == hpvm.Jumped
}

func (sh *shell) cmdRun() {
	out, steps, err := sh.m.RunToCompletion()
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	if sh.m.Finished() {
		fmt.Println(green(fmt.Sprintf("program finished after %d steps", steps)))
		return
	}
	in, _ := sh.m.CurrentInstr()
	fmt.Printf("stopped at %d  %s  -> %s after %d steps\n", sh.m.IP(), in, outcomeColor(out), steps)
}

func (sh *shell) cmdNext() {
	if err := sh.m.Advance(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	if in, ok := sh.m.CurrentInstr(); ok {
		fmt.Printf("%4d  %s\n", sh.m.IP(), in)
	} else {
		fmt.Println("program finished")
	}
}

func (sh *shell) cmdAlias(rest string) {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		fmt.Println(red("usage: alias <field> <name>"))
		return
	}
	st := sh.m.Store()
	id, err := st.Resolve(parts[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	if err := st.AddAlias(id, parts[1]); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	fmt.Println(green(parts[1] + " -> " + st.Name(id)))
}

func (sh *shell) cmdDel(rest string) {
	if rest == "" {
		fmt.Println(red("usage: del <name>"))
		return
	}
	if err := sh.m.Store().RemoveAlias(rest); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	fmt.Println(green("removed " + rest))
}

func (sh *shell) cmdDocs(arg string) {
	kind, ok := sh.resolveKind(arg)
	if !ok {
		if arg != "" {
			fmt.Println(red("unknown instruction " + arg))
			return
		}
		fmt.Println("instructions:")
		for _, k := range hpvm.InstrKinds() {
			fmt.Println("  " + k.Name())
		}
		fmt.Println("docs <name> shows one")
		return
	}
	sc := sh.m.Script(kind)
	if sc == nil {
		fmt.Println(red("no script for " + kind.Name()))
		return
	}
	fmt.Print(colorizeScript(sc.Render()))
}

func (sh *shell) cmdEdit(arg string) {
	kind, ok := sh.resolveKind(arg)
	if !ok {
		if arg != "" {
			fmt.Println(red("unknown instruction " + arg))
		} else {
			fmt.Println(red("edit what? no instruction is pending"))
		}
		return
	}
	dir := sh.m.ScriptDir()
	if dir == "" {
		fmt.Println(red("no script directory; start with -scripts DIR"))
		return
	}

	path := filepath.Join(dir, kind.Name()+".md")
	if _, err := os.Stat(path); err != nil {
		sc := sh.m.Script(kind)
		if sc == nil {
			fmt.Println(red("no script for " + kind.Name()))
			return
		}
		if _, err := hpvm.WriteScriptFile(dir, sc); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return
		}
	}

	parts := strings.Fields(sh.editorCmd())
	c := exec.Command(parts[0], append(parts[1:], path)...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}

	if err := sh.m.ReloadScript(kind); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		fmt.Println("previous script kept; edit again to fix it")
		return
	}
	fmt.Println(green("reloaded " + kind.Name()))
}

// resolveKind picks the named instruction kind, or the pending one when the
// argument is empty.
func (sh *shell) resolveKind(arg string) (hpvm.InstrKind, bool) {
	if arg != "" {
		return hpvm.KindByName(strings.TrimSpace(arg))
	}
	in, ok := sh.m.CurrentInstr()
	if !ok {
		return 0, false
	}
	return in.Kind, true
}

func (sh *shell) cmdSave() {
	if sh.session == "" {
		fmt.Println(red("no session file; start with -session FILE"))
		return
	}
	if err := hpvm.SaveSession(sh.session, sh.m, sh.editor); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return
	}
	fmt.Println(green("saved " + sh.session))
}

func (sh *shell) editorCmd() string {
	// Blank or whitespace-only preferences fall through; strings.Fields on
	// the result must yield at least one word.
	for _, ed := range []string{sh.editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(ed) != "" {
			return ed
		}
	}
	return "vi"
}

// -----------------------------------------------------------------------------
// output helpers
// -----------------------------------------------------------------------------

func outcomeColor(o hpvm.Outcome) string {
	switch o {
	case hpvm.MatchFailed:
		return red(o.String())
	case hpvm.Paused, hpvm.NotImplemented:
		return blue(o.String())
	}
	return green(o.String())
}

// colorizeScript colors the command lines of a rendered script and leaves the
// prose alone.
func colorizeScript(md string) string {
	lines := strings.Split(md, "\n")
	code := false
	for i, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			code = !code
			continue
		}
		if code && strings.TrimSpace(ln) != "" {
			lines[i] = blue(ln)
		}
	}
	return strings.Join(lines, "\n")
}
