// parser.go — recursive-descent parser for the command language.
//
// OVERVIEW
// --------
// Consumes the token stream produced by lexer.go and builds a compact,
// Lisp-style S-expression AST. Statements are newline-terminated; blocks are
// delimited by the `if` / `else` / `end` keywords. Every statement node
// carries its 1-based source line as the second element so the evaluator can
// report positions without a span sidecar.
//
// Statement nodes:
//
//	("assign", line, lval, rval)            // lval <- rval
//	("if", line, cond, thenBlk, elseBlk)    // cond is ("cmp", ...); blocks are []S
//	("next", line)                          // advance instr_ptr and stop
//	("todo", line)                          // unimplemented marker, no advance
//	("fail", line)                          // match failure
//	("jump", line, rval)                    // transfer control, stop
//	("pusharr", line, arrExpr, elemExpr)    // push(arr, v)
//	("bind", line, addrExpr, cellExpr)      // bind(a, c)
//	("expr", line, rval)                    // bare expression (shell echo)
//
// Condition node:
//
//	("cmp", op, lhs, rhs)                   // op is "=" or "!="
//
// Expression nodes:
//
//	("u", int)      ("i", int32)   ("sym", string)   ("at", int)
//	("fn", string, int)                     // functor literal f/2
//	("field", string)                       // field or alias reference
//	("tmp", string)                         // .name temporary
//	("param", int)                          // $N script parameter
//	("deref1", e)                           // e.*  single-step heap load
//	("addrof", e)                           // e.&  relative-index base address
//	("index", base, idx)                    // e[i]
//	("call", name, args...)                 // Ref/Str/Sym/Int ctors and
//	                                        // deref/push/ask/functor/args
//
// Dependencies
// ------------
//   - lexer.go
//   - errors.go (ParseError)
//   - value.go  (Val, used by the ParseVal literal entry point)
package hpvm

import "fmt"

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

type S = []any

func L(tag string, parts ...any) S { return append([]any{tag}, parts...) }

// ParseScript parses complete command source into a statement list.
func ParseScript(src string) ([]S, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.program()
}

// ParseCommand parses exactly one statement, as typed at the shell or listed
// in a scenario's setup block.
func ParseCommand(src string) (S, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	p.skipNewlines()
	if p.atEnd() {
		return nil, &ParseError{Line: 1, Col: 1, Msg: "empty command"}
	}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if !p.atEnd() {
		return nil, p.errHere("expected a single command")
	}
	return stmt, nil
}

// ParseVal parses one value in display syntax: "@3", ":x", "42", "+1", "d/3",
// "Str('*'/2, @0)". Field references, temporaries and parameters are
// rejected; this is the literal syntax used by session and scenario files.
func ParseVal(src string) (Val, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return Val{}, err
	}
	p := &parser{toks: toks}
	e, err := p.expression()
	if err != nil {
		return Val{}, err
	}
	p.skipNewlines()
	if !p.atEnd() {
		return Val{}, p.errHere("expected a single value")
	}
	return evalLiteral(e)
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
///////////////////////////// PRIVATE IMPLEMENTATION ///////////////////////////
////////////////////////////////////////////////////////////////////////////////

type parser struct {
	toks []Token
	i    int
}

// ─────────────────────────── token basics & helpers ─────────────────────────

func (p *parser) atEnd() bool { return p.peek().Type == EOF }

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) match(tt ...TokenType) bool {
	if p.atEnd() {
		return false
	}
	for _, t := range tt {
		if p.peek().Type == t {
			p.i++
			return true
		}
	}
	return false
}

func (p *parser) need(t TokenType, msg string) (Token, error) {
	if p.match(t) {
		return p.prev(), nil
	}
	return Token{}, p.errHere(msg)
}

func (p *parser) errHere(msg string) error {
	g := p.peek()
	return &ParseError{Line: g.Line, Col: g.Col, Msg: msg}
}

func (p *parser) skipNewlines() {
	for !p.atEnd() && p.peek().Type == NEWLINE {
		p.i++
	}
}

// endOfStmt consumes the statement terminator. Inside a block the `else` and
// `end` keywords may directly follow a statement on the same line.
func (p *parser) endOfStmt(blockEnders ...TokenType) error {
	t := p.peek()
	if t.Type == NEWLINE {
		p.i++
		return nil
	}
	if t.Type == EOF {
		return nil
	}
	for _, tt := range blockEnders {
		if t.Type == tt {
			return nil
		}
	}
	return p.errHere(fmt.Sprintf("unexpected `%s` after statement", t.Lexeme))
}

func tagOf(n S) string {
	if len(n) == 0 {
		return ""
	}
	t, _ := n[0].(string)
	return t
}

// ───────────────────────────────── statements ───────────────────────────────

func (p *parser) program() ([]S, error) {
	var out []S
	for {
		p.skipNewlines()
		if p.atEnd() {
			return out, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		if err := p.endOfStmt(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) statement() (S, error) {
	t := p.peek()
	switch t.Type {
	case IF:
		return p.ifStmt()
	case NEXT:
		p.i++
		return L("next", t.Line), nil
	case TODO:
		p.i++
		return L("todo", t.Line), nil
	case FAIL:
		p.i++
		return L("fail", t.Line), nil
	case JUMP:
		p.i++
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		return L("jump", t.Line, e), nil
	}

	// push(arr, v) and bind(a, c) statement forms. Single-argument push is an
	// expression, so the lookahead backtracks when no second argument appears.
	if t.Type == ID && (t.Lexeme == "push" || t.Lexeme == "bind") {
		save := p.i
		stmt, ok, err := p.twoArgStmt(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return stmt, nil
		}
		p.i = save
	}

	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.match(ARROW) {
		if !isLVal(e) {
			return nil, &ParseError{Line: t.Line, Col: t.Col,
				Msg: "left side of `<-` must be a field, tmp var, parameter, dereference or index"}
		}
		rhs, err := p.expression()
		if err != nil {
			return nil, err
		}
		return L("assign", t.Line, e, rhs), nil
	}
	return L("expr", t.Line, e), nil
}

func (p *parser) twoArgStmt(t Token) (S, bool, error) {
	p.i++ // the name
	if !p.match(LROUND) {
		return nil, false, nil
	}
	a, err := p.expression()
	if err != nil {
		return nil, false, err
	}
	if !p.match(COMMA) {
		return nil, false, nil
	}
	b, err := p.expression()
	if err != nil {
		return nil, false, err
	}
	if _, err := p.need(RROUND, "expected `)`"); err != nil {
		return nil, false, err
	}
	if t.Lexeme == "bind" {
		return L("bind", t.Line, a, b), true, nil
	}
	return L("pusharr", t.Line, a, b), true, nil
}

func isLVal(e S) bool {
	switch tagOf(e) {
	case "field", "tmp", "param", "deref1", "index":
		return true
	}
	return false
}

func (p *parser) ifStmt() (S, error) {
	t := p.peek()
	p.i++ // IF
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	if _, err := p.need(NEWLINE, "expected newline after `if` condition"); err != nil {
		return nil, err
	}
	thenBlk, term, err := p.block(ELSE, END)
	if err != nil {
		return nil, err
	}
	var elseBlk []S
	if term == ELSE {
		if _, err := p.need(NEWLINE, "expected newline after `else`"); err != nil {
			return nil, err
		}
		elseBlk, _, err = p.block(END)
		if err != nil {
			return nil, err
		}
	}
	return L("if", t.Line, cond, thenBlk, elseBlk), nil
}

func (p *parser) condition() (S, error) {
	a, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.match(EQ, NEQ) {
		return nil, p.errHere("expected `=` or `!=` in condition")
	}
	op := p.prev().Lexeme
	b, err := p.expression()
	if err != nil {
		return nil, err
	}
	return L("cmp", op, a, b), nil
}

// block parses statements until one of the terminator keywords, which it
// consumes and returns.
func (p *parser) block(terms ...TokenType) ([]S, TokenType, error) {
	var out []S
	for {
		p.skipNewlines()
		t := p.peek()
		if t.Type == EOF {
			return nil, EOF, p.errHere("expected `end`")
		}
		for _, tt := range terms {
			if t.Type == tt {
				p.i++
				return out, tt, nil
			}
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, EOF, err
		}
		out = append(out, stmt)
		if err := p.endOfStmt(terms...); err != nil {
			return nil, EOF, err
		}
	}
}

// ──────────────────────────────── expressions ───────────────────────────────

func (p *parser) expression() (S, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case DEREF:
			p.i++
			e = L("deref1", e)
		case ADDROF:
			p.i++
			e = L("addrof", e)
		case LSQUARE:
			p.i++
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.need(RSQUARE, "expected `]`"); err != nil {
				return nil, err
			}
			e = L("index", e, idx)
		default:
			return e, nil
		}
	}
}

func (p *parser) primary() (S, error) {
	t := p.peek()
	p.i++
	switch t.Type {
	case UINT:
		return L("u", t.Literal.(int)), nil
	case SINT:
		return L("i", t.Literal.(int32)), nil
	case SYMBOL:
		return L("sym", t.Literal.(string)), nil
	case ATREF:
		return L("at", t.Literal.(int)), nil
	case TMPVAR:
		return L("tmp", t.Literal.(string)), nil
	case PARAM:
		return L("param", t.Literal.(int)), nil
	case QUOTED:
		// a quoted symbol in an expression always begins a functor literal
		if _, err := p.need(SLASH, "expected `/arity` after quoted symbol"); err != nil {
			return nil, err
		}
		ar, err := p.need(UINT, "expected arity after `/`")
		if err != nil {
			return nil, err
		}
		return L("fn", t.Literal.(string), ar.Literal.(int)), nil
	case ID:
		if p.match(SLASH) {
			ar, err := p.need(UINT, "expected arity after `/`")
			if err != nil {
				return nil, err
			}
			return L("fn", t.Lexeme, ar.Literal.(int)), nil
		}
		if p.match(LROUND) {
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			return L("call", append([]any{t.Lexeme}, args...)...), nil
		}
		return L("field", t.Lexeme), nil
	case LROUND:
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RROUND, "expected `)`"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, &ParseError{Line: t.Line, Col: t.Col,
		Msg: fmt.Sprintf("unexpected `%s` in expression", t.Lexeme)}
}

func (p *parser) callArgs() ([]any, error) {
	var args []any
	if p.match(RROUND) {
		return args, nil
	}
	for {
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.need(RROUND, "expected `)`"); err != nil {
		return nil, err
	}
	return args, nil
}

// ─────────────────────────────── literal values ─────────────────────────────

// evalLiteral evaluates the literal-only expression subset used by ParseVal.
func evalLiteral(e S) (Val, error) {
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
	case "call":
		name := e[1].(string)
		args := make([]Val, 0, len(e)-2)
		for _, a := range e[2:] {
			v, err := evalLiteral(a.(S))
			if err != nil {
				return Val{}, err
			}
			args = append(args, v)
		}
		c, err := literalCell(name, args)
		if err != nil {
			return Val{}, err
		}
		return CellVal(c), nil
	}
	return Val{}, fmt.Errorf("not a literal value")
}

// literalCell builds a cell from a constructor name and evaluated arguments.
func literalCell(name string, args []Val) (Cell, error) {
	switch name {
	case "Ref":
		if len(args) != 1 {
			return Cell{}, fmt.Errorf("Ref takes 1 argument, got %d", len(args))
		}
		r, err := args[0].AsCellRef()
		if err != nil {
			return Cell{}, err
		}
		return RefCell(r), nil
	case "Str":
		if len(args) != 2 {
			return Cell{}, fmt.Errorf("Str takes 2 arguments (functor, first arg address), got %d", len(args))
		}
		f, err := args[0].AsFunctor()
		if err != nil {
			return Cell{}, err
		}
		a0, err := args[1].AsCellRef()
		if err != nil {
			return Cell{}, err
		}
		return StrCell(f, a0), nil
	case "Sym":
		if len(args) != 1 {
			return Cell{}, fmt.Errorf("Sym takes 1 argument, got %d", len(args))
		}
		if args[0].Ty != TySymbol {
			return Cell{}, &TypeMismatchError{Expected: "Symbol", Received: args[0].Ty.String(), Expr: args[0].String()}
		}
		return SymCell(args[0].Sym), nil
	case "Int":
		if len(args) != 1 {
			return Cell{}, fmt.Errorf("Int takes 1 argument, got %d", len(args))
		}
		switch args[0].Ty {
		case TyI32:
			return IntCell(args[0].I), nil
		case TyUsize:
			return IntCell(int32(args[0].U)), nil
		}
		return Cell{}, &TypeMismatchError{Expected: "integer", Received: args[0].Ty.String(), Expr: args[0].String()}
	}
	return Cell{}, fmt.Errorf("unknown constructor `%s`", name)
}
