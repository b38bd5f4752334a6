package ejs

import "strconv"

// Recursive-descent parser, one function per grammar production,
// with precedence-layered climbing for expressions — the
// conventional shape for a hand-written parser in Go.

type parser struct {
	l   *lexer
	e   *Engine
	tok token
}

func (e *Engine) newParser(src string) *parser {
	l := newLexer(src)
	e.lex = l
	p := &parser{l: l, e: e}
	p.advance()
	return p
}

func (p *parser) advance() { p.tok = p.l.next() }

func (p *parser) at(kind tokenKind, text string) bool {
	return p.tok.kind == kind && (text == "" || p.tok.text == text)
}

func (p *parser) atPunct(s string) bool   { return p.tok.kind == tokPunct && p.tok.text == s }
func (p *parser) atKeyword(s string) bool { return p.tok.kind == tokKeyword && p.tok.text == s }

func (p *parser) expectPunct(s string) error {
	if !p.atPunct(s) {
		return p.e.throwSyntaxError("expected %q, got %q", s, p.tok.text)
	}
	p.advance()
	return nil
}

func (p *parser) expectKeyword(s string) error {
	if !p.atKeyword(s) {
		return p.e.throwSyntaxError("expected keyword %q, got %q", s, p.tok.text)
	}
	p.advance()
	return nil
}

// parseProgram parses a full source file into a statement list — the
// unit Exec and function bodies both use.
func (p *parser) parseProgram() ([]stmt, error) {
	var out []stmt
	for p.tok.kind != tokEOF {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *parser) parseStatement() (stmt, error) {
	switch {
	case p.atPunct(";"):
		p.advance()
		return &emptyStmt{}, nil
	case p.atPunct("{"):
		return p.parseBlock()
	case p.atKeyword("var"), p.atKeyword("let"), p.atKeyword("const"):
		s, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		p.consumeSemi()
		return s, nil
	case p.atKeyword("function"):
		return p.parseFunctionDecl()
	case p.atKeyword("if"):
		return p.parseIf()
	case p.atKeyword("while"):
		return p.parseWhile()
	case p.atKeyword("do"):
		return p.parseDoWhile()
	case p.atKeyword("for"):
		return p.parseFor()
	case p.atKeyword("break"):
		p.advance()
		label := ""
		if p.tok.kind == tokIdent {
			label = p.tok.text
			p.advance()
		}
		p.consumeSemi()
		return &breakStmt{label: label}, nil
	case p.atKeyword("continue"):
		p.advance()
		label := ""
		if p.tok.kind == tokIdent {
			label = p.tok.text
			p.advance()
		}
		p.consumeSemi()
		return &continueStmt{label: label}, nil
	case p.atKeyword("return"):
		p.advance()
		var x expr
		if !p.atPunct(";") && !p.atPunct("}") && p.tok.kind != tokEOF {
			var err error
			x, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		p.consumeSemi()
		return &returnStmt{x: x}, nil
	case p.atKeyword("throw"):
		p.advance()
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.consumeSemi()
		return &throwStmt{x: x}, nil
	case p.atKeyword("try"):
		return p.parseTry()
	case p.atKeyword("switch"):
		return p.parseSwitch()
	case p.atKeyword("class"):
		def, err := p.parseClassDef(true)
		if err != nil {
			return nil, err
		}
		return &classDeclStmt{def: def}, nil
	default:
		if p.tok.kind == tokIdent {
			save := p.tok
			next := p.l.peek()
			if next.kind == tokPunct && next.text == ":" {
				p.advance()
				p.advance()
				body, err := p.parseStatement()
				if err != nil {
					return nil, err
				}
				return &labeledStmt{label: save.text, body: body}, nil
			}
		}
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.consumeSemi()
		return &exprStmt{x: x}, nil
	}
}

// consumeSemi implements automatic semicolon insertion loosely: an
// explicit `;` is consumed, anything else (EOF, `}`, newline) just
// ends the statement — JS's real ASI has line-break subtleties this
// engine does not model.
func (p *parser) consumeSemi() {
	if p.atPunct(";") {
		p.advance()
	}
}

func (p *parser) parseBlock() (*blockStmt, error) {
	b, _, err := p.parseBlockSource()
	return b, err
}

// parseBlockSource parses a `{ ... }` block the same as parseBlock,
// additionally returning the exact source text spanning its interior
// (the braces excluded). Function bodies capture this span rather than
// keeping the parsed blockStmt, so the body can be re-lexed fresh on
// every call instead of living on as a permanent AST (call.go).
func (p *parser) parseBlockSource() (*blockStmt, string, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, "", err
	}
	start := p.tok.start
	var body []stmt
	for !p.atPunct("}") && p.tok.kind != tokEOF {
		s, err := p.parseStatement()
		if err != nil {
			return nil, "", err
		}
		body = append(body, s)
	}
	end := p.tok.start
	if err := p.expectPunct("}"); err != nil {
		return nil, "", err
	}
	return &blockStmt{body: body}, p.l.sourceSpan(start, end), nil
}

// parseFunctionBodySource parses and discards a `{ ... }` function
// body, keeping only its pre-tokenised bytes: the parse pass here
// exists purely to surface syntax errors at definition time; the
// resulting statement list is never retained, only re-derived per
// call via call.go's callValue.
func (p *parser) parseFunctionBodySource() ([]byte, error) {
	_, src, err := p.parseBlockSource()
	if err != nil {
		return nil, err
	}
	return encodeTokens(tokenise(src)), nil
}

// parseClassDef parses everything after (and including) the `class`
// keyword: an optional name, an optional extends clause, and the
// method list. Each method body goes through the same
// parseParamList/parseFunctionBodySource pair as an object-literal
// shorthand method.
func (p *parser) parseClassDef(needName bool) (*classDef, error) {
	if err := p.expectKeyword("class"); err != nil {
		return nil, err
	}
	def := &classDef{}
	if p.tok.kind == tokIdent {
		def.name = p.tok.text
		p.advance()
	} else if needName {
		return nil, p.e.throwSyntaxError("class declaration requires a name")
	}
	if p.atKeyword("extends") {
		p.advance()
		sup, err := p.parseCallMember()
		if err != nil {
			return nil, err
		}
		def.superExpr = sup
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.atPunct("}") && p.tok.kind != tokEOF {
		if p.atPunct(";") {
			p.advance()
			continue
		}
		isStatic := false
		if p.atKeyword("static") {
			// `static(){}` is a method named static, not a modifier
			if next := p.l.peek(); !(next.kind == tokPunct && next.text == "(") {
				isStatic = true
				p.advance()
			}
		}
		if p.tok.kind != tokIdent && p.tok.kind != tokKeyword && p.tok.kind != tokString {
			return nil, p.e.throwSyntaxError("expected method name, got %q", p.tok.text)
		}
		name := p.tok.text
		p.advance()
		params, err := p.parseParamList()
		if err != nil {
			return nil, err
		}
		code, err := p.parseFunctionBodySource()
		if err != nil {
			return nil, err
		}
		fn := &functionNode{name: name, params: params, code: code}
		if name == "constructor" && !isStatic {
			def.ctor = fn
		} else {
			def.methods = append(def.methods, classMethod{name: name, fn: fn, static: isStatic})
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return def, nil
}

func (p *parser) parseVarDecl() (stmt, error) {
	kind := p.tok.text
	p.advance()
	var names []string
	var inits []expr
	for {
		if p.tok.kind != tokIdent {
			return nil, p.e.throwSyntaxError("expected identifier in %s declaration", kind)
		}
		names = append(names, p.tok.text)
		p.advance()
		var init expr
		if p.atPunct("=") {
			p.advance()
			var err error
			init, err = p.parseAssign()
			if err != nil {
				return nil, err
			}
		}
		inits = append(inits, init)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return &varDeclStmt{kind: kind, names: names, inits: inits}, nil
}

func (p *parser) parseFunctionDecl() (stmt, error) {
	fn, err := p.parseFunctionRest(true)
	if err != nil {
		return nil, err
	}
	return &funcDeclStmt{fn: fn}, nil
}

// parseFunctionRest parses everything after the `function` keyword:
// an optional name, parameter list, and body.
func (p *parser) parseFunctionRest(needName bool) (*functionNode, error) {
	if err := p.expectKeyword("function"); err != nil {
		return nil, err
	}
	name := ""
	if p.tok.kind == tokIdent {
		name = p.tok.text
		p.advance()
	} else if needName {
		return nil, p.e.throwSyntaxError("function declaration requires a name")
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	code, err := p.parseFunctionBodySource()
	if err != nil {
		return nil, err
	}
	return &functionNode{name: name, params: params, code: code}, nil
}

func (p *parser) parseParamList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []string
	for !p.atPunct(")") {
		if p.tok.kind != tokIdent {
			return nil, p.e.throwSyntaxError("expected parameter name, got %q", p.tok.text)
		}
		params = append(params, p.tok.text)
		p.advance()
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parseIf() (stmt, error) {
	p.advance()
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	var els stmt
	if p.atKeyword("else") {
		p.advance()
		els, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return &ifStmt{cond: cond, then: then, els: els}, nil
}

func (p *parser) parseWhile() (stmt, error) {
	p.advance()
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &whileStmt{cond: cond, body: body}, nil
}

func (p *parser) parseDoWhile() (stmt, error) {
	p.advance()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("while"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &doWhileStmt{cond: cond, body: body}, nil
}

func (p *parser) parseFor() (stmt, error) {
	p.advance()
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	if (p.atKeyword("var") || p.atKeyword("let") || p.atKeyword("const")) {
		kind := p.tok.text
		save := p.l.cursor
		saveTok := p.tok
		p.advance()
		if p.tok.kind == tokIdent {
			name := p.tok.text
			p.advance()
			if p.atKeyword("in") || p.atKeyword("of") {
				isOf := p.tok.text == "of"
				p.advance()
				obj, err := p.parseAssign()
				if err != nil {
					return nil, err
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				body, err := p.parseStatement()
				if err != nil {
					return nil, err
				}
				return &forInStmt{declKind: kind, name: name, object: obj, body: body, isOf: isOf}, nil
			}
			// not for-in/of: rewind and parse as a normal var decl
			p.l.cursor = save
			p.tok = saveTok
		} else {
			p.l.cursor = save
			p.tok = saveTok
		}
	}

	var init stmt
	if !p.atPunct(";") {
		if p.atKeyword("var") || p.atKeyword("let") || p.atKeyword("const") {
			var err error
			init, err = p.parseVarDecl()
			if err != nil {
				return nil, err
			}
		} else {
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			init = &exprStmt{x: x}
		}
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	var cond expr
	if !p.atPunct(";") {
		var err error
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	var post expr
	if !p.atPunct(")") {
		var err error
		post, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &forStmt{init: init, cond: cond, post: post, body: body}, nil
}

func (p *parser) parseTry() (stmt, error) {
	p.advance()
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	t := &tryStmt{block: block}
	if p.atKeyword("catch") {
		p.advance()
		if p.atPunct("(") {
			p.advance()
			if p.tok.kind == tokIdent {
				t.catchParam = p.tok.text
				p.advance()
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		cb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		t.catchBlock = cb
	}
	if p.atKeyword("finally") {
		p.advance()
		fb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		t.finallyBlock = fb
	}
	return t, nil
}

func (p *parser) parseSwitch() (stmt, error) {
	p.advance()
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	tag, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var cases []switchCase
	for !p.atPunct("}") && p.tok.kind != tokEOF {
		var c switchCase
		if p.atKeyword("case") {
			p.advance()
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			c.expr = x
		} else if p.atKeyword("default") {
			p.advance()
			c.isDefault = true
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		for !p.atKeyword("case") && !p.atKeyword("default") && !p.atPunct("}") && p.tok.kind != tokEOF {
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			c.body = append(c.body, s)
		}
		cases = append(cases, c)
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &switchStmt{tag: tag, cases: cases}, nil
}

// --- expressions ---

func (p *parser) parseExpression() (expr, error) {
	x, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if p.atPunct(",") {
		exprs := []expr{x}
		for p.atPunct(",") {
			p.advance()
			y, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, y)
		}
		return &sequenceExpr{exprs: exprs}, nil
	}
	return x, nil
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

func (p *parser) parseAssign() (expr, error) {
	if p.looksLikeArrow() {
		return p.parseArrow()
	}
	l, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokPunct && assignOps[p.tok.text] {
		op := p.tok.text
		p.advance()
		r, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &assignExpr{op: op, target: l, value: r}, nil
	}
	return l, nil
}

// looksLikeArrow does bounded lookahead for `ident =>` and `(...) =>`
// without backtracking the whole expression grammar.
func (p *parser) looksLikeArrow() bool {
	if p.tok.kind == tokIdent {
		next := p.l.peek()
		return next.kind == tokPunct && next.text == "=>"
	}
	if p.atPunct("(") {
		save, saveTok, savePeek := p.l.cursor, p.tok, p.l.peeked
		depth := 0
		ok := false
		for {
			if p.tok.kind == tokEOF {
				break
			}
			if p.atPunct("(") {
				depth++
			} else if p.atPunct(")") {
				depth--
				if depth == 0 {
					p.advance()
					ok = p.atPunct("=>")
					break
				}
			}
			p.advance()
		}
		p.l.cursor, p.tok, p.l.peeked = save, saveTok, savePeek
		return ok
	}
	return false
}

func (p *parser) parseArrow() (expr, error) {
	var params []string
	if p.tok.kind == tokIdent {
		params = append(params, p.tok.text)
		p.advance()
	} else {
		var err error
		params, err = p.parseParamList()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct("=>"); err != nil {
		return nil, err
	}
	var code []byte
	if p.atPunct("{") {
		var err error
		code, err = p.parseFunctionBodySource()
		if err != nil {
			return nil, err
		}
	} else {
		// Expression-bodied arrow: capture the raw expression's own
		// source span, then splice it into an implicit `return` so it
		// re-lexes/re-parses through the same statement-list path as
		// every other function body.
		start := p.tok.start
		if _, err := p.parseAssign(); err != nil {
			return nil, err
		}
		end := p.tok.start
		exprSrc := p.l.sourceSpan(start, end)
		code = encodeTokens(tokenise("return (" + exprSrc + ");"))
	}
	return &arrowExpr{fn: &functionNode{params: params, code: code, isArrow: true}}, nil
}

func (p *parser) parseConditional() (expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.atPunct("?") {
		p.advance()
		then, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		els, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &condExpr{cond: cond, then: then, els: els}, nil
	}
	return cond, nil
}

func (p *parser) parseLogicalOr() (expr, error) {
	l, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.atPunct("||") || p.atPunct("??") {
		op := p.tok.text
		p.advance()
		r, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		l = &logicalExpr{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseLogicalAnd() (expr, error) {
	l, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.atPunct("&&") {
		p.advance()
		r, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		l = &logicalExpr{op: "&&", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseBitOr() (expr, error)  { return p.parseBinaryLevel([]string{"|"}, p.parseBitXor) }
func (p *parser) parseBitXor() (expr, error) { return p.parseBinaryLevel([]string{"^"}, p.parseBitAnd) }
func (p *parser) parseBitAnd() (expr, error) { return p.parseBinaryLevel([]string{"&"}, p.parseEquality) }

func (p *parser) parseEquality() (expr, error) {
	return p.parseBinaryLevel([]string{"==", "!=", "===", "!=="}, p.parseRelational)
}

func (p *parser) parseRelational() (expr, error) {
	l, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.atPunct("<"):
			op = "<"
		case p.atPunct(">"):
			op = ">"
		case p.atPunct("<="):
			op = "<="
		case p.atPunct(">="):
			op = ">="
		case p.atKeyword("instanceof"):
			op = "instanceof"
		case p.atKeyword("in"):
			op = "in"
		default:
			return l, nil
		}
		p.advance()
		r, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: op, l: l, r: r}
	}
}

func (p *parser) parseShift() (expr, error) {
	return p.parseBinaryLevel([]string{"<<", ">>", ">>>"}, p.parseAdditive)
}

func (p *parser) parseAdditive() (expr, error) {
	return p.parseBinaryLevel([]string{"+", "-"}, p.parseMultiplicative)
}

func (p *parser) parseMultiplicative() (expr, error) {
	return p.parseBinaryLevel([]string{"*", "/", "%"}, p.parseUnary)
}

func (p *parser) parseBinaryLevel(ops []string, next func() (expr, error)) (expr, error) {
	l, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		if p.tok.kind == tokPunct {
			for _, op := range ops {
				if p.tok.text == op {
					matched = op
					break
				}
			}
		}
		if matched == "" {
			return l, nil
		}
		p.advance()
		r, err := next()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: matched, l: l, r: r}
	}
}

func (p *parser) parseUnary() (expr, error) {
	switch {
	case p.atPunct("!"), p.atPunct("-"), p.atPunct("+"), p.atPunct("~"):
		op := p.tok.text
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: op, x: x, prefix: true}, nil
	case p.atPunct("++"), p.atPunct("--"):
		op := p.tok.text
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: op, x: x, prefix: true}, nil
	case p.atKeyword("typeof"), p.atKeyword("void"), p.atKeyword("delete"):
		op := p.tok.text
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: op, x: x, prefix: true}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *parser) parsePostfix() (expr, error) {
	x, err := p.parseCallMember()
	if err != nil {
		return nil, err
	}
	if p.atPunct("++") || p.atPunct("--") {
		op := p.tok.text
		p.advance()
		return &unaryExpr{op: op, x: x, prefix: false}, nil
	}
	return x, nil
}

func (p *parser) parseCallMember() (expr, error) {
	var x expr
	var err error
	if p.atKeyword("new") {
		p.advance()
		callee, err := p.parseCallMemberNoCall()
		if err != nil {
			return nil, err
		}
		var args []expr
		if p.atPunct("(") {
			args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		x = &newExpr{callee: callee, args: args}
	} else {
		x, err = p.parsePrimary()
		if err != nil {
			return nil, err
		}
	}
	for {
		switch {
		case p.atPunct("."):
			p.advance()
			if p.tok.kind != tokIdent && p.tok.kind != tokKeyword {
				return nil, p.e.throwSyntaxError("expected property name after '.'")
			}
			name := p.tok.text
			p.advance()
			x = &memberExpr{object: x, property: &identExpr{name: name}, computed: false}
		case p.atPunct("?."):
			p.advance()
			if p.tok.kind != tokIdent {
				return nil, p.e.throwSyntaxError("expected property name after '?.'")
			}
			name := p.tok.text
			p.advance()
			x = &memberExpr{object: x, property: &identExpr{name: name}, computed: false, optional: true}
		case p.atPunct("["):
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			x = &memberExpr{object: x, property: idx, computed: true}
		case p.atPunct("("):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &callExpr{callee: x, args: args}
		default:
			return x, nil
		}
	}
}

// parseCallMemberNoCall parses a `new` callee: member expressions
// without trailing call parens (those belong to the `new` itself).
func (p *parser) parseCallMemberNoCall() (expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atPunct("."):
			p.advance()
			name := p.tok.text
			p.advance()
			x = &memberExpr{object: x, property: &identExpr{name: name}, computed: false}
		case p.atPunct("["):
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			x = &memberExpr{object: x, property: idx, computed: true}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseArgs() ([]expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []expr
	for !p.atPunct(")") {
		if p.atPunct("...") {
			p.advance()
			x, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, &spreadExpr{x: x})
		} else {
			x, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, x)
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (expr, error) {
	switch {
	case p.tok.kind == tokInt:
		v := p.tok.ival
		p.advance()
		return &numberLit{isInt: true, i: v}, nil
	case p.tok.kind == tokFloat:
		v := p.tok.fval
		p.advance()
		return &numberLit{isInt: false, f: v}, nil
	case p.tok.kind == tokString:
		v := p.tok.text
		p.advance()
		return &stringLit{v: v}, nil
	case p.tok.kind == tokTemplateLiteral:
		return p.parseTemplateLiteralExpr()
	case p.tok.kind == tokRegex:
		txt := p.tok.text
		p.advance()
		lastSlash := lastIndexByte(txt, '/')
		return &regexLit{pattern: txt[1:lastSlash], flags: txt[lastSlash+1:]}, nil
	case p.atKeyword("true"):
		p.advance()
		return &boolLit{v: true}, nil
	case p.atKeyword("false"):
		p.advance()
		return &boolLit{v: false}, nil
	case p.atKeyword("null"):
		p.advance()
		return &nullLit{}, nil
	case p.atKeyword("undefined"):
		p.advance()
		return &undefinedLit{}, nil
	case p.atKeyword("this"):
		p.advance()
		return &thisExpr{}, nil
	case p.atKeyword("function"):
		fn, err := p.parseFunctionRest(false)
		if err != nil {
			return nil, err
		}
		return &funcExpr{fn: fn}, nil
	case p.atKeyword("class"):
		def, err := p.parseClassDef(false)
		if err != nil {
			return nil, err
		}
		return &classExpr{def: def}, nil
	case p.atKeyword("super"):
		p.advance()
		return &superExpr{}, nil
	case p.tok.kind == tokIdent:
		name := p.tok.text
		p.advance()
		return &identExpr{name: name}, nil
	case p.atPunct("("):
		p.advance()
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return x, nil
	case p.atPunct("["):
		return p.parseArrayLit()
	case p.atPunct("{"):
		return p.parseObjectLit()
	default:
		return nil, p.e.throwSyntaxError("unexpected token %q", p.tok.text)
	}
}

func (p *parser) parseTemplateLiteralExpr() (expr, error) {
	t := p.tok
	p.advance()
	lit := &templateLit{}
	for i, part := range t.parts {
		if t.isExpr[i] {
			savedLex := p.e.lex
			sub := p.e.newParser(part)
			x, err := sub.parseExpression()
			p.e.lex = savedLex
			if err != nil {
				return nil, err
			}
			lit.exprs = append(lit.exprs, x)
			lit.parts = append(lit.parts, "")
		} else {
			lit.parts = append(lit.parts, part)
			lit.exprs = append(lit.exprs, nil)
		}
	}
	return lit, nil
}

func (p *parser) parseArrayLit() (expr, error) {
	p.advance()
	var elems []expr
	for !p.atPunct("]") {
		if p.atPunct(",") {
			elems = append(elems, nil)
			p.advance()
			continue
		}
		if p.atPunct("...") {
			p.advance()
			x, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			elems = append(elems, &spreadExpr{x: x})
		} else {
			x, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			elems = append(elems, x)
		}
		if p.atPunct(",") {
			p.advance()
		} else {
			break
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &arrayLit{elems: elems}, nil
}

func (p *parser) parseObjectLit() (expr, error) {
	p.advance()
	lit := &objectLit{}
	for !p.atPunct("}") {
		var key expr
		computed := false
		kind := propPlain
		// `get name(){}` / `set name(v){}` accessor properties; a bare
		// `get:`/`get(){}`/`get,` stays an ordinary key named get
		if p.tok.kind == tokIdent && (p.tok.text == "get" || p.tok.text == "set") {
			if next := p.l.peek(); !(next.kind == tokPunct && (next.text == ":" || next.text == "(" || next.text == "," || next.text == "}")) {
				if p.tok.text == "get" {
					kind = propGetter
				} else {
					kind = propSetter
				}
				p.advance()
			}
		}
		if p.atPunct("[") {
			p.advance()
			k, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			key = k
			computed = true
		} else if p.tok.kind == tokString {
			key = &stringLit{v: p.tok.text}
			p.advance()
		} else if p.tok.kind == tokInt {
			key = &stringLit{v: strconv.FormatInt(p.tok.ival, 10)}
			p.advance()
		} else {
			key = &identExpr{name: p.tok.text}
			p.advance()
		}

		var val expr
		if kind != propPlain || p.atPunct("(") {
			// accessor body, or shorthand method: key(...) { ... }
			params, err := p.parseParamList()
			if err != nil {
				return nil, err
			}
			code, err := p.parseFunctionBodySource()
			if err != nil {
				return nil, err
			}
			name := ""
			if id, ok := key.(*identExpr); ok {
				name = id.name
			}
			val = &funcExpr{fn: &functionNode{name: name, params: params, code: code}}
		} else if p.atPunct(":") {
			p.advance()
			v, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			val = v
		} else if id, ok := key.(*identExpr); ok {
			val = &identExpr{name: id.name} // shorthand {x}
		}

		lit.keys = append(lit.keys, key)
		lit.values = append(lit.values, val)
		lit.computed = append(lit.computed, computed)
		lit.kinds = append(lit.kinds, kind)

		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return lit, nil
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
