package license

import (
	"regexp"
	"strings"
)

// ExceptionTable lists the exception identifiers recognized by
// ParseStrict's validation pass (the license-exception-id vocabulary
// referenced after WITH).
type ExceptionTable map[string]bool

// licenseRefPattern validates user-defined license references: a
// "LicenseRef-" prefix followed by letters, digits, ".", and "-".
var licenseRefPattern = regexp.MustCompile(`^LicenseRef-[A-Za-z0-9.\-]+$`)

// Parse tokenizes and parses expr into an Expression AST using t's
// symbol table. Parse enforces only the boolean grammar (parens,
// AND/OR/WITH precedence); symbols the table does not recognize survive
// as unresolved leaves until a strict parse or normalization pass
// rejects them.
func (t *Tokenizer) Parse(expr string) (Expression, error) {
	tokens, err := t.Tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &InvalidExpressionError{Code: CodeUnknownToken, Text: expr, Reason: "empty expression"}
	}
	p := &exprParser{tokens: tokens, text: expr}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		tok := p.tokens[p.pos]
		code := CodeInvalidOperatorSequence
		switch tok.Kind {
		case TokenSymbol:
			code = CodeInvalidSymbolSequence
		case TokenRParen, TokenLParen:
			code = CodeInvalidNesting
		}
		return nil, &InvalidExpressionError{Code: code, Text: expr, Token: tok.Text, Offset: tok.Offset, Reason: "unexpected trailing tokens starting at " + quote(tok.Text)}
	}
	return e, nil
}

// ParseStrict is like Parse, but additionally validates every leaf
// against the symbol and exception vocabularies: license identifiers
// must resolve through the symbol table (or be well-formed
// LicenseRef-... references), the right-hand side of WITH must be a
// known exception, and exception identifiers may appear nowhere except
// the right-hand side of WITH.
func (t *Tokenizer) ParseStrict(expr string, exceptions ExceptionTable) (Expression, error) {
	e, err := t.Parse(expr)
	if err != nil {
		return nil, err
	}
	if verr := t.validateStrict(e, exceptions); verr != nil {
		verr.Text = expr
		return nil, verr
	}
	return e, nil
}

// Normalize parses expr and re-renders it in canonical form: SPDX
// identifiers resolved through t's symbol table, AND/OR/WITH uppercased,
// term order preserved as written, and redundant outermost parentheses
// dropped. Symbols that resolve through neither the table nor the
// LicenseRef grammar are rejected. It is the composition of Parse,
// symbol validation, and Canon.
func (t *Tokenizer) Normalize(expr string) (string, error) {
	e, err := t.Parse(expr)
	if err != nil {
		return "", err
	}
	if verr := t.validateSymbols(e); verr != nil {
		verr.Text = expr
		return "", verr
	}
	return Canon(e).String(), nil
}

// NormalizeStrict is Normalize with ParseStrict's full validation.
func (t *Tokenizer) NormalizeStrict(expr string, exceptions ExceptionTable) (string, error) {
	e, err := t.ParseStrict(expr, exceptions)
	if err != nil {
		return "", err
	}
	return Canon(e).String(), nil
}

// validateSymbols checks every license leaf of e against the symbol
// table, allowing well-formed LicenseRef-... references through.
// Exception identifiers after WITH are not checked here; that requires
// an ExceptionTable (see validateStrict).
func (t *Tokenizer) validateSymbols(e Expression) *InvalidExpressionError {
	return walkSymbols(e, func(s Symbol) *InvalidExpressionError {
		return t.checkLicenseID(s.ID)
	})
}

func (t *Tokenizer) checkLicenseID(id string) *InvalidExpressionError {
	if t.canonIDs[id] {
		return nil
	}
	if strings.HasPrefix(id, "LicenseRef-") {
		if !licenseRefPattern.MatchString(id) {
			return &InvalidExpressionError{
				Code:   CodeInvalidSymbol,
				Token:  id,
				Reason: "malformed license reference " + quote(id),
			}
		}
		return nil
	}
	return &InvalidExpressionError{
		Code:   CodeUnknownLicense,
		Token:  id,
		Reason: "unknown license identifier " + quote(id),
	}
}

func (t *Tokenizer) validateStrict(e Expression, exceptions ExceptionTable) *InvalidExpressionError {
	switch v := e.(type) {
	case Symbol:
		if exceptions[v.ID] {
			return &InvalidExpressionError{
				Code:   CodeInvalidException,
				Token:  v.ID,
				Reason: "exception " + quote(v.ID) + " may only appear after WITH",
			}
		}
		return t.checkLicenseID(v.ID)
	case With:
		if exceptions[v.Symbol.ID] {
			return &InvalidExpressionError{
				Code:   CodeInvalidException,
				Token:  v.Symbol.ID,
				Reason: "exception " + quote(v.Symbol.ID) + " cannot be the license side of WITH",
			}
		}
		if err := t.checkLicenseID(v.Symbol.ID); err != nil {
			return err
		}
		if !exceptions[v.Exception] {
			if t.canonIDs[v.Exception] {
				return &InvalidExpressionError{
					Code:   CodeInvalidSymbolAsException,
					Token:  v.Exception,
					Reason: "license " + quote(v.Exception) + " used where an exception is required",
				}
			}
			return &InvalidExpressionError{
				Code:   CodeUnknownException,
				Token:  v.Exception,
				Reason: "unknown license exception " + quote(v.Exception),
			}
		}
		return nil
	case And:
		for _, term := range v.Terms {
			if err := t.validateStrict(term, exceptions); err != nil {
				return err
			}
		}
	case Or:
		for _, term := range v.Terms {
			if err := t.validateStrict(term, exceptions); err != nil {
				return err
			}
		}
	case Paren:
		return t.validateStrict(v.Inner, exceptions)
	}
	return nil
}

// walkSymbols applies f to every license Symbol leaf of e, including
// the license side of WITH clauses, stopping at the first error.
func walkSymbols(e Expression, f func(Symbol) *InvalidExpressionError) *InvalidExpressionError {
	switch v := e.(type) {
	case Symbol:
		return f(v)
	case With:
		return f(v.Symbol)
	case And:
		for _, term := range v.Terms {
			if err := walkSymbols(term, f); err != nil {
				return err
			}
		}
	case Or:
		for _, term := range v.Terms {
			if err := walkSymbols(term, f); err != nil {
				return err
			}
		}
	case Paren:
		return walkSymbols(v.Inner, f)
	}
	return nil
}

// exprParser implements the WITH > AND > OR precedence chain over a
// pre-lexed token stream.
type exprParser struct {
	tokens []Token
	pos    int
	text   string
}

func (p *exprParser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// errOffset is the byte offset of the current token, or the end of the
// input when the token stream is exhausted.
func (p *exprParser) errOffset() int {
	if tok, ok := p.peek(); ok {
		return tok.Offset
	}
	return len(p.text)
}

func (p *exprParser) accept(kind TokenKind) (Token, bool) {
	tok, ok := p.peek()
	if !ok || tok.Kind != kind {
		return Token{}, false
	}
	p.pos++
	return tok, true
}

func (p *exprParser) parseOr() (Expression, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expression{lhs}
	for {
		if _, ok := p.accept(TokenOr); !ok {
			break
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, rhs)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return Or{Terms: terms}, nil
}

func (p *exprParser) parseAnd() (Expression, error) {
	lhs, err := p.parseWith()
	if err != nil {
		return nil, err
	}
	terms := []Expression{lhs}
	for {
		if _, ok := p.accept(TokenAnd); !ok {
			break
		}
		rhs, err := p.parseWith()
		if err != nil {
			return nil, err
		}
		terms = append(terms, rhs)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return And{Terms: terms}, nil
}

func (p *exprParser) parseWith() (Expression, error) {
	if _, ok := p.accept(TokenLParen); ok {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(TokenRParen); !ok {
			return nil, &InvalidExpressionError{Code: CodeInvalidNesting, Text: p.text, Offset: p.errOffset(), Reason: "expected closing parenthesis"}
		}
		return Paren{Inner: inner}, nil
	}

	sym, ok := p.accept(TokenSymbol)
	if !ok {
		return nil, &InvalidExpressionError{Code: CodeInvalidOperatorSequence, Text: p.text, Offset: p.errOffset(), Reason: "expected a license symbol"}
	}
	s := Symbol{ID: sym.Canon}
	if _, ok := p.accept(TokenPlus); ok {
		s.Plus = true
	}

	if _, ok := p.accept(TokenWith); !ok {
		return s, nil
	}
	exc, ok := p.accept(TokenSymbol)
	if !ok {
		return nil, &InvalidExpressionError{Code: CodeInvalidException, Text: p.text, Offset: p.errOffset(), Reason: "expected an exception identifier after WITH"}
	}
	return With{Symbol: s, Exception: exc.Canon}, nil
}
