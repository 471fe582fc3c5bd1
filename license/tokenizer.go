// Package license implements an SPDX-style license-expression tokenizer,
// boolean (AND/OR/WITH) parser, and normalizer. Unlike a plain SPDX
// identifier scanner, the symbol table supplied to NewTokenizer may map
// multi-word aliases ("Apache 2.0", "GPL v2") onto a single canonical
// identifier ("Apache-2.0", "GPL-2.0-only"), so tokenizing requires
// matching whole phrases rather than single words.
package license

import (
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// SymbolTable maps a license or exception alias (case-insensitive, with
// internal whitespace collapsed to single spaces) to its canonical SPDX
// identifier. A symbol's own canonical form should also appear as a key
// mapping to itself, so lookups don't need a separate fallback path.
type SymbolTable map[string]string

// TokenKind classifies a Token produced by Tokenizer.Tokenize.
type TokenKind int

const (
	TokenSymbol TokenKind = iota
	TokenAnd
	TokenOr
	TokenWith
	TokenLParen
	TokenRParen
	TokenPlus
)

// Token is one lexical unit of a license expression.
type Token struct {
	Kind   TokenKind
	Text   string // original surface text
	Canon  string // canonical form, only set for TokenSymbol
	Known  bool   // whether Canon was resolved through the symbol table
	Offset int    // byte offset of the token in the input
}

// Tokenizer recognizes license/exception symbols — including the
// multi-word aliases in its SymbolTable — plus the fixed AND/OR/WITH
// keywords, parentheses, and the license-id "+" suffix.
type Tokenizer struct {
	table     SymbolTable
	canonIDs  map[string]bool
	maxWords  int
	matcher   *ahocorasick.Matcher
	matchKeys []string
}

// symbolKeyPattern is the character class permitted in symbol-table keys
// and aliases: letters, digits, ".", ":", "-", "_", and spaces.
var symbolKeyPattern = regexp.MustCompile(`^[A-Za-z0-9.:\-_ ]+$`)

// NewTokenizer builds a Tokenizer over the given symbol table, rejecting
// keys outside the permitted character class or equal to a reserved
// keyword (and/or/with). An Aho-Corasick matcher is built over the
// table's keys: KnownSymbols uses it to cheaply report which canonical
// symbols are referenced anywhere in an expression, in a single
// multi-pattern scan rather than one scan per alias. Tokenize itself
// still needs the exact span of each match (the Matcher only reports
// which patterns were found, not where), so it walks the input
// performing its own greedy longest-alias lookup against the same table.
func NewTokenizer(table SymbolTable) (*Tokenizer, error) {
	keys := make([]string, 0, len(table))
	canonIDs := make(map[string]bool, len(table))
	maxWords := 1
	for k, canon := range table {
		if !symbolKeyPattern.MatchString(k) {
			return nil, &InvalidExpressionError{
				Code:   CodeInvalidSymbol,
				Token:  k,
				Reason: "symbol key " + quote(k) + " contains characters outside letters, digits, '.', ':', '-', '_', and spaces",
			}
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "and", "or", "with":
			return nil, &InvalidExpressionError{
				Code:   CodeInvalidSymbol,
				Token:  k,
				Reason: "symbol key " + quote(k) + " is a reserved keyword",
			}
		}
		keys = append(keys, k)
		canonIDs[canon] = true
		if w := strings.Count(k, " ") + 1; w > maxWords {
			maxWords = w
		}
	}
	return &Tokenizer{
		table:     table,
		canonIDs:  canonIDs,
		maxWords:  maxWords,
		matcher:   ahocorasick.NewStringMatcher(keys),
		matchKeys: keys,
	}, nil
}

// KnownSymbols returns the set of canonical identifiers from the symbol
// table that occur anywhere in expr, without regard to the boolean
// grammar — a fast pre-check for "does this text reference license X"
// that does not require a full parse.
func (t *Tokenizer) KnownSymbols(expr string) []string {
	hits := t.matcher.Match([]byte(strings.ToLower(expr)))
	seen := make(map[string]bool, len(hits))
	var out []string
	for _, idx := range hits {
		canon := t.table[t.matchKeys[idx]]
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}
	return out
}

// ExpressionErrorCode classifies why a license expression failed to
// tokenize, parse, or validate.
type ExpressionErrorCode string

const (
	CodeUnknownToken             ExpressionErrorCode = "UnknownToken"
	CodeInvalidNesting           ExpressionErrorCode = "InvalidNesting"
	CodeInvalidOperatorSequence  ExpressionErrorCode = "InvalidOperatorSequence"
	CodeInvalidSymbolSequence    ExpressionErrorCode = "InvalidSymbolSequence"
	CodeInvalidException         ExpressionErrorCode = "InvalidException"
	CodeInvalidSymbolAsException ExpressionErrorCode = "InvalidSymbolAsException"
	CodeInvalidSymbol            ExpressionErrorCode = "InvalidSymbol"
	CodeUnknownLicense           ExpressionErrorCode = "UnknownLicense"
	CodeUnknownException         ExpressionErrorCode = "UnknownException"
)

// InvalidExpressionError is returned when a license expression cannot be
// tokenized, does not conform to the boolean grammar, or fails
// strict/normalization validation.
type InvalidExpressionError struct {
	Code   ExpressionErrorCode
	Text   string
	Token  string
	Offset int
	Reason string
}

func (e *InvalidExpressionError) Error() string {
	msg := "invalid license expression"
	if e.Text != "" {
		msg += " " + quote(e.Text)
	}
	msg += ": " + e.Reason
	if e.Code != "" {
		msg += " (" + string(e.Code) + ")"
	}
	return msg
}

func quote(s string) string { return "\"" + s + "\"" }

// Tokenize lexes a full license expression string. Words not matched by
// the symbol table do not fail the lex: contiguous unmatched words
// coalesce into a single unresolved symbol with the original casing
// preserved, so "my custom license OR MIT" produces two symbol tokens.
// Rejecting unresolved symbols is the job of the strict parse and
// normalization passes, not the tokenizer.
func (t *Tokenizer) Tokenize(expr string) ([]Token, error) {
	var tokens []Token
	words := splitWords(expr)
	i := 0
	for i < len(words) {
		w := words[i].text
		off := words[i].offset
		switch {
		case w == "(":
			tokens = append(tokens, Token{Kind: TokenLParen, Text: w, Offset: off})
			i++
		case w == ")":
			tokens = append(tokens, Token{Kind: TokenRParen, Text: w, Offset: off})
			i++
		case w == "+":
			tokens = append(tokens, Token{Kind: TokenPlus, Text: w, Offset: off})
			i++
		case strings.EqualFold(w, "AND"):
			tokens = append(tokens, Token{Kind: TokenAnd, Text: w, Offset: off})
			i++
		case strings.EqualFold(w, "OR"):
			tokens = append(tokens, Token{Kind: TokenOr, Text: w, Offset: off})
			i++
		case strings.EqualFold(w, "WITH"):
			tokens = append(tokens, Token{Kind: TokenWith, Text: w, Offset: off})
			i++
		default:
			if span, canon, ok := t.longestSymbolAt(words, i); ok {
				raw := joinRaw(words[i : i+span])
				tokens = append(tokens, Token{Kind: TokenSymbol, Text: raw, Canon: canon, Known: true, Offset: off})
				i += span
				continue
			}
			j := i + 1
			for j < len(words) && !isKeywordWord(words[j].text) {
				if _, _, ok := t.longestSymbolAt(words, j); ok {
					break
				}
				j++
			}
			raw := joinRaw(words[i:j])
			tokens = append(tokens, Token{Kind: TokenSymbol, Text: raw, Canon: raw, Offset: off})
			i = j
		}
	}
	return tokens, nil
}

// simpleWordPattern drives TokenizeSimple: parens, the "+" suffix, or a
// run of anything else that isn't whitespace or one of those.
var simpleWordPattern = regexp.MustCompile(`\(|\)|\+|[^\s()+]+`)

// TokenizeSimple is a fast path for expressions known to contain no
// multi-word aliases: one regex split on whitespace and parentheses,
// each word resolved individually against the symbol table.
func (t *Tokenizer) TokenizeSimple(expr string) ([]Token, error) {
	var tokens []Token
	for _, loc := range simpleWordPattern.FindAllStringIndex(expr, -1) {
		w := expr[loc[0]:loc[1]]
		off := loc[0]
		switch {
		case w == "(":
			tokens = append(tokens, Token{Kind: TokenLParen, Text: w, Offset: off})
		case w == ")":
			tokens = append(tokens, Token{Kind: TokenRParen, Text: w, Offset: off})
		case w == "+":
			tokens = append(tokens, Token{Kind: TokenPlus, Text: w, Offset: off})
		case strings.EqualFold(w, "AND"):
			tokens = append(tokens, Token{Kind: TokenAnd, Text: w, Offset: off})
		case strings.EqualFold(w, "OR"):
			tokens = append(tokens, Token{Kind: TokenOr, Text: w, Offset: off})
		case strings.EqualFold(w, "WITH"):
			tokens = append(tokens, Token{Kind: TokenWith, Text: w, Offset: off})
		default:
			if canon, ok := t.table[strings.ToLower(w)]; ok {
				tokens = append(tokens, Token{Kind: TokenSymbol, Text: w, Canon: canon, Known: true, Offset: off})
			} else {
				tokens = append(tokens, Token{Kind: TokenSymbol, Text: w, Canon: w, Offset: off})
			}
		}
	}
	return tokens, nil
}

func isKeywordWord(w string) bool {
	switch {
	case w == "(" || w == ")" || w == "+":
		return true
	case strings.EqualFold(w, "AND"), strings.EqualFold(w, "OR"), strings.EqualFold(w, "WITH"):
		return true
	default:
		return false
	}
}

// longestSymbolAt tries matching the symbol table against the longest
// possible run of words starting at i first, falling back to shorter
// runs, so "Apache 2.0" is recognized as one symbol rather than the two
// words "Apache" and "2.0".
func (t *Tokenizer) longestSymbolAt(words []word, i int) (span int, canon string, ok bool) {
	maxSpan := t.maxWords
	if remaining := len(words) - i; remaining < maxSpan {
		maxSpan = remaining
	}
	for span := maxSpan; span >= 1; span-- {
		candidate := joinNormalized(words[i : i+span])
		if c, found := t.table[candidate]; found {
			return span, c, true
		}
	}
	return 0, "", false
}

type word struct {
	text   string
	offset int
}

// splitWords tokenizes on whitespace and on the single-character symbols
// "(", ")", and "+", which are never part of a license identifier.
func splitWords(s string) []word {
	var out []word
	i := 0
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		case '(', ')', '+':
			out = append(out, word{text: string(s[i]), offset: i})
			i++
			continue
		}
		start := i
		for i < len(s) && !isBoundary(s[i]) {
			i++
		}
		out = append(out, word{text: s[start:i], offset: start})
	}
	return out
}

func isBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '+':
		return true
	default:
		return false
	}
}

func joinNormalized(ws []word) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = strings.ToLower(w.text)
	}
	return strings.Join(parts, " ")
}

func joinRaw(ws []word) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}
