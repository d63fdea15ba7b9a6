package htk

import (
	"strconv"
	"strings"

	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// Tokenizer splits model definition text into tokens. It never looks past
// the lexical item it is scanning.
type Tokenizer struct {
	src  string
	pos  int
	line int
}

func NewTokenizer(src string) *Tokenizer {
	return &Tokenizer{src: src, line: 1}
}

// Tokenize scans all of src.
func Tokenize(src string) ([]Token, error) {
	t := NewTokenizer(src)

	var tokens []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return nil, err
		}

		if tok.Kind == KindEOF {
			return tokens, nil
		}

		tokens = append(tokens, tok)
	}
}

// Next returns the next token, or a token of KindEOF once the input is
// exhausted.
func (t *Tokenizer) Next() (Token, error) {
	t.skipSpace()
	if t.pos >= len(t.src) {
		return Token{Kind: KindEOF, Line: t.line}, nil
	}

	c := t.src[t.pos]
	switch {
	case c == '<':
		return t.scanTag()
	case c == '~':
		return t.scanMacro()
	case c == '"' || c == '\'':
		return t.scanQuoted(c)
	case isDigit(c) || (c == '-' || c == '+') && isDigit(t.peek(1)):
		if n := t.matchFloat(); n > 0 {
			return t.scanFloat(n)
		}

		return t.scanInt()
	case isAlpha(c) || c == '_':
		return t.scanWord(), nil
	default:
		return Token{}, errtypes.Errorf(errtypes.Lexical, t.line, "illegal character %q", c)
	}
}

func (t *Tokenizer) skipSpace() {
	for t.pos < len(t.src) {
		switch t.src[t.pos] {
		case '\n':
			t.line++
		case ' ', '\t', '\r':
		default:
			return
		}

		t.pos++
	}
}

func (t *Tokenizer) peek(n int) byte {
	if t.pos+n < len(t.src) {
		return t.src[t.pos+n]
	}

	return 0
}

// matchFloat returns the length of a float literal of the exact form
// [+-]d.dddddde[+-]dd at the current position, or 0.
func (t *Tokenizer) matchFloat() int {
	i := 0
	if c := t.peek(0); c == '-' || c == '+' {
		i++
	}

	if !isDigit(t.peek(i)) || t.peek(i+1) != '.' {
		return 0
	}
	i += 2

	for range 6 {
		if !isDigit(t.peek(i)) {
			return 0
		}
		i++
	}

	if c := t.peek(i); c != 'e' && c != 'E' {
		return 0
	}
	i++

	if c := t.peek(i); c != '-' && c != '+' {
		return 0
	}
	i++

	if !isDigit(t.peek(i)) || !isDigit(t.peek(i+1)) {
		return 0
	}

	return i + 2
}

func (t *Tokenizer) scanFloat(n int) (Token, error) {
	s := t.src[t.pos : t.pos+n]
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return Token{}, errtypes.Errorf(errtypes.Lexical, t.line, "invalid float %q", s)
	}

	t.pos += n
	return Token{Kind: KindFloat, Text: s, Float: float32(f), Line: t.line}, nil
}

func (t *Tokenizer) scanInt() (Token, error) {
	start := t.pos
	if c := t.src[t.pos]; c == '-' || c == '+' {
		t.pos++
	}

	for t.pos < len(t.src) && isDigit(t.src[t.pos]) {
		t.pos++
	}

	s := t.src[start:t.pos]
	n, err := strconv.Atoi(s)
	if err != nil {
		return Token{}, errtypes.Errorf(errtypes.Lexical, t.line, "invalid integer %q", s)
	}

	return Token{Kind: KindInt, Text: s, Int: n, Line: t.line}, nil
}

func (t *Tokenizer) scanTag() (Token, error) {
	end := strings.IndexAny(t.src[t.pos+1:], ">\n")
	if end < 0 || t.src[t.pos+1+end] != '>' {
		return Token{}, errtypes.Errorf(errtypes.Lexical, t.line, "unterminated tag")
	}

	name := strings.ToUpper(t.src[t.pos+1 : t.pos+1+end])
	t.pos += end + 2

	if tag, ok := tags[name]; ok {
		return Token{Kind: KindTag, Tag: tag, Text: name, Line: t.line}, nil
	}

	return Token{Kind: KindOtherTag, Text: name, Line: t.line}, nil
}

func (t *Tokenizer) scanMacro() (Token, error) {
	c := t.peek(1)
	if !isAlpha(c) {
		return Token{}, errtypes.Errorf(errtypes.Lexical, t.line, "illegal character %q", '~')
	}

	t.pos += 2
	kind := KindOtherMacro
	if isMacro(c) {
		kind = KindMacro
	}

	return Token{Kind: kind, Text: string(c), Line: t.line}, nil
}

func (t *Tokenizer) scanQuoted(quote byte) (Token, error) {
	end := strings.IndexAny(t.src[t.pos+1:], string(quote)+"\n")
	if end < 0 || t.src[t.pos+1+end] != quote {
		return Token{}, errtypes.Errorf(errtypes.Lexical, t.line, "unterminated string")
	}

	s := t.src[t.pos+1 : t.pos+1+end]
	t.pos += end + 2
	return Token{Kind: KindString, Text: s, Line: t.line}, nil
}

func (t *Tokenizer) scanWord() Token {
	start := t.pos
	for t.pos < len(t.src) && isWord(t.src[t.pos]) {
		t.pos++
	}

	return Token{Kind: KindString, Text: t.src[start:t.pos], Line: t.line}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func isWord(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '_' || c == '.' || c == ':' || c == '+' || c == '-'
}
