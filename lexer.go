package main

// TokenType enumerates the eight operators of the tape language. Every
// other byte in the source is a comment and is skipped, the convention
// established by the original language (anything that isn't one of the
// eight characters has no meaning).
type TokenType int

const (
	TokGreater TokenType = iota // >
	TokLess                     // <
	TokPlus                     // +
	TokMinus                    // -
	TokDot                      // .
	TokComma                    // ,
	TokLBracket                 // [
	TokRBracket                 // ]
	TokEOF
)

// Token is a single lexed operator with its source position. Position
// tracking exists so later fatal errors (unmatched bracket, nesting too
// deep) and debug-map entries can point back at the source program.
type Token struct {
	Type   TokenType
	Line   int
	Column int
}

// Lexer scans a tape-language source file byte by byte.
type Lexer struct {
	src    []byte
	pos    int
	line   int
	column int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src []byte) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, column: 1}
}

var tokenForByte = map[byte]TokenType{
	'>': TokGreater,
	'<': TokLess,
	'+': TokPlus,
	'-': TokMinus,
	'.': TokDot,
	',': TokComma,
	'[': TokLBracket,
	']': TokRBracket,
}

// Next returns the next operator token, skipping any bytes that are not
// one of the eight operators. Line/column refer to the position of the
// token itself, not the skipped bytes.
func (l *Lexer) Next() Token {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		if tt, ok := tokenForByte[b]; ok {
			tok := Token{Type: tt, Line: l.line, Column: l.column}
			l.advance(b)
			return tok
		}
		l.advance(b)
	}
	return Token{Type: TokEOF, Line: l.line, Column: l.column}
}

func (l *Lexer) advance(b byte) {
	l.pos++
	if b == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
}

// Tokenize runs the lexer to completion and returns every operator token
// in order, without a trailing EOF token.
func Tokenize(src []byte) []Token {
	lx := NewLexer(src)
	var toks []Token
	for {
		tok := lx.Next()
		if tok.Type == TokEOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks
}
