package main

import "testing"

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []TokenType
	}{
		{"empty", "", nil},
		{"comments only", "hello world", nil},
		{"all eight", "><+-.,[]", []TokenType{
			TokGreater, TokLess, TokPlus, TokMinus, TokDot, TokComma, TokLBracket, TokRBracket,
		}},
		{"mixed with comments", "+ + this is a comment - -", []TokenType{
			TokPlus, TokPlus, TokMinus, TokMinus,
		}},
		{"clear loop idiom", "[-]", []TokenType{TokLBracket, TokMinus, TokRBracket}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			toks := Tokenize([]byte(tc.src))
			if len(toks) != len(tc.want) {
				t.Fatalf("got %d tokens, want %d", len(toks), len(tc.want))
			}
			for i, tok := range toks {
				if tok.Type != tc.want[i] {
					t.Errorf("token %d: got %v, want %v", i, tok.Type, tc.want[i])
				}
			}
		})
	}
}

func TestTokenizePosition(t *testing.T) {
	src := "+\n++\n+"
	toks := Tokenize([]byte(src))
	if len(toks) != 4 {
		t.Fatalf("got %d tokens, want 4", len(toks))
	}
	want := []Token{
		{TokPlus, 1, 1},
		{TokPlus, 2, 1},
		{TokPlus, 2, 2},
		{TokPlus, 3, 1},
	}
	for i, tok := range toks {
		if tok.Line != want[i].Line || tok.Column != want[i].Column {
			t.Errorf("token %d: got %d:%d, want %d:%d", i, tok.Line, tok.Column, want[i].Line, want[i].Column)
		}
	}
}
