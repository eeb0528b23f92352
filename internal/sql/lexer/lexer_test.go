package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonsql/moonsql/internal/sqlerr"
)

func TestLex_Statement(t *testing.T) {
	toks, errs := Lex("SELECT id, name FROM student WHERE age > 18;")
	require.Empty(t, errs)

	expected := []Token{
		{Keyword, "SELECT", 1, 1},
		{Ident, "id", 1, 8},
		{Punct, ",", 1, 10},
		{Ident, "name", 1, 12},
		{Keyword, "FROM", 1, 17},
		{Ident, "student", 1, 22},
		{Keyword, "WHERE", 1, 30},
		{Ident, "age", 1, 36},
		{Operator, ">", 1, 40},
		{IntLiteral, "18", 1, 42},
		{Punct, ";", 1, 44},
		{EOF, "", 1, 45},
	}
	assert.Equal(t, expected, toks)
}

func TestLex_KeywordsAreCaseInsensitive(t *testing.T) {
	toks, errs := Lex("select From wHeRe")
	require.Empty(t, errs)
	require.Len(t, toks, 4)
	for i, want := range []string{"SELECT", "FROM", "WHERE"} {
		assert.Equal(t, Keyword, toks[i].Type)
		assert.Equal(t, want, toks[i].Lexeme)
	}
}

func TestLex_StringLiterals(t *testing.T) {
	tests := []struct {
		desc  string
		input string
		want  string
	}{
		{"plain", "'ann'", "ann"},
		{"empty", "''", ""},
		{"escaped quote", "'o''brien'", "o'brien"},
		{"spaces kept", "'  x  '", "  x  "},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			toks, errs := Lex(tc.input)
			require.Empty(t, errs)
			require.Len(t, toks, 2)
			assert.Equal(t, StringLiteral, toks[0].Type)
			assert.Equal(t, tc.want, toks[0].Lexeme)
		})
	}
}

func TestLex_UnterminatedString(t *testing.T) {
	_, errs := Lex("SELECT 'oops")
	require.Len(t, errs, 1)
	assert.Equal(t, sqlerr.KindUnterminatedString, errs[0].Kind)
	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, 8, errs[0].Col)
}

func TestLex_Operators(t *testing.T) {
	toks, errs := Lex("= <> != < <= > >= + - * /")
	require.Empty(t, errs)

	var ops []string
	for _, tok := range toks {
		if tok.Type == Operator {
			ops = append(ops, tok.Lexeme)
		}
	}
	assert.Equal(t, []string{"=", "<>", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/"}, ops)
}

func TestLex_CommentsAndWhitespace(t *testing.T) {
	toks, errs := Lex("SELECT -- trailing comment\n-- whole line\nid")
	require.Empty(t, errs)
	require.Len(t, toks, 3)
	assert.Equal(t, "SELECT", toks[0].Lexeme)
	assert.Equal(t, "id", toks[1].Lexeme)
	assert.Equal(t, 3, toks[1].Line)
}

func TestLex_MultipleLineTracking(t *testing.T) {
	toks, errs := Lex("CREATE\n  TABLE\n    t")
	require.Empty(t, errs)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 3, toks[1].Col)
	assert.Equal(t, 3, toks[2].Line)
	assert.Equal(t, 5, toks[2].Col)
}

func TestLex_RecoversAndReportsEveryBadChar(t *testing.T) {
	toks, errs := Lex("SELECT @bad FROM #worse;")
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, sqlerr.KindUnexpectedChar, e.Kind)
		assert.Equal(t, sqlerr.PhaseLex, e.Phase)
	}

	// Scanning continued past the first error: recovery skips the
	// rest of the bad word and picks up at the next whitespace.
	var lexemes []string
	for _, tok := range toks {
		lexemes = append(lexemes, tok.Lexeme)
	}
	assert.Contains(t, lexemes, "SELECT")
	assert.Contains(t, lexemes, "FROM")
	assert.NotContains(t, lexemes, "bad")
}
