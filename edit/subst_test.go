package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteFirstMatch(t *testing.T) {
	ed, _ := testEditor(t, "", "aaa")
	require.Equal(t, stOK, exec1(t, ed, "s/a/b/\n"))
	assert.Equal(t, []string{"baa"}, bufLines(t, ed))
}

func TestSubstituteCount(t *testing.T) {
	ed, _ := testEditor(t, "", "aaa")
	require.Equal(t, stOK, exec1(t, ed, "s/a/b/2\n"))
	assert.Equal(t, []string{"aba"}, bufLines(t, ed))
}

func TestSubstituteWholeMatchIsNoop(t *testing.T) {
	ed, _ := testEditor(t, "", "hello world")
	require.Equal(t, stOK, exec1(t, ed, "s/.*/&/\n"))
	assert.Equal(t, []string{"hello world"}, bufLines(t, ed))
	assert.True(t, ed.buf.Modified())
}

func TestSubstituteBackreferenceIsNoop(t *testing.T) {
	ed, _ := testEditor(t, "", "hello world")
	require.Equal(t, stOK, exec1(t, ed, `s/\(.*\)/\1/`+"\n"))
	assert.Equal(t, []string{"hello world"}, bufLines(t, ed))
}

func TestSubstituteBackreferences(t *testing.T) {
	ed, _ := testEditor(t, "", "one two")
	require.Equal(t, stOK, exec1(t, ed, `s/\(one\) \(two\)/\2 \1/`+"\n"))
	assert.Equal(t, []string{"two one"}, bufLines(t, ed))
}

func TestSubstituteEscapedByte(t *testing.T) {
	ed, _ := testEditor(t, "", "abc")
	// A backslash before any other byte emits that byte.
	require.Equal(t, stOK, exec1(t, ed, `s/b/\x/`+"\n"))
	assert.Equal(t, []string{"axc"}, bufLines(t, ed))
}

func TestSubstituteNoMatch(t *testing.T) {
	ed, _ := testEditor(t, "", "abc")
	assert.Equal(t, stErr, exec1(t, ed, "s/z/x/\n"))
	assert.Equal(t, ErrNoMatch, ed.LastError())
	assert.False(t, ed.buf.Modified())
}

func TestSubstituteIgnoreCase(t *testing.T) {
	ed, _ := testEditor(t, "", "Hello")
	require.Equal(t, stOK, exec1(t, ed, "s/hello/bye/i\n"))
	assert.Equal(t, []string{"bye"}, bufLines(t, ed))
}

func TestSubstituteEmptyPatternReusesLast(t *testing.T) {
	ed, _ := testEditor(t, "", "aaa", "aba")
	require.Equal(t, stOK, exec1(t, ed, "1s/a/x/\n"))
	require.Equal(t, stOK, exec1(t, ed, "2s//x/\n"))
	assert.Equal(t, []string{"xaa", "xba"}, bufLines(t, ed))
}

func TestSubstituteNoPreviousPattern(t *testing.T) {
	ed, _ := testEditor(t, "", "abc")
	assert.Equal(t, stErr, exec1(t, ed, "s//x/\n"))
	assert.Equal(t, ErrNoPreviousPattern, ed.LastError())
}

func TestSubstituteReplacementReuse(t *testing.T) {
	ed, _ := testEditor(t, "", "one", "two")
	require.Equal(t, stOK, exec1(t, ed, "1s/one/XX/\n"))
	require.Equal(t, stOK, exec1(t, ed, "2s/two/%/\n"))
	assert.Equal(t, []string{"XX", "XX"}, bufLines(t, ed))
}

func TestSubstituteNoPreviousReplacement(t *testing.T) {
	ed, _ := testEditor(t, "", "one")
	assert.Equal(t, stErr, exec1(t, ed, "s/one/%/\n"))
	assert.Equal(t, ErrNoPreviousSubstitution, ed.LastError())
}

func TestSubstituteRepeatLast(t *testing.T) {
	ed, _ := testEditor(t, "", "aaa")
	require.Equal(t, stOK, exec1(t, ed, "s/a/b/\n"))
	// A bare s repeats the substitution on the next match.
	require.Equal(t, stOK, exec1(t, ed, "s\n"))
	assert.Equal(t, []string{"bba"}, bufLines(t, ed))
}

func TestSubstituteRepeatWithoutPrevious(t *testing.T) {
	ed, _ := testEditor(t, "", "aaa")
	assert.Equal(t, stErr, exec1(t, ed, "s\n"))
	assert.Equal(t, ErrNoPreviousSubstitution, ed.LastError())
}

func TestSubstituteRepeatRFlagUsesSearchPattern(t *testing.T) {
	ed, _ := testEditor(t, "", "axy", "bxy")
	require.Equal(t, stOK, exec1(t, ed, "1s/a/Q/\n"))
	// A search compiles a newer pattern; sr substitutes with it.
	require.Equal(t, stOK, exec1(t, ed, "/xy/\n"))
	require.Equal(t, stOK, exec1(t, ed, "2sr\n"))
	assert.Equal(t, []string{"Qxy", "bQ"}, bufLines(t, ed))
}

func TestSubstituteEmptyMatches(t *testing.T) {
	ed, _ := testEditor(t, "", "abc")
	require.Equal(t, stOK, exec1(t, ed, "s/x*/-/g\n"))
	assert.Equal(t, []string{"-a-b-c-"}, bufLines(t, ed))
}

func TestSubstituteAnchorStart(t *testing.T) {
	ed, _ := testEditor(t, "", "aaa")
	require.Equal(t, stOK, exec1(t, ed, "s/^/#/g\n"))
	assert.Equal(t, []string{"#aaa"}, bufLines(t, ed))
}

func TestSubstituteAnchorEnd(t *testing.T) {
	ed, _ := testEditor(t, "", "abc")
	require.Equal(t, stOK, exec1(t, ed, "s/c$/X/\n"))
	assert.Equal(t, []string{"abX"}, bufLines(t, ed))
}

func TestSubstituteOmittedDelimiterPrints(t *testing.T) {
	ed, out := testEditor(t, "", "abc")
	require.Equal(t, stOK, exec1(t, ed, "s/b/X\n"))
	assert.Equal(t, "aXc\n", out.String())
	assert.Equal(t, []string{"aXc"}, bufLines(t, ed))
}

func TestSubstituteSplitsLines(t *testing.T) {
	// The command list continues on the next input line; the escaped
	// newline becomes part of the replacement, splitting the line.
	ed, _ := testEditor(t, "/\n", "one two")
	require.Equal(t, stOK, exec1(t, ed, "g/one/s/ /\\\n"))
	assert.Equal(t, []string{"one", "two"}, bufLines(t, ed))
	assert.Equal(t, 2, ed.buf.CurrentAddr())
}

func TestSubstituteUndoRestoresLine(t *testing.T) {
	ed, _ := testEditor(t, "", "foo", "bar")
	require.Equal(t, stOK, exec1(t, ed, "1,2s/o\\|a/_/g\n"))
	assert.Equal(t, []string{"f__", "b_r"}, bufLines(t, ed))
	require.Equal(t, stOK, exec1(t, ed, "u\n"))
	assert.Equal(t, []string{"foo", "bar"}, bufLines(t, ed))
	assert.False(t, ed.buf.Modified())
}

func TestSubstituteInvalidSuffix(t *testing.T) {
	ed, _ := testEditor(t, "", "abc")
	assert.Equal(t, stErr, exec1(t, ed, "s/a/b/gg\n"))
	assert.Equal(t, ErrInvalidCommandSuffix, ed.LastError())
}

func TestTranslateBRE(t *testing.T) {
	tests := []struct{ in, want string }{
		{`abc`, `abc`},
		{`a\(b\)c`, `a(b)c`},
		{`a(b)c`, `a\(b\)c`},
		{`a\{2,3\}`, `a{2,3}`},
		{`a+b?`, `a\+b\?`},
		{`a\+b\?`, `a+b?`},
		{`a\|b`, `a|b`},
		{`[a|b(]`, `[a|b(]`},
		{`[[:alpha:]]`, `[[:alpha:]]`},
		{`\<word\>`, `\bword\b`},
		{`*abc`, `\*abc`},
	}
	for _, test := range tests {
		got, err := translateBRE([]byte(test.in))
		require.NoError(t, err, "pattern %q", test.in)
		assert.Equal(t, test.want, string(got), "pattern %q", test.in)
	}
}

func TestTranslateBREErrors(t *testing.T) {
	if _, err := translateBRE([]byte(`a\`)); err != ErrTrailingBackslash {
		t.Errorf(`translateBRE(a\)=%v, want %v`, err, ErrTrailingBackslash)
	}
	if _, err := translateBRE([]byte(`[abc`)); err != ErrUnbalancedBrackets {
		t.Errorf("translateBRE([abc)=%v, want %v", err, ErrUnbalancedBrackets)
	}
	if _, err := translateBRE([]byte(`\(a\)\1`)); err == nil {
		t.Errorf("pattern backreference unexpectedly accepted")
	}
}
