package edit

import (
	"errors"
	"regexp"

	"github.com/almoore/ged/interrupt"
)

// The matcher behind the glue is the standard regexp package. User
// patterns are POSIX basic or extended expressions; basic syntax is
// translated before compiling. The matcher takes byte slices with
// explicit length, so lines containing NUL bytes match directly.

var errBackrefUnsupported = errors.New("backreferences in patterns are not supported")

// parseCharClass returns the index just past a bracket expression
// beginning at s[i] (which is the byte after '['), or -1 if the
// brackets are unbalanced. POSIX [. .], [: :], and [= =] classes are
// honored.
func parseCharClass(s []byte, i int) int {
	if i < len(s) && s[i] == '^' {
		i++
	}
	if i < len(s) && s[i] == ']' {
		i++
	}
	for i < len(s) && s[i] != ']' {
		if s[i] == '[' && i+1 < len(s) {
			if d := s[i+1]; d == '.' || d == ':' || d == '=' {
				i += 2
				for i+1 < len(s) && !(s[i] == d && s[i+1] == ']') {
					i++
				}
				if i+1 >= len(s) {
					return -1
				}
				i++ // at ']' closing the class
			}
		}
		i++
	}
	if i >= len(s) {
		return -1
	}
	return i + 1
}

// extractPattern copies the pattern text up to the delimiter or the
// end of the line, honoring bracket expressions and escapes.
func extractPattern(cb *cmdBuf, delimiter byte) ([]byte, error) {
	s := cb.s
	i := cb.pos
	for i < len(s) && s[i] != delimiter && s[i] != '\n' {
		switch s[i] {
		case '[':
			j := parseCharClass(s, i+1)
			if j < 0 {
				return nil, ErrUnbalancedBrackets
			}
			i = j
		case '\\':
			if i+1 >= len(s) || s[i+1] == '\n' {
				return nil, ErrTrailingBackslash
			}
			i += 2
		default:
			i++
		}
	}
	pat := s[cb.pos:i]
	cb.pos = i
	return pat, nil
}

// translateBRE rewrites a basic regular expression into the syntax the
// matcher accepts: \( \) \{ \} become grouping and intervals, the
// unescaped forms become literals, and the \< \> word anchors become
// \b. Backreferences in the pattern have no RE2 equivalent.
func translateBRE(pat []byte) ([]byte, error) {
	out := make([]byte, 0, len(pat)+8)
	atStart := true
	for i := 0; i < len(pat); {
		c := pat[i]
		switch c {
		case '\\':
			if i+1 >= len(pat) {
				return nil, ErrTrailingBackslash
			}
			d := pat[i+1]
			i += 2
			switch {
			case d == '(' || d == ')' || d == '{' || d == '}' || d == '|' || d == '+' || d == '?':
				out = append(out, d)
			case d == '<' || d == '>':
				out = append(out, '\\', 'b')
			case d >= '1' && d <= '9':
				return nil, errBackrefUnsupported
			default:
				out = append(out, '\\', d)
			}
			atStart = d == '('
			continue
		case '(', ')', '{', '}', '|', '+', '?':
			out = append(out, '\\', c)
		case '*':
			if atStart {
				out = append(out, '\\', '*')
			} else {
				out = append(out, c)
			}
		case '[':
			j := parseCharClass(pat, i+1)
			if j < 0 {
				return nil, ErrUnbalancedBrackets
			}
			out = append(out, pat[i:j]...)
			i = j
			atStart = false
			continue
		default:
			out = append(out, c)
		}
		atStart = c == '^' && i == 0
		i++
	}
	return out, nil
}

// compilePattern compiles a user pattern according to the session's
// syntax and the ignore-case flag.
func (ed *Editor) compilePattern(pat []byte, ignoreCase bool) (*regexp.Regexp, error) {
	src := pat
	if !ed.opts.ExtendedRegexp {
		var err error
		if src, err = translateBRE(pat); err != nil {
			return nil, err
		}
	}
	expr := string(src)
	if ignoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// getCompiledRegex reads a delimited pattern from the command line and
// compiles it, updating the search register. An empty pattern reuses
// the most recently compiled one. The closing delimiter, if present,
// is left for the caller.
func (ed *Editor) getCompiledRegex(cb *cmdBuf) (*regexp.Regexp, error) {
	delimiter := cb.peek()
	if delimiter == ' ' {
		return nil, ErrInvalidPatternDelimiter
	}
	if delimiter == '\n' {
		if ed.lastCompiled == nil {
			return nil, ErrNoPreviousPattern
		}
		return ed.lastCompiled, nil
	}
	cb.next()
	if cb.peek() == delimiter || cb.peek() == '\n' {
		if ed.lastCompiled == nil {
			return nil, ErrNoPreviousPattern
		}
		return ed.lastCompiled, nil
	}
	pat, err := extractPattern(cb, delimiter)
	if err != nil {
		return nil, err
	}
	interrupt.Disable()
	defer interrupt.Enable()
	re, err := ed.compilePattern(pat, false)
	if err != nil {
		return nil, err
	}
	ed.searchRE = re
	ed.lastCompiled = re
	return re, nil
}

// nextMatchingNodeAddr returns the address of the next line matching
// the delimited pattern, searching forward for / and backward for ?,
// wrapping around the buffer. The current line is tested last.
func (ed *Editor) nextMatchingNodeAddr(cb *cmdBuf) (int, error) {
	delimiter := cb.peek()
	forward := delimiter == '/'
	re, err := ed.getCompiledRegex(cb)
	if err != nil {
		return -1, err
	}
	if cb.peek() == delimiter {
		cb.next()
	}
	cur := ed.buf.CurrentAddr()
	addr := cur
	for {
		if forward {
			addr = ed.buf.IncAddr(addr)
		} else {
			addr = ed.buf.DecAddr(addr)
		}
		if addr != 0 {
			s, err := ed.buf.GetLine(ed.buf.SearchNode(addr))
			if err != nil {
				return -1, err
			}
			if re.Match(s) {
				return addr, nil
			}
		}
		if addr == cur {
			return -1, ErrNoMatch
		}
		interrupt.Check()
	}
}

// buildActiveList marks every line in [first, second] whose text
// matches (or, for v and V, does not match) the delimited pattern.
func (ed *Editor) buildActiveList(cb *cmdBuf, first, second int, match bool) error {
	delimiter := cb.peek()
	if delimiter == ' ' || delimiter == '\n' {
		return ErrInvalidPatternDelimiter
	}
	re, err := ed.getCompiledRegex(cb)
	if err != nil {
		return err
	}
	if cb.peek() == delimiter {
		cb.next()
	}
	ed.buf.ClearActiveList()
	lp := ed.buf.SearchNode(first)
	for addr := first; addr <= second; addr, lp = addr+1, lp.Forw() {
		s, err := ed.buf.GetLine(lp)
		if err != nil {
			return err
		}
		if re.Match(s) == match {
			ed.buf.SetActiveNode(lp)
		}
		interrupt.Check()
	}
	return nil
}
