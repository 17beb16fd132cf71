package edit

import (
	"github.com/almoore/ged/buffer"
	"github.com/almoore/ged/interrupt"
)

// The s command: s/PATTERN/REPLACEMENT/FLAGS with any single-byte
// delimiter. An empty pattern reuses the most recently compiled one; a
// replacement of a single % reuses the previous replacement. A bare s
// followed only by flag characters repeats the last substitution,
// complementing the g and p flags and with r selecting the last search
// pattern instead of the last substitute pattern.

// s-repeat flags.
const (
	sfG    = 1 << iota // complement previous global suffix
	sfP                // complement previous print suffix
	sfR                // use the last search pattern
	sfNone             // repeat with no flags at all
)

func (ed *Editor) commandS(cb *cmdBuf, pflagsp *int, addrCnt int, isGlobal bool) status {
	if !ed.setAddrRangeCurrent(addrCnt) {
		return stErr
	}

	sflags := 0
	for {
		bad := false
		switch ch := cb.peek(); {
		case ch >= '1' && ch <= '9':
			n, ok := ed.parseInt(cb)
			if sflags&sfG != 0 || !ok || n <= 0 {
				bad = true
			} else {
				sflags |= sfG
				ed.sNum = n
			}
		case ch == '\n':
			sflags |= sfNone
		case ch == 'g':
			if sflags&sfG != 0 {
				bad = true
			} else {
				sflags |= sfG
				if ed.sNum > 0 {
					ed.sNum = 0
				} else {
					ed.sNum = 1
				}
				cb.next()
			}
		case ch == 'p':
			if sflags&sfP != 0 {
				bad = true
			} else {
				sflags |= sfP
				cb.next()
			}
		case ch == 'r':
			if sflags&sfR != 0 {
				bad = true
			} else {
				sflags |= sfR
				cb.next()
			}
		default:
			if sflags != 0 {
				bad = true
			}
		}
		if bad {
			return ed.error(ErrInvalidCommandSuffix)
		}
		if sflags == 0 || cb.peek() == '\n' {
			break
		}
	}

	if sflags != 0 { // repeat the last substitution
		if ed.substRE == nil {
			return ed.error(ErrNoPreviousSubstitution)
		}
		if sflags&sfR != 0 {
			if ed.searchRE == nil {
				return ed.error(ErrNoPreviousPattern)
			}
			ed.substRE = ed.searchRE
		}
		if sflags&sfP != 0 {
			ed.sPflags ^= ed.sMask
		}
		cb.next() // the newline
	} else {
		delimiter := cb.peek()
		if delimiter == ' ' || delimiter == '\n' {
			return ed.error(ErrInvalidPatternDelimiter)
		}
		cb.next()
		pat, err := extractPattern(cb, delimiter)
		if err != nil {
			return ed.error(err)
		}
		if len(pat) == 0 && ed.lastCompiled == nil {
			return ed.error(ErrNoPreviousPattern)
		}
		if cb.peek() == '\n' {
			return ed.error(ErrMissingPatternDelimiter)
		}
		cb.next() // the delimiter between pattern and replacement
		if err := ed.extractReplacement(cb, delimiter, isGlobal); err != nil {
			return ed.error(err)
		}
		ed.sPflags = 0
		ed.sNum = 1
		ignoreCase := false
		if cb.peek() == '\n' { // omitted last delimiter
			cb.next() // skip newline for global
			ed.sPflags = pfP
		} else {
			if cb.peek() == delimiter {
				cb.next()
			}
			if !ed.getCommandSSuffix(cb, &ed.sPflags, &ed.sNum, &ignoreCase) {
				return stErr
			}
		}
		ed.sMask = ed.sPflags & (pfL | pfN | pfP)
		if ed.sMask == 0 {
			ed.sMask = pfP
		}
		if len(pat) == 0 {
			ed.substRE = ed.lastCompiled
		} else {
			interrupt.Disable()
			re, err := ed.compilePattern(pat, ignoreCase)
			interrupt.Enable()
			if err != nil {
				return ed.error(err)
			}
			ed.substRE = re
			ed.lastCompiled = re
		}
	}

	*pflagsp = ed.sPflags
	if !isGlobal {
		ed.buf.ClearUndoStack()
	}
	if err := ed.searchAndReplace(ed.firstAddr, ed.secondAddr, ed.sNum, isGlobal); err != nil {
		return ed.error(err)
	}
	return stOK
}

// getCommandSSuffix parses the flag characters that may follow the
// closing delimiter of an s command.
func (ed *Editor) getCommandSSuffix(cb *cmdBuf, pflagsp, snump *int, ignoreCasep *bool) bool {
	rep := false // a g or count was seen
	bad := false
loop:
	for {
		switch ch := cb.peek(); {
		case ch >= '1' && ch <= '9':
			n, ok := ed.parseInt(cb)
			if rep || !ok || n <= 0 {
				bad = true
				break loop
			}
			rep = true
			*snump = n
			continue
		case ch == 'g':
			if rep {
				break loop
			}
			rep = true
			*snump = 0
		case ch == 'i' || ch == 'I':
			if *ignoreCasep {
				break loop
			}
			*ignoreCasep = true
		case ch == 'l':
			if *pflagsp&pfL != 0 {
				break loop
			}
			*pflagsp |= pfL
		case ch == 'n':
			if *pflagsp&pfN != 0 {
				break loop
			}
			*pflagsp |= pfN
		case ch == 'p':
			if *pflagsp&pfP != 0 {
				break loop
			}
			*pflagsp |= pfP
		default:
			break loop
		}
		cb.next()
	}
	if bad || cb.next() != '\n' { // skip newline for global
		ed.err = ErrInvalidCommandSuffix
		return false
	}
	return true
}

// extractReplacement reads the replacement template. A lone % reuses
// the previous template. Backslash pairs are copied verbatim; a
// backslash-escaped newline outside a global command continues the
// template on the next input line.
func (ed *Editor) extractReplacement(cb *cmdBuf, delimiter byte, isGlobal bool) error {
	if cb.peek() == '%' &&
		(cb.peek2() == delimiter || (cb.peek2() == '\n' && (!isGlobal || cb.pos+2 >= len(cb.s)))) {
		cb.next()
		if !ed.haveRepl {
			return ErrNoPreviousSubstitution
		}
		return nil
	}
	var buf []byte
	for cb.peek() != delimiter {
		if cb.peek() == '\n' && (!isGlobal || cb.pos+1 >= len(cb.s)) {
			break
		}
		if cb.peek() == 0 {
			break
		}
		c := cb.next()
		buf = append(buf, c)
		if c != '\\' {
			continue
		}
		c = cb.next()
		buf = append(buf, c)
		if c == '\n' && !isGlobal {
			// In a command list newlines are already unescaped; here the
			// template continues on the next input line.
			line, err := ed.getTtyLine()
			if err != nil {
				return err
			}
			if len(line) == 0 {
				return ErrUnexpectedEOF
			}
			cb.set(line)
		}
	}
	interrupt.Disable()
	ed.replTemplate = append(ed.replTemplate[:0], buf...)
	ed.haveRepl = true
	interrupt.Enable()
	return nil
}

// replaceMatchedText appends the expansion of the replacement template
// for one match: literal bytes, & for the whole match, and \1..\9 for
// captured groups. A backslash before any other byte emits that byte.
func (ed *Editor) replaceMatchedText(dst, txt []byte, m []int) []byte {
	nsub := len(m)/2 - 1
	tpl := ed.replTemplate
	for i := 0; i < len(tpl); i++ {
		switch {
		case tpl[i] == '&':
			dst = append(dst, txt[m[0]:m[1]]...)
		case tpl[i] == '\\' && i+1 < len(tpl):
			i++
			if d := tpl[i]; d >= '1' && d <= '9' && int(d-'0') <= nsub {
				n := int(d - '0')
				if m[2*n] >= 0 {
					dst = append(dst, txt[m[2*n]:m[2*n+1]]...)
				}
			} else {
				dst = append(dst, tpl[i])
			}
		default:
			dst = append(dst, tpl[i])
		}
	}
	return dst
}

// lineReplace produces the new text of one line with one or all
// matches replaced. It returns nil when nothing matched. The result is
// newline terminated and may contain embedded newlines, in which case
// the line becomes several.
func (ed *Editor) lineReplace(lp *buffer.Node, snum int) ([]byte, error) {
	txt, err := ed.buf.GetLine(lp)
	if err != nil {
		return nil, err
	}
	global := snum <= 0
	ms := ed.substRE.FindAllSubmatchIndex(txt, -1)
	if len(ms) == 0 {
		return nil, nil
	}
	var out []byte
	changed := false
	prev := 0
	for matchno, m := range ms {
		if !global && matchno+1 != snum {
			continue
		}
		out = append(out, txt[prev:m[0]]...)
		out = ed.replaceMatchedText(out, txt, m)
		prev = m[1]
		changed = true
		if !global {
			break
		}
	}
	if !changed {
		return nil, nil
	}
	out = append(out, txt[prev:]...)
	out = append(out, '\n')
	return out, nil
}

// searchAndReplace applies the compiled substitution to every line of
// [first, second]. A changed line is deleted and its replacement text
// inserted line by line under one consolidated ADD atom.
func (ed *Editor) searchAndReplace(first, second, snum int, isGlobal bool) error {
	matchFound := false
	addr := first
	for lc := 0; lc <= second-first; lc, addr = lc+1, addr+1 {
		lp := ed.buf.SearchNode(addr)
		newText, err := ed.lineReplace(lp, snum)
		if err != nil {
			return err
		}
		if newText == nil {
			continue
		}
		var up *buffer.UndoAtom
		interrupt.Disable()
		if err := ed.buf.Delete(addr, addr, isGlobal); err != nil {
			interrupt.Enable()
			return err
		}
		ed.buf.SetCurrentAddr(addr - 1)
		rest := newText
		for len(rest) > 0 {
			rest, err = ed.buf.PutLine(rest, ed.buf.CurrentAddr())
			if err != nil {
				interrupt.Enable()
				return err
			}
			if up != nil {
				up.ExtendTail(ed.buf.CurrentAddr())
			} else {
				up = ed.buf.PushUndoAtom(buffer.UADD, ed.buf.CurrentAddr(), ed.buf.CurrentAddr())
			}
		}
		interrupt.Enable()
		addr = ed.buf.CurrentAddr()
		matchFound = true
		interrupt.Check()
	}
	if !matchFound && !isGlobal {
		return ErrNoMatch
	}
	return nil
}
