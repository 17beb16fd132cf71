package edit

import "strconv"

// The address syntax is:
//
//	addr:  n | . | $ | 'x | /RE/ | ?RE? | addr ± n | addr,addr | addr;addr
//
// A decimal literal names a line; . is the current line; $ is the
// last; 'x is the line holding mark x; /RE/ and ?RE? search forward
// and backward; + and - offset by a count (default 1); , and ;
// separate a range, ; setting the current address to its left side.
// A bare , is 1,$ and a bare ; is .,$.

// parseInt reads a decimal number with optional sign.
func (ed *Editor) parseInt(cb *cmdBuf) (int, bool) {
	start := cb.pos
	if c := cb.peek(); c == '+' || c == '-' {
		cb.pos++
	}
	for isDigit(cb.peek()) {
		cb.pos++
	}
	if cb.pos == start || !isDigit(cb.s[cb.pos-1]) {
		cb.pos = start
		ed.err = ErrInvalidNumber
		return 0, false
	}
	n, err := strconv.Atoi(string(cb.s[start:cb.pos]))
	if err != nil {
		cb.pos = start
		ed.err = ErrNumberOutOfRange
		return 0, false
	}
	return n, true
}

// extractAddresses reads leading address tokens from the command line
// into firstAddr and secondAddr. It returns the number of addresses
// read, or -1 on error. With no addresses both are set to the current
// address; with one, both are set to it.
func (ed *Editor) extractAddresses(cb *cmdBuf) int {
	first := true // true == expecting an address, false == an offset

	ed.firstAddr, ed.secondAddr = -1, -1
	cb.skipBlanks()

	for {
		ch := cb.peek()
		switch {
		case isDigit(ch):
			n, ok := ed.parseInt(cb)
			if !ok {
				return -1
			}
			if first {
				first = false
				ed.secondAddr = n
			} else {
				ed.secondAddr += n
			}
		case ch == ' ' || ch == '\t':
			cb.next()
			cb.skipBlanks()
		case ch == '+' || ch == '-':
			if first {
				first = false
				ed.secondAddr = ed.buf.CurrentAddr()
			}
			if isDigit(cb.peek2()) {
				n, ok := ed.parseInt(cb)
				if !ok {
					return -1
				}
				ed.secondAddr += n
			} else {
				cb.next()
				if ch == '+' {
					ed.secondAddr++
				} else {
					ed.secondAddr--
				}
			}
		case ch == '.' || ch == '$':
			if !first {
				ed.err = ErrInvalidAddress
				return -1
			}
			first = false
			cb.next()
			if ch == '.' {
				ed.secondAddr = ed.buf.CurrentAddr()
			} else {
				ed.secondAddr = ed.buf.LastAddr()
			}
		case ch == '/' || ch == '?':
			if !first {
				ed.err = ErrInvalidAddress
				return -1
			}
			addr, err := ed.nextMatchingNodeAddr(cb)
			if err != nil {
				ed.err = err
				return -1
			}
			ed.secondAddr = addr
			first = false
		case ch == '\'':
			if !first {
				ed.err = ErrInvalidAddress
				return -1
			}
			first = false
			cb.next()
			addr, err := ed.buf.MarkedAddr(cb.next())
			if err != nil {
				ed.err = err
				return -1
			}
			ed.secondAddr = addr
		case ch == '%' || ch == ',' || ch == ';':
			if first {
				if ed.firstAddr < 0 {
					if ch == ';' {
						ed.firstAddr = ed.buf.CurrentAddr()
					} else {
						ed.firstAddr = 1
					}
					ed.secondAddr = ed.buf.LastAddr()
				} else {
					ed.firstAddr = ed.secondAddr
				}
			} else {
				if ed.secondAddr < 0 || ed.secondAddr > ed.buf.LastAddr() {
					ed.err = ErrInvalidAddress
					return -1
				}
				if ch == ';' {
					ed.buf.SetCurrentAddr(ed.secondAddr)
				}
				ed.firstAddr = ed.secondAddr
				first = true
			}
			cb.next()
		default:
			if !first && (ed.secondAddr < 0 || ed.secondAddr > ed.buf.LastAddr()) {
				ed.err = ErrInvalidAddress
				return -1
			}
			addrCnt := 0
			if ed.secondAddr >= 0 {
				if ed.firstAddr >= 0 {
					addrCnt = 2
				} else {
					addrCnt = 1
				}
			}
			if addrCnt <= 0 {
				ed.secondAddr = ed.buf.CurrentAddr()
			}
			if addrCnt <= 1 {
				ed.firstAddr = ed.secondAddr
			}
			return addrCnt
		}
	}
}

// getThirdAddr reads the destination address of the m and t commands,
// preserving the already-extracted range.
func (ed *Editor) getThirdAddr(cb *cmdBuf) (int, bool) {
	old1, old2 := ed.firstAddr, ed.secondAddr
	addrCnt := ed.extractAddresses(cb)
	if addrCnt < 0 {
		return 0, false
	}
	if ed.opts.Traditional && addrCnt == 0 {
		ed.err = ErrDestinationExpected
		return 0, false
	}
	if ed.secondAddr < 0 || ed.secondAddr > ed.buf.LastAddr() {
		ed.err = ErrInvalidAddress
		return 0, false
	}
	addr := ed.secondAddr
	ed.firstAddr, ed.secondAddr = old1, old2
	return addr, true
}

// setAddrRange applies the default range (n, m) when no addresses were
// given and validates the result.
func (ed *Editor) setAddrRange(n, m, addrCnt int) bool {
	if addrCnt == 0 {
		ed.firstAddr, ed.secondAddr = n, m
	}
	if ed.firstAddr < 1 || ed.firstAddr > ed.secondAddr ||
		ed.secondAddr > ed.buf.LastAddr() {
		ed.err = ErrInvalidAddress
		return false
	}
	return true
}

// setAddrRangeCurrent defaults the range to the current line.
func (ed *Editor) setAddrRangeCurrent(addrCnt int) bool {
	cur := ed.buf.CurrentAddr()
	return ed.setAddrRange(cur, cur, addrCnt)
}

// setSecondAddr applies a default second address and validates it.
func (ed *Editor) setSecondAddr(addr, addrCnt int) bool {
	if addrCnt == 0 {
		ed.secondAddr = addr
	}
	if ed.secondAddr < 1 || ed.secondAddr > ed.buf.LastAddr() {
		ed.err = ErrInvalidAddress
		return false
	}
	return true
}
