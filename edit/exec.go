package edit

import (
	"fmt"
	"os"
	"strings"

	"github.com/almoore/ged/buffer"
	"github.com/almoore/ged/interrupt"
)

// getCommandSuffix parses the optional l, n, p print suffixes ending a
// command, rejecting duplicates, and consumes the final newline.
func (ed *Editor) getCommandSuffix(cb *cmdBuf, pflagsp *int) bool {
loop:
	for {
		switch cb.peek() {
		case 'l':
			if *pflagsp&pfL != 0 {
				break loop
			}
			*pflagsp |= pfL
		case 'n':
			if *pflagsp&pfN != 0 {
				break loop
			}
			*pflagsp |= pfN
		case 'p':
			if *pflagsp&pfP != 0 {
				break loop
			}
			*pflagsp |= pfP
		default:
			break loop
		}
		cb.next()
	}
	if cb.next() != '\n' { // skip newline for global
		ed.err = ErrInvalidCommandSuffix
		return false
	}
	return true
}

func (ed *Editor) unexpectedAddress(addrCnt int) bool {
	if addrCnt > 0 {
		ed.err = ErrUnexpectedAddress
		return true
	}
	return false
}

func (ed *Editor) unexpectedCommandSuffix(ch byte) bool {
	if !isSpace(ch) {
		ed.err = ErrUnexpectedCommandSuffix
		return true
	}
	return false
}

// appendLines reads text lines and appends them after addr, until a
// line holding a single period or the end of input. Inside a global
// command the text comes from the command list instead of input.
func (ed *Editor) appendLines(cb *cmdBuf, addr int, isGlobal bool) error {
	var up *buffer.UndoAtom
	ed.buf.SetCurrentAddr(addr)

	for {
		var line []byte
		if !isGlobal {
			l, err := ed.getTtyLine()
			if err != nil {
				return err
			}
			if len(l) == 0 {
				return nil // end of input
			}
			if l[len(l)-1] != '\n' {
				return ErrUnexpectedEOF
			}
			line = l
		} else {
			if cb.peek() == 0 {
				return nil
			}
			n := cb.pos
			for n < len(cb.s) && cb.s[n] != '\n' {
				n++
			}
			if n == len(cb.s) {
				cb.pos = n
				return nil
			}
			line = cb.s[cb.pos : n+1]
			cb.pos = n + 1
		}
		if len(line) == 2 && line[0] == '.' {
			return nil
		}
		interrupt.Disable()
		if _, err := ed.buf.PutLine(line, ed.buf.CurrentAddr()); err != nil {
			interrupt.Enable()
			return err
		}
		if up != nil {
			up.ExtendTail(ed.buf.CurrentAddr())
		} else {
			up = ed.buf.PushUndoAtom(buffer.UADD, -1, -1)
		}
		ed.buf.SetModified(true)
		interrupt.Enable()
	}
}

// commandShell executes the ! command: a plain shell escape with no
// addresses, or a filter replacing the addressed lines with the
// command's output.
func (ed *Editor) commandShell(cb *cmdBuf, addrCnt int, isGlobal bool) status {
	cmd, err := ed.getShellCommand(cb)
	if err != nil {
		return ed.error(err)
	}
	if addrCnt == 0 { // shell escape
		ed.runShell(string(cmd[1:]))
		if !ed.opts.Scripted {
			fmt.Fprintln(ed.out, "!")
		}
		return stOK
	}
	// Filter lines through the command.
	if !ed.setAddrRangeCurrent(addrCnt) {
		return stErr
	}
	if strings.ContainsAny(string(cmd[1:]), "<>") {
		return ed.error(ErrInvalidRedirection)
	}
	tmp := tmpName()
	command := fmt.Sprintf("%s > %s 2>&1", cmd, tmp)
	if _, err := ed.writeFile(command, "w", ed.firstAddr, ed.secondAddr); err != nil {
		os.Remove(tmp)
		return ed.error(err)
	}
	if !isGlobal {
		ed.buf.ClearUndoStack()
	}
	first, second := ed.firstAddr, ed.secondAddr
	if err := ed.buf.Delete(first, second, isGlobal); err != nil {
		os.Remove(tmp)
		return ed.error(err)
	}
	after := ed.buf.CurrentAddr()
	if ed.buf.CurrentAddr() >= first {
		after--
	}
	_, err = ed.readFile(tmp, after, false)
	if ed.buf.CurrentAddr() <= 0 && ed.buf.LastAddr() > 0 {
		ed.buf.SetCurrentAddr(1)
	}
	os.Remove(tmp)
	if err != nil {
		return ed.error(err)
	}
	return stOK
}

// runShell runs a command line through the shell with the editor's
// streams attached.
func (ed *Editor) runShell(cmdline string) {
	c := newShellCmd(cmdline)
	c.Stdin = ed.in.r
	c.Stdout = ed.out
	c.Stderr = ed.errw
	c.Run()
}

// execCommand parses and executes one command from the command line,
// returning its status.
func (ed *Editor) execCommand(cb *cmdBuf, isGlobal bool) status {
	pflags := 0
	addrCnt := ed.extractAddresses(cb)
	if addrCnt < 0 {
		return stErr
	}
	cb.skipBlanks()
	c := cb.next()
	switch c {
	case 'a':
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if err := ed.appendLines(cb, ed.secondAddr, isGlobal); err != nil {
			return ed.error(err)
		}

	case 'c':
		if !ed.setAddrRangeCurrent(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if err := ed.buf.Delete(ed.firstAddr, ed.secondAddr, isGlobal); err != nil {
			return ed.error(err)
		}
		addr := ed.buf.CurrentAddr()
		if addr >= ed.firstAddr {
			// The replacement goes where the deleted lines were.
			addr--
		}
		if err := ed.appendLines(cb, addr, isGlobal); err != nil {
			return ed.error(err)
		}

	case 'd':
		if !ed.setAddrRangeCurrent(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if err := ed.buf.Delete(ed.firstAddr, ed.secondAddr, isGlobal); err != nil {
			return ed.error(err)
		}

	case 'e', 'E':
		if c == 'e' && ed.buf.Modified() && !ed.warned {
			return stEmod
		}
		if ed.unexpectedAddress(addrCnt) || ed.unexpectedCommandSuffix(cb.peek()) {
			return stErr
		}
		fnp, err := ed.getFilename(cb, false)
		if err != nil {
			return ed.error(err)
		}
		if ed.buf.LastAddr() > 0 {
			if err := ed.buf.Delete(1, ed.buf.LastAddr(), isGlobal); err != nil {
				return ed.error(err)
			}
		}
		if err := ed.buf.Reopen(); err != nil {
			ed.err = err
			return stFatal
		}
		ed.buf.SetModified(false) // buffer is now empty
		if fnp != "" && fnp[0] != '!' {
			ed.SetDefaultFilename(fnp)
		}
		name := fnp
		if name == "" {
			name = ed.defFilename
		}
		if _, err := ed.readFile(name, 0, true); err != nil {
			return ed.error(err)
		}
		ed.buf.ResetUndoState() // reading the file cannot be undone

	case 'f':
		if ed.unexpectedAddress(addrCnt) || ed.unexpectedCommandSuffix(cb.peek()) {
			return stErr
		}
		fnp, err := ed.getFilename(cb, ed.opts.Traditional)
		if err != nil {
			return ed.error(err)
		}
		if fnp != "" && fnp[0] == '!' {
			return ed.error(ErrInvalidRedirection)
		}
		if fnp != "" {
			ed.SetDefaultFilename(fnp)
		}
		ed.printFilename(ed.out, ed.defFilename)
		fmt.Fprintln(ed.out)

	case 'g', 'v', 'G', 'V':
		if isGlobal {
			return ed.error(ErrNestedGlobal)
		}
		match := c == 'g' || c == 'G'
		if !ed.setAddrRange(1, ed.buf.LastAddr(), addrCnt) {
			return stErr
		}
		if err := ed.buildActiveList(cb, ed.firstAddr, ed.secondAddr, match); err != nil {
			return ed.error(err)
		}
		interactive := c == 'G' || c == 'V'
		if interactive && !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if st := ed.execGlobal(cb, pflags, interactive); st != stOK {
			return st
		}

	case 'h', 'H':
		if ed.unexpectedAddress(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if c == 'H' {
			ed.verbose = !ed.verbose
		}
		if (c == 'h' || ed.verbose) && ed.err != nil {
			fmt.Fprintln(ed.out, ed.err)
		}

	case 'i':
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		addr := ed.secondAddr
		if addr > 0 {
			addr--
		}
		if err := ed.appendLines(cb, addr, isGlobal); err != nil {
			return ed.error(err)
		}

	case 'j':
		cur := ed.buf.CurrentAddr()
		if !ed.setAddrRange(cur, cur+1, addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if ed.firstAddr < ed.secondAddr {
			if err := ed.buf.Join(ed.firstAddr, ed.secondAddr, isGlobal); err != nil {
				return ed.error(err)
			}
		}

	case 'k':
		mc := cb.next()
		if ed.secondAddr == 0 {
			return ed.error(ErrInvalidAddress)
		}
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if err := ed.buf.MarkNode(ed.buf.SearchNode(ed.secondAddr), mc); err != nil {
			return ed.error(err)
		}

	case 'l', 'n', 'p':
		switch c {
		case 'l':
			pflags |= pfL
		case 'n':
			pflags |= pfN
		case 'p':
			pflags |= pfP
		}
		if !ed.setAddrRangeCurrent(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if err := ed.printLines(ed.firstAddr, ed.secondAddr, pflags); err != nil {
			return ed.error(err)
		}
		pflags = 0

	case 'm':
		if !ed.setAddrRangeCurrent(addrCnt) {
			return stErr
		}
		addr, ok := ed.getThirdAddr(cb)
		if !ok {
			return stErr
		}
		if addr >= ed.firstAddr-1 && addr <= ed.secondAddr {
			return ed.error(ErrInvalidDestination)
		}
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if err := ed.buf.Move(ed.firstAddr, ed.secondAddr, addr, isGlobal); err != nil {
			return ed.error(err)
		}

	case 'P', 'q', 'Q':
		if ed.unexpectedAddress(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if c == 'P' {
			ed.promptOn = !ed.promptOn
			break
		}
		if c == 'q' && ed.buf.Modified() && !ed.warned {
			return stEmod
		}
		return stQuit

	case 'r':
		if ed.unexpectedCommandSuffix(cb.peek()) {
			return stErr
		}
		if addrCnt == 0 {
			ed.secondAddr = ed.buf.LastAddr()
		}
		fnp, err := ed.getFilename(cb, false)
		if err != nil {
			return ed.error(err)
		}
		if ed.defFilename == "" && (fnp == "" || fnp[0] != '!') {
			ed.SetDefaultFilename(fnp)
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		name := fnp
		if name == "" {
			name = ed.defFilename
		}
		lines, err := ed.readFile(name, ed.secondAddr, false)
		if err != nil {
			return ed.error(err)
		}
		if lines > 0 {
			ed.buf.SetModified(true)
		}

	case 's':
		if st := ed.commandS(cb, &pflags, addrCnt, isGlobal); st != stOK {
			return st
		}

	case 't':
		if !ed.setAddrRangeCurrent(addrCnt) {
			return stErr
		}
		addr, ok := ed.getThirdAddr(cb)
		if !ok || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if err := ed.buf.Copy(ed.firstAddr, ed.secondAddr, addr); err != nil {
			return ed.error(err)
		}

	case 'u':
		if ed.unexpectedAddress(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if err := ed.buf.Undo(isGlobal); err != nil {
			return ed.error(err)
		}

	case 'w', 'W':
		n := cb.peek()
		if n == 'q' || n == 'Q' {
			cb.next()
		}
		if ed.unexpectedCommandSuffix(cb.peek()) {
			return stErr
		}
		fnp, err := ed.getFilename(cb, false)
		if err != nil {
			return ed.error(err)
		}
		if addrCnt == 0 && ed.buf.LastAddr() == 0 {
			ed.firstAddr, ed.secondAddr = 0, 0
		} else if !ed.setAddrRange(1, ed.buf.LastAddr(), addrCnt) {
			return stErr
		}
		if ed.defFilename == "" && (fnp == "" || fnp[0] != '!') {
			ed.SetDefaultFilename(fnp)
		}
		name := fnp
		if name == "" {
			name = ed.defFilename
		}
		mode := "w"
		if c == 'W' {
			mode = "a"
		}
		lines, err := ed.writeFile(name, mode, ed.firstAddr, ed.secondAddr)
		if err != nil {
			return ed.error(err)
		}
		if lines == ed.buf.LastAddr() && (fnp == "" || fnp[0] != '!') {
			ed.buf.SetModified(false)
		} else if n == 'q' && ed.buf.Modified() && !ed.warned {
			return stEmod
		}
		if n == 'q' || n == 'Q' {
			return stQuit
		}

	case 'x':
		if ed.secondAddr < 0 || ed.secondAddr > ed.buf.LastAddr() {
			return ed.error(ErrInvalidAddress)
		}
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if !isGlobal {
			ed.buf.ClearUndoStack()
		}
		if err := ed.buf.Put(ed.secondAddr); err != nil {
			return ed.error(err)
		}

	case 'y':
		if !ed.setAddrRangeCurrent(addrCnt) || !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		if err := ed.buf.Yank(ed.firstAddr, ed.secondAddr); err != nil {
			return ed.error(err)
		}

	case 'z':
		def := ed.buf.CurrentAddr()
		if !isGlobal {
			def++
		}
		if !ed.setSecondAddr(def, addrCnt) {
			return stErr
		}
		if c := cb.peek(); c > '0' && c <= '9' {
			n, ok := ed.parseInt(cb)
			if !ok {
				return stErr
			}
			interrupt.SetWindowLines(n)
		}
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		to := ed.secondAddr + interrupt.WindowLines() - 1
		if last := ed.buf.LastAddr(); to > last {
			to = last
		}
		if err := ed.printLines(ed.secondAddr, to, pflags); err != nil {
			return ed.error(err)
		}
		pflags = 0

	case '=':
		if !ed.getCommandSuffix(cb, &pflags) {
			return stErr
		}
		addr := ed.buf.LastAddr()
		if addrCnt > 0 {
			addr = ed.secondAddr
		}
		fmt.Fprintf(ed.out, "%d\n", addr)

	case '!':
		if st := ed.commandShell(cb, addrCnt, isGlobal); st != stOK {
			return st
		}

	case '\n':
		def := ed.buf.CurrentAddr()
		if ed.opts.Traditional || !isGlobal {
			def++
		}
		if !ed.setSecondAddr(def, addrCnt) {
			return stErr
		}
		if err := ed.printLines(ed.secondAddr, ed.secondAddr, 0); err != nil {
			return ed.error(err)
		}

	case '#':
		for cb.peek() != '\n' && cb.peek() != 0 {
			cb.next()
		}
		cb.next() // skip newline for global

	default:
		return ed.error(ErrUnknownCommand)
	}

	if pflags != 0 {
		cur := ed.buf.CurrentAddr()
		if err := ed.printLines(cur, cur, pflags); err != nil {
			return ed.error(err)
		}
	}
	return stOK
}
