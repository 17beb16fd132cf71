package edit

import (
	"bytes"

	"github.com/almoore/ged/interrupt"
)

// execGlobal runs the command list against each line of the active
// set, making it the current line in turn. Interactive mode (G, V)
// prints each line and reads one command from input: an empty line
// skips, & repeats the previous command. The first failing command
// aborts the global with its status.
func (ed *Editor) execGlobal(cb *cmdBuf, pflags int, interactive bool) status {
	var cmd []byte

	if !interactive {
		if ed.opts.Traditional && bytes.Equal(cb.rest(), []byte("\n")) {
			cmd = []byte("p\n") // null command list means p
		} else {
			if err := ed.getExtendedLine(cb, false); err != nil {
				return ed.error(err)
			}
			cmd = append([]byte(nil), cb.rest()...)
		}
	}
	ed.buf.ClearUndoStack()
	for {
		lp := ed.buf.NextActiveNode()
		if lp == nil {
			break
		}
		addr, err := ed.buf.NodeAddr(lp)
		if err != nil {
			continue // the node is gone; skip it
		}
		ed.buf.SetCurrentAddr(addr)
		if interactive {
			cur := ed.buf.CurrentAddr()
			if err := ed.printLines(cur, cur, pflags); err != nil {
				return ed.error(err)
			}
			line, err := ed.getTtyLine()
			if err != nil {
				return ed.error(err)
			}
			if len(line) == 0 {
				return ed.error(ErrUnexpectedEOF)
			}
			if bytes.Equal(line, []byte("\n")) {
				continue
			}
			if bytes.Equal(line, []byte("&\n")) {
				if cmd == nil {
					return ed.error(ErrNoPreviousCommand)
				}
			} else {
				icb := newCmdBuf(line)
				if err := ed.getExtendedLine(icb, false); err != nil {
					return ed.error(err)
				}
				cmd = append(cmd[:0], icb.rest()...)
			}
		}
		gcb := newCmdBuf(cmd)
		for gcb.peek() != 0 {
			if st := ed.execCommand(gcb, true); st != stOK {
				return st
			}
		}
		interrupt.Check()
	}
	return stOK
}
