package edit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/almoore/ged/interrupt"
)

// FirstECommand performs the initial file load named on the command
// line, recording read-only state.
func (ed *Editor) FirstECommand(filename string) (int, error) {
	return ed.readFile(filename, 0, true)
}

// StartupAddress applies a +line, +/RE, or +?RE argument after the
// initial read: +/RE selects the first matching line and +?RE the last.
// It returns false when the address is invalid or does not match.
func (ed *Editor) StartupAddress(arg string) bool {
	cur := ed.buf.CurrentAddr()
	if arg != "" && arg[0] == '?' {
		// Search backward from address 0 so the last line is tested first.
		ed.buf.SetCurrentAddr(0)
	}
	cb := newCmdBuf([]byte(arg + "\n"))
	addrCnt := ed.extractAddresses(cb)
	if addrCnt <= 0 || ed.secondAddr < 1 || ed.secondAddr > ed.buf.LastAddr() {
		ed.buf.SetCurrentAddr(cur)
		return false
	}
	ed.buf.SetCurrentAddr(ed.secondAddr)
	return true
}

// sighupDump writes a modified, non-empty buffer to ed.hup in the
// current directory, falling back to $HOME/ed.hup. It returns the
// process exit status.
func (ed *Editor) sighupDump() int {
	if ed.buf.LastAddr() <= 0 || !ed.buf.Modified() {
		return 0
	}
	if _, err := ed.writeFile("ed.hup", "w", 1, ed.buf.LastAddr()); err == nil {
		return 0
	}
	hd, err := os.UserHomeDir()
	if err != nil || hd == "" {
		return 1
	}
	if _, err := ed.writeFile(filepath.Join(hd, "ed.hup"), "w", 1, ed.buf.LastAddr()); err == nil {
		return 0
	}
	return 1
}

// protect runs one command under the SIGINT trampoline. A recovered
// interrupt prints ? and resumes the prompt, the way the original
// editor longjmps back to its main loop.
func (ed *Editor) protect(f func() status) (st status) {
	defer func() {
		switch r := recover().(type) {
		case nil:
		case interrupt.Interrupt:
			fmt.Fprint(ed.out, "\n?\n")
			ed.err = ErrInterrupt
			os.Remove(tmpName())
			st = stJumped
		default:
			panic(r)
		}
	}()
	return f()
}

// MainLoop reads and executes commands until quit or end of input,
// returning the process exit status.
func (ed *Editor) MainLoop(initialError bool) int {
	interrupt.Setup(ed.sighupDump)

	errStatus := 0
	st := stOK
	if initialError {
		errStatus = 1
		st = stErr
	}

	for {
		if st < 0 && ed.verbose && ed.err != nil {
			fmt.Fprintln(ed.out, ed.err)
		}
		if ed.promptOn {
			fmt.Fprint(ed.out, ed.prompt)
		}
		line, err := ed.in.line()
		if err != nil {
			ed.showStrerror("stdin", err)
			return 2
		}
		if len(line) == 0 { // end of input behaves as q
			if !ed.buf.Modified() || st == stEmod {
				st = stQuit
			} else {
				st = stEmod
				if !ed.opts.LooseExit {
					errStatus = 2
				}
			}
		} else {
			if line[len(line)-1] != '\n' {
				line = append(line, '\n')
			}
			cb := newCmdBuf(line)
			st = ed.protect(func() status { return ed.execCommand(cb, false) })
		}
		switch {
		case st == stOK:
			if ed.readOnly && ed.buf.Modified() {
				ed.readOnly = false
				ed.showWarning(ed.defFilename, "warning: read-only file")
			}
			continue
		case st == stQuit:
			return errStatus
		case st == stJumped:
			st = stErr
			continue
		}
		fmt.Fprintln(ed.out, "?")
		if !ed.opts.LooseExit && errStatus == 0 {
			errStatus = 1
		}
		ed.warned = st == stEmod
		if ed.warned {
			ed.err = ErrBufferModified
		}
		if !ed.interactive {
			if ed.verbose && ed.err != nil {
				fmt.Fprintf(ed.out, "script, line %d: %s\n", ed.in.lineNum, ed.err)
			}
			if st == stFatal {
				return 1
			}
			return errStatus
		}
		if st == stFatal {
			if ed.verbose && ed.err != nil {
				fmt.Fprintln(ed.out, ed.err)
			}
			return 1
		}
	}
}
