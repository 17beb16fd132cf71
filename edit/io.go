package edit

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/almoore/ged/buffer"
	"github.com/almoore/ged/interrupt"
)

// Print suffixes.
const (
	pfL = 1 << iota // list after command
	pfN             // enumerate after command
	pfP             // print after command
)

// A lineReader reads newline-terminated lines one byte at a time.
// Reading unbuffered keeps the stream position correct for shell
// escapes that read the same standard input.
type lineReader struct {
	r       io.Reader
	lineNum int
	eof     bool
}

// line returns the next input line including its newline. At end of
// input a final unterminated line is returned as-is; after that, line
// returns nil with a zero length.
func (lr *lineReader) line() ([]byte, error) {
	if lr.eof {
		return nil, nil
	}
	var buf []byte
	var b [1]byte
	for {
		n, err := lr.r.Read(b[:])
		if n > 0 {
			buf = append(buf, b[0])
			if b[0] == '\n' {
				lr.lineNum++
				return buf, nil
			}
			continue
		}
		if err == io.EOF || err == nil {
			lr.eof = true
			if len(buf) > 0 {
				lr.lineNum++
			}
			return buf, nil
		}
		return nil, fmt.Errorf("cannot read stdin: %w", err)
	}
}

// getTtyLine reads a command or text line from standard input, noting
// NUL bytes in the buffer's binary flag.
func (ed *Editor) getTtyLine() ([]byte, error) {
	line, err := ed.in.line()
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(line, 0) >= 0 {
		ed.buf.SetBinary()
	}
	interrupt.Check()
	return line, nil
}

// trailingEscape reports whether s ends in an odd number of
// backslashes.
func trailingEscape(s []byte) bool {
	parity := false
	for n := len(s) - 1; n >= 0 && s[n] == '\\'; n-- {
		parity = !parity
	}
	return parity
}

// getExtendedLine joins continuation lines onto the command when the
// current line ends with an unescaped backslash. With strip set the
// escaped newlines are removed; otherwise they become literal
// newlines. The cursor is repositioned at the start of the joined
// text.
func (ed *Editor) getExtendedLine(cb *cmdBuf, strip bool) error {
	rest := cb.rest()
	if len(rest) < 2 || rest[len(rest)-1] != '\n' || !trailingEscape(rest[:len(rest)-1]) {
		return nil
	}
	buf := append([]byte(nil), rest...)
	buf = buf[:len(buf)-1]
	buf[len(buf)-1] = '\n' // the escape becomes the newline
	if strip {
		buf = buf[:len(buf)-1]
	}
	for {
		line, err := ed.getTtyLine()
		if err != nil {
			return err
		}
		if len(line) == 0 || line[len(line)-1] != '\n' {
			return ErrUnexpectedEOF
		}
		buf = append(buf, line...)
		if len(line) < 2 || !trailingEscape(buf[:len(buf)-1]) {
			break
		}
		buf = buf[:len(buf)-1]
		buf[len(buf)-1] = '\n'
		if strip {
			buf = buf[:len(buf)-1]
		}
	}
	cb.set(buf)
	return nil
}

// newShellCmd prepares a shell invocation of a ! command line.
func newShellCmd(cmdline string) *exec.Cmd {
	return exec.Command(shellPath(), "-c", cmdline)
}

// shellPath returns the shell used for ! commands.
func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// stripEscapes removes the backslashes escaping bytes of a filename.
func stripEscapes(name string) string {
	if !strings.ContainsRune(name, '\\') {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' && i+1 < len(name) {
			i++
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

// readStreamLine reads one line from a stream, synthesizing a newline
// at end of file and noting NUL bytes.
func (ed *Editor) readStreamLine(r *bufio.Reader, newlineAddedNow *bool) ([]byte, int, error) {
	var buf []byte
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			if len(buf) == 0 {
				return nil, 0, nil
			}
			n := len(buf)
			buf = append(buf, '\n')
			*newlineAddedNow = true
			if !ed.buf.Binary() {
				n++
			}
			return buf, n, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("cannot read input file: %w", err)
		}
		if c == 0 {
			ed.buf.SetBinary()
		}
		buf = append(buf, c)
		if c == '\n' {
			if ed.opts.StripCR && len(buf) >= 2 && buf[len(buf)-2] == '\r' {
				buf = append(buf[:len(buf)-2], '\n')
				return buf, len(buf), nil
			}
			return buf, len(buf), nil
		}
	}
}

// readStream reads lines from r into the buffer after addr, returning
// the number of bytes read.
func (ed *Editor) readStream(r io.Reader, addr int) (int64, error) {
	br := bufio.NewReader(r)
	var up *buffer.UndoAtom
	var size int64
	oBinary := ed.buf.Binary()
	appended := addr == ed.buf.LastAddr()
	newlineAddedNow := false

	ed.buf.SetCurrentAddr(addr)
	for {
		line, n, err := ed.readStreamLine(br, &newlineAddedNow)
		if err != nil {
			return -1, err
		}
		if line == nil {
			break
		}
		size += int64(n)
		interrupt.Disable()
		if _, err := ed.buf.PutLine(line, ed.buf.CurrentAddr()); err != nil {
			interrupt.Enable()
			return -1, err
		}
		if up != nil {
			up.ExtendTail(ed.buf.CurrentAddr())
		} else {
			up = ed.buf.PushUndoAtom(buffer.UADD, -1, -1)
		}
		interrupt.Enable()
	}
	if addr > 0 && appended && size > 0 && oBinary && ed.buf.NewlineAdded() {
		fmt.Fprintln(ed.errw, "Newline inserted")
	} else if newlineAddedNow && appended {
		fmt.Fprintln(ed.errw, "Newline appended")
	}
	if ed.buf.Binary() && !oBinary && newlineAddedNow && !appended {
		size++
	}
	if size == 0 {
		newlineAddedNow = true
	}
	if appended && newlineAddedNow {
		ed.buf.SetNewlineAdded()
	}
	return size, nil
}

// readFile reads a named file, or the output of a shell command when
// the name begins with !, into the buffer after addr. It returns the
// number of lines read. With checkReadOnly set, an unwritable file
// flips the editor's read-only state.
func (ed *Editor) readFile(filename string, addr int, checkReadOnly bool) (int, error) {
	var r io.Reader
	var closeFn func() error

	if strings.HasPrefix(filename, "!") {
		cmd := exec.Command(shellPath(), "-c", filename[1:])
		cmd.Stderr = ed.errw
		out, err := cmd.StdoutPipe()
		if err != nil {
			return -1, fmt.Errorf("cannot open input file: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return -1, fmt.Errorf("cannot open input file: %w", err)
		}
		r = out
		closeFn = cmd.Wait
	} else {
		name := stripEscapes(filename)
		if fi, err := os.Stat(name); err == nil && fi.IsDir() {
			return -1, ErrIsDirectory
		}
		f, err := os.Open(name)
		if err != nil {
			ed.showStrerror(filename, err)
			return -1, fmt.Errorf("cannot open input file: %w", err)
		}
		if checkReadOnly {
			if w, err := os.OpenFile(name, os.O_WRONLY, 0); err != nil {
				ed.readOnly = true
			} else {
				w.Close()
			}
		}
		r = f
		closeFn = f.Close
	}
	size, err := ed.readStream(r, addr)
	if err != nil {
		closeFn()
		return -1, err
	}
	if err := closeFn(); err != nil {
		return -1, fmt.Errorf("cannot close input file: %w", err)
	}
	if !ed.opts.Scripted {
		fmt.Fprintf(ed.errw, "%d\n", size)
	}
	return ed.buf.CurrentAddr() - addr, nil
}

// writeStream writes the lines [from, to] to w, returning the byte
// count. The final newline is suppressed when the buffer is binary and
// its last line's newline was synthesized on input.
func (ed *Editor) writeStream(w io.Writer, from, to int) (int64, error) {
	lp := ed.buf.SearchNode(from)
	var size int64

	bw := bufio.NewWriter(w)
	for from > 0 && from <= to {
		s, err := ed.buf.GetLine(lp)
		if err != nil {
			return -1, err
		}
		n := len(s)
		withNewline := from != ed.buf.LastAddr() || !ed.buf.Binary() || !ed.buf.NewlineAdded()
		if _, err := bw.Write(s); err != nil {
			return -1, fmt.Errorf("cannot write file: %w", err)
		}
		if withNewline {
			if err := bw.WriteByte('\n'); err != nil {
				return -1, fmt.Errorf("cannot write file: %w", err)
			}
			n++
		}
		size += int64(n)
		from++
		lp = lp.Forw()
		interrupt.Check()
	}
	if err := bw.Flush(); err != nil {
		return -1, fmt.Errorf("cannot write file: %w", err)
	}
	return size, nil
}

// writeFile writes the lines [from, to] to a named file, or to the
// standard input of a shell command when the name begins with !. It
// returns the number of lines written.
func (ed *Editor) writeFile(filename, mode string, from, to int) (int, error) {
	var w io.Writer
	var closeFn func() error

	if strings.HasPrefix(filename, "!") {
		cmd := exec.Command(shellPath(), "-c", filename[1:])
		cmd.Stdout = ed.out
		cmd.Stderr = ed.errw
		in, err := cmd.StdinPipe()
		if err != nil {
			return -1, fmt.Errorf("cannot open output file: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return -1, fmt.Errorf("cannot open output file: %w", err)
		}
		w = in
		closeFn = func() error {
			in.Close()
			return cmd.Wait()
		}
	} else {
		flags := os.O_WRONLY | os.O_CREATE
		if mode == "a" {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(stripEscapes(filename), flags, 0666)
		if err != nil {
			ed.showStrerror(filename, err)
			return -1, fmt.Errorf("cannot open output file: %w", err)
		}
		w = f
		closeFn = f.Close
	}
	size, err := ed.writeStream(w, from, to)
	if err != nil {
		closeFn()
		return -1, err
	}
	if err := closeFn(); err != nil {
		return -1, fmt.Errorf("cannot close output file: %w", err)
	}
	if !ed.opts.Scripted {
		fmt.Fprintf(ed.errw, "%d\n", size)
	}
	if from > 0 && from <= to {
		return to - from + 1, nil
	}
	return 0, nil
}

var (
	ttyEscapes  = []byte("\a\b\f\n\r\t\v\\")
	ttyEscChars = []byte("abfnrtv\\")
)

// putTtyLine prints one line's text. In list mode non-printing bytes
// are rendered as escapes, long lines wrap with a trailing backslash,
// and, except in traditional mode, a $ marks the end of the line.
func (ed *Editor) putTtyLine(s []byte, pflags int) {
	var b bytes.Buffer
	col := 0
	if pflags&pfN != 0 {
		fmt.Fprintf(&b, "%d\t", ed.buf.CurrentAddr())
		col = 8
	}
	for _, ch := range s {
		if pflags&pfL == 0 {
			b.WriteByte(ch)
			continue
		}
		if col++; col > interrupt.WindowColumns() {
			col = 1
			b.WriteString("\\\n")
		}
		if ch >= 32 && ch <= 126 && ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		col++
		b.WriteByte('\\')
		if i := bytes.IndexByte(ttyEscapes, ch); i >= 0 {
			b.WriteByte(ttyEscChars[i])
		} else {
			col += 2
			b.WriteByte(((ch >> 6) & 7) + '0')
			b.WriteByte(((ch >> 3) & 7) + '0')
			b.WriteByte((ch & 7) + '0')
		}
	}
	if !ed.opts.Traditional && pflags&pfL != 0 {
		b.WriteByte('$')
	}
	b.WriteByte('\n')
	ed.out.Write(b.Bytes())
}

// printLines prints the lines [from, to], leaving the current address
// at the last line printed.
func (ed *Editor) printLines(from, to, pflags int) error {
	if from == 0 {
		return ErrInvalidAddress
	}
	ep := ed.buf.SearchNode(ed.buf.IncAddr(to))
	bp := ed.buf.SearchNode(from)
	for bp != ep {
		s, err := ed.buf.GetLine(bp)
		if err != nil {
			return err
		}
		ed.buf.SetCurrentAddr(from)
		from++
		ed.putTtyLine(s, pflags)
		bp = bp.Forw()
		interrupt.Check()
	}
	return nil
}

// printFilename writes a filename, rendering control bytes as octal
// escapes unless unsafe names are allowed.
func (ed *Editor) printFilename(w io.Writer, filename string) {
	if ed.opts.UnsafeNames {
		io.WriteString(w, filename)
		return
	}
	for i := 0; i < len(filename); i++ {
		ch := filename[i]
		switch {
		case ch == '\\':
			fmt.Fprint(w, "\\\\")
		case ch >= 32:
			w.Write([]byte{ch})
		default:
			fmt.Fprintf(w, "\\%o%o%o", (ch>>6)&7, (ch>>3)&7, ch&7)
		}
	}
}

// showStrerror reports an OS error to standard error unless quiet.
func (ed *Editor) showStrerror(filename string, err error) {
	if ed.opts.Quiet {
		return
	}
	if filename != "" {
		ed.printFilename(ed.errw, filename)
		fmt.Fprint(ed.errw, ": ")
	}
	fmt.Fprintln(ed.errw, err)
}

// showWarning reports a warning to standard error unless quiet.
func (ed *Editor) showWarning(filename, msg string) {
	if ed.opts.Quiet {
		return
	}
	if filename != "" {
		ed.printFilename(ed.errw, filename)
		fmt.Fprint(ed.errw, ": ")
	}
	fmt.Fprintln(ed.errw, msg)
}

const maxPathLen = 1024

// mayAccessFilename enforces the restricted-mode and safe-name rules.
func (ed *Editor) mayAccessFilename(name string) error {
	if ed.opts.Restricted && strings.Contains(name, "/") {
		return ErrDirectoryRestricted
	}
	if !ed.opts.UnsafeNames {
		for i := 0; i < len(name); i++ {
			if name[i] < 32 {
				return ErrUnsafeFilename
			}
		}
	}
	return nil
}

// getFilename reads a filename from the command line. An empty result
// with a nil error means the default filename applies. A name starting
// with ! is a shell command.
func (ed *Editor) getFilename(cb *cmdBuf, traditionalF bool) (string, error) {
	cb.skipBlanks()
	if cb.peek() == '\n' {
		if !traditionalF && ed.defFilename == "" {
			return "", ErrNoCurrentFilename
		}
		cb.next() // skip newline for global
		return "", nil
	}
	if err := ed.getExtendedLine(cb, true); err != nil {
		return "", err
	}
	if cb.peek() == '!' {
		cb.next()
		cmd, err := ed.getShellCommand(cb)
		if err != nil {
			return "", err
		}
		return string(cmd), nil
	}
	var name []byte
	if cb.peek() == '~' && cb.peek2() == '/' {
		if hd, err := os.UserHomeDir(); err == nil && hd != "" {
			name = append(name, hd...)
			cb.next()
		}
	}
	for cb.peek() != '\n' && cb.peek() != 0 {
		name = append(name, cb.next())
	}
	if cb.peek() == '\n' {
		cb.next() // skip newline for global
	}
	if len(name) > maxPathLen {
		return "", ErrFilenameTooLong
	}
	if err := ed.mayAccessFilename(string(name)); err != nil {
		return "", err
	}
	return string(name), nil
}

// getShellCommand reads a shell command, substituting % with the
// default filename and a leading ! with the previous command. The
// returned bytes begin with the ! marker.
func (ed *Editor) getShellCommand(cb *cmdBuf) ([]byte, error) {
	if ed.opts.Restricted {
		return nil, ErrShellRestricted
	}
	if err := ed.getExtendedLine(cb, true); err != nil {
		return nil, err
	}
	var buf []byte
	replacement := false
	if cb.peek() != '!' {
		buf = append(buf, '!')
	} else {
		if len(ed.lastShellCmd) == 0 ||
			(ed.opts.Traditional && len(ed.lastShellCmd) <= 1) {
			return nil, ErrNoPreviousCommand
		}
		buf = append(buf, ed.lastShellCmd...)
		cb.next()
		replacement = true
	}
	for cb.peek() != '\n' && cb.peek() != 0 {
		if cb.peek() == '%' {
			if ed.defFilename == "" {
				return nil, ErrNoCurrentFilename
			}
			buf = append(buf, ed.defFilename...)
			cb.next()
			replacement = true
			continue
		}
		ch := cb.next()
		if ch != '\\' {
			buf = append(buf, ch)
			continue
		}
		ch = cb.next()
		if ch != '%' {
			buf = append(buf, '\\')
		}
		buf = append(buf, ch)
	}
	if cb.peek() == '\n' {
		cb.next() // skip newline for global
	}
	ed.lastShellCmd = append(ed.lastShellCmd[:0], buf...)
	cmd := append([]byte(nil), buf...)
	if replacement && !ed.opts.Scripted {
		fmt.Fprintf(ed.out, "%s\n", cmd[1:])
	}
	return cmd, nil
}

// tmpName returns the path of the temporary file used by the shell
// filter, of the form ${TMPDIR}/ed-<coded pid>. The pid is coded
// little endian, base 36.
func tmpName() string {
	const codes = "0123456789abcdefghijklmnopqrstuvwxyz"
	dir := os.Getenv("TMPDIR")
	if dir == "" {
		dir = "/tmp"
	}
	buf := []byte(dir + "/ed-")
	n := os.Getpid()
	for {
		buf = append(buf, codes[n%len(codes)])
		if n /= len(codes); n == 0 {
			break
		}
	}
	return string(buf)
}
