// Package edit implements the command language of the editor: address
// extraction, command dispatch, substitution, global commands, and the
// stream I/O that moves text between files and the line buffer.
//
// The command language is that of the classic line editor: a command
// line is zero, one, or two addresses, a single-letter command, and
// suffixes. Commands execute against a buffer.Buffer and print only
// what is requested.
package edit

import (
	"errors"
	"io"
	"regexp"

	"github.com/almoore/ged/buffer"
)

var (
	ErrInvalidAddress          = errors.New("invalid address")
	ErrInvalidCommandSuffix    = errors.New("invalid command suffix")
	ErrUnknownCommand          = errors.New("unknown command")
	ErrUnexpectedAddress       = errors.New("unexpected address")
	ErrUnexpectedCommandSuffix = errors.New("unexpected command suffix")
	ErrNoPreviousPattern       = errors.New("no previous pattern")
	ErrNoPreviousSubstitution  = errors.New("no previous substitution")
	ErrNoPreviousCommand       = errors.New("no previous command")
	ErrNoCurrentFilename       = errors.New("no current filename")
	ErrInvalidPatternDelimiter = errors.New("invalid pattern delimiter")
	ErrMissingPatternDelimiter = errors.New("missing pattern delimiter")
	ErrUnbalancedBrackets      = errors.New("unbalanced brackets ([])")
	ErrTrailingBackslash       = errors.New("trailing backslash (\\)")
	ErrNoMatch                 = errors.New("no match")
	ErrInfiniteLoop            = errors.New("infinite substitution loop")
	ErrNestedGlobal            = errors.New("cannot nest global commands")
	ErrInvalidDestination      = errors.New("invalid destination")
	ErrInvalidRedirection      = errors.New("invalid redirection")
	ErrFilenameTooLong         = errors.New("filename too long")
	ErrIsDirectory             = errors.New("is a directory")
	ErrShellRestricted         = errors.New("shell access restricted")
	ErrDirectoryRestricted     = errors.New("directory access restricted")
	ErrUnsafeFilename          = errors.New("unsafe filename character")
	ErrUnexpectedEOF           = errors.New("unexpected end-of-file")
	ErrInterrupt               = errors.New("interrupt")
	ErrBufferModified          = errors.New("warning: buffer modified")
	ErrInvalidNumber           = errors.New("invalid number")
	ErrNumberOutOfRange        = errors.New("number out of range")
	ErrDestinationExpected     = errors.New("destination expected")
)

// A status is the result of one command, in the propagation scheme of
// the main loop: zero for success, negative for the distinguished
// outcomes.
type status int

const (
	stOK    status = 0
	stQuit  status = -1
	stErr   status = -2
	stEmod  status = -3 // buffer modified and unwarned
	stFatal status = -4
	// stJumped marks a SIGINT abort recovered by the trampoline; the
	// "?" was already printed.
	stJumped status = -5
)

// Options are the command-line settings that alter interpreter
// behavior.
type Options struct {
	ExtendedRegexp bool // use EREs instead of BREs
	Traditional    bool // backwards-compatibility quirks
	LooseExit      bool // exit 0 even when commands fail
	Quiet          bool // suppress diagnostics
	Restricted     bool // forbid shell escapes and non-local paths
	Scripted       bool // suppress byte counts and ! echo
	StripCR        bool // strip trailing carriage returns on read
	UnsafeNames    bool // allow bytes 1..31 in filenames
}

// An Editor interprets commands against a line buffer. It owns every
// piece of per-session state: the default filename, the prompt, the
// last error, the compiled pattern registers, and the replacement
// template.
type Editor struct {
	buf  *buffer.Buffer
	opts Options

	in   *lineReader
	out  io.Writer // command output
	errw io.Writer // byte counts and warnings

	interactive bool // standard input is a terminal
	verbose     bool // print error messages after ?
	warned      bool // allows e, q, wq to succeed on the second try
	readOnly    bool // loaded file was not writable

	err         error // last error, shown by h
	defFilename string
	prompt      string
	promptOn    bool

	firstAddr, secondAddr int

	// Pattern registers. lastCompiled is whichever of the two was
	// compiled most recently; an empty pattern reuses it.
	searchRE     *regexp.Regexp
	substRE      *regexp.Regexp
	lastCompiled *regexp.Regexp

	replTemplate []byte // last substitution replacement, raw bytes
	haveRepl     bool

	// Repeat state for the s command.
	sPflags, sMask, sNum int

	lastShellCmd []byte // previous ! command, including the leading !
}

// New returns an Editor reading commands from in and writing to out
// and errw.
func New(buf *buffer.Buffer, in io.Reader, out, errw io.Writer, opts Options) *Editor {
	return &Editor{
		buf:    buf,
		opts:   opts,
		in:     &lineReader{r: in},
		out:    out,
		errw:   errw,
		prompt: "*",
		sNum:   1,
		sMask:  pfP,
	}
}

// Buffer returns the editor's line buffer.
func (ed *Editor) Buffer() *buffer.Buffer { return ed.buf }

// LastError returns the last error, as shown by the h command.
func (ed *Editor) LastError() error { return ed.err }

// DefaultFilename returns the remembered filename.
func (ed *Editor) DefaultFilename() string { return ed.defFilename }

// SetDefaultFilename sets the remembered filename.
func (ed *Editor) SetDefaultFilename(name string) {
	ed.defFilename = name
	ed.readOnly = false
}

// SetPrompt sets the interactive prompt and turns prompting on.
func (ed *Editor) SetPrompt(s string) {
	ed.prompt = s
	ed.promptOn = true
}

// SetVerbose makes the main loop print error messages.
func (ed *Editor) SetVerbose() { ed.verbose = true }

// SetInteractive declares whether standard input is a terminal.
func (ed *Editor) SetInteractive(yes bool) { ed.interactive = yes }

// error records err as the last error and returns the error status.
func (ed *Editor) error(err error) status {
	ed.err = err
	return stErr
}

// A cmdBuf is a cursor over one command line. The line always ends
// with a newline; peek returns 0 past the end, mirroring the NUL
// terminator the dispatch loops rely on.
type cmdBuf struct {
	s   []byte
	pos int
}

func newCmdBuf(line []byte) *cmdBuf { return &cmdBuf{s: line} }

func (cb *cmdBuf) peek() byte {
	if cb.pos >= len(cb.s) {
		return 0
	}
	return cb.s[cb.pos]
}

func (cb *cmdBuf) peek2() byte {
	if cb.pos+1 >= len(cb.s) {
		return 0
	}
	return cb.s[cb.pos+1]
}

func (cb *cmdBuf) next() byte {
	c := cb.peek()
	if cb.pos < len(cb.s) {
		cb.pos++
	}
	return c
}

// rest returns the unconsumed tail of the line.
func (cb *cmdBuf) rest() []byte { return cb.s[cb.pos:] }

// set replaces the cursor's contents, as when continuation lines have
// been joined onto the command.
func (cb *cmdBuf) set(line []byte) {
	cb.s = line
	cb.pos = 0
}

func (cb *cmdBuf) skipBlanks() {
	for isBlank(cb.peek()) {
		cb.pos++
	}
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\v' || c == '\f' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
