// Package interrupt provides the deferred-signal discipline used to
// guard structural updates of the editor buffer.
//
// A process-wide nesting counter is incremented by Disable and
// decremented by Enable. While the counter is positive, SIGHUP and
// SIGINT are recorded as pending instead of acting; when the counter
// returns to zero the pending signal is re-delivered. SIGHUP invokes a
// registered dump function and exits. SIGINT aborts to the command
// prompt by panicking with an Interrupt value, which the main loop
// recovers.
package interrupt

import (
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/term"
)

// Interrupt is the panic value raised when SIGINT aborts a command.
// The main loop recovers it and resumes reading commands.
type Interrupt struct{}

var (
	mutex      atomic.Int32
	hupPending atomic.Bool
	intPending atomic.Bool

	// hupFunc writes the buffer to ed.hup and returns the exit status.
	// It is invoked at most once.
	hupFunc func() int
)

// Disable begins a critical section. Signals received while any
// critical section is open stay pending.
func Disable() { mutex.Add(1) }

// Enable ends a critical section. When the last section closes, any
// pending SIGHUP or SIGINT is acted upon: SIGHUP dumps and exits,
// SIGINT panics with Interrupt.
func Enable() {
	if mutex.Add(-1) > 0 {
		return
	}
	mutex.Store(0)
	if hupPending.Load() {
		runHup()
	}
	if intPending.CompareAndSwap(true, false) {
		panic(Interrupt{})
	}
}

// Check raises a pending SIGINT outside any critical section.
// Long-running loops call it between iterations so that an interrupt
// received during a blocking read or a computation takes effect at the
// next safe point.
func Check() {
	if mutex.Load() > 0 {
		return
	}
	if hupPending.Load() {
		runHup()
	}
	if intPending.CompareAndSwap(true, false) {
		panic(Interrupt{})
	}
}

func runHup() {
	hupPending.Store(false)
	if hupFunc != nil {
		os.Exit(hupFunc())
	}
	os.Exit(1)
}

var setupOnce sync.Once

// Setup installs the signal handlers. The dump function is called on
// SIGHUP outside critical sections; it must write the buffer and
// return the process exit status.
func Setup(dump func() int) {
	hupFunc = dump
	setupOnce.Do(setSignals)
}

func setSignals() {
	updateWindowSize()

	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT)
	signal.Ignore(syscall.SIGQUIT)
	if term.IsTerminal(0) {
		signal.Notify(ch, syscall.SIGWINCH)
	}
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGHUP:
				if mutex.Load() > 0 {
					hupPending.Store(true)
				} else {
					runHup()
				}
			case syscall.SIGINT:
				intPending.Store(true)
			case syscall.SIGWINCH:
				updateWindowSize()
			}
		}
	}()
}

var (
	// userLines overrides the window height when positive.
	// It is set by the z command or the LINES environment variable.
	userLines     atomic.Int32
	windowLines   atomic.Int32
	windowColumns atomic.Int32
	linesEnvRead  atomic.Bool
)

func init() {
	userLines.Store(-1)
	windowLines.Store(22)
	windowColumns.Store(76)
}

func updateWindowSize() {
	w, h, err := term.GetSize(0)
	if err != nil {
		return
	}
	if h > 2 && h < 600 {
		windowLines.Store(int32(h - 2))
	}
	if w > 8 && w < 1800 {
		windowColumns.Store(int32(w - 4))
	}
}

// SetWindowLines records an explicit scroll-window height.
func SetWindowLines(n int) { userLines.Store(int32(n)) }

// WindowLines returns the scroll-window height: the explicit setting
// if any, else LINES from the environment, else the terminal height.
func WindowLines() int {
	if userLines.Load() < 0 && !linesEnvRead.Swap(true) {
		if p := os.Getenv("LINES"); p != "" {
			if n, err := strconv.Atoi(p); err == nil && n > 0 {
				userLines.Store(int32(n))
			}
		}
		if userLines.Load() < 0 {
			userLines.Store(0)
		}
	}
	if n := userLines.Load(); n > 0 {
		return int(n)
	}
	return int(windowLines.Load())
}

// WindowColumns returns the column width used by list-mode printing.
func WindowColumns() int { return int(windowColumns.Load()) }
