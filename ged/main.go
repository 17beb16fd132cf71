// Ged is a line-oriented text editor compatible with the classic Unix
// ed. It reads addressed single-letter commands from standard input
// and edits an in-memory buffer whose text is paged to a scratch file.
//
//	usage: ged [options] [[+line | +/RE | +?RE] file]
//
// If file begins with a '!', the output of the shell command is read.
// The environment variable LINES sets the initial window size.
//
// Exit status is 0 for a normal exit, 1 for environmental problems, 2
// for problems with the input file, and 3 for an internal error.
package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/almoore/ged/buffer"
	"github.com/almoore/ged/edit"
)

const progVersion = "1.0"

var (
	extendedRE  = flag.BoolP("extended-regexp", "E", false, "use extended regular expressions")
	traditional = flag.BoolP("traditional", "G", false, "run in compatibility mode")
	showHelp    = flag.BoolP("help", "h", false, "display this help and exit")
	looseExit   = flag.BoolP("loose-exit-status", "l", false, "exit with 0 status even if a command fails")
	prompt      = flag.StringP("prompt", "p", "", "use STRING as an interactive prompt")
	quiet       = flag.BoolP("quiet", "q", false, "suppress diagnostics written to stderr")
	restricted  = flag.BoolP("restricted", "r", false, "run in restricted mode")
	scripted    = flag.BoolP("script", "s", false, "suppress byte counts and '!' prompt")
	verbose     = flag.BoolP("verbose", "v", false, "be verbose; equivalent to the 'H' command")
	showVersion = flag.BoolP("version", "V", false, "output version information and exit")
	stripCR     = flag.Bool("strip-trailing-cr", false, "strip carriage returns at end of text lines")
	unsafeNames = flag.Bool("unsafe-names", false, "allow control characters 1-31 in file names")
)

func init() {
	flag.BoolVarP(quiet, "silent", "", *quiet, "suppress diagnostics written to stderr")
	flag.Lookup("silent").Hidden = true
}

func usage(w *os.File) {
	fmt.Fprintf(w, "Ged is a line-oriented text editor compatible with the classic ed.\n")
	fmt.Fprintf(w, "\nUsage: %s [options] [[+line] file]\n", os.Args[0])
	fmt.Fprintf(w, "\nThe file name may be preceded by '+line', '+/RE', or '+?RE' to set the\n")
	fmt.Fprintf(w, "current line to the line number specified or to the first or last line\n")
	fmt.Fprintf(w, "matching the regular expression 'RE'.\n\nOptions:\n")
	fmt.Fprint(w, flag.CommandLine.FlagUsages())
	fmt.Fprintf(w, "\nStart edit by reading in 'file' if given.\n")
	fmt.Fprintf(w, "If 'file' begins with a '!', read output of shell command.\n")
	fmt.Fprintf(w, "\nExit status: 0 for a normal exit, 1 for environmental problems,\n")
	fmt.Fprintf(w, "2 for problems with the input file, 3 for an internal error.\n")
}

func main() {
	// A bare "-" argument is equivalent to -s.
	args := os.Args[1:]
	for i, a := range args {
		if a == "-" {
			args[i] = "-s"
		}
	}
	flag.CommandLine.SortFlags = false
	if err := flag.CommandLine.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage(os.Stderr)
		os.Exit(1)
	}
	if *showHelp {
		usage(os.Stdout)
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("ged %s\n", progVersion)
		os.Exit(0)
	}

	buf, err := buffer.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ed := edit.New(buf, os.Stdin, os.Stdout, os.Stderr, edit.Options{
		ExtendedRegexp: *extendedRE,
		Traditional:    *traditional,
		LooseExit:      *looseExit,
		Quiet:          *quiet,
		Restricted:     *restricted,
		Scripted:       *scripted,
		StripCR:        *stripCR,
		UnsafeNames:    *unsafeNames,
	})
	ed.SetInteractive(term.IsTerminal(0))
	if *verbose {
		ed.SetVerbose()
	}
	if *prompt != "" {
		ed.SetPrompt(*prompt)
	}

	var startupAddr string
	var filename string
	rest := flag.CommandLine.Args()
	if len(rest) > 0 && strings.HasPrefix(rest[0], "+") {
		startupAddr = rest[0][1:]
		rest = rest[1:]
	}
	if len(rest) > 1 {
		fmt.Fprintln(os.Stderr, "too many file names")
		os.Exit(1)
	}
	if len(rest) == 1 {
		filename = rest[0]
	}

	initialError := false
	if filename != "" {
		if !strings.HasPrefix(filename, "!") {
			ed.SetDefaultFilename(filename)
		}
		if _, err := ed.FirstECommand(filename); err != nil {
			initialError = true
			if !term.IsTerminal(0) {
				os.Exit(2)
			}
			fmt.Fprintln(os.Stdout, "?")
		} else if startupAddr != "" && !ed.StartupAddress(startupAddr) {
			initialError = true
			fmt.Fprintln(os.Stdout, "?")
		}
	}

	os.Exit(ed.MainLoop(initialError))
}
