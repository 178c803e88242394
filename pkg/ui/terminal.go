package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCII logo for the application
const ASCIILogo = `
  +-----------------------------------------+
  |  C L I P V A U L T                      |
  |  invite probe  /  remix archiver        |
  +-----------------------------------------+
`

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	noColor bool
)

// Configure sets the output stream and disables ANSI colors when plain is true
func Configure(w io.Writer, plain bool) {
	mu.Lock()
	defer mu.Unlock()
	if w != nil {
		out = w
	}
	noColor = plain
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		plain := noColor
		mu.Unlock()
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func writeLine(s string) {
	mu.Lock()
	w := out
	mu.Unlock()
	fmt.Fprintln(w, s)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	writeLine(Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		writeLine(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		writeLine(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	writeLine(Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	writeLine(fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		writeLine(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		writeLine(Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	writeLine(Magenta(msg))
}
