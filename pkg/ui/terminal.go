package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/jedib0t/go-pretty/v6/text"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔══════════════════════════════════════════════════════════╗
    ║ ██╗  ██╗███████╗ ██████╗██████╗  █████╗ ██████╗ ███████╗ ║
    ║ ╚██╗██╔╝██╔════╝██╔════╝██╔══██╗██╔══██╗██╔══██╗██╔════╝ ║
    ║  ╚███╔╝ ███████╗██║     ██████╔╝███████║██████╔╝█████╗   ║
    ║  ██╔██╗ ╚════██║██║     ██╔══██╗██╔══██║██╔═══╝ ██╔══╝   ║
    ║ ██╔╝ ██╗███████║╚██████╗██║  ██║██║  ██║██║     ███████╗ ║
    ║ ╚═╝  ╚═╝╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚══════╝ ║
    ║          SCROLL · EXTRACT · DEDUPE · DIFF                ║
    ╚══════════════════════════════════════════════════════════╝
`

// Color helpers; text.DisableColors turns them into plain text
var (
	Cyan    = colorize(text.FgCyan)
	Yellow  = colorize(text.FgYellow)
	Red     = colorize(text.FgRed)
	Green   = colorize(text.FgGreen)
	Magenta = colorize(text.FgMagenta)
	Dim     = colorize(text.Faint)
)

var quiet atomic.Bool

// Output is where the print helpers write. Stdout is reserved for exported data.
var Output io.Writer = os.Stderr

// SetQuietMode silences the print helpers
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether the print helpers are silenced
func IsQuietMode() bool {
	return quiet.Load()
}

func colorize(colors ...text.Color) func(string) string {
	c := text.Colors(colors)
	return func(s string) string { return c.Sprint(s) }
}

func printf(format string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Output, format, args...)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf("%s", Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf("%s\n", Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf("%s\n", Magenta(msg))
}
