package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Logo is the banner printed by interactive commands
const Logo = `
  ╦ ╦╔═╗╦╔╗ ╔═╗  ╔═╗╦═╗╔═╗╦ ╦╦
  ║║║║╣ ║╠╩╗║ ║  ║  ╠╦╝╠═╣║║║║
  ╚╩╝╚═╝╩╚═╝╚═╝  ╚═╝╩╚═╩ ╩╚╩╝╩═╝
  incremental feed harvester
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	quiet atomic.Bool
	// Out receives all output; tests replace it
	Out io.Writer = os.Stdout
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether output is suppressed
func IsQuietMode() bool {
	return quiet.Load()
}

// PrintLogo prints the banner
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(Out, Cyan(Logo))
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(Out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Out, Magenta(msg))
}
