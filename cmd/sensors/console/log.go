package console

import (
	"fmt"
	"io"
	"os"
)

const (
	PictoPin         = "📌"
	PictoThermometer = "🌡"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects console output and returns a func that restores the
// previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		stdout, stderr = prevOut, prevErr
	}
}

// Warnf goes to stderr so that it never mixes with wire dumps.
func Warnf(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(stderr, Yellow("WARN")+": "+fmt.Sprintf(format, args...))
}

// PInfof prefixes the line with a pictogram.
func PInfof(picto, format string, args ...interface{}) {
	_, _ = fmt.Fprintln(stdout, picto, fmt.Sprintf(format, args...))
}

func Print(line string) {
	_, _ = fmt.Fprintln(stdout, line)
}

func Printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stdout, format, args...)
}
