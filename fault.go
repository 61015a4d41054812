package sensorcore

import "fmt"

// Fault is the panic value raised by Assert. Faults mark programming errors and
// protocol sequencing violations; continuing after one would corrupt bus or
// power state, so they are never returned as errors.
type Fault struct {
	Component string
	Message   string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: assertion failed: %s", f.Component, f.Message)
}

// Assert halts with a *Fault when cond is false.
func Assert(cond bool, component, format string, args ...interface{}) {
	if cond {
		return
	}
	panic(&Fault{Component: component, Message: fmt.Sprintf(format, args...)})
}
