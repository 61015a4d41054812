// Package sensorcore holds the interfaces shared by the interrupt-driven bus
// engine, the simulated controllers and the host-side bridge backends.
package sensorcore

import (
	"context"
	"fmt"
)

// ErrBusBusy is returned by bridge backends when the adapter could not accept
// a transfer because its own engine is still busy.
var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a transaction level bus. Writes and reads are separate
// transfers, each framed by its own START and STOP.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}
