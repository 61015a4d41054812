package i2c

// PhaseKind names an engine phase.
type PhaseKind uint8

const (
	PhaseIdle PhaseKind = iota
	PhaseAddress
	PhaseAddressSent
	PhaseAwaitReadRestart
	PhaseReadData
	PhaseWriteData
	PhaseStopPending
)

var phaseNames = [...]string{
	PhaseIdle:             "idle",
	PhaseAddress:          "address",
	PhaseAddressSent:      "address-sent",
	PhaseAwaitReadRestart: "await-read-restart",
	PhaseReadData:         "read-data",
	PhaseWriteData:        "write-data",
	PhaseStopPending:      "stop-pending",
}

func (k PhaseKind) String() string {
	if int(k) < len(phaseNames) {
		return phaseNames[k]
	}
	return "unknown"
}

// phase is the engine state. Each variant carries only the counters that mean
// something in it.
type phase interface {
	kind() PhaseKind
}

type idle struct{}

// addressPhase sends the device address then the register bytes.
type addressPhase struct {
	reg     uint8
	payload uint8
}

type addressSent struct {
	payload uint8
}

// awaitReadRestart waits for the device to acknowledge the read address.
type awaitReadRestart struct {
	payload uint8
}

type readData struct {
	payload uint8
}

type writeData struct {
	payload uint8
}

type stopPending struct{}

func (idle) kind() PhaseKind             { return PhaseIdle }
func (addressPhase) kind() PhaseKind     { return PhaseAddress }
func (addressSent) kind() PhaseKind      { return PhaseAddressSent }
func (awaitReadRestart) kind() PhaseKind { return PhaseAwaitReadRestart }
func (readData) kind() PhaseKind         { return PhaseReadData }
func (writeData) kind() PhaseKind        { return PhaseWriteData }
func (stopPending) kind() PhaseKind      { return PhaseStopPending }
