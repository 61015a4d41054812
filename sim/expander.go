package sim

const mcp23017Address = 0x21

// MCP23017 simulates a Microchip I/O expander in its power-on
// configuration: interleaved registers with sequential addressing.
type MCP23017 struct {
	register
	address uint8
	regs    [0x16]byte
	ptr     byte
	inputs  [2]byte
}

func NewMCP23017(address uint8) *MCP23017 {
	if address == 0 {
		address = mcp23017Address
	}
	d := &MCP23017{address: address}
	d.regs[0x00], d.regs[0x01] = 0xFF, 0xFF
	return d
}

func (d *MCP23017) Address() uint8 { return d.address }

// SetInputs drives the levels seen on the port pins, 0 for port A.
func (d *MCP23017) SetInputs(port int, levels byte) {
	d.mu.Lock()
	d.inputs[port] = levels
	d.mu.Unlock()
}

// Outputs returns the levels driven on the pins configured as outputs.
func (d *MCP23017) Outputs(port int) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[0x14+port] &^ d.regs[port]
}

// Direction returns IODIR of a port, 1 for input.
func (d *MCP23017) Direction(port int) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[port]
}

// PullUps returns GPPU of a port.
func (d *MCP23017) PullUps(port int) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[0x0C+port]
}

func (d *MCP23017) Start(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !read {
		d.begin()
	}
	return true
}

func (d *MCP23017) Write(b byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd = append(d.cmd, b)
	if len(d.cmd) == 1 {
		if b >= byte(len(d.regs)) {
			return false
		}
		d.ptr = b
		return true
	}
	reg := d.ptr
	// GPIO writes land in the output latch
	if reg == 0x12 || reg == 0x13 {
		reg += 2
	}
	d.regs[reg] = b
	d.advance()
	return true
}

func (d *MCP23017) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.regs[d.ptr]
	if d.ptr == 0x12 || d.ptr == 0x13 {
		port := d.ptr - 0x12
		dir := d.regs[port]
		v = d.inputs[port]&dir | d.regs[0x14+port]&^dir
	}
	d.advance()
	return v
}

func (d *MCP23017) advance() {
	d.ptr = (d.ptr + 1) % byte(len(d.regs))
}

func (d *MCP23017) Stop() {}
