package sim

const bma220Address = 0x0A

// BMA220 simulates the slope detector of a Bosch accelerometer. Shake sets
// the latched interrupt when slope detection is enabled; writing the latch
// register with bit 7 set clears it.
type BMA220 struct {
	register
	regs [0x40]byte
	ptr  byte
}

func NewBMA220() *BMA220 {
	return &BMA220{}
}

func (d *BMA220) Address() uint8 { return bma220Address }

// Shake moves the sensor. It reports whether an interrupt was latched.
func (d *BMA220) Shake() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.regs[0x1A]&0b00111000 == 0 {
		return false
	}
	d.regs[0x18] |= 0x01
	return true
}

// Register returns the value last written to reg.
func (d *BMA220) Register(reg byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

func (d *BMA220) Start(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !read {
		d.begin()
	}
	return true
}

func (d *BMA220) Write(b byte) bool {
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
	if d.ptr == 0x1C && b&0x80 != 0 {
		d.regs[0x18] &^= 0x01
		b &^= 0x80
	}
	d.regs[d.ptr] = b
	d.ptr = (d.ptr + 1) % byte(len(d.regs))
	return true
}

func (d *BMA220) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.regs[d.ptr]
	d.ptr = (d.ptr + 1) % byte(len(d.regs))
	return v
}

func (d *BMA220) Stop() {}
