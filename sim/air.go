package sim

const ags02maAddress = 0x1A

// AGS02MA simulates an Aosong TVOC sensor. Every read answers four data
// bytes followed by a CRC.
type AGS02MA struct {
	register
	tvoc       uint32
	preheat    bool
	version    byte
	resistance uint32
	configured bool
	calibrated bool
}

// NewAGS02MA starts in pre-heat with the given TVOC level in ppb.
func NewAGS02MA(tvoc uint32) *AGS02MA {
	return &AGS02MA{tvoc: tvoc, preheat: true, version: 0x76, resistance: 2500}
}

func (d *AGS02MA) Address() uint8 { return ags02maAddress }

// Warm ends the pre-heat stage.
func (d *AGS02MA) Warm() {
	d.mu.Lock()
	d.preheat = false
	d.mu.Unlock()
}

func (d *AGS02MA) SetTVOC(ppb uint32) {
	d.mu.Lock()
	d.tvoc = ppb
	d.mu.Unlock()
}

// Configured reports whether a valid configuration frame was received.
func (d *AGS02MA) Configured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configured
}

// Calibrated reports whether a valid zero-point frame was received.
func (d *AGS02MA) Calibrated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calibrated
}

func (d *AGS02MA) Start(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !read {
		d.begin()
		return true
	}
	if len(d.cmd) != 1 {
		return false
	}
	var data [4]byte
	switch d.cmd[0] {
	case 0x00:
		status := byte(0)
		if d.preheat {
			status = 0x01
		}
		data = [4]byte{status, byte(d.tvoc >> 16), byte(d.tvoc >> 8), byte(d.tvoc)}
	case 0x11:
		data = [4]byte{0, 0, 0, d.version}
	case 0x20:
		data = [4]byte{byte(d.resistance >> 24), byte(d.resistance >> 16), byte(d.resistance >> 8), byte(d.resistance)}
	default:
		return false
	}
	d.out = append(data[:], checksum(0xFF, data[:]...))
	return true
}

func (d *AGS02MA) Write(b byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd = append(d.cmd, b)
	return len(d.cmd) <= 6
}

func (d *AGS02MA) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next()
}

// Stop applies a complete write frame.
func (d *AGS02MA) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cmd) != 6 || checksum(0xFF, d.cmd[1:5]...) != d.cmd[5] {
		return
	}
	switch d.cmd[0] {
	case 0x00:
		d.configured = true
	case 0x01:
		d.calibrated = true
	}
}
