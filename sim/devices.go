package sim

import (
	"context"
	"sync"
)

// register collects the command bytes of the current transaction and serves
// the response prepared for the following read.
type register struct {
	mu  sync.Mutex
	cmd []byte
	out []byte
}

func (r *register) begin() {
	r.cmd = r.cmd[:0]
}

func (r *register) next() byte {
	if len(r.out) == 0 {
		return 0xFF
	}
	b := r.out[0]
	r.out = r.out[1:]
	return b
}

func (r *register) command() uint16 {
	switch len(r.cmd) {
	case 0:
		return 0
	case 1:
		return uint16(r.cmd[0])
	}
	return uint16(r.cmd[0])<<8 | uint16(r.cmd[1])
}

const (
	si7021Address       = 0x40
	si7021MeasureRHHold = 0xE5
	si7021MeasureRH     = 0xF5
	si7021MeasureTHold  = 0xE3
	si7021MeasureT      = 0xF3
	si7021WriteUser     = 0xE6
	si7021ReadUser      = 0xE7
	si7021UserReset     = 0x3A
)

// SI7021 simulates a Silicon Labs humidity and temperature sensor.
type SI7021 struct {
	register
	env  Behavior
	user byte
}

func NewSI7021(env Behavior) *SI7021 {
	return &SI7021{env: env, user: si7021UserReset}
}

func (d *SI7021) Address() uint8 { return si7021Address }

// UserSettings returns the user register.
func (d *SI7021) UserSettings() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.user
}

func (d *SI7021) Start(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !read {
		d.begin()
		return true
	}
	if len(d.cmd) == 0 {
		return false
	}
	switch d.cmd[0] {
	case si7021ReadUser:
		d.out = []byte{d.user}
	case si7021MeasureRH, si7021MeasureRHHold:
		env, err := d.env(context.Background())
		if err != nil {
			return false
		}
		d.out = withCRC(0, clampRaw((percentOf(env.Humidity)+6)*65536/125))
	case si7021MeasureT, si7021MeasureTHold:
		env, err := d.env(context.Background())
		if err != nil {
			return false
		}
		d.out = withCRC(0, clampRaw((env.Temperature.Celsius()+46.85)*65536/175.72))
	default:
		return false
	}
	return true
}

func (d *SI7021) Write(b byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd = append(d.cmd, b)
	if len(d.cmd) == 2 && d.cmd[0] == si7021WriteUser {
		d.user = b
	}
	return len(d.cmd) <= 2
}

func (d *SI7021) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next()
}

func (d *SI7021) Stop() {}

const (
	shtc3Address        = 0x70
	shtc3Wake           = 0x3517
	shtc3Sleep          = 0xB098
	shtc3MeasureTFirst  = 0x7866
	shtc3MeasureStretch = 0x7CA2
	shtc3SoftReset      = 0x805D
)

// SHTC3 simulates a Sensirion SHTC3. Without clock stretching the device
// NACKs its read address while converting.
type SHTC3 struct {
	register
	env       Behavior
	polls     int
	remaining int
	awake     bool
	nacked    int
}

// NewSHTC3 returns a sleeping sensor that NACKs polls read addresses after a
// measure command.
func NewSHTC3(env Behavior, polls int) *SHTC3 {
	return &SHTC3{env: env, polls: polls}
}

func (d *SHTC3) Address() uint8 { return shtc3Address }

// Awake reports whether the sensor has been woken and not put back to sleep.
func (d *SHTC3) Awake() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.awake
}

// Nacked returns how many read addresses were NACKed while converting.
func (d *SHTC3) Nacked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nacked
}

func (d *SHTC3) Start(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !read {
		d.begin()
		return true
	}
	if d.remaining > 0 {
		d.remaining--
		d.nacked++
		return false
	}
	return len(d.out) > 0
}

func (d *SHTC3) Write(b byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd = append(d.cmd, b)
	if len(d.cmd) != 2 {
		return len(d.cmd) < 2
	}
	switch d.command() {
	case shtc3Wake:
		d.awake = true
	case shtc3Sleep:
		d.awake = false
	case shtc3SoftReset:
		d.out = nil
	case shtc3MeasureTFirst, shtc3MeasureStretch:
		env, err := d.env(context.Background())
		if err != nil {
			d.out = nil
			return true
		}
		t := clampRaw((env.Temperature.Celsius() + 45) * 65536 / 175)
		h := clampRaw(percentOf(env.Humidity) * 65536 / 100)
		d.out = append(withCRC(0xFF, t), withCRC(0xFF, h)...)
		if d.command() == shtc3MeasureTFirst {
			d.remaining = d.polls
		}
	default:
		return false
	}
	return true
}

func (d *SHTC3) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next()
}

func (d *SHTC3) Stop() {}

const tc74Address = 0x4D

// TC74 simulates a Microchip TC74 with the temperature register at 0x00 and
// configuration at 0x01.
type TC74 struct {
	register
	env     Behavior
	address uint8
	config  byte
}

func NewTC74(env Behavior, address uint8) *TC74 {
	if address == 0 {
		address = tc74Address
	}
	return &TC74{env: env, address: address, config: 0x40}
}

func (d *TC74) Address() uint8 { return d.address }

func (d *TC74) Start(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !read {
		d.begin()
		return true
	}
	switch d.command() {
	case 0x00:
		env, err := d.env(context.Background())
		if err != nil {
			return false
		}
		d.out = []byte{byte(int8(clampSigned(env.Temperature.Celsius())))}
	case 0x01:
		d.out = []byte{d.config}
	default:
		return false
	}
	return true
}

func (d *TC74) Write(b byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd = append(d.cmd, b)
	if len(d.cmd) == 2 && d.cmd[0] == 0x01 {
		d.config = b
	}
	return len(d.cmd) <= 2
}

func (d *TC74) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next()
}

func (d *TC74) Stop() {}

func clampSigned(c float64) float64 {
	switch {
	case c < -65:
		return -65
	case c > 127:
		return 127
	}
	return c
}

func withCRC(init byte, v uint16) []byte {
	hi, lo := byte(v>>8), byte(v)
	return []byte{hi, lo, checksum(init, hi, lo)}
}
