package environment

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
)

// SHTC3 I2C address (7-bit)
const shtc3Address = 0x70

// Commands (Big Endian on the wire)
const (
	shtc3CmdWake  uint16 = 0x3517
	shtc3CmdSleep uint16 = 0xB098

	// Normal power, clock stretching disabled
	// Measure T first, then RH
	shtc3CmdMeasureTFirstNoCS uint16 = 0x7866

	// wake up takes at most 240us
	shtc3WakeTime = 240 * time.Microsecond
)

var ErrCRC = errors.New("environment: checksum mismatch")

// SHTC3 represents Sensirion SHTC3 Temperature/Humidity sensor
// Typical usage:
//
//	s := NewSHTC3(engine)
//	s.Measure(evSHTC3)
//	// in the evSHTC3 handler
//	t, h, err := s.TempAndHum()
type SHTC3 struct {
	starter i2c.Starter
	cfg     config

	wake  uint64
	sleep uint64
	raw   uint64
}

func NewSHTC3(starter i2c.Starter, opts ...Option) *SHTC3 {
	return &SHTC3{
		starter: starter,
		cfg:     newConfig(shtc3Address, opts),
		wake:    uint64(shtc3CmdWake),
		sleep:   uint64(shtc3CmdSleep),
	}
}

func (s *SHTC3) command(data *uint64) i2c.Request {
	return i2c.Request{
		Bus:       s.cfg.bus,
		Direction: i2c.Write,
		Address:   s.cfg.address,
		Length:    2,
		Data:      data,
		Event:     event.None,
	}
}

// Measure wakes the sensor, reads one measurement and puts it back to sleep.
// The read polls the sensor with repeated starts until the conversion is
// done; ev is posted when the data is in. It returns once the sleep command
// is queued, which waits for the read to finish.
func (s *SHTC3) Measure(ev event.ID) {
	s.starter.Start(s.command(&s.wake))
	s.cfg.delay(shtc3WakeTime)
	s.starter.Start(i2c.Request{
		Bus:           s.cfg.bus,
		Direction:     i2c.Read,
		Address:       s.cfg.address,
		Register:      uint32(shtc3CmdMeasureTFirstNoCS),
		RegisterWidth: 2,
		Length:        6,
		Data:          &s.raw,
		Event:         ev,
	})
	s.starter.Start(s.command(&s.sleep))
}

// Raw returns the last measurement words: temperature, CRC, humidity, CRC.
func (s *SHTC3) Raw() [6]byte {
	var out [6]byte
	for i := range out {
		out[i] = byte(s.raw >> (8 * (5 - i)))
	}
	return out
}

// TempAndHum converts the last measurement after verifying both checksums.
func (s *SHTC3) TempAndHum() (physic.Temperature, physic.RelativeHumidity, error) {
	buf := s.Raw()
	if !shtCRC8Check(buf[0:2], buf[2]) {
		return 0, 0, fmt.Errorf("shtc3: temperature: %w", ErrCRC)
	}
	if !shtCRC8Check(buf[3:5], buf[5]) {
		return 0, 0, fmt.Errorf("shtc3: humidity: %w", ErrCRC)
	}
	rawT := uint16(buf[0])<<8 | uint16(buf[1])
	rawRH := uint16(buf[3])<<8 | uint16(buf[4])

	// T(C) = -45 + 175 * rawT / 2^16
	// RH(%) = 100 * rawRH / 2^16
	t := -45 + 175*float32(rawT)/65536
	rh := 100 * float32(rawRH) / 65536
	return celsius(t), percentRH(rh), nil
}

// Sensirion CRC-8, polynomial 0x31, init 0xFF
func shtCRC8(data []byte) byte {
	var crc byte = 0xFF
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if (crc & 0x80) != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func shtCRC8Check(data []byte, expected byte) bool {
	return shtCRC8(data) == expected
}
