// Package air holds air quality sensor drivers built on the transaction
// engine.
package air

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
)

// DefaultAddress is the AGS02MA 7-bit address. The datasheet's 0x34/0x35
// instructions are the same address with the R/W bit appended.
const DefaultAddress = 0x1A

// MaxFrequency is the fastest clock the AGS02MA tolerates.
const MaxFrequency = 30 * physic.KiloHertz

// Register map. Every read returns four data bytes and a CRC.
const (
	regTVOC       = 0x00
	regCalibrate  = 0x01
	regVersion    = 0x11
	regResistance = 0x20

	frameLen = 5
)

// Status byte: bit 0 is set while the sensor pre-heats or converts.
const statusBitRDY = 0x01

var (
	ErrNotReady = errors.New("ags02ma: data not ready or sensor in pre-heat stage")
	ErrCRC      = errors.New("ags02ma: crc mismatch")
)

// Writes carry their own CRC as the fifth byte.
var (
	configureFrame = uint64(0x00FF00FF30)
	calibrateFrame = uint64(0x000CFFF3) << 8
)

type Option func(*AGS02MA)

func WithBus(bus i2c.Bus) Option {
	return func(s *AGS02MA) {
		s.bus = bus
	}
}

func WithAddress(address uint8) Option {
	return func(s *AGS02MA) {
		s.address = address
	}
}

// AGS02MA is an Aosong TVOC sensor. The bus it sits on must be clocked at or
// below MaxFrequency.
//
//	s := air.NewAGS02MA(buses, air.WithBus(i2c.BusB))
//	s.ReadTVOC(evTVOC)
//	// in the evTVOC handler
//	ppb, err := s.TVOC()
type AGS02MA struct {
	starter i2c.Starter
	bus     i2c.Bus
	address uint8

	configure  uint64
	calibrate  uint64
	tvoc       uint64
	version    uint64
	resistance uint64
}

func NewAGS02MA(starter i2c.Starter, opts ...Option) *AGS02MA {
	s := &AGS02MA{
		starter:   starter,
		address:   DefaultAddress,
		configure: configureFrame,
		calibrate: calibrateFrame | uint64(checkCRC(0x00, 0x0C, 0xFF, 0xF3)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AGS02MA) request(dir i2c.Direction, reg uint32, data *uint64, ev event.ID) i2c.Request {
	return i2c.Request{
		Bus:           s.bus,
		Direction:     dir,
		Address:       s.address,
		Register:      reg,
		RegisterWidth: 1,
		Length:        frameLen,
		Data:          data,
		Event:         ev,
	}
}

// Configure selects TVOC output in ppb. The sensor needs about two seconds
// before the next command.
func (s *AGS02MA) Configure(ev event.ID) {
	s.starter.Start(s.request(i2c.Write, regTVOC, &s.configure, ev))
}

// Calibrate sets the current air as the zero point.
func (s *AGS02MA) Calibrate(ev event.ID) {
	s.starter.Start(s.request(i2c.Write, regCalibrate, &s.calibrate, ev))
}

// ReadTVOC fetches the TVOC frame. Leave 1.5s between reads.
func (s *AGS02MA) ReadTVOC(ev event.ID) {
	s.starter.Start(s.request(i2c.Read, regTVOC, &s.tvoc, ev))
}

func (s *AGS02MA) ReadVersion(ev event.ID) {
	s.starter.Start(s.request(i2c.Read, regVersion, &s.version, ev))
}

func (s *AGS02MA) ReadResistance(ev event.ID) {
	s.starter.Start(s.request(i2c.Read, regResistance, &s.resistance, ev))
}

// TVOC decodes the last TVOC frame in parts per billion.
func (s *AGS02MA) TVOC() (uint32, error) {
	data, err := frame(s.tvoc)
	if err != nil {
		return 0, err
	}
	if data[0]&statusBitRDY != 0 {
		return 0, ErrNotReady
	}
	return uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]), nil
}

// Version decodes the firmware version from the last version frame.
func (s *AGS02MA) Version() (int, error) {
	data, err := frame(s.version)
	if err != nil {
		return 0, err
	}
	return int(data[3]), nil
}

// Resistance decodes the sensing element resistance, reported in 100Ω
// steps.
func (s *AGS02MA) Resistance() (physic.ElectricResistance, error) {
	data, err := frame(s.resistance)
	if err != nil {
		return 0, err
	}
	steps := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	return physic.ElectricResistance(steps) * 100 * physic.Ohm, nil
}

// frame splits a five byte reading and verifies its CRC.
func frame(v uint64) ([4]byte, error) {
	data := [4]byte{byte(v >> 32), byte(v >> 24), byte(v >> 16), byte(v >> 8)}
	if crc := checkCRC(data[:]...); crc != byte(v) {
		return data, fmt.Errorf("%w: expected %#x, got %#x", ErrCRC, byte(v), crc)
	}
	return data, nil
}

// checkCRC calculates CRC8 checksum with initial value 0xFF and polynomial 0x31.
// This implements the algorithm from AGS02MA datasheet (x8 + x5 + x4 + 1).
func checkCRC(data ...byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for range 8 {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc = crc << 1
			}
		}
	}
	return crc
}
