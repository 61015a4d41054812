package environment

import (
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
)

const tc74DefaultAddress = 0x4D
const tc74TempRegister = 0x00
const tc74ConfigRegister = 0x01
const tc74DataReady = 0x40

// TC74 represents a Microchip TC74 Digital Temperature Sensor
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/21462D.pdf
//
// Usage: Instantiate with NewTC74, call ReadTemperature(ev) and read
// Temperature() once ev is dispatched.
type TC74 struct {
	starter i2c.Starter
	cfg     config
	temp    uint64
	config  uint64
}

// NewTC74 creates a TC74 driver. The default address is 0x4D.
func NewTC74(starter i2c.Starter, opts ...Option) *TC74 {
	return &TC74{starter: starter, cfg: newConfig(tc74DefaultAddress, opts)}
}

func (sensor *TC74) read(reg uint32, data *uint64, ev event.ID) {
	sensor.starter.Start(i2c.Request{
		Bus:           sensor.cfg.bus,
		Direction:     i2c.Read,
		Address:       sensor.cfg.address,
		Register:      reg,
		RegisterWidth: 1,
		Length:        1,
		Data:          data,
		Event:         ev,
	})
}

// ReadConfig reads the configuration register (0x01).
func (sensor *TC74) ReadConfig(ev event.ID) {
	sensor.read(tc74ConfigRegister, &sensor.config, ev)
}

// DataReady reports the DATA_RDY bit of the last configuration read.
func (sensor *TC74) DataReady() bool {
	return sensor.config&tc74DataReady != 0
}

// ReadTemperature reads the temperature register (0x00).
func (sensor *TC74) ReadTemperature(ev event.ID) {
	sensor.read(tc74TempRegister, &sensor.temp, ev)
}

// Temperature returns the last reading. The register holds whole degrees in
// two's complement.
func (sensor *TC74) Temperature() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(sensor.TemperatureCelsius())*physic.Celsius
}

func (sensor *TC74) TemperatureCelsius() int8 {
	return int8(sensor.temp)
}
