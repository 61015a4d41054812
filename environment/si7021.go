package environment

import (
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
)

const (
	si7021DefaultAddress = 0x40

	si7021MeasureRH = 0xF5
	si7021MeasureT  = 0xF3
	si7021WriteUser = 0xE6
	si7021ReadUser  = 0xE7

	// SI7021Settings selects 11 bit RH and 11 bit temperature with the heater
	// off.
	SI7021Settings = 0b00111011
)

// SI7021 is a Silicon Labs humidity and temperature sensor.
// See: https://www.silabs.com/documents/public/data-sheets/Si7021-A20.pdf
type SI7021 struct {
	starter i2c.Starter
	cfg     config

	settings uint64
	user     uint64
	rawRH    uint64
	rawT     uint64
}

func NewSI7021(starter i2c.Starter, opts ...Option) *SI7021 {
	return &SI7021{
		starter:  starter,
		cfg:      newConfig(si7021DefaultAddress, opts),
		settings: SI7021Settings,
	}
}

func (s *SI7021) request(dir i2c.Direction, cmd uint32, length uint8, data *uint64, ev event.ID) i2c.Request {
	return i2c.Request{
		Bus:           s.cfg.bus,
		Direction:     dir,
		Address:       s.cfg.address,
		Register:      cmd,
		RegisterWidth: 1,
		Length:        length,
		Data:          data,
		Event:         ev,
	}
}

// Configure writes the user settings and reads them back; ev is posted once
// the read back completes.
func (s *SI7021) Configure(ev event.ID) {
	s.starter.Start(s.request(i2c.Write, si7021WriteUser, 1, &s.settings, event.None))
	s.starter.Start(s.request(i2c.Read, si7021ReadUser, 1, &s.user, ev))
}

// UserSettings returns the user register read back by Configure.
func (s *SI7021) UserSettings() byte {
	return byte(s.user)
}

// SettingsConfirmed reports whether the read back matches what was written.
func (s *SI7021) SettingsConfirmed() bool {
	return s.user == s.settings
}

// ReadHumidity starts a humidity conversion. The device NACKs its read
// address until the conversion is done.
func (s *SI7021) ReadHumidity(ev event.ID) {
	s.starter.Start(s.request(i2c.Read, si7021MeasureRH, 2, &s.rawRH, ev))
}

// ReadTemperature starts a temperature conversion.
func (s *SI7021) ReadTemperature(ev event.ID) {
	s.starter.Start(s.request(i2c.Read, si7021MeasureT, 2, &s.rawT, ev))
}

// Humidity converts the last humidity reading.
func (s *SI7021) Humidity() physic.RelativeHumidity {
	return percentRH(s.HumidityPercent())
}

func (s *SI7021) HumidityPercent() float32 {
	rh := 125*float32(s.rawRH)/65536 - 6
	switch {
	case rh < 0:
		return 0
	case rh > 100:
		return 100
	}
	return rh
}

// Temperature converts the last temperature reading.
func (s *SI7021) Temperature() physic.Temperature {
	return celsius(s.TemperatureCelsius())
}

func (s *SI7021) TemperatureCelsius() float32 {
	return 175.72*float32(s.rawT)/65536 - 46.85
}

func celsius(c float32) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(float64(c)*float64(physic.Celsius))
}

func percentRH(p float32) physic.RelativeHumidity {
	return physic.RelativeHumidity(float64(p) * float64(physic.PercentRH))
}
