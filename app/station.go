package app

import (
	"errors"
	"log/slog"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/accel"
	"github.com/mklimuk/sensorcore/air"
	"github.com/mklimuk/sensorcore/environment"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/sleep"
)

// Events of the station. IDs are bit positions in the aggregator.
const (
	EvTimerComp0 event.ID = iota
	EvTimerComp1
	EvTick
	EvButtonEven
	EvButtonOdd
	EvHumidity
	EvTemperature
	EvSHTC3
	EvUserConfirm
	EvTVOC
	EvMotion
)

// TimerLevel is held while the sampling timer runs; it keeps counting down
// to EM3.
const TimerLevel = sleep.EM4

// DefaultHumidityThreshold turns the indicator on, in percent.
const DefaultHumidityThreshold = 30.0

// Quantity tells which fields of a Reading are set.
type Quantity uint8

const (
	QuantityHumidity Quantity = 1 << iota
	QuantityTemperature
	QuantityTVOC
	QuantityMotion
)

// Reading is one completed measurement.
type Reading struct {
	Sensor   string
	Quantity Quantity
	Env      physic.Env
	TVOC     uint32
	Motion   bool
}

// Fahrenheit returns the temperature in degrees Fahrenheit.
func (r Reading) Fahrenheit() float64 {
	return r.Env.Temperature.Celsius()*1.8 + 32
}

// Reporter receives readings from the main loop.
type Reporter interface {
	Report(r Reading)
}

type ReporterFunc func(r Reading)

func (f ReporterFunc) Report(r Reading) {
	f(r)
}

// Indicator is the humidity warning output, an LED on the board.
type Indicator interface {
	Set(on bool)
}

type IndicatorFunc func(on bool)

func (f IndicatorFunc) Set(on bool) {
	f(on)
}

// LogReporter logs readings.
func LogReporter(logger *slog.Logger) Reporter {
	return ReporterFunc(func(r Reading) {
		args := []any{"sensor", r.Sensor}
		if r.Quantity&QuantityTemperature != 0 {
			args = append(args, "temperature", r.Env.Temperature.String(), "fahrenheit", r.Fahrenheit())
		}
		if r.Quantity&QuantityHumidity != 0 {
			args = append(args, "humidity", r.Env.Humidity.String())
		}
		if r.Quantity&QuantityTVOC != 0 {
			args = append(args, "tvoc_ppb", r.TVOC)
		}
		if r.Quantity&QuantityMotion != 0 {
			args = append(args, "motion", r.Motion)
		}
		logger.Info("reading", args...)
	})
}

// Station samples an SI7021 and an SHTC3 on every tick.
type Station struct {
	arbiter   *sleep.Arbiter
	si7021    *environment.SI7021
	shtc3     *environment.SHTC3
	reporter  Reporter
	indicator Indicator
	threshold float32
	logger    *slog.Logger

	voc      *air.AGS02MA
	vocEvery int
	ticks    int
	motion   *accel.BMA220

	hold      sleep.Level
	crcErrors int
}

// StationOption configures a Station.
type StationOption func(*Station)

func WithReporter(r Reporter) StationOption {
	return func(s *Station) {
		s.reporter = r
	}
}

func WithIndicator(i Indicator) StationOption {
	return func(s *Station) {
		s.indicator = i
	}
}

func WithHumidityThreshold(percent float32) StationOption {
	return func(s *Station) {
		s.threshold = percent
	}
}

// WithAirSensor samples an AGS02MA on every n-th tick. The sensor wants at
// least 1.5s between reads.
func WithAirSensor(sensor *air.AGS02MA, n int) StationOption {
	return func(s *Station) {
		s.voc = sensor
		s.vocEvery = max(n, 1)
	}
}

// WithMotionSensor polls the BMA220 slope interrupt on every tick. Motion
// detection must already be enabled.
func WithMotionSensor(sensor *accel.BMA220) StationOption {
	return func(s *Station) {
		s.motion = sensor
	}
}

func WithStationLogger(logger *slog.Logger) StationOption {
	return func(s *Station) {
		s.logger = logger
	}
}

// NewStation registers the station handlers on loop. A nil shtc3 samples the
// SI7021 only.
func NewStation(loop *Loop, arbiter *sleep.Arbiter, si7021 *environment.SI7021, shtc3 *environment.SHTC3, opts ...StationOption) *Station {
	s := &Station{
		arbiter:   arbiter,
		si7021:    si7021,
		shtc3:     shtc3,
		indicator: IndicatorFunc(func(bool) {}),
		threshold: DefaultHumidityThreshold,
		logger:    slog.Default(),
		hold:      TimerLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = LogReporter(s.logger)
	}
	loop.Register(EvTimerComp0, func() {})
	loop.Register(EvTimerComp1, func() {})
	loop.Register(EvTick, s.onTick)
	loop.Register(EvButtonEven, func() { s.ShiftFloor(false) })
	loop.Register(EvButtonOdd, func() { s.ShiftFloor(true) })
	loop.Register(EvHumidity, s.onHumidity)
	loop.Register(EvTemperature, s.onTemperature)
	loop.Register(EvSHTC3, s.onSHTC3)
	loop.Register(EvUserConfirm, s.onUserConfirm)
	loop.Register(EvTVOC, s.onTVOC)
	loop.Register(EvMotion, s.onMotion)
	return s
}

// Start takes the timer hold and configures the SI7021. The settings are
// confirmed when EvUserConfirm is dispatched.
func (s *Station) Start() {
	s.arbiter.Block(s.hold)
	s.si7021.Configure(EvUserConfirm)
}

// Stop releases the timer hold.
func (s *Station) Stop() {
	s.arbiter.Unblock(s.hold)
}

// ShiftFloor moves the station's own hold one level deeper or shallower,
// wrapping around at either end.
func (s *Station) ShiftFloor(deeper bool) {
	next := s.hold
	switch {
	case deeper && s.hold < sleep.EM4:
		next++
	case deeper:
		next = sleep.EM0
	case s.hold > sleep.EM0:
		next--
	default:
		next = sleep.EM4
	}
	s.arbiter.Unblock(s.hold)
	s.arbiter.Block(next)
	s.logger.Info("sleep floor moved", "from", s.hold, "to", next)
	s.hold = next
}

// Hold returns the level blocked by the station.
func (s *Station) Hold() sleep.Level {
	return s.hold
}

// CRCErrors returns the number of SHTC3 and AGS02MA measurements dropped on a
// checksum mismatch.
func (s *Station) CRCErrors() int {
	return s.crcErrors
}

func (s *Station) onTick() {
	s.si7021.ReadHumidity(EvHumidity)
	s.si7021.ReadTemperature(EvTemperature)
	if s.shtc3 != nil {
		s.shtc3.Measure(EvSHTC3)
	}
	if s.voc != nil && s.ticks%s.vocEvery == 0 {
		s.voc.ReadTVOC(EvTVOC)
	}
	if s.motion != nil {
		s.motion.CheckMotionInterrupt(EvMotion)
	}
	s.ticks++
}

func (s *Station) onHumidity() {
	rh := s.si7021.HumidityPercent()
	s.indicator.Set(rh >= s.threshold)
	s.reporter.Report(Reading{
		Sensor:   "si7021",
		Quantity: QuantityHumidity,
		Env:      physic.Env{Humidity: s.si7021.Humidity()},
	})
}

func (s *Station) onTemperature() {
	s.reporter.Report(Reading{
		Sensor:   "si7021",
		Quantity: QuantityTemperature,
		Env:      physic.Env{Temperature: s.si7021.Temperature()},
	})
}

func (s *Station) onSHTC3() {
	t, h, err := s.shtc3.TempAndHum()
	if err != nil {
		s.crcErrors++
		s.logger.Warn("shtc3 measurement dropped", "error", err, "raw", s.shtc3.Raw())
		return
	}
	s.reporter.Report(Reading{
		Sensor:   "shtc3",
		Quantity: QuantityHumidity | QuantityTemperature,
		Env:      physic.Env{Temperature: t, Humidity: h},
	})
}

func (s *Station) onTVOC() {
	ppb, err := s.voc.TVOC()
	switch {
	case errors.Is(err, air.ErrNotReady):
		s.logger.Debug("ags02ma pre-heating")
		return
	case err != nil:
		s.crcErrors++
		s.logger.Warn("ags02ma reading dropped", "error", err)
		return
	}
	s.reporter.Report(Reading{Sensor: "ags02ma", Quantity: QuantityTVOC, TVOC: ppb})
}

// onMotion reports a latched slope interrupt and re-arms it.
func (s *Station) onMotion() {
	if !s.motion.Motion() {
		return
	}
	s.motion.ResetMotionInterrupt(event.None)
	s.reporter.Report(Reading{Sensor: "bma220", Quantity: QuantityMotion, Motion: true})
}

func (s *Station) onUserConfirm() {
	sensorcore.Assert(s.si7021.SettingsConfirmed(), "app", "si7021 user settings read back 0x%02x, wrote 0x%02x",
		s.si7021.UserSettings(), environment.SI7021Settings)
	s.logger.Debug("si7021 settings confirmed", "user", s.si7021.UserSettings())
}
