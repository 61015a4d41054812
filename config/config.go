// Package config loads the board description used by the sensors CLI: bus
// clocking, sensor placement, sampling and the simulator knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/accel"
	"github.com/mklimuk/sensorcore/air"
	"github.com/mklimuk/sensorcore/environment"
	"github.com/mklimuk/sensorcore/gpio"
	"github.com/mklimuk/sensorcore/i2c"
)

var ErrInvalid = errors.New("invalid board configuration")

// Board is the root of the YAML document.
type Board struct {
	Buses    Buses    `yaml:"buses"`
	Sensors  Sensors  `yaml:"sensors"`
	Sampling Sampling `yaml:"sampling"`
	Sim      Sim      `yaml:"sim"`
	Bridge   Bridge   `yaml:"bridge"`
}

type Buses struct {
	I2C0 Bus `yaml:"i2c0"`
	I2C1 Bus `yaml:"i2c1"`
}

// Bus is the peripheral setup. Frequency uses periph notation ("100kHz").
type Bus struct {
	Frequency string `yaml:"frequency"`
	Ratio     string `yaml:"ratio"`
	SCLRoute  uint8  `yaml:"scl_route"`
	SDARoute  uint8  `yaml:"sda_route"`
}

type Sensors struct {
	SI7021    Sensor    `yaml:"si7021"`
	SHTC3     Sensor    `yaml:"shtc3"`
	TC74      Sensor    `yaml:"tc74"`
	AGS02MA   Sensor    `yaml:"ags02ma"`
	BMA220    Sensor    `yaml:"bma220"`
	Indicator Indicator `yaml:"indicator"`
}

// Sensor places a device on one of the buses.
type Sensor struct {
	Bus      string `yaml:"bus"`
	Address  uint8  `yaml:"address"`
	Disabled bool   `yaml:"disabled"`
}

// Indicator is the humidity LED on an MCP23017 pin.
type Indicator struct {
	Sensor `yaml:",inline"`
	Port   string `yaml:"port"`
	Pin    uint8  `yaml:"pin"`
}

type Sampling struct {
	Period            time.Duration `yaml:"period"`
	HumidityThreshold float32       `yaml:"humidity_threshold"`
}

// Sim drives the host simulation of the controllers.
type Sim struct {
	Latency     time.Duration `yaml:"latency"`
	SHTC3Polls  int           `yaml:"shtc3_polls"`
	Temperature float64       `yaml:"temperature"`
	Humidity    float64       `yaml:"humidity"`
	TVOC        uint          `yaml:"tvoc"`
}

// Bridge selects the host adapter real sensors are reached through.
type Bridge struct {
	Backend   string        `yaml:"backend"`
	Device    string        `yaml:"device"`
	GobotBus  int           `yaml:"gobot_bus"`
	ReadLen   int           `yaml:"read_len"`
	Timeout   time.Duration `yaml:"timeout"`
	Confirmed bool          `yaml:"confirmed"`
}

const (
	BackendPeriph  = "periph"
	BackendMCP2221 = "mcp2221"
	BackendGobot   = "gobot"
)

// Default mirrors the reference board: SI7021 on I2C0, SHTC3 on I2C1, both at
// 100kHz, sampled every second.
func Default() *Board {
	return &Board{
		Buses: Buses{
			I2C0: Bus{Frequency: "100kHz", Ratio: "4:4"},
			I2C1: Bus{Frequency: "100kHz", Ratio: "4:4"},
		},
		Sensors: Sensors{
			SI7021:  Sensor{Bus: i2c.BusA.String(), Address: 0x40},
			SHTC3:   Sensor{Bus: i2c.BusB.String(), Address: 0x70},
			TC74:    Sensor{Bus: i2c.BusA.String(), Address: 0x4D, Disabled: true},
			AGS02MA: Sensor{Bus: i2c.BusB.String(), Address: air.DefaultAddress, Disabled: true},
			BMA220:  Sensor{Bus: i2c.BusB.String(), Address: accel.DefaultAddress, Disabled: true},
			Indicator: Indicator{
				Sensor: Sensor{Bus: i2c.BusA.String(), Address: gpio.DefaultMCP23017Address, Disabled: true},
				Port:   "A",
			},
		},
		Sampling: Sampling{
			Period:            time.Second,
			HumidityThreshold: 30,
		},
		Sim: Sim{
			SHTC3Polls:  2,
			Temperature: 21,
			Humidity:    45,
			TVOC:        150,
		},
		Bridge: Bridge{
			Backend: BackendPeriph,
			ReadLen: 9,
			Timeout: time.Second,
		},
	}
}

// Load reads a YAML board file. Missing fields keep their defaults.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Board, error) {
	b := Default()
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("parse board config: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks every field that would otherwise trip a fatal assertion
// deeper in the stack.
func (b *Board) Validate() error {
	var errs []error
	for name, bus := range map[string]Bus{"i2c0": b.Buses.I2C0, "i2c1": b.Buses.I2C1} {
		if _, err := bus.Config(); err != nil {
			errs = append(errs, fmt.Errorf("buses.%s: %w", name, err))
		}
	}
	for name, s := range map[string]Sensor{
		"si7021":    b.Sensors.SI7021,
		"shtc3":     b.Sensors.SHTC3,
		"tc74":      b.Sensors.TC74,
		"ags02ma":   b.Sensors.AGS02MA,
		"bma220":    b.Sensors.BMA220,
		"indicator": b.Sensors.Indicator.Sensor,
	} {
		if s.Disabled {
			continue
		}
		if _, err := ParseBus(s.Bus); err != nil {
			errs = append(errs, fmt.Errorf("sensors.%s: %w", name, err))
		}
		if s.Address > i2c.MaxAddress {
			errs = append(errs, fmt.Errorf("sensors.%s: address %#x above %#x", name, s.Address, i2c.MaxAddress))
		}
	}
	if !b.Sensors.AGS02MA.Disabled {
		if bus, err := ParseBus(b.Sensors.AGS02MA.Bus); err == nil {
			if cfg, err := b.Buses.Bus(bus).Config(); err == nil && cfg.Frequency > air.MaxFrequency {
				errs = append(errs, fmt.Errorf("sensors.ags02ma: bus %s runs at %s, the sensor needs at most %s", bus, cfg.Frequency, air.MaxFrequency))
			}
		}
	}
	if ind := b.Sensors.Indicator; !ind.Disabled {
		if _, err := ParsePort(ind.Port); err != nil {
			errs = append(errs, fmt.Errorf("sensors.indicator: %w", err))
		}
		if ind.Pin > 7 {
			errs = append(errs, fmt.Errorf("sensors.indicator: pin %d above 7", ind.Pin))
		}
	}
	if b.Sampling.Period <= 0 {
		errs = append(errs, fmt.Errorf("sampling.period must be positive, got %s", b.Sampling.Period))
	}
	if b.Sampling.HumidityThreshold < 0 || b.Sampling.HumidityThreshold > 100 {
		errs = append(errs, fmt.Errorf("sampling.humidity_threshold %.1f outside 0..100", b.Sampling.HumidityThreshold))
	}
	if b.Sim.SHTC3Polls < 0 {
		errs = append(errs, fmt.Errorf("sim.shtc3_polls must not be negative"))
	}
	switch b.Bridge.Backend {
	case BackendPeriph, BackendMCP2221, BackendGobot:
	default:
		errs = append(errs, fmt.Errorf("bridge.backend %q unknown", b.Bridge.Backend))
	}
	if b.Bridge.ReadLen < 1 || b.Bridge.ReadLen > i2c.MaxLength+1 {
		errs = append(errs, fmt.Errorf("bridge.read_len %d outside 1..%d", b.Bridge.ReadLen, i2c.MaxLength+1))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Bus returns the setup of one peripheral.
func (b Buses) Bus(bus i2c.Bus) Bus {
	if bus == i2c.BusB {
		return b.I2C1
	}
	return b.I2C0
}

// Config converts the YAML form into the peripheral setup.
func (b Bus) Config() (i2c.Config, error) {
	cfg := i2c.DefaultConfig()
	if b.Frequency != "" {
		if err := cfg.Frequency.Set(b.Frequency); err != nil {
			return cfg, fmt.Errorf("frequency: %w", err)
		}
	}
	if cfg.Frequency <= 0 || cfg.Frequency > physic.MegaHertz {
		return cfg, fmt.Errorf("frequency %s outside (0, 1MHz]", cfg.Frequency)
	}
	switch b.Ratio {
	case "", "4:4":
		cfg.Ratio = i2c.Ratio4to4
	case "6:3":
		cfg.Ratio = i2c.Ratio6to3
	case "11:6":
		cfg.Ratio = i2c.Ratio11to6
	default:
		return cfg, fmt.Errorf("unknown clock ratio %q", b.Ratio)
	}
	cfg.SCLRoute = b.SCLRoute
	cfg.SDARoute = b.SDARoute
	return cfg, nil
}

// ParseBus accepts "I2C0", "i2c1", "A" or "B".
func ParseBus(name string) (i2c.Bus, error) {
	switch strings.ToUpper(name) {
	case "I2C0", "A":
		return i2c.BusA, nil
	case "I2C1", "B":
		return i2c.BusB, nil
	}
	return 0, fmt.Errorf("unknown bus %q", name)
}

// ParsePort accepts "A" or "B".
func ParsePort(name string) (gpio.Port, error) {
	switch strings.ToUpper(name) {
	case "A":
		return gpio.PortA, nil
	case "B":
		return gpio.PortB, nil
	}
	return 0, fmt.Errorf("unknown port %q", name)
}

// Options turns a placement into driver options. Validate must have passed.
func (s Sensor) Options() []environment.Option {
	bus, _ := ParseBus(s.Bus)
	return []environment.Option{environment.WithBus(bus), environment.WithAddress(s.Address)}
}
