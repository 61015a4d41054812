package sim

import (
	"context"
	"sync"

	"github.com/sigurn/crc8"
	"periph.io/x/conn/v3/physic"
)

// Behavior produces the conditions a simulated sensor measures. An error
// makes the sensor NACK its read address, as a sensor that never finishes
// converting would.
type Behavior func(ctx context.Context) (physic.Env, error)

// Constant always reports env.
func Constant(env physic.Env) Behavior {
	return func(ctx context.Context) (physic.Env, error) {
		return env, nil
	}
}

// Celsius builds an environment from plain units.
func Celsius(celsius, percentRH float64) physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(celsius*float64(physic.Celsius)),
		Humidity:    physic.RelativeHumidity(percentRH * float64(physic.PercentRH)),
	}
}

// Sequence reports each env in turn and then repeats the last one.
func Sequence(envs ...physic.Env) Behavior {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context) (physic.Env, error) {
		mu.Lock()
		defer mu.Unlock()
		env := envs[i]
		if i < len(envs)-1 {
			i++
		}
		return env, nil
	}
}

// Variable is a behavior whose value the caller changes at run time.
type Variable struct {
	mu  sync.Mutex
	env physic.Env
	err error
}

func NewVariable(env physic.Env) *Variable {
	return &Variable{env: env}
}

func (v *Variable) Set(env physic.Env) {
	v.mu.Lock()
	v.env = env
	v.mu.Unlock()
}

// Fail makes the next measurements fail with err until it is reset with nil.
func (v *Variable) Fail(err error) {
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
}

func (v *Variable) Behavior() Behavior {
	return func(ctx context.Context) (physic.Env, error) {
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.env, v.err
	}
}

func percentOf(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}

// Checksums appended by the simulated devices. Both use polynomial 0x31;
// Silicon Labs starts from zero, Sensirion and Aosong from 0xFF.
var (
	crcSiliconLabs = crc8.MakeTable(crc8.Params{Poly: 0x31, Init: 0x00, Check: 0xA2, Name: "CRC-8/SI70XX"})
	crcSensirion   = crc8.MakeTable(crc8.Params{Poly: 0x31, Init: 0xFF, Check: 0xF7, Name: "CRC-8/NRSC-5"})
)

func checksum(init byte, data ...byte) byte {
	if init == 0xFF {
		return crc8.Checksum(data, crcSensirion)
	}
	return crc8.Checksum(data, crcSiliconLabs)
}

func clampRaw(v float64) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xFFFF:
		return 0xFFFF
	}
	return uint16(v)
}
