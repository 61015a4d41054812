package i2c_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/i2c"
)

func TestGenericBus_Transfers(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x70, W: []byte{0x35, 0x17}},
			{Addr: 0x70, R: []byte{0x5F, 0x15, 0x49}},
		},
		DontPanic: true,
	}
	bus := i2c.NewBusFrom(playback)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x70, []byte{0x35, 0x17}))
	buf := make([]byte, 3)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x70, buf))
	assert.Equal(t, []byte{0x5F, 0x15, 0x49}, buf)
	require.NoError(t, bus.Release(ctx))
	assert.Equal(t, "playback", bus.String())
	require.NoError(t, bus.Close())
}

func TestGenericBus_WrapsErrors(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := i2c.NewBusFrom(playback)

	err := bus.WriteToAddr(context.Background(), 0x40, []byte{0xE6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not write to 0x40 on playback")

	err = bus.ReadFromAddr(context.Background(), 0x40, make([]byte, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read from 0x40 on playback")
}

func TestGenericBus_CancelledContext(t *testing.T) {
	bus := i2c.NewBusFrom(&i2ctest.Playback{DontPanic: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.WriteToAddr(ctx, 0x40, []byte{0xE6})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenericBus_SetSpeed(t *testing.T) {
	bus := i2c.NewBusFrom(&i2ctest.Playback{DontPanic: true})
	require.NoError(t, bus.SetSpeed(100*physic.KiloHertz))
	assert.Error(t, bus.SetSpeed(0))
}
