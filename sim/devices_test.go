package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0xF7), checksum(0xFF, []byte("123456789")...))
	assert.Equal(t, byte(0xA2), checksum(0x00, []byte("123456789")...))
	// SHTC3 datasheet example
	assert.Equal(t, byte(0x92), checksum(0xFF, 0xBE, 0xEF))
	// AGS02MA configuration frame
	assert.Equal(t, byte(0x30), checksum(0xFF, 0x00, 0xFF, 0x00, 0xFF))
}

// transfer plays one register read against a device.
func transfer(t *testing.T, d Device, reg byte, n int) []byte {
	t.Helper()
	require.True(t, d.Start(false))
	require.True(t, d.Write(reg))
	require.True(t, d.Start(true))
	out := make([]byte, n)
	for i := range out {
		out[i] = d.Read()
	}
	d.Stop()
	return out
}

func TestAGS02MA_TVOC(t *testing.T) {
	d := NewAGS02MA(420)
	assert.EqualValues(t, 0x1A, d.Address())

	got := transfer(t, d, 0x00, 5)
	assert.Equal(t, []byte{0x01, 0x00, 0x01, 0xA4, checksum(0xFF, 0x01, 0x00, 0x01, 0xA4)}, got)

	d.Warm()
	d.SetTVOC(0x0102)
	got = transfer(t, d, 0x00, 5)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x02}, got[:4])
	assert.Equal(t, checksum(0xFF, got[:4]...), got[4])
}

func TestAGS02MA_VersionAndResistance(t *testing.T) {
	d := NewAGS02MA(0)
	assert.Equal(t, byte(0x76), transfer(t, d, 0x11, 5)[3])
	assert.Equal(t, []byte{0x00, 0x00, 0x09, 0xC4}, transfer(t, d, 0x20, 5)[:4])

	require.True(t, d.Start(false))
	require.True(t, d.Write(0x42))
	assert.False(t, d.Start(true), "unknown register")
	d.Stop()
}

func TestAGS02MA_WriteFrames(t *testing.T) {
	write := func(d *AGS02MA, frame ...byte) {
		require.True(t, d.Start(false))
		for _, b := range frame {
			d.Write(b)
		}
		d.Stop()
	}
	d := NewAGS02MA(0)
	write(d, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x31)
	assert.False(t, d.Configured(), "bad crc")
	write(d, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x30)
	assert.True(t, d.Configured())

	assert.False(t, d.Calibrated())
	write(d, 0x01, 0x00, 0x0C, 0xFF, 0xF3, 0xFC)
	assert.True(t, d.Calibrated())

	require.True(t, d.Start(false))
	for range 6 {
		require.True(t, d.Write(0))
	}
	assert.False(t, d.Write(0), "frame longer than six bytes")
}

func TestMCP23017_Registers(t *testing.T) {
	d := NewMCP23017(0)
	assert.EqualValues(t, 0x21, d.Address())
	assert.Equal(t, byte(0xFF), d.Direction(0))
	assert.Equal(t, byte(0xFF), d.Direction(1))

	// IODIRA then IODIRB through the sequential pointer
	require.True(t, d.Start(false))
	require.True(t, d.Write(0x00))
	require.True(t, d.Write(0x0F))
	require.True(t, d.Write(0xFE))
	d.Stop()
	assert.Equal(t, byte(0x0F), d.Direction(0))
	assert.Equal(t, byte(0xFE), d.Direction(1))

	// a GPIO write lands in OLAT
	require.True(t, d.Start(false))
	require.True(t, d.Write(0x12))
	require.True(t, d.Write(0xFF))
	d.Stop()
	assert.Equal(t, byte(0xF0), d.Outputs(0))

	d.SetInputs(0, 0x05)
	assert.Equal(t, []byte{0xF5}, transfer(t, d, 0x12, 1))

	require.True(t, d.Start(false))
	require.True(t, d.Write(0x0C))
	require.True(t, d.Write(0x03))
	d.Stop()
	assert.Equal(t, byte(0x03), d.PullUps(0))

	require.True(t, d.Start(false))
	assert.False(t, d.Write(0x16), "register out of range")
}
