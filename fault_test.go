package sensorcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "i2c", "unreachable %d", 1) })

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		Assert(false, "sleep", "level %d out of range", 7)
	}()
	require.IsType(t, &Fault{}, recovered)
	fault := recovered.(*Fault)
	assert.Equal(t, "sleep", fault.Component)
	assert.Equal(t, "level 7 out of range", fault.Message)
	assert.EqualError(t, fault, "sleep: assertion failed: level 7 out of range")

	var target *Fault
	assert.True(t, errors.As(error(fault), &target))
}
