package serial

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnsupportedBaud(t *testing.T) {
	_, err := Open("/dev/null", 1234)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1234")
}

func TestOpenerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Opener("/dev/ttyACM0", 115200)(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenMissingDevice(t *testing.T) {
	port, err := Opener("/dev/pitchside-missing-device", 115200)(context.Background())
	assert.Error(t, err)
	assert.Nil(t, port)
}
