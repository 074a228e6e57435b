// Package serial opens the robot's USB serial device as a raw tty.
package serial

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/zeusync/pitchside/internal/core/protocol"
)

// DefaultPollInterval is how often a blocked Read checks for Close.
const DefaultPollInterval = 100 * time.Millisecond

var bauds = []int{9600, 19200, 38400, 57600, 115200}

// SupportedBaud reports whether Open accepts baud on Linux.
func SupportedBaud(baud int) bool { return slices.Contains(bauds, baud) }

// Opener adapts Open to a protocol.OpenFunc.
func Opener(device string, baud int) protocol.OpenFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		port, err := Open(device, baud)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}
