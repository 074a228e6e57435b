//go:build !linux

package serial

import (
	"github.com/pkg/errors"
)

// Port is unavailable off Linux; the controller falls back to dry-run.
type Port struct{}

func Open(device string, baud int) (*Port, error) {
	return nil, errors.Errorf("serial %s at %d baud: not supported on this platform", device, baud)
}

func (p *Port) Read([]byte) (int, error)  { return 0, errors.New("serial: not supported") }
func (p *Port) Write([]byte) (int, error) { return 0, errors.New("serial: not supported") }
func (p *Port) Close() error              { return nil }
