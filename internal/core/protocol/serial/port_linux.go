//go:build linux

package serial

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// Port is a raw serial device. Reads poll so that Close can interrupt them.
type Port struct {
	device string
	fd     int
	old    *term.State

	readMu sync.Mutex
	stop   chan struct{}
	once   sync.Once
}

// Open configures device as a raw 8N1 line at baud.
func Open(device string, baud int) (*Port, error) {
	speed, ok := baudRates[baud]
	if !ok {
		return nil, errors.Errorf("unsupported baud rate %d", baud)
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", device)
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "raw mode %s", device)
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		_ = term.Restore(fd, old)
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "get termios %s", device)
	}
	tio.Cflag &^= unix.CBAUD | unix.CSTOPB | unix.PARENB | unix.CRTSCTS
	tio.Cflag |= speed | unix.CLOCAL | unix.CREAD | unix.CS8
	tio.Ispeed = speed
	tio.Ospeed = speed
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		_ = term.Restore(fd, old)
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "set termios %s", device)
	}

	return &Port{device: device, fd: fd, old: old, stop: make(chan struct{})}, nil
}

// Read blocks until data arrives or the port is closed, in which case it
// returns io.EOF.
func (p *Port) Read(buf []byte) (int, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-p.stop:
			return 0, io.EOF
		default:
		}

		n, err := unix.Poll(fds, int(DefaultPollInterval.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, errors.Wrapf(err, "poll %s", p.device)
		}
		if n == 0 {
			continue
		}

		rn, err := unix.Read(p.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return 0, errors.Wrapf(err, "read %s", p.device)
		}
		if rn == 0 {
			return 0, io.EOF
		}
		return rn, nil
	}
}

func (p *Port) Write(buf []byte) (int, error) {
	select {
	case <-p.stop:
		return 0, io.ErrClosedPipe
	default:
	}
	written := 0
	for written < len(buf) {
		n, err := unix.Write(p.fd, buf[written:])
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return written, errors.Wrapf(err, "write %s", p.device)
		}
		written += n
	}
	return written, nil
}

// Close restores the line settings and releases the descriptor once any
// pending Read has returned.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		close(p.stop)
		p.readMu.Lock()
		defer p.readMu.Unlock()
		if p.old != nil {
			_ = term.Restore(p.fd, p.old)
		}
		if cerr := unix.Close(p.fd); cerr != nil {
			err = errors.Wrapf(cerr, "close %s", p.device)
		}
	})
	return err
}
