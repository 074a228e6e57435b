package protocol

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/zeusync/pitchside/internal/core/observability/log"
)

// maxFrame bounds a single reply line.
const maxFrame = 256

// Reply pairs a command with the acknowledgment it produced.
type Reply struct {
	Command Command
	Status  Status
	Err     error
}

// LinkStats are monotonic counters for telemetry.
type LinkStats struct {
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
}

// Link is the transport worker. One goroutine owns the port; commands and
// replies cross two single-slot channels. Send and Poll never block.
type Link struct {
	port   io.ReadWriteCloser
	logger log.Log

	commands chan Command
	replies  chan Reply
	done     chan struct{}
	exited   chan struct{}

	closeOnce sync.Once
	closeErr  error

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// NewLink takes ownership of port and starts the worker.
func NewLink(port io.ReadWriteCloser, logger log.Log) *Link {
	if logger == nil {
		logger = log.Provide()
	}
	l := &Link{
		port:     port,
		logger:   logger.Named("link"),
		commands: make(chan Command, 1),
		replies:  make(chan Reply, 1),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Send hands cmd to the worker. It fails with ErrLinkBusy while the worker
// has not yet picked up the previous command.
func (l *Link) Send(cmd Command) error {
	select {
	case <-l.exited:
		return ErrLinkClosed
	default:
	}
	select {
	case l.commands <- cmd:
		l.sent.Add(1)
		return nil
	default:
		return ErrLinkBusy
	}
}

// Poll returns the next reply if one has arrived.
func (l *Link) Poll() (Reply, bool) {
	select {
	case r := <-l.replies:
		return r, true
	default:
		return Reply{}, false
	}
}

// Alive reports whether the worker is still running.
func (l *Link) Alive() bool {
	select {
	case <-l.exited:
		return false
	default:
		return true
	}
}

func (l *Link) Stats() LinkStats {
	return LinkStats{
		Sent:     l.sent.Load(),
		Received: l.received.Load(),
		Dropped:  l.dropped.Load(),
		Failed:   l.failed.Load(),
	}
}

// Close stops the worker and releases the port. Safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		if err := l.port.Close(); err != nil {
			l.closeErr = errors.Wrap(err, "close port")
		}
		<-l.exited
	})
	return l.closeErr
}

func (l *Link) run() {
	defer close(l.exited)

	scanner := bufio.NewScanner(l.port)
	scanner.Buffer(make([]byte, 0, 64), maxFrame)

	for {
		select {
		case <-l.done:
			return
		case cmd := <-l.commands:
			reply, broken := l.exchange(scanner, cmd)
			l.post(reply)
			if broken {
				select {
				case <-l.done:
				default:
					l.logger.Error("link worker stopped", log.String("command", cmd.String()), log.Error(reply.Err))
				}
				return
			}
		}
	}
}

// exchange writes one command and reads one reply line. broken means the
// port can no longer be used.
func (l *Link) exchange(scanner *bufio.Scanner, cmd Command) (Reply, bool) {
	reply := Reply{Command: cmd}
	if _, err := l.port.Write(cmd.Encode()); err != nil {
		l.failed.Add(1)
		reply.Err = errors.Wrapf(err, "write %s", cmd.Op)
		return reply, true
	}
	if !scanner.Scan() {
		l.failed.Add(1)
		err := scanner.Err()
		switch {
		case err == nil:
			err = io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			err = ErrFrameTooLong
		}
		reply.Err = errors.Wrap(err, "read status")
		return reply, true
	}
	l.received.Add(1)
	reply.Status, reply.Err = ParseStatus(scanner.Text())
	if reply.Err != nil {
		l.failed.Add(1)
		l.logger.Warn("discarding malformed reply", log.String("command", cmd.String()), log.Error(reply.Err))
	}
	return reply, false
}

// post keeps only the newest reply in the slot.
func (l *Link) post(r Reply) {
	for {
		select {
		case l.replies <- r:
			return
		default:
		}
		select {
		case stale := <-l.replies:
			l.dropped.Add(1)
			l.logger.Debug("dropping unread reply", log.String("command", stale.Command.String()))
		default:
		}
	}
}
