package vision

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/world"
	"github.com/zeusync/pitchside/pkg/encoding"
)

const maxDatagram = 4096

// A failing socket is retried no faster than this, doubling up to the cap.
const (
	minReadBackoff = 10 * time.Millisecond
	maxReadBackoff = time.Second
)

type FeedStats struct {
	Received   uint64
	Malformed  uint64
	ReadErrors uint64
}

// Feed listens for observation datagrams and keeps only the newest frame.
type Feed struct {
	conn   net.PacketConn
	logger log.Log

	mu     sync.Mutex
	latest Frame
	fresh  bool
	seq    uint64

	received   atomic.Uint64
	malformed  atomic.Uint64
	readErrors atomic.Uint64

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func Listen(addr string, logger log.Log) (*Feed, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	f := newFeed(conn, logger)
	f.logger.Info("vision feed listening", log.String("addr", conn.LocalAddr().String()))
	return f, nil
}

func newFeed(conn net.PacketConn, logger log.Log) *Feed {
	if logger == nil {
		logger = log.Provide()
	}
	f := &Feed{
		conn:   conn,
		logger: logger.Named("feed"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *Feed) Addr() net.Addr { return f.conn.LocalAddr() }

func (f *Feed) run() {
	defer close(f.done)
	buf := make([]byte, maxDatagram)
	var backoff time.Duration
	for {
		n, _, err := f.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			f.readErrors.Add(1)
			backoff = nextBackoff(backoff)
			if backoff == minReadBackoff {
				f.logger.Warn("feed read failing, backing off", log.Error(err))
			} else {
				f.logger.Debug("feed read failed", log.Error(err), log.Duration("backoff", backoff))
			}
			select {
			case <-f.stop:
				return
			case <-time.After(backoff):
			}
			continue
		}
		if backoff > 0 {
			f.logger.Info("feed read recovered", log.Uint64("errors", f.readErrors.Load()))
			backoff = 0
		}
		frame, err := encoding.Decode[Frame](buf[:n])
		if err != nil {
			f.malformed.Add(1)
			f.logger.Debug("malformed datagram", log.Error(err))
			continue
		}
		f.received.Add(1)
		f.store(frame)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minReadBackoff
	}
	return min(2*d, maxReadBackoff)
}

func (f *Feed) store(frame Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	frame.Seq = f.seq
	frame.Received = time.Now()
	f.latest = frame
	f.fresh = true
}

// Latest returns the newest frame not yet handed out. It never blocks.
func (f *Feed) Latest() (Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fresh {
		return Frame{}, false
	}
	f.fresh = false
	return f.latest, true
}

func (f *Feed) Stats() FeedStats {
	return FeedStats{
		Received:   f.received.Load(),
		Malformed:  f.malformed.Load(),
		ReadErrors: f.readErrors.Load(),
	}
}

func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.stop)
		err = f.conn.Close()
		<-f.done
	})
	return errors.Wrap(err, "close feed")
}

// FrameSource is anything that hands out frames without blocking.
type FrameSource interface {
	Latest() (Frame, bool)
}

// Pipeline pairs a frame source with a locator. Next is the control loop's
// view of the camera.
type Pipeline struct {
	frames  FrameSource
	locator *Locator
}

func NewPipeline(frames FrameSource, locator *Locator) *Pipeline {
	return &Pipeline{frames: frames, locator: locator}
}

// Next reports false when no new frame has arrived since the last call.
func (p *Pipeline) Next(ctx context.Context) (world.Observations, bool, error) {
	frame, ok := p.frames.Latest()
	if !ok {
		return nil, false, nil
	}
	obs, err := p.locator.Locate(ctx, frame)
	if err != nil {
		return nil, false, err
	}
	return obs, true, nil
}
