package vision

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/world"
	"github.com/zeusync/pitchside/pkg/encoding"
)

func sampleFrame() Frame {
	return Frame{Seq: 7, Observations: world.Observations{
		world.KeyOurAttacker:   world.Observe(375, 200, 0, 0),
		world.KeyTheirAttacker: world.Observe(225, 380, 3, 0),
		world.KeyOurDefender:   world.Observe(75, 200, 0, 0),
		world.KeyTheirDefender: world.Observe(525, 380, 3, 0),
		world.KeyBall:          world.Observe(320, 180, 0, 1.5),
	}}
}

// scribbler mutates its copy of the frame to prove copies are private.
type scribbler struct {
	EntityTracker
	mu   sync.Mutex
	seen []*float64
}

func (s *scribbler) Track(ctx context.Context, frame Frame) (world.Observation, error) {
	for _, o := range frame.Observations {
		if o.X != nil {
			*o.X = -1
		}
	}
	obs, err := s.EntityTracker.Track(ctx, frame)
	s.mu.Lock()
	s.seen = append(s.seen, obs.X)
	s.mu.Unlock()
	return obs, err
}

type failingTracker struct{ EntityTracker }

func (failingTracker) Track(context.Context, Frame) (world.Observation, error) {
	return world.Observation{}, errors.New("lost")
}

type stuckTracker struct{ EntityTracker }

func (stuckTracker) Track(ctx context.Context, _ Frame) (world.Observation, error) {
	<-ctx.Done()
	return world.Observation{}, ctx.Err()
}

func TestLocatorJoinsAllFive(t *testing.T) {
	l, err := NewLocator(DefaultTrackers(), time.Second, log.NewNop())
	require.NoError(t, err)

	obs, err := l.Locate(context.Background(), sampleFrame())
	require.NoError(t, err)
	require.Len(t, obs, 5)
	assert.Equal(t, 320.0, *obs[world.KeyBall].X)
	assert.Equal(t, 1.5, *obs[world.KeyBall].Velocity)
}

func TestLocatorWorkersGetPrivateCopies(t *testing.T) {
	trackers := DefaultTrackers()
	s := &scribbler{EntityTracker: NewEntityTracker(world.KeyBall)}
	trackers[4] = s
	l, err := NewLocator(trackers, time.Second, log.NewNop())
	require.NoError(t, err)

	frame := sampleFrame()
	obs, err := l.Locate(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, -1.0, *obs[world.KeyBall].X)
	assert.Equal(t, 375.0, *obs[world.KeyOurAttacker].X, "other workers unaffected")
	assert.Equal(t, 320.0, *frame.Observations[world.KeyBall].X, "source frame unaffected")
}

func TestLocatorNoPartialResults(t *testing.T) {
	trackers := DefaultTrackers()
	trackers[2] = failingTracker{NewEntityTracker(trackers[2].Key())}
	l, err := NewLocator(trackers, time.Second, log.NewNop())
	require.NoError(t, err)

	obs, err := l.Locate(context.Background(), sampleFrame())
	assert.Error(t, err)
	assert.Nil(t, obs)
}

func TestLocatorFrameDeadline(t *testing.T) {
	trackers := DefaultTrackers()
	trackers[0] = stuckTracker{NewEntityTracker(trackers[0].Key())}
	l, err := NewLocator(trackers, 20*time.Millisecond, log.NewNop())
	require.NoError(t, err)

	obs, err := l.Locate(context.Background(), sampleFrame())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, obs)
}

func TestLocatorMissingEntityIsUndetected(t *testing.T) {
	l, err := NewLocator(DefaultTrackers(), time.Second, log.NewNop())
	require.NoError(t, err)

	frame := sampleFrame()
	delete(frame.Observations, world.KeyBall)
	obs, err := l.Locate(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, obs[world.KeyBall].Complete())
}

func TestNewLocatorValidatesTrackerSet(t *testing.T) {
	_, err := NewLocator(DefaultTrackers()[:4], 0, log.NewNop())
	assert.ErrorIs(t, err, ErrTrackerSet)

	dup := DefaultTrackers()
	dup[1] = dup[0]
	_, err = NewLocator(dup, 0, log.NewNop())
	assert.ErrorIs(t, err, ErrTrackerSet)
}

func TestFrameDatagramKeepsNulls(t *testing.T) {
	payload := []byte(`{"ball":{"x":10,"y":20,"angle":null,"velocity":0},"our_attacker":null}`)
	frame, err := encoding.Decode[Frame](payload)
	require.NoError(t, err)
	assert.False(t, frame.Observations[world.KeyBall].Complete())
	assert.Nil(t, frame.Observations[world.KeyBall].Angle)
	assert.False(t, frame.Observations[world.KeyOurAttacker].Complete())

	_, err = encoding.Decode[Frame](nil)
	assert.ErrorIs(t, err, encoding.ErrEmptyPayload)
}

func send(t *testing.T, to net.Addr, payload []byte) {
	t.Helper()
	conn, err := net.Dial("udp", to.String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestFeedKeepsNewestFrame(t *testing.T) {
	feed, err := Listen("127.0.0.1:0", log.NewNop())
	require.NoError(t, err)
	defer feed.Close()

	_, ok := feed.Latest()
	assert.False(t, ok)

	send(t, feed.Addr(), []byte("not json"))
	frame := sampleFrame()
	payload, err := frame.Serialize()
	require.NoError(t, err)
	send(t, feed.Addr(), payload)

	require.Eventually(t, func() bool { return feed.Stats().Received == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), feed.Stats().Malformed)

	got, ok := feed.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, 375.0, *got.Observations[world.KeyOurAttacker].X)

	_, ok = feed.Latest()
	assert.False(t, ok, "a frame is handed out once")
}

func TestPipelineNext(t *testing.T) {
	feed, err := Listen("127.0.0.1:0", log.NewNop())
	require.NoError(t, err)
	defer feed.Close()
	l, err := NewLocator(DefaultTrackers(), time.Second, log.NewNop())
	require.NoError(t, err)
	p := NewPipeline(feed, l)

	obs, ok, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, obs)

	frame := sampleFrame()
	payload, err := frame.Serialize()
	require.NoError(t, err)
	send(t, feed.Addr(), payload)
	require.Eventually(t, func() bool { return feed.Stats().Received == 1 }, time.Second, 5*time.Millisecond)

	obs, ok, err = p.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, obs, 5)
}

func TestFeedCloseIsIdempotent(t *testing.T) {
	feed, err := Listen("127.0.0.1:0", log.NewNop())
	require.NoError(t, err)
	assert.NoError(t, feed.Close())
	assert.NoError(t, feed.Close())
}

// brokenConn fails every read until closed.
type brokenConn struct {
	net.PacketConn
	reads  atomic.Int32
	closed atomic.Bool
}

func (c *brokenConn) ReadFrom([]byte) (int, net.Addr, error) {
	if c.closed.Load() {
		return 0, nil, net.ErrClosed
	}
	c.reads.Add(1)
	return 0, nil, errors.New("network is down")
}

func (c *brokenConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *brokenConn) LocalAddr() net.Addr { return &net.UDPAddr{} }

func TestFeedBacksOffOnReadErrors(t *testing.T) {
	conn := &brokenConn{}
	core, logs := observer.New(zapcore.DebugLevel)
	feed := newFeed(conn, log.NewWithCore(core))

	time.Sleep(200 * time.Millisecond)
	reads := conn.reads.Load()
	assert.GreaterOrEqual(t, reads, int32(2))
	assert.Less(t, reads, int32(10), "a dead socket is not spun on")
	assert.Equal(t, uint64(reads), feed.Stats().ReadErrors)
	assert.Equal(t, 1, logs.FilterMessage("feed read failing, backing off").Len())

	start := time.Now()
	require.NoError(t, feed.Close())
	assert.Less(t, time.Since(start), 100*time.Millisecond, "close does not wait out the backoff")
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, minReadBackoff, nextBackoff(0))
	assert.Equal(t, 2*minReadBackoff, nextBackoff(minReadBackoff))
	assert.Equal(t, maxReadBackoff, nextBackoff(maxReadBackoff))
}
