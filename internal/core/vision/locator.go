package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/world"
	"github.com/zeusync/pitchside/pkg/concurrent"
)

// DefaultFrameTimeout bounds how long one frame may take to locate.
const DefaultFrameTimeout = 50 * time.Millisecond

// Tracker finds one entity in a frame. Implementations get their own copy of
// the frame and must not keep state between calls.
type Tracker interface {
	Key() world.Key
	Track(ctx context.Context, frame Frame) (world.Observation, error)
}

// EntityTracker reads its entity's detection straight from the frame. A
// missing entry means the entity was not seen.
type EntityTracker struct {
	key world.Key
}

func NewEntityTracker(key world.Key) EntityTracker { return EntityTracker{key: key} }

func (t EntityTracker) Key() world.Key { return t.key }

func (t EntityTracker) Track(ctx context.Context, frame Frame) (world.Observation, error) {
	if err := ctx.Err(); err != nil {
		return world.Observation{}, err
	}
	return frame.Observations[t.key], nil
}

// DefaultTrackers returns one EntityTracker per tracked entity.
func DefaultTrackers() []Tracker {
	out := make([]Tracker, 0, len(world.Keys))
	for _, k := range world.Keys {
		out = append(out, NewEntityTracker(k))
	}
	return out
}

type Locator struct {
	trackers []Tracker
	timeout  time.Duration
	logger   log.Log
}

// NewLocator requires exactly one tracker per entity.
func NewLocator(trackers []Tracker, timeout time.Duration, logger log.Log) (*Locator, error) {
	if len(trackers) != len(world.Keys) {
		return nil, fmt.Errorf("%d trackers: %w", len(trackers), ErrTrackerSet)
	}
	seen := make(map[world.Key]bool, len(trackers))
	for _, t := range trackers {
		if seen[t.Key()] {
			return nil, fmt.Errorf("%s twice: %w", t.Key(), ErrTrackerSet)
		}
		seen[t.Key()] = true
	}
	for _, k := range world.Keys {
		if !seen[k] {
			return nil, fmt.Errorf("%s: %w", k, ErrNoTracker)
		}
	}
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Locator{trackers: trackers, timeout: timeout, logger: logger.Named("vision")}, nil
}

// Locate runs every tracker on its own copy of the frame and returns all five
// readings, or an error and nothing if any tracker fails or the frame
// deadline passes.
func (l *Locator) Locate(ctx context.Context, frame Frame) (world.Observations, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	readings, err := concurrent.FanIn(ctx, l.trackers, func(ctx context.Context, t Tracker) (world.Observation, error) {
		obs, err := t.Track(ctx, frame.Clone())
		if err != nil {
			return world.Observation{}, fmt.Errorf("%s: %w", t.Key(), err)
		}
		return obs, nil
	})
	if err != nil {
		l.logger.Warn("frame dropped", log.Uint64("seq", frame.Seq), log.Error(err))
		return nil, err
	}

	out := make(world.Observations, len(readings))
	for i, t := range l.trackers {
		out[t.Key()] = readings[i]
	}
	return out, nil
}
