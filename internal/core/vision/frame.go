// Package vision turns camera observation frames into per-entity readings.
// A Feed receives frames over UDP, a Locator fans each frame out to one
// Tracker per entity and joins the results.
package vision

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/zeusync/pitchside/internal/core/world"
)

var (
	ErrTrackerSet = errors.New("trackers must cover each entity exactly once")
	ErrNoTracker  = errors.New("no tracker for entity")
)

// Frame is one camera frame's worth of raw detections.
type Frame struct {
	Seq          uint64
	Received     time.Time
	Observations world.Observations
}

// Serialize writes the detections in the datagram format.
func (f *Frame) Serialize() ([]byte, error) {
	return json.Marshal(f.Observations)
}

// Deserialize reads a datagram. Null fields and missing entities are kept as
// undetected.
func (f *Frame) Deserialize(b []byte) error {
	obs := world.Observations{}
	if err := json.Unmarshal(b, &obs); err != nil {
		return err
	}
	f.Observations = obs
	return nil
}

// Clone deep-copies the frame so workers never share the pointers inside.
func (f Frame) Clone() Frame {
	out := Frame{Seq: f.Seq, Received: f.Received, Observations: make(world.Observations, len(f.Observations))}
	for k, o := range f.Observations {
		out.Observations[k] = world.Observation{
			X:        clonePtr(o.X),
			Y:        clonePtr(o.Y),
			Angle:    clonePtr(o.Angle),
			Velocity: clonePtr(o.Velocity),
		}
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
