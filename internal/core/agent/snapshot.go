package agent

import (
	"time"

	"github.com/zeusync/pitchside/internal/core/protocol"
	"github.com/zeusync/pitchside/internal/core/world"
)

// Pose is an entity as the telemetry display draws it.
type Pose struct {
	Detected bool    `json:"detected"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Angle    float64 `json:"angle,omitempty"`
	Velocity float64 `json:"velocity,omitempty"`
}

type ControllerView struct {
	Status      protocol.Status `json:"status"`
	Ready       bool            `json:"ready"`
	DryRun      bool            `json:"dry_run"`
	Awaiting    bool            `json:"awaiting"`
	AckTimeouts uint64          `json:"ack_timeouts"`
}

// Snapshot is the per-tick state pushed to telemetry subscribers.
type Snapshot struct {
	Tick       uint64             `json:"tick"`
	Time       time.Time          `json:"time"`
	Tactical   string             `json:"tactical"`
	Strategy   string             `json:"strategy"`
	MicroState string             `json:"micro_state"`
	Controller ControllerView     `json:"controller"`
	Entities   map[world.Key]Pose `json:"entities"`
	History    []Decision         `json:"history,omitempty"`
}

func poses(w *world.World) map[world.Key]Pose {
	out := make(map[world.Key]Pose, len(world.Keys))
	for _, k := range world.Keys {
		var obj *world.PitchObject
		if k == world.KeyBall {
			obj = &w.Ball().PitchObject
		} else {
			r, _ := w.Robot(k)
			obj = &r.PitchObject
		}
		v, ok := obj.Vector()
		if !ok {
			out[k] = Pose{}
			continue
		}
		out[k] = Pose{Detected: true, X: v.X, Y: v.Y, Angle: v.Angle(), Velocity: v.Velocity()}
	}
	return out
}
