package world

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/pitchside/internal/core/observability/log"
)

const testCalibration = `
pitches:
  - index: 0
    outline: [[0, 0], [600, 0], [600, 400], [0, 400]]
    zones:
      - [[0, 0], [150, 0], [150, 400], [0, 400]]
      - [[150, 0], [300, 0], [300, 400], [150, 400]]
      - [[300, 0], [450, 0], [450, 400], [300, 400]]
      - [[450, 0], [600, 0], [600, 400], [450, 400]]
  - index: 1
    outline: [[0, 0], [500, 0], [500, 300], [0, 300]]
    zones:
      - [[0, 0], [125, 0], [125, 300], [0, 300]]
      - [[125, 0], [250, 0], [250, 300], [125, 300]]
      - [[250, 0], [375, 0], [375, 300], [250, 300]]
      - [[375, 0], [500, 0], [500, 300], [375, 300]]
`

func testCal(t *testing.T) *Calibration {
	t.Helper()
	cal, err := DecodeCalibration(strings.NewReader(testCalibration))
	require.NoError(t, err)
	return cal
}

func newTestWorld(t *testing.T, side string) (*World, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	w, err := NewWorld(side, 0, testCal(t), [ZoneCount]float64{}, log.NewWithCore(core))
	require.NoError(t, err)
	return w, logs
}

func TestNewWorldValidatesSideAndPitch(t *testing.T) {
	cal := testCal(t)

	_, err := NewWorld("centre", 0, cal, [ZoneCount]float64{}, log.NewNop())
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, err = NewWorld("left", 2, cal, [ZoneCount]float64{}, log.NewNop())
	assert.ErrorIs(t, err, ErrUnknownPitch)

	w, err := NewWorld("right", 1, cal, [ZoneCount]float64{}, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SideRight, w.Side())
	assert.Equal(t, 500.0, w.Pitch().Width())
	assert.Equal(t, 300.0, w.Pitch().Height())
}

func TestRoleAccessorsFollowSide(t *testing.T) {
	left, _ := newTestWorld(t, "left")
	assert.Equal(t, 0, left.OurDefender().Zone())
	assert.Equal(t, 1, left.TheirAttacker().Zone())
	assert.Equal(t, 2, left.OurAttacker().Zone())
	assert.Equal(t, 3, left.TheirDefender().Zone())
	assert.Equal(t, 0, left.OurGoal().Zone())
	assert.Equal(t, 3, left.TheirGoal().Zone())

	right, _ := newTestWorld(t, "right")
	assert.Equal(t, 3, right.OurDefender().Zone())
	assert.Equal(t, 2, right.TheirAttacker().Zone())
	assert.Equal(t, 1, right.OurAttacker().Zone())
	assert.Equal(t, 0, right.TheirDefender().Zone())
	assert.Equal(t, 3, right.OurGoal().Zone())
	assert.Equal(t, 0, right.TheirGoal().Zone())
}

func fullObservations(ourDef, theirAtt, ourAtt, theirDef float64) Observations {
	return Observations{
		KeyOurDefender:   Observe(ourDef, 200, 0, 0),
		KeyTheirAttacker: Observe(theirAtt, 200, math.Pi, 0),
		KeyOurAttacker:   Observe(ourAtt, 200, 0, 0),
		KeyTheirDefender: Observe(theirDef, 200, math.Pi, 0),
		KeyBall:          Observe(320, 180, 0, 0),
	}
}

func TestSideOrderingWarning(t *testing.T) {
	w, logs := newTestWorld(t, "left")

	report, err := w.UpdatePositions(fullObservations(10, 20, 30, 40))
	require.NoError(t, err)
	assert.True(t, report.SideConsistent)
	assert.Zero(t, logs.FilterMessage("robot ordering inconsistent with side").Len())

	xs := []float64{10, 20, 30, 40}
	for i := 0; i < len(xs); i++ {
		for j := i + 1; j < len(xs); j++ {
			swapped := append([]float64(nil), xs...)
			swapped[i], swapped[j] = swapped[j], swapped[i]
			report, err := w.UpdatePositions(fullObservations(swapped[0], swapped[1], swapped[2], swapped[3]))
			require.NoError(t, err, "warning is never an error")
			assert.False(t, report.SideConsistent, "swap %d<->%d", i, j)
		}
	}
	assert.Equal(t, 6, logs.FilterMessage("robot ordering inconsistent with side").Len())
	assert.Equal(t, uint64(6), w.SideWarnings())
}

func TestSideOrderingRightSide(t *testing.T) {
	w, _ := newTestWorld(t, "right")
	report, err := w.UpdatePositions(fullObservations(40, 30, 20, 10))
	require.NoError(t, err)
	assert.True(t, report.SideConsistent)

	report, err = w.UpdatePositions(fullObservations(10, 20, 30, 40))
	require.NoError(t, err)
	assert.False(t, report.SideConsistent)
}

func TestUpdatePositionsIsAllOrNothing(t *testing.T) {
	w, _ := newTestWorld(t, "left")
	_, err := w.UpdatePositions(fullObservations(10, 200, 350, 500))
	require.NoError(t, err)

	bad := fullObservations(20, 210, 360, 510)
	bad[KeyTheirDefender] = Observe(510, 200, TwoPi, 0)
	_, err = w.UpdatePositions(bad)
	require.ErrorIs(t, err, ErrAngleOutOfRange)

	pos, ok := w.OurDefender().Position()
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.X, "earlier keys must not be applied")

	bad[KeyTheirDefender] = Observe(510, 200, 0, -1)
	_, err = w.UpdatePositions(bad)
	assert.ErrorIs(t, err, ErrNegativeVelocity)

	_, err = w.UpdatePositions(Observations{"referee": Observe(1, 1, 0, 0)})
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestUpdatePositionsMarksMissingAsUndetected(t *testing.T) {
	w, _ := newTestWorld(t, "left")
	_, err := w.UpdatePositions(fullObservations(10, 200, 350, 500))
	require.NoError(t, err)

	obs := fullObservations(10, 200, 350, 500)
	obs[KeyBall] = Observation{X: obs[KeyBall].X}
	delete(obs, KeyTheirAttacker)

	report, err := w.UpdatePositions(obs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Key{KeyBall, KeyTheirAttacker}, report.Undetected)
	assert.False(t, w.Ball().Detected())
	assert.False(t, w.TheirAttacker().Detected())
	assert.True(t, report.SideConsistent)
	assert.False(t, w.BallInPlay())
}

func TestBallQueries(t *testing.T) {
	w, _ := newTestWorld(t, "left")
	obs := fullObservations(75, 225, 375, 525)
	obs[KeyBall] = Observe(400, 200, 0, 0)
	_, err := w.UpdatePositions(obs)
	require.NoError(t, err)

	assert.True(t, w.BallInPlay())
	assert.True(t, w.BallInArea(w.OurAttacker()))
	assert.False(t, w.BallInArea(w.OurDefender(), w.TheirAttacker()))
	assert.False(t, w.BallAtWall(10))
	assert.True(t, w.BallTooClose(w.OurAttacker(), 30))
	assert.False(t, w.BallTooClose(w.OurAttacker(), 20))

	obs[KeyBall] = Observe(596, 200, 0, 0)
	_, err = w.UpdatePositions(obs)
	require.NoError(t, err)
	assert.True(t, w.BallAtWall(10))

	obs[KeyBall] = Observe(700, 200, 0, 0)
	_, err = w.UpdatePositions(obs)
	require.NoError(t, err)
	assert.False(t, w.BallInPlay())
}

func TestCanCatchBallFailsClosedUntilConfigured(t *testing.T) {
	w, _ := newTestWorld(t, "left")
	obs := fullObservations(75, 225, 375, 525)
	// Attacker faces +x; its front edge sits at x=400.
	obs[KeyBall] = Observe(410, 200, 0, 0)
	_, err := w.UpdatePositions(obs)
	require.NoError(t, err)

	assert.False(t, w.CanCatchBall(w.OurAttacker()))

	require.NoError(t, w.OurAttacker().SetCatcherArea(30, 20))
	assert.True(t, w.CanCatchBall(w.OurAttacker()))

	obs[KeyBall] = Observe(440, 200, 0, 0)
	_, err = w.UpdatePositions(obs)
	require.NoError(t, err)
	assert.False(t, w.CanCatchBall(w.OurAttacker()), "catcher area follows the new pose")

	obs[KeyOurAttacker] = Observation{}
	_, err = w.UpdatePositions(obs)
	require.NoError(t, err)
	_, ok := w.OurAttacker().CatcherArea()
	assert.False(t, ok)
}

func TestCalibrationFingerprintChangesWithGeometry(t *testing.T) {
	a := testCal(t)
	b := testCal(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Pitches[0].Outline[0] = [2]int{1, 0}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
