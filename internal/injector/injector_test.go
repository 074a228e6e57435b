package injector

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/pitchside/internal/config"
	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/protocol"
	"github.com/zeusync/pitchside/internal/core/world"
)

const calibration = `
pitches:
  - index: 0
    outline: [[0, 0], [600, 0], [600, 400], [0, 400]]
    zones:
      - [[0, 0], [150, 0], [150, 400], [0, 400]]
      - [[150, 0], [300, 0], [300, 400], [150, 400]]
      - [[300, 0], [450, 0], [450, 400], [300, 400]]
      - [[450, 0], [600, 0], [600, 400], [450, 400]]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(calibration), 0o600))

	cfg := config.Default()
	cfg.Calibration.Path = path
	cfg.Link.Kind = config.LinkNone
	cfg.Vision.Addr = "127.0.0.1:0"
	cfg.Telemetry.Addr = "127.0.0.1:0"
	cfg.Match.TickRate = 100
	cfg.Log.Level = "error"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestProvideOpener(t *testing.T) {
	cfg := config.Default()
	cfg.Link.Kind = config.LinkNone
	assert.Nil(t, ProvideOpener(cfg))

	cfg.Link.Kind = config.LinkSerial
	assert.NotNil(t, ProvideOpener(cfg))

	cfg.Link.Kind = config.LinkQUIC
	cfg.Link.Address = "127.0.0.1:1"
	assert.NotNil(t, ProvideOpener(cfg))
}

func TestTransportFallsBackToDryRun(t *testing.T) {
	cfg := config.Default()
	logger := log.NewNop()
	assert.Nil(t, ProvideDialer(cfg, nil, logger))
	assert.Nil(t, ProvideTransport(context.Background(), nil, logger))

	failing := func(context.Context) (io.ReadWriteCloser, error) { return nil, errors.New("no device") }
	dialer := ProvideDialer(cfg, protocol.OpenFunc(failing), logger)
	require.NotNil(t, dialer)
	assert.Nil(t, ProvideTransport(context.Background(), dialer, logger))
}

func TestRedialGoesThroughBreaker(t *testing.T) {
	cfg := config.Default()
	cfg.Link.RedialInterval = time.Millisecond
	cfg.Link.Breaker = protocol.BreakerSettings{MaxConsecutiveFailures: 2, OpenTimeout: time.Hour}
	logger := log.NewNop()

	var opens atomic.Int32
	failing := func(context.Context) (io.ReadWriteCloser, error) {
		opens.Add(1)
		return nil, errors.New("no device")
	}
	dialer := ProvideDialer(cfg, protocol.OpenFunc(failing), logger)
	ctl := ProvideController(cfg, ProvideTransport(context.Background(), dialer, logger), dialer, ProvideEventBus(logger), logger)
	require.True(t, ctl.DryRun())

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		ctl.Tick()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int32(2), opens.Load(), "an open breaker stops reaching the device")
	assert.Equal(t, "open", dialer.State())
	assert.True(t, ctl.DryRun())
	require.NoError(t, ctl.Shutdown(context.Background()))
}

func TestControllerReconnectsAfterLinkLoss(t *testing.T) {
	cfg := config.Default()
	cfg.Link.RedialInterval = time.Millisecond
	logger := log.NewNop()

	ports := make(chan net.Conn, 2)
	open := func(context.Context) (io.ReadWriteCloser, error) {
		host, device := net.Pipe()
		ports <- device
		return host, nil
	}
	dialer := ProvideDialer(cfg, protocol.OpenFunc(open), logger)
	ctl := ProvideController(cfg, ProvideTransport(context.Background(), dialer, logger), dialer, ProvideEventBus(logger), logger)
	require.False(t, ctl.DryRun())

	// The robot unplugs while a command is outstanding.
	ctl.RequestStatus()
	ctl.Tick()
	require.True(t, ctl.Awaiting())
	first := <-ports
	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		ctl.Tick()
		return ctl.Reconnects() == 1 && !ctl.DryRun()
	}, time.Second, time.Millisecond)

	second := <-ports
	defer second.Close()
	go func() {
		r := bufio.NewReader(second)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			if _, err := second.Write([]byte("001000\n")); err != nil {
				return
			}
		}
	}()

	ctl.RequestStatus()
	require.Eventually(t, func() bool {
		ctl.Tick()
		return ctl.Moving()
	}, time.Second, time.Millisecond)
}

func TestStrategyEnvFollowsRole(t *testing.T) {
	cfg := testConfig(t)
	logger := log.NewNop()
	cal, err := ProvideCalibration(cfg, logger)
	require.NoError(t, err)
	w, err := ProvideWorld(cfg, cal, logger)
	require.NoError(t, err)
	ctl := ProvideController(cfg, nil, nil, ProvideEventBus(logger), logger)

	env := ProvideStrategyEnv(cfg, w, ctl, logger)
	assert.Same(t, w.OurAttacker(), env.Self)
	assert.Same(t, w.OurDefender(), env.Teammate)

	cfg.Match.Role = config.RoleDefender
	env = ProvideStrategyEnv(cfg, w, ctl, logger)
	assert.Same(t, w.OurDefender(), env.Self)
	assert.Same(t, w.OurAttacker(), env.Teammate)

	cfg.Match.Profile = "keeper"
	_, err = ProvidePlanner(cfg, env, logger)
	assert.Error(t, err)
}

func TestInitializeAppRunsDry(t *testing.T) {
	cfg := testConfig(t)
	app, cleanup, err := InitializeApp(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, app.Run(ctx))

	// No camera frames arrived, so the planner never left NO_BALL.
	assert.Zero(t, app.Agent.History().Len())
	assert.Zero(t, app.Telemetry.Clients())
}

func TestInitializeAppRejectsMissingCalibration(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibration.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err := InitializeApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCalibrationFingerprintLogged(t *testing.T) {
	cfg := testConfig(t)
	cal, err := ProvideCalibration(cfg, log.NewNop())
	require.NoError(t, err)
	w, err := ProvideWorld(cfg, cal, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, world.SideLeft, w.Side())
	assert.NotZero(t, cal.Fingerprint())
}
