package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/protocol"
)

// Transport is the controller's view of the link worker.
type Transport interface {
	Send(cmd protocol.Command) error
	Poll() (protocol.Reply, bool)
	Alive() bool
	Close() error
}

// Settings are the robot's mechanical constants and protocol timings.
type Settings struct {
	TicksPerCM   float64
	WheelbaseCM  float64
	DefaultPower int

	GrabberTime  time.Duration
	GrabberPower int
	KickTime     time.Duration
	KickPower    int

	AckTimeout   time.Duration
	PollInterval time.Duration

	// MaxAckTimeouts consecutive timeouts mark the link as lost. Zero never
	// gives up on it.
	MaxAckTimeouts int
	// RedialInterval spaces reconnect attempts while the link is down.
	RedialInterval time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		TicksPerCM:   10.8,
		WheelbaseCM:  11.5,
		DefaultPower: 80,
		GrabberTime:  600 * time.Millisecond,
		GrabberPower: 100,
		KickTime:     300 * time.Millisecond,
		KickPower:    100,
		AckTimeout:   750 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,

		MaxAckTimeouts: 3,
		RedialInterval: time.Second,
	}
}

type Option func(*Controller)

// Redial opens a fresh transport after the previous one was lost.
type Redial func(ctx context.Context) (Transport, error)

type dialResult struct {
	transport Transport
	err       error
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithAckTimeoutHook is called each time an acknowledgment is abandoned.
func WithAckTimeoutHook(fn func(cmd protocol.Command, waited time.Duration)) Option {
	return func(c *Controller) { c.onAckTimeout = fn }
}

// WithRedial lets a controller without a transport reconnect on its own.
// Attempts run in the background, at most one per RedialInterval.
func WithRedial(dial Redial) Option {
	return func(c *Controller) { c.redial = dial }
}

// Controller owns the single command slot and the awaiting-ack flag. At most
// one command is ever outstanding on the transport.
type Controller struct {
	settings  Settings
	transport Transport
	logger    log.Log
	now       func() time.Time

	queued   *protocol.Command
	inFlight protocol.Command
	awaiting bool
	sentAt   time.Time
	seq      uint64

	ready  bool
	status protocol.Status
	acks   uint64

	ackTimeouts  uint64
	ackStreak    int
	staleAcks    uint64
	overwrites   uint64
	onAckTimeout func(protocol.Command, time.Duration)

	redial     Redial
	dialing    chan dialResult
	lastDial   time.Time
	reconnects uint64
	dialCtx    context.Context
	stopDial   context.CancelFunc
}

// New builds a controller. A nil transport means dry-run: commands are
// accepted and dropped, no acknowledgment is expected.
func New(settings Settings, transport Transport, logger log.Log, opts ...Option) *Controller {
	if logger == nil {
		logger = log.Provide()
	}
	c := &Controller{
		settings:  settings,
		transport: transport,
		logger:    logger.Named("controller"),
		now:       time.Now,
	}
	c.dialCtx, c.stopDial = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	if c.settings.PollInterval <= 0 {
		c.settings.PollInterval = DefaultSettings().PollInterval
	}
	if c.settings.RedialInterval <= 0 {
		c.settings.RedialInterval = DefaultSettings().RedialInterval
	}
	if transport == nil {
		c.logger.Warn("no transport, running dry")
	}
	return c
}

// Tick advances the protocol by one step. It never blocks.
func (c *Controller) Tick() {
	if c.transport != nil && !c.transport.Alive() {
		c.degrade(protocol.ErrLinkClosed)
	}
	if c.transport == nil {
		c.reconnect()
	}
	switch {
	case c.awaiting:
		c.pollAck()
	case c.queued != nil:
		c.dispatch()
	case c.ready:
		cmd := protocol.RequestStatus()
		c.queued = &cmd
	}
}

func (c *Controller) dispatch() {
	cmd := *c.queued
	if c.DryRun() {
		c.logger.Debug("dry run, dropping command", log.String("command", cmd.String()))
		c.queued = nil
		return
	}

	c.seq++
	cmd.Seq = c.seq
	err := c.transport.Send(cmd)
	switch {
	case err == nil:
		c.queued = nil
		c.inFlight = cmd
		c.awaiting = true
		c.sentAt = c.now()
	case errors.Is(err, protocol.ErrLinkBusy):
		// Worker has not drained the previous slot yet; retry next tick.
	default:
		c.degrade(err)
		c.queued = nil
	}
}

func (c *Controller) pollAck() {
	reply, ok := c.transport.Poll()
	if !ok {
		if !c.transport.Alive() {
			c.awaiting = false
			c.degrade(protocol.ErrLinkClosed)
			return
		}
		c.checkAckTimeout()
		return
	}

	if reply.Command.Seq != c.inFlight.Seq {
		// Answer to a command we already gave up on. The robot reads one
		// line at a time, so ours is still to come.
		c.staleAcks++
		c.logger.Debug("discarding stale acknowledgment",
			log.String("command", reply.Command.String()),
			log.String("awaiting", c.inFlight.String()))
		c.checkAckTimeout()
		return
	}

	c.awaiting = false
	c.ackStreak = 0
	if reply.Err != nil {
		c.logger.Warn("acknowledgment failed",
			log.String("command", reply.Command.String()),
			log.Error(reply.Err))
		if !c.transport.Alive() {
			c.degrade(reply.Err)
		}
		return
	}
	c.status = reply.Status
	c.acks++
}

func (c *Controller) checkAckTimeout() {
	if c.settings.AckTimeout <= 0 {
		return
	}
	waited := c.now().Sub(c.sentAt)
	if waited < c.settings.AckTimeout {
		return
	}
	c.awaiting = false
	c.ackTimeouts++
	c.ackStreak++
	c.logger.Warn("acknowledgment timed out",
		log.String("command", c.inFlight.String()),
		log.Duration("waited", waited),
		log.Uint64("timeouts", c.ackTimeouts))
	if c.onAckTimeout != nil {
		c.onAckTimeout(c.inFlight, waited)
	}
	if limit := c.settings.MaxAckTimeouts; limit > 0 && c.ackStreak >= limit {
		c.degrade(fmt.Errorf("%d in a row: %w", c.ackStreak, ErrAckTimeout))
	}
}

// degrade drops the link and keeps running dry.
func (c *Controller) degrade(reason error) {
	if c.transport == nil {
		return
	}
	c.logger.Error("link lost, continuing without transport", log.Error(reason))
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("closing failed link", log.Error(err))
	}
	c.transport = nil
	c.awaiting = false
	c.ackStreak = 0
}

// reconnect polls a running redial or starts the next one when due.
func (c *Controller) reconnect() {
	if c.redial == nil {
		return
	}
	if c.dialing != nil {
		select {
		case res := <-c.dialing:
			c.dialing = nil
			if res.err != nil {
				c.logger.Debug("redial failed", log.Error(res.err))
				return
			}
			c.transport = res.transport
			c.awaiting = false
			c.reconnects++
			c.logger.Info("link restored", log.Uint64("reconnects", c.reconnects))
		default:
		}
		return
	}
	now := c.now()
	if !c.lastDial.IsZero() && now.Sub(c.lastDial) < c.settings.RedialInterval {
		return
	}
	if c.dialCtx.Err() != nil {
		return
	}
	c.lastDial = now
	results := make(chan dialResult, 1)
	c.dialing = results
	ctx, dial := c.dialCtx, c.redial
	go func() {
		t, err := dial(ctx)
		results <- dialResult{transport: t, err: err}
	}()
}

// Queue places cmd in the slot. A command still waiting to be sent is
// replaced, never sent alongside.
func (c *Controller) Queue(cmd protocol.Command) {
	if c.queued != nil {
		c.overwrites++
		c.logger.Debug("overwriting queued command",
			log.String("dropped", c.queued.String()),
			log.String("command", cmd.String()))
	}
	c.queued = &cmd
}

// Issue validates op and its arguments before queueing.
func (c *Controller) Issue(op protocol.Opcode, args ...string) error {
	cmd, err := protocol.NewCommand(op, args...)
	if err != nil {
		return err
	}
	c.Queue(cmd)
	return nil
}

// Drive moves each wheel by the given distance. Centimetres become encoder
// ticks truncated toward zero so the robot never overshoots.
func (c *Controller) Drive(leftCM, rightCM float64, leftPower, rightPower int) error {
	if !finite(leftCM) || !finite(rightCM) {
		return fmt.Errorf("drive %v/%v: %w", leftCM, rightCM, ErrNotFinite)
	}
	if err := checkPower(leftPower, rightPower); err != nil {
		return err
	}
	c.Queue(protocol.Drive(c.ticks(leftCM), c.ticks(rightCM), leftPower, rightPower))
	return nil
}

// Turn rotates on the spot; positive radians turn counter-clockwise.
func (c *Controller) Turn(radians float64, power int) error {
	if !finite(radians) {
		return fmt.Errorf("turn %v: %w", radians, ErrNotFinite)
	}
	arc := c.settings.WheelbaseCM * radians / 2
	return c.Drive(-arc, arc, power, power)
}

func (c *Controller) Stop() error {
	return c.Drive(0, 0, c.settings.DefaultPower, c.settings.DefaultPower)
}

func (c *Controller) OpenGrabber(d time.Duration, power int) error {
	millis, err := actuation(d, power)
	if err != nil {
		return err
	}
	c.Queue(protocol.OpenGrabber(millis, power))
	return nil
}

func (c *Controller) CloseGrabber(d time.Duration, power int) error {
	millis, err := actuation(d, power)
	if err != nil {
		return err
	}
	c.Queue(protocol.CloseGrabber(millis, power))
	return nil
}

func (c *Controller) Kick(d time.Duration, power int) error {
	millis, err := actuation(d, power)
	if err != nil {
		return err
	}
	c.Queue(protocol.Kick(millis, power))
	return nil
}

func (c *Controller) RequestStatus() {
	c.Queue(protocol.RequestStatus())
}

// Start runs the startup sequence: poll until the grabber is confirmed
// closed, closing it if needed, then mark the controller ready.
func (c *Controller) Start(ctx context.Context) error {
	seq := startup{c: c, baseline: c.acks}
	ticker := time.NewTicker(c.settings.PollInterval)
	defer ticker.Stop()

	for {
		done, err := seq.step()
		if err != nil {
			return fmt.Errorf("startup: %w", err)
		}
		if done {
			c.ready = true
			c.logger.Info("controller ready", log.Bool("dry_run", c.DryRun()))
			return nil
		}
		c.Tick()
		select {
		case <-ctx.Done():
			return fmt.Errorf("startup: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

type startupPhase int

const (
	phaseQuery startupPhase = iota
	phaseClosing
)

// startup is the small machine behind Start.
type startup struct {
	c        *Controller
	phase    startupPhase
	baseline uint64
}

// step queues the next startup command when the slot is idle and reports
// whether startup is complete.
func (s *startup) step() (bool, error) {
	c := s.c
	if c.DryRun() {
		return true, nil
	}
	if c.awaiting || c.queued != nil {
		return false, nil
	}
	if c.acks == s.baseline {
		c.RequestStatus()
		return false, nil
	}
	st := c.status
	switch {
	case !st.GrabberOpen && !st.Grabbing:
		return true, nil
	case st.GrabberOpen && !c.Busy() && s.phase == phaseQuery:
		s.phase = phaseClosing
		if err := c.CloseGrabber(c.settings.GrabberTime, c.settings.GrabberPower); err != nil {
			return false, fmt.Errorf("close grabber: %w", err)
		}
	default:
		// Still moving, or the close finished without effect: look again.
		if !c.Busy() {
			s.phase = phaseQuery
		}
		c.RequestStatus()
	}
	s.baseline = c.acks
	return false, nil
}

// Shutdown stops the wheels, closes the grabber and releases the transport.
// Each step drains the slot before the next one is queued.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.ready = false
	c.logger.Info("shutting down")
	c.stopDial()
	if c.dialing != nil {
		select {
		case res := <-c.dialing:
			if res.transport != nil && c.transport == nil {
				c.transport = res.transport
			} else if res.transport != nil {
				_ = res.transport.Close()
			}
		case <-ctx.Done():
		}
		c.dialing = nil
	}

	var errs []error
	if err := c.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := c.drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	if err := c.CloseGrabber(c.settings.GrabberTime, c.settings.GrabberPower); err != nil {
		errs = append(errs, err)
	}
	if err := c.drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close grabber: %w", err))
	}
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			errs = append(errs, err)
		}
		c.transport = nil
	}
	return errors.Join(errs...)
}

// drain ticks until nothing is queued or outstanding.
func (c *Controller) drain(ctx context.Context) error {
	ticker := time.NewTicker(c.settings.PollInterval)
	defer ticker.Stop()
	for c.awaiting || c.queued != nil {
		c.Tick()
		if !c.awaiting && c.queued == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (c *Controller) ticks(cm float64) int {
	return int(math.Trunc(cm * c.settings.TicksPerCM))
}

func (c *Controller) Settings() Settings      { return c.settings }
func (c *Controller) Status() protocol.Status { return c.status }
func (c *Controller) Ready() bool             { return c.ready }
func (c *Controller) Awaiting() bool          { return c.awaiting }
func (c *Controller) DryRun() bool            { return c.transport == nil }
func (c *Controller) AckTimeouts() uint64     { return c.ackTimeouts }
func (c *Controller) StaleAcks() uint64       { return c.staleAcks }
func (c *Controller) Overwrites() uint64      { return c.overwrites }
func (c *Controller) Reconnects() uint64      { return c.reconnects }

// Queued returns the command waiting to be sent, if any.
func (c *Controller) Queued() (protocol.Command, bool) {
	if c.queued == nil {
		return protocol.Command{}, false
	}
	return *c.queued, true
}

func (c *Controller) GrabberOpen() bool { return c.status.GrabberOpen }
func (c *Controller) Grabbing() bool    { return c.status.Grabbing }
func (c *Controller) Moving() bool      { return c.status.Moving }
func (c *Controller) Kicking() bool     { return c.status.Kicking }
func (c *Controller) BallGrabbed() bool { return c.status.BallGrabbed }

// Busy is true while the robot is mid-motion, mid-grab or mid-kick.
func (c *Controller) Busy() bool {
	return c.status.Moving || c.status.Grabbing || c.status.Kicking
}

func checkPower(powers ...int) error {
	for _, p := range powers {
		if p < 0 || p > 100 {
			return fmt.Errorf("power %d: %w", p, ErrPowerRange)
		}
	}
	return nil
}

func actuation(d time.Duration, power int) (int, error) {
	if d < 0 {
		return 0, fmt.Errorf("%v: %w", d, ErrNegativeTiming)
	}
	if err := checkPower(power); err != nil {
		return 0, err
	}
	return int(d.Milliseconds()), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
