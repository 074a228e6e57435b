// Package config holds the one configuration value built at startup and
// handed to every constructor.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/pitchside/internal/core/controller"
	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/planner"
	"github.com/zeusync/pitchside/internal/core/protocol"
	"github.com/zeusync/pitchside/internal/core/protocol/serial"
	"github.com/zeusync/pitchside/internal/core/strategy"
	"github.com/zeusync/pitchside/internal/core/world"
)

var ErrInvalidConfig = errors.New("invalid config")

type LinkKind string

const (
	LinkSerial LinkKind = "serial"
	LinkQUIC   LinkKind = "quic"
	LinkNone   LinkKind = "none"
)

type Role string

const (
	RoleAttacker Role = "attacker"
	RoleDefender Role = "defender"
)

type Config struct {
	Match       Match           `yaml:"match"`
	Log         Log             `yaml:"log"`
	Link        Link            `yaml:"link"`
	Robot       Robot           `yaml:"robot"`
	Tactics     strategy.Tuning `yaml:"tactics"`
	Vision      Vision          `yaml:"vision"`
	Telemetry   Telemetry       `yaml:"telemetry"`
	Calibration Calibration     `yaml:"calibration"`
}

// Match describes the game being played. Role is which of our two robots
// this process drives.
type Match struct {
	Side         string                   `yaml:"side"`
	Pitch        int                      `yaml:"pitch"`
	Profile      string                   `yaml:"profile"`
	Role         Role                     `yaml:"role"`
	TickRate     int                      `yaml:"tick_rate"`
	AngleOffsets [world.ZoneCount]float64 `yaml:"angle_offsets"`
	HistorySize  int                      `yaml:"history_size"`
	Shutdown     time.Duration            `yaml:"shutdown_timeout"`
}

type Log struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type Link struct {
	Kind     LinkKind `yaml:"kind"`
	Device   string   `yaml:"device"`
	Baud     int      `yaml:"baud"`
	Address  string   `yaml:"address"`
	Insecure bool     `yaml:"insecure"`

	AckTimeout     time.Duration            `yaml:"ack_timeout"`
	MaxAckTimeouts int                      `yaml:"max_ack_timeouts"`
	PollInterval   time.Duration            `yaml:"poll_interval"`
	RedialInterval time.Duration            `yaml:"redial_interval"`
	Breaker        protocol.BreakerSettings `yaml:"breaker"`
}

type Robot struct {
	TicksPerCM   float64       `yaml:"ticks_per_cm"`
	WheelbaseCM  float64       `yaml:"wheelbase_cm"`
	DefaultPower int           `yaml:"default_power"`
	GrabberTime  time.Duration `yaml:"grabber_time"`
	GrabberPower int           `yaml:"grabber_power"`
	KickTime     time.Duration `yaml:"kick_time"`
	KickPower    int           `yaml:"kick_power"`
}

type Vision struct {
	Addr         string        `yaml:"addr"`
	FrameTimeout time.Duration `yaml:"frame_timeout"`
}

type Telemetry struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Token      string `yaml:"token"`
	MaxClients int    `yaml:"max_clients"`
}

type Calibration struct {
	Path string `yaml:"path"`
}

func Default() *Config {
	ctl := controller.DefaultSettings()
	return &Config{
		Match: Match{
			Side:        "left",
			Profile:     string(planner.ProfileAttacker),
			Role:        RoleAttacker,
			TickRate:    30,
			HistorySize: 64,
			Shutdown:    5 * time.Second,
		},
		Log: Log{Level: "info", Encoding: "json"},
		Link: Link{
			Kind:           LinkSerial,
			Device:         "/dev/ttyACM0",
			Baud:           115200,
			AckTimeout:     ctl.AckTimeout,
			MaxAckTimeouts: ctl.MaxAckTimeouts,
			PollInterval:   ctl.PollInterval,
			RedialInterval: ctl.RedialInterval,
			Breaker:        protocol.DefaultBreakerSettings(),
		},
		Robot: Robot{
			TicksPerCM:   ctl.TicksPerCM,
			WheelbaseCM:  ctl.WheelbaseCM,
			DefaultPower: ctl.DefaultPower,
			GrabberTime:  ctl.GrabberTime,
			GrabberPower: ctl.GrabberPower,
			KickTime:     ctl.KickTime,
			KickPower:    ctl.KickPower,
		},
		Tactics:     strategy.DefaultTuning(),
		Vision:      Vision{Addr: "127.0.0.1:9870", FrameTimeout: 50 * time.Millisecond},
		Telemetry:   Telemetry{Enabled: true, Addr: "127.0.0.1:9871", MaxClients: 16},
		Calibration: Calibration{Path: "calibrations/calibrate.yaml"},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML over the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := world.ParseSide(c.Match.Side); err != nil {
		bad("match.side: %v", err)
	}
	if c.Match.Pitch < 0 {
		bad("match.pitch %d", c.Match.Pitch)
	}
	if _, err := planner.ParseProfile(c.Match.Profile); err != nil {
		bad("match.profile: %v", err)
	}
	if c.Match.Role != RoleAttacker && c.Match.Role != RoleDefender {
		bad("match.role %q", c.Match.Role)
	}
	if c.Match.TickRate <= 0 {
		bad("match.tick_rate %d", c.Match.TickRate)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		bad("log.encoding %q", c.Log.Encoding)
	}

	switch c.Link.Kind {
	case LinkSerial:
		if c.Link.Device == "" {
			bad("link.device required for serial")
		}
		if !serial.SupportedBaud(c.Link.Baud) {
			bad("link.baud %d", c.Link.Baud)
		}
	case LinkQUIC:
		if c.Link.Address == "" {
			bad("link.address required for quic")
		}
	case LinkNone:
	default:
		bad("link.kind %q", c.Link.Kind)
	}
	if c.Link.AckTimeout <= 0 {
		bad("link.ack_timeout %s", c.Link.AckTimeout)
	}
	if c.Link.PollInterval <= 0 {
		bad("link.poll_interval %s", c.Link.PollInterval)
	}
	if c.Link.MaxAckTimeouts < 0 {
		bad("link.max_ack_timeouts %d", c.Link.MaxAckTimeouts)
	}
	if c.Link.RedialInterval <= 0 {
		bad("link.redial_interval %s", c.Link.RedialInterval)
	}

	if c.Robot.TicksPerCM <= 0 || c.Robot.WheelbaseCM <= 0 {
		bad("robot geometry must be positive")
	}
	for name, p := range map[string]int{
		"default_power": c.Robot.DefaultPower,
		"grabber_power": c.Robot.GrabberPower,
		"kick_power":    c.Robot.KickPower,
	} {
		if p < 0 || p > 100 {
			bad("robot.%s %d", name, p)
		}
	}

	if c.Vision.Addr == "" {
		bad("vision.addr required")
	}
	if c.Telemetry.Enabled && c.Telemetry.Addr == "" {
		bad("telemetry.addr required when enabled")
	}
	if strings.TrimSpace(c.Calibration.Path) == "" {
		bad("calibration.path required")
	}
	return errors.Join(errs...)
}

// DryRun reports whether no robot link is configured.
func (c *Config) DryRun() bool { return c.Link.Kind == LinkNone }

func (c *Config) ControllerSettings() controller.Settings {
	return controller.Settings{
		TicksPerCM:     c.Robot.TicksPerCM,
		WheelbaseCM:    c.Robot.WheelbaseCM,
		DefaultPower:   c.Robot.DefaultPower,
		GrabberTime:    c.Robot.GrabberTime,
		GrabberPower:   c.Robot.GrabberPower,
		KickTime:       c.Robot.KickTime,
		KickPower:      c.Robot.KickPower,
		AckTimeout:     c.Link.AckTimeout,
		PollInterval:   c.Link.PollInterval,
		MaxAckTimeouts: c.Link.MaxAckTimeouts,
		RedialInterval: c.Link.RedialInterval,
	}
}

func (c *Config) LogOptions() log.Options {
	// Validate has already rejected unknown levels; ParseLevel falls back to info.
	level, _ := log.ParseLevel(c.Log.Level)
	return log.Options{Level: level, Encoding: c.Log.Encoding}
}
