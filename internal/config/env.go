package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every variable the overlay reads.
const EnvPrefix = "PITCHSIDE_"

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"SIDE", func(c *Config, v string) error { c.Match.Side = v; return nil }},
	{"PITCH", func(c *Config, v string) error { return setInt(&c.Match.Pitch, v) }},
	{"PROFILE", func(c *Config, v string) error { c.Match.Profile = v; return nil }},
	{"ROLE", func(c *Config, v string) error { c.Match.Role = Role(v); return nil }},
	{"TICK_RATE", func(c *Config, v string) error { return setInt(&c.Match.TickRate, v) }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_ENCODING", func(c *Config, v string) error { c.Log.Encoding = v; return nil }},
	{"LINK_KIND", func(c *Config, v string) error { c.Link.Kind = LinkKind(v); return nil }},
	{"LINK_DEVICE", func(c *Config, v string) error { c.Link.Device = v; return nil }},
	{"LINK_BAUD", func(c *Config, v string) error { return setInt(&c.Link.Baud, v) }},
	{"LINK_ADDRESS", func(c *Config, v string) error { c.Link.Address = v; return nil }},
	{"LINK_ACK_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Link.AckTimeout, v) }},
	{"VISION_ADDR", func(c *Config, v string) error { c.Vision.Addr = v; return nil }},
	{"TELEMETRY_ADDR", func(c *Config, v string) error { c.Telemetry.Addr = v; return nil }},
	{"TELEMETRY_TOKEN", func(c *Config, v string) error { c.Telemetry.Token = v; return nil }},
	{"TELEMETRY_ENABLED", func(c *Config, v string) error { return setBool(&c.Telemetry.Enabled, v) }},
	{"CALIBRATION", func(c *Config, v string) error { c.Calibration.Path = v; return nil }},
}

// ApplyEnv loads envFile into the process environment (a missing default
// .env is fine, a missing named file is not), then overlays every
// PITCHSIDE_* variable that is set. Variables already in the environment win
// over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return c.overlay(os.LookupEnv)
}

func (c *Config) overlay(lookup func(string) (string, bool)) error {
	var errs []error
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok {
			continue
		}
		if err := ev.set(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, ev.name, err))
		}
	}
	return errors.Join(errs...)
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
