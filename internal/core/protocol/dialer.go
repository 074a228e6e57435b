package protocol

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker"

	"github.com/zeusync/pitchside/internal/core/observability/log"
)

// OpenFunc opens a port to the robot.
type OpenFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// BreakerSettings configure how quickly repeated open failures trip.
type BreakerSettings struct {
	MaxConsecutiveFailures uint32        `yaml:"max_consecutive_failures"`
	OpenTimeout            time.Duration `yaml:"open_timeout"`
	Interval               time.Duration `yaml:"interval"`
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxConsecutiveFailures: 3,
		OpenTimeout:            5 * time.Second,
		Interval:               0,
	}
}

// Dialer opens ports through a circuit breaker so a missing device is not
// hammered on every reconnect attempt.
type Dialer struct {
	name    string
	open    OpenFunc
	breaker *gobreaker.CircuitBreaker
	logger  log.Log
}

func NewDialer(name string, open OpenFunc, settings BreakerSettings, logger log.Log) *Dialer {
	if logger == nil {
		logger = log.Provide()
	}
	logger = logger.Named("dialer").With(log.String("port", name))
	maxFailures := settings.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 1
	}
	return &Dialer{
		name:   name,
		open:   open,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    settings.Interval,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("circuit breaker state changed",
					log.String("from", from.String()),
					log.String("to", to.String()))
			},
		}),
	}
}

// Dial opens the port. Once the breaker is open it fails immediately.
func (d *Dialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if d.open == nil {
		return nil, ErrNoTransport
	}
	res, err := d.breaker.Execute(func() (interface{}, error) {
		return d.open(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", d.name, ErrDialFailed, err)
	}
	return res.(io.ReadWriteCloser), nil
}

func (d *Dialer) State() string {
	return d.breaker.State().String()
}
