// Package server streams per-tick robot state to pitch-side displays over a
// websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	bus "github.com/zeusync/pitchside/internal/core/events/bus"
	"github.com/zeusync/pitchside/internal/core/observability/log"
)

type Config struct {
	ListenAddr   string
	Token        string
	MaxClients   int
	SendBuffer   int
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:9871",
		MaxClients:   16,
		SendBuffer:   8,
		WriteTimeout: time.Second,
	}
}

// Telemetry fans snapshots out to websocket clients. Slow clients lose
// frames rather than holding up the control loop.
type Telemetry struct {
	config Config
	auth   TokenAuth
	logger log.Log

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte

	server   *http.Server
	listener net.Listener
	running  int32
	closed   int32
	sent     atomic.Uint64
	dropped  atomic.Uint64
}

func NewTelemetry(config Config, logger log.Log) *Telemetry {
	def := DefaultConfig()
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = def.SendBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Telemetry{
		config:  config,
		auth:    NewTokenAuth(config.Token),
		logger:  logger.Named("telemetry"),
		clients: make(map[*client]struct{}),
	}
}

// Start listens on the configured address and serves until Stop.
func (t *Telemetry) Start(ctx context.Context) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", t.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&t.running, 0)
		return err
	}
	t.listener = ln
	t.server = &http.Server{Handler: t, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("telemetry server stopped", log.Error(err))
		}
	}()
	t.logger.Info("telemetry listening", log.String("addr", ln.Addr().String()))
	return nil
}

func (t *Telemetry) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop closes every client and shuts the HTTP server down.
func (t *Telemetry) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	t.mu.Lock()
	for c := range t.clients {
		c.close()
		delete(t.clients, c)
	}
	t.mu.Unlock()

	if atomic.LoadInt32(&t.running) == 0 || t.server == nil {
		return nil
	}
	return t.server.Shutdown(ctx)
}

// Publish sends one snapshot to every client.
func (t *Telemetry) Publish(snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = payload
	for c := range t.clients {
		if c.offer(payload) {
			t.sent.Add(1)
		} else {
			t.dropped.Add(1)
		}
	}
	return nil
}

// HandleTick is the bus handler for agent.tick events.
func (t *Telemetry) HandleTick(e bus.Event) error {
	return t.Publish(e.Data())
}

// Latest returns the last published snapshot as JSON.
func (t *Telemetry) Latest() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return nil, ErrNoSnapshot
	}
	return t.latest, nil
}

func (t *Telemetry) Clients() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// Stats reports frames delivered to client queues and frames dropped.
func (t *Telemetry) Stats() (sent, dropped uint64) {
	return t.sent.Load(), t.dropped.Load()
}

func (t *Telemetry) register(c *client) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrServerClosed
	}
	if len(t.clients) >= t.config.MaxClients {
		return ErrMaxClientsReached
	}
	t.clients[c] = struct{}{}
	if t.latest != nil {
		c.offer(t.latest)
	}
	return nil
}

func (t *Telemetry) unregister(c *client) {
	t.mu.Lock()
	delete(t.clients, c)
	t.mu.Unlock()
	c.close()
}
