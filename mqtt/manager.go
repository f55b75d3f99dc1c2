package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// Manager owns the lifecycle of one broker connection. Connect and
// Disconnect are serialized; Publish may run concurrently with either.
type Manager struct {
	// serializes Connect and Disconnect
	lifecycle sync.Mutex

	mu     sync.Mutex
	state  State
	reason string
	cfg    Config
	client Client
	gen    uint64

	dialer Dialer
	events chan Event
	logger *slog.Logger
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		events: make(chan Event, 10),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewDialer(WithDialerLogger(m.logger))
	}
	return m
}

// Connect dials the broker and blocks until the handshake completes. It
// fails with ErrAlreadyConnected if a connection is already live.
func (m *Manager) Connect(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	switch m.state {
	case Connected, Connecting:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	stale := m.client
	m.client = nil
	m.state = Connecting
	m.reason = ""
	m.cfg = cfg
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	if stale != nil {
		stale.Disconnect()
	}

	logger := m.logger.With(slog.String("broker", cfg.Broker))
	client, err := m.dialer.Dial(ctx, cfg, func(err error) {
		m.lost(gen, err)
	})
	if err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.cfg = Config{}
		m.mu.Unlock()
		logger.Error("cannot connect", slog.Any("error", err))
		return &ConnectionError{Broker: cfg.Broker, Cause: err}
	}

	m.mu.Lock()
	m.client = client
	m.state = Connected
	m.mu.Unlock()
	logger.Info("connected")
	return nil
}

// Disconnect closes the live connection, if any. By the time it returns
// the transport is released and Publish fails with ErrNotConnected.
func (m *Manager) Disconnect() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	client := m.client
	prev := m.state
	m.client = nil
	m.state = Disconnected
	m.reason = ""
	m.cfg = Config{}
	m.gen++
	m.mu.Unlock()

	if client == nil {
		return
	}
	client.Disconnect()
	m.logger.Info("disconnected", slog.String("previous", prev.String()))
}

// Publish hands payload to the live connection.
func (m *Manager) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	client := m.client
	state := m.state
	m.mu.Unlock()

	if state != Connected || client == nil {
		return ErrNotConnected
	}
	if err := client.Publish(ctx, topic, payload); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return err
		}
		return &TransportError{Topic: topic, Cause: err}
	}
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:  m.state,
		Name:   m.state.String(),
		Broker: m.cfg.Broker,
		Reason: m.reason,
	}
}

// Events reports connection drops detected by the network loop. Events are
// dropped if the channel is full.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) lost(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.state != Connected {
		m.mu.Unlock()
		return
	}
	m.state = DisconnectFailed
	if err != nil {
		m.reason = err.Error()
	}
	m.mu.Unlock()

	select {
	case m.events <- Event{State: DisconnectFailed, Err: err}:
	default:
		m.logger.Warn("dropping connection event", slog.Any("error", err))
	}
}
