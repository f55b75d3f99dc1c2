package panel

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.chrisrx.dev/panel/mqtt"
)

// Receipt records what was handed to the broker. It is not an
// acknowledgment from the panel.
type Receipt struct {
	Topic   string          `json:"topic"`
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithDialer replaces the transport used by Connect.
func WithDialer(d mqtt.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

// Session is the single entry point used by presentation layers. It holds
// at most one broker connection at a time.
type Session struct {
	conn *mqtt.Manager

	dialer mqtt.Dialer
	logger *slog.Logger
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	mopts := []mqtt.Option{mqtt.WithLogger(s.logger)}
	if s.dialer != nil {
		mopts = append(mopts, mqtt.WithDialer(s.dialer))
	}
	s.conn = mqtt.NewManager(mopts...)
	return s
}

// Connect validates p and opens the broker connection. Invalid parameters
// fail with a *ValidationError before any dial.
func (s *Session) Connect(ctx context.Context, p Params) error {
	cfg, err := p.Config()
	if err != nil {
		return err
	}
	return s.conn.Connect(ctx, cfg)
}

func (s *Session) Disconnect() {
	s.conn.Disconnect()
}

func (s *Session) State() mqtt.State {
	return s.conn.State()
}

func (s *Session) Status() mqtt.Status {
	return s.conn.Status()
}

// Events delivers connection drops. Presentation layers should drain it.
func (s *Session) Events() <-chan mqtt.Event {
	return s.conn.Events()
}

// Publish sends p to the panel addressed by code. Codes and payloads not
// built by ParseAccessCode and the New* functions are checked again here.
func (s *Session) Publish(ctx context.Context, code AccessCode, p Payload) (*Receipt, error) {
	if err := code.validate(); err != nil {
		return nil, err
	}
	data, err := Marshal(p)
	if err != nil {
		return nil, err
	}
	if s.conn.State() != mqtt.Connected {
		return nil, mqtt.ErrNotConnected
	}
	topic := ResolveTopic(code)
	logger := s.logger.With(
		slog.String("topic", topic),
		slog.String("command", string(p.Command())),
	)
	if err := s.conn.Publish(ctx, topic, data); err != nil {
		logger.Error("cannot publish", slog.Any("error", err))
		return nil, err
	}
	logger.Info("published", slog.Int("bytes", len(data)))
	return &Receipt{
		Topic:   topic,
		Command: p.Command(),
		Payload: data,
	}, nil
}

func (s *Session) SendConfigUpdate(ctx context.Context, code, domain, topicPrefix string) (*Receipt, error) {
	return s.send(ctx, code, func() (Payload, error) {
		return NewUpdateConfig(domain, topicPrefix)
	})
}

func (s *Session) SendPasswordUpdate(ctx context.Context, code, newPassword string) (*Receipt, error) {
	return s.send(ctx, code, func() (Payload, error) {
		return NewUpdatePassword(newPassword)
	})
}

func (s *Session) SendMessage(ctx context.Context, code, message string) (*Receipt, error) {
	return s.send(ctx, code, func() (Payload, error) {
		return NewShowMessage(message)
	})
}

// send is the only place an access code is checked before publishing.
func (s *Session) send(ctx context.Context, raw string, build func() (Payload, error)) (*Receipt, error) {
	code, err := ParseAccessCode(raw)
	if err != nil {
		return nil, err
	}
	p, err := build()
	if err != nil {
		return nil, err
	}
	return s.Publish(ctx, code, p)
}
