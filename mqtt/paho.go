package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	keepAlive = 60 * time.Second

	// milliseconds granted to in-flight work on Disconnect
	quiesce = 250

	qosAtMostOnce byte = 0
)

const DefaultClientIDPrefix = "panel"

type DialerOption func(*PahoDialer)

func WithTLSConfig(cfg *tls.Config) DialerOption {
	return func(d *PahoDialer) {
		d.tlsConfig = cfg
	}
}

// WithNetDial replaces the TCP dial used beneath TLS and the websocket.
func WithNetDial(fn NetDialFunc) DialerOption {
	return func(d *PahoDialer) {
		d.netDial = fn
	}
}

func WithClientIDPrefix(prefix string) DialerOption {
	return func(d *PahoDialer) {
		if prefix != "" {
			d.clientIDPrefix = prefix
		}
	}
}

func WithDialerLogger(l *slog.Logger) DialerOption {
	return func(d *PahoDialer) {
		d.logger = l
	}
}

// PahoDialer connects with MQTT 3.1.1 carried over a TLS websocket.
type PahoDialer struct {
	tlsConfig      *tls.Config
	netDial        NetDialFunc
	clientIDPrefix string
	logger         *slog.Logger
}

func NewDialer(opts ...DialerOption) *PahoDialer {
	d := &PahoDialer{
		clientIDPrefix: DefaultClientIDPrefix,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *PahoDialer) Dial(ctx context.Context, cfg Config, onLost func(error)) (Client, error) {
	clientID := d.clientIDPrefix + "-" + uuid.NewString()
	logger := d.logger.With(
		slog.String("url", cfg.URL().String()),
		slog.String("client_id", clientID),
	)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.URL().String())
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectTimeout(handshakeTimeout)
	opts.SetWriteTimeout(writeWait)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	if cfg.hasCredentials() {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCustomOpenConnectionFn(func(uri *url.URL, _ paho.ClientOptions) (net.Conn, error) {
		return dialWebsocket(ctx, uri, d.tlsConfig, d.netDial)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("connection lost", slog.Any("error", err))
		if onLost != nil {
			onLost(err)
		}
	})

	logger.Info("attempting connection...")
	c := paho.NewClient(opts)
	if err := wait(ctx, c.Connect()); err != nil {
		if ctx.Err() != nil {
			c.Disconnect(0)
		}
		return nil, err
	}
	logger.Info("connection successful")
	return &pahoClient{c: c}, nil
}

type pahoClient struct {
	c paho.Client
}

func (p *pahoClient) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.c.IsConnectionOpen() {
		return ErrNotConnected
	}
	err := wait(ctx, p.c.Publish(topic, qosAtMostOnce, false, payload))
	if errors.Is(err, paho.ErrNotConnected) {
		return ErrNotConnected
	}
	return err
}

func (p *pahoClient) Disconnect() {
	p.c.Disconnect(quiesce)
}

func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
