package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.chrisrx.dev/x/log"
	"go.chrisrx.dev/x/run"
)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	writeWait        = 5 * time.Second
)

// Subprotocol is the websocket subprotocol brokers expect for MQTT 3.1.1.
const Subprotocol = "mqtt"

type NetDialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func dialWebsocket(ctx context.Context, u *url.URL, tlsConfig *tls.Config, netDial NetDialFunc) (*wsConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  tlsConfig,
		NetDialContext:   netDial,
		Subprotocols:     []string{Subprotocol},
	}
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return newWSConn(ws), nil
}

// NewConn wraps an established websocket as a net.Conn carrying MQTT
// packets in binary messages.
func NewConn(ws *websocket.Conn) net.Conn {
	return newWSConn(ws)
}

// wsConn presents a websocket as a byte stream. MQTT packets may span or
// share binary messages, so reads continue across message boundaries.
type wsConn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc

	rmu sync.Mutex
	r   io.Reader

	wmu sync.Mutex
}

var _ net.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		ws:     ws,
		cancel: cancel,
	}
	go run.Every(ctx, func() error {
		if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			log.FromContext(ctx).Debug("websocket ping failed",
				slog.String("remote", c.ws.RemoteAddr().String()),
				slog.Any("error", err),
			)
			return err
		}
		return nil
	}, pingInterval)
	return c
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.r == nil {
			typ, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.cancel()
	m := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, m, time.Now().Add(writeWait))
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
