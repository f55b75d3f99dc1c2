// Package mqtttest provides an in-process MQTT broker reachable over a TLS
// websocket, for tests of code built on package mqtt.
package mqtttest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/gorilla/websocket"

	"go.chrisrx.dev/panel/mqtt"
)

// Path is the websocket path the broker serves.
const Path = "/mqtt"

// Broker accepts MQTT 3.1.1 connections and records CONNECT and PUBLISH
// packets. It never routes messages to subscribers.
type Broker struct {
	srv *httptest.Server

	mu       sync.Mutex
	refuse   byte
	conns    []net.Conn
	connects []*packets.ConnectPacket

	// Published receives every PUBLISH packet in arrival order.
	Published chan *packets.PublishPacket
}

func NewBroker(t testing.TB) *Broker {
	t.Helper()

	b := &Broker{
		Published: make(chan *packets.PublishPacket, 16),
	}
	upgrader := websocket.Upgrader{
		Subprotocols: []string{mqtt.Subprotocol},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := mqtt.NewConn(ws)
		defer conn.Close()

		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		b.serve(conn)
	})
	b.srv = httptest.NewTLSServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *Broker) serve(conn net.Conn) {
	for {
		cp, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}
		switch p := cp.(type) {
		case *packets.ConnectPacket:
			b.mu.Lock()
			b.connects = append(b.connects, p)
			code := b.refuse
			b.mu.Unlock()

			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = code
			if err := ack.Write(conn); err != nil {
				return
			}
			if code != packets.Accepted {
				return
			}
		case *packets.PublishPacket:
			b.Published <- p
		case *packets.PingreqPacket:
			if err := packets.NewControlPacket(packets.Pingresp).Write(conn); err != nil {
				return
			}
		case *packets.DisconnectPacket:
			return
		}
	}
}

// Refuse makes later CONNECTs fail with the given CONNACK return code.
func (b *Broker) Refuse(code byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuse = code
}

// Drop closes every open connection without an MQTT DISCONNECT.
func (b *Broker) Drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		conn.Close()
	}
	b.conns = nil
}

func (b *Broker) Connects() []*packets.ConnectPacket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*packets.ConnectPacket(nil), b.connects...)
}

// Dialer returns a dialer that reaches this broker whatever host and port
// it is given, and trusts the broker's certificate.
func (b *Broker) Dialer(opts ...mqtt.DialerOption) *mqtt.PahoDialer {
	pool := x509.NewCertPool()
	pool.AddCert(b.srv.Certificate())
	addr := b.srv.Listener.Addr().String()

	opts = append([]mqtt.DialerOption{
		mqtt.WithTLSConfig(&tls.Config{
			RootCAs:    pool,
			ServerName: "example.com",
		}),
		mqtt.WithNetDial(func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		}),
	}, opts...)
	return mqtt.NewDialer(opts...)
}
