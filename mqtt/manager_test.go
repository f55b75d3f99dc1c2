package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeClient struct {
	mu           sync.Mutex
	published    []string
	disconnected int
	err          error
}

func (c *fakeClient) Publish(_ context.Context, topic string, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, topic)
	return nil
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	err     error
	clients []*fakeClient
	onLost  func(error)
}

func (d *fakeDialer) Dial(_ context.Context, _ Config, onLost func(error)) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeClient{}
	d.clients = append(d.clients, c)
	d.onLost = onLost
	return c, nil
}

var testConfig = Config{Broker: "test.broker", Port: 443, Path: "/mqtt"}

func TestManagerPublishBeforeConnect(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))

	err := m.Publish(context.Background(), "service/ABCDEF/configuration", []byte("{}"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, received %v", err)
	}
	if d.dials != 0 {
		t.Fatalf("expected no dials, received %d", d.dials)
	}
}

func TestManagerConnectPublishDisconnect(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))
	ctx := context.Background()

	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}
	if m.State() != Connected {
		t.Fatalf("expected connected, received %v", m.State())
	}
	if got := m.Status().Broker; got != "test.broker" {
		t.Fatalf("expected broker test.broker, received %q", got)
	}
	if err := m.Publish(ctx, "a/b", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if got := d.clients[0].published; len(got) != 1 || got[0] != "a/b" {
		t.Fatalf("unexpected publishes: %v", got)
	}

	m.Disconnect()
	if m.State() != Disconnected {
		t.Fatalf("expected disconnected, received %v", m.State())
	}
	if d.clients[0].disconnected != 1 {
		t.Fatalf("expected client disconnect, received %d", d.clients[0].disconnected)
	}
	if err := m.Publish(ctx, "a/b", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after disconnect, received %v", err)
	}
}

func TestManagerConnectTwice(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))
	ctx := context.Background()

	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, testConfig); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, received %v", err)
	}
	if d.dials != 1 {
		t.Fatalf("expected a single dial, received %d", d.dials)
	}
	if m.State() != Connected {
		t.Fatalf("expected connected, received %v", m.State())
	}
}

func TestManagerDisconnectIdempotent(t *testing.T) {
	m := NewManager(WithDialer(&fakeDialer{}))

	m.Disconnect()
	if m.State() != Disconnected {
		t.Fatalf("expected disconnected, received %v", m.State())
	}
	m.Disconnect()
	if m.State() != Disconnected {
		t.Fatalf("expected disconnected, received %v", m.State())
	}
}

func TestManagerConnectFailure(t *testing.T) {
	cause := errors.New("tls: handshake failure")
	m := NewManager(WithDialer(&fakeDialer{err: cause}))

	err := m.Connect(context.Background(), testConfig)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, received %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, received %v", err)
	}
	if m.State() != Disconnected {
		t.Fatalf("expected disconnected, received %v", m.State())
	}
}

func TestManagerInvalidConfig(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))

	for _, cfg := range []Config{
		{Broker: "", Port: 443},
		{Broker: "test.broker", Port: 0},
		{Broker: "test.broker", Port: 70000},
	} {
		if err := m.Connect(context.Background(), cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
	if d.dials != 0 {
		t.Fatalf("expected no dials, received %d", d.dials)
	}
}

func TestManagerTransportFailure(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))
	if err := m.Connect(context.Background(), testConfig); err != nil {
		t.Fatal(err)
	}
	d.clients[0].err = errors.New("broken pipe")

	err := m.Publish(context.Background(), "a/b", []byte("x"))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, received %v", err)
	}
	if transportErr.Topic != "a/b" {
		t.Fatalf("expected topic a/b, received %q", transportErr.Topic)
	}
}

func TestManagerConnectionLost(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))
	ctx := context.Background()
	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}

	d.onLost(errors.New("EOF"))

	ev := <-m.Events()
	if ev.State != DisconnectFailed {
		t.Fatalf("expected DisconnectFailed event, received %v", ev.State)
	}
	status := m.Status()
	if status.State != DisconnectFailed || status.Reason != "EOF" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if err := m.Publish(ctx, "a/b", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, received %v", err)
	}

	// reconnecting tears down the dead client first
	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}
	if d.clients[0].disconnected != 1 {
		t.Fatalf("expected stale client to be disconnected, received %d", d.clients[0].disconnected)
	}
	if m.State() != Connected {
		t.Fatalf("expected connected, received %v", m.State())
	}
}

func TestManagerStaleLostIgnored(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))
	ctx := context.Background()
	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}
	onLost := d.onLost
	m.Disconnect()
	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}

	onLost(errors.New("EOF"))
	if m.State() != Connected {
		t.Fatalf("expected connected, received %v", m.State())
	}
}

func TestManagerConcurrentDisconnect(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(WithDialer(d))
	ctx := context.Background()
	if err := m.Connect(ctx, testConfig); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Publish(ctx, "a/b", []byte("x"))
			if err != nil && !errors.Is(err, ErrNotConnected) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	m.Disconnect()
	wg.Wait()

	if m.State() != Disconnected {
		t.Fatalf("expected disconnected, received %v", m.State())
	}
}

func TestConfigURL(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Broker: "panel.ekoncept.pl", Port: 443, Path: "/mqtt"}, "wss://panel.ekoncept.pl:443/mqtt"},
		{Config{Broker: "test.broker", Port: 8443, Path: " mqtt "}, "wss://test.broker:8443/mqtt"},
		{Config{Broker: "test.broker", Port: 443, Path: ""}, "wss://test.broker:443/"},
	}
	for _, tt := range tests {
		if got := tt.cfg.URL().String(); got != tt.want {
			t.Errorf("expected %q, received %q", tt.want, got)
		}
	}
}
