package mqtt

import "context"

// Client is a live broker connection. Publish returns once the message has
// been handed to the network; it never waits for a subscriber.
type Client interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
}

// Dialer opens a Client. onLost is called at most once, from the client's
// network goroutine, if the link drops while connected.
type Dialer interface {
	Dial(ctx context.Context, cfg Config, onLost func(error)) (Client, error)
}
