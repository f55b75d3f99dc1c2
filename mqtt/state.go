package mqtt

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	DisconnectFailed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case DisconnectFailed:
		return "disconnect_failed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the connection state. Reason is only set for
// DisconnectFailed.
type Status struct {
	State  State  `json:"-"`
	Name   string `json:"state"`
	Broker string `json:"broker,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Event is delivered on Manager.Events when the state changes outside of an
// explicit Connect or Disconnect call.
type Event struct {
	State State
	Err   error
}
