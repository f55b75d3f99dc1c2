package panel

import (
	"fmt"
	"strconv"
	"strings"

	"go.chrisrx.dev/panel/mqtt"
)

// Params are the connection settings as entered by an operator.
type Params struct {
	Broker   string `json:"broker"`
	Port     string `json:"port"`
	WSPath   string `json:"ws_path"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: "port", Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	if port < 1 || port > 65535 {
		return 0, &ValidationError{Field: "port", Reason: fmt.Sprintf("%d out of range", port)}
	}
	return port, nil
}

// Config validates p and converts it to a transport config.
func (p Params) Config() (mqtt.Config, error) {
	if p.Broker == "" {
		return mqtt.Config{}, required("broker")
	}
	port, err := ParsePort(p.Port)
	if err != nil {
		return mqtt.Config{}, err
	}
	return mqtt.Config{
		Broker:   p.Broker,
		Port:     port,
		Path:     strings.TrimSpace(p.WSPath),
		Username: p.Username,
		Password: p.Password,
	}, nil
}
