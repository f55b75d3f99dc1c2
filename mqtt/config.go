package mqtt

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Config holds the parameters of a single broker connection. A Config is
// not modified after it has been passed to Manager.Connect.
type Config struct {
	Broker   string
	Port     int
	Path     string
	Username string
	Password string
}

func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// URL returns the secure websocket URL of the broker endpoint.
func (c Config) URL() *url.URL {
	path := strings.TrimSpace(c.Path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &url.URL{
		Scheme: "wss",
		Host:   net.JoinHostPort(c.Broker, strconv.Itoa(c.Port)),
		Path:   path,
	}
}

func (c Config) hasCredentials() bool {
	return c.Username != "" || c.Password != ""
}
