package panel

import (
	"bytes"
	"encoding/json"
)

type Command string

const (
	UpdateConfigCommand   Command = "update_config"
	UpdatePasswordCommand Command = "update_password"
	ShowMessageCommand    Command = "show_message"
)

// Payload is one of UpdateConfig, UpdatePassword or ShowMessage. Values are
// built with the New* functions, which reject empty fields.
type Payload interface {
	Command() Command
	validate() error
}

// The command key must come first; panel firmware depends on the key order
// of these documents.

type UpdateConfig struct {
	Domain      string
	TopicPrefix string
}

func NewUpdateConfig(domain, topicPrefix string) (*UpdateConfig, error) {
	p := &UpdateConfig{Domain: domain, TopicPrefix: topicPrefix}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (*UpdateConfig) Command() Command { return UpdateConfigCommand }

func (p *UpdateConfig) validate() error {
	switch {
	case p == nil || p.Domain == "":
		return required("domain")
	case p.TopicPrefix == "":
		return required("topic prefix")
	}
	return nil
}

func (p *UpdateConfig) MarshalJSON() ([]byte, error) {
	return encode(struct {
		Command     Command `json:"command"`
		Domain      string  `json:"domain"`
		TopicPrefix string  `json:"topic_prefix"`
	}{p.Command(), p.Domain, p.TopicPrefix})
}

type UpdatePassword struct {
	NewPassword string
}

func NewUpdatePassword(newPassword string) (*UpdatePassword, error) {
	p := &UpdatePassword{NewPassword: newPassword}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (*UpdatePassword) Command() Command { return UpdatePasswordCommand }

func (p *UpdatePassword) validate() error {
	if p == nil || p.NewPassword == "" {
		return required("new password")
	}
	return nil
}

func (p *UpdatePassword) MarshalJSON() ([]byte, error) {
	return encode(struct {
		Command     Command `json:"command"`
		NewPassword string  `json:"new_password"`
	}{p.Command(), p.NewPassword})
}

type ShowMessage struct {
	Message string
}

func NewShowMessage(message string) (*ShowMessage, error) {
	p := &ShowMessage{Message: message}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (*ShowMessage) Command() Command { return ShowMessageCommand }

func (p *ShowMessage) validate() error {
	if p == nil || p.Message == "" {
		return required("message")
	}
	return nil
}

func (p *ShowMessage) MarshalJSON() ([]byte, error) {
	return encode(struct {
		Command Command `json:"command"`
		Message string  `json:"message"`
	}{p.Command(), p.Message})
}

// Marshal returns the compact wire form of p. It fails with a
// *ValidationError if p is nil or has an empty field.
func Marshal(p Payload) ([]byte, error) {
	if p == nil {
		return nil, required("payload")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return encode(p)
}

// encode is json.Marshal without HTML escaping, so messages reach the panel
// as typed.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Indent formats a marshaled payload for display.
func Indent(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}
