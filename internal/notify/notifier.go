// Package notify describes the hand-off to the external notification
// transport. Nothing here talks SMTP or SMS; requests are queued for a
// separate delivery service.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Template string

const (
	TemplateConfirmation Template = "confirmation"
	TemplateReminder     Template = "reminder"
)

type Request struct {
	ID        uuid.UUID         `json:"id"`
	Channel   Channel           `json:"channel"`
	Recipient string            `json:"recipient"`
	Template  Template          `json:"template"`
	Payload   map[string]string `json:"payload"`
	NotBefore time.Time         `json:"not_before"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Notifier accepts a request for later delivery. An error means the request
// was not accepted; it never means the message failed to arrive.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// Requests builds one request per channel the contact can be reached on.
func Requests(c Contact, tmpl Template, payload map[string]string, notBefore time.Time) []Request {
	var out []Request
	if email := strings.TrimSpace(c.Email); email != "" {
		out = append(out, newRequest(ChannelEmail, email, tmpl, c, payload, notBefore))
	}
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		out = append(out, newRequest(ChannelSMS, phone, tmpl, c, payload, notBefore))
	}
	return out
}

func newRequest(ch Channel, to string, tmpl Template, c Contact, payload map[string]string, notBefore time.Time) Request {
	p := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		p[k] = v
	}
	p["patient_name"] = c.Name
	return Request{
		ID:        uuid.New(),
		Channel:   ch,
		Recipient: to,
		Template:  tmpl,
		Payload:   p,
		NotBefore: notBefore,
	}
}
