// Package twilio adapts Twilio's WhatsApp webhook and messaging API to the
// channel abstractions.
package twilio

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/memohai/stylebot/internal/channel"
)

// Type is the channel type for Twilio WhatsApp.
const Type channel.ChannelType = "twilio_whatsapp"

type formField struct {
	name   string
	assign func(msg *channel.InboundMessage, value string)
}

// inboundFields maps provider form fields onto InboundMessage.
var inboundFields = []formField{
	{name: "From", assign: func(m *channel.InboundMessage, v string) { m.From = v }},
	{name: "To", assign: func(m *channel.InboundMessage, v string) { m.To = v }},
	{name: "Body", assign: func(m *channel.InboundMessage, v string) { m.Body = v }},
	{name: "MessageSid", assign: func(m *channel.InboundMessage, v string) { m.MessageSID = v }},
	{name: "NumMedia", assign: func(m *channel.InboundMessage, v string) { m.NumMedia = parseNumMedia(v) }},
	{name: "MediaUrl0", assign: func(m *channel.InboundMessage, v string) { m.MediaURL = v }},
}

var validate = validator.New()

// ParseInbound maps a webhook form onto an InboundMessage and validates the
// required fields.
func ParseInbound(form url.Values, receivedAt time.Time) (channel.InboundMessage, error) {
	msg := channel.InboundMessage{
		Channel:    Type,
		ReceivedAt: receivedAt,
	}
	for _, f := range inboundFields {
		if value := strings.TrimSpace(form.Get(f.name)); value != "" {
			f.assign(&msg, value)
		}
	}
	if err := validate.Struct(msg); err != nil {
		return msg, fmt.Errorf("invalid twilio webhook: %w", err)
	}
	return msg, nil
}

// parseNumMedia returns 0 for absent, malformed or negative counts.
func parseNumMedia(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// formParams flattens the posted form to the first value of every field,
// which is what the provider signs.
func formParams(form url.Values) map[string]string {
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}
