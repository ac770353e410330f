// Package channel defines the messaging types shared by channel adapters and
// the Messenger interface used to reply to a sender.
package channel

import (
	"context"
	"strings"
	"time"
)

// ChannelType identifies a messaging platform.
type ChannelType string

func (c ChannelType) String() string {
	return string(c)
}

// InboundMessage is a validated inbound notification from a channel.
type InboundMessage struct {
	Channel ChannelType
	// From is the sender address, e.g. "whatsapp:+15551234567".
	From string `validate:"required"`
	// MessageSID uniquely identifies the message at the provider.
	MessageSID string `validate:"required"`
	To         string
	Body       string
	NumMedia   int `validate:"gte=0"`
	// MediaURL is the first attachment as sent, empty when none was sent.
	// It is not checked here; the channel's host policy decides.
	MediaURL   string
	ReceivedAt time.Time
}

// HasMedia reports whether the message carries at least one attachment URL.
func (m InboundMessage) HasMedia() bool {
	return m.NumMedia > 0 && strings.TrimSpace(m.MediaURL) != ""
}

// OutboundMessage is a reply to a sender. MediaURL is optional.
type OutboundMessage struct {
	To       string
	Body     string
	MediaURL string
}

// Messenger delivers replies through a channel's provider.
type Messenger interface {
	SendReply(ctx context.Context, msg OutboundMessage) error
}

// MessengerFunc adapts a function to Messenger.
type MessengerFunc func(ctx context.Context, msg OutboundMessage) error

func (f MessengerFunc) SendReply(ctx context.Context, msg OutboundMessage) error {
	return f(ctx, msg)
}
