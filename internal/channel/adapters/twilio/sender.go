package twilio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	twilioapi "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/memohai/stylebot/internal/channel"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender sends WhatsApp replies through the Messages API.
type Sender struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

// NewSender builds a REST client from account credentials.
func NewSender(log *slog.Logger, accountSID, authToken, from string) *Sender {
	client := twilioapi.NewRestClientWithParams(twilioapi.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newSender(log, client.Api, from)
}

func newSender(log *slog.Logger, api messageCreator, from string) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		api:    api,
		from:   strings.TrimSpace(from),
		logger: log.With(slog.String("service", "twilio_sender")),
	}
}

// SendReply creates a message to msg.To. The SDK call blocks without a
// context, so it runs on its own goroutine and the caller stops waiting when
// ctx is done.
func (s *Sender) SendReply(ctx context.Context, msg channel.OutboundMessage) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("twilio reply: recipient is required")
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(msg.Body)
	if mediaURL := strings.TrimSpace(msg.MediaURL); mediaURL != "" {
		params.SetMediaUrl([]string{mediaURL})
	}

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.api.CreateMessage(params)
		var sid string
		if err == nil && resp != nil && resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio reply to %s: %w", to, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("twilio reply to %s: %w", to, res.err)
		}
		s.logger.Info("reply sent", slog.String("to", to), slog.String("message_sid", res.sid))
		return nil
	}
}
