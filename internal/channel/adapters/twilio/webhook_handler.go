package twilio

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/stylebot/internal/channel"
	"github.com/memohai/stylebot/internal/channel/inbound"
	"github.com/memohai/stylebot/internal/media"
	"github.com/memohai/stylebot/internal/metrics"
)

// EmptyTwiML acknowledges a webhook without asking the provider to reply.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// ImageProcessor turns a received media URL into the public URL of the
// stylized result.
type ImageProcessor interface {
	Process(ctx context.Context, mediaURL, messageSID string) (string, error)
}

type WebhookConfig struct {
	AllowedHostSuffixes []string
}

// WebhookHandler receives WhatsApp message notifications, runs the image
// pipeline and replies to the sender. Every request that passes signature
// verification is acknowledged exactly once with EmptyTwiML.
type WebhookHandler struct {
	logger    *slog.Logger
	verifier  *SignatureVerifier
	messenger channel.Messenger
	processor ImageProcessor
	deduper   *inbound.Deduper
	metrics   *metrics.Metrics
	allowed   []string
	now       func() time.Time
}

func NewWebhookHandler(
	log *slog.Logger,
	cfg WebhookConfig,
	verifier *SignatureVerifier,
	messenger channel.Messenger,
	processor ImageProcessor,
	deduper *inbound.Deduper,
	m *metrics.Metrics,
) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:    log.With(slog.String("handler", "twilio_webhook")),
		verifier:  verifier,
		messenger: messenger,
		processor: processor,
		deduper:   deduper,
		metrics:   m,
		allowed:   append([]string(nil), cfg.AllowedHostSuffixes...),
		now:       time.Now,
	}
}

// Register registers webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks", h.Handle)
	e.POST("/webhooks/", h.Handle)
}

// Handle processes a Twilio messaging webhook.
func (h *WebhookHandler) Handle(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, webhookMaxBodyBytes)
	if err := req.ParseForm(); err != nil {
		h.logger.Warn("parse webhook form failed", slog.Any("error", err))
		h.metrics.Webhook("bad_request")
		return c.NoContent(http.StatusBadRequest)
	}
	if !h.verifier.Verify(req, formParams(req.PostForm)) {
		h.logger.Warn("webhook signature mismatch", slog.String("remote_ip", c.RealIP()))
		h.metrics.Webhook("forbidden")
		return c.NoContent(http.StatusForbidden)
	}

	branch := h.dispatch(req.Context(), req)
	h.metrics.Webhook(branch)
	return ack(c)
}

// dispatch runs the message state machine and returns the branch taken.
func (h *WebhookHandler) dispatch(ctx context.Context, req *http.Request) string {
	msg, err := ParseInbound(req.PostForm, h.now())
	if err != nil {
		h.logger.Warn("invalid webhook payload", slog.Any("error", err))
		return "invalid"
	}
	log := h.logger.With(slog.String("message_sid", msg.MessageSID), slog.String("from", msg.From))

	if h.deduper.Seen(msg.MessageSID) {
		log.Info("duplicate webhook delivery ignored")
		return "duplicate"
	}
	if !msg.HasMedia() {
		log.Info("message has no media")
		h.reply(ctx, channel.OutboundMessage{To: msg.From, Body: ReplyNoMedia})
		return "no_media"
	}
	if !HostAllowed(msg.MediaURL, h.allowed) {
		log.Warn("media host not allowed", slog.String("media_url", msg.MediaURL))
		h.reply(ctx, channel.OutboundMessage{To: msg.From, Body: ReplyHostUnsupported})
		return "host_rejected"
	}

	h.reply(ctx, channel.OutboundMessage{To: msg.From, Body: ReplyProcessing})

	finalURL, err := h.processor.Process(ctx, msg.MediaURL, msg.MessageSID)
	outcome := media.Outcome(err)
	if err != nil {
		level := slog.LevelWarn
		if outcome == media.OutcomeUnexpected {
			level = slog.LevelError
		}
		log.Log(ctx, level, "image pipeline failed", slog.String("outcome", outcome), slog.Any("error", err))
		h.reply(ctx, channel.OutboundMessage{To: msg.From, Body: replyForError(err)})
		return outcome
	}
	h.reply(ctx, channel.OutboundMessage{To: msg.From, Body: ReplySuccess, MediaURL: finalURL})
	return outcome
}

// reply sends msg and swallows delivery failures. It is detached from the
// request context so a closed webhook connection does not drop replies.
func (h *WebhookHandler) reply(ctx context.Context, msg channel.OutboundMessage) {
	if h.messenger == nil {
		h.logger.Warn("reply skipped: messenger not configured", slog.String("to", msg.To))
		return
	}
	err := h.messenger.SendReply(context.WithoutCancel(ctx), msg)
	h.metrics.ReplySent(err)
	if err != nil {
		h.logger.Error("send reply failed", slog.String("to", msg.To), slog.Any("error", err))
	}
}

func ack(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMEApplicationXML, []byte(EmptyTwiML))
}

