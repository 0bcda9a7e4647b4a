package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/api/dto"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/service"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

// ChannelsHandler adapts provider-specific webhook payloads into the
// normalized ingest pipeline. Provider-facing endpoints (SMS, Slack)
// always acknowledge with 200 so upstream retry storms cannot build;
// failures there are logged instead of surfaced.
type ChannelsHandler struct {
	ingest *service.IngestService
	logger *zap.Logger
}

// NewChannelsHandler constructs handler.
func NewChannelsHandler(ingest *service.IngestService, logger *zap.Logger) *ChannelsHandler {
	return &ChannelsHandler{ingest: ingest, logger: logger}
}

// Email POST /channels/email. Called by the inbound-mail bridge; errors are
// surfaced so the bridge can retry.
func (h *ChannelsHandler) Email(c *fiber.Ctx) error {
	var req dto.EmailInboundRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.From == "" || strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("from and body required", nil)
	}

	metadata := map[string]any{}
	if req.Subject != "" {
		metadata["subject"] = req.Subject
	}
	if req.InReplyTo != "" {
		metadata["thread_ref"] = req.InReplyTo
	} else if req.MessageID != "" {
		metadata["thread_ref"] = req.MessageID
	}

	content := req.Body
	if req.Subject != "" {
		content = req.Subject + "\n" + req.Body
	}

	result, err := h.ingest.Ingest(c.UserContext(), service.IngestRequest{
		Channel:            domain.ChannelEmail,
		CustomerIdentifier: req.From,
		CustomerName:       req.FromName,
		MessageContent:     content,
		ExternalID:         req.MessageID,
		Metadata:           metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": result})
}

// SMS POST /channels/sms. Twilio-shaped webhook; always acknowledged.
func (h *ChannelsHandler) SMS(c *fiber.Ctx) error {
	var req dto.SMSInboundRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("sms webhook: unparseable payload", zap.Error(err))
		return c.SendStatus(http.StatusOK)
	}
	if req.From == "" || strings.TrimSpace(req.Body) == "" {
		h.logger.Warn("sms webhook: missing From or Body")
		return c.SendStatus(http.StatusOK)
	}

	result, err := h.ingest.Ingest(c.UserContext(), service.IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: req.From,
		MessageContent:     req.Body,
		ExternalID:         req.MessageSid,
	})
	if err != nil {
		h.logger.Error("sms ingest failed",
			zap.String("from", req.From),
			zap.String("message_sid", req.MessageSid),
			zap.Error(err))
		return c.SendStatus(http.StatusOK)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": result})
}

// SMSStatus POST /channels/sms/status. Twilio-shaped delivery status
// callback; always acknowledged.
func (h *ChannelsHandler) SMSStatus(c *fiber.Ctx) error {
	var req dto.SMSStatusRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("sms status callback: unparseable payload", zap.Error(err))
		return c.SendStatus(http.StatusOK)
	}
	if req.MessageSid == "" {
		return c.SendStatus(http.StatusOK)
	}

	status, ok := deliveryStatusFromProvider(req.MessageStatus)
	if !ok {
		return c.SendStatus(http.StatusOK)
	}
	if err := h.ingest.MarkDelivery(c.UserContext(), domain.ChannelSMS, req.MessageSid, status); err != nil {
		h.logger.Error("sms delivery status update failed",
			zap.String("message_sid", req.MessageSid),
			zap.String("status", req.MessageStatus),
			zap.Error(err))
	}
	return c.SendStatus(http.StatusOK)
}

// deliveryStatusFromProvider maps provider callback statuses onto the
// message delivery lifecycle. Intermediate statuses we do not track
// (queued, accepted) are dropped.
func deliveryStatusFromProvider(providerStatus string) (domain.DeliveryStatus, bool) {
	switch strings.ToLower(providerStatus) {
	case "sent":
		return domain.DeliverySent, true
	case "delivered":
		return domain.DeliveryDelivered, true
	case "failed", "undelivered":
		return domain.DeliveryFailed, true
	default:
		return "", false
	}
}

// Slack POST /channels/slack. Handles the Events API envelope, including
// the URL verification challenge; always acknowledged.
func (h *ChannelsHandler) Slack(c *fiber.Ctx) error {
	var req dto.SlackInboundRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("slack webhook: unparseable payload", zap.Error(err))
		return c.SendStatus(http.StatusOK)
	}

	if req.Type == "url_verification" {
		return c.JSON(fiber.Map{"challenge": req.Challenge})
	}
	// Bot echoes would loop our own replies back through ingest.
	if req.Event.Type != "message" || req.Event.BotID != "" || req.Event.User == "" {
		return c.SendStatus(http.StatusOK)
	}
	if strings.TrimSpace(req.Event.Text) == "" {
		return c.SendStatus(http.StatusOK)
	}

	threadRef := req.Event.ThreadTS
	if threadRef == "" {
		threadRef = req.Event.TS
	}

	result, err := h.ingest.Ingest(c.UserContext(), service.IngestRequest{
		Channel:            domain.ChannelSlack,
		CustomerIdentifier: req.Event.User,
		MessageContent:     req.Event.Text,
		ExternalID:         req.Event.TS,
		Metadata: map[string]any{
			"thread_ref":    threadRef,
			"slack_channel": req.Event.Channel,
		},
	})
	if err != nil {
		h.logger.Error("slack ingest failed",
			zap.String("user", req.Event.User),
			zap.String("ts", req.Event.TS),
			zap.Error(err))
		return c.SendStatus(http.StatusOK)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": result})
}

// Widget POST /channels/widget. The embedded chat widget keeps an explicit
// ticket id client-side, so errors surface for in-page handling.
func (h *ChannelsHandler) Widget(c *fiber.Ctx) error {
	var req dto.WidgetInboundRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.VisitorID == "" || strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("visitor_id and message required", nil)
	}

	result, err := h.ingest.Ingest(c.UserContext(), service.IngestRequest{
		Channel:            domain.ChannelWidget,
		CustomerIdentifier: req.VisitorID,
		CustomerName:       req.Name,
		MessageContent:     req.Message,
		ExternalID:         req.RequestID,
		TicketID:           req.TicketID,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if result.IsNewTicket {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}
