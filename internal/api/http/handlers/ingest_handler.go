package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/relaydesk/relaydesk/internal/api/dto"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/service"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

// IngestHandler exposes the generic normalized ingest endpoint and the
// customer merge action.
type IngestHandler struct {
	ingest *service.IngestService
}

// NewIngestHandler constructs handler.
func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Ingest POST /ingest. Accepts a pre-normalized envelope from trusted
// internal callers and custom channel bridges.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.ingest.Ingest(c.UserContext(), service.IngestRequest{
		Channel:            domain.ChannelType(strings.ToLower(req.Channel)),
		CustomerIdentifier: req.CustomerIdentifier,
		CustomerName:       req.CustomerName,
		MessageContent:     req.MessageContent,
		ExternalID:         req.ExternalID,
		TicketID:           req.TicketID,
		Metadata:           req.Metadata,
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

// MergeCustomers POST /customers/merge. Folds a duplicate identity into its
// primary record, repointing tickets.
func (h *IngestHandler) MergeCustomers(c *fiber.Ctx) error {
	var req dto.MergeCustomersRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.PrimaryID == "" || req.SecondaryID == "" {
		return apperrors.NewValidationError("primary_id and secondary_id required", nil)
	}

	customer, err := h.ingest.MergeCustomers(c.UserContext(), req.PrimaryID, req.SecondaryID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":    customer.ID,
		"name":  customer.DisplayName(),
		"email": customer.Email,
	}})
}
