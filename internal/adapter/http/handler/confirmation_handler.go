package handler

import (
	"context"
	"strconv"
	"time"

	"shipment-confirmation-service/internal/adapter/http/dto"
	"shipment-confirmation-service/internal/core/domain"
	"shipment-confirmation-service/internal/core/ports"
	"shipment-confirmation-service/pkg/apperror"
	"shipment-confirmation-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConfirmationHandler handles confirmation endpoints.
type ConfirmationHandler struct {
	svc ports.ConfirmationService
}

// NewConfirmationHandler creates a new ConfirmationHandler.
func NewConfirmationHandler(svc ports.ConfirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{svc: svc}
}

// Create handles POST /api/v1/confirmations.
func (h *ConfirmationHandler) Create(c *gin.Context) {
	var req dto.CreateConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var shipmentID *uuid.UUID
	if req.ShipmentID != nil {
		id, err := uuid.Parse(*req.ShipmentID)
		if err != nil {
			response.Error(c, apperror.Validation("shipment_id must be a valid UUID"))
			return
		}
		shipmentID = &id
	}

	result, err := h.svc.Create(c.Request.Context(), ports.CreateConfirmationParams{
		Kind:                req.ConfirmationType,
		Title:               req.Title,
		Description:         req.Description,
		Priority:            req.Priority,
		ShipmentID:          shipmentID,
		ParticipantIDs:      req.Participants,
		VerificationMethods: req.VerificationMethods,
		Location:            req.Location,
		ExpiresInHours:      req.ExpiresInHours,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toConfirmationResponse(result))
}

// Get handles GET /api/v1/confirmations/:id.
func (h *ConfirmationHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toConfirmationResponse(result))
}

// Confirm handles PUT /api/v1/confirmations/:id/confirm.
func (h *ConfirmationHandler) Confirm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	outcome, err := h.svc.Confirm(c.Request.Context(), id, ports.ConfirmParams{
		ParticipantID:    req.ParticipantID,
		VerificationData: req.VerificationData,
		Signature:        req.Signature,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Participant confirmed, waiting for others"
	if outcome.Status == domain.StatusCompleted {
		message = "All participants have confirmed"
	}

	resp := dto.ConfirmOutcomeResponse{
		Status:              string(outcome.Status),
		Message:             message,
		ConfirmedAt:         formatTime(outcome.ConfirmedAt),
		SettlementReference: outcome.SettlementReference,
	}
	if outcome.CompletedAt != nil {
		s := formatTime(*outcome.CompletedAt)
		resp.CompletedAt = &s
	}

	response.OK(c, resp)
}

// Cancel handles PUT /api/v1/confirmations/:id/cancel.
func (h *ConfirmationHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CancelResponse{Message: "Confirmation cancelled successfully"})
}

// ListPending handles GET /api/v1/confirmations/pending.
func (h *ConfirmationHandler) ListPending(c *gin.Context) {
	h.list(c, h.svc.ListPending)
}

// ListCompleted handles GET /api/v1/confirmations/completed.
func (h *ConfirmationHandler) ListCompleted(c *gin.Context) {
	h.list(c, h.svc.ListCompleted)
}

func (h *ConfirmationHandler) list(c *gin.Context, fn func(ctx context.Context, limit int) ([]domain.Confirmation, error)) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, apperror.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	items, err := fn(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.ConfirmationListResponse{Items: make([]dto.ConfirmationResponse, 0, len(items)), Count: len(items)}
	for i := range items {
		resp.Items = append(resp.Items, toConfirmationResponse(&items[i]))
	}
	response.OK(c, resp)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// toConfirmationResponse converts domain.Confirmation to DTO.
func toConfirmationResponse(cf *domain.Confirmation) dto.ConfirmationResponse {
	resp := dto.ConfirmationResponse{
		ID:                  cf.ID.String(),
		ConfirmationType:    string(cf.Kind),
		Title:               cf.Title,
		Description:         cf.Description,
		Priority:            string(cf.Priority),
		Participants:        make([]dto.ParticipantResponse, 0, len(cf.Participants)),
		VerificationMethods: cf.VerificationMethods,
		Location:            cf.Location,
		Status:              string(cf.Status),
		SettlementReference: cf.SettlementReference,
		CreatedAt:           formatTime(cf.CreatedAt),
	}
	if cf.ShipmentID != nil {
		s := cf.ShipmentID.String()
		resp.ShipmentID = &s
	}
	if cf.ExpiresAt != nil {
		s := formatTime(*cf.ExpiresAt)
		resp.ExpiresAt = &s
	}
	if cf.CompletedAt != nil {
		s := formatTime(*cf.CompletedAt)
		resp.CompletedAt = &s
	}
	for _, p := range cf.Participants {
		pr := dto.ParticipantResponse{
			ParticipantID:    p.ParticipantID,
			Confirmed:        p.Confirmed,
			VerificationData: p.VerificationData,
			Signature:        p.Signature,
		}
		if p.ConfirmedAt != nil {
			s := formatTime(*p.ConfirmedAt)
			pr.ConfirmedAt = &s
		}
		resp.Participants = append(resp.Participants, pr)
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05Z07:00")
}
