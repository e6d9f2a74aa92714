package dto

import "encoding/json"

// CreateConfirmationRequest is the request body for confirmation creation.
type CreateConfirmationRequest struct {
	ConfirmationType    string          `json:"confirmation_type" binding:"required,max=50"`
	Title               string          `json:"title" binding:"required,min=1,max=200"`
	Description         string          `json:"description" binding:"max=2000"`
	Priority            string          `json:"priority" binding:"required,max=20"`
	ShipmentID          *string         `json:"shipment_id,omitempty" binding:"omitempty,uuid"`
	Participants        []string        `json:"participants" binding:"required,min=1,max=50,dive,required,max=100,safe_id"`
	VerificationMethods json.RawMessage `json:"verification_methods,omitempty"`
	Location            json.RawMessage `json:"location,omitempty"`
	ExpiresInHours      *int            `json:"expires_in_hours,omitempty"`
}

// ConfirmRequest is the request body for a participant confirmation.
type ConfirmRequest struct {
	ParticipantID    string          `json:"participant_id" binding:"required,max=100,safe_id"`
	VerificationData json.RawMessage `json:"verification_data,omitempty"`
	Signature        *string         `json:"signature,omitempty" binding:"omitempty,max=512"`
}

// ParticipantResponse mirrors one participant's confirmation state.
type ParticipantResponse struct {
	ParticipantID    string          `json:"participant_id"`
	Confirmed        bool            `json:"confirmed"`
	ConfirmedAt      *string         `json:"confirmed_at,omitempty"`
	VerificationData json.RawMessage `json:"verification_data,omitempty"`
	Signature        *string         `json:"signature,omitempty"`
}

// ConfirmationResponse is the full confirmation representation.
type ConfirmationResponse struct {
	ID                  string                `json:"id"`
	ConfirmationType    string                `json:"confirmation_type"`
	Title               string                `json:"title"`
	Description         string                `json:"description,omitempty"`
	Priority            string                `json:"priority"`
	ShipmentID          *string               `json:"shipment_id,omitempty"`
	Participants        []ParticipantResponse `json:"participants"`
	VerificationMethods json.RawMessage       `json:"verification_methods,omitempty"`
	Location            json.RawMessage       `json:"location,omitempty"`
	Status              string                `json:"status"`
	SettlementReference *string               `json:"settlement_reference,omitempty"`
	ExpiresAt           *string               `json:"expires_at,omitempty"`
	CreatedAt           string                `json:"created_at"`
	CompletedAt         *string               `json:"completed_at,omitempty"`
}

// ConfirmOutcomeResponse is the response body for a confirm call.
type ConfirmOutcomeResponse struct {
	Status              string  `json:"status"`
	Message             string  `json:"message"`
	ConfirmedAt         string  `json:"confirmed_at"`
	CompletedAt         *string `json:"completed_at,omitempty"`
	SettlementReference *string `json:"settlement_reference,omitempty"`
}

// CancelResponse is the response body for a cancel call.
type CancelResponse struct {
	Message string `json:"message"`
}

// ConfirmationListResponse wraps a status-filtered listing.
type ConfirmationListResponse struct {
	Items []ConfirmationResponse `json:"items"`
	Count int                    `json:"count"`
}
