// Package protocol describes the real-time wire contract between the
// scheduling server and browser clients.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
)

// Client -> server intents
const (
	EventAddTimeSlots            = "add-time-slots"
	EventBookSlot                = "book-slot"
	EventConfirmBooking          = "confirm-booking"
	EventModifyRequest           = "modify-request"
	EventApproveModification     = "approve-modification"
	EventRejectModification      = "reject-modification"
	EventDeleteTimeSlot          = "delete-time-slot"
	EventRequestInitialData      = "request-initial-data"
	EventRequestProcessedHistory = "request-processed-history"
)

// Server -> client notifications
const (
	EventInitialData          = "initial-data"
	EventSlotsUpdated         = "slots-updated"
	EventRequestsUpdated      = "requests-updated"
	EventProcessedHistory     = "processed-history"
	EventModificationRejected = "modification-rejected"
	EventAck                  = "ack"
	EventError                = "error"
)

// Envelope is one frame on the socket.
// ID is an optional client correlation id echoed back in ack/error frames.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AckPayload confirms an intent was applied
type AckPayload struct {
	Ref   string `json:"ref"`
	Event string `json:"event"`
}

// ErrorPayload reports a failed intent
type ErrorPayload struct {
	Ref     string          `json:"ref,omitempty"`
	Event   string          `json:"event"`
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// RejectedPayload is the payload of modification-rejected
type RejectedPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RejectInput is the object form of reject-modification
type RejectInput struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// Encode builds a frame for event with data marshalled as JSON
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = raw
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return frame, nil
}

// Decode parses an inbound frame
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed frame: %v", model.ErrInvalidRequest, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", model.ErrInvalidRequest)
	}
	return env, nil
}

// DecodeID accepts an id sent either as a bare JSON string or as an
// object carrying the given field ("slotId", "requestId").
func DecodeID(data json.RawMessage, field string) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("%w: expected id string or object", model.ErrInvalidRequest)
	}

	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", model.ErrInvalidRequest, field)
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", model.ErrInvalidRequest, field)
	}
	return id, nil
}
