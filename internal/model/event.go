package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Routing keys of domain events
const (
	EventSlotCreated      EventType = "slot.created"
	EventSlotBooked       EventType = "slot.booked"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventSlotDeleted      EventType = "slot.deleted"
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestApproved  EventType = "request.approved"
	EventRequestRejected  EventType = "request.rejected"
)

// DomainEvent is emitted after a committed state transition
type DomainEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	TeacherID  int64           `json:"teacher_id"`
	StudentID  *int64          `json:"student_id,omitempty"`
	SlotID     *uuid.UUID      `json:"slot_id,omitempty"`
	RequestID  *uuid.UUID      `json:"request_id,omitempty"`
	ActorID    int64           `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// RoutingKey returns the broker routing key
func (e DomainEvent) RoutingKey() string {
	return string(e.Type)
}

// NewSlotEvent builds an event about a slot
func NewSlotEvent(t EventType, actor Actor, slot *TimeSlot, at time.Time) DomainEvent {
	id := slot.ID
	payload, _ := json.Marshal(slot)
	return DomainEvent{
		ID:         uuid.New(),
		Type:       t,
		TeacherID:  slot.TeacherID,
		StudentID:  slot.StudentID,
		SlotID:     &id,
		ActorID:    actor.UserID,
		OccurredAt: at,
		Payload:    payload,
	}
}

// NewRequestEvent builds an event about a schedule request
func NewRequestEvent(t EventType, actor Actor, req *ScheduleRequest, at time.Time) DomainEvent {
	reqID := req.ID
	studentID := req.StudentID
	payload, _ := json.Marshal(req)
	event := DomainEvent{
		ID:         uuid.New(),
		Type:       t,
		TeacherID:  req.TeacherID,
		StudentID:  &studentID,
		RequestID:  &reqID,
		ActorID:    actor.UserID,
		OccurredAt: at,
		Payload:    payload,
	}
	if req.HasSlot() {
		slotID := req.SlotID
		event.SlotID = &slotID
	}
	return event
}
