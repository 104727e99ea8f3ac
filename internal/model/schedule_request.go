package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestType describes the change a student asks for
type RequestType string

const (
	RequestTypeReschedule RequestType = "reschedule"
	RequestTypeCancel     RequestType = "cancel"
)

// RequestStatus of a schedule request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// ResolutionExpired is set on requests auto-rejected because the lesson already started
const ResolutionExpired = "expired"

// ScheduleRequest represents a student's proposed change to a booked slot.
// SlotID is uuid.Nil once the slot has been deleted; SlotStartTime and
// SlotEndTime keep the lesson time the request was made for.
type ScheduleRequest struct {
	ID            uuid.UUID     `json:"id"`
	SlotID        uuid.UUID     `json:"slotId"`
	SlotStartTime time.Time     `json:"slotStartTime"`
	SlotEndTime   time.Time     `json:"slotEndTime"`
	TeacherID     int64         `json:"teacherId"`
	StudentID     int64         `json:"studentId"`
	StudentName   string        `json:"studentName"`
	Type          RequestType   `json:"type"`
	NewStartTime  *time.Time    `json:"newStartTime,omitempty"`
	NewEndTime    *time.Time    `json:"newEndTime,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Status        RequestStatus `json:"status"`
	Resolution    string        `json:"resolution,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	ProcessedAt   *time.Time    `json:"processedAt,omitempty"`
	ProcessedBy   *int64        `json:"processedBy,omitempty"`
}

// IsPending checks if request is pending
func (r *ScheduleRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsApproved checks if request is approved
func (r *ScheduleRequest) IsApproved() bool {
	return r.Status == RequestStatusApproved
}

// HasSlot reports whether the referenced slot still exists
func (r *ScheduleRequest) HasSlot() bool {
	return r.SlotID != uuid.Nil
}

// IsRejected checks if request is rejected
func (r *ScheduleRequest) IsRejected() bool {
	return r.Status == RequestStatusRejected
}

// ModificationInput is the payload of modify-request
type ModificationInput struct {
	ID           uuid.UUID   `json:"id"`
	SlotID       uuid.UUID   `json:"slotId"`
	Type         RequestType `json:"type"`
	NewStartTime *time.Time  `json:"newStartTime,omitempty"`
	NewEndTime   *time.Time  `json:"newEndTime,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// Snapshot is the payload of initial-data
type Snapshot struct {
	TimeSlots        []*TimeSlot        `json:"timeSlots"`
	ScheduleRequests []*ScheduleRequest `json:"scheduleRequests"`
}
