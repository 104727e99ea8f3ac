package model

import (
	"errors"
	"net/http"
)

// ErrorCode классифицирует ошибки для клиента
type ErrorCode string

const (
	CodeNotFound  ErrorCode = "not_found"
	CodeForbidden ErrorCode = "forbidden"
	CodeConflict  ErrorCode = "conflict"
	CodeInvalid   ErrorCode = "invalid"
	CodeInternal  ErrorCode = "internal"
)

// Доменные ошибки протокола бронирования
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrRequestNotFound = errors.New("schedule request not found")

	ErrForbidden     = errors.New("action not allowed for this user")
	ErrNotATeacher   = errors.New("user is not a teacher")
	ErrNotAStudent   = errors.New("user is not a student")
	ErrNotSlotOwner  = errors.New("slot does not belong to teacher")
	ErrNotSlotHolder = errors.New("slot is not booked by this student")

	ErrSlotOverlap     = errors.New("slot overlaps an existing slot")
	ErrSlotConflict    = errors.New("slot id already used with different bounds")
	ErrSlotUnavailable = errors.New("slot is not available")
	ErrSlotNotBooked   = errors.New("slot is not booked")
	ErrSlotBooked      = errors.New("slot is booked and cannot be deleted")
	ErrRequestPending  = errors.New("slot already has a pending request")
	ErrRequestResolved = errors.New("schedule request is already resolved")
	ErrRequestStale    = errors.New("slot is no longer held by the requester")

	ErrInvalidInterval = errors.New("end time must be after start time")
	ErrSlotInPast      = errors.New("slot is in the past")
	ErrEmptyBatch      = errors.New("no slots given")
	ErrBatchTooLarge   = errors.New("too many slots in one batch")
	ErrInvalidRequest  = errors.New("invalid schedule request")
	ErrContentTooLong  = errors.New("course content is too long")
)

// Code возвращает код ошибки для передачи клиенту
func Code(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrRequestNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotATeacher),
		errors.Is(err, ErrNotAStudent),
		errors.Is(err, ErrNotSlotOwner),
		errors.Is(err, ErrNotSlotHolder):
		return CodeForbidden
	case errors.Is(err, ErrSlotOverlap),
		errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrSlotNotBooked),
		errors.Is(err, ErrSlotBooked),
		errors.Is(err, ErrRequestPending),
		errors.Is(err, ErrRequestResolved),
		errors.Is(err, ErrRequestStale):
		return CodeConflict
	case errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrSlotInPast),
		errors.Is(err, ErrEmptyBatch),
		errors.Is(err, ErrBatchTooLarge),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrContentTooLong):
		return CodeInvalid
	default:
		return CodeInternal
	}
}

// HTTPStatus HTTP статус для кода ошибки
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
