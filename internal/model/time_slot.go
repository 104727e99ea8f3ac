package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusFree SlotStatus = "free" // Свободен для записи
	SlotStatusBusy SlotStatus = "busy" // Занят студентом (ожидает подтверждения или подтверждён)
)

// TimeSlot бронируемый интервал в календаре учителя
type TimeSlot struct {
	ID            uuid.UUID  `json:"id"`
	TeacherID     int64      `json:"teacherId"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	Status        SlotStatus `json:"status"`
	IsConfirmed   bool       `json:"isConfirmed"`
	StudentID     *int64     `json:"studentId,omitempty"` // nil пока слот свободен
	StudentName   string     `json:"studentName,omitempty"`
	CourseContent string     `json:"courseContent,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsFree проверяет что слот свободен
func (s *TimeSlot) IsFree() bool {
	return s.Status == SlotStatusFree
}

// IsPending проверяет что слот забронирован, но учитель ещё не подтвердил
func (s *TimeSlot) IsPending() bool {
	return s.Status == SlotStatusBusy && !s.IsConfirmed
}

// HeldBy проверяет что слот забронирован указанным студентом
func (s *TimeSlot) HeldBy(studentID int64) bool {
	return s.Status == SlotStatusBusy && s.StudentID != nil && *s.StudentID == studentID
}

// Overlaps проверяет пересечение с полуоткрытым интервалом [start, end)
func (s *TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// Release возвращает слот в свободное состояние
func (s *TimeSlot) Release() {
	s.Status = SlotStatusFree
	s.IsConfirmed = false
	s.StudentID = nil
	s.StudentName = ""
	s.CourseContent = ""
}

// TimeSlotInput слот, присланный учителем в add-time-slots
type TimeSlotInput struct {
	ID        uuid.UUID `json:"id"` // uuid.Nil - сгенерировать на сервере
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// BookSlotInput данные бронирования от студента
type BookSlotInput struct {
	SlotID        uuid.UUID `json:"slotId"`
	StudentID     int64     `json:"studentId,omitempty"`
	StudentName   string    `json:"studentName"`
	CourseContent string    `json:"courseContent"`
}
