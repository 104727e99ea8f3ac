package model

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	TelegramID *int64    `json:"telegram_id"` // для уведомлений, может быть nil
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Actor идентичность, привязанная к соединению
type Actor struct {
	UserID int64
	Name   string
	Role   Role
}

func (a Actor) IsTeacher() bool {
	return a.Role == RoleTeacher
}

func (a Actor) IsStudent() bool {
	return a.Role == RoleStudent
}

// ActorFromUser строит Actor из пользователя
func ActorFromUser(u *User) Actor {
	return Actor{UserID: u.ID, Name: u.Name, Role: u.Role}
}
