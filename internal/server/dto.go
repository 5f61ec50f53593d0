package server

import (
	"taskboard/internal/derive"
	"taskboard/internal/domain"
)

// Request payloads

type RegisterRequest struct {
	Email       string `json:"email" format:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateTaskRequest struct {
	Title        string               `json:"title"`
	Description  *string              `json:"description,omitempty"`
	Status       *string              `json:"status,omitempty" enum:"in progress,completed,expired,closed"`
	DueDate      *string              `json:"due_date,omitempty" format:"date-time"`
	Participants []domain.Participant `json:"participants,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"in progress,completed,expired,closed"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"in progress,completed,expired,closed"`
}

type CreateSubtaskRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Assignees   []string `json:"assignees,omitempty"`
	Progress    *int     `json:"progress,omitempty" minimum:"0" maximum:"100"`
	DueDate     *string  `json:"due_date,omitempty" format:"date-time"`
}

type UpdateSubtaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Assignees   *[]string `json:"assignees,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	DueDate     *string   `json:"due_date,omitempty" format:"date-time"`
}

type SetProgressRequest struct {
	Progress int `json:"progress"`
}

type CreateCommentRequest struct {
	Text            string `json:"text"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
}

type EditCommentRequest struct {
	Text string `json:"text"`
}

type AddParticipantRequest struct {
	Email       string `json:"email" format:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Response envelopes. Mutations always return the full task so clients can
// swap their local copy wholesale instead of patching it.

type TaskEnvelope struct {
	Task domain.Task `json:"task"`
}

type TasksEnvelope struct {
	Tasks []domain.Task `json:"tasks"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}

type CalendarEnvelope struct {
	Groups []derive.DueGroup `json:"groups"`
}

type EventsEnvelope struct {
	Events []domain.Event `json:"events"`
}

func taskEnvelope(t domain.Task) TaskEnvelope {
	return TaskEnvelope{Task: t}
}

func tasksEnvelope(ts []domain.Task) TasksEnvelope {
	if ts == nil {
		ts = []domain.Task{}
	}
	return TasksEnvelope{Tasks: ts}
}
