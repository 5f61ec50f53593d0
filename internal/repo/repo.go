// Package repo defines the storage capabilities the engine depends on.
// Backends live in repo/sqlite (production) and repo/memory (tests and
// simulated-latency client work).
package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taskboard/internal/domain"
)

var ErrNotFound = errors.New("not found")

// NotFoundError carries the entity kind while still matching ErrNotFound
// through errors.Is.
type NotFoundError struct {
	Kind string
}

func (e NotFoundError) Error() string        { return e.Kind + " not found" }
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TaskPatch merges only the fields that are set. An all-nil patch is legal
// and still refreshes the task's LastUpdated stamp.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *domain.Status
	DueDate     *string
	CreatedBy   *string
}

type SubTaskPatch struct {
	Title       *string
	Description *string
	Assignees   *[]string
	Progress    *int
	DueDate     *string
}

// TaskStore is the authoritative holder of the task collection. Every
// mutation applies atomically and returns the full updated task so callers
// can swap state wholesale.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch, now string) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error

	AddSubtask(ctx context.Context, taskID string, st domain.SubTask, now string) (domain.Task, error)
	UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch SubTaskPatch, now string) (domain.Task, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string, now string) (domain.Task, error)

	AddComment(ctx context.Context, taskID, subtaskID string, c domain.Comment, now string) (domain.Task, error)
	EditComment(ctx context.Context, taskID, subtaskID, commentID, text, now string) (domain.Task, error)
	DeleteComment(ctx context.Context, taskID, subtaskID, commentID, now string) (domain.Task, error)

	AddParticipant(ctx context.Context, taskID string, p domain.Participant, now string) (domain.Task, error)
	RemoveParticipant(ctx context.Context, taskID, email, now string) (domain.Task, error)
}

// UserStore persists accounts for the auth endpoints. Emails are unique.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// NextSubtaskID forms the next subtask id as parent id plus sequence. The
// sequence survives deletions: it is one past the highest seen, never a
// reused slot.
func NextSubtaskID(taskID string, existing []domain.SubTask) string {
	max := 0
	prefix := taskID + "-"
	for _, st := range existing {
		if !strings.HasPrefix(st.ID, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(st.ID, prefix)); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%d", taskID, max+1)
}
