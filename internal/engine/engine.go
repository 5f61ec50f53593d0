// Package engine is the single access path to the task collection: it
// validates input, applies mutations through the store, and records an
// event per change. Callers always get back the full authoritative task so
// they can replace local state wholesale.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

type Engine struct {
	Store  repo.TaskStore
	Users  repo.UserStore
	Events events.Log
	Now    func() time.Time
	NewID  func() string
}

func New(store repo.TaskStore, users repo.UserStore, log events.Log) Engine {
	return Engine{
		Store:  store,
		Users:  users,
		Events: log,
		Now:    time.Now,
		NewID:  func() string { return uuid.New().String() },
	}
}

func (e Engine) now() string {
	if e.Now != nil {
		return e.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.New().String()
}

// record appends the change to the event log. The store mutation has
// already committed when this runs, so a failure surfaces to the caller
// without undoing the change.
func (e Engine) record(ctx context.Context, evtType, taskID, entityKind, entityID, actorID string, payload events.Payload) error {
	if e.Events == nil {
		return nil
	}
	if err := e.Events.Append(ctx, evtType, taskID, entityKind, entityID, actorID, payload); err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

// TaskDraft carries the caller-supplied fields for a new task.
type TaskDraft struct {
	Title        string
	Description  string
	Status       domain.Status
	DueDate      string
	Participants []domain.Participant
	ActorID      string
}

func (e Engine) GetTasks(ctx context.Context) ([]domain.Task, error) {
	return e.Store.ListTasks(ctx)
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Store.GetTask(ctx, id)
}

func (e Engine) CreateTask(ctx context.Context, draft TaskDraft) (domain.Task, error) {
	if draft.Title == "" {
		return domain.Task{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if draft.Status == "" {
		draft.Status = domain.StatusInProgress
	}
	if !draft.Status.Valid() {
		return domain.Task{}, domain.ValidationError{Field: "status", Reason: "unknown status " + string(draft.Status)}
	}
	if draft.DueDate != "" {
		if _, err := time.Parse(time.RFC3339, draft.DueDate); err != nil {
			return domain.Task{}, domain.ValidationError{Field: "due_date", Reason: "must be RFC3339"}
		}
	}
	seen := map[string]bool{}
	for _, p := range draft.Participants {
		if p.Email == "" {
			return domain.Task{}, domain.ValidationError{Field: "participants", Reason: "email is required"}
		}
		if seen[p.Email] {
			return domain.Task{}, domain.ConflictError{Reason: "participant " + p.Email + " already present"}
		}
		seen[p.Email] = true
	}
	now := e.now()
	t := domain.Task{
		ID:           e.newID(),
		Title:        draft.Title,
		Description:  draft.Description,
		Status:       draft.Status,
		DueDate:      draft.DueDate,
		CreatedBy:    draft.ActorID,
		CreatedAt:    now,
		LastUpdated:  now,
		Participants: draft.Participants,
	}
	created, err := e.Store.CreateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "task.created", created.ID, "task", created.ID, draft.ActorID, events.Payload{"title": created.Title, "status": created.Status}); err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

func (e Engine) UpdateTask(ctx context.Context, id string, patch repo.TaskPatch, actorID string) (domain.Task, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Task{}, domain.ValidationError{Field: "status", Reason: "unknown status " + string(*patch.Status)}
	}
	if patch.Title != nil && *patch.Title == "" {
		return domain.Task{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if patch.DueDate != nil && *patch.DueDate != "" {
		if _, err := time.Parse(time.RFC3339, *patch.DueDate); err != nil {
			return domain.Task{}, domain.ValidationError{Field: "due_date", Reason: "must be RFC3339"}
		}
	}
	t, err := e.Store.UpdateTask(ctx, id, patch, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "task.updated", t.ID, "task", t.ID, actorID, events.Payload{"status": t.Status}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateTaskStatus is a convenience wrapper over UpdateTask.
func (e Engine) UpdateTaskStatus(ctx context.Context, id string, status domain.Status, actorID string) (domain.Task, error) {
	return e.UpdateTask(ctx, id, repo.TaskPatch{Status: &status}, actorID)
}

func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	if err := e.Store.DeleteTask(ctx, id); err != nil {
		return err
	}
	return e.record(ctx, "task.deleted", id, "task", id, actorID, nil)
}

// SubtaskDraft carries caller-supplied fields for a new subtask.
type SubtaskDraft struct {
	Title       string
	Description string
	Assignees   []string
	Progress    int
	DueDate     string
	ActorID     string
}

func (e Engine) AddSubtask(ctx context.Context, taskID string, draft SubtaskDraft) (domain.Task, error) {
	if draft.Title == "" {
		return domain.Task{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if draft.Progress < 0 || draft.Progress > 100 {
		return domain.Task{}, domain.ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
	}
	parent, err := e.Store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := checkAssignees(parent, draft.Assignees); err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	st := domain.SubTask{
		Title:       draft.Title,
		Description: draft.Description,
		Assignees:   draft.Assignees,
		Progress:    draft.Progress,
		DueDate:     draft.DueDate,
		CreatedBy:   draft.ActorID,
		CreatedAt:   now,
		LastUpdated: now,
	}
	t, err := e.Store.AddSubtask(ctx, taskID, st, now)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "subtask.added", taskID, "subtask", lastSubtaskID(t), draft.ActorID, events.Payload{"title": draft.Title}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch repo.SubTaskPatch, actorID string) (domain.Task, error) {
	if patch.Title != nil && *patch.Title == "" {
		return domain.Task{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if patch.Progress != nil && (*patch.Progress < 0 || *patch.Progress > 100) {
		return domain.Task{}, domain.ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
	}
	if patch.Assignees != nil {
		parent, err := e.Store.GetTask(ctx, taskID)
		if err != nil {
			return domain.Task{}, err
		}
		if err := checkAssignees(parent, *patch.Assignees); err != nil {
			return domain.Task{}, err
		}
	}
	t, err := e.Store.UpdateSubtask(ctx, taskID, subtaskID, patch, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "subtask.updated", taskID, "subtask", subtaskID, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteSubtask(ctx context.Context, taskID, subtaskID, actorID string) (domain.Task, error) {
	t, err := e.Store.DeleteSubtask(ctx, taskID, subtaskID, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "subtask.deleted", taskID, "subtask", subtaskID, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateSubtaskProgress rejects out-of-range values instead of clamping;
// clients that want the old permissive behavior must clamp themselves.
func (e Engine) UpdateSubtaskProgress(ctx context.Context, taskID, subtaskID string, progress int, actorID string) (domain.Task, error) {
	if progress < 0 || progress > 100 {
		return domain.Task{}, domain.ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
	}
	return e.UpdateSubtask(ctx, taskID, subtaskID, repo.SubTaskPatch{Progress: &progress}, actorID)
}

// CommentDraft carries caller-supplied fields for a new comment. ID is
// optional; the engine assigns one when empty.
type CommentDraft struct {
	ID              string
	Text            string
	AuthorID        string
	AuthorName      string
	ParentCommentID string
}

func (e Engine) AddComment(ctx context.Context, taskID, subtaskID string, draft CommentDraft) (domain.Task, error) {
	if draft.Text == "" {
		return domain.Task{}, domain.ValidationError{Field: "text", Reason: "is required"}
	}
	if draft.ParentCommentID != "" {
		parent, err := e.Store.GetTask(ctx, taskID)
		if err != nil {
			return domain.Task{}, err
		}
		if !hasComment(parent, subtaskID, draft.ParentCommentID) {
			return domain.Task{}, domain.ValidationError{Field: "parent_comment_id", Reason: "must reference a comment in the same subtask"}
		}
	}
	now := e.now()
	c := domain.Comment{
		ID:              draft.ID,
		Text:            draft.Text,
		AuthorID:        draft.AuthorID,
		AuthorName:      draft.AuthorName,
		ParentCommentID: draft.ParentCommentID,
		CreatedAt:       now,
	}
	if c.ID == "" {
		c.ID = e.newID()
	}
	t, err := e.Store.AddComment(ctx, taskID, subtaskID, c, now)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "comment.added", taskID, "comment", c.ID, draft.AuthorID, events.Payload{"subtask_id": subtaskID}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) EditComment(ctx context.Context, taskID, subtaskID, commentID, text, actorID string) (domain.Task, error) {
	if text == "" {
		return domain.Task{}, domain.ValidationError{Field: "text", Reason: "is required"}
	}
	t, err := e.Store.EditComment(ctx, taskID, subtaskID, commentID, text, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "comment.edited", taskID, "comment", commentID, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteComment(ctx context.Context, taskID, subtaskID, commentID, actorID string) (domain.Task, error) {
	t, err := e.Store.DeleteComment(ctx, taskID, subtaskID, commentID, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "comment.deleted", taskID, "comment", commentID, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) AddParticipant(ctx context.Context, taskID string, p domain.Participant, actorID string) (domain.Task, error) {
	if p.Email == "" {
		return domain.Task{}, domain.ValidationError{Field: "email", Reason: "is required"}
	}
	t, err := e.Store.AddParticipant(ctx, taskID, p, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "participant.added", taskID, "participant", p.Email, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) RemoveParticipant(ctx context.Context, taskID, email, actorID string) (domain.Task, error) {
	t, err := e.Store.RemoveParticipant(ctx, taskID, email, e.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.record(ctx, "participant.removed", taskID, "participant", email, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// checkAssignees enforces the soft invariant that assignees reference task
// participants; the store does not check this.
func checkAssignees(t domain.Task, assignees []string) error {
	known := map[string]bool{}
	for _, p := range t.Participants {
		known[p.Email] = true
	}
	seen := map[string]bool{}
	for _, email := range assignees {
		if seen[email] {
			return domain.ValidationError{Field: "assignees", Reason: "duplicate assignee " + email}
		}
		seen[email] = true
		if !known[email] {
			return domain.ValidationError{Field: "assignees", Reason: email + " is not a task participant"}
		}
	}
	return nil
}

func hasComment(t domain.Task, subtaskID, commentID string) bool {
	for _, st := range t.Subtasks {
		if st.ID != subtaskID {
			continue
		}
		for _, c := range st.Comments {
			if c.ID == commentID {
				return true
			}
		}
	}
	return false
}

func lastSubtaskID(t domain.Task) string {
	if len(t.Subtasks) == 0 {
		return ""
	}
	return t.Subtasks[len(t.Subtasks)-1].ID
}
