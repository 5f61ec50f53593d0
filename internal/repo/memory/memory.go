// Package memory is an in-memory TaskStore. It backs tests and the
// `serve --memory` mode, where an optional simulated delay mimics network
// conditions for client work. Every mutation applies atomically under one
// lock; returned values are deep copies and never alias store state.
package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"taskboard/internal/derive"
	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

type Store struct {
	mu    sync.Mutex
	order []string
	tasks map[string]*domain.Task
	users map[string]domain.User

	// Latency is the fixed delay applied before every operation; Jitter
	// adds a random amount in [0, Jitter). Both zero by default.
	Latency time.Duration
	Jitter  time.Duration
}

func New() *Store {
	return &Store{
		tasks: map[string]*domain.Task{},
		users: map[string]domain.User{},
	}
}

// WithLatency returns a store that delays every operation, as a stand-in
// for backend round-trips.
func WithLatency(latency, jitter time.Duration) *Store {
	s := New()
	s.Latency = latency
	s.Jitter = jitter
	return s
}

func (s *Store) delay(ctx context.Context) error {
	d := s.Latency
	if s.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(s.Jitter)))
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]domain.Task, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, copyTask(s.tasks[id]))
	}
	return res, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, repo.NotFoundError{Kind: "task"}
	}
	return copyTask(t), nil
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyTask(&t)
	s.tasks[t.ID] = &stored
	s.order = append(s.order, t.ID)
	return copyTask(&stored), nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, patch repo.TaskPatch, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, repo.NotFoundError{Kind: "task"}
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.CreatedBy != nil {
		t.CreatedBy = *patch.CreatedBy
	}
	t.LastUpdated = now
	return copyTask(t), nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := s.delay(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return repo.NotFoundError{Kind: "task"}
	}
	delete(s.tasks, id)
	for i, tid := range s.order {
		if tid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) AddSubtask(ctx context.Context, taskID string, st domain.SubTask, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, repo.NotFoundError{Kind: "task"}
	}
	if st.ID == "" {
		st.ID = repo.NextSubtaskID(taskID, t.Subtasks)
	}
	st.TaskID = taskID
	t.Subtasks = append(t.Subtasks, copySubtask(st))
	t.LastUpdated = now
	return copyTask(t), nil
}

func (s *Store) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch repo.SubTaskPatch, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, st, err := s.locate(taskID, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if patch.Title != nil {
		st.Title = *patch.Title
	}
	if patch.Description != nil {
		st.Description = *patch.Description
	}
	if patch.Assignees != nil {
		st.Assignees = append([]string(nil), (*patch.Assignees)...)
	}
	if patch.Progress != nil {
		st.Progress = *patch.Progress
	}
	if patch.DueDate != nil {
		st.DueDate = *patch.DueDate
	}
	st.LastUpdated = now
	t.LastUpdated = now
	return copyTask(t), nil
}

func (s *Store) DeleteSubtask(ctx context.Context, taskID, subtaskID string, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, repo.NotFoundError{Kind: "task"}
	}
	for i, st := range t.Subtasks {
		if st.ID == subtaskID {
			t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
			t.LastUpdated = now
			return copyTask(t), nil
		}
	}
	return domain.Task{}, repo.NotFoundError{Kind: "subtask"}
}

func (s *Store) AddComment(ctx context.Context, taskID, subtaskID string, c domain.Comment, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, st, err := s.locate(taskID, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	c.SubtaskID = subtaskID
	st.Comments = append(st.Comments, c)
	st.LastUpdated = now
	t.LastUpdated = now
	return copyTask(t), nil
}

func (s *Store) EditComment(ctx context.Context, taskID, subtaskID, commentID, text, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, st, err := s.locate(taskID, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	for i := range st.Comments {
		if st.Comments[i].ID == commentID {
			st.Comments[i].Text = text
			st.Comments[i].IsEdited = true
			st.Comments[i].UpdatedAt = now
			st.LastUpdated = now
			t.LastUpdated = now
			return copyTask(t), nil
		}
	}
	return domain.Task{}, repo.NotFoundError{Kind: "comment"}
}

// DeleteComment removes a single comment by id. Replies keep their parent
// pointer; orphaning is intentional, there is no cascade.
func (s *Store) DeleteComment(ctx context.Context, taskID, subtaskID, commentID, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, st, err := s.locate(taskID, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	for i := range st.Comments {
		if st.Comments[i].ID == commentID {
			st.Comments = append(st.Comments[:i], st.Comments[i+1:]...)
			st.LastUpdated = now
			t.LastUpdated = now
			return copyTask(t), nil
		}
	}
	return domain.Task{}, repo.NotFoundError{Kind: "comment"}
}

func (s *Store) AddParticipant(ctx context.Context, taskID string, p domain.Participant, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, repo.NotFoundError{Kind: "task"}
	}
	for _, existing := range t.Participants {
		if existing.Email == p.Email {
			return domain.Task{}, domain.ConflictError{Reason: "participant " + p.Email + " already present"}
		}
	}
	t.Participants = append(t.Participants, p)
	t.LastUpdated = now
	return copyTask(t), nil
}

func (s *Store) RemoveParticipant(ctx context.Context, taskID, email, now string) (domain.Task, error) {
	if err := s.delay(ctx); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, repo.NotFoundError{Kind: "task"}
	}
	for i, existing := range t.Participants {
		if existing.Email == email {
			t.Participants = append(t.Participants[:i], t.Participants[i+1:]...)
			t.LastUpdated = now
			return copyTask(t), nil
		}
	}
	return domain.Task{}, repo.NotFoundError{Kind: "participant"}
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if err := s.delay(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return domain.ConflictError{Reason: "email " + u.Email + " already registered"}
	}
	s.users[u.Email] = u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := s.delay(ctx); err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return domain.User{}, repo.NotFoundError{Kind: "user"}
	}
	return u, nil
}

// locate must run with the lock held.
func (s *Store) locate(taskID, subtaskID string) (*domain.Task, *domain.SubTask, error) {
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, repo.NotFoundError{Kind: "task"}
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			return t, &t.Subtasks[i], nil
		}
	}
	return nil, nil, repo.NotFoundError{Kind: "subtask"}
}

func copyTask(t *domain.Task) domain.Task {
	res := *t
	res.Participants = append([]domain.Participant(nil), t.Participants...)
	res.Subtasks = make([]domain.SubTask, len(t.Subtasks))
	for i, st := range t.Subtasks {
		res.Subtasks[i] = copySubtask(st)
	}
	res.Progress = derive.TaskProgress(res.Subtasks)
	return res
}

func copySubtask(st domain.SubTask) domain.SubTask {
	res := st
	res.Assignees = append([]string(nil), st.Assignees...)
	res.Comments = append([]domain.Comment(nil), st.Comments...)
	return res
}
