package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
	"taskboard/internal/repo/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlite.New(conn)
}

const testNow = "2024-03-01T12:00:00Z"

func seedTask(t *testing.T, s *sqlite.Store, id string) domain.Task {
	t.Helper()
	created, err := s.CreateTask(context.Background(), domain.Task{
		ID:          id,
		Title:       "seeded",
		Status:      domain.StatusInProgress,
		CreatedBy:   "ana@example.com",
		CreatedAt:   testNow,
		LastUpdated: testNow,
		Participants: []domain.Participant{
			{Email: "ana@example.com", DisplayName: "Ana"},
		},
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return created
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seedTask(t, s, "t1")

	got, err := s.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "seeded" || got.Status != domain.StatusInProgress {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if len(got.Participants) != 1 || got.Participants[0].DisplayName != "Ana" {
		t.Fatalf("participants lost: %+v", got.Participants)
	}

	if _, err := s.GetTask(ctx, "absent"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing task: got %v, want ErrNotFound", err)
	}
}

func TestUpdateTaskPartialPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTask(t, s, "t1")

	title := "renamed"
	later := "2024-03-01T13:00:00Z"
	got, err := s.UpdateTask(ctx, "t1", repo.TaskPatch{Title: &title}, later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "renamed" || got.Status != domain.StatusInProgress {
		t.Fatalf("patch over-applied: %+v", got)
	}
	if got.LastUpdated != later || got.CreatedAt != testNow {
		t.Fatalf("timestamps wrong: created=%s updated=%s", got.CreatedAt, got.LastUpdated)
	}

	// empty patch still bumps last_updated
	final := "2024-03-01T14:00:00Z"
	got, err = s.UpdateTask(ctx, "t1", repo.TaskPatch{}, final)
	if err != nil {
		t.Fatalf("empty patch: %v", err)
	}
	if got.LastUpdated != final {
		t.Fatalf("empty patch did not touch task: %s", got.LastUpdated)
	}
}

func TestSubtasksAndCommentsPersist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTask(t, s, "t1")

	withSub, err := s.AddSubtask(ctx, "t1", domain.SubTask{
		Title:       "step one",
		Assignees:   []string{"ana@example.com"},
		Progress:    40,
		CreatedBy:   "ana@example.com",
		CreatedAt:   testNow,
		LastUpdated: testNow,
	}, testNow)
	if err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	st := withSub.Subtasks[0]
	if st.ID != "t1-1" || st.TaskID != "t1" {
		t.Fatalf("subtask ids: %+v", st)
	}

	withComment, err := s.AddComment(ctx, "t1", st.ID, domain.Comment{
		ID:        "c1",
		Text:      "looks good",
		AuthorID:  "ana@example.com",
		CreatedAt: testNow,
	}, testNow)
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if len(withComment.Subtasks[0].Comments) != 1 {
		t.Fatalf("comment not attached: %+v", withComment.Subtasks[0])
	}

	// reload from scratch, everything must be durable
	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 40 {
		t.Fatalf("derived progress %d, want 40", got.Progress)
	}
	if len(got.Subtasks) != 1 || len(got.Subtasks[0].Assignees) != 1 || len(got.Subtasks[0].Comments) != 1 {
		t.Fatalf("reload lost children: %+v", got)
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTask(t, s, "t1")
	if _, err := s.AddSubtask(ctx, "t1", domain.SubTask{Title: "child", CreatedAt: testNow, LastUpdated: testNow}, testNow); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTask(ctx, "t1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("task survived delete: %v", err)
	}
	if err := s.DeleteTask(ctx, "t1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestUsersUniqueEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := domain.User{ID: "u1", Email: "ana@example.com", PasswordHash: "hash", CreatedAt: testNow}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	var ce domain.ConflictError
	if err := s.CreateUser(ctx, u); !errors.As(err, &ce) {
		t.Fatalf("duplicate email: got %v, want ConflictError", err)
	}
	got, err := s.GetUserByEmail(ctx, "ana@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("lookup: %v %+v", err, got)
	}
}
