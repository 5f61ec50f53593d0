package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/internal/domain"
)

func TestApplyTentativeDoesNotMutateInput(t *testing.T) {
	base := []domain.Comment{{ID: "c1", Text: "first"}}
	tentative := domain.Comment{ID: TentativeID(time.Now()), Text: "pending"}
	next := ApplyTentative(base, tentative)
	if len(base) != 1 {
		t.Fatalf("input mutated: len %d", len(base))
	}
	if len(next) != 2 || next[1].ID != tentative.ID {
		t.Fatalf("tentative not appended: %+v", next)
	}
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	base := []domain.Comment{{ID: "c1"}, {ID: "c2"}}
	id := TentativeID(time.Now())
	next := ApplyTentative(base, domain.Comment{ID: id})
	back := Rollback(next, id)
	if len(back) != len(base) {
		t.Fatalf("got %d comments, want %d", len(back), len(base))
	}
	for i := range base {
		if back[i].ID != base[i].ID {
			t.Fatalf("comment %d: got %s, want %s", i, back[i].ID, base[i].ID)
		}
	}
}

func TestIsTentative(t *testing.T) {
	if !IsTentative(TentativeID(time.Now())) {
		t.Fatal("generated id not recognized as tentative")
	}
	if IsTentative("b9c7e1") {
		t.Fatal("server id misclassified as tentative")
	}
}

func TestSessionAddCommentSuccess(t *testing.T) {
	s := NewSession()
	s.Seed("1-1", []domain.Comment{{ID: "c1", Text: "existing"}})

	send := func(ctx context.Context, c domain.Comment) (domain.Task, error) {
		// Authoritative response carries the server-assigned id.
		return domain.Task{Subtasks: []domain.SubTask{{
			ID: "1-1",
			Comments: []domain.Comment{
				{ID: "c1", Text: "existing"},
				{ID: "srv-2", Text: c.Text},
			},
		}}}, nil
	}
	if err := s.AddComment(context.Background(), "1-1", domain.Comment{Text: "hello"}, send); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	got := s.Comments("1-1")
	if len(got) != 2 {
		t.Fatalf("got %d comments, want 2", len(got))
	}
	final := 0
	for _, c := range got {
		if IsTentative(c.ID) {
			t.Fatalf("tentative residue %s after commit", c.ID)
		}
		if c.Text == "hello" {
			final++
		}
	}
	if final != 1 {
		t.Fatalf("got %d final entries for the new comment, want 1", final)
	}
}

func TestSessionAddCommentFailureRollsBack(t *testing.T) {
	s := NewSession()
	before := []domain.Comment{{ID: "c1", Text: "existing"}}
	s.Seed("1-1", before)

	send := func(ctx context.Context, c domain.Comment) (domain.Task, error) {
		return domain.Task{}, errors.New("backend down")
	}
	if err := s.AddComment(context.Background(), "1-1", domain.Comment{Text: "doomed"}, send); err == nil {
		t.Fatal("expected send error")
	}
	got := s.Comments("1-1")
	if len(got) != len(before) {
		t.Fatalf("got %d comments, want pre-mutation %d", len(got), len(before))
	}
	if got[0].ID != "c1" {
		t.Fatalf("unexpected state after rollback: %+v", got)
	}
}

func TestSessionStageIsVisibleImmediately(t *testing.T) {
	s := NewSession()
	s.Seed("1-1", nil)
	id := s.Stage("1-1", domain.Comment{Text: "instant"})
	got := s.Comments("1-1")
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("staged comment not visible: %+v", got)
	}
	if !IsTentative(id) {
		t.Fatalf("staged id %s not tentative", id)
	}
}

func TestSessionDropsResponsesAfterUnmount(t *testing.T) {
	s := NewSession()
	s.Seed("1-1", nil)
	s.Stage("1-1", domain.Comment{Text: "late"})
	staged := s.Comments("1-1")
	s.Unmount()
	s.Resolve("1-1", []domain.Comment{{ID: "srv-1", Text: "late"}})
	got := s.Comments("1-1")
	if len(got) != len(staged) || !IsTentative(got[0].ID) {
		t.Fatalf("resolve applied after unmount: %+v", got)
	}
	s.Reject("1-1")
	if got := s.Comments("1-1"); len(got) != 1 {
		t.Fatalf("reject applied after unmount: %+v", got)
	}
}

func TestSessionLastWriteWins(t *testing.T) {
	s := NewSession()
	s.Seed("1-1", nil)
	s.Stage("1-1", domain.Comment{Text: "one"})
	s.Stage("1-1", domain.Comment{Text: "two"})
	// Two responses resolve out of order; the later one replaces wholesale.
	s.Resolve("1-1", []domain.Comment{{ID: "srv-1", Text: "one"}})
	s.Resolve("1-1", []domain.Comment{{ID: "srv-1", Text: "one"}, {ID: "srv-2", Text: "two"}})
	got := s.Comments("1-1")
	if len(got) != 2 || got[1].ID != "srv-2" {
		t.Fatalf("last response did not win: %+v", got)
	}
}
