package derive

import (
	"testing"
	"time"

	"taskboard/internal/domain"
)

func TestTaskProgress(t *testing.T) {
	if got := TaskProgress(nil); got != 0 {
		t.Fatalf("empty subtasks: got %d, want 0", got)
	}
	subtasks := []domain.SubTask{{Progress: 100}, {Progress: 60}}
	if got := TaskProgress(subtasks); got != 80 {
		t.Fatalf("got %d, want 80", got)
	}
	// rounding, not truncation
	subtasks = []domain.SubTask{{Progress: 50}, {Progress: 50}, {Progress: 51}}
	if got := TaskProgress(subtasks); got != 50 {
		t.Fatalf("got %d, want 50", got)
	}
	subtasks = []domain.SubTask{{Progress: 1}, {Progress: 2}}
	if got := TaskProgress(subtasks); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}

func TestTaskProgressBounds(t *testing.T) {
	for _, subtasks := range [][]domain.SubTask{
		nil,
		{{Progress: 0}},
		{{Progress: 100}, {Progress: 100}},
		{{Progress: 33}, {Progress: 66}, {Progress: 99}},
	} {
		got := TaskProgress(subtasks)
		if got < 0 || got > 100 {
			t.Fatalf("progress %d out of [0,100] for %v", got, subtasks)
		}
	}
}

func TestGroupByDueDate(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", DueDate: "2024-03-23T10:00:00Z"},
		{ID: "b", DueDate: "2024-03-23T18:00:00Z"},
		{ID: "c", DueDate: "2024-03-25T09:00:00Z"},
		{ID: "d", DueDate: "2024-03-30T09:00:00Z"}, // outside window
		{ID: "e"}, // no due date
	}
	start := time.Date(2024, 3, 23, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 26, 23, 59, 59, 0, time.UTC)
	groups := GroupByDueDate(tasks, start, end)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].Tasks) != 2 || len(groups[1].Tasks) != 1 {
		t.Fatalf("group sizes %d/%d, want 2/1", len(groups[0].Tasks), len(groups[1].Tasks))
	}
	if groups[0].Date >= groups[1].Date {
		t.Fatalf("groups not ascending: %s then %s", groups[0].Date, groups[1].Date)
	}
}

func TestGroupByDueDateWindowInclusive(t *testing.T) {
	start := time.Date(2024, 3, 23, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 26, 0, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: "lo", DueDate: "2024-03-23T00:00:00Z"},
		{ID: "hi", DueDate: "2024-03-26T00:00:00Z"},
	}
	groups := GroupByDueDate(tasks, start, end)
	if len(groups) != 2 {
		t.Fatalf("boundary dues excluded: got %d groups, want 2", len(groups))
	}
}

func TestFilterByStatus(t *testing.T) {
	tasks := []domain.Task{
		{ID: "1", Status: domain.StatusInProgress},
		{ID: "2", Status: domain.StatusCompleted},
		{ID: "3", Status: domain.StatusInProgress},
	}
	got := FilterByStatus(tasks, domain.StatusInProgress)
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got := FilterByStatus(tasks, domain.StatusAll); len(got) != 3 {
		t.Fatalf("all filter: got %d, want 3", len(got))
	}
	if got := FilterByStatus(tasks, ""); len(got) != 3 {
		t.Fatalf("empty filter: got %d, want 3", len(got))
	}
	if got := FilterByStatus(tasks, domain.StatusExpired); len(got) != 0 {
		t.Fatalf("expired filter: got %d, want 0", len(got))
	}
}

func TestSearchMatch(t *testing.T) {
	task := domain.Task{Title: "Ship the Release", Description: "cut a tag and publish"}
	cases := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"ship", true},
		{"RELEASE", true},
		{"publish", true},
		{"deploy", false},
		{"  tag  ", true},
	}
	for _, c := range cases {
		if got := SearchMatch(task, c.query); got != c.want {
			t.Fatalf("query %q: got %v, want %v", c.query, got, c.want)
		}
	}
}
