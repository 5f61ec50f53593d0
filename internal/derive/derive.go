// Package derive holds pure calculators over the task model. Nothing here
// touches storage; callers re-derive after every authoritative update.
package derive

import (
	"math"
	"sort"
	"strings"
	"time"

	"taskboard/internal/domain"
)

// TaskProgress returns the rounded mean of subtask progress, 0 when there
// are no subtasks.
func TaskProgress(subtasks []domain.SubTask) int {
	if len(subtasks) == 0 {
		return 0
	}
	sum := 0
	for _, st := range subtasks {
		sum += st.Progress
	}
	return int(math.Round(float64(sum) / float64(len(subtasks))))
}

// DueGroup is one calendar day of due tasks.
type DueGroup struct {
	Date  string        `json:"date"`
	Tasks []domain.Task `json:"tasks"`
}

// GroupByDueDate buckets tasks whose due date falls within the inclusive
// window, grouped by local calendar day and sorted ascending by date.
// Tasks without a parseable due date are skipped.
func GroupByDueDate(tasks []domain.Task, windowStart, windowEnd time.Time) []DueGroup {
	byDay := map[string][]domain.Task{}
	for _, t := range tasks {
		due, err := time.Parse(time.RFC3339, t.DueDate)
		if err != nil {
			continue
		}
		if due.Before(windowStart) || due.After(windowEnd) {
			continue
		}
		day := due.Local().Format("2006-01-02")
		byDay[day] = append(byDay[day], t)
	}
	groups := make([]DueGroup, 0, len(byDay))
	for day, items := range byDay {
		groups = append(groups, DueGroup{Date: day, Tasks: items})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date < groups[j].Date })
	return groups
}

// FilterByStatus keeps tasks with an exact status match. StatusAll or an
// empty status returns the input unchanged.
func FilterByStatus(tasks []domain.Task, status domain.Status) []domain.Task {
	if status == "" || status == domain.StatusAll {
		return tasks
	}
	var res []domain.Task
	for _, t := range tasks {
		if t.Status == status {
			res = append(res, t)
		}
	}
	return res
}

// SearchMatch reports whether the task title or description contains the
// query, case-insensitively. An empty query matches everything.
func SearchMatch(t domain.Task, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}
