// Package reconcile implements optimistic mutation of comment lists: apply
// a tentative entity immediately, then either commit the authoritative
// server state or roll the tentative entity back. The primitives are pure
// functions over snapshots; Session layers pending-mutation tracking and a
// mounted flag on top.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskboard/internal/domain"
)

const tentativePrefix = "tmp-"

// TentativeID forms a locally-unique placeholder id from the clock.
func TentativeID(now time.Time) string {
	return fmt.Sprintf("%s%d", tentativePrefix, now.UnixNano())
}

// IsTentative reports whether the id is a local placeholder.
func IsTentative(id string) bool {
	return strings.HasPrefix(id, tentativePrefix)
}

// ApplyTentative returns a new snapshot with the tentative comment
// appended. The input is never mutated.
func ApplyTentative(comments []domain.Comment, tentative domain.Comment) []domain.Comment {
	res := make([]domain.Comment, 0, len(comments)+1)
	res = append(res, comments...)
	return append(res, tentative)
}

// Commit swaps in the authoritative list wholesale. The server returns the
// full updated state, so this is a replacement, not a patch.
func Commit(local, authoritative []domain.Comment) []domain.Comment {
	res := make([]domain.Comment, len(authoritative))
	copy(res, authoritative)
	return res
}

// Rollback filters the tentative entity out, restoring the pre-mutation
// snapshot.
func Rollback(comments []domain.Comment, tentativeID string) []domain.Comment {
	res := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if c.ID == tentativeID {
			continue
		}
		res = append(res, c)
	}
	return res
}

// Session holds the client-local comment state per subtask and reconciles
// it against facade responses. One tentative mutation is tracked per
// subtask at a time; overlapping mutations race and the last response to
// resolve wins at full-list granularity. In-flight requests are not
// cancelled on Unmount; their responses are dropped instead.
type Session struct {
	mu      sync.Mutex
	mounted bool
	state   map[string][]domain.Comment
	pending map[string]string
	Now     func() time.Time
}

func NewSession() *Session {
	return &Session{
		mounted: true,
		state:   map[string][]domain.Comment{},
		pending: map[string]string{},
		Now:     time.Now,
	}
}

// Seed initializes local state for a subtask, typically from a fetched task.
func (s *Session) Seed(subtaskID string, comments []domain.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[subtaskID] = Commit(nil, comments)
}

// Comments returns the current local snapshot for a subtask.
func (s *Session) Comments(subtaskID string) []domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Commit(nil, s.state[subtaskID])
}

// Unmount stops the session from applying any further responses.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = false
}

// Stage applies a tentative comment to local state and returns the
// placeholder id. A send for the same subtask should follow with Resolve
// or Reject.
func (s *Session) Stage(subtaskID string, c domain.Comment) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = TentativeID(s.Now())
	}
	c.SubtaskID = subtaskID
	s.state[subtaskID] = ApplyTentative(s.state[subtaskID], c)
	s.pending[subtaskID] = c.ID
	return c.ID
}

// Resolve commits the authoritative comment list for a subtask. Dropped
// after Unmount.
func (s *Session) Resolve(subtaskID string, authoritative []domain.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.state[subtaskID] = Commit(s.state[subtaskID], authoritative)
	delete(s.pending, subtaskID)
}

// Reject rolls the pending tentative entity back. Dropped after Unmount.
func (s *Session) Reject(subtaskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	if id, ok := s.pending[subtaskID]; ok {
		s.state[subtaskID] = Rollback(s.state[subtaskID], id)
		delete(s.pending, subtaskID)
	}
}

// AddComment runs the full optimistic flow synchronously: stage, send,
// then resolve or reject. Callers wanting an instantaneous UI update run it
// in a goroutine after reading the staged state. Any send failure triggers
// rollback regardless of error kind; there is no automatic retry.
func (s *Session) AddComment(ctx context.Context, subtaskID string, c domain.Comment, send func(context.Context, domain.Comment) (domain.Task, error)) error {
	tentative := c
	tentative.ID = ""
	s.Stage(subtaskID, tentative)
	t, err := send(ctx, c)
	if err != nil {
		s.Reject(subtaskID)
		return err
	}
	s.Resolve(subtaskID, commentsOf(t, subtaskID))
	return nil
}

func commentsOf(t domain.Task, subtaskID string) []domain.Comment {
	for _, st := range t.Subtasks {
		if st.ID == subtaskID {
			return st.Comments
		}
	}
	return nil
}
