package domain

// Status is the closed set of task states.
type Status string

const (
	StatusInProgress Status = "in progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
	StatusClosed     Status = "closed"
)

// StatusAll is the filter wildcard, not a storable status.
const StatusAll Status = "all"

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusExpired, StatusClosed:
		return true
	}
	return false
}

// Statuses lists every valid status in display order.
func Statuses() []Status {
	return []Status{StatusInProgress, StatusCompleted, StatusExpired, StatusClosed}
}

type Participant struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type Task struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       Status        `json:"status" enum:"in progress,completed,expired,closed"`
	DueDate      string        `json:"due_date,omitempty" format:"date-time"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    string        `json:"created_at" format:"date-time"`
	LastUpdated  string        `json:"last_updated" format:"date-time"`
	Participants []Participant `json:"participants,omitempty"`
	Subtasks     []SubTask     `json:"subtasks,omitempty"`
	// Progress caches the rounded mean of subtask progress; 0 without subtasks.
	Progress int `json:"progress"`
}

type SubTask struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Assignees   []string  `json:"assignees,omitempty"`
	Progress    int       `json:"progress" minimum:"0" maximum:"100"`
	DueDate     string    `json:"due_date,omitempty" format:"date-time"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   string    `json:"created_at" format:"date-time"`
	LastUpdated string    `json:"last_updated" format:"date-time"`
	Comments    []Comment `json:"comments,omitempty"`
}

// Comment is a threaded text entry on a subtask. ParentCommentID weakly
// references a sibling comment in the same subtask; deleting the parent
// leaves replies in place as orphaned top-level-like entries.
type Comment struct {
	ID              string `json:"id"`
	SubtaskID       string `json:"subtask_id"`
	Text            string `json:"text"`
	AuthorID        string `json:"author_id"`
	AuthorName      string `json:"author_name,omitempty"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	IsEdited        bool   `json:"is_edited"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at,omitempty" format:"date-time"`
}

// User is an account for the auth endpoints.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TaskID     string `json:"task_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
