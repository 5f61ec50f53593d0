// Package sqlite is the production TaskStore over modernc.org/sqlite.
// Every mutation runs in one transaction and returns the reassembled task.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"taskboard/internal/derive"
	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := assembleTask(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return assembleTask(ctx, s.DB, id)
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,status,due_date,created_by,created_at,last_updated) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), string(t.Status), nullable(t.DueDate), t.CreatedBy, t.CreatedAt, t.LastUpdated); err != nil {
		return domain.Task{}, err
	}
	for i, p := range t.Participants {
		if _, err := tx.ExecContext(ctx, `INSERT INTO participants(task_id,email,display_name,position) VALUES (?,?,?,?)`,
			t.ID, p.Email, nullable(p.DisplayName), i); err != nil {
			return domain.Task{}, err
		}
	}
	for i, st := range t.Subtasks {
		if err := insertSubtask(ctx, tx, t.ID, st, i); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, t.ID)
}

func (s *Store) UpdateTask(ctx context.Context, id string, patch repo.TaskPatch, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, id); err != nil {
		return domain.Task{}, err
	}
	fields := []string{"last_updated=?"}
	args := []any{now}
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*patch.Description))
	}
	if patch.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, string(*patch.Status))
	}
	if patch.DueDate != nil {
		fields = append(fields, "due_date=?")
		args = append(args, nullable(*patch.DueDate))
	}
	if patch.CreatedBy != nil {
		fields = append(fields, "created_by=?")
		args = append(args, *patch.CreatedBy)
	}
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(fields, ",")+` WHERE id=?`, args...); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, id)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.NotFoundError{Kind: "task"}
	}
	return nil
}

func (s *Store) AddSubtask(ctx context.Context, taskID string, st domain.SubTask, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	if st.ID == "" {
		existing, err := subtaskIDs(ctx, tx, taskID)
		if err != nil {
			return domain.Task{}, err
		}
		st.ID = repo.NextSubtaskID(taskID, existing)
	}
	pos, err := nextPosition(ctx, tx, `SELECT COALESCE(MAX(position),-1)+1 FROM subtasks WHERE task_id=?`, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := insertSubtask(ctx, tx, taskID, st, pos); err != nil {
		return domain.Task{}, err
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch repo.SubTaskPatch, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	if err := subtaskExists(ctx, tx, taskID, subtaskID); err != nil {
		return domain.Task{}, err
	}
	fields := []string{"last_updated=?"}
	args := []any{now}
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*patch.Description))
	}
	if patch.Progress != nil {
		fields = append(fields, "progress=?")
		args = append(args, *patch.Progress)
	}
	if patch.DueDate != nil {
		fields = append(fields, "due_date=?")
		args = append(args, nullable(*patch.DueDate))
	}
	args = append(args, subtaskID)
	if _, err := tx.ExecContext(ctx, `UPDATE subtasks SET `+strings.Join(fields, ",")+` WHERE id=?`, args...); err != nil {
		return domain.Task{}, err
	}
	if patch.Assignees != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtask_assignees WHERE subtask_id=?`, subtaskID); err != nil {
			return domain.Task{}, err
		}
		for i, email := range *patch.Assignees {
			if _, err := tx.ExecContext(ctx, `INSERT INTO subtask_assignees(subtask_id,email,position) VALUES (?,?,?)`, subtaskID, email, i); err != nil {
				return domain.Task{}, err
			}
		}
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) DeleteSubtask(ctx context.Context, taskID, subtaskID string, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE id=? AND task_id=?`, subtaskID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, repo.NotFoundError{Kind: "subtask"}
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) AddComment(ctx context.Context, taskID, subtaskID string, c domain.Comment, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	if err := subtaskExists(ctx, tx, taskID, subtaskID); err != nil {
		return domain.Task{}, err
	}
	pos, err := nextPosition(ctx, tx, `SELECT COALESCE(MAX(position),-1)+1 FROM comments WHERE subtask_id=?`, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO comments(id,subtask_id,text,author_id,author_name,parent_comment_id,is_edited,created_at,updated_at,position) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, subtaskID, c.Text, c.AuthorID, nullable(c.AuthorName), nullable(c.ParentCommentID), boolToInt(c.IsEdited), c.CreatedAt, nullable(c.UpdatedAt), pos); err != nil {
		return domain.Task{}, err
	}
	if err := touchSubtask(ctx, tx, subtaskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) EditComment(ctx context.Context, taskID, subtaskID, commentID, text, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	if err := subtaskExists(ctx, tx, taskID, subtaskID); err != nil {
		return domain.Task{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE comments SET text=?, is_edited=1, updated_at=? WHERE id=? AND subtask_id=?`, text, now, commentID, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, repo.NotFoundError{Kind: "comment"}
	}
	if err := touchSubtask(ctx, tx, subtaskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

// DeleteComment removes one comment. Replies keep their parent pointer and
// surface as orphaned top-level-like entries; there is no cascade.
func (s *Store) DeleteComment(ctx context.Context, taskID, subtaskID, commentID, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	if err := subtaskExists(ctx, tx, taskID, subtaskID); err != nil {
		return domain.Task{}, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id=? AND subtask_id=?`, commentID, subtaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, repo.NotFoundError{Kind: "comment"}
	}
	if err := touchSubtask(ctx, tx, subtaskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) AddParticipant(ctx context.Context, taskID string, p domain.Participant, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE task_id=? AND email=?`, taskID, p.Email).Scan(&one)
	if err == nil {
		return domain.Task{}, domain.ConflictError{Reason: "participant " + p.Email + " already present"}
	}
	if err != sql.ErrNoRows {
		return domain.Task{}, err
	}
	pos, err := nextPosition(ctx, tx, `SELECT COALESCE(MAX(position),-1)+1 FROM participants WHERE task_id=?`, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO participants(task_id,email,display_name,position) VALUES (?,?,?,?)`,
		taskID, p.Email, nullable(p.DisplayName), pos); err != nil {
		return domain.Task{}, err
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) RemoveParticipant(ctx context.Context, taskID, email, now string) (domain.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, taskID); err != nil {
		return domain.Task{}, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE task_id=? AND email=?`, taskID, email)
	if err != nil {
		return domain.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, repo.NotFoundError{Kind: "participant"}
	}
	if err := touchTask(ctx, tx, taskID, now); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return assembleTask(ctx, s.DB, taskID)
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email=?`, u.Email).Scan(&one)
	if err == nil {
		return domain.ConflictError{Reason: "email " + u.Email + " already registered"}
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO users(id,email,display_name,password_hash,created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Email, nullable(u.DisplayName), u.PasswordHash, u.CreatedAt)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	var displayName sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT id,email,display_name,password_hash,created_at FROM users WHERE email=?`, email).
		Scan(&u.ID, &u.Email, &displayName, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, repo.NotFoundError{Kind: "user"}
	}
	if err != nil {
		return u, err
	}
	if displayName.Valid {
		u.DisplayName = displayName.String
	}
	return u, nil
}

// --- helpers ---

func assembleTask(ctx context.Context, q querier, id string) (domain.Task, error) {
	var t domain.Task
	var description, dueDate sql.NullString
	var status string
	err := q.QueryRowContext(ctx, `SELECT id,title,description,status,due_date,created_by,created_at,last_updated FROM tasks WHERE id=?`, id).
		Scan(&t.ID, &t.Title, &description, &status, &dueDate, &t.CreatedBy, &t.CreatedAt, &t.LastUpdated)
	if err == sql.ErrNoRows {
		return t, repo.NotFoundError{Kind: "task"}
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.Status(status)
	if description.Valid {
		t.Description = description.String
	}
	if dueDate.Valid {
		t.DueDate = dueDate.String
	}

	rows, err := q.QueryContext(ctx, `SELECT email,COALESCE(display_name,'') FROM participants WHERE task_id=? ORDER BY position ASC`, id)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.Email, &p.DisplayName); err != nil {
			return t, err
		}
		t.Participants = append(t.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return t, err
	}

	subtasks, err := loadSubtasks(ctx, q, id)
	if err != nil {
		return t, err
	}
	t.Subtasks = subtasks
	t.Progress = derive.TaskProgress(t.Subtasks)
	return t, nil
}

func loadSubtasks(ctx context.Context, q querier, taskID string) ([]domain.SubTask, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,task_id,title,COALESCE(description,''),progress,COALESCE(due_date,''),created_by,created_at,last_updated FROM subtasks WHERE task_id=? ORDER BY position ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SubTask
	for rows.Next() {
		var st domain.SubTask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Description, &st.Progress, &st.DueDate, &st.CreatedBy, &st.CreatedAt, &st.LastUpdated); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		assignees, err := loadAssignees(ctx, q, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Assignees = assignees
		comments, err := loadComments(ctx, q, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Comments = comments
	}
	return res, nil
}

func loadAssignees(ctx context.Context, q querier, subtaskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT email FROM subtask_assignees WHERE subtask_id=? ORDER BY position ASC`, subtaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		res = append(res, email)
	}
	return res, rows.Err()
}

func loadComments(ctx context.Context, q querier, subtaskID string) ([]domain.Comment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,subtask_id,text,author_id,COALESCE(author_name,''),COALESCE(parent_comment_id,''),is_edited,created_at,COALESCE(updated_at,'') FROM comments WHERE subtask_id=? ORDER BY position ASC`, subtaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var edited int
		if err := rows.Scan(&c.ID, &c.SubtaskID, &c.Text, &c.AuthorID, &c.AuthorName, &c.ParentCommentID, &edited, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.IsEdited = edited != 0
		res = append(res, c)
	}
	return res, rows.Err()
}

func insertSubtask(ctx context.Context, tx *sql.Tx, taskID string, st domain.SubTask, pos int) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO subtasks(id,task_id,title,description,progress,due_date,created_by,created_at,last_updated,position) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		st.ID, taskID, st.Title, nullable(st.Description), st.Progress, nullable(st.DueDate), st.CreatedBy, st.CreatedAt, st.LastUpdated, pos); err != nil {
		return err
	}
	for i, email := range st.Assignees {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subtask_assignees(subtask_id,email,position) VALUES (?,?,?)`, st.ID, email, i); err != nil {
			return err
		}
	}
	for i, c := range st.Comments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO comments(id,subtask_id,text,author_id,author_name,parent_comment_id,is_edited,created_at,updated_at,position) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			c.ID, st.ID, c.Text, c.AuthorID, nullable(c.AuthorName), nullable(c.ParentCommentID), boolToInt(c.IsEdited), c.CreatedAt, nullable(c.UpdatedAt), i); err != nil {
			return err
		}
	}
	return nil
}

func subtaskIDs(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.SubTask, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM subtasks WHERE task_id=?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SubTask
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, domain.SubTask{ID: id})
	}
	return res, rows.Err()
}

func taskExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id=?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return repo.NotFoundError{Kind: "task"}
	}
	return err
}

func subtaskExists(ctx context.Context, tx *sql.Tx, taskID, subtaskID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM subtasks WHERE id=? AND task_id=?`, subtaskID, taskID).Scan(&one)
	if err == sql.ErrNoRows {
		return repo.NotFoundError{Kind: "subtask"}
	}
	return err
}

func nextPosition(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	var pos int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&pos)
	return pos, err
}

func touchTask(ctx context.Context, tx *sql.Tx, id, now string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET last_updated=? WHERE id=?`, now, id)
	return err
}

func touchSubtask(ctx context.Context, tx *sql.Tx, id, now string) error {
	_, err := tx.ExecContext(ctx, `UPDATE subtasks SET last_updated=? WHERE id=?`, now, id)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
