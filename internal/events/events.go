// Package events is the append-only change log for task mutations.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"taskboard/internal/domain"
)

type Payload map[string]any

// Log records and replays events. The engine appends one entry per
// successful mutation.
type Log interface {
	Append(ctx context.Context, evtType, taskID, entityKind, entityID, actorID string, payload Payload) error
	Latest(ctx context.Context, limit int, taskID string) ([]domain.Event, error)
}

// SQLLog writes to the events table.
type SQLLog struct {
	DB  *sql.DB
	Now func() time.Time
}

func (l *SQLLog) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *SQLLog) Append(ctx context.Context, evtType, taskID, entityKind, entityID, actorID string, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	ts := l.now().UTC().Format(time.RFC3339)
	_, err = l.DB.ExecContext(ctx, `INSERT INTO events(ts,type,task_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(taskID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func (l *SQLLog) Latest(ctx context.Context, limit int, taskID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id,ts,type,COALESCE(task_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	args := []any{}
	if taskID != "" {
		query += ` WHERE task_id=?`
		args = append(args, taskID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := l.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.TaskID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// MemoryLog keeps events in memory; pairs with the memory task store.
type MemoryLog struct {
	mu     sync.Mutex
	nextID int64
	items  []domain.Event
	Now    func() time.Time
}

func (l *MemoryLog) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *MemoryLog) Append(ctx context.Context, evtType, taskID, entityKind, entityID, actorID string, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.items = append(l.items, domain.Event{
		ID:         l.nextID,
		TS:         l.now().UTC().Format(time.RFC3339),
		Type:       evtType,
		TaskID:     taskID,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    string(data),
	})
	return nil
}

func (l *MemoryLog) Latest(ctx context.Context, limit int, taskID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []domain.Event
	for i := len(l.items) - 1; i >= 0 && len(res) < limit; i-- {
		if taskID != "" && l.items[i].TaskID != taskID {
			continue
		}
		res = append(res, l.items[i])
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
