package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskboard/internal/derive"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Taskboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Taskboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerTasks(group, cfg.Engine)
	registerSubtasks(group, cfg.Engine)
	registerComments(group, cfg.Engine)
	registerParticipants(group, cfg.Engine)
	registerCalendar(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve domain.ValidationError
	if errors.As(err, &ve) {
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field, "reason": ve.Reason}
		}
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), details)
	}
	var ce domain.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"all,in progress,completed,expired,closed"`
		Query  string `query:"q"`
	}) (*struct {
		Body TasksEnvelope `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.GetTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Status != "" {
			items = derive.FilterByStatus(items, domain.Status(input.Status))
		}
		if input.Query != "" {
			matched := items[:0:0]
			for _, t := range items {
				if derive.SearchMatch(t, input.Query) {
					matched = append(matched, t)
				}
			}
			items = matched
		}
		return &struct {
			Body TasksEnvelope `json:"body"`
		}{Body: tasksEnvelope(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		draft := engine.TaskDraft{
			Title:        input.Body.Title,
			Participants: input.Body.Participants,
			ActorID:      actorID,
		}
		if input.Body.Description != nil {
			draft.Description = *input.Body.Description
		}
		if input.Body.Status != nil {
			draft.Status = domain.Status(*input.Body.Status)
		}
		if input.Body.DueDate != nil {
			draft.DueDate = *input.Body.DueDate
		}
		t, err := e.CreateTask(ctx, draft)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch := repo.TaskPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
		}
		if input.Body.Status != nil {
			status := domain.Status(*input.Body.Status)
			patch.Status = &status
		}
		t, err := e.UpdateTask(ctx, input.TaskID, patch, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Set task status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string           `path:"task_id"`
		Body   SetStatusRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTaskStatus(ctx, input.TaskID, domain.Status(input.Body.Status), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.TaskID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerSubtasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-subtask",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/subtasks",
		Summary:       "Add subtask",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   CreateSubtaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		draft := engine.SubtaskDraft{
			Title:     input.Body.Title,
			Assignees: input.Body.Assignees,
			ActorID:   actorID,
		}
		if input.Body.Description != nil {
			draft.Description = *input.Body.Description
		}
		if input.Body.Progress != nil {
			draft.Progress = *input.Body.Progress
		}
		if input.Body.DueDate != nil {
			draft.DueDate = *input.Body.DueDate
		}
		t, err := e.AddSubtask(ctx, input.TaskID, draft)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-subtask",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}/subtasks/{subtask_id}",
		Summary:     "Update subtask fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID    string               `path:"task_id"`
		SubtaskID string               `path:"subtask_id"`
		Body      UpdateSubtaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch := repo.SubTaskPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Assignees:   input.Body.Assignees,
			Progress:    input.Body.Progress,
			DueDate:     input.Body.DueDate,
		}
		t, err := e.UpdateSubtask(ctx, input.TaskID, input.SubtaskID, patch, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-subtask-progress",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/subtasks/{subtask_id}/progress",
		Summary:     "Set subtask progress",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID    string             `path:"task_id"`
		SubtaskID string             `path:"subtask_id"`
		Body      SetProgressRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateSubtaskProgress(ctx, input.TaskID, input.SubtaskID, input.Body.Progress, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-subtask",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}/subtasks/{subtask_id}",
		Summary:     "Delete subtask",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID    string `path:"task_id"`
		SubtaskID string `path:"subtask_id"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.DeleteSubtask(ctx, input.TaskID, input.SubtaskID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/subtasks/{subtask_id}/comments",
		Summary:       "Add comment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID    string               `path:"task_id"`
		SubtaskID string               `path:"subtask_id"`
		Body      CreateCommentRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		name := ""
		if p, ok := principalFromContext(ctx); ok {
			name = p.DisplayName
		}
		t, err := e.AddComment(ctx, input.TaskID, input.SubtaskID, engine.CommentDraft{
			Text:            input.Body.Text,
			AuthorID:        actorID,
			AuthorName:      name,
			ParentCommentID: input.Body.ParentCommentID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-comment",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}/subtasks/{subtask_id}/comments/{comment_id}",
		Summary:     "Edit comment text",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID    string             `path:"task_id"`
		SubtaskID string             `path:"subtask_id"`
		CommentID string             `path:"comment_id"`
		Body      EditCommentRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.EditComment(ctx, input.TaskID, input.SubtaskID, input.CommentID, input.Body.Text, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}/subtasks/{subtask_id}/comments/{comment_id}",
		Summary:     "Delete comment",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID    string `path:"task_id"`
		SubtaskID string `path:"subtask_id"`
		CommentID string `path:"comment_id"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.DeleteComment(ctx, input.TaskID, input.SubtaskID, input.CommentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})
}

func registerParticipants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-participant",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/participants",
		Summary:       "Add participant",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string                `path:"task_id"`
		Body   AddParticipantRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AddParticipant(ctx, input.TaskID, domain.Participant{
			Email:       input.Body.Email,
			DisplayName: input.Body.DisplayName,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-participant",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}/participants/{email}",
		Summary:     "Remove participant",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Email  string `path:"email"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.RemoveParticipant(ctx, input.TaskID, input.Email, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: taskEnvelope(t)}, nil
	})
}

func registerCalendar(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "task-calendar",
		Method:      http.MethodGet,
		Path:        "/tasks/calendar",
		Summary:     "Tasks grouped by due date",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		From string `query:"from" format:"date"`
		To   string `query:"to" format:"date"`
	}) (*struct {
		Body CalendarEnvelope `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		from, to, err := calendarWindow(input.From, input.To, e.Now())
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		items, err := e.GetTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		groups := derive.GroupByDueDate(items, from, to)
		if groups == nil {
			groups = []derive.DueGroup{}
		}
		return &struct {
			Body CalendarEnvelope `json:"body"`
		}{Body: CalendarEnvelope{Groups: groups}}, nil
	})
}

// calendarWindow defaults to the seven days starting today. Both bounds are
// whole days: start is local midnight of the first day, end covers the final
// day up to its last instant so a due time anywhere on that day stays in.
func calendarWindow(from, to string, now time.Time) (time.Time, time.Time, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 6)
	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be a YYYY-MM-DD date")
		}
		start = parsed
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be a YYYY-MM-DD date")
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("to must not precede from")
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-task-events",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/events",
		Summary:     "Recent events for a task",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body EventsEnvelope `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Events.Latest(ctx, input.Limit, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body EventsEnvelope `json:"body"`
		}{Body: EventsEnvelope{Events: items}}, nil
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}
