// Package taskboardsdk is a small HTTP client for the Taskboard API. It
// returns the server's full task representation after every call so callers
// can replace local state wholesale.
package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskboard/internal/domain"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string // API prefix, "/v0" when empty; match the server's --base-path
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

type taskEnvelope struct {
	Task domain.Task `json:"task"`
}

type tasksEnvelope struct {
	Tasks []domain.Task `json:"tasks"`
}

type authEnvelope struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type calendarEnvelope struct {
	Groups []CalendarGroup `json:"groups"`
}

// CalendarGroup buckets tasks due on one day.
type CalendarGroup struct {
	Date  string        `json:"date"`
	Tasks []domain.Task `json:"tasks"`
}

type eventsEnvelope struct {
	Events []domain.Event `json:"events"`
}

// Register creates an account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, email, displayName, password string) (domain.User, error) {
	var resp authEnvelope
	err := c.do(ctx, http.MethodPost, "auth/register", map[string]any{
		"email":        email,
		"display_name": displayName,
		"password":     password,
	}, &resp)
	if err != nil {
		return domain.User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	var resp authEnvelope
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return domain.User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Logout acknowledges logout and clears the stored token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil); err != nil {
		return err
	}
	c.BearerToken = ""
	return nil
}

// Tasks lists tasks, optionally filtered by status and free-text query.
func (c *Client) Tasks(ctx context.Context, status, query string) ([]domain.Task, error) {
	endpoint := "tasks"
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if query != "" {
		params.Set("q", query)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp tasksEnvelope
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

// Task fetches one task with all subtasks and comments.
func (c *Client) Task(ctx context.Context, id string) (domain.Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp.Task, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title string, fields map[string]any) (domain.Task, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp.Task, err
}

// UpdateTask patches task fields.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (domain.Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), fields, &resp)
	return resp.Task, err
}

// SetStatus sets the task status.
func (c *Client) SetStatus(ctx context.Context, id, status string) (domain.Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPut, "tasks/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp.Task, err
}

// DeleteTask removes a task and its subtasks.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// AddSubtask appends a subtask to a task.
func (c *Client) AddSubtask(ctx context.Context, taskID, title string, fields map[string]any) (domain.Task, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/subtasks", body, &resp)
	return resp.Task, err
}

// UpdateSubtask patches subtask fields.
func (c *Client) UpdateSubtask(ctx context.Context, taskID, subtaskID string, fields map[string]any) (domain.Task, error) {
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/subtasks/%s", url.PathEscape(taskID), url.PathEscape(subtaskID))
	err := c.do(ctx, http.MethodPatch, endpoint, fields, &resp)
	return resp.Task, err
}

// SetProgress sets subtask progress; out-of-range values are rejected by the
// server with a 400.
func (c *Client) SetProgress(ctx context.Context, taskID, subtaskID string, progress int) (domain.Task, error) {
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/subtasks/%s/progress", url.PathEscape(taskID), url.PathEscape(subtaskID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"progress": progress}, &resp)
	return resp.Task, err
}

// DeleteSubtask removes a subtask.
func (c *Client) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (domain.Task, error) {
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/subtasks/%s", url.PathEscape(taskID), url.PathEscape(subtaskID))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp.Task, err
}

// AddComment appends a comment; parentID may be empty for top-level comments.
func (c *Client) AddComment(ctx context.Context, taskID, subtaskID, text, parentID string) (domain.Task, error) {
	body := map[string]any{"text": text}
	if parentID != "" {
		body["parent_comment_id"] = parentID
	}
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/subtasks/%s/comments", url.PathEscape(taskID), url.PathEscape(subtaskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp.Task, err
}

// EditComment replaces comment text.
func (c *Client) EditComment(ctx context.Context, taskID, subtaskID, commentID, text string) (domain.Task, error) {
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/subtasks/%s/comments/%s", url.PathEscape(taskID), url.PathEscape(subtaskID), url.PathEscape(commentID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"text": text}, &resp)
	return resp.Task, err
}

// DeleteComment removes a comment; replies stay in place.
func (c *Client) DeleteComment(ctx context.Context, taskID, subtaskID, commentID string) (domain.Task, error) {
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/subtasks/%s/comments/%s", url.PathEscape(taskID), url.PathEscape(subtaskID), url.PathEscape(commentID))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp.Task, err
}

// AddParticipant adds a participant to a task.
func (c *Client) AddParticipant(ctx context.Context, taskID, email, displayName string) (domain.Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/participants", map[string]any{
		"email":        email,
		"display_name": displayName,
	}, &resp)
	return resp.Task, err
}

// RemoveParticipant removes a participant by email.
func (c *Client) RemoveParticipant(ctx context.Context, taskID, email string) (domain.Task, error) {
	var resp taskEnvelope
	endpoint := fmt.Sprintf("tasks/%s/participants/%s", url.PathEscape(taskID), url.PathEscape(email))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp.Task, err
}

// Calendar returns tasks bucketed by due date within [from, to].
func (c *Client) Calendar(ctx context.Context, from, to string) ([]CalendarGroup, error) {
	endpoint := "tasks/calendar"
	params := url.Values{}
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp calendarEnvelope
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Groups, err
}

// Events returns recent events for a task, newest first.
func (c *Client) Events(ctx context.Context, taskID string, limit int) ([]domain.Event, error) {
	endpoint := "tasks/" + url.PathEscape(taskID) + "/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp eventsEnvelope
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + c.prefix() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) prefix() string {
	p := c.BasePath
	if p == "" {
		p = "/v0"
	}
	return "/" + strings.Trim(p, "/")
}
