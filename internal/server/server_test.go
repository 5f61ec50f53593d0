package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"taskboard/internal/db"
	"taskboard/internal/derive"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/events"
	"taskboard/internal/migrate"
	"taskboard/internal/repo/sqlite"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := sqlite.New(conn)
	e := engine.New(store, store, &events.SQLLog{DB: conn})
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func register(t *testing.T, srv *testServer, email string) (string, map[string]string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"email":        email,
		"display_name": "Tester",
		"password":     "hunter2hunter2",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var resp AuthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal auth response: %v", err)
	}
	return resp.Token, map[string]string{"Authorization": "Bearer " + resp.Token}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, auth := register(t, srv, "ana@example.com")

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":    "Ship release",
		"due_date": "2024-03-23T10:00:00Z",
		"participants": []map[string]string{
			{"email": "ana@example.com", "display_name": "Ana"},
		},
	}, auth)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", createRes.StatusCode, string(data))
	}
	var created TaskEnvelope
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task envelope: %v", err)
	}
	taskID := created.Task.ID
	if created.Task.Status != "in progress" {
		t.Fatalf("default status %q", created.Task.Status)
	}

	subRes, subBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/subtasks", map[string]any{
		"title":     "cut branch",
		"assignees": []string{"ana@example.com"},
		"progress":  60,
	}, auth)
	if subRes.StatusCode != http.StatusCreated {
		t.Fatalf("add subtask status %d: %s", subRes.StatusCode, string(subBody))
	}
	var withSub TaskEnvelope
	_ = json.Unmarshal(subBody, &withSub)
	if len(withSub.Task.Subtasks) != 1 || withSub.Task.Subtasks[0].ID != taskID+"-1" {
		t.Fatalf("subtask not as expected: %s", string(subBody))
	}
	if withSub.Task.Progress != 60 {
		t.Fatalf("task progress %d, want 60", withSub.Task.Progress)
	}

	progRes, progBody := doJSON(t, client, http.MethodPut, srv.URL+"/v0/tasks/"+taskID+"/subtasks/"+taskID+"-1/progress", map[string]any{
		"progress": 100,
	}, auth)
	if progRes.StatusCode != http.StatusOK {
		t.Fatalf("set progress status %d: %s", progRes.StatusCode, string(progBody))
	}
	var progressed TaskEnvelope
	_ = json.Unmarshal(progBody, &progressed)
	if progressed.Task.Progress != 100 {
		t.Fatalf("task progress %d after update, want 100", progressed.Task.Progress)
	}

	statusRes, statusBody := doJSON(t, client, http.MethodPut, srv.URL+"/v0/tasks/"+taskID+"/status", map[string]any{
		"status": "completed",
	}, auth)
	if statusRes.StatusCode != http.StatusOK {
		t.Fatalf("set status %d: %s", statusRes.StatusCode, string(statusBody))
	}

	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/"+taskID, nil, auth)
	if delRes.StatusCode != http.StatusNoContent && delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}
	getRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+taskID, nil, auth)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getRes.StatusCode)
	}
}

func TestErrorEnvelopeMapping(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, auth := register(t, srv, "ana@example.com")

	// missing task -> 404 not_found
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/no-such", nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" || envelope.Error.Message == "" {
		t.Fatalf("unexpected envelope: %+v", envelope.Error)
	}

	// empty title -> 400 bad_request
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": ""}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}

	// out-of-range progress -> 400, never clamped
	createRes, createBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": "p"}, auth)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", createRes.StatusCode, string(createBody))
	}
	var created TaskEnvelope
	_ = json.Unmarshal(createBody, &created)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+created.Task.ID+"/subtasks", map[string]any{"title": "s"}, auth)
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/tasks/"+created.Task.ID+"/subtasks/"+created.Task.ID+"-1/progress", map[string]any{
		"progress": 150,
	}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for progress 150, got %d: %s", res.StatusCode, string(data))
	}

	// duplicate participant -> 409 conflict
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+created.Task.ID+"/participants", map[string]any{"email": "x@example.com"}, auth)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+created.Task.ID+"/participants", map[string]any{"email": "x@example.com"}, auth)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"Authorization": "Bearer garbage"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be public, got %d", res.StatusCode)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	register(t, srv, "ana@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "hunter2hunter2",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var resp AuthResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Token == "" {
		t.Fatalf("no token in login response: %s", string(data))
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "wrong-password",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", res.StatusCode)
	}

	logoutRes, logoutBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/logout", nil, map[string]string{"Authorization": "Bearer " + resp.Token})
	if logoutRes.StatusCode != http.StatusOK {
		t.Fatalf("logout status %d: %s", logoutRes.StatusCode, string(logoutBody))
	}
}

func TestCommentThreadOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, auth := register(t, srv, "ana@example.com")

	_, createBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": "threads"}, auth)
	var created TaskEnvelope
	_ = json.Unmarshal(createBody, &created)
	taskID := created.Task.ID
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/subtasks", map[string]any{"title": "s"}, auth)
	subtaskID := taskID + "-1"

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/subtasks/"+subtaskID+"/comments", map[string]any{
		"text": "first",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add comment: %d %s", res.StatusCode, string(data))
	}
	var withComment TaskEnvelope
	_ = json.Unmarshal(data, &withComment)
	parentID := withComment.Task.Subtasks[0].Comments[0].ID

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/subtasks/"+subtaskID+"/comments", map[string]any{
		"text":              "reply",
		"parent_comment_id": parentID,
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add reply: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+taskID+"/subtasks/"+subtaskID+"/comments/"+parentID, map[string]any{
		"text": "first, edited",
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("edit comment: %d %s", res.StatusCode, string(data))
	}
	var edited TaskEnvelope
	_ = json.Unmarshal(data, &edited)
	if !edited.Task.Subtasks[0].Comments[0].IsEdited {
		t.Fatalf("comment not marked edited: %s", string(data))
	}
}

func TestCalendarWindowCoversEndDay(t *testing.T) {
	now := time.Date(2024, 3, 20, 9, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))

	start, end, err := calendarWindow("2024-03-23", "2024-03-26", now)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	tasks := []domain.Task{{
		ID:      "t1",
		Title:   "Ship",
		Status:  domain.StatusInProgress,
		DueDate: "2024-03-26T15:00:00Z",
	}}
	groups := derive.GroupByDueDate(tasks, start, end)
	if len(groups) != 1 {
		t.Fatalf("task due mid-day on the last window day should be grouped, got %d groups", len(groups))
	}

	start, _, err = calendarWindow("", "", now)
	if err != nil {
		t.Fatalf("default window: %v", err)
	}
	want := time.Date(2024, 3, 20, 0, 0, 0, 0, now.Location())
	if !start.Equal(want) {
		t.Fatalf("default start should be local midnight, got %s", start)
	}

	if _, _, err := calendarWindow("2024-03-26", "2024-03-23", now); err == nil {
		t.Fatal("reversed window should be rejected")
	}
}
