package taskboardsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientBasePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tasks":[]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Tasks(context.Background(), "", ""); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if gotPath != "/v0/tasks" {
		t.Fatalf("default prefix: got %s", gotPath)
	}

	c.BasePath = "/api/v2"
	if _, err := c.Tasks(context.Background(), "", ""); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if gotPath != "/api/v2/tasks" {
		t.Fatalf("custom prefix: got %s", gotPath)
	}
}
