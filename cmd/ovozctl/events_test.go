package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func adminAPI(t *testing.T, handler http.HandlerFunc) *options {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &options{server: srv.URL, token: "tok", timeout: 5 * time.Second, now: time.Now}
}

func TestEventsList(t *testing.T) {
	opts := adminAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" || r.URL.Query().Get("keyword") != "gala night" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":7,"name":"Gala","finishDate":"2030-01-01T00:00:00Z","status":"active"}],"count":1}`))
	})

	output, err := execute(t, opts, "--server", opts.server, "--token", "tok", "events", "list", "--keyword", "gala night")
	if err != nil {
		t.Fatalf("events list: %v", err)
	}

	for _, expected := range []string{"ID", "Gala", "2030-01-01T00:00:00Z", "active", "1 event(s)"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, output)
		}
	}
}

func TestEventsNotify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
		wantErr  bool
	}{
		{"queued", http.StatusAccepted, `{"jobId":"j-1","status":"pending","alreadyEnqueued":false}`, "queued as job j-1 (pending)", false},
		{"already queued", http.StatusAccepted, `{"jobId":"j-1","status":"pending","alreadyEnqueued":true}`, "already queued as job j-1", false},
		{"direct send", http.StatusOK, `{"message":"Event sent"}`, "Event sent", false},
		{"no candidates", http.StatusConflict, `{"error":{"code":"no_candidates","message":"event has no candidates"}}`, "no_candidates", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := adminAPI(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/events/5/send" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			output, err := execute(t, opts, "--server", opts.server, "--token", "tok", "events", "notify", "5")
			if tt.wantErr {
				var apiErr *apiError
				if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
					t.Fatalf("expected api error %d, got %v", tt.status, err)
				}
				if !strings.Contains(err.Error(), tt.expected) {
					t.Errorf("expected %q in %v", tt.expected, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("notify: %v", err)
			}
			if !strings.Contains(output, tt.expected) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.expected, output)
			}
		})
	}
}

func TestEventsNotify_Validation(t *testing.T) {
	if _, err := execute(t, nil, "--token", "tok", "events", "notify", "abc"); err == nil {
		t.Fatal("expected invalid id error")
	}

	if _, err := execute(t, nil, "--token", "", "events", "notify", "5"); err == nil || !strings.Contains(err.Error(), "no access token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
