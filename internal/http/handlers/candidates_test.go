package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/candidate"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/http/handlers"
)

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateCandidateHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		upstreamSetup  func(*fakeUpstream)
		wantStatusCode int
		wantCalls      int64
	}{
		{
			name: "success",
			body: `{"eventId": 7, "name": "  <i>Alice</i> "}`,
			upstreamSetup: func(f *fakeUpstream) {
				f.createCandFn = func(ctx context.Context, req candidate.CreateRequest) (candidate.Candidate, error) {
					if req.Name != "Alice" {
						return candidate.Candidate{}, upstreamStatus(http.StatusBadRequest, "name not sanitised: "+req.Name)
					}
					return candidate.Candidate{ID: 31, EventID: req.EventID, Name: req.Name}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantCalls:      1,
		},
		{
			name:           "validation_error",
			body:           `{"name": "Alice"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "name_only_markup",
			body:           `{"eventId": 7, "name": "<script></script>"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "upstream_rejects",
			body: `{"eventId": 7, "name": "Alice"}`,
			upstreamSetup: func(f *fakeUpstream) {
				f.createCandFn = func(ctx context.Context, req candidate.CreateRequest) (candidate.Candidate, error) {
					return candidate.Candidate{}, upstreamStatus(http.StatusBadRequest, "Candidate already exists")
				}
			},
			wantStatusCode: http.StatusBadGateway,
			wantCalls:      1,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUpstream{}
			if tt.upstreamSetup != nil {
				tt.upstreamSetup(f)
			}

			h := handlers.NewCandidatesHandler(f, cache.New(time.Minute), time.Minute)
			r := setupRouter(http.MethodPost, "/candidates", h.Create)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonRequest(http.MethodPost, "/candidates", tt.body))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if got := f.calls.Load(); got != tt.wantCalls {
				t.Fatalf("upstream called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestCandidates_LastListedRule(t *testing.T) {
	f := &fakeUpstream{
		listCandidatesFn: func(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error) {
			return []candidate.Candidate{{ID: 11, EventID: eventID}, {ID: 12, EventID: eventID}}, nil
		},
	}

	h := handlers.NewCandidatesHandler(f, cache.New(time.Minute), time.Minute)
	r := setupRouter(http.MethodGet, "/events/:id/candidates", h.List)
	r.PUT("/candidates/:id", h.Update)
	r.DELETE("/candidates/:id", h.Delete)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/7/candidates", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d %s", w.Code, w.Body.String())
	}

	before := f.calls.Load()

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/candidates/99", `{"eventId": 7, "name": "Bob"}`))
	if w.Code != http.StatusNotFound {
		t.Fatalf("update of unlisted id: got %d, want %d", w.Code, http.StatusNotFound)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/candidates/99", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete of unlisted id: got %d, want %d", w.Code, http.StatusNotFound)
	}

	if f.calls.Load() != before {
		t.Fatalf("no upstream request expected for unlisted ids")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/candidates/12", `{"eventId": 7, "name": "Bob"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("update of listed id: got %d, body=%s", w.Code, w.Body.String())
	}

	// the update dropped the remembered listing, so any id goes upstream now
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/candidates/99", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete after invalidation: got %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestCandidates_ListingSecondEventKeepsFirst(t *testing.T) {
	f := &fakeUpstream{
		listCandidatesFn: func(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error) {
			return []candidate.Candidate{{ID: eventID*10 + 1, EventID: eventID}}, nil
		},
	}

	var removed []int64
	f.deleteCandFn = func(ctx context.Context, id int64) error {
		removed = append(removed, id)
		return nil
	}

	h := handlers.NewCandidatesHandler(f, cache.New(time.Minute), time.Minute)
	r := setupRouter(http.MethodGet, "/events/:id/candidates", h.List)
	r.DELETE("/candidates/:id", h.Delete)

	steps := []struct {
		name   string
		method string
		url    string
		want   int
	}{
		{"list_event_7", http.MethodGet, "/events/7/candidates", http.StatusOK},
		{"list_event_8", http.MethodGet, "/events/8/candidates", http.StatusOK},
		{"delete_unseen", http.MethodDelete, "/candidates/91", http.StatusNotFound},
		{"delete_from_event_7", http.MethodDelete, "/candidates/71", http.StatusNoContent},
	}

	for _, s := range steps {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(s.method, s.url, nil))

		if w.Code != s.want {
			t.Fatalf("%s: got status %d, want %d, body=%s", s.name, w.Code, s.want, w.Body.String())
		}
	}

	if len(removed) != 1 || removed[0] != 71 {
		t.Fatalf("unexpected deletes: %v", removed)
	}
}

func TestChannelsHandler(t *testing.T) {
	f := &fakeUpstream{
		listChannelsFn: func(ctx context.Context, keyword string) ([]channel.Channel, error) {
			return []channel.Channel{{ID: "-1001", Name: "News", Link: "https://t.me/news"}}, nil
		},
	}

	var updatedID string
	f.updateChanFn = func(ctx context.Context, id string, req channel.UpdateRequest) (channel.Channel, error) {
		updatedID = id
		return channel.Channel{ID: req.ID, Name: req.Name, Link: req.Link}, nil
	}

	h := handlers.NewChannelsHandler(f, cache.New(time.Minute), time.Minute)
	r := setupRouter(http.MethodGet, "/channels", h.List)
	r.POST("/channels", h.Create)
	r.PUT("/channels/:id", h.Update)
	r.DELETE("/channels/:id", h.Delete)

	steps := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"list", httptest.NewRequest(http.MethodGet, "/channels", nil), http.StatusOK},
		{"create_blank_name", jsonRequest(http.MethodPost, "/channels", `{"id":"-1002","name":"<b></b>","link":"https://t.me/x"}`), http.StatusUnprocessableEntity},
		{"update_unlisted", jsonRequest(http.MethodPut, "/channels/-1009", `{"id":"-1009","name":"X","link":"https://t.me/x"}`), http.StatusNotFound},
		{"update_listed", jsonRequest(http.MethodPut, "/channels/-1001", `{"id":"-1001","name":"Daily News","link":"https://t.me/news"}`), http.StatusOK},
		{"create", jsonRequest(http.MethodPost, "/channels", `{"id":"-1002","name":"Sport","link":"https://t.me/sport"}`), http.StatusCreated},
	}

	for _, s := range steps {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, s.req)

		if w.Code != s.want {
			t.Fatalf("%s: got status %d, want %d, body=%s", s.name, w.Code, s.want, w.Body.String())
		}
	}

	if updatedID != "-1001" {
		t.Fatalf("update went to %q", updatedID)
	}
}
