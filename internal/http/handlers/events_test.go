package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/http/handlers"
	"github.com/ovoz/admin/internal/http/middlewares"
	"github.com/ovoz/admin/internal/upstream"
)

type listEventsResponse struct {
	Items []event.View `json:"items"`
	Count int          `json:"count"`
}

// ---List event tests

func TestListEventsHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		url            string
		upstreamSetup  func(*fakeUpstream)
		wantStatusCode int
		wantCount      int
		wantStatuses   []event.Status
	}{
		{
			name: "success_with_computed_status",
			url:  "/events",
			upstreamSetup: func(f *fakeUpstream) {
				f.listEventsFn = func(ctx context.Context, keyword string) ([]event.Event, error) {
					return []event.Event{
						{ID: 1, Name: "Past", FinishDate: now.Add(-time.Hour), IsActive: true},
						{ID: 2, Name: "Soon", FinishDate: now.Add(2 * time.Hour), IsActive: true},
						{ID: 3, Name: "Later", FinishDate: now.Add(72 * time.Hour), IsActive: true},
						{ID: 4, Name: "Paused", FinishDate: now.Add(72 * time.Hour)},
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      4,
			wantStatuses:   []event.Status{event.StatusFinished, event.StatusEnding, event.StatusActive, event.StatusInactive},
		},
		{
			name: "keyword_is_sanitised",
			url:  "/events?keyword=%3Cb%3Egala%3C%2Fb%3E",
			upstreamSetup: func(f *fakeUpstream) {
				f.listEventsFn = func(ctx context.Context, keyword string) ([]event.Event, error) {
					if keyword != "gala" {
						return nil, errors.New("unexpected keyword " + keyword)
					}
					return []event.Event{{ID: 9, Name: "Gala", FinishDate: now.Add(72 * time.Hour)}}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name: "upstream_error",
			url:  "/events",
			upstreamSetup: func(f *fakeUpstream) {
				f.listEventsFn = func(ctx context.Context, keyword string) ([]event.Event, error) {
					return nil, upstreamStatus(http.StatusInternalServerError, "db down")
				}
			},
			wantStatusCode: http.StatusBadGateway,
		},
		{
			name: "upstream_session_expired",
			url:  "/events",
			upstreamSetup: func(f *fakeUpstream) {
				f.listEventsFn = func(ctx context.Context, keyword string) ([]event.Event, error) {
					return nil, upstreamStatus(http.StatusUnauthorized, "")
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUpstream{}
			if tt.upstreamSetup != nil {
				tt.upstreamSetup(f)
			}

			h := handlers.NewEventsHandler(f, cache.New(time.Minute), time.Minute)
			r := setupRouter(http.MethodGet, "/events", h.ListEvents)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if w.Code != http.StatusOK {
				return
			}

			var resp listEventsResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if resp.Count != tt.wantCount || len(resp.Items) != tt.wantCount {
				t.Fatalf("got count %d (%d items), want %d", resp.Count, len(resp.Items), tt.wantCount)
			}

			for i, want := range tt.wantStatuses {
				if resp.Items[i].Status != want {
					t.Fatalf("item %d status = %q, want %q", i, resp.Items[i].Status, want)
				}
			}
		})
	}
}

func TestListEvents_ServedFromCache(t *testing.T) {
	f := &fakeUpstream{}
	h := handlers.NewEventsHandler(f, cache.New(time.Minute), time.Minute)
	r := setupRouter(http.MethodGet, "/events", h.ListEvents)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?keyword=Gala", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	}

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("upstream called %d times, want 1", got)
	}
}

func TestListEvents_ETagNotModified(t *testing.T) {
	f := &fakeUpstream{}
	h := handlers.NewEventsHandler(f, nil, 0)
	r := setupRouter(http.MethodGet, "/events", h.ListEvents)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotModified)
	}
}

func TestGetEventByIDHandler(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		getFn          func(ctx context.Context, id int64) (event.Event, error)
		wantStatusCode int
	}{
		{
			name: "success",
			id:   "12",
			getFn: func(ctx context.Context, id int64) (event.Event, error) {
				return event.Event{ID: id, Name: "Spring Gala", FinishDate: time.Now().Add(72 * time.Hour)}, nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid_id",
			id:             "abc",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "zero_id",
			id:             "0",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "not_found",
			id:   "404",
			getFn: func(ctx context.Context, id int64) (event.Event, error) {
				return event.Event{}, upstreamStatus(http.StatusNotFound, "")
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "timeout",
			id:   "5",
			getFn: func(ctx context.Context, id int64) (event.Event, error) {
				return event.Event{}, &upstream.Error{Op: "get event", Err: context.DeadlineExceeded}
			},
			wantStatusCode: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUpstream{getEventFn: tt.getFn}
			h := handlers.NewEventsHandler(f, nil, 0)
			r := setupRouter(http.MethodGet, "/events/:id", h.GetEventByID)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+tt.id, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteEvent_LastListedRule(t *testing.T) {
	f := &fakeUpstream{
		listEventsFn: func(ctx context.Context, keyword string) ([]event.Event, error) {
			return []event.Event{{ID: 1}, {ID: 2}}, nil
		},
	}

	var deleted []int64
	f.deleteEventFn = func(ctx context.Context, id int64) error {
		deleted = append(deleted, id)
		return nil
	}

	store := cache.New(time.Minute)
	h := handlers.NewEventsHandler(f, store, time.Minute)

	r := setupRouter(http.MethodGet, "/events", h.ListEvents)
	r.DELETE("/events/:id", h.DeleteEvent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/events/3", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
	if len(deleted) != 0 {
		t.Fatalf("upstream delete should not be called, got %v", deleted)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/events/2", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNoContent, w.Body.String())
	}
	if len(deleted) != 1 || deleted[0] != 2 {
		t.Fatalf("unexpected deletes: %v", deleted)
	}

	if store.Len() != 0 {
		t.Fatalf("event cache should be empty after delete, has %d entries", store.Len())
	}
}

func TestDeleteEvent_ListingsAreRememberedPerSession(t *testing.T) {
	f := &fakeUpstream{
		listEventsFn: func(ctx context.Context, keyword string) ([]event.Event, error) {
			switch keyword {
			case "gala":
				return []event.Event{{ID: 1}}, nil
			case "spring":
				return []event.Event{{ID: 3}}, nil
			default:
				return []event.Event{{ID: 1}, {ID: 2}}, nil
			}
		},
	}

	var deleted []int64
	f.deleteEventFn = func(ctx context.Context, id int64) error {
		deleted = append(deleted, id)
		return nil
	}

	h := handlers.NewEventsHandler(f, cache.New(time.Minute), time.Minute)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middlewares.CtxJTI, c.GetHeader("X-Session"))
		c.Next()
	})
	r.GET("/events", h.ListEvents)
	r.DELETE("/events/:id", h.DeleteEvent)

	steps := []struct {
		name    string
		session string
		method  string
		url     string
		want    int
	}{
		{"a_lists_all", "a", http.MethodGet, "/events", http.StatusOK},
		{"a_narrows", "a", http.MethodGet, "/events?keyword=gala", http.StatusOK},
		{"b_lists_other", "b", http.MethodGet, "/events?keyword=spring", http.StatusOK},
		{"a_deletes_unseen", "a", http.MethodDelete, "/events/3", http.StatusNotFound},
		{"b_deletes_unseen", "b", http.MethodDelete, "/events/2", http.StatusNotFound},
		{"a_deletes_from_wider_list", "a", http.MethodDelete, "/events/2", http.StatusNoContent},
		{"b_deletes_own", "b", http.MethodDelete, "/events/3", http.StatusNoContent},
	}

	for _, s := range steps {
		req := httptest.NewRequest(s.method, s.url, nil)
		req.Header.Set("X-Session", s.session)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != s.want {
			t.Fatalf("%s: got status %d, want %d, body=%s", s.name, w.Code, s.want, w.Body.String())
		}
	}

	if len(deleted) != 2 || deleted[0] != 2 || deleted[1] != 3 {
		t.Fatalf("unexpected deletes: %v", deleted)
	}
}

func TestDeleteEvent_NothingListedAsksUpstream(t *testing.T) {
	f := &fakeUpstream{
		deleteEventFn: func(ctx context.Context, id int64) error {
			return upstreamStatus(http.StatusNotFound, "")
		},
	}

	h := handlers.NewEventsHandler(f, cache.New(time.Minute), time.Minute)
	r := setupRouter(http.MethodDelete, "/events/:id", h.DeleteEvent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/events/7", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", f.calls.Load())
	}
}

func TestDashboardHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := &fakeUpstream{
			dashboardFn: func(ctx context.Context) (upstream.Stats, error) {
				return upstream.Stats{Events: 3, Candidates: 12, Votes: 480, Users: 95}, nil
			},
			endingSoonFn: func(ctx context.Context) ([]event.Event, error) {
				return []event.Event{{ID: 4, FinishDate: time.Now().Add(time.Hour), IsActive: true}}, nil
			},
		}

		h := handlers.NewDashboardHandler(f)
		r := setupRouter(http.MethodGet, "/dashboard", h.Get)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		var resp struct {
			Stats      upstream.Stats `json:"stats"`
			EndingSoon []event.View   `json:"endingSoon"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if resp.Stats.Votes != 480 || len(resp.EndingSoon) != 1 || resp.EndingSoon[0].Status != event.StatusEnding {
			t.Fatalf("unexpected dashboard: %+v", resp)
		}
	})

	t.Run("one_call_fails", func(t *testing.T) {
		f := &fakeUpstream{
			endingSoonFn: func(ctx context.Context) ([]event.Event, error) {
				return nil, upstreamStatus(http.StatusBadGateway, "ending list unavailable")
			},
		}

		h := handlers.NewDashboardHandler(f)
		r := setupRouter(http.MethodGet, "/dashboard", h.Get)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		if w.Code != http.StatusBadGateway {
			t.Fatalf("got status %d, want %d", w.Code, http.StatusBadGateway)
		}

		if got := decodeError(t, w); got.Error.Message != "ending list unavailable" {
			t.Fatalf("unexpected message %q", got.Error.Message)
		}
	})
}
