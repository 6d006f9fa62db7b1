package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/domain/candidate"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/upstream"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	return resp
}

// fakeUpstream stands in for the voting API client. Unset functions answer
// with zero values.
type fakeUpstream struct {
	calls atomic.Int64

	loginFn          func(ctx context.Context, username, password string) (string, error)
	dashboardFn      func(ctx context.Context) (upstream.Stats, error)
	listEventsFn     func(ctx context.Context, keyword string) ([]event.Event, error)
	endingSoonFn     func(ctx context.Context) ([]event.Event, error)
	getEventFn       func(ctx context.Context, id int64) (event.Event, error)
	deleteEventFn    func(ctx context.Context, id int64) error
	listCandidatesFn func(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error)
	createCandFn     func(ctx context.Context, req candidate.CreateRequest) (candidate.Candidate, error)
	updateCandFn     func(ctx context.Context, id int64, req candidate.UpdateRequest) (candidate.Candidate, error)
	deleteCandFn     func(ctx context.Context, id int64) error
	listChannelsFn   func(ctx context.Context, keyword string) ([]channel.Channel, error)
	createChanFn     func(ctx context.Context, req channel.CreateRequest) (channel.Channel, error)
	updateChanFn     func(ctx context.Context, id string, req channel.UpdateRequest) (channel.Channel, error)
	deleteChanFn     func(ctx context.Context, id string) error
}

func (f *fakeUpstream) Login(ctx context.Context, username, password string) (string, error) {
	f.calls.Add(1)
	if f.loginFn != nil {
		return f.loginFn(ctx, username, password)
	}
	return "upstream-token", nil
}

func (f *fakeUpstream) Dashboard(ctx context.Context) (upstream.Stats, error) {
	f.calls.Add(1)
	if f.dashboardFn != nil {
		return f.dashboardFn(ctx)
	}
	return upstream.Stats{}, nil
}

func (f *fakeUpstream) ListEvents(ctx context.Context, keyword string) ([]event.Event, error) {
	f.calls.Add(1)
	if f.listEventsFn != nil {
		return f.listEventsFn(ctx, keyword)
	}
	return []event.Event{}, nil
}

func (f *fakeUpstream) EndingSoon(ctx context.Context) ([]event.Event, error) {
	f.calls.Add(1)
	if f.endingSoonFn != nil {
		return f.endingSoonFn(ctx)
	}
	return []event.Event{}, nil
}

func (f *fakeUpstream) GetEvent(ctx context.Context, id int64) (event.Event, error) {
	f.calls.Add(1)
	if f.getEventFn != nil {
		return f.getEventFn(ctx, id)
	}
	return event.Event{ID: id}, nil
}

func (f *fakeUpstream) DeleteEvent(ctx context.Context, id int64) error {
	f.calls.Add(1)
	if f.deleteEventFn != nil {
		return f.deleteEventFn(ctx, id)
	}
	return nil
}

func (f *fakeUpstream) ListCandidates(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error) {
	f.calls.Add(1)
	if f.listCandidatesFn != nil {
		return f.listCandidatesFn(ctx, eventID, keyword)
	}
	return []candidate.Candidate{}, nil
}

func (f *fakeUpstream) CreateCandidate(ctx context.Context, req candidate.CreateRequest) (candidate.Candidate, error) {
	f.calls.Add(1)
	if f.createCandFn != nil {
		return f.createCandFn(ctx, req)
	}
	return candidate.Candidate{ID: 1, EventID: req.EventID, Name: req.Name}, nil
}

func (f *fakeUpstream) UpdateCandidate(ctx context.Context, id int64, req candidate.UpdateRequest) (candidate.Candidate, error) {
	f.calls.Add(1)
	if f.updateCandFn != nil {
		return f.updateCandFn(ctx, id, req)
	}
	return candidate.Candidate{ID: id, EventID: req.EventID, Name: req.Name}, nil
}

func (f *fakeUpstream) DeleteCandidate(ctx context.Context, id int64) error {
	f.calls.Add(1)
	if f.deleteCandFn != nil {
		return f.deleteCandFn(ctx, id)
	}
	return nil
}

func (f *fakeUpstream) ListChannels(ctx context.Context, keyword string) ([]channel.Channel, error) {
	f.calls.Add(1)
	if f.listChannelsFn != nil {
		return f.listChannelsFn(ctx, keyword)
	}
	return []channel.Channel{}, nil
}

func (f *fakeUpstream) CreateChannel(ctx context.Context, req channel.CreateRequest) (channel.Channel, error) {
	f.calls.Add(1)
	if f.createChanFn != nil {
		return f.createChanFn(ctx, req)
	}
	return channel.Channel{ID: req.ID, Name: req.Name, Link: req.Link}, nil
}

func (f *fakeUpstream) UpdateChannel(ctx context.Context, id string, req channel.UpdateRequest) (channel.Channel, error) {
	f.calls.Add(1)
	if f.updateChanFn != nil {
		return f.updateChanFn(ctx, id, req)
	}
	return channel.Channel{ID: req.ID, Name: req.Name, Link: req.Link}, nil
}

func (f *fakeUpstream) DeleteChannel(ctx context.Context, id string) error {
	f.calls.Add(1)
	if f.deleteChanFn != nil {
		return f.deleteChanFn(ctx, id)
	}
	return nil
}

func upstreamStatus(status int, msg string) error {
	return &upstream.Error{Op: "test", Status: status, Message: msg}
}
