package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/domain/event"
	"github.com/ovoz/admin/internal/draft"
	"github.com/ovoz/admin/internal/http/handlers"
	"github.com/ovoz/admin/internal/media"
	"github.com/ovoz/admin/internal/repo/memory"
	"github.com/ovoz/admin/internal/submission"
)

var (
	draftNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

type fakeMedia struct {
	uploadFn func(ctx context.Context, name string, data []byte) (media.Upload, error)
	deleteFn func(ctx context.Context, key string) error
	deleted  []string
}

func (f *fakeMedia) Upload(ctx context.Context, name string, data []byte) (media.Upload, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, name, data)
	}
	return media.Upload{URL: "https://cdn.example/ovoz/" + name, Key: "ovoz/" + name, ID: "m-" + name, Name: name}, nil
}

func (f *fakeMedia) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, key)
	}
	return nil
}

type fakeSubmitter struct {
	submitFn func(ctx context.Context, d *draft.Draft) (submission.Outcome, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, d *draft.Draft) (submission.Outcome, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, d)
	}
	return submission.Outcome{Status: submission.StatusSucceeded, Action: submission.ActionCreate, Message: submission.MsgCreated}, nil
}

type fakeCleanup struct {
	keys []string
}

func (f *fakeCleanup) EnqueueDelete(ctx context.Context, key, draftID string) error {
	f.keys = append(f.keys, key)
	return nil
}

type draftsFixture struct {
	router  *gin.Engine
	repo    *memory.DraftsRepo
	up      *fakeUpstream
	media   *fakeMedia
	submit  *fakeSubmitter
	cleanup *fakeCleanup
	cache   *cache.Cache
}

func newDraftsFixture() *draftsFixture {
	fx := &draftsFixture{
		repo:    memory.NewDraftsRepo(time.Hour),
		up:      &fakeUpstream{},
		media:   &fakeMedia{},
		submit:  &fakeSubmitter{},
		cleanup: &fakeCleanup{},
		cache:   cache.New(time.Minute),
	}

	h := handlers.NewDraftsHandler(handlers.DraftsDeps{
		Drafts:   fx.repo,
		Events:   fx.up,
		Media:    fx.media,
		Submit:   fx.submit,
		Cleanup:  fx.cleanup,
		Cache:    fx.cache,
		Location: time.UTC,
		Now:      func() time.Time { return draftNow },
	})

	r := gin.New()
	r.POST("/drafts", h.OpenCreate)
	r.POST("/events/:id/drafts", h.OpenEdit)
	r.GET("/drafts/:draftId", h.Get)
	r.PATCH("/drafts/:draftId", h.Patch)
	r.PUT("/drafts/:draftId/finish/date", h.SetFinishDate)
	r.PUT("/drafts/:draftId/finish/time", h.SetFinishTime)
	r.DELETE("/drafts/:draftId/finish", h.ClearFinish)
	r.POST("/drafts/:draftId/image", h.UploadImage)
	r.DELETE("/drafts/:draftId/image", h.DeleteImage)
	r.POST("/drafts/:draftId/submit", h.Submit)
	r.DELETE("/drafts/:draftId", h.Discard)

	fx.router = r

	return fx
}

func (fx *draftsFixture) do(t *testing.T, req *http.Request, want int) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	if w.Code != want {
		t.Fatalf("%s %s: got status %d, want %d, body=%s", req.Method, req.URL.Path, w.Code, want, w.Body.String())
	}

	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) draft.View {
	t.Helper()

	var v draft.View
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal draft view: %v body=%s", err, w.Body.String())
	}

	return v
}

func (fx *draftsFixture) open(t *testing.T) draft.View {
	t.Helper()
	return decodeView(t, fx.do(t, httptest.NewRequest(http.MethodPost, "/drafts", nil), http.StatusCreated))
}

func imageRequest(t *testing.T, url, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if data != nil {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

func TestDrafts_FinishDateAndTime(t *testing.T) {
	fx := newDraftsFixture()
	v := fx.open(t)

	if v.Mode != draft.ModeCreate || v.FinishDate != nil {
		t.Fatalf("unexpected fresh draft: %+v", v)
	}

	base := "/drafts/" + v.ID

	// time before any date
	w := fx.do(t, jsonRequest(http.MethodPut, base+"/finish/time", `{"hours":10,"minutes":0}`), http.StatusBadRequest)
	if got := decodeError(t, w).Error.Code; got != "invalid_time" {
		t.Fatalf("got code %q", got)
	}

	w = fx.do(t, jsonRequest(http.MethodPut, base+"/finish/date", `{"date":"2025-06-10"}`), http.StatusOK)
	v = decodeView(t, w)
	if v.FinishDate == nil || v.FinishDate.Format(time.DateOnly) != "2025-06-10" {
		t.Fatalf("finish date not set: %+v", v.FinishDate)
	}

	w = fx.do(t, jsonRequest(http.MethodPut, base+"/finish/time", `{"hours":18,"minutes":45}`), http.StatusOK)
	v = decodeView(t, w)
	want := time.Date(2025, 6, 10, 18, 45, 0, 0, time.UTC)
	if !v.FinishDate.Equal(want) {
		t.Fatalf("got finish %v, want %v", v.FinishDate, want)
	}

	w = fx.do(t, jsonRequest(http.MethodPut, base+"/finish/time", `{"hours":24,"minutes":0}`), http.StatusBadRequest)
	resp := decodeError(t, w)
	if resp.Error.Code != "invalid_time" || resp.Error.Details["field"] != "hours" {
		t.Fatalf("unexpected range error: %+v", resp.Error)
	}

	fx.do(t, jsonRequest(http.MethodPut, base+"/finish/time", `{"hours":10}`), http.StatusBadRequest)
	fx.do(t, jsonRequest(http.MethodPut, base+"/finish/date", `{"date":"10/06/2025"}`), http.StatusBadRequest)

	// a rejected time leaves the instant alone
	v = decodeView(t, fx.do(t, httptest.NewRequest(http.MethodGet, base, nil), http.StatusOK))
	if !v.FinishDate.Equal(want) {
		t.Fatalf("finish changed to %v", v.FinishDate)
	}

	v = decodeView(t, fx.do(t, httptest.NewRequest(http.MethodDelete, base+"/finish", nil), http.StatusOK))
	if v.FinishDate != nil {
		t.Fatalf("finish should be cleared, got %v", v.FinishDate)
	}
}

func TestDrafts_PastClockIsMovedPastBound(t *testing.T) {
	fx := newDraftsFixture()
	v := fx.open(t)
	base := "/drafts/" + v.ID

	fx.do(t, jsonRequest(http.MethodPut, base+"/finish/date", `{"date":"2025-06-01"}`), http.StatusOK)
	v = decodeView(t, fx.do(t, jsonRequest(http.MethodPut, base+"/finish/time", `{"hours":8,"minutes":0}`), http.StatusOK))

	if v.FinishDate == nil || !v.FinishDate.After(v.MinimumFinish) {
		t.Fatalf("finish %v is not after the minimum %v", v.FinishDate, v.MinimumFinish)
	}
}

func TestDrafts_EditModeKeepsSentChannels(t *testing.T) {
	fx := newDraftsFixture()
	fx.up.getEventFn = func(ctx context.Context, id int64) (event.Event, error) {
		return event.Event{
			ID:           id,
			Name:         "Spring Gala",
			FinishDate:   draftNow.Add(72 * time.Hour),
			IsActive:     true,
			ImageURL:     "https://cdn.example/ovoz/gala.png",
			SentChannels: []channel.Channel{{ID: "-1001", Name: "News"}},
		}, nil
	}

	v := decodeView(t, fx.do(t, httptest.NewRequest(http.MethodPost, "/events/77/drafts", nil), http.StatusCreated))
	if v.Mode != draft.ModeEdit || v.EventID != 77 || v.Name != "Spring Gala" {
		t.Fatalf("unexpected edit draft: %+v", v)
	}

	base := "/drafts/" + v.ID

	w := fx.do(t, jsonRequest(http.MethodPatch, base, `{"sentChannels":["-1002"]}`), http.StatusConflict)
	if got := decodeError(t, w).Error.Code; got != "sent_channels_immutable" {
		t.Fatalf("got code %q", got)
	}

	v = decodeView(t, fx.do(t, jsonRequest(http.MethodPatch, base, `{"name":"Autumn Gala","subscribeChannels":["-1003"]}`), http.StatusOK))
	if v.Name != "Autumn Gala" || len(v.SubscribeChannels) != 1 || v.SubscribeChannels[0].ID() != "-1003" {
		t.Fatalf("patch not applied: %+v", v)
	}

	// clearing the stored image deletes it from the media service
	fx.do(t, httptest.NewRequest(http.MethodDelete, base+"/image", nil), http.StatusOK)
	if len(fx.media.deleted) != 1 || fx.media.deleted[0] != "ovoz/gala.png" {
		t.Fatalf("unexpected media deletes: %v", fx.media.deleted)
	}
}

func TestDrafts_OpenEditUnlistedEvent(t *testing.T) {
	fx := newDraftsFixture()
	if err := cache.SetJSON(context.Background(), fx.cache, cache.LastEventsKey("anonymous"), map[string][]int64{"keyword=": {1, 2}}, 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	fx.do(t, httptest.NewRequest(http.MethodPost, "/events/3/drafts", nil), http.StatusNotFound)

	if fx.up.calls.Load() != 0 {
		t.Fatalf("upstream should not be asked for an unlisted event")
	}
}

func TestDrafts_ImageUpload(t *testing.T) {
	fx := newDraftsFixture()
	v := fx.open(t)
	url := "/drafts/" + v.ID + "/image"

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     int
	}{
		{"no_file", "", nil, http.StatusBadRequest},
		{"not_an_image", "notes.txt", []byte("plain text"), http.StatusUnsupportedMediaType},
		{"too_large", "big.png", append(append([]byte{}, pngBytes...), make([]byte, media.MaxFileSize)...), http.StatusRequestEntityTooLarge},
		{"first_png", "cover.png", pngBytes, http.StatusOK},
		{"replacement_png", "cover2.png", pngBytes, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.do(t, imageRequest(t, url, tt.filename, tt.data), tt.want)
		})
	}

	v = decodeView(t, fx.do(t, httptest.NewRequest(http.MethodGet, "/drafts/"+v.ID, nil), http.StatusOK))
	if v.Upload == nil || v.Upload.Name != "cover2.png" {
		t.Fatalf("unexpected upload: %+v", v.Upload)
	}

	// the replaced upload is removed from storage
	if len(fx.media.deleted) != 1 || fx.media.deleted[0] != "ovoz/cover.png" {
		t.Fatalf("unexpected media deletes: %v", fx.media.deleted)
	}
}

func TestDrafts_ImageUploadMediaFailure(t *testing.T) {
	fx := newDraftsFixture()
	fx.media.uploadFn = func(ctx context.Context, name string, data []byte) (media.Upload, error) {
		return media.Upload{}, &media.Error{Op: "upload", Status: http.StatusInternalServerError, Message: "bucket unavailable"}
	}

	v := fx.open(t)
	w := fx.do(t, imageRequest(t, "/drafts/"+v.ID+"/image", "cover.png", pngBytes), http.StatusBadGateway)

	if got := decodeError(t, w).Error.Message; got != "bucket unavailable" {
		t.Fatalf("got message %q", got)
	}
}

func TestDrafts_DeleteImageFailureIsQueued(t *testing.T) {
	fx := newDraftsFixture()
	fx.media.deleteFn = func(ctx context.Context, key string) error {
		return errors.New("media down")
	}

	v := fx.open(t)
	base := "/drafts/" + v.ID

	fx.do(t, imageRequest(t, base+"/image", "cover.png", pngBytes), http.StatusOK)

	v = decodeView(t, fx.do(t, httptest.NewRequest(http.MethodDelete, base+"/image", nil), http.StatusOK))
	if v.Upload != nil {
		t.Fatalf("upload should be cleared even when the media delete fails")
	}

	if len(fx.cleanup.keys) != 1 || fx.cleanup.keys[0] != "ovoz/cover.png" {
		t.Fatalf("expected the key to be queued for cleanup, got %v", fx.cleanup.keys)
	}
}

func TestDrafts_Submit(t *testing.T) {
	tests := []struct {
		name     string
		outcome  submission.Outcome
		err      error
		want     int
		wantCode string
	}{
		{
			name:    "succeeded",
			outcome: submission.Outcome{Status: submission.StatusSucceeded, Action: submission.ActionCreate, Message: submission.MsgCreated, Redirect: "/event/edit/5"},
			want:    http.StatusOK,
		},
		{
			name:     "rejected",
			outcome:  submission.Outcome{Status: submission.StatusRejected, Action: submission.ActionCreate, Message: "Event name is required", Field: "name"},
			want:     http.StatusUnprocessableEntity,
			wantCode: "validation_failed",
		},
		{
			name:     "failed",
			outcome:  submission.Outcome{Status: submission.StatusFailed, Action: submission.ActionCreate, Message: "Event name already taken", Err: upstreamStatus(http.StatusBadRequest, "Event name already taken")},
			want:     http.StatusBadGateway,
			wantCode: "upstream_error",
		},
		{
			name:     "session_expired",
			outcome:  submission.Outcome{Status: submission.StatusFailed, Action: submission.ActionCreate, Message: submission.MsgCreateFailed, Err: upstreamStatus(http.StatusUnauthorized, "")},
			want:     http.StatusUnauthorized,
			wantCode: "upstream_unauthorized",
		},
		{
			name:     "in_flight",
			err:      draft.ErrInFlight,
			want:     http.StatusConflict,
			wantCode: "submission_in_flight",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fx := newDraftsFixture()
			fx.submit.submitFn = func(ctx context.Context, d *draft.Draft) (submission.Outcome, error) {
				return tt.outcome, tt.err
			}

			v := fx.open(t)
			w := fx.do(t, httptest.NewRequest(http.MethodPost, "/drafts/"+v.ID+"/submit", nil), tt.want)

			if tt.wantCode != "" {
				resp := decodeError(t, w)
				if resp.Error.Code != tt.wantCode {
					t.Fatalf("got code %q, want %q", resp.Error.Code, tt.wantCode)
				}
				if tt.outcome.Field != "" && resp.Error.Details["field"] != tt.outcome.Field {
					t.Fatalf("missing field detail: %+v", resp.Error.Details)
				}
				return
			}

			var out submission.Outcome
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("failed to unmarshal outcome: %v", err)
			}
			if out.Redirect != "/event/edit/5" {
				t.Fatalf("got redirect %q", out.Redirect)
			}
		})
	}
}

func TestDrafts_DiscardAndUnknown(t *testing.T) {
	fx := newDraftsFixture()
	v := fx.open(t)

	fx.do(t, httptest.NewRequest(http.MethodDelete, "/drafts/"+v.ID, nil), http.StatusNoContent)
	fx.do(t, httptest.NewRequest(http.MethodGet, "/drafts/"+v.ID, nil), http.StatusNotFound)
	fx.do(t, httptest.NewRequest(http.MethodDelete, "/drafts/"+v.ID, nil), http.StatusNotFound)
	fx.do(t, httptest.NewRequest(http.MethodGet, "/drafts/not-a-uuid", nil), http.StatusNotFound)

	if fx.repo.Len() != 0 {
		t.Fatalf("expected no open drafts, got %d", fx.repo.Len())
	}
}
