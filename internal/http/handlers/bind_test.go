package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/domain/candidate"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/http/handlers"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

// bindRoute answers 201 when body binds into a fresh T.
func bindRoute[T any](t *testing.T, body string) (*httptest.ResponseRecorder, bindErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/bind", func(ctx *gin.Context) {
		var req T
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp bindErrorResponse
	if w.Code != http.StatusCreated {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("error body is not json: %v body=%s", err, w.Body.String())
		}
	}
	return w, resp
}

func fieldsByName(resp bindErrorResponse) map[string]handlers.FieldError {
	out := map[string]handlers.FieldError{}
	for _, fe := range resp.Error.Details.Fields {
		out[fe.Field] = fe
	}
	return out
}

func TestBindJSON_CandidateRules(t *testing.T) {
	w, resp := bindRoute[candidate.CreateRequest](t, `{"name":""}`)
	if w.Code != http.StatusBadRequest || resp.Error.Code != "invalid_request" {
		t.Fatalf("got %d %q, want 400 invalid_request", w.Code, resp.Error.Code)
	}

	found := fieldsByName(resp)
	for field, rule := range map[string]string{"eventId": "required", "name": "required"} {
		fe, ok := found[field]
		if !ok {
			t.Fatalf("no error for %q in %+v", field, resp.Error.Details.Fields)
		}
		if fe.Rule != rule || fe.Message == "" {
			t.Fatalf("%q: rule=%q message=%q, want rule %q with a message", field, fe.Rule, fe.Message, rule)
		}
	}
}

func TestBindJSON_TypeMismatch(t *testing.T) {
	w, resp := bindRoute[candidate.CreateRequest](t, `{"eventId":"seven","name":"Alice"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	d := resp.Error.Details
	if d.JSON != "invalid_json_type" || d.Field != "eventId" {
		t.Fatalf("details = %+v, want invalid_json_type on eventId", d)
	}
	if len(d.Fields) != 1 || d.Fields[0].Rule != "type" || d.Fields[0].Message != "must be an integer" {
		t.Fatalf("fields = %+v", d.Fields)
	}
}

func TestBindJSON_Channel(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
		wantRule  string
		wantJSON  string
	}{
		{name: "complete", body: `{"id":"-1001","name":"News","link":"https://t.me/news"}`, wantCode: http.StatusCreated},
		{name: "missing_link", body: `{"id":"-1001","name":"News"}`, wantCode: http.StatusBadRequest, wantField: "link", wantRule: "required"},
		{name: "blank_name", body: `{"id":"-1001","name":"   ","link":"https://t.me/news"}`, wantCode: http.StatusBadRequest, wantField: "name", wantRule: "notblank"},
		{name: "truncated", body: `{"id":`, wantCode: http.StatusBadRequest, wantJSON: "invalid_json_syntax"},
		{name: "empty", body: ``, wantCode: http.StatusBadRequest, wantJSON: "invalid_json_syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := bindRoute[channel.CreateRequest](t, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantCode, w.Body.String())
			}

			if tt.wantJSON != "" && resp.Error.Details.JSON != tt.wantJSON {
				t.Fatalf("details.json = %q, want %q", resp.Error.Details.JSON, tt.wantJSON)
			}
			if tt.wantField == "" {
				return
			}

			fields := resp.Error.Details.Fields
			if len(fields) != 1 || fields[0].Field != tt.wantField || fields[0].Rule != tt.wantRule {
				t.Fatalf("unexpected field errors: %+v", fields)
			}
		})
	}
}
