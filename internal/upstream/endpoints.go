package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ovoz/admin/internal/domain/candidate"
	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/domain/event"
)

type Stats struct {
	Events     int `json:"events"`
	Candidates int `json:"candidates"`
	Votes      int `json:"votes"`
	Users      int `json:"users"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	Data        *struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

func (r loginResponse) token() string {
	for _, t := range []string{r.Token, r.AccessToken} {
		if t != "" {
			return t
		}
	}

	if r.Data != nil {
		if r.Data.Token != "" {
			return r.Data.Token
		}
		return r.Data.AccessToken
	}

	return ""
}

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	r, err := c.jsonRequest("login", http.MethodPost, "/admin/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	r.anonymous = true

	var out loginResponse
	if err := c.do(ctx, r, &out); err != nil {
		return "", err
	}

	tok := out.token()
	if tok == "" {
		return "", &Error{Op: "login", Status: http.StatusOK, Message: "login response carried no token"}
	}

	return tok, nil
}

func (c *Client) Dashboard(ctx context.Context) (Stats, error) {
	var out struct {
		Stats Stats `json:"stats"`
	}

	err := c.do(ctx, request{op: "dashboard", method: http.MethodGet, path: "/admin/dashboard"}, &out)

	return out.Stats, err
}

func (c *Client) ListEvents(ctx context.Context, keyword string) ([]event.Event, error) {
	var out struct {
		Events []event.Event `json:"events"`
	}

	err := c.do(ctx, request{op: "list_events", method: http.MethodGet, path: "/event", query: keywordQuery(keyword)}, &out)

	return nonNilEvents(out.Events), err
}

func (c *Client) EndingSoon(ctx context.Context) ([]event.Event, error) {
	var out struct {
		Events []event.Event `json:"events"`
	}

	err := c.do(ctx, request{op: "ending_soon", method: http.MethodGet, path: "/event/ending-soon"}, &out)

	return nonNilEvents(out.Events), err
}

func (c *Client) GetEvent(ctx context.Context, id int64) (event.Event, error) {
	var out struct {
		Info *event.Event `json:"info"`
	}

	err := c.do(ctx, request{op: "get_event", method: http.MethodGet, path: "/event/single/" + idPath(id)}, &out)
	if err != nil {
		return event.Event{}, err
	}

	if out.Info == nil {
		return event.Event{}, &Error{Op: "get_event", Status: http.StatusNotFound}
	}

	return *out.Info, nil
}

func (c *Client) CreateEvent(ctx context.Context, p Body) (event.Event, error) {
	r, err := c.payloadRequest("create_event", http.MethodPost, "/event", p)
	if err != nil {
		return event.Event{}, err
	}

	var out infoEnvelope
	if err := c.do(ctx, r, &out); err != nil {
		return event.Event{}, err
	}

	var ev event.Event
	if err := out.decode(&ev); err != nil {
		return event.Event{}, &Error{Op: "create_event", Status: http.StatusOK, Err: err}
	}

	return ev, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, p Body) (event.Event, error) {
	r, err := c.payloadRequest("update_event", http.MethodPut, "/event/"+idPath(id), p)
	if err != nil {
		return event.Event{}, err
	}

	var out infoEnvelope
	if err := c.do(ctx, r, &out); err != nil {
		return event.Event{}, err
	}

	ev := event.Event{ID: id}
	_ = out.decode(&ev)

	return ev, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.do(ctx, request{op: "delete_event", method: http.MethodDelete, path: "/event/" + idPath(id)}, nil)
}

func (c *Client) SendNotification(ctx context.Context, id int64) error {
	return c.do(ctx, request{op: "send_notification", method: http.MethodPost, path: "/event/send/" + idPath(id)}, nil)
}

func (c *Client) ListCandidates(ctx context.Context, eventID int64, keyword string) ([]candidate.Candidate, error) {
	var out struct {
		Candidates []candidate.Candidate `json:"candidates"`
	}

	err := c.do(ctx, request{
		op:     "list_candidates",
		method: http.MethodGet,
		path:   "/candidate/event/" + idPath(eventID),
		query:  keywordQuery(keyword),
	}, &out)

	if out.Candidates == nil {
		out.Candidates = []candidate.Candidate{}
	}

	return out.Candidates, err
}

func (c *Client) CreateCandidate(ctx context.Context, req candidate.CreateRequest) (candidate.Candidate, error) {
	r, err := c.jsonRequest("create_candidate", http.MethodPost, "/candidate", req)
	if err != nil {
		return candidate.Candidate{}, err
	}

	var out infoEnvelope
	if err := c.do(ctx, r, &out); err != nil {
		return candidate.Candidate{}, err
	}

	cand := candidate.Candidate{EventID: req.EventID, Name: req.Name}
	_ = out.decode(&cand, "candidate")

	return cand, nil
}

func (c *Client) UpdateCandidate(ctx context.Context, id int64, req candidate.UpdateRequest) (candidate.Candidate, error) {
	r, err := c.jsonRequest("update_candidate", http.MethodPut, "/candidate/"+idPath(id), req)
	if err != nil {
		return candidate.Candidate{}, err
	}

	var out infoEnvelope
	if err := c.do(ctx, r, &out); err != nil {
		return candidate.Candidate{}, err
	}

	cand := candidate.Candidate{ID: id, EventID: req.EventID, Name: req.Name}
	_ = out.decode(&cand, "candidate")

	return cand, nil
}

func (c *Client) DeleteCandidate(ctx context.Context, id int64) error {
	return c.do(ctx, request{op: "delete_candidate", method: http.MethodDelete, path: "/candidate/" + idPath(id)}, nil)
}

func (c *Client) ListChannels(ctx context.Context, keyword string) ([]channel.Channel, error) {
	var out struct {
		Channels []channel.Channel `json:"channels"`
	}

	err := c.do(ctx, request{op: "list_channels", method: http.MethodGet, path: "/channel", query: keywordQuery(keyword)}, &out)

	if out.Channels == nil {
		out.Channels = []channel.Channel{}
	}

	return out.Channels, err
}

func (c *Client) CreateChannel(ctx context.Context, req channel.CreateRequest) (channel.Channel, error) {
	r, err := c.jsonRequest("create_channel", http.MethodPost, "/channel", req)
	if err != nil {
		return channel.Channel{}, err
	}

	var out infoEnvelope
	if err := c.do(ctx, r, &out); err != nil {
		return channel.Channel{}, err
	}

	ch := channel.Channel{ID: req.ID, Name: req.Name, Link: req.Link}
	_ = out.decode(&ch, "channel")

	return ch, nil
}

func (c *Client) UpdateChannel(ctx context.Context, id string, req channel.UpdateRequest) (channel.Channel, error) {
	r, err := c.jsonRequest("update_channel", http.MethodPut, "/channel/"+url.PathEscape(id), req)
	if err != nil {
		return channel.Channel{}, err
	}

	var out infoEnvelope
	if err := c.do(ctx, r, &out); err != nil {
		return channel.Channel{}, err
	}

	ch := channel.Channel{ID: req.ID, Name: req.Name, Link: req.Link}
	_ = out.decode(&ch, "channel")

	return ch, nil
}

func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	return c.do(ctx, request{op: "delete_channel", method: http.MethodDelete, path: "/channel/" + url.PathEscape(id)}, nil)
}

// infoEnvelope keeps the whole response so the record can be found under
// "info", a resource-named key, or at the top level.
type infoEnvelope map[string]json.RawMessage

func (e infoEnvelope) decode(out any, keys ...string) error {
	for _, k := range append([]string{"info"}, keys...) {
		if raw, ok := e[k]; ok && len(bytes.TrimSpace(raw)) > 0 && string(raw) != "null" {
			return json.Unmarshal(raw, out)
		}
	}

	if _, ok := e["id"]; ok {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}

	return errNoRecord
}

var errNoRecord = &Error{Op: "decode", Message: "response carried no record"}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}

func nonNilEvents(in []event.Event) []event.Event {
	if in == nil {
		return []event.Event{}
	}

	return in
}
