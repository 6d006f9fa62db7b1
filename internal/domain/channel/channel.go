package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("channel not found")

type Channel struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Link      string     `json:"link"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type CreateRequest struct {
	ID   string `json:"id" binding:"required,min=1"`
	Name string `json:"name" binding:"required,notblank"`
	Link string `json:"link" binding:"required,min=1"`
}

type UpdateRequest struct {
	ID   string `json:"id" binding:"required,min=1"`
	Name string `json:"name" binding:"required,notblank"`
	Link string `json:"link" binding:"required,min=1"`
}

// Ref points at a channel either through a full record fetched from the
// upstream or through a bare identifier typed in by the user. A bare id that
// arrived as a JSON number goes back out as the same number.
type Ref struct {
	id      string
	numeric bool
	record  *Channel
}

func RefID(id string) Ref {
	return Ref{id: id}
}

func RefRecord(c Channel) Ref {
	return Ref{id: c.ID, record: &c}
}

func (r Ref) ID() string {
	return r.id
}

func (r Ref) Record() (Channel, bool) {
	if r.record == nil {
		return Channel{}, false
	}

	return *r.record, true
}

// Bare drops the record, leaving the identifier alone.
func (r Ref) Bare() Ref {
	if r.record == nil {
		return r
	}

	return RefID(r.id)
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.record != nil {
		return json.Marshal(r.record)
	}
	if r.numeric {
		return []byte(r.id), nil
	}

	return json.Marshal(r.id)
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return errors.New("channel ref must not be null")
	case b[0] == '"':
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = RefID(strings.TrimSpace(id))
	case b[0] == '{':
		var c Channel
		if err := json.Unmarshal(b, &c); err != nil {
			return err
		}
		if c.ID == "" {
			return errors.New("channel record is missing id")
		}
		*r = RefRecord(c)
	default:
		// numeric ids are kept verbatim
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("unsupported channel ref: %s", string(b))
		}
		*r = Ref{id: n.String(), numeric: true}
	}

	if r.id == "" {
		return errors.New("channel ref must not be empty")
	}

	return nil
}

// IDs reduces refs to identifiers. A nil input stays nil so callers can tell
// an untouched collection from an empty one.
func IDs(refs []Ref) []string {
	if refs == nil {
		return nil
	}

	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID())
	}

	return out
}

func Refs(channels []Channel) []Ref {
	if channels == nil {
		return nil
	}

	out := make([]Ref, 0, len(channels))
	for _, c := range channels {
		out = append(out, RefRecord(c))
	}

	return out
}
