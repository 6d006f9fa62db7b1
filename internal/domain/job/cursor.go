package job

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor marks where a newest-first listing stopped, by (updated_at, id).
type Cursor struct {
	UpdatedAt time.Time `json:"u"`
	ID        string    `json:"i"`
}

// FirstPage sorts after every real job.
func FirstPage() Cursor {
	return Cursor{
		UpdatedAt: time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
		ID:        "ffffffff-ffff-ffff-ffff-ffffffffffff",
	}
}

func CursorAfter(j Job) Cursor {
	return Cursor{UpdatedAt: j.UpdatedAt, ID: j.ID}
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func ParseCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if c.UpdatedAt.IsZero() {
		return Cursor{}, ErrInvalidCursor
	}
	if _, err := uuid.Parse(c.ID); err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	return c, nil
}

// ListFilter narrows the admin job listing. Zero values mean "any".
type ListFilter struct {
	Status Status
	Type   string
	Limit  int
	After  Cursor
}

type Page struct {
	Items      []Job   `json:"items"`
	HasMore    bool    `json:"hasMore"`
	NextCursor *string `json:"nextCursor"`
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}
