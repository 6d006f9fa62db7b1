package candidate

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("candidate not found")

type Candidate struct {
	ID        int64      `json:"id"`
	EventID   int64      `json:"eventId"`
	Name      string     `json:"name"`
	Votes     int        `json:"votes"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type CreateRequest struct {
	EventID int64  `json:"eventId" binding:"required,min=1"`
	Name    string `json:"name" binding:"required,notblank,max=200"`
}

type UpdateRequest struct {
	EventID int64  `json:"eventId" binding:"required,min=1"`
	Name    string `json:"name" binding:"required,notblank,max=200"`
}
