package event

import (
	"errors"
	"time"

	"github.com/ovoz/admin/internal/domain/channel"
)

var ErrNotFound = errors.New("event not found")

type Status string

const (
	StatusFinished Status = "finished"
	StatusEnding   Status = "ending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// EndingWindow is how close to its finish an event counts as ending when the
// upstream did not say so itself.
const EndingWindow = 24 * time.Hour

type FormattedFinishDate struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	TimeRemaining string `json:"timeRemaining"`
	IsFinished    bool   `json:"isFinished"`
	IsEnding      bool   `json:"isEnding"`
}

type Event struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name"`
	Descr               string               `json:"descr"`
	ImageName           string               `json:"imageName"`
	ImageURL            string               `json:"imageUrl"`
	ImageID             string               `json:"imageId"`
	FinishDate          time.Time            `json:"finishDate"`
	IsActive            bool                 `json:"isActive"`
	SubscribeChannels   []channel.Channel    `json:"subscribeChannels"`
	SentChannels        []channel.Channel    `json:"sentChannels"`
	CreatedAt           *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time           `json:"updatedAt,omitempty"`
	FormattedFinishDate *FormattedFinishDate `json:"formattedFinishDate,omitempty"`
}

// View is an event as the dashboard lists it.
type View struct {
	Event
	Status Status `json:"status"`
}

func (e Event) StatusAt(now time.Time) Status {
	if f := e.FormattedFinishDate; f != nil {
		switch {
		case f.IsFinished:
			return StatusFinished
		case f.IsEnding:
			return StatusEnding
		}
	} else {
		switch {
		case !e.FinishDate.After(now):
			return StatusFinished
		case e.FinishDate.Sub(now) <= EndingWindow:
			return StatusEnding
		}
	}

	if e.IsActive {
		return StatusActive
	}

	return StatusInactive
}

func Views(events []Event, now time.Time) []View {
	out := make([]View, 0, len(events))
	for _, e := range events {
		out = append(out, View{Event: e, Status: e.StatusAt(now)})
	}

	return out
}
