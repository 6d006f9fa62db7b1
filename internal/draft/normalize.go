package draft

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ovoz/admin/internal/domain/channel"
	"github.com/ovoz/admin/internal/schedule"
)

// FinishDateLayout is the ISO-8601 form the upstream parses finish dates in.
const FinishDateLayout = "2006-01-02T15:04:05.000Z"

const (
	FieldName              = "name"
	FieldDescr             = "descr"
	FieldFinishDate        = "finishDate"
	FieldIsActive          = "isActive"
	FieldSubscribeChannels = "subscribeChannels"
	FieldSentChannels      = "sentChannels"
	FieldImageURL          = "imageUrl"
	FieldImageID           = "imageId"
	FieldImageName         = "imageName"
)

const (
	MsgNameRequired   = "name is required"
	MsgFinishRequired = "finish date is required"
	MsgFinishTooSoon  = "finish date must be at least 10 minutes in the future"
)

// ValidationError rejects a draft before anything is sent upstream.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Normalize turns a draft snapshot into the upstream payload. now is the only
// input besides the snapshot; the finish date is checked against it.
func Normalize(s Snapshot, now time.Time) (Payload, error) {
	if s.Name == "" {
		return Payload{}, &ValidationError{Field: FieldName, Message: MsgNameRequired}
	}

	if s.Finish == nil {
		return Payload{}, &ValidationError{Field: FieldFinishDate, Message: MsgFinishRequired}
	}

	if !schedule.IsValidFuture(*s.Finish, now) {
		return Payload{}, &ValidationError{Field: FieldFinishDate, Message: MsgFinishTooSoon}
	}

	var p Payload

	p.set(FieldName, s.Name)

	if s.Descr != nil {
		p.set(FieldDescr, *s.Descr)
	}

	p.set(FieldFinishDate, FormatFinishDate(*s.Finish))

	if s.IsActive != nil {
		p.set(FieldIsActive, strconv.FormatBool(*s.IsActive))
	}

	if s.SubscribeChannels != nil {
		p.set(FieldSubscribeChannels, encodeRefs(s.SubscribeChannels))
	}

	if s.SentChannels != nil {
		p.set(FieldSentChannels, encodeRefs(s.SentChannels))
	}

	switch {
	case s.Upload != nil:
		p.set(FieldImageURL, s.Upload.URL)
		p.set(FieldImageID, s.Upload.ID)
		p.set(FieldImageName, s.Upload.Name)
	case s.Mode == ModeEdit:
		var img ExistingImage
		if s.Existing != nil {
			img = *s.Existing
		}
		p.set(FieldImageURL, img.URL)
		p.set(FieldImageID, img.ID)
		p.set(FieldImageName, img.Name)
	}

	return p, nil
}

func FormatFinishDate(t time.Time) string {
	return t.UTC().Format(FinishDateLayout)
}

func encodeRefs(refs []channel.Ref) string {
	var bare []channel.Ref
	if refs != nil {
		bare = make([]channel.Ref, len(refs))
		for i, r := range refs {
			bare[i] = r.Bare()
		}
	}

	b, err := json.Marshal(bare)
	if err != nil {
		// bare refs always marshal
		return "[]"
	}

	return string(b)
}
