package schedule

import "errors"

var ErrNoDateSelected = errors.New("pick a date before setting the time")

// RangeError reports an hour or minute value outside its clock range.
type RangeError struct {
	Field   string
	Value   int
	Message string
}

func (e *RangeError) Error() string {
	return e.Message
}

func hoursRangeError(v int) *RangeError {
	return &RangeError{Field: "hours", Value: v, Message: "Hours must be between 0-23"}
}

func minutesRangeError(v int) *RangeError {
	return &RangeError{Field: "minutes", Value: v, Message: "Minutes must be between 0-59"}
}
