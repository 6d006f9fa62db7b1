package utils

import (
	"strconv"

	"github.com/google/uuid"
)

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ParseID reads a positive numeric path id as the voting API issues them.
func ParseID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
