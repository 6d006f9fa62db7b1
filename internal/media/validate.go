package media

import (
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

const MaxFileSize = 5 * 1024 * 1024

var (
	ErrNoFile          = errors.New("No file provided")
	ErrFileTooLarge    = errors.New("File size exceeds 5MB limit")
	ErrUnsupportedType = errors.New("File type not supported. Please upload a JPEG or PNG image.")
)

var allowedTypes = []string{"image/jpeg", "image/png"}

// Validate checks the size and sniffed content type of an upload. It returns
// the detected MIME type on success.
func Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoFile
	}

	if len(data) > MaxFileSize {
		return "", ErrFileTooLarge
	}

	m := mimetype.Detect(data)
	for _, allowed := range allowedTypes {
		if m.Is(allowed) {
			return allowed, nil
		}
	}

	return "", ErrUnsupportedType
}
