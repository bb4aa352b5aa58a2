package upload

import (
	"errors"
	"fmt"
	"strings"
)

// FieldName is the multipart field the registrations endpoint reads the file from.
const FieldName = "csvFile"

const MaxFileSize = 5 << 20

var (
	ErrNoFile     = errors.New("no file selected")
	ErrNotCSV     = errors.New("invalid file type, please upload a CSV file")
	ErrFileTooBig = errors.New("file size too large, maximum size is 5MB")
)

// Validate rejects a file before it is sent: it must be named *.csv and be at most 5MB.
func Validate(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoFile
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return fmt.Errorf("%s: %w", name, ErrNotCSV)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%s (%d bytes): %w", name, size, ErrFileTooBig)
	}
	return nil
}
