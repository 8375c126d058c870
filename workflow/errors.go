package workflow

import (
	"errors"
	"fmt"
	"strings"

	"sitequill/store"
)

var ErrMissingMetadata = errors.New("website is missing required metadata")

// Re-exported so callers only need this package to classify failures.
var (
	ErrNotFound   = store.ErrNotFound
	ErrConflict   = store.ErrConflict
	ErrValidation = store.ErrValidation
)

// MissingMetadataError lists the website fields that must be filled in
// before content can be generated.
type MissingMetadataError struct {
	WebsiteURL string
	Fields     []string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("website %s is missing %s", e.WebsiteURL, strings.Join(e.Fields, ", "))
}

func (e *MissingMetadataError) Is(target error) bool { return target == ErrMissingMetadata }
