package versioning

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"guidepress/internal/models"
)

// Validation limits for content fields.
const (
	maxTitleLen       = 300
	maxSlugLen        = 300
	maxDescriptionLen = 1_000
	maxThumbnailLen   = 2_000
	maxBodyLen        = 500_000
)

// slugPattern accepts lowercase words separated by single hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// validateFields checks the fields present in a request and returns the
// first problem found, wrapped in ErrInvalidInput.
func validateFields(f models.ContentFields) error {
	if f.Title != nil {
		title := strings.TrimSpace(*f.Title)
		if title == "" {
			return invalid("Title is required.")
		}
		if utf8.RuneCountInString(title) > maxTitleLen {
			return invalid("Title is too long (max 300 characters).")
		}
	}
	if f.Slug != nil && *f.Slug != "" {
		if utf8.RuneCountInString(*f.Slug) > maxSlugLen {
			return invalid("Slug is too long (max 300 characters).")
		}
		if !slugPattern.MatchString(*f.Slug) {
			return invalid("Slug may only contain lowercase letters, digits and single hyphens.")
		}
	}
	if f.Description != nil && utf8.RuneCountInString(*f.Description) > maxDescriptionLen {
		return invalid("Description is too long (max 1,000 characters).")
	}
	if f.Thumbnail != nil && utf8.RuneCountInString(*f.Thumbnail) > maxThumbnailLen {
		return invalid("Thumbnail URL is too long (max 2,000 characters).")
	}
	if f.Body != nil && utf8.RuneCountInString(*f.Body) > maxBodyLen {
		return invalid("Content is too long (max 500,000 characters).")
	}
	if f.Visibility != nil && !f.Visibility.Valid() {
		return invalid("Visibility must be public or unlisted.")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
