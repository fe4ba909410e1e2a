package errors

import (
	"strings"
	"unicode"
)

// ValidateFilename validates a base filename suggested by a caller for a
// saved export. It rejects anything that could escape the output directory.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 255 characters
//   - No control characters or null bytes
//   - No path separators or traversal sequences
func ValidateFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	}

	const maxFilenameLength = 255
	if len(name) > maxFilenameLength {
		return New(ErrCodeInvalidPath, "filename too long (max %d characters)", maxFilenameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "filename contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "filename cannot contain path separators")
	}

	if name == "." || name == ".." || strings.Contains(name, "..") {
		return New(ErrCodeInvalidPath, "filename cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateCaptureID validates a capture record identifier.
// Identifiers are UUID strings but only the character set is enforced, so
// that keys stay safe for every store backend.
func ValidateCaptureID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "capture id cannot be empty")
	}
	if len(id) > 64 {
		return New(ErrCodeInvalidInput, "capture id too long (max 64 characters)")
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return New(ErrCodeInvalidInput, "capture id contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateQuality checks that an image quality is within [0, 100].
func ValidateQuality(quality int) error {
	if quality < 0 || quality > 100 {
		return New(ErrCodeInvalidInput, "quality must be between 0 and 100, got %d", quality)
	}
	return nil
}

// ValidateURL validates a page URL recorded with a capture.
// An empty URL is allowed (captures from local files have none).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") && !strings.HasPrefix(rawURL, "file://") {
		return New(ErrCodeInvalidInput, "URL must use http, https or file scheme")
	}

	return nil
}
