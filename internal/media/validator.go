// Package media validates uploaded interview recordings before any processing
// begins and maps container extensions to MIME types for the AI backend.
package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxUploadBytes is the hard ceiling for a single recording (100 MiB).
const MaxUploadBytes int64 = 100 << 20

// DefaultExtension is assumed when the uploaded name carries no extension.
// Browser recorders produce webm.
const DefaultExtension = ".webm"

// supportedExtensions is the allow-list of video containers, in display order.
var supportedExtensions = []string{".mp4", ".webm", ".mkv", ".avi", ".mov", ".wmv"}

var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".mp3":  "audio/mpeg",
}

// Reason identifies which validation rule rejected an upload.
type Reason string

const (
	// ReasonUnsupportedFormat means the extension is not in the allow-list.
	ReasonUnsupportedFormat Reason = "unsupported_format"
	// ReasonTooLarge means the declared size exceeds MaxUploadBytes.
	ReasonTooLarge Reason = "too_large"
	// ReasonEmpty means the declared size is zero or the payload is empty.
	ReasonEmpty Reason = "empty"
	// ReasonMissing means no file was attached to the request.
	ReasonMissing Reason = "missing"
)

var reasonMessages = map[Reason]string{
	ReasonUnsupportedFormat: "Unsupported file format. Supported formats: " + strings.Join(supportedExtensions, ", "),
	ReasonTooLarge:          "File too large (max 100MB)",
	ReasonEmpty:             "Empty video file",
	ReasonMissing:           "No video file provided",
}

// ValidationError is returned when an upload is rejected. Its Message is safe
// to show to the end user.
type ValidationError struct {
	Reason  Reason
	Message string
	Err     error
}

// NewValidationError builds a ValidationError with the user-facing message for reason.
func NewValidationError(reason Reason, err error) *ValidationError {
	return &ValidationError{Reason: reason, Message: reasonMessages[reason], Err: err}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid input (%s)", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validator checks uploads against the extension allow-list and size bounds.
// It has no side effects and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	allowTag string
	sizeMax  string
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),
		allowTag: "oneof=" + strings.Join(supportedExtensions, " "),
		sizeMax:  fmt.Sprintf("lte=%d", MaxUploadBytes),
	}
}

// Validate applies the rules in order: extension, size ceiling, non-empty.
// A name without an extension is accepted.
func (v *Validator) Validate(declaredName string, declaredSize int64, payloadNonEmpty bool) error {
	if ext := Extension(declaredName); ext != "" {
		if err := v.validate.Var(ext, v.allowTag); err != nil {
			return NewValidationError(ReasonUnsupportedFormat, fmt.Errorf("extension %q: %w", ext, err))
		}
	}

	if err := v.validate.Var(declaredSize, v.sizeMax); err != nil {
		return NewValidationError(ReasonTooLarge, fmt.Errorf("size %d: %w", declaredSize, err))
	}

	if err := v.validate.Var(declaredSize, "gt=0"); err != nil || !payloadNonEmpty {
		return NewValidationError(ReasonEmpty, err)
	}

	return nil
}

// Extension returns the lower-cased extension of name including the dot,
// or "" when there is none.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// StorageExtension returns the extension to store an upload under, applying
// DefaultExtension when the name has none.
func StorageExtension(name string) string {
	if ext := Extension(name); ext != "" {
		return ext
	}
	return DefaultExtension
}

// SupportedExtensions returns a copy of the extension allow-list.
func SupportedExtensions() []string {
	return append([]string(nil), supportedExtensions...)
}

// MIMEType returns the MIME type for a file extension or path.
// Unknown extensions map to application/octet-stream.
func MIMEType(pathOrExt string) string {
	if mt, ok := mimeTypes[Extension(pathOrExt)]; ok {
		return mt
	}
	return "application/octet-stream"
}
