package leads

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest accepted message, in characters.
const MaxMessageLength = 1000

const (
	msgNameTooShort   = "Name must be at least 2 characters long"
	msgNameCharacters = "Name can only contain letters and spaces"
	msgEmailInvalid   = "Please provide a valid email address"
	msgPhoneInvalid   = "Please provide a valid phone number"
	msgMessageTooLong = "Message cannot exceed 1000 characters"
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z ]+$`)

	// Optional +1/1 country code, optional parens around the area code,
	// then 3+4 digits with '-', '.' or ' ' separators.
	phonePattern = regexp.MustCompile(`^(\+?1[-. ]?)?\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)
)

// Validate checks every field of sub and returns the normalized submission.
// All violations are collected; a non-empty ValidationErrors means the
// returned submission must not be used.
func Validate(sub Submission) (Submission, ValidationErrors) {
	var errs ValidationErrors
	out := Submission{}

	out.Name = strings.TrimSpace(sub.Name)
	if utf8.RuneCountInString(out.Name) < 2 {
		errs = append(errs, FieldError{Field: "name", Message: msgNameTooShort})
	}
	if !namePattern.MatchString(out.Name) {
		errs = append(errs, FieldError{Field: "name", Message: msgNameCharacters})
	}

	email := strings.TrimSpace(sub.Email)
	if normalized, ok := NormalizeEmail(email); ok && IsEmail(email) {
		out.Email = normalized
	} else {
		errs = append(errs, FieldError{Field: "email", Message: msgEmailInvalid})
	}

	out.Phone = strings.TrimSpace(sub.Phone)
	if !phonePattern.MatchString(out.Phone) {
		errs = append(errs, FieldError{Field: "phone", Message: msgPhoneInvalid})
	}

	out.Message = strings.TrimSpace(sub.Message)
	if utf8.RuneCountInString(out.Message) > MaxMessageLength {
		errs = append(errs, FieldError{Field: "message", Message: msgMessageTooLong})
	}

	out.Type = strings.TrimSpace(sub.Type)
	if out.Type == "" {
		out.Type = DefaultType
	}

	if len(errs) > 0 {
		return Submission{}, errs
	}
	return out, nil
}
