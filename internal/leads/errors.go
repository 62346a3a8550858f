package leads

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure so callers can branch on it.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindStore      Kind = "STORE_ERROR"
	KindNotify     Kind = "NOTIFY_ERROR"
	KindAuth       Kind = "AUTH_ERROR"
	KindUnknown    Kind = "UNKNOWN_ERROR"
)

var (
	// ErrUnauthorized is returned when the admin secret does not match.
	ErrUnauthorized = errors.New("invalid admin secret provided")

	// ErrMissingCredentials is returned when the store identity or key is absent.
	ErrMissingCredentials = errors.New("google sheets credentials are missing: set GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_PRIVATE_KEY")

	// ErrMissingSpreadsheet is returned when no spreadsheet id is configured.
	ErrMissingSpreadsheet = errors.New("google sheets spreadsheet id is missing: set GOOGLE_SHEET_ID")
)

// Error is a tagged pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("leads: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("leads: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the underlying error text without the kind prefix.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf returns the kind of the first tagged error in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return KindValidation
	}
	return KindUnknown
}

// tag wraps err with kind unless it already carries one.
func tag(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the ordered list of every field that failed validation.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the distinct field names in first-seen order.
func (v ValidationErrors) Fields() []string {
	seen := make(map[string]bool, len(v))
	fields := make([]string, 0, len(v))
	for _, fe := range v {
		if seen[fe.Field] {
			continue
		}
		seen[fe.Field] = true
		fields = append(fields, fe.Field)
	}
	return fields
}
