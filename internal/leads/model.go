package leads

import (
	"fmt"
	"time"
)

// DefaultType is applied when a submission carries no type tag.
const DefaultType = "lead"

// TimestampLayout is the millisecond-precision UTC form written to the store.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Submission is the raw, untrusted form payload.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Lead is a validated submission stamped with the server receive time.
type Lead struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewLead builds a Lead from an already validated submission.
func NewLead(valid Submission, submittedAt time.Time) Lead {
	return Lead{
		Name:        valid.Name,
		Email:       valid.Email,
		Phone:       valid.Phone,
		Message:     valid.Message,
		Type:        valid.Type,
		SubmittedAt: submittedAt.UTC(),
	}
}

// SubmittedAtString formats the receive time the way it is stored.
func (l Lead) SubmittedAtString() string {
	return l.SubmittedAt.UTC().Format(TimestampLayout)
}

// Row returns the six store columns in their fixed order.
func (l Lead) Row() []interface{} {
	return []interface{}{
		l.SubmittedAtString(),
		l.Name,
		l.Email,
		l.Phone,
		l.Message,
		l.Type,
	}
}

// Record is one stored row read back from the store.
type Record struct {
	SubmittedAt string `json:"submittedAt"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
	Type        string `json:"type"`
}

// RecordFromRow maps a stored row onto a Record. The store may drop trailing
// empty cells, so short rows are padded with empty strings.
func RecordFromRow(row []interface{}) Record {
	cell := func(i int) string {
		if i >= len(row) || row[i] == nil {
			return ""
		}
		if s, ok := row[i].(string); ok {
			return s
		}
		return fmt.Sprint(row[i])
	}
	return Record{
		SubmittedAt: cell(0),
		Name:        cell(1),
		Email:       cell(2),
		Phone:       cell(3),
		Message:     cell(4),
		Type:        cell(5),
	}
}

// Record returns the lead in its stored shape.
func (l Lead) Record() Record {
	return Record{
		SubmittedAt: l.SubmittedAtString(),
		Name:        l.Name,
		Email:       l.Email,
		Phone:       l.Phone,
		Message:     l.Message,
		Type:        l.Type,
	}
}
