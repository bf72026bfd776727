package feedback

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Rating bounds and comment limit.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 2000
)

// Feedback is a user verdict on a delivered answer (immutable).
type Feedback struct {
	id        string
	requestID string
	rating    int
	comment   string
	createdAt time.Time
}

// New validates and creates a Feedback record.
func New(id, requestID string, rating int, comment string) (Feedback, error) {
	if id == "" {
		return Feedback{}, fmt.Errorf("feedback id is required")
	}
	if requestID == "" {
		return Feedback{}, fmt.Errorf("request id is required")
	}
	if rating < MinRating || rating > MaxRating {
		return Feedback{}, fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return Feedback{}, fmt.Errorf("comment exceeds %d characters", MaxCommentLength)
	}
	return Feedback{
		id:        id,
		requestID: requestID,
		rating:    rating,
		comment:   comment,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Feedback without validation (storage hydration).
func Reconstruct(id, requestID string, rating int, comment string, createdAt time.Time) Feedback {
	return Feedback{id: id, requestID: requestID, rating: rating, comment: comment, createdAt: createdAt}
}

// ID returns the feedback identifier.
func (f *Feedback) ID() string { return f.id }

// RequestID returns the request this feedback refers to.
func (f *Feedback) RequestID() string { return f.requestID }

// Rating returns the 1..5 user rating.
func (f *Feedback) Rating() int { return f.rating }

// Comment returns the optional free-text comment.
func (f *Feedback) Comment() string { return f.comment }

// CreatedAt returns the submission time.
func (f *Feedback) CreatedAt() time.Time { return f.createdAt }

// Negative reports whether the rating signals a bad answer.
// Negative feedback invalidates the cached answer for the query.
func (f *Feedback) Negative() bool { return f.rating <= 2 }
