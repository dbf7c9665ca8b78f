package db

import (
	"time"

	"github.com/google/uuid"
)

// Question is a visitor-submitted question from the contact page.
type Question struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Message   string
	CreatedAt time.Time

	// Answer is populated by list queries; nil when unanswered.
	Answer *Answer
}

// Answer is the site owner's reply to a question. Only published answers
// are shown publicly.
type Answer struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	Published  bool
	CreatedAt  time.Time
}
