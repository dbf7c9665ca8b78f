package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question database operations.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new question, assigning its ID and creation time.
func (r *QuestionRepository) Create(ctx context.Context, question *Question) error {
	query := `
		INSERT INTO questions (id, name, email, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	question.ID = uuid.New()
	question.CreatedAt = time.Now()

	_, err := r.pool.Exec(ctx, query,
		question.ID,
		question.Name,
		question.Email,
		question.Message,
		question.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting question: %w", err)
	}
	return nil
}

// Get retrieves a question by ID.
func (r *QuestionRepository) Get(ctx context.Context, id uuid.UUID) (*Question, error) {
	query := `
		SELECT id, name, email, message, created_at
		FROM questions
		WHERE id = $1
	`
	var question Question
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&question.ID,
		&question.Name,
		&question.Email,
		&question.Message,
		&question.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying question: %w", err)
	}
	return &question, nil
}

// List returns questions with their answers, newest first. When
// publishedOnly is set, only questions with a published answer are
// returned (the public contact page view); otherwise every question is
// returned, answered or not (the admin view).
func (r *QuestionRepository) List(ctx context.Context, publishedOnly bool) ([]Question, error) {
	query := `
		SELECT q.id, q.name, q.email, q.message, q.created_at,
		       a.id, a.question_id, a.text, a.published, a.created_at
		FROM questions q
		LEFT JOIN answers a ON a.question_id = q.id
	`
	if publishedOnly {
		query += ` WHERE a.published`
	}
	query += ` ORDER BY q.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var question Question
		var answerID, answerQuestionID *uuid.UUID
		var answerText *string
		var answerPublished *bool
		var answerCreatedAt *time.Time

		err := rows.Scan(
			&question.ID,
			&question.Name,
			&question.Email,
			&question.Message,
			&question.CreatedAt,
			&answerID,
			&answerQuestionID,
			&answerText,
			&answerPublished,
			&answerCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}

		if answerID != nil {
			question.Answer = &Answer{
				ID:         *answerID,
				QuestionID: *answerQuestionID,
				Text:       *answerText,
				Published:  *answerPublished,
				CreatedAt:  *answerCreatedAt,
			}
		}

		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating questions: %w", err)
	}

	return questions, nil
}
