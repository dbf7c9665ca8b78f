package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository handles answer database operations.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or replaces the answer for a question. Each question has
// at most one answer, keyed by question_id.
func (r *AnswerRepository) Upsert(ctx context.Context, answer *Answer) error {
	query := `
		INSERT INTO answers (id, question_id, text, published, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (question_id) DO UPDATE SET
			text = EXCLUDED.text,
			published = EXCLUDED.published
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		uuid.New(),
		answer.QuestionID,
		answer.Text,
		answer.Published,
	).Scan(&answer.ID, &answer.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting answer: %w", err)
	}
	return nil
}
