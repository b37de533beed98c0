package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/petdance/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Log records the terminal outcome of a video job.
func (r *GenerationRepository) Log(ctx context.Context, entry models.GenerationLog) error {
	const query = `
INSERT INTO generation_logs (user_id, dance_style, task_id, state, error)
VALUES (?, ?, NULLIF(?, ''), ?, NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query, entry.UserID, entry.DanceStyle, entry.TaskID, entry.State, entry.Error); err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}
