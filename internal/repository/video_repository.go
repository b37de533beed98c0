package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/petdance/internal/models"
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	const query = `
INSERT INTO videos (user_id, dance_style, video_url, thumbnail_url, task_id)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, video.UserID, video.DanceStyle, video.VideoURL, video.ThumbnailURL, video.TaskID)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	video.ID = id
	return nil
}

func (r *VideoRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	const query = `
SELECT id, user_id, dance_style, video_url, COALESCE(thumbnail_url, ''), COALESCE(task_id, ''), created_at
FROM videos
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.UserID, &v.DanceStyle, &v.VideoURL, &v.ThumbnailURL, &v.TaskID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
