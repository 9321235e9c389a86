package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ritasuite/internal/domain"
)

// VideoTaskRepositoryPG implements domain.VideoTaskRepository.
type VideoTaskRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVideoTaskRepository creates a video task repository backed by PostgreSQL.
func NewVideoTaskRepository(pool *pgxpool.Pool) *VideoTaskRepositoryPG {
	return &VideoTaskRepositoryPG{pool: pool}
}

const videoTaskColumns = `
id, user_id, video_id, video_url, author, description, cover_url, download_url,
play_count, likes, comments, shares, transcript, analysis, status, error_message,
created_at, completed_at`

// UpsertByVideoID inserts a fresh PENDING row for the video's natural key, or
// overwrites the mutable fields of the existing row. Analysis, error and
// completion timestamp are cleared so a resubmission starts a clean lifecycle.
func (r *VideoTaskRepositoryPG) UpsertByVideoID(ctx context.Context, task *domain.VideoTask) (*domain.VideoTask, error) {
	query := `
INSERT INTO video_tasks (id, user_id, video_id, video_url, author, description, cover_url, download_url,
                         play_count, likes, comments, shares, transcript, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (video_id) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    video_url = EXCLUDED.video_url,
    author = EXCLUDED.author,
    description = EXCLUDED.description,
    cover_url = EXCLUDED.cover_url,
    download_url = EXCLUDED.download_url,
    play_count = EXCLUDED.play_count,
    likes = EXCLUDED.likes,
    comments = EXCLUDED.comments,
    shares = EXCLUDED.shares,
    transcript = EXCLUDED.transcript,
    analysis = NULL,
    status = EXCLUDED.status,
    error_message = '',
    completed_at = NULL
RETURNING ` + videoTaskColumns + `;
`
	row := r.pool.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.VideoID,
		task.VideoURL,
		task.Author,
		task.Description,
		task.CoverURL,
		task.DownloadURL,
		task.PlayCount,
		task.Likes,
		task.Comments,
		task.Shares,
		task.Transcript,
		domain.StatusPending,
	)
	return scanVideoTask(row)
}

// GetByID fetches a task by id regardless of owner. Background pipelines use
// it; handlers must use GetForUser.
func (r *VideoTaskRepositoryPG) GetByID(ctx context.Context, id string) (*domain.VideoTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoTaskColumns+` FROM video_tasks WHERE id = $1;`, id)
	return scanVideoTask(row)
}

// GetForUser fetches a task by id scoped to its owner.
func (r *VideoTaskRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.VideoTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoTaskColumns+` FROM video_tasks WHERE id = $1 AND user_id = $2;`, id, userID)
	return scanVideoTask(row)
}

// ListByUser returns the owner's tasks, newest first.
func (r *VideoTaskRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.VideoTask, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+videoTaskColumns+` FROM video_tasks WHERE user_id = $1 ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.VideoTask
	for rows.Next() {
		task, err := scanVideoTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// MarkProcessing advances a PENDING task to PROCESSING.
func (r *VideoTaskRepositoryPG) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE video_tasks SET status = $2 WHERE id = $1 AND status = $3;`,
		id, domain.StatusProcessing, domain.StatusPending)
	return err
}

// Complete records the analysis payload and the terminal COMPLETE state.
func (r *VideoTaskRepositoryPG) Complete(ctx context.Context, id string, analysis json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
UPDATE video_tasks
SET status = $2, analysis = $3, error_message = '', completed_at = NOW()
WHERE id = $1;
`, id, domain.StatusComplete, analysis)
	return err
}

// Fail records the terminal FAILED state with an operator-sanitized message.
func (r *VideoTaskRepositoryPG) Fail(ctx context.Context, id, message string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE video_tasks
SET status = $2, error_message = $3, analysis = NULL, completed_at = NOW()
WHERE id = $1;
`, id, domain.StatusFailed, message)
	return err
}

// DeleteByIDs removes the owner's tasks matching ids and reports how many
// rows were deleted. Deleting zero matches is not an error.
func (r *VideoTaskRepositoryPG) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM video_tasks WHERE user_id = $1 AND id = ANY($2);`, userID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteTerminalBefore removes terminal tasks completed before the cutoff.
func (r *VideoTaskRepositoryPG) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM video_tasks
WHERE status IN ($1, $2) AND completed_at < $3;
`, domain.StatusComplete, domain.StatusFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanVideoTask(row pgx.Row) (*domain.VideoTask, error) {
	var task domain.VideoTask
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.VideoID,
		&task.VideoURL,
		&task.Author,
		&task.Description,
		&task.CoverURL,
		&task.DownloadURL,
		&task.PlayCount,
		&task.Likes,
		&task.Comments,
		&task.Shares,
		&task.Transcript,
		&task.Analysis,
		&task.Status,
		&task.ErrorMessage,
		&task.CreatedAt,
		&task.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

var _ domain.VideoTaskRepository = (*VideoTaskRepositoryPG)(nil)
