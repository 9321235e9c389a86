package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ritasuite/internal/domain"
)

// ScrapeTaskRepositoryPG implements domain.ScrapeTaskRepository.
type ScrapeTaskRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewScrapeTaskRepository creates a scrape task repository backed by PostgreSQL.
func NewScrapeTaskRepository(pool *pgxpool.Pool) *ScrapeTaskRepositoryPG {
	return &ScrapeTaskRepositoryPG{pool: pool}
}

const scrapeTaskColumns = `
id, user_id, url, fields, model, status, json_key, csv_key,
input_tokens, output_tokens, total_cost, error_message, created_at, completed_at`

// Create inserts a new PENDING scrape task.
func (r *ScrapeTaskRepositoryPG) Create(ctx context.Context, task *domain.ScrapeTask) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO scrape_tasks (id, user_id, url, fields, model, status)
VALUES ($1, $2, $3, $4, $5, $6);
`, task.ID, task.UserID, task.URL, task.Fields, task.Model, domain.StatusPending)
	return err
}

// GetByID fetches a task by id regardless of owner; for background pipelines.
func (r *ScrapeTaskRepositoryPG) GetByID(ctx context.Context, id string) (*domain.ScrapeTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scrapeTaskColumns+` FROM scrape_tasks WHERE id = $1;`, id)
	return scanScrapeTask(row)
}

// GetForUser fetches a task by id scoped to its owner.
func (r *ScrapeTaskRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.ScrapeTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scrapeTaskColumns+` FROM scrape_tasks WHERE id = $1 AND user_id = $2;`, id, userID)
	return scanScrapeTask(row)
}

// ListByUser returns the owner's tasks, newest first.
func (r *ScrapeTaskRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.ScrapeTask, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scrapeTaskColumns+` FROM scrape_tasks WHERE user_id = $1 ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.ScrapeTask
	for rows.Next() {
		task, err := scanScrapeTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// MarkProcessing advances a PENDING task to PROCESSING.
func (r *ScrapeTaskRepositoryPG) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE scrape_tasks SET status = $2 WHERE id = $1 AND status = $3;`,
		id, domain.StatusProcessing, domain.StatusPending)
	return err
}

// Complete records artifact keys, usage accounting and the terminal COMPLETE
// state in one atomic write.
func (r *ScrapeTaskRepositoryPG) Complete(ctx context.Context, id, jsonKey, csvKey string, usage domain.ScrapeUsage) error {
	_, err := r.pool.Exec(ctx, `
UPDATE scrape_tasks
SET status = $2, json_key = $3, csv_key = $4,
    input_tokens = $5, output_tokens = $6, total_cost = $7,
    error_message = '', completed_at = NOW()
WHERE id = $1;
`, id, domain.StatusComplete, jsonKey, csvKey, usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	return err
}

// Fail records the terminal FAILED state.
func (r *ScrapeTaskRepositoryPG) Fail(ctx context.Context, id, message string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE scrape_tasks
SET status = $2, error_message = $3, completed_at = NOW()
WHERE id = $1;
`, id, domain.StatusFailed, message)
	return err
}

// DeleteByIDs removes the owner's tasks matching ids and returns the artifact
// keys of the deleted rows so the caller can clean up the artifact store.
func (r *ScrapeTaskRepositoryPG) DeleteByIDs(ctx context.Context, userID string, ids []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
DELETE FROM scrape_tasks WHERE user_id = $1 AND id = ANY($2)
RETURNING json_key, csv_key;
`, userID, ids)
	if err != nil {
		return nil, err
	}
	return collectArtifactKeys(rows)
}

// DeleteAllForUser removes every task owned by the user.
func (r *ScrapeTaskRepositoryPG) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
DELETE FROM scrape_tasks WHERE user_id = $1
RETURNING json_key, csv_key;
`, userID)
	if err != nil {
		return nil, err
	}
	return collectArtifactKeys(rows)
}

// DeleteTerminalBefore removes terminal tasks completed before the cutoff.
func (r *ScrapeTaskRepositoryPG) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
DELETE FROM scrape_tasks
WHERE status IN ($1, $2) AND completed_at < $3
RETURNING json_key, csv_key;
`, domain.StatusComplete, domain.StatusFailed, cutoff)
	if err != nil {
		return nil, err
	}
	return collectArtifactKeys(rows)
}

func collectArtifactKeys(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var jsonKey, csvKey string
		if err := rows.Scan(&jsonKey, &csvKey); err != nil {
			return nil, err
		}
		if jsonKey != "" {
			keys = append(keys, jsonKey)
		}
		if csvKey != "" {
			keys = append(keys, csvKey)
		}
	}
	return keys, rows.Err()
}

func scanScrapeTask(row pgx.Row) (*domain.ScrapeTask, error) {
	var task domain.ScrapeTask
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.URL,
		&task.Fields,
		&task.Model,
		&task.Status,
		&task.JSONKey,
		&task.CSVKey,
		&task.InputTokens,
		&task.OutputTokens,
		&task.TotalCost,
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

var _ domain.ScrapeTaskRepository = (*ScrapeTaskRepositoryPG)(nil)
