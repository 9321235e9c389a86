package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ritasuite/internal/domain"
)

// TrackerRepositoryPG implements domain.TrackerRepository.
type TrackerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTrackerRepository creates a tracking link repository backed by PostgreSQL.
func NewTrackerRepository(pool *pgxpool.Pool) *TrackerRepositoryPG {
	return &TrackerRepositoryPG{pool: pool}
}

// CreateLink inserts a new tracking link.
func (r *TrackerRepositoryPG) CreateLink(ctx context.Context, link *domain.TrackingLink) error {
	row := r.pool.QueryRow(ctx, `
INSERT INTO tracking_links (id, user_id, original_url, tracking_id, require_consent)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at;
`, link.ID, link.UserID, link.OriginalURL, link.TrackingID, link.RequireConsent)
	return row.Scan(&link.CreatedAt)
}

// GetLinkByTrackingID resolves a link from its short public id.
func (r *TrackerRepositoryPG) GetLinkByTrackingID(ctx context.Context, trackingID string) (*domain.TrackingLink, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, original_url, tracking_id, require_consent, created_at
FROM tracking_links
WHERE tracking_id = $1;
`, trackingID)
	return scanTrackingLink(row)
}

// ListLinksByUser returns the owner's links, newest first.
func (r *TrackerRepositoryPG) ListLinksByUser(ctx context.Context, userID string) ([]domain.TrackingLink, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, original_url, tracking_id, require_consent, created_at
FROM tracking_links
WHERE user_id = $1
ORDER BY created_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.TrackingLink
	for rows.Next() {
		link, err := scanTrackingLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// ListLogs returns the location pings recorded for a link, newest first.
func (r *TrackerRepositoryPG) ListLogs(ctx context.Context, linkID string) ([]domain.LocationLog, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, link_id, latitude, longitude, country, created_at
FROM location_logs
WHERE link_id = $1
ORDER BY created_at DESC;
`, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.LocationLog
	for rows.Next() {
		var l domain.LocationLog
		if err := rows.Scan(&l.ID, &l.LinkID, &l.Latitude, &l.Longitude, &l.Country, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// AddLog appends one position record for a link.
func (r *TrackerRepositoryPG) AddLog(ctx context.Context, log *domain.LocationLog) error {
	row := r.pool.QueryRow(ctx, `
INSERT INTO location_logs (link_id, latitude, longitude, country)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;
`, log.LinkID, log.Latitude, log.Longitude, log.Country)
	return row.Scan(&log.ID, &log.CreatedAt)
}

// DeleteLink removes an owner's link; location logs cascade in the schema.
func (r *TrackerRepositoryPG) DeleteLink(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tracking_links WHERE user_id = $1 AND id = $2;`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTrackingLink(row pgx.Row) (*domain.TrackingLink, error) {
	var link domain.TrackingLink
	if err := row.Scan(
		&link.ID,
		&link.UserID,
		&link.OriginalURL,
		&link.TrackingID,
		&link.RequireConsent,
		&link.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

var _ domain.TrackerRepository = (*TrackerRepositoryPG)(nil)
