package domain

import (
	"context"
	"encoding/json"
	"time"
)

// VideoTaskRepository persists TikTok analysis tasks. UpsertByVideoID is the
// sole creation path: the video id is the natural key and a resubmission
// overwrites the mutable fields of the existing row.
type VideoTaskRepository interface {
	UpsertByVideoID(ctx context.Context, task *VideoTask) (*VideoTask, error)
	GetByID(ctx context.Context, id string) (*VideoTask, error)
	GetForUser(ctx context.Context, id, userID string) (*VideoTask, error)
	ListByUser(ctx context.Context, userID string) ([]VideoTask, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, analysis json.RawMessage) error
	Fail(ctx context.Context, id, message string) error
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScrapeTaskRepository persists scraping tasks. Deletions return the storage
// keys of result artifacts so callers can remove them from the artifact store.
type ScrapeTaskRepository interface {
	Create(ctx context.Context, task *ScrapeTask) error
	GetByID(ctx context.Context, id string) (*ScrapeTask, error)
	GetForUser(ctx context.Context, id, userID string) (*ScrapeTask, error)
	ListByUser(ctx context.Context, userID string) ([]ScrapeTask, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id, jsonKey, csvKey string, usage ScrapeUsage) error
	Fail(ctx context.Context, id, message string) error
	DeleteByIDs(ctx context.Context, userID string, ids []string) ([]string, error)
	DeleteAllForUser(ctx context.Context, userID string) ([]string, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// ChatRepository persists conversation history per user.
type ChatRepository interface {
	Append(ctx context.Context, msg *ChatMessage) (*ChatMessage, error)
	ListByUser(ctx context.Context, userID string) ([]ChatMessage, error)
	DeleteAllForUser(ctx context.Context, userID string) error
}

// TrackerRepository persists tracking links and their location logs.
type TrackerRepository interface {
	CreateLink(ctx context.Context, link *TrackingLink) error
	GetLinkByTrackingID(ctx context.Context, trackingID string) (*TrackingLink, error)
	ListLinksByUser(ctx context.Context, userID string) ([]TrackingLink, error)
	ListLogs(ctx context.Context, linkID string) ([]LocationLog, error)
	AddLog(ctx context.Context, log *LocationLog) error
	DeleteLink(ctx context.Context, userID, id string) error
}
