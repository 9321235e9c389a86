package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskStatus enumerates the lifecycle states of a background task. Transitions
// are strictly forward: PENDING -> PROCESSING -> (COMPLETE | FAILED).
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusComplete   TaskStatus = "COMPLETE"
	StatusFailed     TaskStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// VideoTask tracks one TikTok analysis request from submission to completion.
// The TikTok video id is the natural key: resubmitting the same video upserts
// the existing row instead of creating a duplicate.
type VideoTask struct {
	ID           string
	UserID       string
	VideoID      string
	VideoURL     string
	Author       string
	Description  string
	CoverURL     string
	DownloadURL  string
	PlayCount    int
	Likes        int
	Comments     int
	Shares       int
	Transcript   string
	Analysis     json.RawMessage
	Status       TaskStatus
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// VideoAnalysis is the structured payload the analyzer is expected to return.
type VideoAnalysis struct {
	Summary    string   `json:"summary"`
	MainTopics []string `json:"main_topics"`
}

// ScrapeTask tracks one structured-extraction request. Fields holds the
// user-declared field list as submitted (comma separated); JSONKey and CSVKey
// point at the persisted result artifacts once the task completes.
type ScrapeTask struct {
	ID           string
	UserID       string
	URL          string
	Fields       string
	Model        string
	Status       TaskStatus
	JSONKey      string
	CSVKey       string
	InputTokens  int
	OutputTokens int
	TotalCost    float64
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// ScrapeUsage carries token accounting reported by the extraction provider.
type ScrapeUsage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64
}

// FieldList splits the declared field string into trimmed, non-empty names.
func (t *ScrapeTask) FieldList() []string {
	var fields []string
	for _, f := range strings.Split(t.Fields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
