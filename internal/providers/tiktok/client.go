package tiktok

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when no RapidAPI key is set.
var ErrNotConfigured = fmt.Errorf("tiktok: api key not configured")

// VideoInfo is the normalized metadata resolved for one video URL.
type VideoInfo struct {
	VideoID     string
	Author      string
	Description string
	CoverURL    string
	DownloadURL string
	MusicURL    string
	PlayCount   int
	Likes       int
	Comments    int
	Shares      int
}

// InfoFetcher resolves a video URL to its metadata.
type InfoFetcher interface {
	VideoInfo(ctx context.Context, videoURL string) (*VideoInfo, error)
}

// Client fetches video metadata from the RapidAPI no-watermark endpoint.
type Client struct {
	apiKey string
	host   string
	http   *resty.Client
}

// NewClient constructs a client for the given RapidAPI base URL and key.
func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
		})

	return &Client{apiKey: apiKey, host: host, http: http}
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Cover  string `json:"cover"`
		Play   string `json:"play"`
		Music  string `json:"music"`
		Author struct {
			UniqueID string `json:"unique_id"`
		} `json:"author"`
		PlayCount    int `json:"play_count"`
		DiggCount    int `json:"digg_count"`
		CommentCount int `json:"comment_count"`
		ShareCount   int `json:"share_count"`
	} `json:"data"`
}

// VideoInfo resolves the video URL to metadata. A non-zero API code or a
// missing data block is reported as an error with the provider's message.
func (c *Client) VideoInfo(ctx context.Context, videoURL string) (*VideoInfo, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-RapidAPI-Key", c.apiKey).
		SetHeader("X-RapidAPI-Host", c.host).
		SetQueryParams(map[string]string{"url": videoURL, "hd": "1"}).
		SetResult(&out).
		Get("/")
	if err != nil {
		return nil, fmt.Errorf("tiktok: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tiktok: status %d", resp.StatusCode())
	}
	if out.Code != 0 || out.Data.ID == "" {
		msg := out.Msg
		if msg == "" {
			msg = "unknown provider error"
		}
		return nil, fmt.Errorf("tiktok: %s", msg)
	}

	return &VideoInfo{
		VideoID:     out.Data.ID,
		Author:      out.Data.Author.UniqueID,
		Description: out.Data.Title,
		CoverURL:    out.Data.Cover,
		DownloadURL: out.Data.Play,
		MusicURL:    out.Data.Music,
		PlayCount:   out.Data.PlayCount,
		Likes:       out.Data.DiggCount,
		Comments:    out.Data.CommentCount,
		Shares:      out.Data.ShareCount,
	}, nil
}

var _ InfoFetcher = (*Client)(nil)
