package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ritasuite/internal/infra"
)

// ErrNotConfigured is returned when a call requires an API key and none is set.
var ErrNotConfigured = fmt.Errorf("gemini: api key not configured")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent API. It covers the
// three capabilities the suite needs: free-form chat, audio transcription and
// schema-constrained structured extraction with token accounting.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Turn is one prior exchange in a chat conversation.
type Turn struct {
	Role    string // "user" or "model"
	Content string
}

// ChatRequest carries a chat message together with its persisted history.
type ChatRequest struct {
	System  string
	History []Turn
	Message string
}

// ExtractRequest asks for structured JSON extraction from free text.
type ExtractRequest struct {
	Model  string
	Text   string
	Prompt string
	Schema *Schema
}

// Usage reports the token counts the API attributes to one extraction call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type geminiGenerateContentRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiGenerateContentResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with a bounded timeout is created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured default model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a message with its stored history and returns the model's reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	payload := geminiGenerateContentRequest{}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, turn := range req.History {
		payload.Contents = append(payload.Contents, geminiContent{
			Role:  turn.Role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}
	payload.Contents = append(payload.Contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: req.Message}},
	})

	response, err := c.invoke(ctx, c.model, payload)
	if err != nil {
		return "", err
	}
	text := firstText(response)
	if text == "" {
		return "", fmt.Errorf("gemini: empty chat response")
	}
	return text, nil
}

// AnalyzeTranscript asks the model for a structured analysis of a video
// transcript and returns the validated JSON payload.
func (c *Client) AnalyzeTranscript(ctx context.Context, transcript string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(transcript) == "" {
		// Nothing to analyze; mirror the analyzer's shape with a canned result.
		return json.RawMessage(`{"summary":"The video has no spoken content.","main_topics":[]}`), nil
	}

	prompt := fmt.Sprintf("Analyze the following transcript and return JSON with keys %q and %q.\n\nTranscript: %s\n\nJSON output:",
		"summary", "main_topics", transcript)
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
		},
	}

	response, err := c.invoke(ctx, c.model, payload)
	if err != nil {
		return nil, err
	}
	text := stripCodeFences(firstText(response))
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("gemini: analysis response is not valid JSON")
	}
	return json.RawMessage(text), nil
}

// ExtractStructured sends text and a response schema, requesting strict JSON
// output, and returns the raw payload with the reported token usage.
func (c *Client) ExtractStructured(ctx context.Context, req ExtractRequest) (json.RawMessage, Usage, error) {
	if c.apiKey == "" {
		return nil, Usage{}, ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = extractionPrompt
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt + "\n\nPage content:\n\n" + req.Text}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		},
	}

	response, err := c.invoke(ctx, model, payload)
	if err != nil {
		return nil, Usage{}, err
	}

	var usage Usage
	if response.UsageMetadata != nil {
		usage.InputTokens = response.UsageMetadata.PromptTokenCount
		usage.OutputTokens = response.UsageMetadata.CandidatesTokenCount
	}

	text := stripCodeFences(firstText(response))
	if !json.Valid([]byte(text)) {
		return nil, usage, fmt.Errorf("gemini: extraction response is not valid JSON")
	}

	c.logger.Debug().
		Str("model", model).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Msg("gemini: structured extraction done")

	return json.RawMessage(text), usage, nil
}

// TranscribeAudio downloads the audio at the given URL and asks the model for
// a transcription of its content.
func (c *Client) TranscribeAudio(ctx context.Context, audioURL string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	data, mime, err := c.download(ctx, audioURL)
	if err != nil {
		return "", err
	}
	if mime == "" || !strings.HasPrefix(mime, "audio/") {
		mime = "audio/mpeg"
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: "Transcribe the spoken content of the following audio file."},
				{InlineData: &geminiInlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
			},
		}},
	}

	response, err := c.invoke(ctx, c.model, payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(firstText(response)), nil
}

const extractionPrompt = "You are an intelligent text extraction assistant. " +
	"Extract structured information from the given text and return it as pure JSON " +
	"matching the requested schema, with no commentary before or after the JSON."

func (c *Client) invoke(ctx context.Context, model string, payload geminiGenerateContentRequest) (*geminiGenerateContentResponse, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("gemini: status %d", resp.StatusCode)
	}

	var response geminiGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	return &response, nil
}

func (c *Client) download(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("gemini: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: read download: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func firstText(response *geminiGenerateContentResponse) string {
	if response == nil {
		return ""
	}
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
