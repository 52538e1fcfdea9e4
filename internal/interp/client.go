package interp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rkotari/qbank/internal/model"
)

// FailureKind classifies an interpretation failure.
type FailureKind string

const (
	FailTimeout     FailureKind = "timeout"
	FailRateLimited FailureKind = "rate_limited"
	FailMalformed   FailureKind = "malformed_output"
	FailService     FailureKind = "service_error"
)

// Failure is a transient per-page interpretation failure. All kinds are
// retried the same way; malformed output is treated like a service
// error because a rerun of the model frequently fixes it.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("interpretation failure (%s, status %d): %s", f.Kind, f.StatusCode, truncate(f.Message, 200))
}

// Client calls an OpenAI-compatible vision chat-completions endpoint to
// interpret exam page images.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	// Stats tracks call latency for the stats endpoint.
	Stats *LatencyStats
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		Stats: NewLatencyStats(time.Hour),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// InterpretPage sends one page image to the model and returns the
// page-local extraction result. The returned result is normalized
// (uppercase option labels, canonical answers) and carries the given
// page number.
func (c *Client) InterpretPage(ctx context.Context, pageNumber int, layout model.LayoutHint, imagePNG []byte) (model.PageResult, error) {
	start := time.Now()
	res, err := c.interpret(ctx, layout, imagePNG)
	if c.Stats != nil {
		c.Stats.Record(time.Since(start).Milliseconds())
	}
	if err != nil {
		return model.PageResult{}, err
	}
	res.PageNumber = pageNumber
	if res.Layout == "" {
		res.Layout = layout
	}
	res.Normalize()
	return res, nil
}

func (c *Client) interpret(ctx context.Context, layout model.LayoutHint, imagePNG []byte) (model.PageResult, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imagePNG)
	reqBody := chatRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   4096,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: []any{
				map[string]any{
					"type": "text",
					"text": HintFor(string(layout)) + "\n\nParse this exam page. Return ONLY a single valid JSON object.",
				},
				map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": dataURL},
				},
			}},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return model.PageResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return model.PageResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return model.PageResult{}, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return model.PageResult{}, &Failure{Kind: FailTimeout, Message: err.Error()}
		}
		return model.PageResult{}, &Failure{Kind: FailService, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.PageResult{}, &Failure{Kind: FailService, Message: "read response: " + err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.PageResult{}, &Failure{Kind: FailRateLimited, StatusCode: resp.StatusCode, Message: string(respBody)}
	case resp.StatusCode >= 500:
		return model.PageResult{}, &Failure{Kind: FailService, StatusCode: resp.StatusCode, Message: string(respBody)}
	case resp.StatusCode != http.StatusOK:
		return model.PageResult{}, fmt.Errorf("interpreter status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return model.PageResult{}, &Failure{Kind: FailMalformed, Message: "decode response: " + err.Error()}
	}
	if apiResp.Error != nil {
		return model.PageResult{}, &Failure{Kind: FailService, Message: apiResp.Error.Type + ": " + apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return model.PageResult{}, &Failure{Kind: FailMalformed, Message: "empty completion"}
	}

	return parsePageJSON(apiResp.Choices[0].Message.Content)
}

// oracle wire shapes: pointer fields tolerate explicit nulls in the
// model output.
type oracleFragment struct {
	Options map[string]string `json:"options"`
	Answer  *string           `json:"answer"`
}

type oracleQuestion struct {
	Number             int               `json:"qno"`
	Type               string            `json:"type"`
	Question           string            `json:"question"`
	List1              []string          `json:"list1"`
	List2              []string          `json:"list2"`
	Options            map[string]string `json:"options"`
	Answer             *string           `json:"answer"`
	ContinuationToNext bool              `json:"continuation_to_next"`
}

type oracleAnswer struct {
	Number *int    `json:"qno"`
	Answer *string `json:"answer"`
}

type oracleResult struct {
	PageType             string          `json:"page_type"`
	PrevPageContinuation *oracleFragment `json:"prev_page_continuation"`
	DanglingNumber       *int            `json:"dangling_qno"`
	Questions            []oracleQuestion `json:"questions"`
	Answers              []oracleAnswer  `json:"answers"`
	OrphanAnswers        []oracleAnswer  `json:"orphan_answers"`
}

// parsePageJSON extracts the JSON object from the model output and maps
// it onto a PageResult. Output that cannot be parsed is a malformed
// failure, which the caller retries like a service error.
func parsePageJSON(text string) (model.PageResult, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return model.PageResult{}, &Failure{Kind: FailMalformed, Message: "no JSON object in output: " + truncate(text, 200)}
	}

	var out oracleResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return model.PageResult{}, &Failure{Kind: FailMalformed, Message: "parse page json: " + err.Error()}
	}

	var res model.PageResult
	if out.PageType == "answers" {
		res.Layout = model.LayoutAnswerKey
	}
	if out.DanglingNumber != nil {
		res.DanglingNumber = *out.DanglingNumber
	}
	if f := out.PrevPageContinuation; f != nil {
		res.PrevPageContinuation = &model.Fragment{
			Options: f.Options,
			Answer:  deref(f.Answer),
		}
	}
	for _, q := range out.Questions {
		res.Questions = append(res.Questions, model.QuestionDraft{
			Number:             q.Number,
			Type:               model.QuestionType(q.Type),
			Text:               q.Question,
			ListOne:            q.List1,
			ListTwo:            q.List2,
			Options:            q.Options,
			Answer:             deref(q.Answer),
			ContinuationToNext: q.ContinuationToNext,
		})
	}
	for _, a := range out.Answers {
		res.AnswerKey = append(res.AnswerKey, model.AnswerEntry{
			Number: derefInt(a.Number),
			Answer: deref(a.Answer),
		})
	}
	for _, a := range out.OrphanAnswers {
		res.OrphanAnswers = append(res.OrphanAnswers, model.OrphanAnswer{
			Number: derefInt(a.Number),
			Answer: deref(a.Answer),
		})
	}
	return res, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// extractJSON strips a markdown code fence if present and returns the
// outermost JSON object in the text.
func extractJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
