// Package render is the HTTP client for the external render service,
// which turns a PDF into per-page (or per-column) PNG images, a layout
// classification for each, and cropped diagram regions. How it renders,
// segments two-column layouts, or crops diagrams is its business; this
// client only speaks the wire contract.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rkotari/qbank/internal/model"
	"github.com/rkotari/qbank/internal/pipeline"
)

// Client communicates with the render service HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// renderedPage is one page/region in the render response. Page numbers
// are a 1-based sequence over regions: a two-column page contributes
// two entries with consecutive numbers, left column first.
type renderedPage struct {
	Page     int      `json:"page"`
	Layout   string   `json:"layout"`
	ImageB64 string   `json:"image"`
	Diagrams []string `json:"diagrams"`
}

type renderResponse struct {
	Pages []renderedPage `json:"pages"`
}

// RenderPages posts the PDF and returns its page sources in sequence
// order.
func (c *Client) RenderPages(ctx context.Context, pdf []byte) ([]pipeline.PageSource, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(pdf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/pdf")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("render: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}

	sources := make([]pipeline.PageSource, 0, len(out.Pages))
	for _, p := range out.Pages {
		img, err := base64.StdEncoding.DecodeString(p.ImageB64)
		if err != nil {
			return nil, fmt.Errorf("decode page %d image: %w", p.Page, err)
		}
		sources = append(sources, pipeline.PageSource{
			PageNumber:  p.Page,
			Layout:      model.LayoutHint(p.Layout),
			Image:       img,
			DiagramRefs: p.Diagrams,
		})
	}
	return sources, nil
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
