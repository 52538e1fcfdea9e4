package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rkotari/qbank/internal/model"
)

func TestRenderPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/pdf" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF-1.4 fake" {
			t.Errorf("unexpected body %q", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"pages": []map[string]any{
				{
					"page":   1,
					"layout": "single",
					"image":  base64.StdEncoding.EncodeToString([]byte("png-1")),
				},
				{
					"page":     2,
					"layout":   "two_column",
					"image":    base64.StdEncoding.EncodeToString([]byte("png-2")),
					"diagrams": []string{"img_p2_1.png"},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "render-key")
	sources, err := c.RenderPages(context.Background(), []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].PageNumber != 1 || sources[0].Layout != model.LayoutSingle {
		t.Errorf("unexpected first source: %+v", sources[0])
	}
	if string(sources[1].Image) != "png-2" {
		t.Errorf("expected decoded image bytes, got %q", sources[1].Image)
	}
	if len(sources[1].DiagramRefs) != 1 || sources[1].DiagramRefs[0] != "img_p2_1.png" {
		t.Errorf("unexpected diagram refs: %v", sources[1].DiagramRefs)
	}
}

func TestRenderPagesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "render backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "render-key")
	if _, err := c.RenderPages(context.Background(), []byte("%PDF-")); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
