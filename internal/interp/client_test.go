package interp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rkotari/qbank/internal/model"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":"upstream"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestInterpretPageParsesFencedJSON(t *testing.T) {
	content := "```json\n" + `{
		"page_type": "questions",
		"questions": [
			{"qno": 3, "type": "mcq", "question": "What is 2+2?",
			 "options": {"a": "3", "b": "4"}, "answer": "b",
			 "continuation_to_next": false}
		],
		"orphan_answers": [{"qno": null, "answer": "c"}]
	}` + "\n```"

	srv := completionServer(t, http.StatusOK, content)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model")
	res, err := c.InterpretPage(context.Background(), 7, model.LayoutSingle, []byte("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PageNumber != 7 {
		t.Errorf("expected page number 7, got %d", res.PageNumber)
	}
	if res.Layout != model.LayoutSingle {
		t.Errorf("expected layout carried through, got %q", res.Layout)
	}
	if len(res.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(res.Questions))
	}
	q := res.Questions[0]
	if q.Number != 3 || q.Text != "What is 2+2?" {
		t.Errorf("unexpected question: %+v", q)
	}
	if q.Answer != "B" {
		t.Errorf("expected normalized answer B, got %q", q.Answer)
	}
	if _, ok := q.Options["B"]; !ok {
		t.Errorf("expected uppercased option labels, got %v", q.Options)
	}
	if len(res.OrphanAnswers) != 1 || res.OrphanAnswers[0].Answer != "C" {
		t.Errorf("expected normalized orphan answer C, got %+v", res.OrphanAnswers)
	}
}

func TestInterpretPageAnswerKeyPage(t *testing.T) {
	content := `{"page_type": "answers", "answers": [{"qno": 1, "answer": "a"}, {"qno": 2, "answer": "d"}]}`

	srv := completionServer(t, http.StatusOK, content)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model")
	res, err := c.InterpretPage(context.Background(), 12, model.LayoutAnswerKey, []byte("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Layout != model.LayoutAnswerKey {
		t.Errorf("expected answer_key layout, got %q", res.Layout)
	}
	if len(res.AnswerKey) != 2 {
		t.Fatalf("expected 2 key entries, got %d", len(res.AnswerKey))
	}
	if res.AnswerKey[0].Number != 1 || res.AnswerKey[0].Answer != "A" {
		t.Errorf("unexpected first key entry: %+v", res.AnswerKey[0])
	}
}

func TestInterpretPageFailureKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   FailureKind
	}{
		{"rate_limited", http.StatusTooManyRequests, FailRateLimited},
		{"service_error", http.StatusInternalServerError, FailService},
		{"bad_gateway", http.StatusBadGateway, FailService},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := completionServer(t, tc.status, "")
			defer srv.Close()

			c := NewClient(srv.URL, "test-key", "test-model")
			_, err := c.InterpretPage(context.Background(), 1, model.LayoutSingle, []byte("png"))
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("expected *Failure, got %v", err)
			}
			if f.Kind != tc.kind {
				t.Errorf("expected kind %s, got %s", tc.kind, f.Kind)
			}
		})
	}
}

func TestInterpretPageMalformedOutput(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "Sorry, I cannot read this page.")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model")
	_, err := c.InterpretPage(context.Background(), 1, model.LayoutSingle, []byte("png"))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if f.Kind != FailMalformed {
		t.Errorf("expected malformed_output, got %s", f.Kind)
	}
}

func TestInterpretPageCancelledContext(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "{}")
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "test-key", "test-model")
	_, err := c.InterpretPage(ctx, 1, model.LayoutSingle, []byte("png"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var f *Failure
	if errors.As(err, &f) {
		t.Error("cancellation must not be wrapped as a retryable failure")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"fence_no_lang", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"surrounding_prose", "Here you go: {\"a\":1} done.", `{"a":1}`, true},
		{"no_object", "no json here", "", false},
		{"only_close", "}", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractJSON(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Errorf("extractJSON(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}
