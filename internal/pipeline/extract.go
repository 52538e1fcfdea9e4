package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rkotari/qbank/internal/model"
	"github.com/rkotari/qbank/internal/reconcile"
)

// PageSource describes one renderable page or page region, in sequence
// order. PageNumber is the 1-based sequence key over regions: a
// two-column page contributes two sources with consecutive numbers.
type PageSource struct {
	PageNumber  int
	Layout      model.LayoutHint
	Image       []byte
	DiagramRefs []string
}

// Interpreter is the page-local extraction oracle.
type Interpreter interface {
	InterpretPage(ctx context.Context, pageNumber int, layout model.LayoutHint, imagePNG []byte) (model.PageResult, error)
}

// Renderer turns an uploaded PDF into page sources: per-page images,
// layout classification and cropped diagram references.
type Renderer interface {
	RenderPages(ctx context.Context, pdf []byte) ([]PageSource, error)
}

// ExtractResult is the reconciled document plus per-run diagnostics.
type ExtractResult struct {
	Document    model.Document        `json:"document"`
	Diagnostics reconcile.Diagnostics `json:"diagnostics"`
	FailedPages []int                 `json:"failed_pages"`
	TotalPages  int                   `json:"total_pages"`
}

// Extract interprets every page source with bounded concurrency,
// re-orders the results by page number, attaches diagrams, and merges
// everything into one document.
//
// Per-page interpretation failures degrade to an empty page-result
// placeholder after retries; they never fail the run. The run fails
// only on cancellation or when no page at all could be interpreted.
func (o *Orchestrator) Extract(ctx context.Context, sources []PageSource) (*ExtractResult, error) {
	return o.extract(ctx, sources, nil)
}

func (o *Orchestrator) extract(ctx context.Context, sources []PageSource, onPage func(pageNumber int, err error)) (*ExtractResult, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no page sources")
	}

	type pageOut struct {
		res model.PageResult
		err error
		idx int
	}
	results := make(chan pageOut, len(sources))
	sem := make(chan struct{}, o.cfg.MaxConcurrentInterpret)

	for i, src := range sources {
		sem <- struct{}{}
		go func(i int, src PageSource) {
			defer func() { <-sem }()
			var res model.PageResult
			var lastErr error
			for attempt := 0; attempt < MaxRetries; attempt++ {
				res, lastErr = o.interp.InterpretPage(ctx, src.PageNumber, src.Layout, src.Image)
				if lastErr == nil || !IsRetryable(lastErr) {
					break
				}
				o.log.Warn("retryable interpretation error", "page", src.PageNumber, "attempt", attempt, "error", lastErr)
				select {
				case <-time.After(Backoff(attempt)):
				case <-ctx.Done():
					results <- pageOut{err: ctx.Err(), idx: i}
					return
				}
			}
			results <- pageOut{res: res, err: lastErr, idx: i}
		}(i, src)
	}

	// Collect in completion order; ordering is restored below. Always
	// drain every in-flight call so a cancelled run leaves nothing
	// behind.
	pages := make([]model.PageResult, len(sources))
	var failedPages []int
	succeeded := 0
	for range sources {
		r := <-results
		src := sources[r.idx]
		if onPage != nil {
			onPage(src.PageNumber, r.err)
		}
		if r.err != nil {
			o.log.Error("page interpretation failed", "page", src.PageNumber, "error", r.err)
			pages[r.idx] = model.EmptyPageResult(src.PageNumber, src.Layout)
			failedPages = append(failedPages, src.PageNumber)
			continue
		}
		pages[r.idx] = r.res
		succeeded++
	}

	// A cancelled run never yields a partial document.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("all %d pages failed interpretation", len(sources))
	}

	// Ordering barrier: completion order must never leak into the merge.
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	sort.Ints(failedPages)

	// Diagram attachment, per page in page order, before the merge.
	refsByPage := make(map[int][]string, len(sources))
	for _, src := range sources {
		if len(src.DiagramRefs) > 0 {
			refsByPage[src.PageNumber] = src.DiagramRefs
		}
	}
	for i := range pages {
		if refs := refsByPage[pages[i].PageNumber]; len(refs) > 0 {
			AttachDiagrams(pages[i].Questions, refs)
		}
	}

	rec := reconcile.Run(pages, reconcile.Options{Verbose: o.cfg.VerboseDiagnostics})

	return &ExtractResult{
		Document:    rec.Document,
		Diagnostics: rec.Diagnostics,
		FailedPages: failedPages,
		TotalPages:  len(sources),
	}, nil
}
