package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Worker processes a single extraction run.
type Worker struct {
	orch *Orchestrator
	log  *slog.Logger
}

func NewWorker(orch *Orchestrator, log *slog.Logger) *Worker {
	return &Worker{orch: orch, log: log}
}

// Process runs the full extraction pipeline for a run: render the PDF
// into page sources, interpret them, merge, and record the result. The
// document is not persisted here; the caller saves it after review.
func (w *Worker) Process(ctx context.Context, run *Run) {
	log := w.log.With("run_id", run.ID, "filename", run.Filename)

	// Phase 1: render pages via the external render service.
	run.SetStatus(StatusRendering, "rendering")
	sources, err := w.orch.renderer.RenderPages(ctx, run.PDFData())
	if err != nil {
		log.Error("render failed", "error", err)
		run.AddError(fmt.Sprintf("render: %s", err))
		run.SetStatus(StatusFailed, "rendering")
		return
	}
	if len(sources) == 0 {
		log.Warn("no pages rendered")
		run.AddError("no renderable pages")
		run.SetStatus(StatusFailed, "rendering")
		return
	}
	run.SetTotalPages(len(sources))
	log.Info("rendered pages", "pages", len(sources))

	// Phase 2+3: interpret with bounded concurrency, then merge.
	run.SetStatus(StatusInterpreting, "interpreting")
	result, err := w.orch.extract(ctx, sources, func(pageNumber int, pageErr error) {
		run.PageDone(pageErr != nil)
		if pageErr != nil {
			run.AddError(fmt.Sprintf("page %d: %s", pageNumber, pageErr))
		}
	})
	if err != nil {
		log.Error("extraction failed", "error", err)
		run.AddError(err.Error())
		run.SetStatus(StatusFailed, "interpreting")
		return
	}

	run.SetStatus(StatusReconciling, "reconciling")
	run.SetResult(result)

	log.Info("extraction complete",
		"questions", len(result.Document.Questions),
		"failed_pages", len(result.FailedPages),
		"dropped", result.Diagnostics.Dropped,
	)

	if len(result.FailedPages) > 0 {
		run.SetStatus(StatusPartial, "done")
	} else {
		run.SetStatus(StatusCompleted, "done")
	}
}
