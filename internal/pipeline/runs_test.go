package pipeline

import (
	"testing"
	"time"
)

func TestRunStatusTransitions(t *testing.T) {
	run := &Run{
		ID:        "run-1",
		Filename:  "paper.pdf",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	run.SetStatus(StatusRendering, "rendering pages")
	if run.Status != StatusRendering || run.Phase != "rendering pages" {
		t.Errorf("unexpected state after SetStatus: %s/%s", run.Status, run.Phase)
	}

	run.SetStatus(StatusInterpreting, "interpreting pages")
	run.SetStatus(StatusReconciling, "merging questions")
	run.SetStatus(StatusCompleted, "done")
	if run.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", run.Status)
	}
}

func TestRunProgressCounting(t *testing.T) {
	run := &Run{ID: "run-1"}
	run.SetTotalPages(3)
	run.PageDone(false)
	run.PageDone(true)
	run.PageDone(false)

	snap := run.Snapshot()
	if snap.Progress.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", snap.Progress.TotalPages)
	}
	if snap.Progress.PagesInterpreted != 3 {
		t.Errorf("expected 3 interpreted pages, got %d", snap.Progress.PagesInterpreted)
	}
	if snap.Progress.PagesFailed != 1 {
		t.Errorf("expected 1 failed page, got %d", snap.Progress.PagesFailed)
	}
}

func TestRunAddError(t *testing.T) {
	run := &Run{ID: "run-1"}
	run.AddError("page 2: rate limited")
	run.AddError("page 5: timeout")

	snap := run.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "page 2: rate limited" {
		t.Errorf("unexpected first error: %q", snap.Progress.Errors[0])
	}
}

func TestRunSnapshotErrorsNeverNil(t *testing.T) {
	run := &Run{ID: "run-1"}
	snap := run.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("snapshot errors must be an empty slice, not nil")
	}
}

func TestRunResultReleasesPDFData(t *testing.T) {
	run := &Run{ID: "run-1"}
	run.SetPDFData([]byte("%PDF-1.4"))
	if run.PDFData() == nil {
		t.Fatal("expected pdf data set")
	}
	if run.Result() != nil {
		t.Fatal("expected no result while in flight")
	}

	run.SetResult(&ExtractResult{TotalPages: 4})
	if run.Result() == nil || run.Result().TotalPages != 4 {
		t.Errorf("expected stored result, got %+v", run.Result())
	}
	if run.PDFData() != nil {
		t.Error("expected pdf data released after the result is stored")
	}
}

func TestRunStorePutGet(t *testing.T) {
	store := NewRunStore(time.Hour)
	run := &Run{ID: "run-1", UpdatedAt: time.Now()}
	store.Put(run)

	if got := store.Get("run-1"); got != run {
		t.Error("expected the stored run back")
	}
	if got := store.Get("missing"); got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestRunStoreCleanupEvictsExpired(t *testing.T) {
	store := NewRunStore(10 * time.Millisecond)
	stale := &Run{ID: "stale", UpdatedAt: time.Now().Add(-time.Minute)}
	fresh := &Run{ID: "fresh", UpdatedAt: time.Now()}
	store.Put(stale)
	store.Put(fresh)

	store.Cleanup()
	if store.Get("stale") != nil {
		t.Error("expected stale run evicted")
	}
	if store.Get("fresh") == nil {
		t.Error("expected fresh run kept")
	}
}
