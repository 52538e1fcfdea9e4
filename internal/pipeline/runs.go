package pipeline

import (
	"sync"
	"time"
)

// RunStatus represents the state of an extraction run.
type RunStatus string

const (
	StatusQueued       RunStatus = "queued"
	StatusRendering    RunStatus = "rendering"
	StatusInterpreting RunStatus = "interpreting"
	StatusReconciling  RunStatus = "reconciling"
	StatusCompleted    RunStatus = "completed"
	StatusPartial      RunStatus = "partial"
	StatusFailed       RunStatus = "failed"
)

// Run tracks the state of a single document extraction.
type Run struct {
	mu sync.Mutex

	ID       string `json:"run_id"`
	Filename string `json:"filename"`

	Status RunStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	pdfData []byte
	result  *ExtractResult
	errors  []string
}

// Progress tracks per-page processing progress.
type Progress struct {
	TotalPages       int      `json:"total_pages"`
	PagesInterpreted int      `json:"pages_interpreted"`
	PagesFailed      int      `json:"pages_failed"`
	Errors           []string `json:"errors"`
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		if now.Sub(run.UpdatedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status RunStatus, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.Phase = phase
	r.UpdatedAt = time.Now()
}

// AddError records an error.
func (r *Run) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.Progress.Errors = r.errors
	r.UpdatedAt = time.Now()
}

// SetTotalPages records how many page sources the renderer produced.
func (r *Run) SetTotalPages(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.TotalPages = n
	r.UpdatedAt = time.Now()
}

// PageDone atomically counts one interpreted (or failed-out) page.
func (r *Run) PageDone(failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.PagesInterpreted++
	if failed {
		r.Progress.PagesFailed++
	}
	r.UpdatedAt = time.Now()
}

// SetPDFData sets the raw upload bytes for processing.
func (r *Run) SetPDFData(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pdfData = data
}

// PDFData returns the raw upload bytes.
func (r *Run) PDFData() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pdfData
}

// SetResult stores the finished extraction result and releases the
// upload bytes.
func (r *Run) SetResult(res *ExtractResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
	r.pdfData = nil
	r.UpdatedAt = time.Now()
}

// Result returns the extraction result, or nil while the run is still
// in flight.
func (r *Run) Result() *ExtractResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID       string    `json:"run_id"`
	Filename string    `json:"filename"`
	Status   RunStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return RunSnapshot{
		ID:       r.ID,
		Filename: r.Filename,
		Status:   r.Status,
		Phase:    r.Phase,
		Progress: Progress{
			TotalPages:       r.Progress.TotalPages,
			PagesInterpreted: r.Progress.PagesInterpreted,
			PagesFailed:      r.Progress.PagesFailed,
			Errors:           errs,
		},
	}
}
