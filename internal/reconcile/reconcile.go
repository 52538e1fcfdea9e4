// Package reconcile merges page-local extraction results into one
// consistent question document. It handles questions whose options or
// answer land on the next page, question numbers announced with no body,
// bare answers with no question attached, and separate answer-key pages
// that override inline answers.
package reconcile

import (
	"sort"
	"strings"

	"github.com/rkotari/qbank/internal/model"
)

// Options controls diagnostics verbosity.
type Options struct {
	// Verbose includes each dropped question in the diagnostics instead
	// of only a count.
	Verbose bool
}

// Diagnostics summarizes everything the merge could not fully resolve.
// None of these abort a run.
type Diagnostics struct {
	Dropped                int `json:"dropped"`
	UnresolvedOrphans      int `json:"unresolved_orphans"`
	AbandonedContinuations int `json:"abandoned_continuations"`
	UnresolvedDangling     int `json:"unresolved_dangling"`
	DuplicateNumbers       int `json:"duplicate_numbers"`

	DroppedQuestions []model.Question `json:"dropped_questions,omitempty"`
}

// Result is the merged document plus diagnostics.
type Result struct {
	Document    model.Document
	Diagnostics Diagnostics
}

// open is a question still being assembled. awaiting marks a question
// whose options are expected on the following page; it never reaches
// the output.
type open struct {
	q        model.Question
	awaiting bool
}

type state struct {
	order    []*open
	byNumber map[int]*open

	pending  *open // last question flagged continuation_to_next
	dangling int   // question number announced with no body, 0 = none

	answerKey map[int]string // from answer-key pages, highest priority
	loose     map[int]string // keyed answers from mixed pages, fill-if-missing

	diag Diagnostics
}

// Run folds the page results, in the order given, into a single
// document. The caller must supply pages sorted by ascending page
// number; Run itself is deterministic and does not mutate its input,
// so the same sequence always yields the same result.
func Run(pages []model.PageResult, opts Options) Result {
	s := &state{
		byNumber:  make(map[int]*open),
		answerKey: make(map[int]string),
		loose:     make(map[int]string),
	}
	for _, p := range pages {
		s.consume(p)
	}
	return s.finish(opts)
}

func (s *state) consume(p model.PageResult) {
	if p.Layout == model.LayoutAnswerKey {
		// A key page carries no question bodies and no continuation
		// fragment, so any pending cross-page state ends here.
		s.abandonPending()
		s.dangling = 0
		for _, e := range p.AnswerKey {
			if e.Number != 0 && e.Answer != "" {
				s.answerKey[e.Number] = e.Answer
			}
		}
		return
	}

	// 1. Resolve the continuation left open by the previous page.
	if s.pending != nil {
		if frag := p.PrevPageContinuation; frag != nil {
			mergeFragment(&s.pending.q, frag)
			s.pending.awaiting = false
			s.pending = nil
		} else {
			s.abandonPending()
		}
	}

	// 2+3. Complete a dangling question number, then append the rest of
	// the page's drafts in page-local order. Only the last draft flagged
	// continuation_to_next stays pending; earlier flags on the same page
	// are treated as complete.
	danglingUsed := s.dangling == 0
	var newPending *open
	for _, d := range p.Questions {
		if !danglingUsed && d.Number == 0 {
			d.Number = s.dangling
			danglingUsed = true
		}
		o := s.appendDraft(d)
		if d.ContinuationToNext {
			if newPending != nil {
				newPending.awaiting = false
			}
			o.awaiting = true
			newPending = o
		}
	}
	if newPending != nil {
		s.pending = newPending
	}
	if !danglingUsed {
		s.diag.UnresolvedDangling++
	}

	// 4. Remember a dangling number for the next page.
	s.dangling = p.DanglingNumber

	// 5. Attach orphan answers to the most recent answer-less question.
	for _, oa := range p.OrphanAnswers {
		if oa.Answer == "" {
			continue
		}
		if oa.Number != 0 {
			s.recordLoose(oa.Number, oa.Answer)
			continue
		}
		if !s.assignOrphan(oa.Answer) {
			s.diag.UnresolvedOrphans++
		}
	}

	// 6. An answers table on a mixed page carries inline priority only.
	for _, e := range p.AnswerKey {
		if e.Number != 0 && e.Answer != "" {
			s.recordLoose(e.Number, e.Answer)
		}
	}
}

// appendDraft adds a draft to the open list, or merges it into an
// existing question with the same number. The first instance wins;
// later duplicates only fill fields the first is missing.
func (s *state) appendDraft(d model.QuestionDraft) *open {
	q := questionFromDraft(d)
	if q.Number != 0 {
		if existing, ok := s.byNumber[q.Number]; ok {
			s.diag.DuplicateNumbers++
			fillMissing(&existing.q, q)
			return existing
		}
	}
	o := &open{q: q}
	s.order = append(s.order, o)
	if q.Number != 0 {
		s.byNumber[q.Number] = o
	}
	return o
}

// assignOrphan walks backward from the most recently appended question
// and attaches the answer to the first one that has none.
func (s *state) assignOrphan(answer string) bool {
	for i := len(s.order) - 1; i >= 0; i-- {
		o := s.order[i]
		if o.q.Answer == "" {
			o.q.Answer = model.NormalizeAnswer(o.q.Type, answer)
			return true
		}
	}
	return false
}

func (s *state) recordLoose(number int, answer string) {
	if _, ok := s.loose[number]; !ok {
		s.loose[number] = answer
	}
}

func (s *state) abandonPending() {
	if s.pending == nil {
		return
	}
	s.pending.awaiting = false
	s.pending = nil
	s.diag.AbandonedContinuations++
}

// finish applies answer priority (answer key > inline > orphan), drops
// incomplete questions, and orders the survivors by question number.
func (s *state) finish(opts Options) Result {
	for _, o := range s.order {
		o.awaiting = false
		n := o.q.Number
		if n == 0 {
			continue
		}
		if ak, ok := s.answerKey[n]; ok {
			// The key overrides whatever was already set.
			o.q.Answer = model.NormalizeAnswer(o.q.Type, ak)
		} else if o.q.Answer == "" {
			if v, ok := s.loose[n]; ok {
				o.q.Answer = model.NormalizeAnswer(o.q.Type, v)
			}
		}
	}

	kept := make([]model.Question, 0, len(s.order))
	for _, o := range s.order {
		q := o.q
		q.Text = strings.TrimSpace(q.Text)
		if !q.IsComplete() {
			s.diag.Dropped++
			if opts.Verbose {
				s.diag.DroppedQuestions = append(s.diag.DroppedQuestions, q)
			}
			continue
		}
		kept = append(kept, q)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Number < kept[j].Number
	})

	return Result{
		Document:    model.Document{Questions: kept},
		Diagnostics: s.diag,
	}
}

// questionFromDraft copies a draft into an owned Question so the merge
// never aliases caller-owned maps or slices.
func questionFromDraft(d model.QuestionDraft) model.Question {
	t := d.Type
	if t == "" {
		t = model.TypeMCQ
	}
	return model.Question{
		Number:     d.Number,
		Type:       t,
		Text:       d.Text,
		ListOne:    cloneSlice(d.ListOne),
		ListTwo:    cloneSlice(d.ListTwo),
		Options:    cloneMap(d.Options),
		Answer:     model.NormalizeAnswer(t, d.Answer),
		DiagramRef: d.DiagramRef,
	}
}

// mergeFragment fills a question's missing options and answer from the
// fragment found at the top of the following page.
func mergeFragment(q *model.Question, frag *model.Fragment) {
	if len(frag.Options) > 0 && len(q.Options) == 0 {
		q.Options = cloneMap(frag.Options)
	}
	if frag.Answer != "" && q.Answer == "" {
		q.Answer = model.NormalizeAnswer(q.Type, frag.Answer)
	}
}

// fillMissing copies fields a later duplicate has that the kept first
// instance lacks.
func fillMissing(dst *model.Question, src model.Question) {
	if strings.TrimSpace(dst.Text) == "" {
		dst.Text = src.Text
	}
	if len(dst.Options) == 0 {
		dst.Options = src.Options
	}
	if dst.Answer == "" {
		dst.Answer = src.Answer
	}
	if len(dst.ListOne) == 0 {
		dst.ListOne = src.ListOne
	}
	if len(dst.ListTwo) == 0 {
		dst.ListTwo = src.ListTwo
	}
	if dst.DiagramRef == "" {
		dst.DiagramRef = src.DiagramRef
	}
}

func cloneMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
