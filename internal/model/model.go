package model

import (
	"encoding/json"
	"strings"
)

// LayoutHint classifies a page/region before interpretation.
type LayoutHint string

const (
	LayoutSingle    LayoutHint = "single"
	LayoutTwoColumn LayoutHint = "two_column"
	LayoutAnswerKey LayoutHint = "answer_key"
)

// QuestionType is the kind of question a draft represents.
type QuestionType string

const (
	TypeMCQ       QuestionType = "mcq"
	TypeMatch     QuestionType = "match"
	TypeStatement QuestionType = "statement"
	TypeText      QuestionType = "text"
	TypeImage     QuestionType = "image"
	TypeFill      QuestionType = "fill"
)

// letterAnswerTypes are the types whose answer is an option label rather
// than a raw value.
var letterAnswerTypes = map[QuestionType]bool{
	TypeMCQ:       true,
	TypeMatch:     true,
	TypeStatement: true,
	TypeImage:     true,
}

// QuestionDraft is a possibly-incomplete question as seen on one page.
// Number is 0 until the question number has been resolved.
type QuestionDraft struct {
	Number             int               `json:"qno"`
	Type               QuestionType      `json:"type"`
	Text               string            `json:"question"`
	ListOne            []string          `json:"list1"`
	ListTwo            []string          `json:"list2"`
	Options            map[string]string `json:"options"`
	Answer             string            `json:"answer"`
	DiagramRef         string            `json:"diagram,omitempty"`
	ContinuationToNext bool              `json:"continuation_to_next"`
}

// Fragment is the tail of the previous page's last question: options
// and/or an answer that appeared above the first question number.
type Fragment struct {
	Options map[string]string `json:"options"`
	Answer  string            `json:"answer"`
}

// AnswerEntry is one row of a question-number-to-answer lookup.
type AnswerEntry struct {
	Number int    `json:"qno"`
	Answer string `json:"answer"`
}

// OrphanAnswer is a bare answer line with no question attached on its
// page. Number is 0 unless the oracle could infer it from context.
type OrphanAnswer struct {
	Number int    `json:"qno"`
	Answer string `json:"answer"`
}

// PageResult is the oracle's page-local extraction output.
type PageResult struct {
	PageNumber           int            `json:"page"`
	Layout               LayoutHint     `json:"layout"`
	Questions            []QuestionDraft `json:"questions"`
	AnswerKey            []AnswerEntry  `json:"answers"`
	PrevPageContinuation *Fragment      `json:"prev_page_continuation"`
	DanglingNumber       int            `json:"dangling_qno"`
	OrphanAnswers        []OrphanAnswer `json:"orphan_answers"`
}

// EmptyPageResult is the placeholder substituted for a page whose
// interpretation failed, so downstream ordering is preserved.
func EmptyPageResult(pageNumber int, layout LayoutHint) PageResult {
	return PageResult{PageNumber: pageNumber, Layout: layout}
}

// Question is a fully-resolved question in the final document.
type Question struct {
	Number     int
	Type       QuestionType
	Text       string
	ListOne    []string
	ListTwo    []string
	Options    map[string]string
	Answer     string
	DiagramRef string
}

// Document is the ordered sequence of resolved questions.
type Document struct {
	Questions []Question `json:"questions"`
}

// questionWire is the serialized form: answer and diagram are null when
// absent, list1/list2/options are omitted when empty.
type questionWire struct {
	Number  int               `json:"qno"`
	Type    QuestionType      `json:"type"`
	Text    string            `json:"question"`
	ListOne []string          `json:"list1,omitempty"`
	ListTwo []string          `json:"list2,omitempty"`
	Options map[string]string `json:"options,omitempty"`
	Answer  *string           `json:"answer"`
	Diagram *string           `json:"diagram"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{
		Number:  q.Number,
		Type:    q.Type,
		Text:    q.Text,
		ListOne: q.ListOne,
		ListTwo: q.ListTwo,
		Options: q.Options,
	}
	if q.Answer != "" {
		w.Answer = &q.Answer
	}
	if q.DiagramRef != "" {
		w.Diagram = &q.DiagramRef
	}
	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	q.Number = w.Number
	q.Type = w.Type
	q.Text = w.Text
	q.ListOne = w.ListOne
	q.ListTwo = w.ListTwo
	q.Options = w.Options
	if w.Answer != nil {
		q.Answer = *w.Answer
	}
	if w.Diagram != nil {
		q.DiagramRef = *w.Diagram
	}
	return nil
}

// IsComplete reports whether a question passes the completeness checks:
// it has a number, non-empty text, and for MCQ at least two option
// labels. Each condition disqualifies independently.
func (q Question) IsComplete() bool {
	if q.Number == 0 {
		return false
	}
	if strings.TrimSpace(q.Text) == "" {
		return false
	}
	if q.Type == TypeMCQ && len(q.Options) < 2 {
		return false
	}
	return true
}

// NormalizeAnswer canonicalizes an answer for the given question type:
// letter answers are trimmed and uppercased, raw-value answers only
// trimmed.
func NormalizeAnswer(t QuestionType, answer string) string {
	answer = strings.TrimSpace(answer)
	if letterAnswerTypes[t] {
		return strings.ToUpper(answer)
	}
	return answer
}

// NormalizeBareAnswer canonicalizes an answer with no known question
// type: single letters are uppercased, anything else is kept verbatim.
func NormalizeBareAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	if len(answer) == 1 && isLetter(answer[0]) {
		return strings.ToUpper(answer)
	}
	return answer
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// NormalizeOptions uppercases option labels so A/a collisions cannot
// produce split option sets.
func NormalizeOptions(opts map[string]string) map[string]string {
	if len(opts) == 0 {
		return opts
	}
	out := make(map[string]string, len(opts))
	for label, text := range opts {
		out[strings.ToUpper(strings.TrimSpace(label))] = text
	}
	return out
}

// Normalize canonicalizes a page result in place: option labels
// uppercased, answers normalized per question type, unknown types
// defaulted to mcq, and continuation fragments cleaned the same way.
func (p *PageResult) Normalize() {
	for i := range p.Questions {
		q := &p.Questions[i]
		if q.Type == "" {
			q.Type = TypeMCQ
		}
		q.Options = NormalizeOptions(q.Options)
		q.Answer = NormalizeAnswer(q.Type, q.Answer)
	}
	for i := range p.AnswerKey {
		p.AnswerKey[i].Answer = NormalizeBareAnswer(p.AnswerKey[i].Answer)
	}
	for i := range p.OrphanAnswers {
		p.OrphanAnswers[i].Answer = NormalizeBareAnswer(p.OrphanAnswers[i].Answer)
	}
	if c := p.PrevPageContinuation; c != nil {
		c.Options = NormalizeOptions(c.Options)
		c.Answer = NormalizeBareAnswer(c.Answer)
		if len(c.Options) == 0 && c.Answer == "" {
			p.PrevPageContinuation = nil
		}
	}
}
