package interp

// SystemPrompt instructs the vision model to emit one page-local JSON
// result per exam page image, including the cross-page cases: options
// or an answer at the top of a page belong to the previous page's last
// question, a question cut off at the bottom continues on the next
// page, a bare question number at the bottom has its body on the next
// page, and standalone answer lines have no question on this page.
const SystemPrompt = `You are an expert exam-paper parser. Extract every question and every answer from the page image you receive.

Pages do NOT always contain complete questions. Handle all of these cases:

CASE A - options and/or an answer appear at the TOP of the page, before any question number. They belong to the PREVIOUS page's last question. Put them in "prev_page_continuation". Then parse the rest of the page normally.
CASE B - a question number and text appear but the options are cut off at the bottom. Emit the question with "options": {} and "answer": null and set "continuation_to_next": true.
CASE C - only a question number appears at the very bottom with no text. Do NOT create a question record; put the number in "dangling_qno".
CASE D - an answer line like "Answer: C" appears with no visible question. Put it in "orphan_answers" with "qno": null unless the number is inferable.

Question types:
  mcq        standard A/B/C/D options, answer is one letter
  match      match List-I with List-II; has list1[], list2[], options{}
  statement  "consider the following statements" with A/B/C/D options
  text       direct-answer question with NO options; answer is the raw value ("60%", "35:45:21")
  image      question references a diagram or figure
  fill       fill in the blank

Return ONLY one valid JSON object, no markdown, shaped like:

{
  "page_type": "mixed",
  "prev_page_continuation": {"options": {"A": "140", "B": "150"}, "answer": "C"},
  "dangling_qno": null,
  "questions": [
    {"qno": 11, "type": "mcq", "question": "...", "list1": [], "list2": [],
     "options": {"A": "30%", "B": "20%", "C": "50%", "D": "17%"},
     "answer": "B", "continuation_to_next": false}
  ],
  "answers": [],
  "orphan_answers": [{"qno": null, "answer": "B"}]
}

Field rules:
- qno: parse "Q11.", "Q.11", "11.", "Q 11" as the integer 11
- options: UPPERCASE keys A/B/C/D; empty {} for text/fill/cut-off questions
- answer: uppercase letter for mcq/match/statement/image; raw string for text/fill; null if absent
- page_type: "questions", "mixed" (inline answers present) or "answers" (answer-key table)
- never invent options for text-type questions
- ignore watermarks, logos, page numbers, headers and footers`

// layoutHints are appended per page depending on how the renderer
// classified the page.
var layoutHints = map[string]string{
	"single": "Single-column page. Inline answers may follow each question. " +
		"Options or an answer at the very top before any question number are prev_page_continuation. " +
		"If the last question has no options, set continuation_to_next. " +
		"If only a question number appears at the very bottom, use dangling_qno.",
	"two_column": "One column of a two-column exam paper. No inline answers expected. " +
		"Watch for cross-page continuations at the top and bottom.",
	"answer_key": "Answer-key table. Extract every question-number/answer pair from all rows and columns into \"answers\" and set page_type to \"answers\".",
}

// HintFor returns the user-message hint for a layout classification.
func HintFor(layout string) string {
	if h, ok := layoutHints[layout]; ok {
		return h
	}
	return layoutHints["single"]
}
