package pipeline

import "github.com/rkotari/qbank/internal/model"

// AttachDiagrams pairs cropped diagram references with a page's
// questions in order: the first diagram goes to the first question
// without a reference, the second to the next, and so on. Pairing is
// positional, not content-matched. Leftover diagrams are ignored;
// leftover questions keep an empty reference.
func AttachDiagrams(questions []model.QuestionDraft, refs []string) {
	next := 0
	for i := range questions {
		if next >= len(refs) {
			return
		}
		if questions[i].DiagramRef != "" {
			continue
		}
		questions[i].DiagramRef = refs[next]
		next++
	}
}
