// Package export renders a question document as a markdown paper, and
// optionally as HTML for the review page.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/rkotari/qbank/internal/model"
)

// Markdown renders the document as a markdown question paper.
func Markdown(title string, questions []model.Question) string {
	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", title)
	}

	for _, q := range questions {
		fmt.Fprintf(&sb, "## Q%d. %s\n\n", q.Number, q.Text)

		if q.Type == model.TypeMatch {
			writeMatchLists(&sb, q)
		}

		if len(q.Options) > 0 {
			for _, label := range sortedLabels(q.Options) {
				fmt.Fprintf(&sb, "- **%s.** %s\n", label, q.Options[label])
			}
			sb.WriteString("\n")
		}

		if q.DiagramRef != "" {
			fmt.Fprintf(&sb, "![diagram](%s)\n\n", q.DiagramRef)
		}

		if q.Answer != "" {
			fmt.Fprintf(&sb, "**Answer:** %s\n\n", q.Answer)
		}
	}

	return sb.String()
}

// HTML renders the markdown paper to HTML.
func HTML(title string, questions []model.Question) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(title, questions)), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMatchLists(sb *strings.Builder, q model.Question) {
	if len(q.ListOne) > 0 {
		sb.WriteString("List-I:\n\n")
		for i, item := range q.ListOne {
			fmt.Fprintf(sb, "%d. %s\n", i+1, item)
		}
		sb.WriteString("\n")
	}
	if len(q.ListTwo) > 0 {
		sb.WriteString("List-II:\n\n")
		for i, item := range q.ListTwo {
			fmt.Fprintf(sb, "%d. %s\n", i+1, item)
		}
		sb.WriteString("\n")
	}
}

func sortedLabels(options map[string]string) []string {
	labels := make([]string, 0, len(options))
	for label := range options {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
