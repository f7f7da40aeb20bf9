package processor

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/scandoc/scandoc/internal/tables"
)

// =============================================================================
// AGGREGATOR - Result rendering
// =============================================================================

// Aggregator renders a ProcessingResult as plain text and as a Markdown
// report with document metadata, promoted headings and extracted tables.
type Aggregator struct {
	now func() time.Time
}

// NewAggregator creates a result aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// PlainText joins the per-page texts in page order, separated by blank
// lines. Pages without text contribute nothing.
func (a *Aggregator) PlainText(r ProcessingResult) string {
	var parts []string
	for _, p := range r.Pages {
		t := strings.TrimSpace(p.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Markdown renders the full report: a metadata header, the extracted text
// with short all-caps lines promoted to headings, the detected tables and a
// technical footer.
func (a *Aggregator) Markdown(r ProcessingResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.DocumentName)
	b.WriteString("## Document Information\n\n")
	fmt.Fprintf(&b, "- **Source File**: %s\n", r.DocumentName+".pdf")
	fmt.Fprintf(&b, "- **Pages Processed**: %d\n", r.PageCount())
	fmt.Fprintf(&b, "- **OCR Confidence**: %.2f%%\n", r.Confidence)
	fmt.Fprintf(&b, "- **Processing Time**: %.2f seconds\n", r.Duration().Seconds())
	fmt.Fprintf(&b, "- **Processed At**: %s\n", a.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Document ID**: %s\n", r.DocumentID)
	fmt.Fprintf(&b, "- **Status**: %s\n", string(r.Status))
	b.WriteString("\n---\n\n## Extracted Content\n\n")

	b.WriteString(a.formatText(a.PlainText(r)))
	b.WriteString(a.formatTables(r.Tables))
	b.WriteString(a.footer(r))

	return b.String()
}

// formatText splits the text into paragraphs and promotes short all-caps
// paragraphs to level-3 headings.
func (a *Aggregator) formatText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "*(no text was extracted from the document)*\n\n"
	}

	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if len(para) < 100 && isUpper(para) && !strings.HasPrefix(para, " ") {
			out = append(out, "### "+para)
		} else {
			out = append(out, para)
		}
	}
	return strings.Join(out, "\n\n") + "\n\n"
}

func (a *Aggregator) formatTables(results []tables.TableResult) string {
	var nonEmpty []tables.TableResult
	for _, t := range results {
		if !t.Empty() {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Extracted Tables\n\n")
	for i, t := range nonEmpty {
		fmt.Fprintf(&b, "### Table %d (page %d)\n\n", i+1, t.Page)
		writePipeTable(&b, t.Rows)
		b.WriteString("\n")
	}
	return b.String()
}

// writePipeTable renders rows as a pipe-delimited Markdown table, treating
// the first row as the header.
func writePipeTable(b *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	header := rows[0]
	b.WriteString("| " + strings.Join(sanitizeCells(header), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(header)) + "\n")
	for _, row := range rows[1:] {
		b.WriteString("| " + strings.Join(sanitizeCells(row), " | ") + " |\n")
	}
}

func sanitizeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", "\\|")
		out[i] = strings.Join(strings.Fields(c), " ")
	}
	return out
}

func (a *Aggregator) footer(r ProcessingResult) string {
	var b strings.Builder
	b.WriteString("---\n\n## Technical Information\n\n")
	b.WriteString("- **OCR Engine**: Tesseract\n")
	fmt.Fprintf(&b, "- **Profile**: %s\n", r.Profile.Level.String())
	fmt.Fprintf(&b, "- **DPI**: %d\n", r.Profile.DPI)
	fmt.Fprintf(&b, "- **Language**: %s\n", r.Profile.Language)
	b.WriteString("\n*Generated automatically by scandoc*\n")
	return b.String()
}

// isUpper reports whether the string contains at least one letter and no
// lowercase letters.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
