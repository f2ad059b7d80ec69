package publish

import (
	"html"
	"strings"
	"time"

	"github.com/ashureev/analystai/internal/domain"
)

// FallbackTitle names a page exported without a conversation title.
func FallbackTitle(now time.Time) string {
	return "AnalystAI Requirements - " + now.Format("2006-01-02 15:04:05")
}

// StorageFormat renders the bundle as Confluence storage-format XHTML. Each group becomes
// an h2, each section an h3, and each non-blank line of a section a paragraph.
func StorageFormat(bundle *domain.DocumentBundle) string {
	var sb strings.Builder
	group := ""
	for _, s := range bundle.Sections() {
		if s.Group != group {
			group = s.Group
			sb.WriteString("<h2>" + html.EscapeString(group) + "</h2>")
		}
		sb.WriteString("<h3>" + html.EscapeString(s.Title) + "</h3>")
		for _, line := range strings.Split(s.Content, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sb.WriteString("<p>" + html.EscapeString(line) + "</p>")
		}
	}
	return sb.String()
}

// Markdown renders the bundle as a markdown document headed by title.
func Markdown(bundle *domain.DocumentBundle, title string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("# " + title + "\n\n")
	}
	group := ""
	for _, s := range bundle.Sections() {
		if s.Group != group {
			group = s.Group
			sb.WriteString("## " + group + "\n\n")
		}
		sb.WriteString("### " + s.Title + "\n\n")
		sb.WriteString(strings.TrimSpace(s.Content) + "\n\n")
	}
	return sb.String()
}
