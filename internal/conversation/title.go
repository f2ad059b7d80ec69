package conversation

import (
	"strings"

	"github.com/ashureev/analystai/internal/domain"
)

// DefaultTitle names a conversation without any user message.
const DefaultTitle = "New Conversation"

const (
	maxTitleRunes   = 80
	truncatedLength = 77
)

// DeriveTitle returns the trimmed first user message, cut to 77 runes plus "..." when it
// exceeds 80 runes. It reports false when no non-blank user message exists.
func DeriveTitle(messages []domain.Message) (string, bool) {
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return "", false
		}
		runes := []rune(content)
		if len(runes) > maxTitleRunes {
			return string(runes[:truncatedLength]) + "...", true
		}
		return content, true
	}
	return "", false
}

// TitleOrDefault is DeriveTitle falling back to DefaultTitle.
func TitleOrDefault(messages []domain.Message) string {
	if title, ok := DeriveTitle(messages); ok {
		return title
	}
	return DefaultTitle
}
