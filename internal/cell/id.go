package cell

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IDPrefix prefixes every cell identifier.
const IDPrefix = "cell_"

const maxTitleRunes = 60

// NewID returns "cell_" followed by eight random hex characters.
func NewID() string {
	return IDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewConversationID returns an identifier for a new conversation.
func NewConversationID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// DefaultTitle derives a short title from a question: whitespace collapsed,
// trailing punctuation removed, words title-cased, truncated to 60 runes.
func DefaultTitle(question string) string {
	title := strings.Join(strings.Fields(question), " ")
	title = strings.TrimRight(title, "?.! ")
	if title == "" {
		return ""
	}

	title = cases.Title(language.English, cases.NoLower).String(title)

	if utf8.RuneCountInString(title) > maxTitleRunes {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleRunes-1])) + "…"
	}
	return title
}
