package chitchat

import (
	"strings"
	"unicode/utf8"
)

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hiya": true, "yo": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"thanks": true, "thank you": true, "thx": true, "ty": true, "cheers": true,
	"bye": true, "goodbye": true, "see you": true, "see ya": true,
	"ok": true, "okay": true, "cool": true, "great": true, "nice": true,
	"how are you": true, "what's up": true, "whats up": true, "sup": true,
}

var interrogatives = map[string]bool{
	"who": true, "what": true, "when": true, "where": true, "why": true,
	"how": true, "which": true, "whom": true, "whose": true,
}

// IsChitchat reports whether q is small talk that should skip retrieval.
func IsChitchat(q string) bool {
	s := strings.ToLower(strings.TrimSpace(q))
	if s == "" {
		return false
	}

	if greetings[strings.TrimRight(s, ".!?, ")] {
		return true
	}

	words := strings.Fields(s)
	if len(words) == 1 && utf8.RuneCountInString(words[0]) <= 4 {
		return true
	}

	if utf8.RuneCountInString(s) <= 10 && !hasInterrogative(words) {
		return true
	}

	return false
}

func hasInterrogative(words []string) bool {
	for _, w := range words {
		if interrogatives[strings.Trim(w, ".!?,;:'\"")] {
			return true
		}
	}
	return false
}
