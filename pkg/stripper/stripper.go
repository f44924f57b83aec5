// Package stripper removes the refusal sentence the model is told to emit when
// the documents do not contain an answer. It only ever looks at the start of
// the text, so it can run on a buffer that is still growing token by token.
package stripper

import (
	"regexp"
	"strings"
)

// FallbackSentence is the literal the model is instructed to reply with when
// the answer is not in the provided documents.
const FallbackSentence = "I don't know based on the provided documents."

// knowTail is the part of FallbackSentence left over once the negation is gone.
const knowTail = "know based on the provided documents."

// Rule is one prefix rule. Match returns how many leading bytes of s to drop,
// or 0 when the rule does not apply.
type Rule struct {
	Name  string
	Match func(s string) int
}

// Rules is the ordered rule table. Every pass of Strip applies each rule once,
// in this order, against the current start of the string.
var Rules = []Rule{
	{Name: "leading-space", Match: regexpRule(`^\s+`)},
	{Name: "negation", Match: regexpRule(`(?i)^(?:i\s+)?(?:do\s+not|don['’]?t)(?:[\s\p{P}]+|$)`)},
	{Name: "know-clause", Match: regexpRule(`(?i)^know(?:\s+based\s+on\s+the\s+provided\s+documents?[\s\p{P}]*|[.!?,;:]+\s*|\s*$)`)},
	{Name: "contraction-fragment", Match: regexpRule(`(?i)^n?['’]t(?:[\s\p{P}]+|$)`)},
	{Name: "leftover-token", Match: leftover},
	{Name: "leading-punct", Match: regexpRule("^[\\s.,;:!?\"'`“”‘’]+")},
}

func regexpRule(expr string) func(string) int {
	re := regexp.MustCompile(expr)
	return func(s string) int {
		loc := re.FindStringIndex(s)
		if loc == nil {
			return 0
		}
		return loc[1]
	}
}

var leftoverTokenRe = regexp.MustCompile(`(?i)^(?:i|don|do|i\s+don|i\s+do)['’]?\s*$`)

// leftover drops the whole string when it is nothing but a dangling token or a
// truncated start of the fallback sentence. Anything longer is real content.
func leftover(s string) int {
	if leftoverTokenRe.MatchString(s) {
		return len(s)
	}
	t := normalize(strings.TrimRight(s, " \t\r\n"))
	if t == "" {
		return 0
	}
	if strings.HasPrefix(normalize(FallbackSentence), t) || strings.HasPrefix(knowTail, t) {
		return len(s)
	}
	return 0
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "’", "'")
}

// Strip removes the refusal sentence, or any prefix of it, from the start of
// text. Passes repeat until the text stops changing, so Strip is idempotent.
func Strip(text string) string {
	for {
		next := pass(text)
		if next == text {
			return text
		}
		text = next
	}
}

func pass(s string) string {
	for _, r := range Rules {
		if n := r.Match(s); n > 0 {
			s = s[n:]
		}
	}
	return s
}
