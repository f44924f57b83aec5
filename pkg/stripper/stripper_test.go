package stripper

import (
	"strings"
	"testing"
)

func ruleByName(t *testing.T, name string) Rule {
	t.Helper()
	for _, r := range Rules {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no rule named %q", name)
	return Rule{}
}

func TestRules(t *testing.T) {
	cases := []struct {
		rule string
		in   string
		want string // remainder after the rule
	}{
		{"leading-space", "  \n hello", "hello"},
		{"leading-space", "hello", "hello"},
		{"negation", "I don't know", "know"},
		{"negation", "I don’t know", "know"},
		{"negation", "i do not know", "know"},
		{"negation", "don't.", ""},
		{"negation", "Dont know", "know"},
		{"negation", "do nothing", "do nothing"},
		{"negation", "donuts", "donuts"},
		{"know-clause", "know based on the provided documents. The end", "The end"},
		{"know-clause", "know.", ""},
		{"know-clause", "know", ""},
		{"know-clause", "knowledge is power", "knowledge is power"},
		{"know-clause", "Know your rights", "Know your rights"},
		{"contraction-fragment", "n't know", "know"},
		{"contraction-fragment", "’t", ""},
		{"contraction-fragment", "'tis the season", "'tis the season"},
		{"leftover-token", "i", ""},
		{"leftover-token", "I don", ""},
		{"leftover-token", "don", ""},
		{"leftover-token", "know based on the prov", ""},
		{"leftover-token", "I think so", "I think so"},
		{"leftover-token", "Donald", "Donald"},
		{"leading-punct", `". Answer`, "Answer"},
		{"leading-punct", "Answer.", "Answer."},
	}
	for _, c := range cases {
		r := ruleByName(t, c.rule)
		got := c.in[r.Match(c.in):]
		if got != c.want {
			t.Errorf("%s(%q) = %q, want %q", c.rule, c.in, got, c.want)
		}
	}
}

func TestStrip(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{FallbackSentence, ""},
		{"  I don't know based on the provided documents.", ""},
		{"I DON'T KNOW BASED ON THE PROVIDED DOCUMENTS.", ""},
		{"I don’t know.", ""},
		{"I don't know based on the provided documents. The manual says X.", "The manual says X."},
		{"The warranty lasts two years.", "The warranty lasts two years."},
		{"I think the answer is 42.", "I think the answer is 42."},
		{"Knowledge of X is required.", "Knowledge of X is required."},
	}
	for _, c := range cases {
		if got := Strip(c.in); got != c.want {
			t.Errorf("Strip(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStrip_Idempotent(t *testing.T) {
	inputs := []string{
		"know I don't x",
		"'t don't know.",
		"I don't know. I don't know. Then content",
		" \"I do not know\" based",
		"n't n't n't",
		"...",
		"Hello world",
		FallbackSentence + FallbackSentence,
	}
	for i := range FallbackSentence {
		inputs = append(inputs, FallbackSentence[:i])
	}
	for _, in := range inputs {
		once := Strip(in)
		if twice := Strip(once); twice != once {
			t.Errorf("Strip not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestStrip_FallbackPrefixes(t *testing.T) {
	for _, sentence := range []string{FallbackSentence, strings.ReplaceAll(FallbackSentence, "'", "’")} {
		cuts := []int{len(sentence)}
		for i := range sentence {
			cuts = append(cuts, i)
		}
		for _, i := range cuts {
			prefix := sentence[:i]
			if got := Strip(prefix); got != "" {
				t.Errorf("Strip(%q) = %q, want empty", prefix, got)
			}
		}
	}
}

func TestStrip_KeepsContentAfterMismatch(t *testing.T) {
	// "I d" is still a possible prefix, "I dr" no longer is
	if got := Strip("I d"); got != "" {
		t.Errorf("Strip(%q) = %q, want empty", "I d", got)
	}
	if got := Strip("I drove"); got != "I drove" {
		t.Errorf("Strip(%q) = %q, want unchanged", "I drove", got)
	}
	if got := Strip("I don't know based on the Q3 report"); got != "know based on the Q3 report" {
		t.Errorf("got %q", got)
	}
}
