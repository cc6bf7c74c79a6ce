// Package moderation flags free text that contains disallowed terms.
package moderation

import (
	"regexp"
	"strings"
)

// Result is the outcome of a moderation check.
type Result struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason,omitempty"`
	Term    string `json:"-"`
}

// terms are matched from a leading word boundary, so stems such as
// "masturbat" also catch their inflections.
var terms = []string{
	// sexual
	"porn", "pornography", "xxx", "hentai", "nsfw", "orgasm", "erotic",
	"fetish", "masturbat", "genitalia", "genital", "penis", "vagina",
	"intercourse", "ejaculat",
	// graphic violence
	"gore", "dismember", "decapitat", "mutilat", "torture", "snuff",
	// slurs
	"nigger", "nigga", "faggot", "retard", "kike", "spic", "chink", "wetback",
	// drug synthesis
	"meth recipe", "cook meth", "make cocaine", "fentanyl synthesis",
}

type pattern struct {
	term string
	re   *regexp.Regexp
}

var patterns = compile(terms)

func compile(list []string) []pattern {
	out := make([]pattern, 0, len(list))
	for _, term := range list {
		out = append(out, pattern{
			term: term,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term)),
		})
	}
	return out
}

// Check scans text and returns the first matching term, if any.
func Check(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return Result{Flagged: true, Reason: "matched: " + p.term, Term: p.term}
		}
	}
	return Result{}
}

// CheckAll checks several fields and returns the first flagged result.
func CheckAll(texts ...string) Result {
	for _, text := range texts {
		if r := Check(text); r.Flagged {
			return r
		}
	}
	return Result{}
}

// Terms returns a copy of the disallowed term list.
func Terms() []string {
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}
