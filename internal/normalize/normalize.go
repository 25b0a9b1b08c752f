// Package normalize turns raw feed entries into clean, classified article
// fields: text cleanup, spam rejection, entity extraction, categorization
// and fingerprinting. Everything here is deterministic and makes no
// external calls.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText strips markup from a feed field: tags removed, entities
// decoded, whitespace collapsed to single spaces.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Listing pages and press-release wires produce entries that look like news
// but never cluster into stories. They are dropped at ingest.
var spamURLPatterns = []string{
	"/good-food/",
	"/restaurants/",
	"/gig-guide/",
	"/things-to-do/",
	"/horoscopes/",
}

var lowSignalDomains = []string{
	"prnewswire.com",
	"businesswire.com",
	"globenewswire.com",
}

var spamTitlePatterns = []string{
	"sponsored:",
	"advertorial",
	"[advertisement]",
}

// IsSpam reports whether an entry should be rejected outright.
func IsSpam(title, rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, p := range spamURLPatterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	for _, d := range lowSignalDomains {
		if strings.Contains(u, d) {
			return true
		}
	}
	t := strings.ToLower(title)
	for _, p := range spamTitlePatterns {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// Tokenize lowercases s and splits it into alphanumeric tokens with
// stopwords removed. Used for both similarity scoring and fingerprints so
// the two stay consistent.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"by": true, "with": true, "from": true, "into": true, "over": true,
	"under": true, "after": true, "before": true, "between": true,
	"through": true, "during": true, "about": true, "against": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "has": true, "have": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "his": true, "her": true, "their": true, "our": true,
	"your": true, "he": true, "she": true, "they": true, "we": true,
	"you": true, "i": true, "as": true, "if": true, "so": true, "not": true,
	"no": true, "up": true, "out": true, "off": true, "down": true,
	"than": true, "then": true, "more": true, "most": true, "some": true,
	"all": true, "any": true, "each": true, "how": true, "what": true,
	"when": true, "where": true, "who": true, "why": true, "which": true,
	"while": true, "amid": true, "amidst": true, "new": true, "latest": true,
	"live": true, "update": true, "updates": true, "breaking": true,
	"news": true, "report": true, "exclusive": true, "watch": true,
	"video": true, "photos": true, "opinion": true, "analysis": true,
}
