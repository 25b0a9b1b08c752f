package cluster

import (
	"context"
	"fmt"
	"strings"
)

// Headliner synthesizes a replacement headline for a story from its source
// coverage. Implemented by the LLM client; faked in tests.
type Headliner interface {
	Headline(ctx context.Context, current string, sourceTitles []string) (string, error)
}

// Fragments that betray a model echoing its instructions instead of
// writing a headline.
var placeholderFragments = []string{
	"insert", "tbd", "placeholder", "[", "n/a", "...", "headline:",
}

// ValidateHeadline checks a synthesized headline before it replaces the
// current title: 6 to 20 words, no placeholder fragments, and not just the
// current title echoed back.
func ValidateHeadline(candidate, current string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return fmt.Errorf("empty headline")
	}

	words := len(strings.Fields(candidate))
	if words < 6 || words > 20 {
		return fmt.Errorf("headline has %d words, want 6-20", words)
	}

	lower := strings.ToLower(candidate)
	for _, frag := range placeholderFragments {
		if strings.Contains(lower, frag) {
			return fmt.Errorf("headline contains placeholder %q", frag)
		}
	}

	if strings.EqualFold(candidate, strings.TrimSpace(current)) {
		return fmt.Errorf("headline identical to current title")
	}
	return nil
}
