package normalize

import "strings"

// categoryOrder fixes tie-breaking: when two categories score equally the
// earlier one wins.
var categoryOrder = []string{
	"politics", "world", "business", "tech", "sports", "health",
	"entertainment", "science",
}

var categoryKeywords = map[string][]string{
	"politics": {
		"election", "senate", "congress", "parliament", "minister",
		"president", "policy", "legislation", "vote", "campaign",
		"democrat", "republican", "labor", "liberal", "senator",
		"referendum", "coalition", "cabinet", "politics", "political",
		"government", "bill",
	},
	"world": {
		"war", "ceasefire", "treaty", "border", "diplomatic", "embassy",
		"nato", "refugee", "sanctions", "missile", "invasion", "troops",
		"airstrike", "humanitarian", "coup", "world", "international",
		"un", "hostage",
	},
	"business": {
		"market", "stocks", "shares", "earnings", "profit", "economy",
		"inflation", "recession", "merger", "acquisition", "ipo",
		"revenue", "investor", "trade", "tariff", "bank", "business",
		"finance", "dollar", "rates",
	},
	"tech": {
		"technology", "tech", "software", "ai", "chip", "semiconductor",
		"app", "cyber", "cybersecurity", "internet", "robot",
		"smartphone", "cloud", "algorithm", "crypto", "bitcoin",
		"startup", "gadget", "silicon",
	},
	"sports": {
		"match", "tournament", "championship", "league", "coach",
		"player", "season", "goal", "cricket", "football", "tennis",
		"olympic", "olympics", "stadium", "sport", "sports", "afl",
		"nrl", "grand", "racing", "athlete",
	},
	"health": {
		"health", "hospital", "vaccine", "virus", "disease", "cancer",
		"doctor", "patient", "outbreak", "drug", "treatment",
		"clinical", "epidemic", "medicare", "mental", "medical",
		"surgery",
	},
	"entertainment": {
		"film", "movie", "music", "celebrity", "actor", "actress",
		"album", "concert", "festival", "hollywood", "streaming",
		"television", "entertainment", "oscars", "grammy", "premiere",
	},
	"science": {
		"research", "study", "scientists", "space", "climate",
		"species", "telescope", "physics", "discovery", "fossil",
		"genome", "quantum", "mars", "nasa", "science", "astronomy",
		"archaeology",
	},
}

// Categorize assigns a category by scoring keyword hits over the
// concatenated title, description and URL. Single-word keywords match
// whole tokens only; no category scoring → "other".
func Categorize(title, description, url string) string {
	tokens := map[string]bool{}
	for _, t := range Tokenize(title + " " + description + " " + url) {
		tokens[t] = true
	}
	haystack := strings.ToLower(title + " " + description + " " + url)

	best, bestScore := "other", 0
	for _, cat := range categoryOrder {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(kw, " ") {
				if strings.Contains(haystack, kw) {
					score++
				}
			} else if tokens[kw] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	return best
}
