package normalize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/arenhaus/newswire/internal/models"
)

// Reporting verbs carry no topical signal; two outlets covering one event
// differ mostly in the verb they pick, so the fingerprint drops them.
var newsVerbs = map[string]bool{
	"announces": true, "announced": true, "announce": true,
	"says": true, "said": true, "reports": true, "reported": true,
	"unveils": true, "unveiled": true, "warns": true, "warned": true,
	"begins": true, "began": true, "starts": true, "started": true,
	"claims": true, "claimed": true, "reveals": true, "revealed": true,
	"confirms": true, "confirmed": true, "denies": true, "denied": true,
	"vows": true, "vowed": true, "urges": true, "urged": true,
	"declares": true, "declared": true, "tells": true, "told": true,
	"calls": true, "called": true, "seeks": true, "sought": true,
	"plans": true, "planned": true, "expects": true, "expected": true,
	"faces": true, "facing": true, "shows": true, "showed": true,
	"launches": true, "launched": true, "leaves": true, "ends": true,
	"ended": true, "amid": true, "after": true, "could": true,
}

// Fingerprint builds the cluster-match key for a title: significant title
// tokens merged with PERSON/ORG/LOCATION entity texts, deduplicated,
// sorted, first three joined with underscores. Two write-ups of the same
// event usually converge on the same triple even when their verbs and
// stopwords differ.
func Fingerprint(title string, entities []models.Entity) string {
	merged := map[string]bool{}

	n := 0
	for _, t := range Tokenize(title) {
		if newsVerbs[t] || utf8.RuneCountInString(t) <= 4 {
			continue
		}
		merged[t] = true
		n++
		if n == 5 {
			break
		}
	}

	for _, e := range entities {
		switch e.Type {
		case models.EntityPerson, models.EntityOrg, models.EntityLocation:
			merged[strings.ReplaceAll(strings.ToLower(e.Text), " ", "_")] = true
		}
	}

	tokens := make([]string, 0, len(merged))
	for t := range merged {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	return strings.Join(tokens, "_")
}
