package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arenhaus/newswire/internal/models"
)

const maxEntities = 12

// ExtractEntities pulls named entities out of text by scanning runs of
// capitalized words and classifying them against small keyword maps. The
// result is ordered most frequent first, ties by first appearance, so the
// leading entity of each type is the dominant one.
func ExtractEntities(text string) []models.Entity {
	words := strings.Fields(text)

	type candidate struct {
		text  string
		typ   string
		count int
	}
	byName := map[string]*candidate{}
	ordered := []*candidate{}

	i := 0
	for i < len(words) {
		tok := trimPunct(words[i])
		if !capitalized(tok) {
			i++
			continue
		}

		// Collect the maximal run of capitalized words, up to four.
		j := i
		var run []string
		for j < len(words) && len(run) < 4 {
			t := trimPunct(words[j])
			if !capitalized(t) {
				break
			}
			run = append(run, t)
			// Punctuation after a word ends the run.
			if strings.ContainsAny(words[j], ".,;:!?") {
				j++
				break
			}
			j++
		}

		honorific := false
		for len(run) > 0 && honorifics[strings.ToLower(run[0])] {
			run = run[1:]
			honorific = true
		}
		for len(run) > 0 && sentenceStarters[strings.ToLower(run[0])] {
			run = run[1:]
		}
		if len(run) > 3 {
			run = run[:3]
		}
		if len(run) == 0 || (len(run) == 1 && utf8.RuneCountInString(run[0]) < 3) {
			i = j
			continue
		}

		name := strings.Join(run, " ")
		if c, ok := byName[name]; ok {
			c.count++
		} else {
			c := &candidate{
				text:  name,
				typ:   classifyEntity(run, honorific),
				count: 1,
			}
			byName[name] = c
			ordered = append(ordered, c)
		}
		i = j
	}

	// Most frequent first; first appearance breaks ties. Insertion sort
	// keeps this stable for the handful of candidates a title yields.
	for a := 1; a < len(ordered); a++ {
		for b := a; b > 0 && ordered[b].count > ordered[b-1].count; b-- {
			ordered[b], ordered[b-1] = ordered[b-1], ordered[b]
		}
	}

	out := make([]models.Entity, 0, len(ordered))
	for _, c := range ordered {
		if len(out) >= maxEntities {
			break
		}
		out = append(out, models.Entity{Text: c.text, Type: c.typ})
	}
	return out
}

// Dominant returns the text of the highest-ranked entity of the given
// type, or "" when there is none.
func Dominant(entities []models.Entity, typ string) string {
	for _, e := range entities {
		if e.Type == typ {
			return e.Text
		}
	}
	return ""
}

func classifyEntity(run []string, honorific bool) string {
	lowered := make([]string, len(run))
	for i, t := range run {
		lowered[i] = strings.ToLower(t)
	}
	joined := strings.Join(lowered, " ")

	if locations[joined] {
		return models.EntityLocation
	}
	for _, t := range lowered {
		if locations[t] {
			return models.EntityLocation
		}
	}
	if orgNames[joined] {
		return models.EntityOrg
	}
	for _, t := range lowered {
		if orgKeywords[t] {
			return models.EntityOrg
		}
	}
	for _, t := range lowered {
		if eventKeywords[t] {
			return models.EntityEvent
		}
	}
	if honorific || len(run) == 2 {
		return models.EntityPerson
	}
	return models.EntityOther
}

func capitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsUpper(r)
}

func trimPunct(tok string) string {
	return strings.Trim(tok, `.,;:!?"'()[]{}“”‘’—–$`)
}

var honorifics = map[string]bool{
	"president": true, "prime": true, "minister": true, "senator": true,
	"dr": true, "mr": true, "ms": true, "mrs": true, "judge": true,
	"governor": true, "mayor": true, "ceo": true, "chancellor": true,
	"king": true, "queen": true, "pope": true, "sir": true, "coach": true,
	"premier": true, "general": true, "secretary": true,
}

var sentenceStarters = map[string]bool{
	"the": true, "a": true, "an": true, "but": true, "and": true,
	"or": true, "if": true, "when": true, "while": true, "after": true,
	"before": true, "why": true, "how": true, "what": true, "it": true,
	"he": true, "she": true, "they": true, "this": true, "that": true,
	"in": true, "on": true, "at": true, "as": true, "is": true,
	"was": true, "breaking": true, "live": true, "watch": true,
	"exclusive": true, "opinion": true,
}

var locations = map[string]bool{
	"ukraine": true, "russia": true, "gaza": true, "israel": true,
	"china": true, "taiwan": true, "iran": true, "iraq": true,
	"syria": true, "afghanistan": true, "india": true, "pakistan": true,
	"japan": true, "korea": true, "north korea": true, "south korea": true,
	"france": true, "germany": true, "britain": true, "uk": true,
	"england": true, "scotland": true, "ireland": true, "italy": true,
	"spain": true, "poland": true, "greece": true, "turkey": true,
	"egypt": true, "libya": true, "sudan": true, "yemen": true,
	"lebanon": true, "jordan": true, "saudi": true, "saudi arabia": true,
	"qatar": true, "dubai": true, "jerusalem": true, "tel aviv": true,
	"london": true, "paris": true, "berlin": true, "moscow": true,
	"kyiv": true, "beijing": true, "shanghai": true, "tokyo": true,
	"seoul": true, "delhi": true, "mumbai": true, "washington": true,
	"america": true, "united states": true, "canada": true, "mexico": true,
	"brazil": true, "argentina": true, "venezuela": true, "cuba": true,
	"australia": true, "sydney": true, "melbourne": true, "canberra": true,
	"queensland": true, "victoria": true, "new zealand": true,
	"new york": true, "california": true, "texas": true, "florida": true,
	"europe": true, "africa": true, "asia": true, "antarctica": true,
	"philippines": true, "indonesia": true, "vietnam": true,
	"thailand": true, "singapore": true, "malaysia": true,
}

var orgNames = map[string]bool{
	"united nations": true, "nato": true, "european union": true,
	"white house": true, "pentagon": true, "congress": true,
	"senate": true, "parliament": true, "supreme court": true,
	"federal reserve": true, "world bank": true, "red cross": true,
	"world health organization": true, "google": true, "apple": true,
	"microsoft": true, "amazon": true, "meta": true, "tesla": true,
	"openai": true, "boeing": true, "airbus": true, "pfizer": true,
	"moderna": true, "nasa": true, "fbi": true, "cia": true,
	"goldman sachs": true, "jpmorgan": true, "qantas": true,
	"reserve bank": true, "labor": true, "liberals": true,
	"democrats": true, "republicans": true, "hamas": true,
	"hezbollah": true, "kremlin": true, "interpol": true,
}

var orgKeywords = map[string]bool{
	"inc": true, "corp": true, "ltd": true, "co": true, "group": true,
	"bank": true, "university": true, "ministry": true,
	"department": true, "agency": true, "police": true, "court": true,
	"council": true, "party": true, "commission": true,
	"committee": true, "association": true, "authority": true,
	"airlines": true, "motors": true, "institute": true, "union": true,
}

var eventKeywords = map[string]bool{
	"cup": true, "olympics": true, "olympic": true, "summit": true,
	"election": true, "festival": true, "championship": true,
	"championships": true, "games": true, "conference": true,
	"final": true, "finals": true, "awards": true, "oscars": true,
	"referendum": true, "inquiry": true,
}
