// Package cluster assigns articles to story clusters and evolves story
// status and headlines as coverage grows.
package cluster

import (
	"strings"

	"github.com/arenhaus/newswire/internal/models"
	"github.com/arenhaus/newswire/internal/normalize"
)

// Similarity scores how likely an article and a story describe the same
// event: Jaccard index over title tokens plus 0.1 per shared
// PERSON/ORG/LOCATION entity, capped at 1.0. The shared-entity count is
// returned alongside the score for the sub-threshold gate.
func Similarity(articleTokens []string, articleEntities []models.Entity, storyTokens []string, storyEntities []models.Entity) (float64, int) {
	shared := sharedEntityCount(articleEntities, storyEntities)
	score := jaccard(articleTokens, storyTokens) + 0.1*float64(shared)
	if score > 1.0 {
		score = 1.0
	}
	return score, shared
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range b {
		setB[t] = true
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func matchableEntity(typ string) bool {
	return typ == models.EntityPerson || typ == models.EntityOrg || typ == models.EntityLocation
}

func sharedEntityCount(a, b []models.Entity) int {
	bTexts := map[string]bool{}
	for _, e := range b {
		if matchableEntity(e.Type) {
			bTexts[strings.ToLower(e.Text)] = true
		}
	}
	seen := map[string]bool{}
	count := 0
	for _, e := range a {
		if !matchableEntity(e.Type) {
			continue
		}
		t := strings.ToLower(e.Text)
		if bTexts[t] && !seen[t] {
			seen[t] = true
			count++
		}
	}
	return count
}

// TopicConflict rejects a candidate pairing when the two sides centre on
// different subjects. For LOCATION and PERSON: if both sides have a
// dominant entity of the type, the entities differ, and neither appears in
// the other side's title, the pairing is a conflict. A high word overlap
// between "Russia launches missiles" and "Israel launches operation" is
// exactly what this catches.
func TopicConflict(articleTitle string, articleEntities []models.Entity, storyTitle string, storyEntities []models.Entity) bool {
	for _, typ := range []string{models.EntityLocation, models.EntityPerson} {
		da := normalize.Dominant(articleEntities, typ)
		ds := normalize.Dominant(storyEntities, typ)
		if da == "" || ds == "" || strings.EqualFold(da, ds) {
			continue
		}
		if !containsFold(storyTitle, da) && !containsFold(articleTitle, ds) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
