package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arenhaus/newswire/internal/models"
	"github.com/arenhaus/newswire/internal/normalize"
)

func TestJaccard(t *testing.T) {
	tests := map[string]struct {
		a    []string
		b    []string
		want float64
	}{
		"both empty": {
			a: nil, b: nil, want: 0,
		},
		"one side empty": {
			a: []string{"storm"}, b: nil, want: 0,
		},
		"identical": {
			a:    []string{"cyclone", "alfred", "queensland"},
			b:    []string{"cyclone", "alfred", "queensland"},
			want: 1.0,
		},
		"eight of ten overlap": {
			a:    normalize.Tokenize("Russia launches overnight missile strikes against southern port city Tuesday"),
			b:    normalize.Tokenize("Israel launches overnight missile strikes against southern port city Tuesday"),
			want: 0.8,
		},
		"duplicates count once": {
			a:    []string{"storm", "storm", "hits"},
			b:    []string{"storm", "hits"},
			want: 1.0,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tc.want, jaccard(tc.a, tc.b), 0.0001)
		})
	}
}

func TestSimilarityEntityBonus(t *testing.T) {
	// Word overlap alone lands under the fuzzy threshold; the shared
	// location lifts it over.
	aTokens := normalize.Tokenize("Ukraine grain exports resume slowly")
	sTokens := normalize.Tokenize("Ukraine grain exports resume quickly")
	ents := []models.Entity{{Text: "Ukraine", Type: models.EntityLocation}}

	score, shared := Similarity(aTokens, ents, sTokens, ents)

	assert.InDelta(t, 4.0/6.0+0.1, score, 0.0001)
	assert.Equal(t, 1, shared)
}

func TestSimilarityCappedAtOne(t *testing.T) {
	tokens := []string{"ceasefire", "holds"}
	ents := []models.Entity{
		{Text: "Gaza", Type: models.EntityLocation},
		{Text: "Hamas", Type: models.EntityOrg},
	}

	score, shared := Similarity(tokens, ents, tokens, ents)

	assert.Equal(t, 1.0, score)
	assert.Equal(t, 2, shared)
}

func TestSharedEntityCount(t *testing.T) {
	tests := map[string]struct {
		a    []models.Entity
		b    []models.Entity
		want int
	}{
		"duplicate mentions count once": {
			a: []models.Entity{
				{Text: "Gaza", Type: models.EntityLocation},
				{Text: "Gaza", Type: models.EntityLocation},
				{Text: "Hamas", Type: models.EntityOrg},
			},
			b: []models.Entity{
				{Text: "Gaza", Type: models.EntityLocation},
				{Text: "Hamas", Type: models.EntityOrg},
			},
			want: 2,
		},
		"events and misc never match": {
			a:    []models.Entity{{Text: "World Cup", Type: models.EntityEvent}, {Text: "Bitcoin", Type: models.EntityOther}},
			b:    []models.Entity{{Text: "World Cup", Type: models.EntityEvent}, {Text: "Bitcoin", Type: models.EntityOther}},
			want: 0,
		},
		"match is case-insensitive": {
			a:    []models.Entity{{Text: "GAZA", Type: models.EntityLocation}},
			b:    []models.Entity{{Text: "gaza", Type: models.EntityLocation}},
			want: 1,
		},
		"no overlap": {
			a:    []models.Entity{{Text: "Russia", Type: models.EntityLocation}},
			b:    []models.Entity{{Text: "Israel", Type: models.EntityLocation}},
			want: 0,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, sharedEntityCount(tc.a, tc.b))
		})
	}
}

func TestTopicConflict(t *testing.T) {
	tests := map[string]struct {
		articleTitle string
		articleEnts  []models.Entity
		storyTitle   string
		storyEnts    []models.Entity
		want         bool
	}{
		"different dominant locations": {
			articleTitle: "Russia launches overnight missile strikes against southern port city",
			articleEnts:  []models.Entity{{Text: "Russia", Type: models.EntityLocation}},
			storyTitle:   "Israel launches overnight missile strikes against southern port city",
			storyEnts:    []models.Entity{{Text: "Israel", Type: models.EntityLocation}},
			want:         true,
		},
		"same dominant location": {
			articleTitle: "Gaza ceasefire begins",
			articleEnts:  []models.Entity{{Text: "Gaza", Type: models.EntityLocation}},
			storyTitle:   "Gaza ceasefire starts",
			storyEnts:    []models.Entity{{Text: "Gaza", Type: models.EntityLocation}},
			want:         false,
		},
		"article title mentions the story's subject": {
			articleTitle: "Russia and Israel trade blame over strikes",
			articleEnts:  []models.Entity{{Text: "Russia", Type: models.EntityLocation}},
			storyTitle:   "Israel vows response to strikes",
			storyEnts:    []models.Entity{{Text: "Israel", Type: models.EntityLocation}},
			want:         false,
		},
		"different dominant people": {
			articleTitle: "Albanese defends budget strategy in heated exchange",
			articleEnts:  []models.Entity{{Text: "Anthony Albanese", Type: models.EntityPerson}},
			storyTitle:   "Dutton attacks budget strategy in heated exchange",
			storyEnts:    []models.Entity{{Text: "Peter Dutton", Type: models.EntityPerson}},
			want:         true,
		},
		"one side has no dominant entity": {
			articleTitle: "Markets slide on rate fears",
			articleEnts:  nil,
			storyTitle:   "Wall Street slides on rate fears",
			storyEnts:    []models.Entity{{Text: "New York", Type: models.EntityLocation}},
			want:         false,
		},
		"dominant comparison ignores case": {
			articleTitle: "GAZA aid convoy arrives",
			articleEnts:  []models.Entity{{Text: "GAZA", Type: models.EntityLocation}},
			storyTitle:   "Aid convoy reaches Gaza",
			storyEnts:    []models.Entity{{Text: "Gaza", Type: models.EntityLocation}},
			want:         false,
		},
		"location conflict wins even when people agree": {
			articleTitle: "Zelensky condemns strikes on port city",
			articleEnts: []models.Entity{
				{Text: "Russia", Type: models.EntityLocation},
				{Text: "Volodymyr Zelensky", Type: models.EntityPerson},
			},
			storyTitle: "Zelensky responds to attack on convoy",
			storyEnts: []models.Entity{
				{Text: "Israel", Type: models.EntityLocation},
				{Text: "Volodymyr Zelensky", Type: models.EntityPerson},
			},
			want: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := TopicConflict(tc.articleTitle, tc.articleEnts, tc.storyTitle, tc.storyEnts)
			assert.Equal(t, tc.want, got)
		})
	}
}
