package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenhaus/newswire/internal/models"
)

func entityByText(ents []models.Entity, text string) (models.Entity, bool) {
	for _, e := range ents {
		if e.Text == text {
			return e, true
		}
	}
	return models.Entity{}, false
}

func TestExtractEntities(t *testing.T) {
	tests := map[string]struct {
		text     string
		wantText string
		wantType string
	}{
		"location": {
			"Gaza ceasefire begins as aid trucks roll in",
			"Gaza", models.EntityLocation,
		},
		"known organisation": {
			"Reserve Bank holds rates steady for a third month",
			"Reserve Bank", models.EntityOrg,
		},
		"org by keyword": {
			"Qantas Group posts a surprise loss",
			"Qantas Group", models.EntityOrg,
		},
		"person behind honorific": {
			"President Volodymyr Zelensky visits troops on the front",
			"Volodymyr Zelensky", models.EntityPerson,
		},
		"bare name bigram": {
			"Swimmers cheer as Ariarne Titmus smashes the record",
			"Ariarne Titmus", models.EntityPerson,
		},
		"event keyword": {
			"World Cup final draws a record crowd",
			"World Cup", models.EntityEvent,
		},
		"unclassified single word": {
			"Bitcoin surges past another record",
			"Bitcoin", models.EntityOther,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ents := ExtractEntities(tc.text)
			e, ok := entityByText(ents, tc.wantText)
			require.True(t, ok, "entity %q not extracted from %q (got %v)", tc.wantText, tc.text, ents)
			assert.Equal(t, tc.wantType, e.Type)
		})
	}
}

func TestExtractEntitiesDeterministic(t *testing.T) {
	text := "President Volodymyr Zelensky meets NATO chiefs in Washington"
	first := ExtractEntities(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ExtractEntities(text))
	}
}

func TestExtractEntitiesFrequencyOrder(t *testing.T) {
	// Ukraine appears twice, NATO once; the repeat must rank first.
	ents := ExtractEntities("Ukraine urges NATO action as Ukraine holds the line")
	require.NotEmpty(t, ents)
	assert.Equal(t, "Ukraine", ents[0].Text)
	assert.Equal(t, models.EntityLocation, ents[0].Type)
}

func TestExtractEntitiesSkipsSentenceStarters(t *testing.T) {
	ents := ExtractEntities("The Kremlin denies involvement")
	e, ok := entityByText(ents, "Kremlin")
	require.True(t, ok, "got %v", ents)
	assert.Equal(t, models.EntityOrg, e.Type)

	_, ok = entityByText(ents, "The Kremlin")
	assert.False(t, ok, "sentence starter must not leak into the entity text")
}

func TestDominant(t *testing.T) {
	ents := []models.Entity{
		{Text: "Ukraine", Type: models.EntityLocation},
		{Text: "NATO", Type: models.EntityOrg},
		{Text: "Russia", Type: models.EntityLocation},
	}

	assert.Equal(t, "Ukraine", Dominant(ents, models.EntityLocation))
	assert.Equal(t, "NATO", Dominant(ents, models.EntityOrg))
	assert.Equal(t, "", Dominant(ents, models.EntityPerson))
	assert.Equal(t, "", Dominant(nil, models.EntityLocation))
}
