package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arenhaus/newswire/internal/models"
)

func TestFingerprintConvergesAcrossWording(t *testing.T) {
	// Two outlets, same event, different reporting verb. The verb and the
	// short tokens drop out, so both titles land on the same triple.
	gaza := []models.Entity{{Text: "Gaza", Type: models.EntityLocation}}

	ap := Fingerprint("Gaza ceasefire begins", gaza)
	reuters := Fingerprint("Gaza ceasefire starts", gaza)

	assert.Equal(t, "ceasefire_gaza", ap)
	assert.Equal(t, ap, reuters)
}

func TestFingerprintDropsNewsVerbsAndShortTokens(t *testing.T) {
	fp := Fingerprint("Minister announces sweeping reform plan", nil)

	assert.NotContains(t, fp, "announces")
	// "plan" has four runes and must not survive.
	for _, tok := range strings.Split(fp, "_") {
		assert.Greater(t, len(tok), 4, "token %q too short", tok)
	}
}

func TestFingerprintMergesEntities(t *testing.T) {
	ents := []models.Entity{
		{Text: "Reserve Bank", Type: models.EntityOrg},
		{Text: "rate decision", Type: models.EntityOther}, // not merged
	}
	fp := Fingerprint("Rates on hold again", ents)

	// Multi-word entity joined with an underscore, lowercased.
	assert.Contains(t, fp, "reserve_bank")
	assert.NotContains(t, fp, "decision")
}

func TestFingerprintSortedAndCapped(t *testing.T) {
	fp := Fingerprint("Global markets tumble after surprise announcement", nil)

	assert.Equal(t, "announcement_global_markets", fp)
}

func TestFingerprintEmptyTitle(t *testing.T) {
	assert.Equal(t, "", Fingerprint("", nil))
}

func TestFingerprintDeterministic(t *testing.T) {
	ents := []models.Entity{
		{Text: "Ukraine", Type: models.EntityLocation},
		{Text: "NATO", Type: models.EntityOrg},
	}
	first := Fingerprint("Ukraine presses NATO over air defences", ents)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Fingerprint("Ukraine presses NATO over air defences", ents))
	}
}
