package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arenhaus/newswire/internal/models"
)

func TestStatusRulesNext(t *testing.T) {
	rules := StatusRules{
		ArchiveAge:     24 * time.Hour,
		BreakingWindow: 30 * time.Minute,
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		status      string
		firstSeen   time.Duration // how long before now
		lastUpdated time.Duration
		newCount    int
		isGaining   bool
		want        string
	}{
		"archives after a day idle": {
			status:      models.StatusDeveloping,
			firstSeen:   48 * time.Hour,
			lastUpdated: 25 * time.Hour,
			newCount:    2,
			want:        models.StatusArchived,
		},
		"archive outranks the verified transition": {
			status:      models.StatusBreaking,
			firstSeen:   26 * time.Hour,
			lastUpdated: 25 * time.Hour,
			newCount:    3,
			want:        models.StatusArchived,
		},
		"exactly at archive age is not archived": {
			status:      models.StatusDeveloping,
			firstSeen:   25 * time.Hour,
			lastUpdated: 24 * time.Hour,
			newCount:    2,
			want:        models.StatusDeveloping,
		},
		"three fast sources break": {
			status:      models.StatusMonitoring,
			firstSeen:   20 * time.Minute,
			lastUpdated: 5 * time.Minute,
			newCount:    3,
			isGaining:   true,
			want:        models.StatusBreaking,
		},
		"monitoring jumps straight to breaking": {
			status:      models.StatusMonitoring,
			firstSeen:   10 * time.Minute,
			lastUpdated: 2 * time.Minute,
			newCount:    3,
			isGaining:   true,
			want:        models.StatusBreaking,
		},
		"third source at the window boundary only develops": {
			status:      models.StatusMonitoring,
			firstSeen:   30 * time.Minute,
			lastUpdated: time.Minute,
			newCount:    3,
			isGaining:   true,
			want:        models.StatusDeveloping,
		},
		"three slow sources do not break": {
			status:      models.StatusDeveloping,
			firstSeen:   2 * time.Hour,
			lastUpdated: 45 * time.Minute,
			newCount:    3,
			want:        models.StatusDeveloping,
		},
		"developing reignites while gaining": {
			status:      models.StatusDeveloping,
			firstSeen:   3 * time.Hour,
			lastUpdated: 10 * time.Minute,
			newCount:    4,
			isGaining:   true,
			want:        models.StatusBreaking,
		},
		"verified reignites while gaining": {
			status:      models.StatusVerified,
			firstSeen:   6 * time.Hour,
			lastUpdated: 20 * time.Minute,
			newCount:    5,
			isGaining:   true,
			want:        models.StatusBreaking,
		},
		"gaining outside the window stays put": {
			status:      models.StatusDeveloping,
			firstSeen:   3 * time.Hour,
			lastUpdated: 40 * time.Minute,
			newCount:    4,
			isGaining:   true,
			want:        models.StatusDeveloping,
		},
		"not gaining never reignites": {
			status:      models.StatusDeveloping,
			firstSeen:   3 * time.Hour,
			lastUpdated: 10 * time.Minute,
			newCount:    4,
			isGaining:   false,
			want:        models.StatusDeveloping,
		},
		"breaking settles to verified after a quiet half hour": {
			status:      models.StatusBreaking,
			firstSeen:   2 * time.Hour,
			lastUpdated: 35 * time.Minute,
			newCount:    3,
			want:        models.StatusVerified,
		},
		"thin breaking story never verifies": {
			status:      models.StatusBreaking,
			firstSeen:   2 * time.Hour,
			lastUpdated: 35 * time.Minute,
			newCount:    2,
			want:        models.StatusBreaking,
		},
		"second source develops": {
			status:      models.StatusMonitoring,
			firstSeen:   2 * time.Hour,
			lastUpdated: time.Hour,
			newCount:    2,
			isGaining:   true,
			want:        models.StatusDeveloping,
		},
		"single source keeps monitoring": {
			status:      models.StatusMonitoring,
			firstSeen:   time.Hour,
			lastUpdated: time.Hour,
			newCount:    1,
			want:        models.StatusMonitoring,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			st := &models.StoryCluster{
				Status:      tc.status,
				FirstSeen:   now.Add(-tc.firstSeen),
				LastUpdated: now.Add(-tc.lastUpdated),
			}
			assert.Equal(t, tc.want, rules.Next(st, tc.newCount, tc.isGaining, now))
		})
	}
}
