package cluster

import (
	"time"

	"github.com/arenhaus/newswire/internal/models"
)

// StatusRules holds the time windows of the status transition table.
type StatusRules struct {
	// ArchiveAge is how long a story may go without an update before it is
	// archived and stops absorbing articles.
	ArchiveAge time.Duration
	// BreakingWindow is the recency window for BREAKING promotion.
	BreakingWindow time.Duration
}

// Next applies the status transition table and returns the story's next
// status. Rules are evaluated in order and the first match wins. The story
// must carry its pre-evaluation last_updated: callers advance last_updated
// after, not before, computing the transition.
func (r StatusRules) Next(st *models.StoryCluster, newCount int, isGaining bool, now time.Time) string {
	sinceUpdate := now.Sub(st.LastUpdated)
	sinceFirst := now.Sub(st.FirstSeen)

	switch {
	case sinceUpdate > r.ArchiveAge:
		return models.StatusArchived

	case newCount >= 3 && sinceFirst < r.BreakingWindow:
		return models.StatusBreaking

	case (st.Status == models.StatusDeveloping || st.Status == models.StatusVerified) &&
		newCount >= 3 && isGaining && sinceUpdate < r.BreakingWindow:
		return models.StatusBreaking

	case st.Status == models.StatusBreaking && sinceUpdate >= r.BreakingWindow && newCount >= 3:
		return models.StatusVerified

	case st.Status == models.StatusMonitoring && newCount >= 2:
		return models.StatusDeveloping

	default:
		return st.Status
	}
}
