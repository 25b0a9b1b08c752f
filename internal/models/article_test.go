package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleID(t *testing.T) {
	id := ArticleID("abc-news", "https://www.abc.net.au/news/2025-06-01/story/105371234")

	assert.True(t, len(id) == len("abc-news")+1+12)
	assert.Regexp(t, `^abc-news_[0-9a-f]{12}$`, id)

	// Same URL, same id: a re-ingested entry lands on its existing row.
	again := ArticleID("abc-news", "https://www.abc.net.au/news/2025-06-01/story/105371234")
	assert.Equal(t, id, again)

	// Different URL or different source, different id.
	assert.NotEqual(t, id, ArticleID("abc-news", "https://www.abc.net.au/news/other"))
	assert.NotEqual(t, id, ArticleID("smh", "https://www.abc.net.au/news/2025-06-01/story/105371234"))
}

func TestPartitionFor(t *testing.T) {
	const n = 4

	for _, key := range []string{"2025-06-01", "2025-06-02", "world", "politics", ""} {
		p := PartitionFor(key, n)
		assert.GreaterOrEqual(t, p, int16(0))
		assert.Less(t, p, int16(n))
		assert.Equal(t, p, PartitionFor(key, n), "bucketing must be stable")
	}
}

func TestNewStoryID(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 45, 0, time.UTC)

	id := NewStoryID(now)
	assert.Regexp(t, `^story_20250601_093045_[0-9a-f-]{6}$`, id)

	// The random suffix keeps same-second stories apart.
	assert.NotEqual(t, id, NewStoryID(now))
}

func TestHasArticle(t *testing.T) {
	st := &StoryCluster{SourceArticles: []string{"smh_aaaaaaaaaaaa", "abc-news_bbbbbbbbbbbb"}}

	assert.True(t, st.HasArticle("smh_aaaaaaaaaaaa"))
	assert.False(t, st.HasArticle("smh_cccccccccccc"))
	assert.False(t, (&StoryCluster{}).HasArticle("smh_aaaaaaaaaaaa"))
}

func TestAppendEvent(t *testing.T) {
	st := &StoryCluster{}
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	st.AppendEvent(t0, "story_created")
	st.AppendEvent(t0.Add(time.Minute), "status_changed:MONITORING->DEVELOPING")

	require.Len(t, st.VersionHistory, 2)
	assert.Equal(t, "story_created", st.VersionHistory[0].Event)
	assert.True(t, st.VersionHistory[0].Timestamp.Equal(t0))
	assert.Equal(t, "status_changed:MONITORING->DEVELOPING", st.VersionHistory[1].Event)
}
