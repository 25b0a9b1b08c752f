package summarize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenhaus/newswire/internal/models"
)

type patch struct {
	summary     string
	sourceCount int
}

type fakeStories struct {
	batch    []models.StoryCluster
	patches  map[string]patch
	patchErr error
}

func newFakeStories(batch ...models.StoryCluster) *fakeStories {
	return &fakeStories{batch: batch, patches: map[string]patch{}}
}

func (f *fakeStories) Changes(ctx context.Context, partition int16, afterSeq int64, limit int) ([]models.StoryCluster, error) {
	var out []models.StoryCluster
	for _, st := range f.batch {
		if st.Seq > afterSeq {
			out = append(out, st)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStories) PatchSummary(ctx context.Context, id, summary string, sourceCount int, now time.Time) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches[id] = patch{summary: summary, sourceCount: sourceCount}
	return nil
}

type fakeArticles struct {
	byID map[string]models.Article
}

func (f *fakeArticles) ByID(ctx context.Context, ids []string) ([]models.Article, error) {
	out := []models.Article{}
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeLLM struct {
	out     string
	err     error
	digests []string
}

func (f *fakeLLM) Summarize(ctx context.Context, digest string) (string, error) {
	f.digests = append(f.digests, digest)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func story(id, status, summary string, summarySources, uniqueSources int, seq int64) models.StoryCluster {
	return models.StoryCluster{
		ID:                 id,
		Title:              "Ceasefire holds into a second day",
		Status:             status,
		Summary:            summary,
		SummarySourceCount: summarySources,
		UniqueSourceCount:  uniqueSources,
		SourceArticles:     []string{"bbc-world_aaaaaaaaaaaa", "al-jazeera_bbbbbbbbbbbb"},
		Seq:                seq,
	}
}

func testArticles() *fakeArticles {
	return &fakeArticles{byID: map[string]models.Article{
		"bbc-world_aaaaaaaaaaaa": {
			ID: "bbc-world_aaaaaaaaaaaa", Source: "bbc-world",
			Title:       "Gaza ceasefire holds as aid convoys enter",
			Description: "Aid trucks crossed at dawn as the truce entered a second day.",
		},
		"al-jazeera_bbbbbbbbbbbb": {
			ID: "al-jazeera_bbbbbbbbbbbb", Source: "al-jazeera",
			Title: "Second day of Gaza truce begins",
		},
	}}
}

func TestNeedsSummary(t *testing.T) {
	tests := map[string]struct {
		st   models.StoryCluster
		want bool
	}{
		"fresh developing story":   {story("s", models.StatusDeveloping, "", 0, 2, 1), true},
		"coverage outgrew summary": {story("s", models.StatusBreaking, "old", 2, 3, 1), true},
		"summary is current":       {story("s", models.StatusVerified, "ok", 3, 3, 1), false},
		"monitoring is invisible":  {story("s", models.StatusMonitoring, "", 0, 1, 1), false},
		"archived is frozen":       {story("s", models.StatusArchived, "old", 2, 5, 1), false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, needsSummary(&tc.st))
		})
	}
}

func TestHandleChangesSummarizes(t *testing.T) {
	stories := newFakeStories(
		story("story_a", models.StatusDeveloping, "", 0, 2, 1),
		story("story_b", models.StatusVerified, "current", 2, 2, 2), // up to date
	)
	llm := &fakeLLM{out: "A two-day ceasefire is holding while aid enters."}
	w := NewWorker(stories, testArticles(), llm, time.Second)

	last, n, err := w.HandleChanges(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)
	assert.Equal(t, 2, n)

	require.Contains(t, stories.patches, "story_a")
	got := stories.patches["story_a"]
	assert.Equal(t, llm.out, got.summary)
	assert.Equal(t, 2, got.sourceCount, "patch records how much coverage the summary saw")
	assert.NotContains(t, stories.patches, "story_b", "a current summary is left alone")

	// The digest hands the model display names and descriptions.
	require.Len(t, llm.digests, 1)
	digest := llm.digests[0]
	assert.Contains(t, digest, "Story: Ceasefire holds into a second day")
	assert.Contains(t, digest, "[BBC News] Gaza ceasefire holds as aid convoys enter")
	assert.Contains(t, digest, "Aid trucks crossed at dawn")
	assert.Contains(t, digest, "[Al Jazeera] Second day of Gaza truce begins")
}

func TestHandleChangesAbsorbsGenerationFailure(t *testing.T) {
	stories := newFakeStories(story("story_a", models.StatusDeveloping, "", 0, 2, 1))
	llm := &fakeLLM{err: errors.New("model offline")}
	w := NewWorker(stories, testArticles(), llm, time.Second)

	last, n, err := w.HandleChanges(context.Background(), 0, 0)
	require.NoError(t, err, "a generation failure must not wedge the partition")
	assert.Equal(t, int64(1), last)
	assert.Equal(t, 1, n)
	assert.Empty(t, stories.patches)
}

func TestHandleChangesStoreFailureStopsAtPrefix(t *testing.T) {
	stories := newFakeStories(
		story("story_a", models.StatusVerified, "current", 2, 2, 1), // skipped, counts toward prefix
		story("story_b", models.StatusDeveloping, "", 0, 2, 2),
	)
	stories.patchErr = errors.New("write timeout")
	w := NewWorker(stories, testArticles(), &fakeLLM{out: "summary"}, time.Second)

	last, n, err := w.HandleChanges(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Equal(t, int64(1), last, "the completed prefix is still reported")
	assert.Equal(t, 1, n)
}

func TestHandleChangesSkipsStoriesWithoutArticles(t *testing.T) {
	st := story("story_a", models.StatusDeveloping, "", 0, 2, 1)
	st.SourceArticles = []string{"gone_aaaaaaaaaaaa"}
	stories := newFakeStories(st)
	llm := &fakeLLM{out: "unused"}
	w := NewWorker(stories, &fakeArticles{byID: map[string]models.Article{}}, llm, time.Second)

	last, n, err := w.HandleChanges(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)
	assert.Equal(t, 1, n)
	assert.Empty(t, llm.digests, "no coverage, no LLM call")
	assert.Empty(t, stories.patches)
}

func TestBuildDigestClipsLongDescriptions(t *testing.T) {
	long := make([]rune, 0, 400)
	for i := 0; i < 400; i++ {
		long = append(long, 'a')
	}
	arts := testArticles()
	a := arts.byID["bbc-world_aaaaaaaaaaaa"]
	a.Description = string(long)
	arts.byID["bbc-world_aaaaaaaaaaaa"] = a

	st := story("story_a", models.StatusDeveloping, "", 0, 2, 1)
	w := NewWorker(newFakeStories(), arts, &fakeLLM{}, time.Second)

	digest, err := w.buildDigest(context.Background(), &st)
	require.NoError(t, err)
	assert.Contains(t, digest, string(long[:300])+"...")
	assert.NotContains(t, digest, string(long[:301]))
}
