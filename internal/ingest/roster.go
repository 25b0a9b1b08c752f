package ingest

// Feed is one entry of the static polling roster.
type Feed struct {
	Slug string
	Name string
	URL  string
}

// Roster is the static feed table. Slugs are storage keys and must never
// change once articles reference them; display names are free to.
var Roster = []Feed{
	{Slug: "abc-news", Name: "ABC News", URL: "https://www.abc.net.au/news/feed/51120/rss.xml"},
	{Slug: "smh", Name: "Sydney Morning Herald", URL: "https://www.smh.com.au/rss/feed.xml"},
	{Slug: "the-age", Name: "The Age", URL: "https://www.theage.com.au/rss/feed.xml"},
	{Slug: "guardian-au", Name: "Guardian Australia", URL: "https://www.theguardian.com/au/rss"},
	{Slug: "news-com-au", Name: "news.com.au", URL: "https://www.news.com.au/content-feeds/latest-news-national/"},
	{Slug: "nine-news", Name: "9News", URL: "https://www.9news.com.au/rss"},
	{Slug: "sbs-news", Name: "SBS News", URL: "https://www.sbs.com.au/news/topic/latest/feed"},
	{Slug: "sky-news-au", Name: "Sky News Australia", URL: "https://www.skynews.com.au/content-feeds/latest-news.xml"},
	{Slug: "canberra-times", Name: "The Canberra Times", URL: "https://www.canberratimes.com.au/rss.xml"},
	{Slug: "crikey", Name: "Crikey", URL: "https://www.crikey.com.au/feed/"},
	{Slug: "the-conversation", Name: "The Conversation", URL: "https://theconversation.com/au/articles.atom"},
	{Slug: "bbc-world", Name: "BBC News", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
	{Slug: "bbc-sport", Name: "BBC Sport", URL: "https://feeds.bbci.co.uk/sport/rss.xml"},
	{Slug: "cnn-world", Name: "CNN", URL: "http://rss.cnn.com/rss/edition_world.rss"},
	{Slug: "al-jazeera", Name: "Al Jazeera", URL: "https://www.aljazeera.com/xml/rss/all.xml"},
	{Slug: "nyt-world", Name: "The New York Times", URL: "https://rss.nytimes.com/services/xml/rss/nyt/World.xml"},
	{Slug: "washington-post", Name: "The Washington Post", URL: "https://feeds.washingtonpost.com/rss/world"},
	{Slug: "cnbc", Name: "CNBC", URL: "https://www.cnbc.com/id/100003114/device/rss/rss.html"},
	{Slug: "techcrunch", Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
	{Slug: "ars-technica", Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index"},
	{Slug: "the-verge", Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
	{Slug: "wired", Name: "Wired", URL: "https://www.wired.com/feed/rss"},
	{Slug: "espn", Name: "ESPN", URL: "https://www.espn.com/espn/rss/news"},
	{Slug: "science-daily", Name: "ScienceDaily", URL: "https://www.sciencedaily.com/rss/all.xml"},
	{Slug: "nature", Name: "Nature", URL: "https://www.nature.com/nature.rss"},
	{Slug: "medical-xpress", Name: "Medical Xpress", URL: "https://medicalxpress.com/rss-feed/"},
	{Slug: "variety", Name: "Variety", URL: "https://variety.com/feed/"},
}

// FeedBySlug looks a roster entry up by its slug.
func FeedBySlug(slug string) (Feed, bool) {
	for _, f := range Roster {
		if f.Slug == slug {
			return f, true
		}
	}
	return Feed{}, false
}

// SourceName returns the display name for a source slug, falling back to
// the slug for sources that have left the roster.
func SourceName(slug string) string {
	if f, ok := FeedBySlug(slug); ok {
		return f.Name
	}
	return slug
}
