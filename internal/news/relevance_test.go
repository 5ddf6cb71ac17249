package news

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter_Decide(t *testing.T) {
	f := NewFilter(DefaultAllowKeywords, DefaultDenyKeywords, nil)

	tests := []struct {
		name    string
		item    RawItem
		want    bool
		keyword string
	}{
		{
			name:    "allow keyword in title",
			item:    RawItem{Title: "Frieren Season 2 Announced"},
			want:    true,
			keyword: "season",
		},
		{
			name:    "allow keyword in summary, case insensitive",
			item:    RawItem{Title: "Big news", SummaryOrBody: "A new ANIME adaptation"},
			want:    true,
			keyword: "anime",
		},
		{
			name:    "deny wins over allow",
			item:    RawItem{Title: "One Piece Live-Action Season 2 Trailer"},
			want:    false,
			keyword: "live-action",
		},
		{
			name: "nothing matches",
			item: RawItem{Title: "Company quarterly earnings report"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Decide(tt.item)
			require.Equal(t, tt.want, d.Relevant)
			require.Equal(t, tt.keyword, d.Keyword)
			require.NotEmpty(t, d.Reason)
		})
	}
}

func TestFilter_OverrideBypassesKeywords(t *testing.T) {
	f := NewFilter(DefaultAllowKeywords, DefaultDenyKeywords, []Override{
		{Name: "crunchyroll", URLContains: "crunchyrollsvc.com"},
	})

	item := RawItem{
		Title:     "Live action quiz night",
		SourceKey: "https://cr-news-api-service.prd.crunchyrollsvc.com/v1/en-US/rss",
	}
	d := f.Decide(item)
	require.True(t, d.Relevant)
	require.Contains(t, d.Reason, "crunchyroll")

	other := RawItem{Title: "Live action quiz night", SourceKey: "https://example.com/rss"}
	require.False(t, f.IsRelevant(other))
}

func TestFilter_Deterministic(t *testing.T) {
	f := NewFilter([]string{" Trailer ", ""}, []string{"live-action"}, nil)
	item := RawItem{Title: "New Anime Trailer Revealed"}

	first := f.Decide(item)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, f.Decide(item))
	}
	require.True(t, first.Relevant)
	require.Equal(t, "trailer", first.Keyword)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	require.Equal(t, StrategyFeed, s)

	s, err = ParseStrategy("RSS")
	require.NoError(t, err)
	require.Equal(t, StrategyFeed, s)

	s, err = ParseStrategy("myanimelist")
	require.NoError(t, err)
	require.Equal(t, StrategyMyAnimeList, s)

	_, err = ParseStrategy("selenium")
	require.Error(t, err)
}

func TestPublishResult(t *testing.T) {
	require.True(t, Published(KindText).OK())
	require.Equal(t, "published(text)", Published(KindText).String())

	var zero PublishResult
	require.False(t, zero.OK())
}
