// Package anilist queries the AniList GraphQL API for trailer metadata.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/animenews/internal/news"
)

// DefaultURL is the public AniList endpoint.
const DefaultURL = "https://graphql.anilist.co"

const mediaQuery = `
query ($search: String) {
  Media(search: $search, type: ANIME) {
    title { romaji english }
    trailer { site id }
    startDate { year month day }
    studios(isMain: true) { nodes { name } }
  }
}`

// Client looks up anime by title.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{url: url, client: &http.Client{Timeout: timeout}}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type mediaResponse struct {
	Data struct {
		Media *struct {
			Title struct {
				Romaji  string `json:"romaji"`
				English string `json:"english"`
			} `json:"title"`
			Trailer *struct {
				Site string `json:"site"`
				ID   string `json:"id"`
			} `json:"trailer"`
			StartDate struct {
				Year  *int `json:"year"`
				Month *int `json:"month"`
				Day   *int `json:"day"`
			} `json:"startDate"`
			Studios struct {
				Nodes []struct {
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"studios"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// Lookup returns the best match for title, or nil when AniList has none.
func (c *Client) Lookup(ctx context.Context, title string) (*news.TrailerInfo, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:     mediaQuery,
		Variables: map[string]any{"search": title},
	})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anilist request: %w", err)
	}
	defer resp.Body.Close()

	// AniList answers an unmatched search with 404 and a "Not Found." error.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("anilist API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 && out.Data.Media == nil {
		return nil, fmt.Errorf("anilist: %s", out.Errors[0].Message)
	}

	m := out.Data.Media
	if m == nil {
		return nil, nil
	}

	info := &news.TrailerInfo{
		Title:       coalesce(m.Title.English, m.Title.Romaji),
		ReleaseDate: formatDate(m.StartDate.Year, m.StartDate.Month, m.StartDate.Day),
		Studio:      "Unknown",
	}
	if len(m.Studios.Nodes) > 0 && m.Studios.Nodes[0].Name != "" {
		info.Studio = m.Studios.Nodes[0].Name
	}
	if m.Trailer != nil {
		info.TrailerURL = TrailerURL(m.Trailer.Site, m.Trailer.ID)
	}
	return info, nil
}

// TrailerURL builds a watch link for the trailer hosts AniList reports.
func TrailerURL(site, id string) string {
	if id == "" {
		return ""
	}
	switch strings.ToLower(site) {
	case "youtube":
		return "https://youtu.be/" + id
	case "dailymotion":
		return "https://dailymotion.com/video/" + id
	default:
		return ""
	}
}

// formatDate renders YYYY-MM-DD, shortening to what is known; no year is
// "Unknown".
func formatDate(year, month, day *int) string {
	switch {
	case year == nil || *year == 0:
		return "Unknown"
	case month == nil || *month == 0:
		return fmt.Sprintf("%04d", *year)
	case day == nil || *day == 0:
		return fmt.Sprintf("%04d-%02d", *year, *month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", *year, *month, *day)
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
