package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ArticleContent is the readable part of an article page.
type ArticleContent struct {
	Title   string
	Content string // HTML
	URL     string
}

// ExtractArticle pulls the article body out of a page. Readability runs
// first; a selector-based paragraph scan is the fallback.
func ExtractArticle(data []byte, pageURL string) (*ArticleContent, error) {
	if len(data) == 0 {
		return nil, errors.New("HTML data is empty")
	}

	var base *nurl.URL
	if u, err := nurl.Parse(pageURL); err == nil {
		base = u
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return &ArticleContent{
			Title:   strings.TrimSpace(article.Title),
			Content: article.Content,
			URL:     pageURL,
		}, nil
	}

	doc, derr := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if derr != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", derr)
	}

	content := extractGenericContent(doc)
	if content == "" {
		if err != nil {
			return nil, fmt.Errorf("can't get content: %w", err)
		}
		return nil, errors.New("can't get content")
	}

	return &ArticleContent{
		Title:   extractTitle(doc),
		Content: content,
		URL:     pageURL,
	}, nil
}

// extractGenericContent collects paragraphs from the most common article
// containers and returns them as <p> markup.
func extractGenericContent(doc *goquery.Document) string {
	var best []string

	selectors := []string{
		"div.news-content p",
		"div.content p",
		"article p",
		".article p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	for _, selector := range selectors {
		var paragraphs []string
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, "<p>"+html.EscapeString(text)+"</p>")
			}
		})
		if len(paragraphs) > len(best) {
			best = paragraphs
		}
		if len(best) >= 3 { // enough for a caption
			break
		}
	}

	return strings.Join(best, "")
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"h1",
		"meta[property='og:title']",
		"title",
	}

	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = strings.TrimSpace(sel.AttrOr("content", ""))
		}
		if title != "" {
			return title
		}
	}

	return ""
}
