package normalize

import (
	"html"
	"strings"
)

// Caption builds the news caption: bold title, body, then an italic source
// line. The body is cut so the whole caption fits maxLength visible runes.
func Caption(title, body, source string, maxLength int) string {
	title = strings.TrimSpace(html.UnescapeString(title))
	source = strings.TrimSpace(source)

	var b strings.Builder
	if title != "" {
		b.WriteString("<b>")
		b.WriteString(Escape(title))
		b.WriteString("</b>")
	}
	if strings.TrimSpace(body) != "" {
		b.WriteString("<br><br>")
		b.WriteString(body)
	}

	if source == "" {
		return Normalize(b.String(), maxLength)
	}

	footer := Normalize("<i>Source: "+Escape(source)+"</i>", 0)
	budget := maxLength
	if maxLength > 0 {
		// two runes for the blank line between head and footer
		budget = max(maxLength-VisibleLength(footer)-2, 1)
	}
	head := Normalize(b.String(), budget)
	if head == "" {
		return footer
	}
	return head + "\n\n" + footer
}

// Escape makes plain text safe inside Telegram HTML.
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// VisibleLength counts the runes a reader sees in normalized text.
func VisibleLength(s string) int {
	n := 0
	for _, seg := range tokenize(s) {
		if seg.kind == segText {
			n += len([]rune(seg.text))
		}
	}
	return n
}
