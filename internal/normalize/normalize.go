// Package normalize turns feed HTML into Telegram-safe caption text.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Ellipsis marks truncated captions.
const Ellipsis = "…"

var bareURLRe = regexp.MustCompile(`https?://[^\s<>"]+`)

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// allowed maps source tags onto the formatting subset Telegram accepts.
var allowed = map[string]string{
	"b": "b", "strong": "b",
	"i": "i", "em": "i",
	"u": "u", "ins": "u",
	"s": "s", "strike": "s", "del": "s",
	"code": "code",
}

var skipped = map[string]bool{
	"script": true, "style": true, "iframe": true, "noscript": true,
	"head": true, "title": true, "svg": true, "template": true,
}

var blocks = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "blockquote": true, "pre": true, "ul": true, "ol": true,
	"li": true, "table": true, "tr": true, "figure": true, "figcaption": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true,
}

type segKind int

const (
	segText segKind = iota
	segOpen
	segClose
)

type segment struct {
	kind segKind
	text string // unescaped text or tag name
}

// Normalize decodes entities, strips everything but the allowed formatting
// tags, converts links to their visible text and caps the visible text at
// maxLength runes. Applying it twice yields the same string.
func Normalize(raw string, maxLength int) string {
	segs := canonical(stripURLs(tokenize(raw)))
	// Dropping empty tag pairs can join text into a new bare URL.
	for hasBareURL(segs) {
		segs = canonical(stripURLs(segs))
	}
	if maxLength > 0 {
		segs = truncate(segs, maxLength)
	}
	return render(segs)
}

// tokenize walks the markup and emits text with block breaks as newlines.
func tokenize(raw string) []segment {
	z := html.NewTokenizer(strings.NewReader(raw))
	var segs []segment
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return segs
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			segs = append(segs, segment{kind: segText, text: string(z.Text())})
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			switch {
			case tag == "br":
				segs = append(segs, segment{kind: segText, text: "\n"})
			case blocks[tag]:
				segs = append(segs, segment{kind: segText, text: "\n\n"})
			case allowed[tag] != "" && tt == html.StartTagToken:
				segs = append(segs, segment{kind: segOpen, text: allowed[tag]})
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			switch {
			case blocks[tag]:
				segs = append(segs, segment{kind: segText, text: "\n\n"})
			case allowed[tag] != "":
				segs = append(segs, segment{kind: segClose, text: allowed[tag]})
			}
		}
	}
}

func stripURLs(segs []segment) []segment {
	for i, s := range segs {
		if s.kind == segText {
			segs[i].text = bareURLRe.ReplaceAllString(s.text, " ")
		}
	}
	return segs
}

func hasBareURL(segs []segment) bool {
	for _, s := range segs {
		if s.kind == segText && bareURLRe.MatchString(s.text) {
			return true
		}
	}
	return false
}

// canonical collapses whitespace and balances tags. Opening tags are held
// back until visible text follows them, so empty pairs disappear and tags
// always hug their content.
func canonical(in []segment) []segment {
	var (
		out         []segment
		text        strings.Builder
		open        []string // emitted and still open
		pendingOpen []string // requested but not yet emitted
		started     bool
		pendSpace   bool
		pendNL      int
	)

	flushText := func() {
		if text.Len() > 0 {
			out = append(out, segment{kind: segText, text: text.String()})
			text.Reset()
		}
	}

	emitRune := func(r rune) {
		if started {
			switch {
			case pendNL > 0:
				text.WriteString(strings.Repeat("\n", min(pendNL, 2)))
			case pendSpace:
				text.WriteByte(' ')
			}
		}
		pendNL, pendSpace = 0, false
		if len(pendingOpen) > 0 {
			flushText()
			for _, tag := range pendingOpen {
				out = append(out, segment{kind: segOpen, text: tag})
				open = append(open, tag)
			}
			pendingOpen = pendingOpen[:0]
		}
		text.WriteRune(r)
		started = true
	}

	for _, s := range in {
		switch s.kind {
		case segText:
			for _, r := range s.text {
				switch {
				case r == '\n':
					pendNL++
				case unicode.IsSpace(r):
					pendSpace = true
				case unicode.IsControl(r):
				default:
					emitRune(r)
				}
			}
		case segOpen:
			pendingOpen = append(pendingOpen, s.text)
		case segClose:
			if i := lastIndex(pendingOpen, s.text); i >= 0 {
				pendingOpen = append(pendingOpen[:i], pendingOpen[i+1:]...)
				continue
			}
			i := lastIndex(open, s.text)
			if i < 0 {
				continue
			}
			flushText()
			for j := len(open) - 1; j >= i; j-- {
				out = append(out, segment{kind: segClose, text: open[j]})
			}
			open = open[:i]
		}
	}
	flushText()
	for j := len(open) - 1; j >= 0; j-- {
		out = append(out, segment{kind: segClose, text: open[j]})
	}
	return out
}

// truncate cuts visible text to maxLength runes, ellipsis included, and
// closes whatever tags were open at the cut.
func truncate(segs []segment, maxLength int) []segment {
	total := 0
	for _, s := range segs {
		if s.kind == segText {
			total += len([]rune(s.text))
		}
	}
	if total <= maxLength {
		return segs
	}

	budget := maxLength - len([]rune(Ellipsis))
	var (
		out  []segment
		open []string
	)
	for _, s := range segs {
		if budget <= 0 {
			break
		}
		switch s.kind {
		case segOpen:
			out = append(out, s)
			open = append(open, s.text)
		case segClose:
			out = append(out, s)
			if i := lastIndex(open, s.text); i >= 0 {
				open = open[:i]
			}
		case segText:
			runes := []rune(s.text)
			if len(runes) <= budget {
				out = append(out, s)
				budget -= len(runes)
				continue
			}
			out = append(out, segment{kind: segText, text: cutAtWord(runes[:budget])})
			budget = 0
		}
	}

	// Drop trailing whitespace and opening tags that lost their content.
	for len(out) > 0 {
		last := &out[len(out)-1]
		if last.kind == segText {
			last.text = strings.TrimRightFunc(last.text, unicode.IsSpace)
			if last.text == "" {
				out = out[:len(out)-1]
				continue
			}
			break
		}
		if last.kind == segOpen {
			out = out[:len(out)-1]
			open = open[:len(open)-1]
			continue
		}
		break
	}

	out = append(out, segment{kind: segText, text: Ellipsis})
	for j := len(open) - 1; j >= 0; j-- {
		out = append(out, segment{kind: segClose, text: open[j]})
	}
	return out
}

// cutAtWord prefers ending on a word boundary when one is close to the end.
func cutAtWord(runes []rune) string {
	floor := len(runes) * 4 / 5
	for i := len(runes) - 1; i >= floor && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return string(runes[:i])
		}
	}
	return string(runes)
}

func render(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		switch s.kind {
		case segText:
			b.WriteString(textEscaper.Replace(s.text))
		case segOpen:
			b.WriteString("<" + s.text + ">")
		case segClose:
			b.WriteString("</" + s.text + ">")
		}
	}
	return b.String()
}

func lastIndex(stack []string, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return i
		}
	}
	return -1
}
