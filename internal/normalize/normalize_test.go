package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"empty", "", 0, ""},
		{"plain text", "plain text", 0, "plain text"},
		{"entities decoded and re-escaped", "Tom &amp; Jerry &lt;3", 0, "Tom &amp; Jerry &lt;3"},
		{"nbsp collapses", "a&nbsp;&nbsp; b", 0, "a b"},
		{"url split by empty tag", "read http<i></i>://example.com/x now", 0, "read now"},
		{"paragraphs", "<p>one</p><p>two</p>", 0, "one\n\ntwo"},
		{"line break", "one<br/>two", 0, "one\ntwo"},
		{"allowed subset kept", "<strong>bold</strong> and <em>it</em>", 0, "<b>bold</b> and <i>it</i>"},
		{"unknown tags dropped", `<div class="x"><span>hi</span></div>`, 0, "hi"},
		{"anchor becomes its text", `Read <a href="https://t.co/x?utm=1">the post</a> now`, 0, "Read the post now"},
		{"bare url removed", "Source: https://example.com/track?id=1 today", 0, "Source: today"},
		{"url anchor text removed", `<a href="https://x.com">https://x.com/abc</a> end`, 0, "end"},
		{"script dropped", "<script>alert(1)</script>safe", 0, "safe"},
		{"iframe dropped", `<iframe src="https://youtube.com/embed/x"></iframe>clip`, 0, "clip"},
		{"unbalanced open closed", "<b>bold", 0, "<b>bold</b>"},
		{"stray close ignored", "text</i>", 0, "text"},
		{"empty pair removed", "a <b></b> b", 0, "a b"},
		{"whitespace hugs tags", "foo <b> bar </b> baz", 0, "foo <b>bar</b> baz"},
		{"crossed tags rebalanced", "<b><i>x</b>y</i>", 0, "<b><i>x</i></b>y"},
		{"three newlines collapse", "a\n\n\n\nb", 0, "a\n\nb"},
		{"truncated", "abcdefghij", 5, "abcd…"},
		{"truncated at word", "hello world again", 13, "hello world…"},
		{"truncation closes tags", "<b>abcdefgh</b>", 5, "<b>abcd…</b>"},
		{"short enough", "abc", 5, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.in, tt.max))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"  leading and trailing  ",
		"<p>Hello <b>world</b></p><p>Second &amp; third</p>",
		`<div><a href="https://example.com">link text</a> <img src="/x.jpg"> tail</div>`,
		"<b><i>nested</b> mismatch</i> &lt;tag&gt;",
		"a <b> </b> b <i></i>",
		"x\r\n\r\n\r\ny\tz",
		"<ul><li>one</li><li>two</li></ul>",
		"AT&T &quot;quoted&quot; it's",
		strings.Repeat("word ", 200),
		"<b>" + strings.Repeat("long bold ", 50) + "</b> after",
		"Visit https://example.com/a?b=c or <a href='x'>https://t.co/y</a>.",
		"http<i></i>://example.com/x",
		"see http<b></b>s:<i> </i>//a.example and http<u></u>://b.example/<b></b>c",
	}

	for _, max := range []int{0, 1, 10, 64, 300} {
		for _, in := range inputs {
			once := Normalize(in, max)
			twice := Normalize(once, max)
			require.Equal(t, once, twice, "input %q max %d", in, max)
			if max > 0 {
				require.LessOrEqual(t, VisibleLength(once), max)
			}
		}
	}
}

func TestCaption(t *testing.T) {
	got := Caption("Frieren &amp; Friends <2>", "<p>Season <em>two</em> confirmed.</p>", "", 0)
	require.Equal(t, "<b>Frieren &amp; Friends &lt;2&gt;</b>\n\nSeason <i>two</i> confirmed.", got)

	require.Equal(t, "<b>Title only</b>", Caption("Title only", "  ", "", 0))

	withSource := Caption("Title", "Body", "Anime News Network", 0)
	require.Equal(t, "<b>Title</b>\n\nBody\n\n<i>Source: Anime News Network</i>", withSource)
	require.Equal(t, withSource, Normalize(withSource, 0))

	long := Caption("T", strings.Repeat("abc ", 100), "", 40)
	require.LessOrEqual(t, VisibleLength(long), 40)
	require.True(t, strings.HasSuffix(long, Ellipsis))

	longWithSource := Caption("T", strings.Repeat("abc ", 100), "MAL", 60)
	require.LessOrEqual(t, VisibleLength(longWithSource), 60)
	require.True(t, strings.HasSuffix(longWithSource, "<i>Source: MAL</i>"))
	require.Contains(t, longWithSource, Ellipsis)
}
