package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, body string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc.Selection
}

func TestExtractPage_MainElements(t *testing.T) {
	doc := parse(t, `<html><head><title>
		Alpha   Site </title><style>.x{}</style></head>
		<body>
			<header>Menu</header>
			<main><h1>Hello</h1><p>world <b>wide</b></p><script>var x = 1;</script></main>
			<aside>ignored because main exists</aside>
			<main><!-- comment --><p>second main</p></main>
			<a href="https://beta.test/page">Beta</a>
			<a href="https://alpha.test/self">Self</a>
			<a href="/relative">Relative</a>
		</body></html>`)

	page := ExtractPage(doc, "alpha.test", 0)
	assert.Equal(t, "Alpha Site", page.Title)
	assert.Equal(t, "Hello world wide second main", page.Text)
	assert.Equal(t, []string{"https://beta.test/page"}, page.Links)
}

func TestExtractPage_BodyWithoutHeaderAndFooter(t *testing.T) {
	doc := parse(t, `<html><body>
		<header>Top navigation</header>
		<div>First<span>block</span></div>
		<noscript>enable javascript</noscript>
		<p>Second block</p>
		<footer>Copyright</footer>
	</body></html>`)

	page := ExtractPage(doc, "example.com", 0)
	assert.Equal(t, "First block Second block", page.Text)
	assert.Empty(t, page.Title)
	assert.Empty(t, page.Links)

	// the source document is left untouched
	assert.Equal(t, 1, doc.Find("header").Length())
}

func TestExtractPage_TruncatesText(t *testing.T) {
	doc := parse(t, `<html><body><p>añadir más texto</p></body></html>`)

	page := ExtractPage(doc, "example.es", 3)
	assert.Equal(t, "añ", page.Text)
}

func TestDetectLanguage(t *testing.T) {
	english := "The committee published its annual report on Tuesday, describing how the " +
		"new policy would change the way people travel to work and school in the city."
	assert.Equal(t, "en", DetectLanguage(english))
	assert.Equal(t, UndetectedLanguage, DetectLanguage("   "))
	assert.Greater(t, len(UndetectedLanguage), 8)
}
