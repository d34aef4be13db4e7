package crawler

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"golang.org/x/net/html"
)

// UndetectedLanguage marks pages whose language could not be detected.
// It is longer than any eligible language code, so such pages are never clustered.
const UndetectedLanguage = "undetected"

// hiddenElements never contribute visible text
var hiddenElements = map[string]bool{
	"style":    true,
	"script":   true,
	"noscript": true,
	"head":     true,
	"title":    true,
	"meta":     true,
	"template": true,
}

// Page is the content extracted from one document
type Page struct {
	Title string
	Text  string
	Links []string
}

// ExtractPage reads the title, main text and outbound links of a document.
// The text comes from every <main> element, or from <body> without its
// header and footer when the page has none.
func ExtractPage(doc *goquery.Selection, domain string, maxTextBytes int) Page {
	page := Page{
		Title: collapseSpaces(doc.Find("title").First().Text()),
	}

	if mains := doc.Find("main"); mains.Length() > 0 {
		parts := make([]string, 0, mains.Length())
		mains.Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, visibleText(s.Nodes))
		})
		page.Text = collapseSpaces(strings.Join(parts, " "))
	} else if body := doc.Find("body").First(); body.Length() > 0 {
		body = body.Clone()
		body.Find("header, footer").Remove()
		page.Text = visibleText(body.Nodes)
	}
	page.Text = truncate(page.Text, maxTextBytes)

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		hrefs = append(hrefs, s.AttrOr("href", ""))
	})
	page.Links = FilterLinks(domain, hrefs)

	return page
}

// visibleText joins the text nodes under nodes that a browser would render
func visibleText(nodes []*html.Node) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.ElementNode:
			if hiddenElements[n.Data] {
				return
			}
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return collapseSpaces(strings.Join(parts, " "))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// DetectLanguage returns the ISO 639-1 code of text, or UndetectedLanguage
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return UndetectedLanguage
	}
	info := whatlanggo.Detect(text)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return UndetectedLanguage
}
