package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// strippedSelectors are removed entirely before text extraction.
const strippedSelectors = "script, style, noscript, template, svg, nav, footer, header"

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "hr": true, "li": true, "main": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

// HTMLToText reduces an HTML document to plain text: page chrome and scripts are
// dropped, block elements become line breaks, entities are decoded and
// whitespace is collapsed.
func HTMLToText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return collapseLines(rawHTML)
	}
	doc.Find(strippedSelectors).Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeNodeText(&b, n)
	}
	return collapseLines(b.String())
}

func writeNodeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}

	block := n.Type == html.ElementNode && blockTags[n.Data]
	cell := n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th")
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	} else if cell {
		b.WriteByte(' ')
	}
}

// ReducePage turns a fetched body into extractor-ready text, enforcing the
// PDF and minimum-length gates.
func ReducePage(contentType string, body []byte) (string, error) {
	if isPDF(contentType) {
		return "", ErrPDFContent
	}
	text := TruncateText(HTMLToText(string(body)), MaxPageTextChars)
	if n := utf8.RuneCountInString(text); n < MinPageTextLength {
		return "", fmt.Errorf("%w: %d chars", ErrTooShort, n)
	}
	return text, nil
}

func isPDF(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}
