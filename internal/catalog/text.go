package catalog

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// plainText strips markup from a product description. Unparseable input is
// returned as-is; keyword scans still work on it.
func plainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return singleLine(html)
	}
	doc.Find("script, style, noscript").Remove()
	return singleLine(doc.Text())
}

// markdown renders a description for clients that do not want HTML. A failed
// conversion degrades to plain text.
func markdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return plainText(html)
	}
	return strings.TrimSpace(md)
}

// singleLine trims and collapses internal whitespace/newlines to single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
