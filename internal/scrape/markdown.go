package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplateSelectors are removed before text conversion: they carry page
// chrome, not listing data.
const boilerplateSelectors = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form"

// TextFromHTML converts a rendered document to a text representation suitable
// for extraction: boilerplate stripped, link targets preserved inline in
// markdown form, whitespace collapsed.
func TextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("scrape: parse html: %w", err)
	}

	doc.Find(boilerplateSelectors).Remove()

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if text == "" || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		sel.ReplaceWithHtml(fmt.Sprintf(" [%s](%s) ", text, href))
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	text := collapseWhitespace(body.Text())
	if text == "" {
		return "", fmt.Errorf("scrape: document has no text content")
	}
	return text, nil
}

// collapseWhitespace trims each line and squeezes runs of blank lines down to
// a single separator.
func collapseWhitespace(text string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
