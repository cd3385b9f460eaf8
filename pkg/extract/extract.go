// Package extract pulls candidate links out of HTML documents.
package extract

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// Links returns the href attribute values of all anchor elements in the
// document, in document order. No filtering or resolution happens here;
// scope and dedupe checks belong to the caller.
func Links(body io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var hrefs []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	return hrefs, nil
}
