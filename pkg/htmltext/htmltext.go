// Package htmltext turns chapter XHTML into plain text.
package htmltext

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// Chapter is the readable content of one XHTML document.
type Chapter struct {
	Heading    string
	Paragraphs []string
}

func (c Chapter) Text() string {
	return strings.Join(c.Paragraphs, "\n")
}

const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, dt, dd"

// Extract reads the body of an XHTML chapter. Scripts and styles are
// dropped, every block element becomes one paragraph. Documents without
// block elements fall back to the whole body text.
func Extract(data []byte) (Chapter, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Chapter{}, errors.Wrap(err, "failed to parse chapter")
	}
	title := normalize(doc.Find("title").First().Text())
	doc.Find("script, style, head").Remove()

	var ch Chapter
	ch.Heading = normalize(doc.Find("h1, h2, h3").First().Text())
	if ch.Heading == "" {
		ch.Heading = title
	}
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// nested blocks are emitted by their innermost element
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		if text := normalize(sel.Text()); text != "" {
			ch.Paragraphs = append(ch.Paragraphs, text)
		}
	})
	if len(ch.Paragraphs) == 0 {
		if text := normalize(doc.Find("body").Text()); text != "" {
			ch.Paragraphs = []string{text}
		}
	}
	return ch, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
