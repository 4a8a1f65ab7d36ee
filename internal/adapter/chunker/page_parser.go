package chunker

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

// ParsedPage is the cleaned content of one page export: body text with
// tables removed, each table converted to markdown, and the basenames
// of images embedded on the page.
type ParsedPage struct {
	Number int
	Text   string
	Tables []string
	Images []string
}

// PageParser extracts text, tables and image references from per-page
// HTML exports.
type PageParser struct {
	converter *md.Converter
}

func NewPageParser() *PageParser {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())
	return &PageParser{converter: converter}
}

// Parse strips chrome from the page HTML, pulls every table out as a
// markdown block and converts the remaining body to markdown text.
func (p *PageParser) Parse(content []byte, pageNum int) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %d: %w", pageNum, err)
	}

	doc.Find("title, script, style, nav, header, footer").Remove()

	page := &ParsedPage{Number: pageNum}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		page.Images = append(page.Images, path.Base(src))
	})
	doc.Find("img").Remove()

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		markdown := strings.TrimSpace(p.converter.Convert(table))
		if markdown != "" {
			page.Tables = append(page.Tables, markdown)
		}
	})
	doc.Find("table").Remove()

	page.Text = strings.TrimSpace(p.converter.Convert(doc.Selection))

	return page, nil
}
