package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// extractMarkup pulls one value per field via its CSS selector.
func (p *Parser) extractMarkup(body []byte) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := make(map[string]string, len(p.spec.Fields))
	for _, fs := range p.spec.Fields {
		if fs.Selector == "" {
			continue
		}
		sel := doc.Find(fs.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		raw[fs.Name] = sel.Text()
	}
	return raw, nil
}
