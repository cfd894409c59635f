package parser

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// extractJSON pulls one value per field via its gjson path.
func (p *Parser) extractJSON(body []byte) (map[string]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json")
	}

	raw := make(map[string]string, len(p.spec.Fields))
	for _, fs := range p.spec.Fields {
		if fs.Path == "" {
			continue
		}
		res := gjson.GetBytes(body, fs.Path)
		if !res.Exists() {
			continue
		}
		raw[fs.Name] = res.String()
	}
	return raw, nil
}
