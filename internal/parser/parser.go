// Package parser turns one strategy's raw payload into zero-or-one ordered
// field sets. Three payload shapes are supported: delimited key-value text
// extracted by an anchored rule, HTML markup addressed by CSS selectors,
// and serialized JSON addressed by paths.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/config"
	"MarketPull/pkg/util"
)

// Parser extracts and normalizes fields for one source. Construction
// precompiles the anchor rule; a Parser is immutable and safe for
// concurrent use.
type Parser struct {
	spec   *config.SourceSpec
	anchor *regexp.Regexp
	delim  string
}

// New builds a parser for a source spec.
func New(spec *config.SourceSpec) (*Parser, error) {
	p := &Parser{spec: spec, delim: spec.Parse.Delimiter}
	if p.delim == "" {
		p.delim = ","
	}
	if spec.Parse.Format == "delimited" {
		re, err := regexp.Compile(spec.Parse.Anchor)
		if err != nil {
			return nil, fmt.Errorf("source %s: anchor: %w", spec.ID, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("source %s: anchor needs a capture group", spec.ID)
		}
		p.anchor = re
	}
	return p, nil
}

// Parse extracts the source's fields from a payload. A nil result with a
// *models.ParseError means the payload yielded nothing usable; partial
// records are never returned.
func (p *Parser) Parse(payload *models.RawPayload) (*models.RawFields, error) {
	if payload == nil || len(payload.Body) == 0 {
		return nil, &models.ParseError{Strategy: strategyOf(payload), Reason: "empty payload"}
	}

	var (
		raw map[string]string
		err error
	)
	switch p.spec.Parse.Format {
	case "delimited":
		raw, err = p.extractDelimited(payload.Body)
	case "markup":
		raw, err = p.extractMarkup(payload.Body)
	case "jsonpath":
		raw, err = p.extractJSON(payload.Body)
	default:
		err = fmt.Errorf("unknown format %q", p.spec.Parse.Format)
	}
	if err != nil {
		return nil, &models.ParseError{Strategy: payload.Strategy, Reason: err.Error()}
	}

	return p.normalize(payload.Strategy, raw)
}

// normalize converts extracted strings into typed fields, in spec order.
func (p *Parser) normalize(strategy string, raw map[string]string) (*models.RawFields, error) {
	out := &models.RawFields{Fields: make([]models.Field, 0, len(p.spec.Fields))}

	for _, fs := range p.spec.Fields {
		text, ok := raw[fs.Name]
		text = strings.TrimSpace(text)

		if fs.ObservedAt {
			if t, tok := util.ParseTime(text, fs.Layout); tok {
				out.ObservedAt = t
			}
			continue
		}

		if !ok || text == "" {
			// Absence is the validator's concern (required-field rule);
			// the parser only refuses unusable values.
			continue
		}

		if !fs.Numeric {
			out.Fields = append(out.Fields, models.Field{Name: fs.Name, Text: text})
			continue
		}

		num, clean, err := normalizeNumeric(text)
		if err != nil {
			return nil, &models.ParseError{
				Strategy: strategy,
				Reason:   fmt.Sprintf("field %s: %v", fs.Name, err),
			}
		}
		if fs.NonZero && num == 0 {
			return nil, &models.ParseError{
				Strategy: strategy,
				Reason:   fmt.Sprintf("field %s: implausible zero", fs.Name),
			}
		}
		out.Fields = append(out.Fields, models.Field{
			Name:    fs.Name,
			Text:    clean,
			Num:     num,
			Numeric: true,
		})
	}

	if len(out.Fields) == 0 {
		return nil, &models.ParseError{Strategy: strategy, Reason: "no fields extracted"}
	}
	return out, nil
}

// extractDelimited applies the anchored rule and splits the captured body
// into positional values.
func (p *Parser) extractDelimited(body []byte) (map[string]string, error) {
	m := p.anchor.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("anchor %q not found", p.spec.Parse.Anchor)
	}
	parts := strings.Split(string(m[1]), p.delim)

	raw := make(map[string]string, len(p.spec.Fields))
	for _, fs := range p.spec.Fields {
		if fs.Index < 0 || fs.Index >= len(parts) {
			continue
		}
		raw[fs.Name] = parts[fs.Index]
	}
	return raw, nil
}

func strategyOf(p *models.RawPayload) string {
	if p == nil {
		return ""
	}
	return p.Strategy
}
