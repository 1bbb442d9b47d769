/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Mask replaces matches of RegExp with Mask.
type Mask struct {
	RegExp *regexp.Regexp
	Mask   string
}

// NewMask compiles a Mask from its configuration. It panics if the expression is invalid.
func NewMask(cfg MaskConfig) Mask {
	return Mask{regexp.MustCompile(cfg.RegExp), cfg.Mask}
}

// FieldMasker masks a single field in all the configured formats.
type FieldMasker struct {
	Field string // lowercase
	Masks []Mask
}

// NewFieldMasker creates a FieldMasker from a masking rule.
func NewFieldMasker(cfg MaskingRuleConfig) FieldMasker {
	fMask := FieldMasker{Field: strings.ToLower(cfg.Field), Masks: make([]Mask, 0, len(cfg.Masks)+len(cfg.Formats))}
	for _, maskCfg := range cfg.Masks {
		fMask.Masks = append(fMask.Masks, NewMask(maskCfg))
	}
	field := regexp.QuoteMeta(cfg.Field)
	for _, format := range cfg.Formats {
		switch format {
		case FieldMaskFormatHTTPHeader:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?im)` + field + `: .+?(\r\n|$)`, cfg.Field + ": ***${1}"}))
		case FieldMaskFormatJSON:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)"` + field + `"\s*:\s*"(\\.|[^"\\])*"`, `"` + cfg.Field + `": "***"`}))
		case FieldMaskFormatURLEncoded:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)\b` + field + `\s*=\s*[^&\s]+`, cfg.Field + "=***"}))
		}
	}
	return fMask
}

// Masker masks secrets in strings.
// A single Aho-Corasick pass over the lowercased input selects the fields whose regular expressions have to run.
type Masker struct {
	FieldMasks []FieldMasker
	matcher    *ahocorasick.Matcher
}

// NewMasker creates a Masker from masking rules.
func NewMasker(rules []MaskingRuleConfig) *Masker {
	m := &Masker{FieldMasks: make([]FieldMasker, 0, len(rules))}
	fields := make([]string, 0, len(rules))
	for _, rule := range rules {
		fm := NewFieldMasker(rule)
		m.FieldMasks = append(m.FieldMasks, fm)
		fields = append(fields, fm.Field)
	}
	m.matcher = ahocorasick.NewStringMatcher(fields)
	return m
}

// Mask returns s with all known secrets replaced.
func (m *Masker) Mask(s string) string {
	if len(m.FieldMasks) == 0 || s == "" {
		return s
	}
	hits := m.matcher.MatchThreadSafe([]byte(strings.ToLower(s)))
	for _, i := range hits {
		for _, mask := range m.FieldMasks[i].Masks {
			s = mask.RegExp.ReplaceAllString(s, mask.Mask)
		}
	}
	return s
}

// DefaultMasks are the masking rules enabled by the "masking.useDefaultRules" setting.
var DefaultMasks = []MaskingRuleConfig{
	{
		Field:   "Authorization",
		Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader},
	},
	{
		Field:   "signature",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "password",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "client_secret",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "access_token",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "refresh_token",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
}
