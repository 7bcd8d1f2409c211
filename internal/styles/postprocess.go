package styles

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// vendorPrefixes lists properties that still need prefixed fallbacks in the browsers we target.
var vendorPrefixes = map[string][]string{
	"appearance":            {"-webkit-", "-moz-"},
	"backdrop-filter":       {"-webkit-"},
	"background-clip":       {"-webkit-"},
	"box-decoration-break":  {"-webkit-"},
	"hyphens":               {"-webkit-", "-ms-"},
	"mask":                  {"-webkit-"},
	"mask-image":            {"-webkit-"},
	"print-color-adjust":    {"-webkit-"},
	"tab-size":              {"-moz-"},
	"text-decoration-skip":  {"-webkit-"},
	"text-emphasis":         {"-webkit-"},
	"text-size-adjust":      {"-webkit-", "-moz-", "-ms-"},
	"user-select":           {"-webkit-", "-moz-", "-ms-"},
	"writing-mode":          {"-ms-"},
	"font-feature-settings": {"-webkit-"},
	"backface-visibility":   {"-webkit-"},
	"touch-action":          {"-ms-"},
}

func parse(in []byte) (*css.Stylesheet, error) {
	sheet, err := parser.Parse(string(in))
	if err != nil {
		return nil, fmt.Errorf("parse stylesheet: %w", err)
	}
	return sheet, nil
}

func render(sheet *css.Stylesheet) []byte {
	if len(sheet.Rules) == 0 {
		return []byte{}
	}
	return []byte(sheet.String() + "\n")
}

func walkRules(rules []*css.Rule, fn func(*css.Rule)) {
	for _, r := range rules {
		fn(r)
		if len(r.Rules) > 0 {
			walkRules(r.Rules, fn)
		}
	}
}

// Prefix adds vendor-prefixed copies of declarations ahead of the standard property.
func Prefix(_ context.Context, in []byte) ([]byte, error) {
	sheet, err := parse(in)
	if err != nil {
		return nil, err
	}
	walkRules(sheet.Rules, func(r *css.Rule) {
		if len(r.Declarations) == 0 {
			return
		}
		present := make(map[string]bool, len(r.Declarations))
		for _, d := range r.Declarations {
			present[d.Property] = true
		}
		out := make([]*css.Declaration, 0, len(r.Declarations))
		for _, d := range r.Declarations {
			for _, p := range vendorPrefixes[d.Property] {
				name := p + d.Property
				if present[name] {
					continue
				}
				present[name] = true
				out = append(out, &css.Declaration{Property: name, Value: d.Value, Important: d.Important})
			}
			out = append(out, d)
		}
		r.Declarations = out
	})
	return render(sheet), nil
}

// unprefixed strips a leading vendor prefix.
func unprefixed(prop string) string {
	if strings.HasPrefix(prop, "-") && !strings.HasPrefix(prop, "--") {
		if i := strings.Index(prop[1:], "-"); i >= 0 {
			return prop[i+2:]
		}
	}
	return prop
}

// Comb orders declarations alphabetically (prefixed variants first) and removes empty rules.
func Comb(_ context.Context, in []byte) ([]byte, error) {
	sheet, err := parse(in)
	if err != nil {
		return nil, err
	}
	walkRules(sheet.Rules, func(r *css.Rule) {
		sort.SliceStable(r.Declarations, func(i, j int) bool {
			a, b := r.Declarations[i].Property, r.Declarations[j].Property
			ua, ub := unprefixed(a), unprefixed(b)
			if ua != ub {
				return ua < ub
			}
			return a != ua && b == ub
		})
	})
	sheet.Rules = dropEmpty(sheet.Rules)
	return render(sheet), nil
}

func dropEmpty(rules []*css.Rule) []*css.Rule {
	out := rules[:0]
	for _, r := range rules {
		if r.EmbedsRules() {
			r.Rules = dropEmpty(r.Rules)
			if len(r.Rules) == 0 {
				continue
			}
		} else if r.Kind == css.QualifiedRule && len(r.Declarations) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

var spaceRun = regexp.MustCompile(`\s+`)

func normalizePrelude(p string) string {
	return strings.ToLower(strings.TrimSpace(spaceRun.ReplaceAllString(p, " ")))
}

// MergeMediaQueries groups top-level @media blocks with identical queries into one block each,
// placed after all other rules in order of first appearance.
func MergeMediaQueries(_ context.Context, in []byte) ([]byte, error) {
	sheet, err := parse(in)
	if err != nil {
		return nil, err
	}
	var (
		plain  []*css.Rule
		media  []*css.Rule
		byText = make(map[string]*css.Rule)
	)
	for _, r := range sheet.Rules {
		if r.Kind != css.AtRule || r.Name != "@media" {
			plain = append(plain, r)
			continue
		}
		key := normalizePrelude(r.Prelude)
		if existing, ok := byText[key]; ok {
			existing.Rules = append(existing.Rules, r.Rules...)
			continue
		}
		byText[key] = r
		media = append(media, r)
	}
	sheet.Rules = append(plain, media...)
	return render(sheet), nil
}

// Finding is one lint observation.
type Finding struct {
	Check    string
	Selector string
	Message  string
}

func (f Finding) String() string {
	if f.Selector == "" {
		return fmt.Sprintf("%s: %s", f.Check, f.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Check, f.Message, f.Selector)
}

var zeroWithUnit = regexp.MustCompile(`(^|\s)0(px|em|rem|pt|cm|mm|in|pc|ex|ch|vw|vh|vmin|vmax)\b`)

// Lint inspects a stylesheet and reports findings. It never modifies the input.
func Lint(in []byte) ([]Finding, error) {
	sheet, err := parse(in)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	walkRules(sheet.Rules, func(r *css.Rule) {
		sel := strings.Join(r.Selectors, ", ")
		if r.Kind == css.AtRule {
			sel = strings.TrimSpace(r.Name + " " + r.Prelude)
		}
		for _, s := range r.Selectors {
			if strings.Contains(s, "#") {
				findings = append(findings, Finding{Check: "no-id-selectors", Selector: s, Message: "avoid ID selectors"})
			}
		}
		seen := make(map[string]bool, len(r.Declarations))
		for _, d := range r.Declarations {
			if d.Important {
				findings = append(findings, Finding{Check: "no-important", Selector: sel, Message: d.Property + " uses !important"})
			}
			if seen[d.Property] {
				findings = append(findings, Finding{Check: "no-duplicate-properties", Selector: sel, Message: "duplicate " + d.Property})
			}
			seen[d.Property] = true
			if zeroWithUnit.MatchString(d.Value) {
				findings = append(findings, Finding{Check: "zero-units", Selector: sel, Message: d.Property + ": unit on zero value"})
			}
		}
	})
	return findings, nil
}
