package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[\s_-]+`)
)

// Slugify turns text into a URL-safe slug: lowercase, punctuation removed,
// runs of whitespace, underscores and dashes collapsed into a single dash.
func Slugify(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSeparate.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// DeriveSlugs fills every slug field that is missing or empty in values from
// the slug's source fields. Slugs the caller set explicitly are kept.
func DeriveSlugs(d *Definition, values map[string]any) map[string]any {
	if values == nil {
		return values
	}
	for _, f := range d.Fields {
		if f.Type != FieldSlug {
			continue
		}
		if cur, ok := values[f.Name]; ok && cur != nil && fmt.Sprint(cur) != "" {
			continue
		}
		var parts []string
		for _, src := range f.From.Names() {
			if v, ok := values[src]; ok && v != nil {
				if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if slug := Slugify(strings.Join(parts, " ")); slug != "" {
			values[f.Name] = slug
		}
	}
	return values
}
