package router

import (
	"fmt"
	"strings"
)

// ErrMalformedTemplate is returned by ParseTemplate when a topic template
// contains an empty segment or an empty placeholder name.
var ErrMalformedTemplate = fmt.Errorf("router: malformed template")

// TemplatePath is a topic template split into static and dynamic
// segments, e.g. "wlan-pi/{id}/api/v1/interfaces/{name}/get".
type TemplatePath struct {
	Segments []Segment
}

// ParseTemplate splits a "/"-delimited topic template into segments,
// recognizing "{name}" tokens as dynamic placeholders. A leading slash is
// tolerated and stripped; an empty segment anywhere (leading, trailing,
// or doubled slash) is malformed, as is an empty placeholder name "{}".
func ParseTemplate(template string) (TemplatePath, error) {
	trimmed := strings.TrimPrefix(template, "/")
	if trimmed == "" {
		return TemplatePath{}, fmt.Errorf("%w: empty template", ErrMalformedTemplate)
	}

	tokens := strings.Split(trimmed, "/")
	segments := make([]Segment, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			return TemplatePath{}, fmt.Errorf("%w: empty segment in %q", ErrMalformedTemplate, template)
		}
		if strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") {
			name := tok[1 : len(tok)-1]
			if name == "" {
				return TemplatePath{}, fmt.Errorf("%w: empty placeholder in %q", ErrMalformedTemplate, template)
			}
			segments = append(segments, Segment{Kind: SegmentDynamic, Literal: tok, Placeholder: name})
			continue
		}
		segments = append(segments, Segment{Kind: SegmentStatic, Literal: tok})
	}
	return TemplatePath{Segments: segments}, nil
}

// Join reassembles the template into its "/"-delimited string form.
func (t TemplatePath) Join() string {
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = s.Literal
	}
	return strings.Join(parts, "/")
}

// Equal reports whether two template paths have identical segments in
// the same order.
func (t TemplatePath) Equal(o TemplatePath) bool {
	if len(t.Segments) != len(o.Segments) {
		return false
	}
	for i := range t.Segments {
		if t.Segments[i] != o.Segments[i] {
			return false
		}
	}
	return true
}
