package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeResponse turns raw model text into out. Strict decode first; if the
// model wrapped its JSON in commentary or code fences, fall back to the
// outermost balanced object or array substring. Anything beyond that is a
// MalformedResponse carrying the raw text.
func decodeResponse(raw, stage string, out any) error {
	trimmed := strings.TrimSpace(stripFences(raw))

	err := json.Unmarshal([]byte(trimmed), out)
	if err == nil {
		return nil
	}

	if sub, ok := balancedSubstring(trimmed); ok {
		if err2 := json.Unmarshal([]byte(sub), out); err2 == nil {
			return nil
		}
	}

	return &MalformedResponse{Stage: stage, Raw: raw, Err: err}
}

// stripFences removes a markdown code fence if the whole payload is inside
// one.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return t
}

// balancedSubstring finds the first '{' or '[' and returns the substring up
// to its balancing partner. The scan is string-literal aware, so braces
// inside JSON strings do not confuse the depth count.
func balancedSubstring(s string) (string, bool) {
	start := -1
	var opener, closer byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, opener, closer = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, opener, closer = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// flexInt decodes an integer that the model may emit as a number or a
// quoted string ("85", "85%").
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(s, "%")
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		*f = flexInt(v)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(v)
		return nil
	}
	return eris.Errorf("parse confidence %q", s)
}
