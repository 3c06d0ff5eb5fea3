package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\n?(.*?)```")

// errNoJSON is returned by ExtractJSON when the text holds no parseable object.
var errNoJSON = errors.New("no JSON object found in response")

// ExtractJSON pulls a single JSON payload out of free-form model output.
// Fenced code blocks are tried first, in order; then the text is scanned for
// the first outermost balanced {...} object that parses.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errNoJSON
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(trimmed, -1) {
		block := strings.TrimSpace(m[1])
		if block != "" && json.Valid([]byte(block)) {
			return json.RawMessage(block), nil
		}
		if obj, ok := scanObject(block); ok {
			return obj, nil
		}
	}

	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	if obj, ok := scanObject(trimmed); ok {
		return obj, nil
	}
	return nil, errNoJSON
}

// scanObject finds the first balanced top-level {...} span that is valid
// JSON. Braces inside string literals are ignored.
func scanObject(s string) (json.RawMessage, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		end := matchBrace(s, start)
		if end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
