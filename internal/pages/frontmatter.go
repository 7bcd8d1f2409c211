package pages

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

var errUnclosedFrontMatter = errors.New("front matter opened with --- but never closed")

// splitFrontMatter separates a leading `---` delimited YAML block from the page body.
func splitFrontMatter(content []byte) (map[string]any, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return map[string]any{}, content, nil
	}
	rest := normalized[len("---\n"):]

	var raw, body []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		body = rest[len("---\n"):]
	default:
		idx := bytes.Index(rest, []byte("\n---\n"))
		if idx < 0 {
			return nil, nil, errUnclosedFrontMatter
		}
		raw = rest[:idx+1]
		body = rest[idx+len("\n---\n"):]
	}

	fields := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, nil, err
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}
	return fields, body, nil
}
