package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrUnclosedFrontmatter indicates a document opened a frontmatter block with
// `---` but never closed it.
var ErrUnclosedFrontmatter = errors.New("frontmatter opened with --- but never closed")

// Style records the newline convention of a source document so a Split/Join
// round trip reproduces the original bytes.
type Style struct {
	Newline string
}

// Split separates a Jekyll-style document into its raw YAML metadata and
// Markdown body.
//
// If the document does not begin with a `---` delimiter line, had is false and
// body is the full input.
func Split(content []byte) (meta []byte, body []byte, had bool, style Style, err error) {
	style = sniffStyle(content)
	marker := []byte("---" + style.Newline)

	if !bytes.HasPrefix(content, marker) {
		return nil, content, false, style, nil
	}

	rest := content[len(marker):]
	if bytes.HasPrefix(rest, marker) {
		// Empty metadata block.
		return []byte{}, rest[len(marker):], true, style, nil
	}

	terminator := []byte(style.Newline + "---" + style.Newline)
	end := bytes.Index(rest, terminator)
	if end < 0 {
		return nil, nil, false, style, ErrUnclosedFrontmatter
	}

	meta = rest[:end+len(style.Newline)]
	body = rest[end+len(terminator):]
	return meta, body, true, style, nil
}

// Join reassembles a document from raw metadata and body.
//
// If had is false, Join returns body unchanged. Otherwise it emits the
// metadata between `---` delimiter lines using the captured newline style.
func Join(meta []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}
	marker := []byte("---" + nl)

	doc := make([]byte, 0, 2*len(marker)+len(meta)+len(body))
	doc = append(doc, marker...)
	doc = append(doc, meta...)
	doc = append(doc, marker...)
	doc = append(doc, body...)
	return doc
}

// ParseYAML parses raw YAML metadata (without delimiters) into a map.
func ParseYAML(meta []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(meta) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(meta, &fields); err != nil {
		return nil, fmt.Errorf("parse frontmatter yaml: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// EncodeYAML renders fields as YAML suitable for placing between frontmatter
// delimiters, e.g. when scaffolding new pages.
func EncodeYAML(fields map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	out, err := yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter yaml: %w", err)
	}
	return out, nil
}

func sniffStyle(content []byte) Style {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return Style{Newline: "\r\n"}
	}
	return Style{Newline: "\n"}
}
