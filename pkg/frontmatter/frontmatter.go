// Package frontmatter implements the fenced metadata format shared by
// message files, issue files, and other workspace documents: a leading
// block delimited by lines of three hyphens, parsed as YAML, followed
// by free body text.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// ErrUnterminated is returned when a file opens a metadata fence but
// never closes it.
var ErrUnterminated = errors.New("unterminated frontmatter fence")

// Split separates the raw metadata block from the body without
// parsing it. hasMeta is false when the file has no leading fence, in
// which case the whole content is body.
func Split(content []byte) (meta []byte, body string, hasMeta bool, err error) {
	text := string(content)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != fence {
		return nil, text, false, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") != fence {
			continue
		}
		block := strings.Join(lines[1:i], "\n")
		rest := lines[i+1:]
		// Body follows a blank separator line when present.
		if len(rest) > 0 && strings.TrimRight(rest[0], "\r") == "" {
			rest = rest[1:]
		}
		return []byte(block), strings.Join(rest, "\n"), true, nil
	}
	return nil, "", false, ErrUnterminated
}

// Parse returns the metadata as a generic map plus the body text.
// Files without a fence yield an empty map.
func Parse(content []byte) (map[string]any, string, error) {
	block, body, hasMeta, err := Split(content)
	if err != nil {
		return nil, "", err
	}
	meta := map[string]any{}
	if !hasMeta {
		return meta, body, nil
	}
	if err := yaml.Unmarshal(block, &meta); err != nil {
		return nil, "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return meta, body, nil
}

// Decode unmarshals the metadata block into out and returns the body.
// out is left untouched when the file has no fence.
func Decode(content []byte, out any) (string, error) {
	block, body, hasMeta, err := Split(content)
	if err != nil {
		return "", err
	}
	if !hasMeta {
		return body, nil
	}
	if err := yaml.Unmarshal(block, out); err != nil {
		return "", fmt.Errorf("failed to decode frontmatter: %w", err)
	}
	return body, nil
}

// Compose renders a metadata value and body into file bytes. The
// inverse of Parse/Decode for values satisfying the schema.
func Compose(meta any, body string) ([]byte, error) {
	block, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.WriteByte('\n')
	buf.Write(block)
	if len(block) > 0 && block[len(block)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(fence)
	buf.WriteByte('\n')
	if body != "" {
		buf.WriteByte('\n')
		buf.WriteString(body)
	}
	return buf.Bytes(), nil
}
