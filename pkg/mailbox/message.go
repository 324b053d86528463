package mailbox

import (
	"fmt"
	"time"

	"github.com/monoco-io/fabric/pkg/frontmatter"
	"github.com/monoco-io/fabric/pkg/types"
)

// DecodeMessage parses a message file: frontmatter metadata plus body
// text. content.text falls back to the body when the metadata leaves
// it empty.
func DecodeMessage(content []byte) (*types.Message, error) {
	var msg types.Message
	body, err := frontmatter.Decode(content, &msg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	msg.Body = body

	if msg.ID == "" {
		return nil, ErrMissingID
	}
	if msg.Content.Text == "" {
		msg.Content.Text = body
	}
	return &msg, nil
}

// EncodeMessage renders a message back into file bytes, frontmatter
// first. The inverse of DecodeMessage up to YAML key ordering.
func EncodeMessage(msg *types.Message) ([]byte, error) {
	if msg.ID == "" {
		return nil, ErrMissingID
	}
	if msg.Provider == "" {
		return nil, ErrMissingProvider
	}
	data, err := frontmatter.Compose(msg, msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Filename derives the canonical message filename from its timestamp
// and id. A zero timestamp uses the current time.
func Filename(msg *types.Message) string {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format("20060102T150405") + "_" + msg.ID + ".md"
}
