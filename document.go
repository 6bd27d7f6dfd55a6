package docex

import (
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// NewDocument wraps already-decoded text in a Document, minting an id when
// none is supplied.
func NewDocument(id, text string) *Document {
	if id == "" {
		id = uuid.NewString()
	}
	return &Document{ID: id, Text: text, CreatedAt: time.Now()}
}

// IngestBytes sniffs the content type of raw upload bytes and returns a
// Document when the payload is text-like. Binary formats (PDF included) must
// be converted to text upstream; anything else fails fast as an input error
// with the detected type in the message.
func IngestBytes(id string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	mtype := mimetype.Detect(data)
	if !textLike(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return NewDocument(id, text), nil
}

func textLike(m *mimetype.MIME) bool {
	for cur := m; cur != nil; cur = cur.Parent() {
		switch {
		case strings.HasPrefix(cur.String(), "text/"):
			return true
		case cur.Is("application/json"), cur.Is("application/xml"):
			return true
		}
	}
	return false
}
