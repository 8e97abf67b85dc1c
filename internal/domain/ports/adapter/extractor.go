package adapter

// TextExtractor converts one binary document payload into plain text plus a
// page count. Implementations return domain.ErrUnreadableDocument when the
// payload is not a parseable container and domain.ErrEmptyDocument when
// parsing succeeds but yields no text.
type TextExtractor interface {
	ExtractText(data []byte) (text string, pages int, err error)
}
