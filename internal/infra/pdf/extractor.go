package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/ports/adapter"
)

var _ adapter.TextExtractor = (*Extractor)(nil)

// Extractor pulls the text layer out of a PDF payload, page by page.
type Extractor struct {
	log *zerolog.Logger
}

func NewExtractor(log *zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractText parses the payload and concatenates per-page text, pages
// separated by blank lines. A payload that is not a PDF yields
// ErrUnreadableDocument; a parseable PDF with no text layer (e.g. a scan)
// yields ErrEmptyDocument.
func (e *Extractor) ExtractText(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}

	pages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.log.Warn().Int("page", i).Err(err).Msg("failed to extract text from page")
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", pages, domain.ErrEmptyDocument
	}
	return text, pages, nil
}
