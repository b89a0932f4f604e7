package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

var pdfMagic = []byte("%PDF-")

// Inspector opens PDF content and reports its page count. Other content types
// pass through with a count of 0.
type Inspector struct {
	maxPages int
}

func New(maxPages int) *Inspector {
	return &Inspector{maxPages: maxPages}
}

func (i *Inspector) Inspect(ctx context.Context, mimeType string, content []byte) (pages int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !isPDF(mimeType, content) {
		return 0, nil
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("content is not a pdf document"))
	}

	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = domain.WrapError(domain.ErrInvalidInput, "inspect pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", err)
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("pdf has no pages"))
	}
	if i.maxPages > 0 && pages > i.maxPages {
		return pages, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", fmt.Errorf("pdf has %d pages, limit is %d", pages, i.maxPages))
	}
	return pages, nil
}

func isPDF(mimeType string, content []byte) bool {
	if strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(content, pdfMagic)
}
