package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

var pdfMagic = []byte("%PDF-")

// Extractor turns a raw document into text, one entry per page
type Extractor interface {
	Extract(raw []byte) ([]string, error)
}

// PDFExtractor reads text layers with ledongthuc/pdf
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns the NFKC-normalised text of every page in page order.
// Pages without a text layer, or whose content stream cannot be read, come
// back empty.
func (e *PDFExtractor) Extract(raw []byte) (pages []string, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), pdfMagic) {
		return nil, domain.ErrNotPDF
	}

	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", domain.ErrNotPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotPDF, err)
	}

	pages = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("skipping unreadable page")
			pages = append(pages, "")
			continue
		}
		pages = append(pages, normalize(text))
	}

	return pages, nil
}

// normalize folds compatibility forms (ligatures, full-width digits) and
// trims each line.
func normalize(text string) string {
	text = norm.NFKC.String(text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
