package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/models"
	"github.com/hojonavi/hojokin-harvester/internal/textextract"
)

// maxPDFBytes bounds how much of a document gets parsed. Guideline PDFs on
// government sites run a few MB; anything larger is almost never a subsidy
// announcement.
const maxPDFBytes = 20 << 20

// PDFExtractor pulls subsidy records out of PDF guideline documents. The
// same nil-record, nil-error convention as the HTML extractor applies to
// documents that fail the subsidy-keyword gate.
type PDFExtractor struct {
	logger *zap.Logger
	now    func() time.Time
}

// PDFOption customizes a PDFExtractor.
type PDFOption func(*PDFExtractor)

// WithPDFNowFunc injects the clock used for year inference.
func WithPDFNowFunc(now func() time.Time) PDFOption {
	return func(e *PDFExtractor) { e.now = now }
}

func NewPDFExtractor(logger *zap.Logger, opts ...PDFOption) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &PDFExtractor{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFromPDF parses the raw document bytes and runs the text-extraction
// engine over the plain text. Malformed PDFs return an error; well-formed
// documents that are not about subsidies return nil, nil.
func (e *PDFExtractor) ExtractFromPDF(data []byte, sourceURL string) (*models.ExtractedInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf from %q", sourceURL)
	}
	if len(data) > maxPDFBytes {
		return nil, fmt.Errorf("pdf from %q exceeds %d bytes", sourceURL, maxPDFBytes)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf from %q: %w", sourceURL, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("reading pdf text from %q: %w", sourceURL, err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("reading pdf text from %q: %w", sourceURL, err)
	}

	text := textextract.NormalizeText(string(raw))
	if countIndicators(text) < minIndicatorHits {
		return nil, nil
	}

	info := &models.ExtractedInfo{
		Title:     pdfTitle(string(raw)),
		SourceURL: sourceURL,
		RawText:   truncateRunes(text, maxRawRunes),
	}
	fillFromText(info, text, e.now())
	info.Description = truncateRunes(text, maxDescRunes)
	info.Confidence = scoreConfidence(info)

	e.logger.Debug("extracted subsidy pdf",
		zap.String("url", sourceURL),
		zap.String("title", info.Title),
		zap.Int("confidence", info.Confidence))
	return info, nil
}

// pdfTitle takes the first raw line of acceptable length as the document
// title. PDFs have no markup to lean on, so the heading is assumed to come
// first. Operates on the pre-normalization text because normalization folds
// line breaks away.
func pdfTitle(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = textextract.NormalizeText(line)
		if titleLengthOK(line) {
			return line
		}
	}
	// Plain-text extraction often yields one long run with no breaks.
	fields := strings.Fields(textextract.NormalizeText(raw))
	if len(fields) > 0 && titleLengthOK(fields[0]) {
		return fields[0]
	}
	return ""
}
