package report

import (
	"strings"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"github.com/go-pdf/fpdf"
)

// Artifact is a rendered document on disk.
type Artifact struct {
	Path string
	// Degraded is set when the PDF could not be rendered and a plain text
	// copy was written instead.
	Degraded bool
}

// pdfReplacer maps runes outside the core font encoding.
var pdfReplacer = strings.NewReplacer("₂", "2", "Δ", "Delta ", "≈", "~", "→", "->")

// FallbackPath is the text artifact written when PDF rendering fails.
func FallbackPath(pdfPath string) string {
	if strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		return pdfPath[:len(pdfPath)-len(".pdf")] + ".txt"
	}

	return pdfPath + ".txt"
}

// RenderDocument renders text into a PDF at pdfPath. When rendering fails the
// text is written to FallbackPath(pdfPath) and the artifact is marked
// degraded. An error is returned only when neither file could be written.
func RenderDocument(text, pdfPath string) (Artifact, error) {
	if err := writePDF(text, pdfPath); err != nil {
		logger.Warn().Err(err).Str("path", pdfPath).Msg("PDF rendering failed, writing text instead")

		fallback := FallbackPath(pdfPath)
		if werr := WriteText(fallback, text); werr != nil {
			return Artifact{}, errors.Join(err, werr)
		}

		return Artifact{Path: fallback, Degraded: true}, nil
	}

	return Artifact{Path: pdfPath}, nil
}

func writePDF(text, path string) error {
	errFactory := errors.New()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			pdf.Ln(3)
			continue
		}
		pdf.MultiCell(0, 6, tr(pdfReplacer.Replace(para)), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return errFactory.Wrap(errors.ErrRender, err)
	}

	return nil
}
