// Package render turns report documents into PDF files.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"

	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/report"
)

const (
	pageMargin     = 18.0
	footerMargin   = 22.0
	bodyLineHeight = 5.5
	maxSubheading  = 100
	maxSubheadWord = 8
)

type rgb struct{ r, g, b int }

var (
	colorTitle   = rgb{26, 54, 93}
	colorHeading = rgb{44, 82, 130}
	colorBody    = rgb{45, 55, 72}
	colorMuted   = rgb{113, 128, 150}
	colorRowFill = rgb{248, 250, 251}
)

// Renderer writes a document to a file.
type Renderer interface {
	Render(ctx context.Context, doc *report.Document, path string) error
}

// PDFRenderer renders A4 reports with a title page and a branded footer.
type PDFRenderer struct {
	branding config.BrandingConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer(branding config.BrandingConfig, logger *slog.Logger) *PDFRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFRenderer{branding: branding, logger: logger, now: time.Now}
}

// Render writes doc to path, creating the parent directory when needed.
func (r *PDFRenderer) Render(ctx context.Context, doc *report.Document, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("failed to render: nil document")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(tr(fmt.Sprintf("%s - %s", doc.Title, doc.CompanyName)), false)
	pdf.SetAuthor(tr(r.branding.Company), false)
	pdf.SetCreator(tr(r.branding.Tool), false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, footerMargin)
	pdf.AliasNbPages("")
	pageWidth, _ := pdf.GetPageSize()
	half := (pageWidth - 2*pageMargin) / 2
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		setColor(pdf, colorMuted)
		pdf.CellFormat(half, 8, tr(fmt.Sprintf("%s - %s", r.branding.Company, doc.ReportType)), "T", 0, "L", false, 0, "")
		pdf.CellFormat(half, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "T", 0, "R", false, 0, "")
	})

	r.titlePage(pdf, tr, doc)
	for _, section := range doc.Sections {
		r.section(pdf, tr, section)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}

	r.logger.Debug("PDF written",
		slog.String("kind", string(doc.Kind)),
		slog.String("path", path),
		slog.Int("pages", pdf.PageNo()),
	)
	return nil
}

func (r *PDFRenderer) titlePage(pdf *fpdf.Fpdf, tr func(string) string, doc *report.Document) {
	pdf.AddPage()
	pdf.Ln(45)

	pdf.SetFont("Helvetica", "B", 26)
	setColor(pdf, colorTitle)
	pdf.MultiCell(0, 12, tr(doc.Title), "", "C", false)
	pdf.Ln(8)

	if doc.CompanyName != "" {
		pdf.SetFont("Helvetica", "B", 16)
		setColor(pdf, colorHeading)
		pdf.MultiCell(0, 9, tr(doc.CompanyName), "", "C", false)
		pdf.Ln(10)
	}

	// Details table, centred.
	const labelWidth, valueWidth, rowHeight = 55.0, 75.0, 9.0
	pageWidth, _ := pdf.GetPageSize()
	left := (pageWidth - labelWidth - valueWidth) / 2
	pdf.SetFillColor(colorRowFill.r, colorRowFill.g, colorRowFill.b)
	for i, fact := range doc.Facts {
		pdf.SetX(left)
		fill := i%2 == 1
		pdf.SetFont("Helvetica", "B", 11)
		setColor(pdf, colorHeading)
		pdf.CellFormat(labelWidth, rowHeight, tr(fact.Label+":"), "B", 0, "R", fill, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(valueWidth, rowHeight, tr(" "+fact.Value), "B", 1, "L", fill, 0, "")
	}
	pdf.Ln(18)

	pdf.SetFont("Helvetica", "B", 12)
	setColor(pdf, colorHeading)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Prepared by %s using %s", r.branding.Company, r.branding.Tool)), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	setColor(pdf, colorBody)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s | %s", r.branding.Email, r.branding.Phone)), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	setColor(pdf, colorMuted)
	pdf.CellFormat(0, 6, tr("CONFIDENTIAL - "+doc.CompanyName), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Report Generated: "+r.now().Format("January 02, 2006"), "", 1, "C", false, 0, "")
}

func (r *PDFRenderer) section(pdf *fpdf.Fpdf, tr func(string) string, section report.Section) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	setColor(pdf, colorTitle)
	pdf.MultiCell(0, 10, tr(section.Title), "", "L", false)
	pdf.Ln(4)

	for _, para := range Paragraphs(section.Body, section.Title) {
		if IsSubheading(para) {
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 12)
			setColor(pdf, colorHeading)
			pdf.MultiCell(0, 7, tr(para), "", "L", false)
			pdf.Ln(1)
			continue
		}
		pdf.SetFont("Helvetica", "", 10.5)
		setColor(pdf, colorBody)
		pdf.MultiCell(0, bodyLineHeight, tr(para), "", "J", false)
		pdf.Ln(3)
	}
}

// Paragraphs splits a section body on blank lines. Lines inside a paragraph
// are joined with a space. A leading line that only repeats the section title
// is dropped.
func Paragraphs(body, title string) []string {
	var (
		out     []string
		current []string
		seen    bool
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if !seen {
			seen = true
			if line == strings.ToUpper(title) || line == title {
				continue
			}
		}
		current = append(current, line)
	}
	flush()

	return out
}

// IsSubheading reports whether a paragraph is short enough to be set as a
// subheading: under 100 characters and either ending with a colon or at most
// eight words starting with an upper case letter.
func IsSubheading(para string) bool {
	if para == "" || len([]rune(para)) >= maxSubheading {
		return false
	}
	if strings.HasSuffix(para, ":") {
		return true
	}
	first := []rune(para)[0]
	return len(strings.Fields(para)) <= maxSubheadWord && unicode.IsUpper(first)
}

func setColor(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}
