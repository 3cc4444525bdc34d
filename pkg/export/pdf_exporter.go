package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin     = 20.0
	bodyLineHeight = 7.0
	imageMaxWidth  = 100.0
	imageGap       = 10.0
)

// Image is a binary attachment drawn on the images page of a document.
type Image struct {
	Data     []byte
	MIMEType string
}

// Document is a titled text document with optional attached images.
type Document struct {
	Title    string
	Subtitle string
	Body     string
	Images   []Image
}

// PDFExporter renders documents and datasets into PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderDocument lays out the title, wrapped body text and an "Attached Images"
// page. Only JPEG and PNG images are embedded; other types are listed as omitted.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "L", false)
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, bodyLineHeight, tr(doc.Body), "", "L", false)

	if len(doc.Images) > 0 {
		e.renderImages(pdf, tr, doc.Images)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) renderImages(pdf *gofpdf.Fpdf, tr func(string) string, images []Image) {
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Attached Images", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	_, pageHeight := pdf.GetPageSize()
	pdf.SetFont("Arial", "", 10)
	for i, img := range images {
		imageType := gofpdfImageType(img.MIMEType)
		if imageType == "" {
			pdf.CellFormat(0, 8, tr(fmt.Sprintf("Image %d omitted: unsupported type %s", i+1, img.MIMEType)), "", 1, "L", false, 0, "")
			continue
		}

		name := fmt.Sprintf("attachment-%d", i)
		options := gofpdf.ImageOptions{ImageType: imageType}
		info := pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(img.Data))
		if !pdf.Ok() || info == nil {
			pdf.ClearError()
			pdf.CellFormat(0, 8, fmt.Sprintf("Image %d omitted: could not be decoded", i+1), "", 1, "L", false, 0, "")
			continue
		}

		width, height := scaleToWidth(info.Width(), info.Height(), imageMaxWidth)
		if pdf.GetY()+height > pageHeight-pageMargin {
			pdf.AddPage()
		}
		y := pdf.GetY()
		pdf.ImageOptions(name, pageMargin, y, width, height, false, options, 0, "")
		pdf.SetY(y + height + imageGap)
	}
}

// RenderTable creates a landscape PDF with a title and a wrapped table body.
func (e *PDFExporter) RenderTable(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	pageWidth, _ := pdf.GetPageSize()
	colWidth := (pageWidth - 20) / float64(len(data.Headers))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	const lineHeight = 5.0
	for _, row := range data.Rows {
		lines := 1
		for _, header := range data.Headers {
			if n := len(pdf.SplitLines([]byte(tr(row[header])), colWidth-2)); n > lines {
				lines = n
			}
		}
		rowHeight := float64(lines) * lineHeight

		_, pageHeight := pdf.GetPageSize()
		if pdf.GetY()+rowHeight > pageHeight-15 {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		for i, header := range data.Headers {
			cellX := x + float64(i)*colWidth
			pdf.Rect(cellX, y, colWidth, rowHeight, "D")
			pdf.SetXY(cellX, y)
			pdf.MultiCell(colWidth, lineHeight, tr(row[header]), "", "L", false)
		}
		pdf.SetXY(x, y+rowHeight)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func gofpdfImageType(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	default:
		return ""
	}
}

func scaleToWidth(width, height, maxWidth float64) (float64, float64) {
	if width <= 0 || height <= 0 {
		return maxWidth, maxWidth
	}
	return maxWidth, height * maxWidth / width
}
