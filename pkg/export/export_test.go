package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"File Name", "Status"},
		Rows: []map[string]string{
			{"File Name": "a.png", "Status": "Verified"},
			{"File Name": "b, c.png", "Status": "Failed"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "File Name,Status\na.png,Verified\n\"b, c.png\",Failed\n", string(out))

	withBOM, err := NewSpreadsheetExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(withBOM, utf8BOM))
	assert.True(t, strings.HasSuffix(string(withBOM), string(out)))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestSpreadsheetExporterEscapesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"Recipient Name", "Score"},
		Rows: []map[string]string{
			{"Recipient Name": "=HYPERLINK(\"http://x\")", "Score": "-3.5"},
			{"Recipient Name": "@SUM(A1)", "Score": "+cmd"},
			{"Recipient Name": "Ana"},
		},
	}

	out, err := NewSpreadsheetExporter().Render(data)
	require.NoError(t, err)
	body := strings.TrimPrefix(string(out), string(utf8BOM))
	assert.Equal(t, "Recipient Name,Score\n\"'=HYPERLINK(\"\"http://x\"\")\",-3.5\n'@SUM(A1),'+cmd\nAna,\n", body)

	plain, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "@SUM(A1),+cmd")
}

func TestCSVExporterRejectsDuplicateHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"Status", " Status"}})
	assert.ErrorContains(t, err, "listed twice")
}

func TestPDFExporterRenderTable(t *testing.T) {
	out, err := NewPDFExporter().RenderTable(Dataset{
		Headers: []string{"File Name", "Error"},
		Rows: []map[string]string{
			{"File Name": "a.png", "Error": strings.Repeat("long message ", 20)},
		},
	}, "Verification Results")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().RenderTable(Dataset{}, "empty")
	assert.Error(t, err)
}

func TestPDFExporterRenderDocument(t *testing.T) {
	out, err := NewPDFExporter().RenderDocument(Document{
		Title:    "Science Fair Report",
		Subtitle: "ana · 2024-05-01",
		Body:     strings.Repeat("Paragraph text that wraps across lines. ", 200),
		Images: []Image{
			{Data: pngFixture(t), MIMEType: "image/png"},
			{Data: []byte("webp"), MIMEType: "image/webp"},
			{Data: []byte("not a jpeg"), MIMEType: "image/jpeg"},
		},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestScaleToWidth(t *testing.T) {
	w, h := scaleToWidth(200, 100, 100)
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 50.0, h)

	w, h = scaleToWidth(0, 0, 100)
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 100.0, h)

	assert.Equal(t, "JPG", gofpdfImageType("IMAGE/JPEG"))
	assert.Equal(t, "", gofpdfImageType("image/webp"))
}
