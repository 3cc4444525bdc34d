package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/repocerti-api/internal/dto"
	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
	"github.com/noah-isme/repocerti-api/pkg/response"
)

const defaultMaxUploadBytes int64 = 10 << 20

type assistantService interface {
	GenerateSection(ctx context.Context, req dto.GenerateSectionRequest) (string, error)
	ImproveText(ctx context.Context, req dto.ImproveTextRequest) (string, error)
	ExtractCertificate(ctx context.Context, file models.UploadedFile) (*models.CertificateData, error)
	VerifyBatch(ctx context.Context, files []models.UploadedFile) ([]models.VerificationResult, error)
}

type resultExporter interface {
	ExportVerification(ctx context.Context, results []models.VerificationResult, format models.ExportFormat) (*dto.ExportLink, error)
	ExportCertificates(ctx context.Context, extractions []dto.ExtractionResponse, format models.ExportFormat) (*dto.ExportLink, error)
}

// AssistantHandler exposes report drafting and certificate reading.
type AssistantHandler struct {
	assistant assistantService
	exports   resultExporter
	maxUpload int64
}

// NewAssistantHandler constructs an AssistantHandler. maxUpload caps the whole multipart body.
func NewAssistantHandler(assistant assistantService, exports resultExporter, maxUpload int64) *AssistantHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &AssistantHandler{assistant: assistant, exports: exports, maxUpload: maxUpload}
}

// GenerateSection godoc
// @Summary Draft a report section
// @Tags Assistant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateSectionRequest true "Topic"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assistant/report/generate [post]
func (h *AssistantHandler) GenerateSection(c *gin.Context) {
	var req dto.GenerateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	text, err := h.assistant.GenerateSection(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GeneratedTextResponse{Text: text})
}

// ImproveText godoc
// @Summary Improve report text
// @Tags Assistant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ImproveTextRequest true "Text"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assistant/report/improve [post]
func (h *AssistantHandler) ImproveText(c *gin.Context) {
	var req dto.ImproveTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid improve payload"))
		return
	}
	text, err := h.assistant.ImproveText(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GeneratedTextResponse{Text: text})
}

// ExtractCertificate godoc
// @Summary Extract certificate details
// @Tags Assistant
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Certificate image or PDF"
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assistant/certificates/extract [post]
func (h *AssistantHandler) ExtractCertificate(c *gin.Context) {
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	files, err := h.readUploads(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.assistant.ExtractCertificate(c.Request.Context(), files[0])
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.ExtractionResponse{FileName: files[0].Name, Data: *data}
	if format != "" {
		link, err := h.exports.ExportCertificates(c.Request.Context(), []dto.ExtractionResponse{res}, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		res.Export = link
	}
	response.JSON(c, http.StatusOK, res)
}

// VerifyCertificates godoc
// @Summary Verify certificates in bulk
// @Description Staff only. Each file yields a Verified or Failed result in upload order.
// @Tags Assistant
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Certificate images or PDFs"
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /assistant/certificates/verify [post]
func (h *AssistantHandler) VerifyCertificates(c *gin.Context) {
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	files, err := h.readUploads(c, "files")
	if err != nil {
		response.Error(c, err)
		return
	}

	results, err := h.assistant.VerifyBatch(c.Request.Context(), files)
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.VerificationBatchResponse{Results: results}
	for _, result := range results {
		if result.Status == models.VerificationVerified {
			res.Verified++
		} else {
			res.Failed++
		}
	}

	if format != "" {
		link, err := h.exports.ExportVerification(c.Request.Context(), results, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		res.Export = link
	}
	response.JSON(c, http.StatusOK, res)
}

// exportFormat reads the optional ?format= query; empty means no export.
func exportFormat(c *gin.Context) (models.ExportFormat, error) {
	format := models.ExportFormat(strings.ToLower(c.Query("format")))
	if format != "" && !format.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	return format, nil
}

func (h *AssistantHandler) readUploads(c *gin.Context, field string) ([]models.UploadedFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "expected multipart form upload")
	}

	headers := form.File[field]
	if len(headers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no files in field %q", field))
	}

	files := make([]models.UploadedFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUpload(header)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload")
		}
		files = append(files, file)
	}
	return files, nil
}

func readUpload(header *multipart.FileHeader) (models.UploadedFile, error) {
	src, err := header.Open()
	if err != nil {
		return models.UploadedFile{}, err
	}
	defer src.Close() //nolint:errcheck

	data, err := io.ReadAll(src)
	if err != nil {
		return models.UploadedFile{}, err
	}

	mimeType := header.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
		if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
			mimeType = parsed
		}
	}
	return models.UploadedFile{Name: header.Filename, MIMEType: mimeType, Data: data}, nil
}
