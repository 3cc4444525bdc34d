package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/repocerti-api/internal/dto"
	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
	"github.com/noah-isme/repocerti-api/pkg/response"
)

type recordService interface {
	Save(ctx context.Context, viewerID string, req dto.SaveRecordRequest) (*models.StoredRecord, error)
	ListOwn(ctx context.Context, viewerID string) ([]models.StoredRecord, error)
	ListVisible(ctx context.Context, viewerID, search string) ([]models.StoredRecord, error)
	GetVisible(ctx context.Context, viewerID, recordID string) (*models.StoredRecord, error)
}

type recordRenderer interface {
	RenderRecordPDF(ctx context.Context, record *models.StoredRecord) (*models.ExportFile, error)
}

// RecordHandler exposes the record repository.
type RecordHandler struct {
	records recordService
	render  recordRenderer
}

// NewRecordHandler constructs a RecordHandler.
func NewRecordHandler(records recordService, render recordRenderer) *RecordHandler {
	return &RecordHandler{records: records, render: render}
}

// Save godoc
// @Summary Save a report or certificate
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SaveRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /records [post]
func (h *RecordHandler) Save(c *gin.Context) {
	var req dto.SaveRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}

	record, err := h.records.Save(c.Request.Context(), viewerIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListMine godoc
// @Summary List own records
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /records/mine [get]
func (h *RecordHandler) ListMine(c *gin.Context) {
	records, err := h.records.ListOwn(c.Request.Context(), viewerIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewRecordListResponse(records))
}

// ListVisible godoc
// @Summary List records visible to the caller
// @Description Own records plus those of lower-ranked owners, optionally filtered by title or owner username
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param q query string false "Case-insensitive search on title or owner username"
// @Success 200 {object} response.Envelope
// @Router /records [get]
func (h *RecordHandler) ListVisible(c *gin.Context) {
	search := c.Query("q")
	records, err := h.records.ListVisible(c.Request.Context(), viewerIDFromContext(c), search)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if search != "" {
		meta = map[string]interface{}{"q": search}
	}
	response.JSON(c, http.StatusOK, dto.NewRecordListResponse(records), meta)
}

// Get godoc
// @Summary Fetch a visible record
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	record, err := h.records.GetVisible(c.Request.Context(), viewerIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// DownloadPDF godoc
// @Summary Download a visible record as PDF
// @Tags Records
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Record ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /records/{id}/pdf [get]
func (h *RecordHandler) DownloadPDF(c *gin.Context) {
	record, err := h.records.GetVisible(c.Request.Context(), viewerIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.render.RenderRecordPDF(c.Request.Context(), record)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
