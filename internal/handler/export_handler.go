package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/repocerti-api/internal/models"
	"github.com/noah-isme/repocerti-api/pkg/response"
)

type exportResolver interface {
	Resolve(ctx context.Context, token string) (*models.ExportFile, error)
}

// ExportHandler serves files behind signed download links.
type ExportHandler struct {
	exports exportResolver
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports exportResolver) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download an export
// @Description Token-authenticated; no bearer token required
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.exports.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
