package dto

import "github.com/noah-isme/repocerti-api/internal/models"

// SaveRecordRequest captures POST /records payload.
type SaveRecordRequest struct {
	Title   string              `json:"title" validate:"required,max=255"`
	Type    models.RecordType   `json:"type" validate:"required,oneof=report certificate"`
	Content string              `json:"content"`
	Images  []models.Attachment `json:"images,omitempty" validate:"omitempty,dive"`
}

// RecordListResponse wraps record summaries for list endpoints.
type RecordListResponse struct {
	Records []models.RecordSummary `json:"records"`
	Total   int                    `json:"total"`
}

// NewRecordListResponse builds the list view, never returning a nil slice.
func NewRecordListResponse(records []models.StoredRecord) RecordListResponse {
	summaries := make([]models.RecordSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.Summary())
	}
	return RecordListResponse{Records: summaries, Total: len(summaries)}
}
