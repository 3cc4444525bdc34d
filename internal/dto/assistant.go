package dto

import (
	"time"

	"github.com/noah-isme/repocerti-api/internal/models"
)

// GenerateSectionRequest captures POST /assistant/report/generate payload.
type GenerateSectionRequest struct {
	Topic string `json:"topic" validate:"required,max=2000"`
}

// ImproveTextRequest captures POST /assistant/report/improve payload.
type ImproveTextRequest struct {
	Text string `json:"text" validate:"required"`
}

// GeneratedTextResponse returns model output.
type GeneratedTextResponse struct {
	Text string `json:"text"`
}

// ExtractionResponse returns the fields read from one certificate.
type ExtractionResponse struct {
	FileName string                 `json:"file_name"`
	Data     models.CertificateData `json:"data"`
	Export   *ExportLink            `json:"export,omitempty"`
}

// VerificationBatchResponse summarises a bulk verification run.
type VerificationBatchResponse struct {
	Results  []models.VerificationResult `json:"results"`
	Verified int                         `json:"verified"`
	Failed   int                         `json:"failed"`
	Export   *ExportLink                 `json:"export,omitempty"`
}

// ExportLink points at a rendered export reachable through a signed URL.
type ExportLink struct {
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
