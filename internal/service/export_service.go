package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/repocerti-api/internal/dto"
	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
	"github.com/noah-isme/repocerti-api/pkg/export"
	"github.com/noah-isme/repocerti-api/pkg/storage"
)

var verificationHeaders = []string{
	"File Name", "Status", "Recipient Name", "Certificate ID",
	"Course Title", "Issuing Authority", "Issue Date", "Error",
}

var certificateHeaders = []string{
	"File Name", "Recipient Name", "Certificate ID",
	"Course Title", "Issuing Authority", "Issue Date",
}

type fileStorage interface {
	Save(name string, data []byte) error
	Read(name string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Sign(exportID, path string) (string, time.Time, error)
	Verify(token string) (*storage.DownloadClaims, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	RenderTable(data export.Dataset, title string) ([]byte, error)
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders records and verification results and serves them through signed links.
type ExportService struct {
	storage fileStorage
	signer  urlSigner
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer urlSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if csv == nil {
		csv = export.NewSpreadsheetExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage: store,
		signer:  signer,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RenderRecordPDF builds the downloadable PDF of a stored record.
func (s *ExportService) RenderRecordPDF(ctx context.Context, record *models.StoredRecord) (*models.ExportFile, error) {
	if record == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}

	doc := export.Document{
		Title:    record.Title,
		Subtitle: fmt.Sprintf("%s by %s, %s", record.Type, record.OwnerUsername, record.CreatedAt.Format("2 Jan 2006")),
		Body:     recordBody(record),
	}
	for _, attachment := range record.Images {
		data, err := decodeAttachment(attachment)
		if err != nil {
			s.logger.Warn("skipping undecodable attachment", zap.String("record_id", record.ID), zap.Error(err))
			continue
		}
		doc.Images = append(doc.Images, export.Image{Data: data, MIMEType: attachment.MIMEType})
	}

	body, err := s.pdf.RenderDocument(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render record")
	}
	return &models.ExportFile{
		Filename:    recordFilename(record),
		ContentType: models.ExportFormatPDF.ContentType(),
		Body:        body,
	}, nil
}

// ExportVerification renders verification results and returns a signed download link.
func (s *ExportService) ExportVerification(ctx context.Context, results []models.VerificationResult, format models.ExportFormat) (*dto.ExportLink, error) {
	if len(results) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to export")
	}
	return s.publish(ctx, verificationDataset(results), format, "Certificate Verification Results", "verification_results")
}

// ExportCertificates renders extracted certificate details and returns a signed download link.
func (s *ExportService) ExportCertificates(ctx context.Context, extractions []dto.ExtractionResponse, format models.ExportFormat) (*dto.ExportLink, error) {
	if len(extractions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to export")
	}
	rows := make([]map[string]string, 0, len(extractions))
	for _, extraction := range extractions {
		row := certificateRow(&extraction.Data)
		row["File Name"] = extraction.FileName
		rows = append(rows, row)
	}
	return s.publish(ctx, export.Dataset{Headers: certificateHeaders, Rows: rows}, format, "Extracted Certificates", "certificates")
}

// publish renders dataset, stores it under a fresh export id and signs a link to it.
func (s *ExportService) publish(ctx context.Context, dataset export.Dataset, format models.ExportFormat, title, basename string) (*dto.ExportLink, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	var (
		payload []byte
		err     error
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.RenderTable(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s_%s.%s", basename, s.now().Format("20060102_150405"), format)
	relPath := path.Join(exportID, filename)
	if err := s.storage.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Sign(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	s.logger.Info("export stored", zap.String("export_id", exportID), zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return &dto.ExportLink{
		Filename:  filename,
		Format:    string(format),
		URL:       fmt.Sprintf("%s/exports/%s", s.prefix(), token),
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve validates a download token and loads the referenced file.
func (s *ExportService) Resolve(ctx context.Context, token string) (*models.ExportFile, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download link")
	}

	body, err := s.storage.Read(claims.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export")
	}

	filename := path.Base(claims.Path)
	return &models.ExportFile{
		Filename:    filename,
		ContentType: models.ExportFormat(strings.TrimPrefix(path.Ext(filename), ".")).ContentType(),
		Body:        body,
	}, nil
}

// Cleanup removes exports older than ttl, defaulting to the configured result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) prefix() string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		return "/api/v1"
	}
	return prefix
}

func verificationDataset(results []models.VerificationResult) export.Dataset {
	rows := make([]map[string]string, 0, len(results))
	for _, result := range results {
		row := certificateRow(result.Data)
		row["File Name"] = result.FileName
		row["Status"] = string(result.Status)
		row["Error"] = result.Error
		rows = append(rows, row)
	}
	return export.Dataset{Headers: verificationHeaders, Rows: rows}
}

func certificateRow(data *models.CertificateData) map[string]string {
	row := make(map[string]string, 8)
	if data == nil {
		return row
	}
	row["Recipient Name"] = data.RecipientName
	row["Certificate ID"] = data.CertificateID
	row["Course Title"] = data.CourseTitle
	row["Issuing Authority"] = data.IssuingAuthority
	row["Issue Date"] = data.IssueDate
	return row
}

// recordBody renders certificate payloads as labelled lines and everything else verbatim.
func recordBody(record *models.StoredRecord) string {
	if record.Type != models.RecordTypeCertificate {
		return record.Content
	}
	var data models.CertificateData
	if err := json.Unmarshal([]byte(record.Content), &data); err != nil {
		return record.Content
	}
	lines := []string{
		"Recipient Name: " + data.RecipientName,
		"Certificate ID: " + data.CertificateID,
		"Course Title: " + data.CourseTitle,
		"Issuing Authority: " + data.IssuingAuthority,
		"Issue Date: " + data.IssueDate,
	}
	return strings.Join(lines, "\n")
}

// decodeAttachment accepts plain base64 or a data URL.
func decodeAttachment(attachment models.Attachment) ([]byte, error) {
	raw := attachment.Base64
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, ","); idx >= 0 {
			raw = raw[idx+1:]
		}
	}
	return base64.StdEncoding.DecodeString(raw)
}

func recordFilename(record *models.StoredRecord) string {
	title := sanitizeFilename(strings.Join(strings.Fields(record.Title), "_"))
	return fmt.Sprintf("%s_%s.pdf", title, sanitizeFilename(record.OwnerUsername))
}

const maxFilenameRunes = 100

// sanitizeFilename drops control characters and path separators and caps the
// result at maxFilenameRunes without splitting a character.
func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", `"`, "", "..", ".")
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, raw)
	result := []rune(replacer.Replace(cleaned))
	if len(result) > maxFilenameRunes {
		result = result[:maxFilenameRunes]
	}
	if len(result) == 0 {
		return "na"
	}
	return string(result)
}
