package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/repocerti-api/internal/dto"
	"github.com/noah-isme/repocerti-api/internal/models"
	"github.com/noah-isme/repocerti-api/pkg/ai"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
)

const (
	sectionPromptTemplate = `Generate a professional, well-structured report section about the following topic: "%s". The section should be detailed, insightful, and ready for inclusion in a business or academic document.`
	improvePromptTemplate = "Please review and improve the following text for clarity, grammar, and professional tone. Keep the original meaning intact but enhance the overall quality of the writing. Here is the text:\n\n---\n\n%s"
	extractionPrompt      = "Extract the key details from this certificate image and provide the output in the specified JSON format. If a piece of information like 'certificateId' is not present, return an empty string for that field."
)

var certificateFields = []ai.Field{
	{Name: "recipientName", Description: "Full name of the person who received the certificate.", Required: true},
	{Name: "certificateId", Description: "The unique identifier or serial number of the certificate."},
	{Name: "courseTitle", Description: "The name of the course, program, or achievement being certified.", Required: true},
	{Name: "issuingAuthority", Description: "The organization, company, or institution that issued the certificate.", Required: true},
	{Name: "issueDate", Description: "The date the certificate was issued (e.g., 'YYYY-MM-DD' or 'Month Day, YYYY').", Required: true},
}

// Generator produces text from a model request.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

type aiCallRecorder interface {
	RecordAICall(operation string, err error, duration time.Duration)
}

// AssistantConfig tunes model selection and batch concurrency.
type AssistantConfig struct {
	ReportModel     string
	ExtractionModel string
	MaxConcurrency  int
	AllowedMIME     []string
}

// AssistantService drafts report text and reads certificates through a generative model.
type AssistantService struct {
	model     Generator
	validator *validator.Validate
	logger    *zap.Logger
	metrics   aiCallRecorder
	config    AssistantConfig
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(model Generator, validate *validator.Validate, logger *zap.Logger, metrics aiCallRecorder, cfg AssistantConfig) *AssistantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ReportModel == "" {
		cfg.ReportModel = "gemini-2.5-pro"
	}
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = "gemini-2.5-flash"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &AssistantService{model: model, validator: validate, logger: logger, metrics: metrics, config: cfg}
}

// GenerateSection drafts a report section about topic.
func (s *AssistantService) GenerateSection(ctx context.Context, req dto.GenerateSectionRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Validation(err, "topic is required")
	}
	return s.call(ctx, "generate_section", ai.Request{
		Model:       s.config.ReportModel,
		Prompt:      fmt.Sprintf(sectionPromptTemplate, strings.TrimSpace(req.Topic)),
		Temperature: ai.Float(0.7),
		TopP:        ai.Float(0.95),
	})
}

// ImproveText rewrites text for clarity, grammar and tone.
func (s *AssistantService) ImproveText(ctx context.Context, req dto.ImproveTextRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Validation(err, "text is required")
	}
	return s.call(ctx, "improve_text", ai.Request{
		Model:       s.config.ReportModel,
		Prompt:      fmt.Sprintf(improvePromptTemplate, req.Text),
		Temperature: ai.Float(0.5),
	})
}

// ExtractCertificate reads the certificate fields from an uploaded image or PDF.
func (s *AssistantService) ExtractCertificate(ctx context.Context, file models.UploadedFile) (*models.CertificateData, error) {
	if len(file.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if !s.allowed(file.MIMEType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported file type %q", file.MIMEType))
	}

	raw, err := s.call(ctx, "extract_certificate", ai.Request{
		Model:      s.config.ExtractionModel,
		Prompt:     extractionPrompt,
		Inline:     []ai.Blob{{Data: file.Data, MIMEType: file.MIMEType}},
		JSONFields: certificateFields,
	})
	if err != nil {
		return nil, err
	}

	data, err := parseCertificate(raw)
	if err != nil {
		s.logger.Warn("certificate response not parseable", zap.String("file", file.Name), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to parse certificate information from the AI model")
	}
	return data, nil
}

// VerifyBatch extracts every file concurrently. Results follow input order and a
// failing file is reported in its result without stopping the others.
func (s *AssistantService) VerifyBatch(ctx context.Context, files []models.UploadedFile) ([]models.VerificationResult, error) {
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "select one or more files to verify")
	}

	results := make([]models.VerificationResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrency)

	for i, file := range files {
		g.Go(func() error {
			result := models.VerificationResult{
				FileName:    file.Name,
				ImageBase64: base64.StdEncoding.EncodeToString(file.Data),
				MIMEType:    file.MIMEType,
			}
			data, err := s.ExtractCertificate(gctx, file)
			if err != nil {
				result.Status = models.VerificationFailed
				result.Error = appErrors.FromError(err).Message
			} else {
				result.Status = models.VerificationVerified
				result.Data = data
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "verification cancelled")
	}

	failed := 0
	for _, result := range results {
		if result.Status == models.VerificationFailed {
			failed++
		}
	}
	s.logger.Info("certificate batch verified", zap.Int("files", len(files)), zap.Int("failed", failed))
	return results, nil
}

func (s *AssistantService) call(ctx context.Context, operation string, req ai.Request) (string, error) {
	if s.model == nil {
		return "", appErrors.Clone(appErrors.ErrUpstream, "AI model is not configured")
	}
	start := time.Now()
	text, err := s.model.Generate(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordAICall(operation, err, time.Since(start))
	}
	if err != nil {
		s.logger.Error("ai call failed", zap.String("operation", operation), zap.String("model", req.Model), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	return text, nil
}

func (s *AssistantService) allowed(mimeType string) bool {
	if len(s.config.AllowedMIME) == 0 {
		return strings.HasPrefix(mimeType, "image/")
	}
	for _, candidate := range s.config.AllowedMIME {
		if strings.EqualFold(candidate, mimeType) {
			return true
		}
	}
	return false
}

type extractedCertificate struct {
	RecipientName    string `json:"recipientName"`
	CertificateID    string `json:"certificateId"`
	CourseTitle      string `json:"courseTitle"`
	IssuingAuthority string `json:"issuingAuthority"`
	IssueDate        string `json:"issueDate"`
}

func parseCertificate(raw string) (*models.CertificateData, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed extractedCertificate
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}
	return &models.CertificateData{
		RecipientName:    parsed.RecipientName,
		CertificateID:    parsed.CertificateID,
		CourseTitle:      parsed.CourseTitle,
		IssuingAuthority: parsed.IssuingAuthority,
		IssueDate:        parsed.IssueDate,
	}, nil
}
