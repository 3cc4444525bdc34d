package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/repocerti-api/internal/dto"
	"github.com/noah-isme/repocerti-api/internal/models"
	"github.com/noah-isme/repocerti-api/pkg/ai"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []ai.Request
	respond  func(req ai.Request) (string, error)

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, req ai.Request) (string, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxInFlight)
		if current <= seen || atomic.CompareAndSwapInt32(&f.maxInFlight, seen, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

type aiCall struct {
	operation string
	failed    bool
}

type recordingAICalls struct {
	mu    sync.Mutex
	calls []aiCall
}

func (r *recordingAICalls) RecordAICall(operation string, err error, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, aiCall{operation: operation, failed: err != nil})
}

func newTestAssistant(gen Generator, metrics aiCallRecorder, concurrency int) *AssistantService {
	return NewAssistantService(gen, nil, zap.NewNop(), metrics, AssistantConfig{
		MaxConcurrency: concurrency,
		AllowedMIME:    []string{"image/png", "image/jpeg", "application/pdf"},
	})
}

func TestAssistantGenerateSection(t *testing.T) {
	gen := &fakeGenerator{respond: func(req ai.Request) (string, error) { return "## Findings", nil }}
	metrics := &recordingAICalls{}
	svc := newTestAssistant(gen, metrics, 1)

	text, err := svc.GenerateSection(context.Background(), dto.GenerateSectionRequest{Topic: " Renewable energy "})
	require.NoError(t, err)
	assert.Equal(t, "## Findings", text)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, "gemini-2.5-pro", req.Model)
	assert.Contains(t, req.Prompt, `"Renewable energy"`)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 0.0001)
	require.NotNil(t, req.TopP)
	assert.InDelta(t, 0.95, *req.TopP, 0.0001)
	assert.Equal(t, []aiCall{{operation: "generate_section"}}, metrics.calls)
}

func TestAssistantGenerateSectionRequiresTopic(t *testing.T) {
	gen := &fakeGenerator{respond: func(req ai.Request) (string, error) { return "x", nil }}
	svc := newTestAssistant(gen, nil, 1)

	_, err := svc.GenerateSection(context.Background(), dto.GenerateSectionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, gen.requests)
}

func TestAssistantImproveTextUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{respond: func(req ai.Request) (string, error) { return "", errors.New("quota exceeded") }}
	metrics := &recordingAICalls{}
	svc := newTestAssistant(gen, metrics, 1)

	_, err := svc.ImproveText(context.Background(), dto.ImproveTextRequest{Text: "teh report"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, "failed to communicate with the AI model", appErr.Message)

	require.Len(t, gen.requests, 1)
	assert.InDelta(t, 0.5, *gen.requests[0].Temperature, 0.0001)
	assert.Nil(t, gen.requests[0].TopP)
	assert.True(t, strings.HasSuffix(gen.requests[0].Prompt, "teh report"))
	assert.Equal(t, []aiCall{{operation: "improve_text", failed: true}}, metrics.calls)
}

func TestAssistantWithoutModel(t *testing.T) {
	svc := newTestAssistant(nil, nil, 1)
	_, err := svc.ImproveText(context.Background(), dto.ImproveTextRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
}

func TestAssistantExtractCertificate(t *testing.T) {
	gen := &fakeGenerator{respond: func(req ai.Request) (string, error) {
		return "```json\n{\"recipientName\":\"Ana Lopez\",\"courseTitle\":\"Robotics\",\"issuingAuthority\":\"STEM Board\",\"issueDate\":\"2024-05-01\"}\n```", nil
	}}
	svc := newTestAssistant(gen, nil, 1)

	data, err := svc.ExtractCertificate(context.Background(), models.UploadedFile{Name: "a.png", MIMEType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lopez", data.RecipientName)
	assert.Equal(t, "", data.CertificateID)
	assert.Equal(t, "Robotics", data.CourseTitle)
	assert.Equal(t, "STEM Board", data.IssuingAuthority)
	assert.Equal(t, "2024-05-01", data.IssueDate)

	req := gen.requests[0]
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	require.Len(t, req.Inline, 1)
	assert.Equal(t, "image/png", req.Inline[0].MIMEType)
	assert.Len(t, req.JSONFields, 5)
}

func TestAssistantExtractCertificateRejectsInput(t *testing.T) {
	gen := &fakeGenerator{respond: func(req ai.Request) (string, error) { return "not json", nil }}
	svc := newTestAssistant(gen, nil, 1)

	_, err := svc.ExtractCertificate(context.Background(), models.UploadedFile{Name: "a.gif", MIMEType: "image/gif", Data: []byte("gif")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ExtractCertificate(context.Background(), models.UploadedFile{Name: "empty.png", MIMEType: "image/png"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ExtractCertificate(context.Background(), models.UploadedFile{Name: "a.png", MIMEType: "image/png", Data: []byte("png")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "failed to parse certificate information")
}

func TestAssistantVerifyBatchKeepsOrderAndCapturesFailures(t *testing.T) {
	gen := &fakeGenerator{
		delay: 5 * time.Millisecond,
		respond: func(req ai.Request) (string, error) {
			name := string(req.Inline[0].Data)
			if name == "broken" {
				return "", errors.New("model unavailable")
			}
			return `{"recipientName":"` + name + `","certificateId":"ID-1","courseTitle":"c","issuingAuthority":"a","issueDate":"d"}`, nil
		},
	}
	svc := newTestAssistant(gen, nil, 2)

	files := []models.UploadedFile{
		{Name: "one.png", MIMEType: "image/png", Data: []byte("one")},
		{Name: "two.jpg", MIMEType: "image/jpeg", Data: []byte("broken")},
		{Name: "three.pdf", MIMEType: "application/pdf", Data: []byte("three")},
		{Name: "four.bmp", MIMEType: "image/bmp", Data: []byte("four")},
		{Name: "five.png", MIMEType: "image/png", Data: []byte("five")},
	}
	results, err := svc.VerifyBatch(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, len(files))

	for i, result := range results {
		assert.Equal(t, files[i].Name, result.FileName)
		assert.NotEmpty(t, result.ImageBase64)
	}
	assert.Equal(t, models.VerificationVerified, results[0].Status)
	assert.Equal(t, "one", results[0].Data.RecipientName)
	assert.Equal(t, models.VerificationFailed, results[1].Status)
	assert.Nil(t, results[1].Data)
	assert.Equal(t, "failed to communicate with the AI model", results[1].Error)
	assert.Equal(t, models.VerificationVerified, results[2].Status)
	assert.Equal(t, models.VerificationFailed, results[3].Status)
	assert.Contains(t, results[3].Error, "unsupported file type")
	assert.Equal(t, models.VerificationVerified, results[4].Status)

	assert.LessOrEqual(t, atomic.LoadInt32(&gen.maxInFlight), int32(2))
	assert.Len(t, gen.requests, 4)
}

func TestAssistantVerifyBatchRequiresFiles(t *testing.T) {
	svc := newTestAssistant(&fakeGenerator{}, nil, 1)
	_, err := svc.VerifyBatch(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestParseCertificateFences(t *testing.T) {
	data, err := parseCertificate("  ```\n{\"recipientName\":\"Bo\"}\n```  ")
	require.NoError(t, err)
	assert.Equal(t, "Bo", data.RecipientName)
	assert.Equal(t, "", data.IssueDate)

	_, err = parseCertificate("```json\n[1,2]\n```")
	assert.Error(t, err)
}
