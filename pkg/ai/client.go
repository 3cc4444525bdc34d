// Package ai wraps the Gemini API client used by the document assistant.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/noah-isme/repocerti-api/pkg/config"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("ai: api key not configured")

// Blob is inline binary content sent alongside a prompt.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Field describes one string property of a structured response.
type Field struct {
	Name        string
	Description string
	Required    bool
}

// Request is a single-turn generation call.
type Request struct {
	Model       string
	Prompt      string
	Inline      []Blob
	Temperature *float32
	TopP        *float32
	// JSONFields switches the call to JSON mode with an object schema of string properties.
	JSONFields []Field
}

// Client issues generation calls against the Gemini API.
type Client struct {
	models  *genai.Models
	timeout time.Duration
}

// New builds a client from configuration.
func New(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{models: client.Models, timeout: cfg.Timeout}, nil
}

// Generate runs the request and returns the response text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c == nil || c.models == nil {
		return "", ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, req.Model, buildContents(req), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", req.Model, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}

func buildContents(req Request) []*genai.Content {
	if len(req.Inline) == 0 {
		return genai.Text(req.Prompt)
	}
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, blob := range req.Inline {
		parts = append(parts, genai.NewPartFromBytes(blob.Data, blob.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if len(req.JSONFields) == 0 {
		return cfg
	}

	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(req.JSONFields)),
	}
	for _, field := range req.JSONFields {
		schema.Properties[field.Name] = &genai.Schema{Type: genai.TypeString, Description: field.Description}
		schema.PropertyOrdering = append(schema.PropertyOrdering, field.Name)
		if field.Required {
			schema.Required = append(schema.Required, field.Name)
		}
	}
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema
	return cfg
}

// Float returns a pointer for optional sampling parameters.
func Float(v float32) *float32 {
	return genai.Ptr(v)
}
