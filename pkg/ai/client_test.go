package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/noah-isme/repocerti-api/pkg/config"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), config.AIConfig{APIKey: "  "})
	assert.ErrorIs(t, err, ErrNotConfigured)

	var c *Client
	_, err = c.Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildContentsTextOnly(t *testing.T) {
	contents := buildContents(Request{Prompt: "write a section"})
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "write a section", contents[0].Parts[0].Text)
}

func TestBuildContentsWithInlineData(t *testing.T) {
	contents := buildContents(Request{
		Prompt: "extract",
		Inline: []Blob{{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}},
	})
	require.Len(t, contents, 1)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "extract", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", contents[0].Parts[1].InlineData.MIMEType)
}

func TestBuildConfigJSONMode(t *testing.T) {
	cfg := buildConfig(Request{
		Temperature: Float(0.5),
		JSONFields: []Field{
			{Name: "recipientName", Description: "name", Required: true},
			{Name: "certificateId"},
		},
	})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.5, *cfg.Temperature, 0.0001)
	assert.Nil(t, cfg.TopP)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
	assert.Len(t, cfg.ResponseSchema.Properties, 2)
	assert.Equal(t, []string{"recipientName"}, cfg.ResponseSchema.Required)
	assert.Equal(t, []string{"recipientName", "certificateId"}, cfg.ResponseSchema.PropertyOrdering)
}

func TestBuildConfigPlainText(t *testing.T) {
	cfg := buildConfig(Request{TopP: Float(0.95)})
	assert.Empty(t, cfg.ResponseMIMEType)
	assert.Nil(t, cfg.ResponseSchema)
	require.NotNil(t, cfg.TopP)
}
