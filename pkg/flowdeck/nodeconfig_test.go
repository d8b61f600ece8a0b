package flowdeck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_MatchesType(t *testing.T) {
	for _, nt := range []NodeType{
		TypeStart, TypeCustomPrompt, TypeKnowledgeLLM, TypeDocument,
		TypeURL, TypeTelephone, TypeEnd, NodeType("Something Else"),
	} {
		t.Run(string(nt), func(t *testing.T) {
			assert.Equal(t, nt, DefaultConfig(nt).NodeType())
		})
	}
}

func TestNodeType_Groups(t *testing.T) {
	assert.True(t, TypeCustomPrompt.IsLLM())
	assert.True(t, TypeKnowledgeLLM.IsLLM())
	assert.True(t, TypeDocument.IsKnowledge())
	assert.True(t, TypeURL.IsKnowledge())
	assert.False(t, TypeTelephone.IsLLM())
	assert.False(t, TypeTelephone.IsKnowledge())
	assert.True(t, TypeEnd.Known())
	assert.False(t, NodeType("end").Known())
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name string
		t    NodeType
		data map[string]any
		want NodeConfig
	}{
		{
			name: "prompt with string slider values",
			t:    TypeCustomPrompt,
			data: map[string]any{"prompt": "be brief", "maxTokens": "512", "topP": "0.5"},
			want: PromptConfig{Prompt: "be brief", Model: DefaultModel, Temperature: 0.7, TopP: 0.5, MaxTokens: 512},
		},
		{
			name: "knowledge llm defaults",
			t:    TypeKnowledgeLLM,
			data: nil,
			want: KnowledgeLLMConfig{Model: DefaultModel, ChunkSize: 4000, ChunkOverlap: 1000, TopK: 4},
		},
		{
			name: "document",
			t:    TypeDocument,
			data: map[string]any{"fileName": "faq.pdf", "contentType": "application/pdf"},
			want: DocumentConfig{FileName: "faq.pdf", ContentType: "application/pdf"},
		},
		{
			name: "url",
			t:    TypeURL,
			data: map[string]any{"url": "https://example.com"},
			want: URLConfig{URL: "https://example.com"},
		},
		{
			name: "unknown type keeps data",
			t:    NodeType("Webhook"),
			data: map[string]any{"endpoint": "https://hook"},
			want: RawConfig{Type: "Webhook", Data: map[string]any{"endpoint": "https://hook"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeConfig(tt.t, tt.data))
		})
	}
}

func TestDecodeConfig_TelephoneLegacyShape(t *testing.T) {
	data := map[string]any{
		"setVapi": map[string]any{
			"firstMessage": "Halo!",
			"model": map[string]any{
				"provider":    "openai",
				"model":       "gpt-4",
				"temperature": 0.3,
				"maxTokens":   float64(100),
				"messages": []any{
					map[string]any{"role": "system", "content": "You sell shoes."},
				},
			},
			"voice": map[string]any{"provider": "11labs", "voiceId": "burt"},
		},
	}

	cfg := DecodeConfig(TypeTelephone, data).(TelephoneConfig)
	assert.Equal(t, "Halo!", cfg.FirstMessage)
	assert.Equal(t, "You sell shoes.", cfg.SystemPrompt)
	assert.Equal(t, "gpt-4", cfg.Model)
	assert.Equal(t, "burt", cfg.VoiceID)
	assert.Equal(t, 100, cfg.MaxTokens)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
}

func TestDocumentConfig_HasFile(t *testing.T) {
	assert.False(t, DocumentConfig{}.HasFile())
	assert.True(t, DocumentConfig{FileName: "a.pdf"}.HasFile())
	assert.True(t, DocumentConfig{DocumentID: "doc-1"}.HasFile())
}
