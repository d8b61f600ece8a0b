package flowdeck

import (
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
)

// NodeConfig is the per-type configuration of a node.
// It is a closed set: the implementations in this package are the only ones.
type NodeConfig interface {
	// NodeType returns the node type this configuration belongs to.
	NodeType() NodeType

	// fields returns the configuration as canvas data fields.
	fields() map[string]any

	// merge returns a copy with the keys present in c applied.
	merge(c config.Config) NodeConfig
}

// Default model settings shared by the LLM node editors.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
)

// StartConfig marks the entry of a flow. It has no settings.
type StartConfig struct{}

// EndConfig marks the exit of a flow. It has no settings.
type EndConfig struct{}

// PromptConfig configures an LLM node driven by a custom system prompt.
type PromptConfig struct {
	Prompt           string
	Model            string
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	MaxTokens        int
}

// KnowledgeLLMConfig configures an LLM node answering from a knowledge source.
type KnowledgeLLMConfig struct {
	Model        string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// DocumentConfig references an uploaded document.
// DocumentID is set once the document has been saved to the document store.
type DocumentConfig struct {
	FileName    string
	ContentType string
	DocumentID  string
}

// HasFile reports whether a document has been attached to the node.
func (c DocumentConfig) HasFile() bool {
	return c.FileName != "" || c.DocumentID != ""
}

// URLConfig references a web page or repository to ingest.
type URLConfig struct {
	URL string
}

// TelephoneConfig holds the voice-call session parameters.
type TelephoneConfig struct {
	FirstMessage  string
	SystemPrompt  string
	VoiceID       string
	VoiceProvider string
	Provider      string
	Model         string
	Temperature   float64
	MaxTokens     int
}

// RawConfig keeps the data of node types the catalog does not know,
// so loading and saving such a flow does not lose anything.
type RawConfig struct {
	Type NodeType
	Data map[string]any
}

// DefaultConfig returns the configuration a new node of type t starts with.
func DefaultConfig(t NodeType) NodeConfig {
	switch t {
	case TypeStart:
		return StartConfig{}
	case TypeEnd:
		return EndConfig{}
	case TypeCustomPrompt:
		return PromptConfig{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			TopP:        1.0,
			MaxTokens:   2048,
		}
	case TypeKnowledgeLLM:
		return KnowledgeLLMConfig{
			Model:        DefaultModel,
			ChunkSize:    4000,
			ChunkOverlap: 1000,
			TopK:         4,
		}
	case TypeDocument:
		return DocumentConfig{}
	case TypeURL:
		return URLConfig{}
	case TypeTelephone:
		return TelephoneConfig{
			FirstMessage:  "Hi, this is your AI voice assistant. How can I help you today?",
			SystemPrompt:  "You are an assistant.",
			VoiceID:       "bVMeCyTHy58xNoL34h3p",
			VoiceProvider: "11labs",
			Provider:      "openai",
			Model:         DefaultModel,
			Temperature:   DefaultTemperature,
			MaxTokens:     250,
		}
	default:
		return RawConfig{Type: t, Data: map[string]any{}}
	}
}

// DecodeConfig builds the typed configuration for t from a canvas data bag.
// Missing fields take the defaults of DefaultConfig.
func DecodeConfig(t NodeType, data map[string]any) NodeConfig {
	return DefaultConfig(t).merge(config.New(data))
}

func (StartConfig) NodeType() NodeType { return TypeStart }
func (StartConfig) fields() map[string]any { return map[string]any{} }
func (c StartConfig) merge(config.Config) NodeConfig { return c }
func (EndConfig) NodeType() NodeType { return TypeEnd }
func (EndConfig) fields() map[string]any { return map[string]any{} }
func (c EndConfig) merge(config.Config) NodeConfig { return c }
func (PromptConfig) NodeType() NodeType { return TypeCustomPrompt }
func (KnowledgeLLMConfig) NodeType() NodeType { return TypeKnowledgeLLM }
func (DocumentConfig) NodeType() NodeType { return TypeDocument }
func (URLConfig) NodeType() NodeType { return TypeURL }
func (TelephoneConfig) NodeType() NodeType { return TypeTelephone }
func (c RawConfig) NodeType() NodeType { return c.Type }

func (c PromptConfig) fields() map[string]any {
	return map[string]any{
		"prompt":           c.Prompt,
		"model":            c.Model,
		"temperature":      c.Temperature,
		"topP":             c.TopP,
		"presencePenalty":  c.PresencePenalty,
		"frequencyPenalty": c.FrequencyPenalty,
		"maxTokens":        c.MaxTokens,
	}
}

func (c PromptConfig) merge(v config.Config) NodeConfig {
	c.Prompt = v.String("prompt", c.Prompt)
	c.Model = v.String("model", c.Model)
	c.Temperature = v.Float("temperature", c.Temperature)
	c.TopP = v.Float("topP", c.TopP)
	c.PresencePenalty = v.Float("presencePenalty", c.PresencePenalty)
	c.FrequencyPenalty = v.Float("frequencyPenalty", c.FrequencyPenalty)
	c.MaxTokens = v.Int("maxTokens", c.MaxTokens)
	return c
}

func (c KnowledgeLLMConfig) fields() map[string]any {
	return map[string]any{
		"model":        c.Model,
		"chunkSize":    c.ChunkSize,
		"chunkOverlap": c.ChunkOverlap,
		"topK":         c.TopK,
	}
}

func (c KnowledgeLLMConfig) merge(v config.Config) NodeConfig {
	c.Model = v.String("model", c.Model)
	c.ChunkSize = v.Int("chunkSize", c.ChunkSize)
	c.ChunkOverlap = v.Int("chunkOverlap", c.ChunkOverlap)
	c.TopK = v.Int("topK", c.TopK)
	return c
}

func (c DocumentConfig) fields() map[string]any {
	return map[string]any{
		"fileName":    c.FileName,
		"contentType": c.ContentType,
		"documentId":  c.DocumentID,
	}
}

func (c DocumentConfig) merge(v config.Config) NodeConfig {
	c.FileName = v.String("fileName", c.FileName)
	c.ContentType = v.String("contentType", c.ContentType)
	c.DocumentID = v.String("documentId", c.DocumentID)
	return c
}

func (c URLConfig) fields() map[string]any {
	return map[string]any{"url": c.URL}
}

func (c URLConfig) merge(v config.Config) NodeConfig {
	c.URL = v.String("url", c.URL)
	return c
}

func (c TelephoneConfig) fields() map[string]any {
	return map[string]any{
		"firstMessage":  c.FirstMessage,
		"systemPrompt":  c.SystemPrompt,
		"voiceId":       c.VoiceID,
		"voiceProvider": c.VoiceProvider,
		"provider":      c.Provider,
		"model":         c.Model,
		"temperature":   c.Temperature,
		"maxTokens":     c.MaxTokens,
	}
}

func (c TelephoneConfig) merge(v config.Config) NodeConfig {
	// Older flows keep the whole call object under "setVapi".
	if legacy, ok := v.Any("setVapi", nil).(map[string]any); ok {
		c = c.mergeLegacy(config.New(legacy))
	}
	c.FirstMessage = v.String("firstMessage", c.FirstMessage)
	c.SystemPrompt = v.String("systemPrompt", c.SystemPrompt)
	c.VoiceID = v.String("voiceId", c.VoiceID)
	c.VoiceProvider = v.String("voiceProvider", c.VoiceProvider)
	c.Provider = v.String("provider", c.Provider)
	c.Model = v.String("model", c.Model)
	c.Temperature = v.Float("temperature", c.Temperature)
	c.MaxTokens = v.Int("maxTokens", c.MaxTokens)
	return c
}

func (c TelephoneConfig) mergeLegacy(v config.Config) TelephoneConfig {
	c.FirstMessage = v.String("firstMessage", c.FirstMessage)
	if m, ok := v.Any("model", nil).(map[string]any); ok {
		model := config.New(m)
		c.Provider = model.String("provider", c.Provider)
		c.Model = model.String("model", c.Model)
		c.Temperature = model.Float("temperature", c.Temperature)
		c.MaxTokens = model.Int("maxTokens", c.MaxTokens)
		if msgs, ok := model.Any("messages", nil).([]any); ok && len(msgs) > 0 {
			if first, ok := msgs[0].(map[string]any); ok {
				c.SystemPrompt = config.New(first).String("content", c.SystemPrompt)
			}
		}
	}
	if voice, ok := v.Any("voice", nil).(map[string]any); ok {
		vc := config.New(voice)
		c.VoiceID = vc.String("voiceId", c.VoiceID)
		c.VoiceProvider = vc.String("provider", c.VoiceProvider)
	}
	return c
}

func (c RawConfig) fields() map[string]any {
	out := make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		out[k] = v
	}
	return out
}

func (c RawConfig) merge(v config.Config) NodeConfig {
	return RawConfig{Type: c.Type, Data: config.New(c.fields()).Merge(v.Raw()).Raw()}
}
