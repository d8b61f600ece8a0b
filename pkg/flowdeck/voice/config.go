package voice

import "github.com/randalmurphal/flowdeck/pkg/flowdeck"

// Transcriber defaults for dashboard calls.
const (
	DefaultTranscriberProvider = "deepgram"
	DefaultTranscriberModel    = "nova-2"
	DefaultTranscriberLanguage = "id"
	DefaultEndCallMessage      = "terimakasih"
)

// SessionConfig is the assistant definition sent to the voice provider.
type SessionConfig struct {
	FirstMessage   string      `json:"firstMessage,omitempty"`
	Transcriber    Transcriber `json:"transcriber"`
	Model          ModelConfig `json:"model"`
	Voice          VoiceConfig `json:"voice"`
	EndCallMessage string      `json:"endCallMessage,omitempty"`
}

// Transcriber selects the speech-to-text engine.
type Transcriber struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// ModelConfig selects the language model driving the conversation.
type ModelConfig struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Messages    []ModelMessage `json:"messages,omitempty"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"maxTokens,omitempty"`
}

// ModelMessage is a seed message of the conversation.
type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VoiceConfig selects the text-to-speech voice.
type VoiceConfig struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

// SystemPrompt returns the content of the first system message.
func (c SessionConfig) SystemPrompt() string {
	for _, m := range c.Model.Messages {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

// NewSessionConfig builds the session for a Telephone node. Empty fields
// take the node defaults.
func NewSessionConfig(cfg flowdeck.TelephoneConfig) SessionConfig {
	def, _ := flowdeck.DefaultConfig(flowdeck.TypeTelephone).(flowdeck.TelephoneConfig)

	voiceProvider := orDefault(cfg.VoiceProvider, def.VoiceProvider)
	system := orDefault(cfg.SystemPrompt, def.SystemPrompt)

	return SessionConfig{
		FirstMessage: cfg.FirstMessage,
		Transcriber: Transcriber{
			Provider: DefaultTranscriberProvider,
			Model:    DefaultTranscriberModel,
			Language: DefaultTranscriberLanguage,
		},
		Model: ModelConfig{
			Provider:    orDefault(cfg.Provider, def.Provider),
			Model:       orDefault(cfg.Model, def.Model),
			Messages:    []ModelMessage{{Role: "system", Content: system}},
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		Voice: VoiceConfig{
			Provider: voiceProvider,
			VoiceID:  orDefault(cfg.VoiceID, def.VoiceID),
		},
		EndCallMessage: DefaultEndCallMessage,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
