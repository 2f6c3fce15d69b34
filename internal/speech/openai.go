package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fyrsmithlabs/voicematch/internal/config"
)

// OpenAIConfig configures the OpenAI speech backend.
type OpenAIConfig struct {
	APIKey   config.Secret
	BaseURL  string
	TTSModel string
	STTModel string
}

// OpenAI synthesizes with the TTS endpoint and transcribes with Whisper.
type OpenAI struct {
	client   *openai.Client
	ttsModel openai.SpeechModel
	sttModel string
}

// NewOpenAI builds an OpenAI backend.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("openai api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey.Value())
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	o := &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		ttsModel: openai.TTSModel1,
		sttModel: openai.Whisper1,
	}
	if cfg.TTSModel != "" {
		o.ttsModel = openai.SpeechModel(cfg.TTSModel)
	}
	if cfg.STTModel != "" {
		o.sttModel = cfg.STTModel
	}
	return o, nil
}

// Synthesize renders word as mp3 in the profile's voice.
func (o *OpenAI) Synthesize(ctx context.Context, word string, profile VoiceProfile) ([]byte, error) {
	if strings.TrimSpace(word) == "" {
		return nil, classify("synthesize", errEmptyInput)
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.ttsModel,
		Input:          word,
		Voice:          openai.SpeechVoice(profile.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classify("synthesize "+profile.String(), err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, classify("read speech", err)
	}
	return audio, nil
}

// Transcribe sends the clip to Whisper and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, name, language string) (string, error) {
	if len(audio) == 0 {
		return "", classify("transcribe "+name, errEmptyInput)
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.sttModel,
		FilePath: name,
		Reader:   bytes.NewReader(audio),
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", classify("transcribe "+name, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
