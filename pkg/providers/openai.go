package providers

import (
	"context"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/postwright/postwright/pkg/errors"
)

// OpenAIConfig configures an OpenAI client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Limiter *Limiter
	// MaxAudioBytes caps transcription uploads. Zero means
	// MaxTranscriptionBytes.
	MaxAudioBytes int64
}

// OpenAI generates text with chat completions and transcribes audio with
// the audio transcription endpoint.
type OpenAI struct {
	client   openai.Client
	model    string
	limiter  *Limiter
	maxAudio int64
}

// NewOpenAI creates an OpenAI client for one model. The SDK's own retries
// are disabled: jobs make a single attempt per call.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewValidationError("api_key", "openai API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxAudio := cfg.MaxAudioBytes
	if maxAudio <= 0 {
		maxAudio = MaxTranscriptionBytes
	}
	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		limiter:  cfg.Limiter,
		maxAudio: maxAudio,
	}, nil
}

// Generate implements TextGenerator.
func (o *OpenAI) Generate(ctx context.Context, system, prompt string) (TextResult, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return TextResult{}, errors.Mark(err, errors.ErrProvider)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: messages,
	})
	if err != nil {
		return TextResult{}, errors.Mark(errors.Wrapf(err, "openai %s", o.model), errors.ErrProvider)
	}
	if len(resp.Choices) == 0 {
		return TextResult{}, errors.Newf(errors.ErrProvider, "openai %s returned no choices", o.model)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return TextResult{}, errors.Newf(errors.ErrProvider, "openai %s returned no text", o.model)
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	return TextResult{
		Content:          content,
		Model:            model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TokensUsed:       int(resp.Usage.TotalTokens),
	}, nil
}

// Transcribe implements Transcriber. The duration is estimated from the
// file size.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	size, err := checkAudio(audioPath, o.maxAudio)
	if err != nil {
		return Transcript{}, err
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return Transcript{}, errors.Mark(err, errors.ErrTranscription)
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, errors.Mark(errors.Wrap(err, "open audio"), errors.ErrTranscription)
	}
	defer f.Close()

	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     f,
		Model:    openai.AudioModel(o.model),
		Language: openai.String("en"),
	})
	if err != nil {
		return Transcript{}, errors.Mark(errors.Wrapf(err, "transcribe with %s", o.model), errors.ErrTranscription)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Transcript{}, errors.New(errors.ErrTranscription, "transcription returned no text")
	}
	return Transcript{
		Text:            text,
		DurationSeconds: EstimateDuration(size),
		Model:           o.model,
	}, nil
}
