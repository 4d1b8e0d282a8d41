// Package providers wraps the hosted AI services and media tools that jobs
// call: text and image generation, transcription and reel download.
package providers

import (
	"context"

	"github.com/postwright/postwright/pkg/errors"
)

// ErrNoImageData is returned when the image model answered without an image.
// Jobs treat it as a signal to fall back, not as a failure.
var ErrNoImageData = errors.New(errors.ErrProvider, "no image data in response")

// TextResult is one text generation.
type TextResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TokensUsed       int
	// Cached is set when the result was served from the prompt cache and
	// no provider call was billed.
	Cached bool
}

// TextGenerator produces text from a system instruction and a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (TextResult, error)
}

// ImageResult is one generated image.
type ImageResult struct {
	Data     []byte
	MIMEType string
	Model    string
}

// ImageGenerator produces an image from a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (ImageResult, error)
}

// Transcript is the text of an audio file.
type Transcript struct {
	Text            string
	DurationSeconds float64
	Model           string
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// Downloader fetches remote media to a local file and returns its path.
type Downloader interface {
	Fetch(ctx context.Context, url string) (string, error)
}
