// Package transcribe converts recorded audio reports to text.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jonathan/relief-intake/internal/llm"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = "gpt-4o-transcribe"

// Audio is one uploaded recording.
type Audio struct {
	Data     []byte
	Filename string
	// Language is an optional ISO-639-1 hint such as "fi".
	Language string
}

// Transcriber turns audio into text with a confidence in [0,1].
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, float64, error)
}

// Config configures an OpenAITranscriber
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAITranscriber uses the OpenAI audio transcription endpoint.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber. An API key is required.
func NewOpenAITranscriber(cfg Config) (*OpenAITranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAITranscriber{client: openai.NewClient(opts...), model: model}, nil
}

// Transcribe implements Transcriber. Confidence is exp(mean token log
// probability) when the model reports log probabilities, otherwise 0.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio Audio) (string, float64, error) {
	if len(audio.Data) == 0 {
		return "", 0, fmt.Errorf("audio is empty")
	}
	filename := audio.Filename
	if filename == "" {
		filename = "audio.webm"
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(audio.Data), filepath.Base(filename), contentType(audio.Data, filename)),
		Model:          openai.AudioModel(t.model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if supportsLogprobs(t.model) {
		params.Include = []openai.TranscriptionInclude{openai.TranscriptionIncludeLogprobs}
	}
	if audio.Language != "" {
		params.Language = openai.String(audio.Language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", 0, llm.Classify(llm.ProviderOpenAI, err)
	}

	logprobs := make([]float64, len(resp.Logprobs))
	for i, lp := range resp.Logprobs {
		logprobs[i] = lp.Logprob
	}
	return strings.TrimSpace(resp.Text), Confidence(logprobs), nil
}

// Confidence converts token log probabilities to a probability in [0,1].
func Confidence(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 0
	}
	var sum float64
	for _, lp := range logprobs {
		sum += lp
	}
	c := math.Exp(sum / float64(len(logprobs)))
	if math.IsNaN(c) {
		return 0
	}
	return math.Min(c, 1)
}

func supportsLogprobs(model string) bool {
	return strings.HasPrefix(model, "gpt-4o")
}

func contentType(data []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3", ".mpga", ".mpeg":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	}
	return http.DetectContentType(data)
}
