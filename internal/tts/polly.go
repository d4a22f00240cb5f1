package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// pollyVoiceCatalog maps voice IDs to language and gender, used both for
// listVoices and to pick a language code for synthesis.
var pollyVoiceCatalog = []struct {
	Voice
	Lang types.LanguageCode
}{
	{Voice{ID: "Matthew", Name: "Matthew", Gender: "male"}, types.LanguageCodeEnUs},
	{Voice{ID: "Ruth", Name: "Ruth", Gender: "female"}, types.LanguageCodeEnUs},
	{Voice{ID: "Stephen", Name: "Stephen", Gender: "male"}, types.LanguageCodeEnUs},
	{Voice{ID: "Danielle", Name: "Danielle", Gender: "female"}, types.LanguageCodeEnUs},
	{Voice{ID: "Amy", Name: "Amy", Gender: "female"}, types.LanguageCodeEnGb},
	{Voice{ID: "Olivia", Name: "Olivia", Gender: "female"}, types.LanguageCodeEnAu},
	{Voice{ID: "Kajal", Name: "Kajal", Gender: "female"}, types.LanguageCodeEnIn},
}

// PollyAdapter wraps AWS Polly's generative engine.
type PollyAdapter struct {
	client *polly.Client
}

func NewPollyAdapter(ctx context.Context, creds Credentials) (*PollyAdapter, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for polly: %w", err)
	}
	return &PollyAdapter{client: polly.NewFromConfig(awsCfg)}, nil
}

func (a *PollyAdapter) Name() string { return "polly" }

func (a *PollyAdapter) ListVoices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(pollyVoiceCatalog))
	for _, v := range pollyVoiceCatalog {
		voices = append(voices, v.Voice)
	}
	return voices, nil
}

func (a *PollyAdapter) languageFor(voiceID string) types.LanguageCode {
	for _, v := range pollyVoiceCatalog {
		if v.ID == voiceID {
			return v.Lang
		}
	}
	return types.LanguageCodeEnUs
}

func (a *PollyAdapter) Synthesize(ctx context.Context, text string, opts SynthOptions) ([]byte, error) {
	outputFormat := types.OutputFormatMp3
	sampleRate := "24000"
	switch opts.Format {
	case FormatPCM:
		outputFormat = types.OutputFormatPcm
		sampleRate = "16000"
	case FormatWAV:
		outputFormat = types.OutputFormatPcm
		sampleRate = "16000"
	}
	if opts.SampleRate > 0 {
		sampleRate = fmt.Sprintf("%d", opts.SampleRate)
	}

	var data []byte
	err := WithRetry(ctx, func() error {
		input := &polly.SynthesizeSpeechInput{
			Engine:       types.EngineGenerative,
			OutputFormat: outputFormat,
			SampleRate:   &sampleRate,
			Text:         &text,
			TextType:     types.TextTypeText,
			VoiceId:      types.VoiceId(opts.VoiceID),
			LanguageCode: a.languageFor(opts.VoiceID),
		}
		if opts.SSML {
			input.TextType = types.TextTypeSsml
		}

		resp, err := a.client.SynthesizeSpeech(ctx, input)
		if err != nil {
			return classifyPollyError(err)
		}
		defer resp.AudioStream.Close()

		body, err := io.ReadAll(resp.AudioStream)
		if err != nil {
			return fmt.Errorf("read polly audio stream: %w", err)
		}
		data = body
		return nil
	})
	return data, err
}

func classifyPollyError(err error) error {
	// Polly throttling surfaces as a generic smithy error; treat any
	// SynthesizeSpeech failure as retryable and let WithRetry's attempt
	// cap bound the damage.
	return &RetryableError{StatusCode: 0, Body: err.Error()}
}

func (a *PollyAdapter) SynthesizeStream(ctx context.Context, text string, opts SynthOptions) (SynthResult, error) {
	audio, err := a.Synthesize(ctx, text, opts)
	if err != nil {
		return SynthResult{}, err
	}
	return SynthResult{Kind: KindStream, Stream: ChunkBytes(ctx, audio, 32*1024)}, nil
}

func (a *PollyAdapter) SynthesizeTimestamped(ctx context.Context, text string, voiceID string) (SynthResult, error) {
	return SynthResult{}, fmt.Errorf("polly adapter does not support timestamped synthesis")
}

func (a *PollyAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsStream:     true,
		SupportsTimestamps: false,
		NativeFormats:      []AudioFormat{FormatMP3, FormatPCM},
	}
}

func (a *PollyAdapter) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{OK: true, VoiceCount: len(pollyVoiceCatalog)}
}

func (a *PollyAdapter) Close() error { return nil }
