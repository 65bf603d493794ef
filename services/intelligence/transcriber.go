package intelligence

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// SpeechTranscriber uses Google Cloud Speech-to-Text for voice notes.
type SpeechTranscriber struct {
	client  *speech.Client
	fetcher Fetcher
}

func NewSpeechTranscriber(ctx context.Context, credentialsFile string, fetcher Fetcher) (*SpeechTranscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	return &SpeechTranscriber{client: client, fetcher: fetcher}, nil
}

func (s *SpeechTranscriber) Close() error {
	return s.client.Close()
}

func (s *SpeechTranscriber) Transcribe(ctx context.Context, audioURL, languageCode string) (string, error) {
	media, err := s.fetcher.Fetch(ctx, audioURL)
	if err != nil {
		return "", err
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	resp, err := s.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               languageCode,
			EnableAutomaticPunctuation: true,
			Model:                      "latest_short",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: media.Data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("speech recognition failed: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		}
	}
	return strings.Join(parts, " "), nil
}

// SpeechLanguage maps a settings language to a recognition locale.
func SpeechLanguage(lang string) string {
	switch lang {
	case "sw":
		return "sw-KE"
	case "fr":
		return "fr-FR"
	case "ar":
		return "ar-EG"
	case "es":
		return "es-ES"
	}
	return "en-US"
}
