package intelligence

import (
	"context"
	"fmt"
	"strings"

	"autodiag/models"
	"autodiag/utils"

	genai "github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

const maxImagesPerAnalysis = 4

// GeminiAnalyzer asks a Gemini model for a JSON diagnosis.
type GeminiAnalyzer struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	fetcher Fetcher
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, modelName string, fetcher Fetcher) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	return &GeminiAnalyzer{client: client, model: model, fetcher: fetcher}, nil
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, in AnalysisInput) (*models.DiagnosisResult, error) {
	parts := []genai.Part{genai.Text(buildPrompt(in))}

	images, err := g.fetchImages(ctx, in.ImageURLs)
	if err != nil {
		// A report with text can still be analyzed without its photos.
		if strings.TrimSpace(in.Symptoms+in.Transcript) == "" {
			return nil, err
		}
		utils.GetLogger().Warn("analyzing without images", zap.Error(err))
	}
	parts = append(parts, images...)

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return ParseResult(sb.String())
}

func (g *GeminiAnalyzer) fetchImages(ctx context.Context, urls []string) ([]genai.Part, error) {
	if len(urls) > maxImagesPerAnalysis {
		urls = urls[:maxImagesPerAnalysis]
	}
	parts := make([]genai.Part, len(urls))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, url := range urls {
		i, url := i, url
		eg.Go(func() error {
			media, err := g.fetcher.Fetch(egCtx, url)
			if err != nil {
				return err
			}
			format := strings.TrimPrefix(media.MIMEType, "image/")
			if format == media.MIMEType {
				return fmt.Errorf("attachment %s is not an image (%s)", url, media.MIMEType)
			}
			parts[i] = genai.ImageData(format, media.Data)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}
