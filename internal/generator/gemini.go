package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// ErrModelsExhausted is returned when every model in the cascade was
// rate-limited.
var ErrModelsExhausted = errors.New("all models rate-limited")

// DefaultModels is the fallback cascade tried in order when a model reports
// quota exhaustion.
var DefaultModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
}

// Gemini implements Generator on top of the Gemini API.
type Gemini struct {
	client *genai.Client
	models []string
	log    *slog.Logger
}

// NewGemini builds a Gemini generator. models may be nil to use
// DefaultModels.
func NewGemini(ctx context.Context, apiKey string, models []string, log *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("missing Gemini API key")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	if len(models) == 0 {
		models = DefaultModels
	}
	return &Gemini{client: cli, models: models, log: log}, nil
}

func (g *Gemini) GenerateReply(ctx context.Context, history []Turn, instruction string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}

	text, err := g.generate(ctx, historyContents(history), cfg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// historyContents maps conversation turns onto typed Gemini contents.
// Assistant turns carry the model role; everything else is user material.
func historyContents(history []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

func (g *Gemini) GenerateSummary(ctx context.Context, req SummaryRequest) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(buildSummaryPrompt(req), genai.RoleUser)}

	text, err := g.generate(ctx, contents, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (g *Gemini) GenerateChapterSnippets(ctx context.Context, req ChapterRequest) ([]SnippetDraft, error) {
	prompt := buildSnippetPrompt(req)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	text, err := g.generate(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}
	return parseSnippetResponse(text)
}

// generate walks the model cascade, moving to the next model only on
// rate-limit errors. Any other failure is returned immediately.
func (g *Gemini) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	for _, model := range g.models {
		resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			if isRateLimited(err) {
				g.log.Warn("model rate-limited, trying next", "model", model)
				continue
			}
			return "", fmt.Errorf("model %s: %w", model, err)
		}
		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("model %s: empty response", model)
		}
		return text, nil
	}
	return "", ErrModelsExhausted
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "429")
}
