package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const maxPromptRunes = 600

const systemInstruction = `You write prompts for an image-to-video model that animates a photo of a pet.
Rewrite the given dance description into one vivid sentence of at most 80 words.
Keep the pet recognisable, keep the whole body in frame, describe motion and lighting.
Answer with the prompt only, no quotes and no preamble.`

// Enhancer rewrites a style's base prompt with a Gemini text model.
type Enhancer struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewEnhancer(ctx context.Context, apiKey, model string, log *slog.Logger) (*Enhancer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Enhancer{client: client, model: model, log: log}, nil
}

func (e *Enhancer) Close() error {
	return e.client.Close()
}

// Enhance returns an improved prompt for the style. Callers fall back to the
// base prompt on error.
func (e *Enhancer) Enhance(ctx context.Context, styleLabel, basePrompt, hint string) (string, error) {
	model := e.client.GenerativeModel(e.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.SetTemperature(0.7)

	resp, err := model.GenerateContent(ctx, genai.Text(BuildMessage(styleLabel, basePrompt, hint)))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	enhanced := Clean(sb.String())
	if enhanced == "" {
		return "", fmt.Errorf("empty enhancement response")
	}
	e.log.Debug("prompt enhanced", "style", styleLabel, "prompt", enhanced)
	return enhanced, nil
}

// BuildMessage renders the user turn sent to the model.
func BuildMessage(styleLabel, basePrompt, hint string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dance style: %s\n", strings.TrimSpace(styleLabel))
	fmt.Fprintf(&sb, "Description: %s\n", strings.TrimSpace(basePrompt))
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(&sb, "User wish: %s\n", hint)
	}
	return sb.String()
}

// Clean strips wrapping quotes, collapses whitespace and caps the length.
func Clean(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	s = strings.Trim(s, "\"'`“”")
	s = strings.TrimSpace(strings.TrimPrefix(s, "Prompt:"))
	runes := []rune(s)
	if len(runes) > maxPromptRunes {
		s = strings.TrimSpace(string(runes[:maxPromptRunes]))
	}
	return s
}
