package prompt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/dreamvisualizer-api/internal/openai"
)

// Static errors for prompt engineering.
var (
	// ErrEmptyNarrative is returned when there is no narrative to work from.
	ErrEmptyNarrative = errors.New("prompt: narrative is empty")
	// ErrNoStructuredOutput is returned when the reply carries no output_text block.
	ErrNoStructuredOutput = errors.New("prompt: no structured output in response")
	// ErrInvalidStructuredOutput is returned when the output_text is not the expected JSON.
	ErrInvalidStructuredOutput = errors.New("prompt: structured output is not valid JSON")
	// ErrUnsupportedImage is returned when the reference image is not an image.
	ErrUnsupportedImage = errors.New("prompt: reference file is not an image")
)

// Poster sends a JSON request and returns the decoded JSON reply.
type Poster interface {
	PostJSON(ctx context.Context, path string, payload any) (map[string]any, error)
}

// Engineer calls the Responses API with a strict JSON schema to turn a
// narrative into a Package.
type Engineer struct {
	client Poster
	model  string
	logger *slog.Logger
}

// NewEngineer creates an Engineer using the given text model.
func NewEngineer(client Poster, model string, logger *slog.Logger) *Engineer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engineer{client: client, model: model, logger: logger}
}

// Engineer builds a Package from the narrative. imagePath is optional; when
// set, the image is attached to the request as an inline data URL.
func (e *Engineer) Engineer(ctx context.Context, narrative, imagePath string) (*Package, error) {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return nil, ErrEmptyNarrative
	}

	userContent := []map[string]any{
		{"type": "input_text", "text": buildUserInstruction(narrative, imagePath != "")},
	}
	if imagePath != "" {
		dataURL, err := imageDataURL(imagePath)
		if err != nil {
			return nil, err
		}
		userContent = append(userContent, map[string]any{"type": "input_image", "image_url": dataURL})
	}

	payload := map[string]any{
		"model": e.model,
		"input": []map[string]any{
			{
				"role":    "system",
				"content": []map[string]any{{"type": "input_text", "text": SystemPrompt}},
			},
			{
				"role":    "user",
				"content": userContent,
			},
		},
		"text": map[string]any{"format": ResponseFormat()},
	}

	e.logger.Info("engineering video prompt",
		slog.String("model", e.model),
		slog.Int("narrative_chars", len(narrative)),
		slog.Bool("with_image", imagePath != ""),
	)

	resp, err := e.client.PostJSON(ctx, "responses", payload)
	if err != nil {
		return nil, fmt.Errorf("prompt: responses call: %w", err)
	}

	text, err := extractOutputText(resp)
	if err != nil {
		return nil, err
	}

	var pkg Package
	if err := json.Unmarshal([]byte(text), &pkg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStructuredOutput, err)
	}
	normalized := pkg.Normalize()
	return &normalized, nil
}

func buildUserInstruction(narrative string, withImage bool) string {
	var b strings.Builder
	b.WriteString("USER DREAM NARRATIVE:\n")
	b.WriteString(narrative)
	b.WriteString("\n\n----\nInstructions:\n")
	b.WriteString("1. Extract the underlying story arc, even if fragmented.\n")
	b.WriteString("2. Identify concrete symbols, locations, or motifs. Retain surreal transitions or emotional pivots.\n")
	b.WriteString("3. Craft a concise sora_prompt grounded in those beats, emphasising hazy dream cinematography.\n")
	b.WriteString("4. Populate all JSON fields; use \"none\" only when the user explicitly states the absence of detail.\n")
	if withImage {
		b.WriteString(imageInstruction)
		b.WriteString("\n")
	}
	return b.String()
}

// extractOutputText returns the first non-blank output_text block of a
// Responses API reply.
func extractOutputText(resp map[string]any) (string, error) {
	output, ok := openai.Array(resp, "output")
	if !ok {
		return "", fmt.Errorf("%w: missing output array", ErrNoStructuredOutput)
	}
	for _, item := range output {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, ok := openai.Array(obj, "content")
		if !ok {
			continue
		}
		for _, block := range content {
			b, ok := block.(map[string]any)
			if !ok || openai.String(b, "type") != "output_text" {
				continue
			}
			if text := openai.String(b, "text"); text != "" {
				return text, nil
			}
		}
	}
	return "", ErrNoStructuredOutput
}

func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is a server-side temp file
	if err != nil {
		return "", fmt.Errorf("prompt: read reference image: %w", err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrUnsupportedImage, mt.String())
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
