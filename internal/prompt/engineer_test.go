package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) PostJSON(ctx context.Context, path string, payload any) (map[string]any, error) {
	args := m.Called(ctx, path, payload)
	resp, _ := args.Get(0).(map[string]any)
	return resp, args.Error(1)
}

const structured = `{
  "sora_prompt": "  A tide of paper cranes at dawn.  ",
  "narrative_beats": ["wake on the shore", " ", "cranes lift off"],
  "visual_keywords": ["paper cranes", "tide"],
  "emotional_tone": "hopeful",
  "color_palette": "rose and slate",
  "negative_prompts": [],
  "camera_style": "floating dolly",
  "motion_style": "unhurried"
}`

func responsesReply(text string) map[string]any {
	return map[string]any{
		"output": []any{
			map[string]any{"type": "reasoning", "content": []any{}},
			map[string]any{
				"type": "message",
				"content": []any{
					map[string]any{"type": "refusal", "text": "no"},
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	}
}

func userContent(payload any) []map[string]any {
	input := payload.(map[string]any)["input"].([]map[string]any)
	return input[1]["content"].([]map[string]any)
}

func TestEngineer_Engineer(t *testing.T) {
	ctx := context.Background()
	poster := &mockPoster{}
	e := NewEngineer(poster, "gpt-5-mini", nil)

	poster.On("PostJSON", ctx, "responses", mock.MatchedBy(func(p any) bool {
		m := p.(map[string]any)
		format := m["text"].(map[string]any)["format"].(map[string]any)
		content := userContent(p)
		return m["model"] == "gpt-5-mini" &&
			format["type"] == "json_schema" &&
			format["strict"] == true &&
			len(content) == 1 &&
			strings.Contains(content[0]["text"].(string), "I dreamt of cranes")
	})).Return(responsesReply(structured), nil)

	pkg, err := e.Engineer(ctx, "  I dreamt of cranes ", "")
	require.NoError(t, err)
	assert.Equal(t, "A tide of paper cranes at dawn.", pkg.SoraPrompt)
	assert.Equal(t, []string{"wake on the shore", "cranes lift off"}, pkg.NarrativeBeats)
	assert.Nil(t, pkg.NegativePrompts)
	assert.Equal(t, "floating dolly", pkg.CameraStyle)
	poster.AssertExpectations(t)
}

func TestEngineer_WithImage(t *testing.T) {
	ctx := context.Background()
	poster := &mockPoster{}
	e := NewEngineer(poster, "gpt-5-mini", nil)

	img := filepath.Join(t.TempDir(), "ref.png")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	require.NoError(t, os.WriteFile(img, png, 0600))

	poster.On("PostJSON", ctx, "responses", mock.MatchedBy(func(p any) bool {
		content := userContent(p)
		if len(content) != 2 || content[1]["type"] != "input_image" {
			return false
		}
		return strings.HasPrefix(content[1]["image_url"].(string), "data:image/png;base64,") &&
			strings.Contains(content[0]["text"].(string), "reference image")
	})).Return(responsesReply(structured), nil)

	_, err := e.Engineer(ctx, "a dream", img)
	require.NoError(t, err)
	poster.AssertExpectations(t)
}

func TestEngineer_RejectsNonImageReference(t *testing.T) {
	poster := &mockPoster{}
	e := NewEngineer(poster, "m", nil)

	f := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(f, []byte("just text"), 0600))

	_, err := e.Engineer(context.Background(), "a dream", f)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	poster.AssertNotCalled(t, "PostJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngineer_EmptyNarrative(t *testing.T) {
	e := NewEngineer(&mockPoster{}, "m", nil)
	_, err := e.Engineer(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyNarrative)
}

func TestEngineer_NoStructuredOutput(t *testing.T) {
	ctx := context.Background()
	poster := &mockPoster{}
	e := NewEngineer(poster, "m", nil)

	poster.On("PostJSON", ctx, "responses", mock.Anything).
		Return(map[string]any{"output": []any{map[string]any{"content": []any{map[string]any{"type": "refusal"}}}}}, nil).Once()
	_, err := e.Engineer(ctx, "dream", "")
	assert.ErrorIs(t, err, ErrNoStructuredOutput)

	poster.On("PostJSON", ctx, "responses", mock.Anything).Return(map[string]any{}, nil).Once()
	_, err = e.Engineer(ctx, "dream", "")
	assert.ErrorIs(t, err, ErrNoStructuredOutput)
}

func TestEngineer_InvalidStructuredOutput(t *testing.T) {
	ctx := context.Background()
	poster := &mockPoster{}
	e := NewEngineer(poster, "m", nil)

	poster.On("PostJSON", ctx, "responses", mock.Anything).Return(responsesReply("not json"), nil)
	_, err := e.Engineer(ctx, "dream", "")
	assert.ErrorIs(t, err, ErrInvalidStructuredOutput)
}

func TestPackage_Normalize(t *testing.T) {
	p := Package{
		SoraPrompt:      " x ",
		VisualKeywords:  []string{"", "  a ", "b"},
		NegativePrompts: []string{" "},
		MotionStyle:     "\tslow\n",
	}.Normalize()

	assert.Equal(t, "x", p.SoraPrompt)
	assert.Equal(t, []string{"a", "b"}, p.VisualKeywords)
	assert.Nil(t, p.NegativePrompts)
	assert.Nil(t, p.NarrativeBeats)
	assert.Equal(t, "slow", p.MotionStyle)
}

func TestResponseFormat_RequiresEveryField(t *testing.T) {
	schema := ResponseFormat()["schema"].(map[string]any)
	props := schema["properties"].(map[string]any)
	required := schema["required"].([]string)

	assert.Len(t, required, len(props))
	for _, name := range required {
		assert.Contains(t, props, name)
	}
	assert.Equal(t, false, schema["additionalProperties"])
}
