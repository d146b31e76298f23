package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutput(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		wantOK   bool
		wantFile string
	}{
		{
			name: "array prefers video typed element",
			payload: map[string]any{"output": []any{
				map[string]any{"type": "image", "file_id": "img"},
				map[string]any{"type": "VIDEO", "file_id": "vid"},
			}},
			wantOK:   true,
			wantFile: "vid",
		},
		{
			name: "array falls back to first element",
			payload: map[string]any{"output": []any{
				map[string]any{"type": "thumbnail", "file_id": "first"},
				map[string]any{"type": "audio", "file_id": "second"},
			}},
			wantOK:   true,
			wantFile: "first",
		},
		{
			name:     "object used directly",
			payload:  map[string]any{"output": map[string]any{"file_id": "obj"}},
			wantOK:   true,
			wantFile: "obj",
		},
		{
			name:    "empty array",
			payload: map[string]any{"output": []any{}},
		},
		{
			name:    "missing output",
			payload: map[string]any{"status": "completed"},
		},
		{
			name:    "output of wrong type",
			payload: map[string]any{"output": "oops"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, ok := ResolveOutput(tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantFile, desc.FileID())
			}
		})
	}
}

func TestExtractURL_Shapes(t *testing.T) {
	const want = "https://cdn.example.com/v.mp4"

	tests := []struct {
		name string
		node map[string]any
	}{
		{"download_url", map[string]any{"download_url": want}},
		{"url", map[string]any{"url": want}},
		{"content_url", map[string]any{"content_url": want}},
		{"uri", map[string]any{"uri": want}},
		{"nested file", map[string]any{"file": map[string]any{"url": want}}},
		{"data array", map[string]any{"data": []any{map[string]any{"id": "x"}, map[string]any{"url": want}}}},
		{"sources array", map[string]any{"sources": []any{map[string]any{"uri": want}}}},
		{"sources object", map[string]any{"sources": map[string]any{"content_url": want}}},
		{"formats array", map[string]any{"formats": []any{map[string]any{"download_url": want}}}},
		{"media array", map[string]any{"media": []any{map[string]any{"url": want}}}},
		{"media object", map[string]any{"media": map[string]any{"url": want}}},
		{"deeply nested", map[string]any{"file": map[string]any{"media": map[string]any{"sources": []any{map[string]any{"url": want}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, ExtractURL(tt.node))
		})
	}
}

func TestExtractURL_DirectFieldOrder(t *testing.T) {
	node := map[string]any{
		"uri":          "https://example.com/uri",
		"url":          "https://example.com/url",
		"download_url": "  ",
		"file":         map[string]any{"url": "https://example.com/nested"},
	}
	assert.Equal(t, "https://example.com/url", ExtractURL(node))
}

func TestExtractURL_NoURL(t *testing.T) {
	assert.Empty(t, ExtractURL(map[string]any{"file_id": "f", "data": []any{"not an object", 3.0}}))
	assert.Empty(t, ExtractURL(nil))
}

func TestExtractURL_DepthBounded(t *testing.T) {
	node := map[string]any{"url": "https://example.com/deep"}
	for i := 0; i < maxURLDepth+5; i++ {
		node = map[string]any{"file": node}
	}
	assert.Empty(t, ExtractURL(node))
}

func TestExtractURL_Idempotent(t *testing.T) {
	node := map[string]any{"sources": []any{map[string]any{"url": "https://example.com/a.webm"}}}
	first := ExtractURL(node)
	require.NotEmpty(t, first)
	assert.Equal(t, first, ExtractURL(node))
	assert.Equal(t, first, NewDescriptor(node).URL())
}

func TestInferExtension(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		opts Options
		want string
	}{
		{"caller format wins", map[string]any{"format": "webm"}, Options{Format: ".MOV"}, "mov"},
		{"format field", map[string]any{"format": "webm", "content_type": "video/quicktime"}, Options{}, "webm"},
		{"content type", map[string]any{"content_type": "video/quicktime"}, Options{}, "quicktime"},
		{"non-video content type ignored", map[string]any{"content_type": "application/octet-stream", "file_extension": "mkv"}, Options{}, "mkv"},
		{"mime type", map[string]any{"mime_type": "video/webm; codecs=vp9"}, Options{}, "webm"},
		{"download url with query", map[string]any{"download_url": "https://cdn.example.com/path/clip.webm?sig=abc.def"}, Options{}, "webm"},
		{"download url without extension", map[string]any{"download_url": "https://cdn.example.com/path/clip", "filename": "clip.mkv"}, Options{}, "mkv"},
		{"plain url", map[string]any{"url": "https://cdn.example.com/clip.mov"}, Options{}, "mov"},
		{"nested file url", map[string]any{"file": map[string]any{"url": "https://cdn.example.com/a/clip.webm"}}, Options{}, "webm"},
		{"sources array", map[string]any{"sources": []any{map[string]any{"url": "https://cdn.example.com/clip.mkv?x=1"}}}, Options{}, "mkv"},
		{"file extension", map[string]any{"file_extension": ".avi"}, Options{}, "avi"},
		{"filename", map[string]any{"filename": "dream.final.mov"}, Options{}, "mov"},
		{"name", map[string]any{"name": "dream.webm"}, Options{}, "webm"},
		{"video prefix stripped", map[string]any{"format": "video/mp4"}, Options{}, "mp4"},
		{"default", map[string]any{}, Options{}, "mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := NewDescriptor(tt.raw)
			assert.Equal(t, tt.want, InferExtension(&desc, tt.opts))
		})
	}
}

func TestInferExtension_NilDescriptor(t *testing.T) {
	assert.Equal(t, "mp4", InferExtension(nil, Options{}))
	assert.Equal(t, "webm", InferExtension(nil, Options{Format: "webm"}))
}

func TestInferExtension_SanitizesUnsafeCharacters(t *testing.T) {
	desc := NewDescriptor(map[string]any{"format": "../../etc"})
	assert.Equal(t, "etc", InferExtension(&desc, Options{}))

	desc = NewDescriptor(map[string]any{"format": "/..//"})
	assert.Equal(t, "mp4", InferExtension(&desc, Options{}))
}
