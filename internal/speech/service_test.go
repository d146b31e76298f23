package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/dreamvisualizer-api/internal/openai"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) PostMultipart(ctx context.Context, path string, fields map[string]string, file openai.FilePart) (map[string]any, error) {
	args := m.Called(ctx, path, fields, file)
	resp, _ := args.Get(0).(map[string]any)
	return resp, args.Error(1)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "dream.wav")
	// Minimal RIFF/WAVE header so content sniffing has something to match.
	header := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	require.NoError(t, os.WriteFile(p, append(header, make([]byte, 32)...), 0600))
	return p
}

func TestService_Transcribe(t *testing.T) {
	ctx := context.Background()
	up := &mockUploader{}
	svc := NewService(up, "gpt-4o-transcribe", nil)
	audio := writeAudio(t)
	temp := 0.2

	up.On("PostMultipart", ctx, "audio/transcriptions",
		map[string]string{"model": "gpt-4o-transcribe", "language": "es", "temperature": "0.2"},
		mock.MatchedBy(func(f openai.FilePart) bool {
			return f.FieldName == "file" && f.FileName == "dream.wav" && f.ContentType == "audio/wav" && len(f.Content) > 0
		}),
	).Return(map[string]any{
		"text":    "  I was flying over a city of glass.  ",
		"created": 1700000000.0,
		"segments": []any{
			map[string]any{"start": 0.0, "end": 2.5, "text": "I was flying"},
			"ignored",
			map[string]any{"start": 2.5, "end": 4.0, "text": "over a city of glass."},
		},
	}, nil)

	tr, err := svc.Transcribe(ctx, Request{AudioPath: audio, Language: "es", Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "I was flying over a city of glass.", tr.Text)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, Segment{Start: 2.5, End: 4.0, Text: "over a city of glass."}, tr.Segments[1])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tr.GeneratedAt)
	up.AssertExpectations(t)
}

func TestService_Transcribe_DefaultsCreatedToNow(t *testing.T) {
	ctx := context.Background()
	up := &mockUploader{}
	svc := NewService(up, "whisper-1", nil)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	up.On("PostMultipart", ctx, "audio/transcriptions", map[string]string{"model": "whisper-1"}, mock.Anything).
		Return(map[string]any{"text": "hello"}, nil)

	tr, err := svc.Transcribe(ctx, Request{AudioPath: writeAudio(t)})
	require.NoError(t, err)
	assert.Equal(t, now, tr.GeneratedAt)
	assert.Empty(t, tr.Segments)
}

func TestService_Transcribe_UnreadableAudio(t *testing.T) {
	up := &mockUploader{}
	svc := NewService(up, "m", nil)

	_, err := svc.Transcribe(context.Background(), Request{AudioPath: filepath.Join(t.TempDir(), "missing.webm")})
	assert.ErrorIs(t, err, ErrAudioNotReadable)
	up.AssertNotCalled(t, "PostMultipart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Transcribe_ClientError(t *testing.T) {
	ctx := context.Background()
	up := &mockUploader{}
	svc := NewService(up, "m", nil)

	up.On("PostMultipart", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, openai.ErrRateLimited)

	_, err := svc.Transcribe(ctx, Request{AudioPath: writeAudio(t)})
	assert.True(t, errors.Is(err, openai.ErrRateLimited))
}

func TestFromText(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tr := FromText("  one two three four five  ", now)
	assert.Equal(t, "one two three four five", tr.Text)
	require.Len(t, tr.Segments, 1)
	assert.InDelta(t, 3.0, tr.Segments[0].End, 1e-9)
	assert.Zero(t, tr.Segments[0].Start)
	assert.Equal(t, now, tr.GeneratedAt)

	short := FromText("hi", now)
	assert.InDelta(t, 1.0, short.Segments[0].End, 1e-9)
}
