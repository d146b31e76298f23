package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/dreamvisualizer-api/internal/openai"
)

// ErrAudioNotReadable is returned when the audio file cannot be read.
var ErrAudioNotReadable = errors.New("speech: audio file is not readable")

// Uploader sends a multipart form and returns the decoded JSON reply.
type Uploader interface {
	PostMultipart(ctx context.Context, path string, fields map[string]string, file openai.FilePart) (map[string]any, error)
}

// Service transcribes audio through the audio/transcriptions endpoint.
type Service struct {
	client Uploader
	model  string
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a transcription Service for the given model.
func NewService(client Uploader, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, model: model, logger: logger, now: time.Now}
}

// Transcribe uploads the audio file and parses text, segments and the
// creation time from the reply.
func (s *Service) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	data, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAudioNotReadable, req.AudioPath, err)
	}

	fields := map[string]string{"model": s.model}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.Temperature != nil {
		fields["temperature"] = strconv.FormatFloat(*req.Temperature, 'f', -1, 64)
	}

	contentType := mimetype.Detect(data).String()
	s.logger.Info("transcribing audio",
		slog.String("model", s.model),
		slog.String("file", filepath.Base(req.AudioPath)),
		slog.String("content_type", contentType),
		slog.Int("bytes", len(data)),
	)

	resp, err := s.client.PostMultipart(ctx, "audio/transcriptions", fields, openai.FilePart{
		FieldName:   "file",
		FileName:    filepath.Base(req.AudioPath),
		ContentType: contentType,
		Content:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: transcription call: %w", err)
	}

	return &Transcript{
		Text:        openai.String(resp, "text"),
		Segments:    parseSegments(resp),
		GeneratedAt: s.createdAt(resp),
	}, nil
}

func parseSegments(resp map[string]any) []Segment {
	items, ok := openai.Array(resp, "segments")
	if !ok {
		return nil
	}
	segments := make([]Segment, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, _ := obj["start"].(float64)
		end, _ := obj["end"].(float64)
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  openai.String(obj, "text"),
		})
	}
	return segments
}

func (s *Service) createdAt(resp map[string]any) time.Time {
	if created, ok := resp["created"].(float64); ok {
		return time.Unix(int64(created), 0).UTC()
	}
	return s.now()
}
