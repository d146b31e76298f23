package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/dreamvisualizer-api/internal/pipeline"
	"github.com/maauso/dreamvisualizer-api/internal/prompt"
	"github.com/maauso/dreamvisualizer-api/internal/run"
	"github.com/maauso/dreamvisualizer-api/internal/speech"
	"github.com/maauso/dreamvisualizer-api/internal/storage"
	"github.com/maauso/dreamvisualizer-api/internal/video"
)

const (
	defaultMaxUploadBytes = 100 << 20
	multipartMemory       = 32 << 20
)

var videoExtensions = map[string]bool{".mp4": true, ".webm": true, ".mov": true}

// DreamRunner runs the full dream pipeline.
type DreamRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// VideoGenerator renders an existing prompt package.
type VideoGenerator interface {
	Generate(ctx context.Context, pkg prompt.Package, opts video.Options) (*video.Job, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	runner         DreamRunner
	videos         VideoGenerator
	runs           *run.Tracker
	uploads        storage.Storage
	videoDir       string
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
	now            func() time.Time
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of a /dreams request body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithClock overrides the time source used for elapsed times.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handlers) {
		h.now = now
	}
}

// NewHandlers creates a new Handlers instance. videoDir is the directory
// persisted videos are served from.
func NewHandlers(runner DreamRunner, videos VideoGenerator, runs *run.Tracker, uploads storage.Storage, videoDir string, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		runner:         runner,
		videos:         videos,
		runs:           runs,
		uploads:        uploads,
		videoDir:       videoDir,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateDream handles POST /dreams requests.
func (h *Handlers) CreateDream(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	audio, audioHeader, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required", "MISSING_AUDIO")
		return
	}
	defer audio.Close()

	var tempFiles []string
	defer func() {
		if err := h.uploads.CleanupTemp(context.WithoutCancel(ctx), tempFiles); err != nil {
			h.logger.Warn("failed to clean up uploads",
				slog.String("error", err.Error()),
			)
		}
	}()

	audioPath, err := h.saveUpload(ctx, "dream-narration", audioHeader, audio)
	if err != nil {
		h.logger.Error("failed to store audio upload",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store audio", "UPLOAD_FAILED")
		return
	}
	tempFiles = append(tempFiles, audioPath)

	h.logger.Info("received audio file",
		slog.String("filename", audioHeader.Filename),
		slog.String("content_type", audioHeader.Header.Get("Content-Type")),
		slog.Int64("size", audioHeader.Size),
	)

	var imagePath string
	if image, imageHeader, err := r.FormFile("image"); err == nil {
		imagePath, err = h.saveUpload(ctx, "dream-image", imageHeader, image)
		_ = image.Close()
		if err != nil {
			h.logger.Error("failed to store image upload",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to store image", "UPLOAD_FAILED")
			return
		}
		tempFiles = append(tempFiles, imagePath)
	}

	language := strings.TrimSpace(r.FormValue("language"))
	tracked, err := h.runs.Start(ctx, language)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create run", "RUN_CREATION_FAILED")
		return
	}

	outcome, err := h.runner.Run(ctx, pipeline.Request{
		Audio:              speech.Request{AudioPath: audioPath, Language: language},
		TranscriptOverride: r.FormValue("transcript_override"),
		ImagePath:          imagePath,
		Options:            video.Options{}.WithDefaults(),
		Observer:           h.runs.Observer(context.WithoutCancel(ctx), tracked),
	})
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.runs.Finish(context.WithoutCancel(ctx), tracked, outcome)

	elapsed := h.now().Sub(started)
	h.logger.Info("dream visualized",
		slog.String("run_id", tracked.ID),
		slog.Duration("elapsed", elapsed),
	)

	writeJSON(w, http.StatusOK, DreamResponse{
		RunID:      tracked.ID,
		Transcript: outcome.Transcript,
		Prompt:     outcome.Prompt,
		Video:      toVideoResponse(outcome.Video),
		ElapsedMS:  elapsed.Milliseconds(),
	})
}

// CreateVideo handles POST /videos requests.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	job, err := h.videos.Generate(r.Context(), req.Prompt.Normalize(), req.Options.toOptions())
	if err != nil {
		if errors.Is(err, video.ErrEmptyPrompt) || errors.Is(err, video.ErrInvalidOptions) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("video generation failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "video generation failed",
			Code:    "VIDEO_GENERATION_FAILED",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(job))
}

// GetVideo handles GET /videos/{filename} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	path, err := video.ResolveLocal(h.videoDir, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filename", "INVALID_FILENAME")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to open video",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read video", "VIDEO_READ_FAILED")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", videoContentType(f))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// LatestVideo handles GET /videos/latest requests.
func (h *Handlers) LatestVideo(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.videoDir)
	if err != nil {
		writeError(w, http.StatusNotFound, "no videos directory found", "NO_VIDEOS")
		return
	}

	var latest *LatestVideoResponse
	for _, e := range entries {
		if e.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.Modified) {
			latest = &LatestVideoResponse{
				Filename: e.Name(),
				URL:      video.RefPrefix + e.Name(),
				Modified: info.ModTime(),
			}
		}
	}

	if latest == nil {
		writeError(w, http.StatusNotFound, "no videos found", "NO_VIDEOS")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// GetRun handles GET /runs/{id} requests.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	found, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(found))
}

// ListRuns handles GET /runs requests.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs", "RUN_FETCH_FAILED")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, rn := range runs {
		resp = append(resp, toRunResponse(rn))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) writePipelineError(w http.ResponseWriter, err error) {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "pipeline execution failed",
			Code:    "PIPELINE_FAILED",
			Stage:   string(stageErr.Stage),
			Details: stageErr.Err.Error(),
		})
		return
	}
	h.logger.Error("unexpected pipeline error",
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "unexpected server error",
		Code:    "INTERNAL_ERROR",
		Details: err.Error(),
	})
}

// saveUpload stores an uploaded part under a name whose extension the
// transcription and vision endpoints can recognise.
func (h *Handlers) saveUpload(ctx context.Context, prefix string, header *multipart.FileHeader, file multipart.File) (string, error) {
	return h.uploads.SaveTemp(ctx, prefix+uploadSuffix(header, file), file)
}

var contentTypeSuffixes = []struct {
	marker string
	suffix string
}{
	{"webm", ".webm"},
	{"mp4", ".m4a"},
	{"mpeg", ".mp3"},
	{"mp3", ".mp3"},
	{"wav", ".wav"},
	{"ogg", ".ogg"},
	{"flac", ".flac"},
	{"png", ".png"},
	{"jpeg", ".jpg"},
	{"webp", ".webp"},
}

// uploadSuffix picks a file extension from the client file name, then the
// declared content type, then the sniffed content. It falls back to ".bin".
func uploadSuffix(header *multipart.FileHeader, file io.ReadSeeker) string {
	if ext := filepath.Ext(header.Filename); len(ext) > 1 {
		return ext
	}

	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	for _, cs := range contentTypeSuffixes {
		if strings.Contains(contentType, cs.marker) {
			return cs.suffix
		}
	}

	mt, err := mimetype.DetectReader(file)
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil || err != nil {
		return ".bin"
	}
	if ext := mt.Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

// videoContentType sniffs f and rewinds it. Anything not recognised as
// video is served as mp4.
func videoContentType(f io.ReadSeeker) string {
	mt, err := mimetype.DetectReader(f)
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil || err != nil {
		return "video/mp4"
	}
	if !strings.HasPrefix(mt.String(), "video/") {
		return "video/mp4"
	}
	return mt.String()
}

func toRunResponse(r *run.Run) RunResponse {
	resp := RunResponse{
		ID:          r.ID,
		Stage:       string(r.Stage),
		FailedStage: string(r.FailedStage),
		Error:       r.Error,
		Language:    r.Language,
		VideoID:     r.VideoID,
		VideoStatus: r.VideoStatus,
		DownloadURL: r.DownloadRef,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if !r.CompletedAt.IsZero() {
		completed := r.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
