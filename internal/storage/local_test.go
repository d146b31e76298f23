package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "uploads")

		storage, err := NewLocalStorage(tempDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}

		info, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "dreamvisualizer")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data and keeps extension", func(t *testing.T) {
		ctx := context.Background()

		path, err := storage.SaveTemp(ctx, "dream.webm", bytes.NewReader([]byte("audio data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		base := filepath.Base(path)
		if !strings.HasPrefix(base, "dream_") || !strings.HasSuffix(base, ".webm") {
			t.Errorf("unexpected file name %s", base)
		}
		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("file %s written outside %s", path, storage.TempDir())
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "audio data" {
			t.Errorf("got %q, want %q", string(content), "audio data")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestTempPattern(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"dream.webm", "dream_*.webm"},
		{"My Dream.M4A", "My_Dream_*.m4a"},
		{"../../etc/passwd", "passwd_*"},
		{"", "upload_*"},
		{".hidden", "upload_*.hidden"},
		{"clip.tar.gz", "clip_tar_*.gz"},
		{"weird.ext with space", "weird_*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tempPattern(tt.name); got != tt.want {
				t.Errorf("tempPattern(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, "cleanup", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveTemp() error = %v", err)
			}
			paths = append(paths, path)
		}

		if err := storage.CleanupTemp(ctx, paths); err != nil {
			t.Fatalf("CleanupTemp() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		if err := storage.CleanupTemp(ctx, []string{"/non/existent/file"}); err != nil {
			t.Errorf("CleanupTemp() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.CleanupTemp(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_UploadToS3(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.UploadToS3(context.Background(), "key", bytes.NewReader([]byte("data")))
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}
