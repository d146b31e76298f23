package video

import (
	"context"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// mockAPI is a testify mock of the remote video API.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PostJSON(ctx context.Context, path string, payload any) (map[string]any, error) {
	args := m.Called(ctx, path, payload)
	resp, _ := args.Get(0).(map[string]any)
	return resp, args.Error(1)
}

func (m *mockAPI) GetJSON(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	args := m.Called(ctx, path, query)
	resp, _ := args.Get(0).(map[string]any)
	return resp, args.Error(1)
}

func (m *mockAPI) Download(ctx context.Context, rawURL, destPath string) error {
	args := m.Called(ctx, rawURL, destPath)
	return args.Error(0)
}

func (m *mockAPI) URL(segments ...string) string {
	return "https://api.example.com/v1/" + strings.Join(segments, "/")
}

// writeFile is a Run hook that materialises a successful download.
func writeFile(content string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		_ = os.WriteFile(args.String(2), []byte(content), 0600)
	}
}

// fakeSleeper records waits without blocking.
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
	// cancelAfter makes the n-th Sleep (1-based) fail with context.Canceled.
	cancelAfter int
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	if f.cancelAfter > 0 && len(f.waits) >= f.cancelAfter {
		return context.Canceled
	}
	return ctx.Err()
}

func (f *fakeSleeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waits)
}
