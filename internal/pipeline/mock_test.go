package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// --- Analyzer Mock ---

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) AnalyzeText(ctx context.Context, text string) (*model.TextAnalysis, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TextAnalysis), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*model.ImageAnalysis, error) {
	args := m.Called(ctx, image, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImageAnalysis), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeScreenshot(ctx context.Context, screenshot []byte, url, title, h1, paragraph string) (*model.TextAnalysis, error) {
	args := m.Called(ctx, screenshot, url, title, h1, paragraph)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TextAnalysis), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeParsedContent(ctx context.Context, url, title, h1, paragraph string) (*model.TextAnalysis, error) {
	args := m.Called(ctx, url, title, h1, paragraph)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TextAnalysis), args.Error(1)
}

// --- Renderer stub ---

// stubRenderer returns a snapshot per URL, or fallback for unknown URLs.
type stubRenderer struct {
	mu       sync.Mutex
	byURL    map[string]*model.PageSnapshot
	fallback *model.PageSnapshot
	calls    int
}

func (s *stubRenderer) Render(_ context.Context, url string) *model.PageSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if snap, ok := s.byURL[url]; ok {
		return snap
	}
	snap := *s.fallback
	snap.URL = url
	return &snap
}

// --- History stub ---

type failingHistory struct{}

func (failingHistory) Append(context.Context, model.HistoryEntry) error {
	return context.DeadlineExceeded
}

func (failingHistory) Recent(context.Context, int) ([]model.HistoryEntry, error) { return nil, nil }

func (failingHistory) Close() error { return nil }
