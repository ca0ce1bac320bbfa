package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
)

const testdataDir = "testdata"

// recordHandler keeps every slog record for assertions.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

// stubFetcher serves from testdata and replaces selected paths.
type stubFetcher struct {
	base     Fetcher
	override map[string][]byte
	fail     map[string]error
}

func (f *stubFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err, ok := f.fail[name]; ok {
		return nil, err
	}
	if data, ok := f.override[name]; ok {
		return data, nil
	}
	return f.base.Fetch(ctx, name)
}

func newTestLayers(t *testing.T) *LayerService {
	t.Helper()
	layers, err := NewLayerService(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return layers
}

func newTestAssembler(t *testing.T, f Fetcher) (*Assembler, *recordHandler) {
	t.Helper()
	h := &recordHandler{}
	if f == nil {
		f = NewDirFetcher(testdataDir)
	}
	return NewAssembler(newTestLayers(t), f, slog.New(h)), h
}

var errUnreachable = errors.New("connection refused")
