package tracker

import (
	"context"
	"fmt"
	"sync"
)

// fakeSource serves snapshot bodies from memory. Missing ids fail.
type fakeSource struct {
	mu    sync.Mutex
	files map[string]string
	calls []string
}

func newFakeSource(files map[string]string) *fakeSource {
	return &fakeSource{files: files}
}

func (f *fakeSource) FetchSnapshot(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fileID)
	body, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("gateway returned status 500 for file %s", fileID)
	}
	return []byte(body), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
