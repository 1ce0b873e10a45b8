package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
)

// MockClient is a mock media downloader
type MockClient struct {
	downloadDelay   time.Duration
	downloadError   error
	downloadCounter int32
}

func (m *MockClient) Download(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&m.downloadCounter, 1)
	if m.downloadDelay > 0 {
		select {
		case <-time.After(m.downloadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.downloadError != nil {
		return nil, m.downloadError
	}
	return []byte("mock media data"), nil
}

func (m *MockClient) GetDownloadCount() int {
	return int(atomic.LoadInt32(&m.downloadCounter))
}

// MockStorageManager is a mock media storage
type MockStorageManager struct {
	saved     map[string]bool
	saveError error
	mu        sync.Mutex
}

func NewMockStorageManager() *MockStorageManager {
	return &MockStorageManager{saved: make(map[string]bool)}
}

func (m *MockStorageManager) IsDownloaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[name]
}

func (m *MockStorageManager) SaveMedia(r io.Reader, name string) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[name] = true
	return nil
}

func (m *MockStorageManager) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func makeJobs(n int) []DownloadJob {
	jobs := make([]DownloadJob, n)
	for i := range jobs {
		jobs[i] = DownloadJob{
			URL:      fmt.Sprintf("https://pbs.twimg.com/media/m%d.jpg", i),
			RecordID: fmt.Sprintf("10%d", i),
			FileName: fmt.Sprintf("10%d_0.jpg", i),
		}
	}
	return jobs
}

func newTestPool(workers int, client MediaDownloader, store MediaStorage) *Pool {
	return NewPool(workers, client, store, ratelimit.NewTokenBucket(100, time.Second), logger.NewNopLogger())
}

func TestPoolDownloadsEveryJob(t *testing.T) {
	client := &MockClient{downloadDelay: 10 * time.Millisecond}
	store := NewMockStorageManager()

	var observed int32
	pool := newTestPool(3, client, store)
	pool.OnResult = func(DownloadResult) { atomic.AddInt32(&observed, 1) }

	results, summary := pool.Run(context.Background(), makeJobs(10))

	assert.Len(t, results, 10)
	assert.Equal(t, Summary{Downloaded: 10, Bytes: int64(10 * len("mock media data"))}, summary)
	assert.Equal(t, 10, client.GetDownloadCount())
	assert.Equal(t, 10, store.GetSavedCount())
	assert.Equal(t, int32(10), atomic.LoadInt32(&observed))
}

func TestPoolFailuresDoNotStopOthers(t *testing.T) {
	client := &MockClient{downloadError: fmt.Errorf("download error")}

	results, summary := newTestPool(2, client, NewMockStorageManager()).Run(context.Background(), makeJobs(5))

	assert.Equal(t, 5, summary.Failed)
	assert.Equal(t, 5, client.GetDownloadCount())
	for _, r := range results {
		assert.False(t, r.Success)
		assert.ErrorContains(t, r.Error, "download failed")
	}
}

func TestPoolSaveFailure(t *testing.T) {
	store := NewMockStorageManager()
	store.saveError = fmt.Errorf("disk full")

	results, summary := newTestPool(1, &MockClient{}, store).Run(context.Background(), makeJobs(1))

	require.Len(t, results, 1)
	assert.ErrorContains(t, results[0].Error, "save failed")
	assert.Equal(t, 1, summary.Failed)
}

func TestPoolRunsConcurrently(t *testing.T) {
	client := &MockClient{downloadDelay: 100 * time.Millisecond}

	start := time.Now()
	results, _ := newTestPool(5, client, NewMockStorageManager()).Run(context.Background(), makeJobs(10))

	// 5 workers, 10 jobs of 100ms: about 200ms
	assert.Less(t, time.Since(start), 600*time.Millisecond)
	assert.Len(t, results, 10)
}

func TestPoolSkipsStoredFiles(t *testing.T) {
	client := &MockClient{}
	store := NewMockStorageManager()
	store.saved["100_0.jpg"] = true
	store.saved["102_0.jpg"] = true

	results, summary := newTestPool(2, client, store).Run(context.Background(), makeJobs(4))

	assert.Len(t, results, 4)
	assert.Equal(t, 2, client.GetDownloadCount())
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 2, summary.Downloaded)
	assert.Equal(t, 4, store.GetSavedCount())
}

func TestPoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &MockClient{}
	results, summary := NewPool(2, client, NewMockStorageManager(), nil, nil).Run(ctx, makeJobs(6))

	assert.Len(t, results, 6)
	assert.Equal(t, 6, summary.Failed)
	assert.Zero(t, client.GetDownloadCount())
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}
