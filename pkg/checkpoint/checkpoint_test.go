package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/logger"
	"xscraper/pkg/record"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(t.TempDir(), "followers:jack", logger.NewNopLogger())
	require.NoError(t, err)
	return mgr
}

func TestCreateAndLoad(t *testing.T) {
	mgr := newTestManager(t)
	assert.NotContains(t, filepath.Base(mgr.Path()), ":")

	missing, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, missing)

	cp, err := mgr.Create("followers:jack", "followers")
	require.NoError(t, err)
	assert.Equal(t, Version, cp.Version)
	assert.False(t, cp.UpdatedAt.IsZero())

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "followers:jack", loaded.Subject)
	assert.Equal(t, "followers", loaded.Surface)
	assert.NotNil(t, loaded.DownloadedMedia)
}

func TestUpdateProgress(t *testing.T) {
	mgr := newTestManager(t)
	cp, err := mgr.Create("followers:jack", "followers")
	require.NoError(t, err)

	records := []record.Record{
		record.New("alice", map[string]any{"display_name": "Alice"}),
		record.New("bob", nil),
	}
	require.NoError(t, mgr.UpdateProgress(cp, records, 7))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Records, 2)
	assert.Equal(t, "alice", loaded.Records[0].ID)
	assert.Equal(t, "Alice", loaded.Records[0].String("display_name"))
	assert.Equal(t, 7, loaded.Iterations)
}

func TestRecordDownload(t *testing.T) {
	mgr := newTestManager(t)
	cp, err := mgr.Create("posts:jack", "posts")
	require.NoError(t, err)

	const a, b = "https://pbs.twimg.com/media/A.jpg", "https://pbs.twimg.com/media/B.jpg"
	require.NoError(t, mgr.RecordDownload(cp, a, "1001_0.jpg"))
	assert.True(t, cp.IsMediaDownloaded(a))
	assert.False(t, cp.IsMediaDownloaded(b))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.True(t, loaded.IsMediaDownloaded(a), "downloads survive a reload")
}

func TestRejectsUnknownVersion(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"subject":"x","version":99}`), 0644))

	_, err := mgr.Load()
	assert.ErrorContains(t, err, "unsupported checkpoint version")
}

func TestBackupAndDelete(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.Backup(), "nothing to back up")

	_, err := mgr.Create("followers:jack", "followers")
	require.NoError(t, err)
	assert.True(t, mgr.Exists())

	require.NoError(t, mgr.Backup())
	assert.FileExists(t, mgr.Path()+".backup")
	assert.False(t, mgr.Exists(), "backup moves the file aside")

	_, err = mgr.Create("followers:jack", "followers")
	require.NoError(t, err)
	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())
	assert.NoError(t, mgr.Delete(), "deleting a missing checkpoint succeeds")
}

func TestInfo(t *testing.T) {
	mgr := newTestManager(t)
	info, err := mgr.Info()
	require.NoError(t, err)
	assert.Nil(t, info)

	cp, err := mgr.Create("followers:jack", "followers")
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateProgress(cp, []record.Record{record.New("a", nil)}, 2))

	info, err = mgr.Info()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 1, info.Records)
	assert.Equal(t, 2, info.Iterations)
	assert.Less(t, info.Age().Seconds(), 60.0)
}
