package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/internal/downloader"
	"xscraper/pkg/checkpoint"
	"xscraper/pkg/collector"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/record"
	"xscraper/pkg/snapshot"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
)

func TestMain(m *testing.M) {
	ui.SetQuietMode(true)
	os.Exit(m.Run())
}

func profiles(ids ...string) []record.Record {
	out := make([]record.Record, len(ids))
	for i, id := range ids {
		out[i] = record.New(id, map[string]any{
			twitter.FieldHandle:      id,
			twitter.FieldDisplayName: strings.ToUpper(id),
		})
	}
	return out
}

// fakeView serves fixed pages and stays on the last one
type fakeView struct {
	pages   [][]record.Record
	pos     int
	closed  bool
	onAdv   func()
	advance int
}

func (v *fakeView) ExtractPage(ctx context.Context) ([]record.Record, error) {
	if len(v.pages) == 0 {
		return nil, nil
	}
	return v.pages[v.pos], nil
}

func (v *fakeView) AdvancePage(ctx context.Context) error {
	v.advance++
	if v.onAdv != nil {
		v.onAdv()
	}
	if v.pos < len(v.pages)-1 {
		v.pos++
	}
	return nil
}

func (v *fakeView) Close() error {
	v.closed = true
	return nil
}

type fakeOpener struct {
	views    []*fakeView
	err      error
	surfaces []twitter.Surface
}

func (o *fakeOpener) Open(ctx context.Context, surface twitter.Surface, subject string) (twitter.PageView, error) {
	o.surfaces = append(o.surfaces, surface)
	if o.err != nil {
		return nil, o.err
	}
	v := o.views[0]
	o.views = o.views[1:]
	return v, nil
}

type fakeMedia struct {
	mu   sync.Mutex
	urls []string
	fail map[string]bool
}

func (f *fakeMedia) Download(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.fail[url] {
		return nil, errs.New(errs.ErrorTypeNetwork, "connection reset")
	}
	return []byte("image:" + url), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Collector.Delay = 0
	cfg.Collector.DelayJitter = 0
	cfg.Collector.RetryCeiling = 2
	cfg.Collector.CheckpointEvery = 1
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Output.Format = "json"
	cfg.Storage.Directory = t.TempDir()
	cfg.Notifications.Enabled = false
	return cfg
}

func newScraper(t *testing.T, cfg *config.Config, opener twitter.Opener) (*Scraper, snapshot.Store) {
	t.Helper()
	store, err := snapshot.NewFileStore(cfg.Storage.Directory, 0)
	require.NoError(t, err)

	s, err := New(cfg, opener, store, logger.NewTestLogger())
	require.NoError(t, err)
	return s, store
}

func checkpointFor(t *testing.T, cfg *config.Config, subjectID string) *checkpoint.Manager {
	t.Helper()
	dir, err := cfg.CheckpointDir()
	require.NoError(t, err)
	mgr, err := checkpoint.NewManager(dir, subjectID, logger.NewNopLogger())
	require.NoError(t, err)
	return mgr
}

func readDelta(t *testing.T, path string) snapshot.Delta {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var delta snapshot.Delta
	require.NoError(t, json.Unmarshal(data, &delta))
	return delta
}

func ids(records []record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := testConfig(t)
	store, err := snapshot.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = New(nil, &fakeOpener{}, store, nil)
	assert.Error(t, err)
	_, err = New(cfg, nil, store, nil)
	assert.Error(t, err)
	_, err = New(cfg, &fakeOpener{}, nil, nil)
	assert.Error(t, err)
}

func TestRunFirstRunThenDelta(t *testing.T) {
	cfg := testConfig(t)
	first := &fakeView{pages: [][]record.Record{profiles("alice", "bob"), profiles("alice", "bob", "carol")}}
	second := &fakeView{pages: [][]record.Record{profiles("Alice", "carol", "dave")}}
	opener := &fakeOpener{views: []*fakeView{first, second}}
	s, store := newScraper(t, cfg, opener)
	ctx := context.Background()

	out, err := s.Run(ctx, Job{Subject: "@Jack", Surface: twitter.SurfaceFollowers})
	require.NoError(t, err)

	assert.Equal(t, "followers:jack", out.SubjectID)
	assert.Equal(t, collector.StopStable, out.Result.Reason)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids(out.Result.Records()))
	assert.True(t, out.Delta.FirstRun)
	assert.True(t, out.Stored)
	assert.Empty(t, out.DeltaFile)
	assert.FileExists(t, out.RecordsFile)
	assert.True(t, first.closed)
	assert.False(t, checkpointFor(t, cfg, out.SubjectID).Exists())

	out, err = s.Run(ctx, Job{Subject: "jack", Surface: twitter.SurfaceFollowers})
	require.NoError(t, err)

	assert.False(t, out.Delta.FirstRun)
	assert.Equal(t, []string{"dave"}, ids(out.Delta.Added))
	assert.Equal(t, []string{"bob"}, ids(out.Delta.Removed))
	require.NotEmpty(t, out.DeltaFile)

	exported := readDelta(t, out.DeltaFile)
	assert.Equal(t, []string{"dave"}, ids(exported.Added))
	assert.Equal(t, []string{"bob"}, ids(exported.Removed))

	history, err := store.History(ctx, "followers:jack", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 3, history[0].Count)
}

func TestRunStopsAtLimit(t *testing.T) {
	cfg := testConfig(t)
	view := &fakeView{pages: [][]record.Record{profiles("a", "b", "c", "d")}}
	s, _ := newScraper(t, cfg, &fakeOpener{views: []*fakeView{view}})

	out, err := s.Run(context.Background(), Job{Subject: "jack", Surface: twitter.SurfaceFollowing, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, collector.StopTarget, out.Result.Reason)
	assert.Equal(t, []string{"a", "b"}, ids(out.Result.Records()))
	assert.Equal(t, 0, view.advance)
}

func TestRunDefaultsToFollowers(t *testing.T) {
	cfg := testConfig(t)
	opener := &fakeOpener{views: []*fakeView{{pages: [][]record.Record{profiles("a")}}}}
	s, _ := newScraper(t, cfg, opener)

	out, err := s.Run(context.Background(), Job{Subject: "jack"})
	require.NoError(t, err)
	assert.Equal(t, []twitter.Surface{twitter.SurfaceFollowers}, opener.surfaces)
	assert.Equal(t, "followers:jack", out.SubjectID)
}

func TestRunRejectsEmptySubjectAndBadFormat(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newScraper(t, cfg, &fakeOpener{})

	_, err := s.Run(context.Background(), Job{Subject: "  "})
	assert.Error(t, err)

	_, err = s.Run(context.Background(), Job{Subject: "jack", Format: "xml"})
	assert.Error(t, err)
}

func TestRunSubjectNotFound(t *testing.T) {
	cfg := testConfig(t)
	opener := &fakeOpener{err: errs.SubjectNotFound("ghost")}
	s, store := newScraper(t, cfg, opener)

	out, err := s.Run(context.Background(), Job{Subject: "ghost"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errs.IsType(err, errs.ErrorTypeSubjectNotFound))

	snap, err := store.Get(context.Background(), "followers:ghost")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.False(t, checkpointFor(t, cfg, "followers:ghost").Exists())
}

func TestRunCancelledThenResumed(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupted := &fakeView{
		pages: [][]record.Record{profiles("alice", "bob"), profiles("carol")},
		onAdv: cancel,
	}
	resumed := &fakeView{pages: [][]record.Record{profiles("carol", "dave")}}
	opener := &fakeOpener{views: []*fakeView{interrupted, resumed}}
	s, store := newScraper(t, cfg, opener)

	out, err := s.Run(ctx, Job{Subject: "jack"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, out)
	assert.Equal(t, collector.StopCancelled, out.Result.Reason)
	assert.False(t, out.Stored)
	assert.Contains(t, filepath.Base(out.RecordsFile), "partial")

	mgr := checkpointFor(t, cfg, "followers:jack")
	require.True(t, mgr.Exists())
	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids(cp.Records))

	snap, err := store.Get(context.Background(), "followers:jack")
	require.NoError(t, err)
	assert.Nil(t, snap)

	_, err = s.Run(context.Background(), Job{Subject: "jack"})
	assert.ErrorIs(t, err, ErrCheckpointExists)

	out, err = s.Run(context.Background(), Job{Subject: "jack", Resume: true})
	require.NoError(t, err)
	assert.True(t, out.Resumed)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, ids(out.Result.Records()))
	assert.True(t, out.Delta.FirstRun)
	assert.False(t, mgr.Exists())
}

func TestRunForceRestartIgnoresCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	mgr := checkpointFor(t, cfg, "followers:jack")
	cp, err := mgr.Create("followers:jack", "followers")
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateProgress(cp, profiles("stale"), 4))

	view := &fakeView{pages: [][]record.Record{profiles("alice")}}
	s, _ := newScraper(t, cfg, &fakeOpener{views: []*fakeView{view}})

	out, err := s.Run(context.Background(), Job{Subject: "jack", ForceRestart: true})
	require.NoError(t, err)
	assert.False(t, out.Resumed)
	assert.Equal(t, []string{"alice"}, ids(out.Result.Records()))
	assert.FileExists(t, mgr.Path()+".backup")
}

func TestRunResumeFromTopOfList(t *testing.T) {
	cfg := testConfig(t)
	full := &fakeView{pages: [][]record.Record{profiles("a", "b", "c", "d", "e")}}
	// reopened at the top, one more known record per scroll
	resumed := &fakeView{pages: [][]record.Record{
		profiles("a"),
		profiles("a", "b"),
		profiles("a", "b", "c"),
		profiles("a", "b", "c", "d"),
		profiles("a", "b", "c", "d", "e"),
	}}
	s, store := newScraper(t, cfg, &fakeOpener{views: []*fakeView{full, resumed}})
	ctx := context.Background()

	_, err := s.Run(ctx, Job{Subject: "jack"})
	require.NoError(t, err)

	mgr := checkpointFor(t, cfg, "followers:jack")
	cp, err := mgr.Create("followers:jack", "followers")
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateProgress(cp, profiles("a", "b", "c", "d"), 4))

	out, err := s.Run(ctx, Job{Subject: "jack", Resume: true})
	require.NoError(t, err)

	assert.True(t, out.Resumed)
	assert.Equal(t, collector.StopStable, out.Result.Reason)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(out.Result.Records()))
	assert.Empty(t, out.Delta.Added)
	assert.Empty(t, out.Delta.Removed, "records past the checkpoint are still reached")
	assert.True(t, out.Stored)

	latest, err := store.Get(ctx, "followers:jack")
	require.NoError(t, err)
	assert.True(t, latest.Complete)
	assert.Equal(t, 5, latest.Count)
}

func TestRunLimitDoesNotReportUnreachedAsRemoved(t *testing.T) {
	cfg := testConfig(t)
	log := logger.NewTestLogger()
	store, err := snapshot.NewFileStore(cfg.Storage.Directory, 0)
	require.NoError(t, err)
	opener := &fakeOpener{views: []*fakeView{
		{pages: [][]record.Record{profiles("a", "b", "c", "d")}},
		{pages: [][]record.Record{profiles("a", "b", "c", "d")}},
		{pages: [][]record.Record{profiles("a", "b", "c", "d", "e")}},
	}}
	s, err := New(cfg, opener, store, log)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Run(ctx, Job{Subject: "jack"})
	require.NoError(t, err)

	out, err := s.Run(ctx, Job{Subject: "jack", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, collector.StopTarget, out.Result.Reason)
	assert.True(t, out.Stored)
	assert.Empty(t, out.Delta.Removed)
	assert.Equal(t, 2, out.Withheld)

	limited, err := store.Get(ctx, "followers:jack")
	require.NoError(t, err)
	assert.False(t, limited.Complete)

	out, err = s.Run(ctx, Job{Subject: "jack"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, ids(out.Delta.Added))
	assert.Empty(t, out.Delta.Removed)
	assert.Zero(t, out.Withheld)
	assert.True(t, log.HasMessage("Previous snapshot is incomplete"))
}

func TestRunDownloadsPostMedia(t *testing.T) {
	cfg := testConfig(t)
	posts := []record.Record{
		record.New("1001", map[string]any{
			twitter.FieldAuthor: "jack",
			twitter.FieldMedia:  []string{"https://pbs.twimg.com/media/a.jpg", "https://pbs.twimg.com/media/b.png"},
		}),
		record.New("1002", map[string]any{
			twitter.FieldAuthor: "jack",
			twitter.FieldMedia:  []string{"https://video.twimg.com/poster.jpg"},
		}),
		record.New("1003", map[string]any{twitter.FieldAuthor: "jack", twitter.FieldMedia: []string{}}),
	}
	view := &fakeView{pages: [][]record.Record{posts}}
	s, _ := newScraper(t, cfg, &fakeOpener{views: []*fakeView{view}})
	media := &fakeMedia{fail: map[string]bool{"https://video.twimg.com/poster.jpg": true}}
	s.SetMediaClient(media)

	out, err := s.Run(context.Background(), Job{Subject: "jack", Surface: twitter.SurfacePosts, DownloadMedia: true})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Media.Downloaded)
	assert.Equal(t, 1, out.Media.Failed)
	assert.Len(t, media.urls, 3)

	dir := filepath.Join(cfg.Output.BaseDirectory, "media", "posts_jack")
	assert.FileExists(t, filepath.Join(dir, "1001_0.jpg"))
	assert.FileExists(t, filepath.Join(dir, "1001_1.png"))
	assert.NoFileExists(t, filepath.Join(dir, "1002_0.jpg"))
}

func TestMediaJobs(t *testing.T) {
	followers := []record.Record{
		record.New("Alice", map[string]any{twitter.FieldAvatarURL: "https://pbs.twimg.com/profile_images/1/a_normal.jpg"}),
		record.New("bob", map[string]any{}),
	}
	jobs := MediaJobs(twitter.SurfaceFollowers, followers, nil)
	require.Len(t, jobs, 1)
	assert.Equal(t, "alice_avatar.jpg", jobs[0].FileName)
	assert.Equal(t, "Alice", jobs[0].RecordID)

	cp := &checkpoint.Checkpoint{DownloadedMedia: map[string]string{"https://x/1.jpg": "1_0.jpg"}}
	posts := []record.Record{
		record.New("1", map[string]any{twitter.FieldMedia: []string{"https://x/1.jpg", "https://x/2.jpg?format=webp"}}),
		record.New("2", map[string]any{twitter.FieldMedia: []string{"https://x/2.jpg?format=webp"}}),
	}
	jobs = MediaJobs(twitter.SurfacePosts, posts, cp)
	assert.Equal(t, []downloader.DownloadJob{
		{URL: "https://x/2.jpg?format=webp", RecordID: "1", FileName: "1_1.webp"},
	}, jobs)
}

type recordingTUI struct {
	mu          sync.Mutex
	pages       int
	paused      int
	completions []string
}

func (r *recordingTUI) UpdateCollection(subject string, iteration, collected, sinceLastNew int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
}
func (r *recordingTUI) StartDownload(id, subject, filename string) {}
func (r *recordingTUI) CompleteDownload(id string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, id)
}
func (r *recordingTUI) FailDownload(id string, err error)                {}
func (r *recordingTUI) UpdateRateLimit(used, max int, resetAt time.Time) {}
func (r *recordingTUI) LogInfo(format string, args ...interface{})       {}
func (r *recordingTUI) LogSuccess(format string, args ...interface{})    {}
func (r *recordingTUI) LogWarning(format string, args ...interface{})    {}
func (r *recordingTUI) LogError(format string, args ...interface{})      {}

// IsPaused reports paused once so the pause loop runs a single poll
func (r *recordingTUI) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused < 2 {
		r.paused++
		return true
	}
	return false
}

func TestRunReportsToTUI(t *testing.T) {
	cfg := testConfig(t)
	view := &fakeView{pages: [][]record.Record{profiles("alice", "bob")}}
	s, _ := newScraper(t, cfg, &fakeOpener{views: []*fakeView{view}})
	tui := &recordingTUI{}
	s.SetTUI(tui)

	out, err := s.Run(context.Background(), Job{Subject: "jack"})
	require.NoError(t, err)
	assert.Equal(t, out.Result.Iterations, tui.pages)
	assert.Equal(t, 2, tui.paused)
}
