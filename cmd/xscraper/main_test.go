package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/actions"
	"xscraper/pkg/auth"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/export"
	"xscraper/pkg/record"
	"xscraper/pkg/snapshot"
)

type fakeAccounts struct {
	byName   map[string]*auth.Account
	fallback *auth.Account
}

func (f fakeAccounts) Retrieve(username string) (*auth.Account, error) {
	if a, ok := f.byName[username]; ok {
		return a, nil
	}
	return nil, auth.ErrCredentialsNotFound
}

func (f fakeAccounts) RetrieveDefault() (*auth.Account, error) {
	if f.fallback == nil {
		return nil, auth.ErrCredentialsNotFound
	}
	return f.fallback, nil
}

func TestResolveSession(t *testing.T) {
	stored := &auth.Account{Username: "work", AuthToken: "stored-token", CSRFToken: "stored-ct0", UserAgent: "ua/1"}
	fallback := &auth.Account{Username: "home", AuthToken: "default-token", CSRFToken: "default-ct0"}
	accounts := fakeAccounts{byName: map[string]*auth.Account{"work": stored}, fallback: fallback}

	t.Run("named account wins over config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Account.AuthToken = "cfg-token"
		cfg.Account.CSRFToken = "cfg-ct0"

		session, user, err := resolveSession(cfg, accounts, "work")
		require.NoError(t, err)
		assert.Equal(t, "work", user)
		assert.Equal(t, "stored-token", session.AuthToken)
		assert.Equal(t, "stored-ct0", session.CSRFToken)
		assert.Equal(t, "ua/1", cfg.Account.UserAgent)
	})

	t.Run("config cookies before default account", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Account.AuthToken = "cfg-token"
		cfg.Account.CSRFToken = "cfg-ct0"

		session, _, err := resolveSession(cfg, accounts, "")
		require.NoError(t, err)
		assert.Equal(t, "cfg-token", session.AuthToken)
	})

	t.Run("default account", func(t *testing.T) {
		cfg := config.DefaultConfig()
		session, user, err := resolveSession(cfg, accounts, "")
		require.NoError(t, err)
		assert.Equal(t, "home", user)
		assert.Equal(t, "default-token", session.AuthToken)
	})

	t.Run("unknown account is an auth error", func(t *testing.T) {
		_, _, err := resolveSession(config.DefaultConfig(), accounts, "nobody")
		require.Error(t, err)
		assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
		assert.True(t, errors.Is(err, auth.ErrCredentialsNotFound))
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, _, err := resolveSession(config.DefaultConfig(), fakeAccounts{}, "")
		require.Error(t, err)
		assert.True(t, errs.IsTerminal(err))
	})
}

func TestActionHandles(t *testing.T) {
	delta := snapshot.Delta{
		Subject: "followers:jack",
		Added:   []record.Record{record.New("alice", nil), record.New("bob", nil)},
		Removed: []record.Record{record.New("carol", nil)},
	}
	dir := t.TempDir()
	path, err := export.New(export.FormatJSON, nil).ExportDelta("delta", delta, export.FileDestination{Dir: dir})
	require.NoError(t, err)

	follow, err := actionHandles(actions.Follow, []string{"@Bob", "dave"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "dave", "alice"}, follow)

	unfollow, err := actionHandles(actions.Unfollow, nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, unfollow)

	_, err = actionHandles(actions.Follow, nil, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLatestDelta(t *testing.T) {
	ctx := context.Background()
	store, err := snapshot.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)

	subject := snapshot.SubjectID("followers", "jack")

	_, _, err = latestDelta(ctx, store, subject)
	assert.ErrorIs(t, err, errNoSnapshots)

	first := snapshot.New(subject, []record.Record{record.New("a", nil), record.New("b", nil)}, true)
	first.CapturedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, subject, first))

	delta, partial, err := latestDelta(ctx, store, subject)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.True(t, delta.FirstRun)
	assert.Empty(t, delta.Added)

	second := snapshot.New(subject, []record.Record{record.New("b", nil), record.New("c", nil)}, true)
	second.CapturedAt = first.CapturedAt.Add(24 * time.Hour)
	require.NoError(t, store.Put(ctx, subject, second))

	delta, partial, err = latestDelta(ctx, store, subject)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.False(t, delta.FirstRun)
	require.Len(t, delta.Added, 1)
	require.Len(t, delta.Removed, 1)
	assert.Equal(t, "c", delta.Added[0].ID)
	assert.Equal(t, "a", delta.Removed[0].ID)

	// stopped at --limit 1: "c" was never reached
	third := snapshot.New(subject, []record.Record{record.New("b", nil)}, false)
	third.CapturedAt = second.CapturedAt.Add(24 * time.Hour)
	require.NoError(t, store.Put(ctx, subject, third))

	delta, partial, err = latestDelta(ctx, store, subject)
	require.NoError(t, err)
	assert.True(t, partial)
	assert.Empty(t, delta.Removed)
}

func TestMaskedConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Account.AuthToken = "0123456789abcdef0123456789abcdef01234567"
	cfg.Account.CSRFToken = "short"
	cfg.Storage.RedisPassword = ""

	masked := maskedConfig(cfg)
	assert.Equal(t, "0123...4567", masked.Account.AuthToken)
	assert.Equal(t, "***", masked.Account.CSRFToken)
	assert.Empty(t, masked.Storage.RedisPassword)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", cfg.Account.AuthToken, "original untouched")
}

func TestExampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xscraper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0600))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Collector.Delay)
	assert.Equal(t, 10*time.Minute, cfg.Browser.PageTimeout)
	assert.Equal(t, 30, cfg.Actions.MaxPerHour)
}

func TestCheckConfig(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = filepath.Join(t.TempDir(), "out")
	cfg.Output.Columns = []string{"id", export.ChangeColumn}

	problems, warnings := checkConfig(cfg)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "reserved")
	assert.NotEmpty(t, warnings)
	assert.DirExists(t, cfg.Output.BaseDirectory)

	cfg.Output.Columns = nil
	cfg.Account.AuthToken = "0123456789abcdef0123456789abcdef01234567"
	cfg.Account.CSRFToken = "abcdefabcdefabcdefabcdefabcdefab"
	problems, warnings = checkConfig(cfg)
	assert.Empty(t, problems)
	assert.Empty(t, warnings)
}

func TestRenderAccounts(t *testing.T) {
	var buf bytes.Buffer
	renderAccounts(&buf, []*auth.Account{
		{Username: "work", AuthToken: "0123456789abcdef0123456789abcdef01234567", CSRFToken: "abcdefabcdefabcdefabcdefabcdefab", LastModified: time.Now()},
		{Username: "home", AuthToken: "x", CSRFToken: "y", LastModified: time.Now()},
	})

	out := buf.String()
	assert.Contains(t, out, "work (default)")
	assert.Contains(t, out, "0123...4567")
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef01234567")
	assert.Equal(t, 1, strings.Count(out, "(default)"))
}

func TestPickAccount(t *testing.T) {
	accounts := []*auth.Account{{Username: "Work"}, {Username: "home"}}

	a, err := pickAccount(accounts, "2")
	require.NoError(t, err)
	assert.Equal(t, "home", a.Username)

	a, err = pickAccount(accounts, "@work")
	require.NoError(t, err)
	assert.Equal(t, "Work", a.Username)

	a, err = pickAccount(accounts, " ")
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = pickAccount(accounts, "3")
	assert.Error(t, err)
	_, err = pickAccount(accounts, "nobody")
	assert.Error(t, err)
}

func TestCookiePatterns(t *testing.T) {
	assert.True(t, authTokenPattern.MatchString("0123456789abcdef0123456789abcdef01234567"))
	assert.False(t, authTokenPattern.MatchString("0123456789ABCDEF"))
	assert.True(t, csrfTokenPattern.MatchString(strings.Repeat("a1", 80)))
	assert.False(t, csrfTokenPattern.MatchString("too-short"))
}
