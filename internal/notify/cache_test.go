package notify_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlewatch/shuttlewatch/internal/notify"
)

func newTestCache(t *testing.T, now *time.Time) *notify.Cache {
	t.Helper()
	return notify.NewCache(notify.CacheConfig{
		Path:   filepath.Join(t.TempDir(), "cache.json"),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return *now },
	})
}

func TestCacheSuppressesRepeatAvailability(t *testing.T) {
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)
	result := successResult()

	assert.True(t, cache.ShouldNotify(result))
	require.NoError(t, cache.MarkNotified(result))
	assert.False(t, cache.ShouldNotify(result))
}

func TestCacheSeatChangeIsNewAvailability(t *testing.T) {
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)
	result := successResult()

	require.NoError(t, cache.MarkNotified(result))

	changed := successResult()
	changed.MatchingRecords[0].Seats = 2

	assert.True(t, cache.ShouldNotify(changed))
}

func TestCacheEntryExpires(t *testing.T) {
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)
	result := successResult()

	require.NoError(t, cache.MarkNotified(result))
	assert.False(t, cache.ShouldNotify(result))

	now = now.Add(25 * time.Hour)
	assert.True(t, cache.ShouldNotify(result))
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	result := successResult()

	first := notify.NewCache(notify.CacheConfig{Path: path, Logger: zerolog.Nop(), Now: clock})
	require.NoError(t, first.MarkNotified(result))

	second := notify.NewCache(notify.CacheConfig{Path: path, Logger: zerolog.Nop(), Now: clock})
	assert.False(t, second.ShouldNotify(result))
}

func TestCacheUnreadableFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)

	cache := notify.NewCache(notify.CacheConfig{
		Path:   path,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return now },
	})

	assert.True(t, cache.ShouldNotify(successResult()))
}

func TestCachePassesThroughEdgeResults(t *testing.T) {
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	failed := successResult()
	failed.Success = false
	assert.True(t, cache.ShouldNotify(failed), "failed searches are not the cache's concern")

	empty := successResult()
	empty.MatchingRecords = nil
	assert.False(t, cache.ShouldNotify(empty), "nothing matched, nothing to announce")
}

func TestCacheCleanupExpired(t *testing.T) {
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)
	result := successResult()

	require.NoError(t, cache.MarkNotified(result))
	now = now.Add(25 * time.Hour)
	cache.CleanupExpired()

	assert.True(t, cache.ShouldNotify(result))
}
