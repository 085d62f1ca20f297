package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

const (
	// DefaultCachePath is where the dedupe cache is persisted.
	DefaultCachePath = "cache/notification_cache.json"

	// DefaultCacheExpiry is how long a sent alert suppresses repeats
	// of the same availability.
	DefaultCacheExpiry = 24 * time.Hour

	cacheVersion = "1.0"
)

// CacheConfig holds configuration for the dedupe cache.
type CacheConfig struct {
	// Path to the JSON cache file (default: DefaultCachePath).
	Path string

	// Expiry until entries lapse (default: DefaultCacheExpiry).
	Expiry time.Duration

	// Logger for cache events.
	Logger zerolog.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Cache suppresses duplicate alerts: an availability that was already
// notified is silenced until the entry expires or the trains change.
type Cache struct {
	path   string
	expiry time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	data cacheFile
}

type cacheFile struct {
	Version string                `json:"cache_version"`
	Entries map[string]cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Date       string            `json:"date"`
	Direction  shuttle.Direction `json:"direction"`
	ReturnDate string            `json:"return_date,omitempty"`
	Trains     []trainSignature  `json:"trains"`
	NotifiedAt time.Time         `json:"notified_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// trainSignature is the part of a record that defines "the same
// availability". A seat-count change produces a new key.
type trainSignature struct {
	Number        string            `json:"train_number"`
	DepartureTime string            `json:"departure_time"`
	Seats         int               `json:"available_seats"`
	Direction     shuttle.Direction `json:"direction"`
}

// NewCache opens the cache file, starting fresh when it is missing or
// unreadable.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Path == "" {
		cfg.Path = DefaultCachePath
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = DefaultCacheExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{
		path:   cfg.Path,
		expiry: cfg.Expiry,
		logger: cfg.Logger,
		now:    cfg.Now,
		data:   cacheFile{Version: cacheVersion, Entries: map[string]cacheEntry{}},
	}

	raw, err := os.ReadFile(cfg.Path)
	if err == nil {
		var loaded cacheFile
		if jsonErr := json.Unmarshal(raw, &loaded); jsonErr == nil && loaded.Entries != nil {
			c.data = loaded
			c.logger.Debug().Int("entries", len(loaded.Entries)).Msg("loaded notification cache")
		} else {
			c.logger.Warn().Err(jsonErr).Str("path", cfg.Path).Msg("unreadable notification cache, starting fresh")
		}
	}

	return c
}

// ShouldNotify reports whether this availability is new. Failed
// searches always pass through; results with no matches never notify.
func (c *Cache) ShouldNotify(result shuttle.SearchResult) bool {
	if !result.Success {
		return true
	}
	if len(result.MatchingRecords) == 0 {
		return false
	}

	key := cacheKey(result)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data.Entries[key]
	if !ok {
		return true
	}
	if c.now().Before(entry.ExpiresAt) {
		c.logger.Info().Str("key", key).Time("expires_at", entry.ExpiresAt).Msg("availability already notified")
		return false
	}
	delete(c.data.Entries, key)
	return true
}

// MarkNotified records a sent alert so identical availability stays
// silent until the entry expires.
func (c *Cache) MarkNotified(result shuttle.SearchResult) error {
	key := cacheKey(result)
	now := c.now()

	entry := cacheEntry{
		Date:       result.Criteria.DepartDate.Format("2006-01-02"),
		Direction:  result.Criteria.Direction,
		Trains:     signatures(result.MatchingRecords),
		NotifiedAt: now,
		ExpiresAt:  now.Add(c.expiry),
	}
	if result.Criteria.RoundTrip() {
		entry.ReturnDate = result.Criteria.ReturnDate.Format("2006-01-02")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Entries[key] = entry
	return c.save()
}

// CleanupExpired drops lapsed entries.
func (c *Cache) CleanupExpired() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for key, entry := range c.data.Entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.data.Entries, key)
			removed++
		}
	}
	if removed > 0 {
		if err := c.save(); err != nil {
			c.logger.Error().Err(err).Msg("failed to save notification cache")
		}
		c.logger.Info().Int("removed", removed).Msg("cleaned up expired cache entries")
	}
}

func (c *Cache) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// cacheKey hashes the criteria plus the matched-train set, so the same
// availability hashes identically regardless of row order.
func cacheKey(result shuttle.SearchResult) string {
	key := struct {
		Date       string            `json:"date"`
		Direction  shuttle.Direction `json:"direction"`
		ReturnDate string            `json:"return_date,omitempty"`
		Trains     []trainSignature  `json:"trains"`
	}{
		Date:      result.Criteria.DepartDate.Format("2006-01-02"),
		Direction: result.Criteria.Direction,
		Trains:    signatures(result.MatchingRecords),
	}
	if result.Criteria.RoundTrip() {
		key.ReturnDate = result.Criteria.ReturnDate.Format("2006-01-02")
	}

	raw, _ := json.Marshal(key)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func signatures(records []shuttle.TrainRecord) []trainSignature {
	sigs := make([]trainSignature, 0, len(records))
	for _, r := range records {
		sigs = append(sigs, trainSignature{
			Number:        r.Number,
			DepartureTime: r.DepartureTime,
			Seats:         r.Seats,
			Direction:     r.Direction,
		})
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Direction != sigs[j].Direction {
			return sigs[i].Direction < sigs[j].Direction
		}
		return sigs[i].Number < sigs[j].Number
	})
	return sigs
}
